package types

import (
	"encoding/json"
	"testing"
)

func TestEventKindPanelAndLabel(t *testing.T) {
	tests := []struct {
		kind  EventKind
		panel Panel
		label string
	}{
		{RightEyeBlinked, PanelRightEye, "Eye blinked"},
		{RightEyeOpen, PanelRightEye, "Eye is open"},
		{LeftEyeBlinked, PanelLeftEye, "Eye blinked"},
		{LeftEyeOpen, PanelLeftEye, "Eye is open"},
		{HeadRight, PanelHeadPoseX, "Right"},
		{HeadLeft, PanelHeadPoseX, "Left"},
		{HeadCenterX, PanelHeadPoseX, "Center"},
		{HeadUp, PanelHeadPoseY, "Up"},
		{HeadDown, PanelHeadPoseY, "Down"},
		{HeadCenterY, PanelHeadPoseY, "Center"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.Panel(); got != tt.panel {
				t.Errorf("Panel() = %q, want %q", got, tt.panel)
			}
			if got := tt.kind.Label(); got != tt.label {
				t.Errorf("Label() = %q, want %q", got, tt.label)
			}
			parsed, err := ParseEventKind(tt.kind.String())
			if err != nil || parsed != tt.kind {
				t.Errorf("ParseEventKind(%q) = %v, %v", tt.kind.String(), parsed, err)
			}
		})
	}
}

func TestEventKindJSON(t *testing.T) {
	b, err := json.Marshal(StateChangeEvent{Kind: HeadCenterY})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"kind":"HeadCenterY"}` {
		t.Errorf("unexpected encoding %s", b)
	}

	var ev StateChangeEvent
	if err := json.Unmarshal([]byte(`{"kind":"Wink"}`), &ev); err == nil {
		t.Error("expected error for unknown kind")
	}
	if _, err := json.Marshal(StateChangeEvent{Kind: EventKind(99)}); err == nil {
		t.Error("expected error marshalling unknown kind")
	}
}

func TestUnknownEventKindString(t *testing.T) {
	if got := EventKind(42).String(); got != "EventKind(42)" {
		t.Errorf("String() = %q", got)
	}
	if EventKind(42).Panel() != "" {
		t.Error("unknown kind should have no panel")
	}
}
