package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetupLevel(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Setup(Options{Level: "warn", Output: &buf}); err != nil {
		t.Fatal(err)
	}

	Info(Fields{"frame": 1}, "hidden")
	Warn(Fields{"frame": 2}, "degenerate frame")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "degenerate frame") || !strings.Contains(out, "frame:2") {
		t.Errorf("warn line missing or without fields: %q", out)
	}
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	if _, err := Setup(Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNilFieldsAreFine(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Setup(Options{Level: "debug", Output: &buf}); err != nil {
		t.Fatal(err)
	}
	Debug(nil, "received face landmarks")
	if !strings.Contains(buf.String(), "received face landmarks") {
		t.Errorf("debug line missing: %q", buf.String())
	}
}
