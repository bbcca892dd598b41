package types

import (
	"fmt"
	"time"
)

// LandmarkPoint is one normalized face-mesh vertex. X and Z are fractions of the
// frame width, Y is a fraction of the frame height.
type LandmarkPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Face is the ordered landmark list of a single tracked face (468 points for the
// face-mesh topology).
type Face []LandmarkPoint

// LandmarkFrame is what the inference pipeline hands us for one processed camera frame.
type LandmarkFrame struct {
	Seq       int
	Faces     []Face
	Timestamp time.Time
}

// RatioSet holds the four per-frame ratios the classifier works from.
type RatioSet struct {
	RightEye  float64 `json:"right_eye"`
	LeftEye   float64 `json:"left_eye"`
	HeadPoseX float64 `json:"head_pose_x"`
	HeadPoseY float64 `json:"head_pose_y"`
}

// EventKind enumerates the discrete states a frame can transition into.
type EventKind int

const (
	RightEyeBlinked EventKind = iota + 1
	RightEyeOpen
	LeftEyeBlinked
	LeftEyeOpen
	HeadRight
	HeadLeft
	HeadCenterX
	HeadUp
	HeadDown
	HeadCenterY
)

// Panel groups event kinds by the display slot they update.
type Panel string

const (
	PanelRightEye  Panel = "right_eye"
	PanelLeftEye   Panel = "left_eye"
	PanelHeadPoseX Panel = "head_pose_x"
	PanelHeadPoseY Panel = "head_pose_y"
)

type kindInfo struct {
	name  string
	panel Panel
	label string
}

var kinds = map[EventKind]kindInfo{
	RightEyeBlinked: {"RightEyeBlinked", PanelRightEye, "Eye blinked"},
	RightEyeOpen:    {"RightEyeOpen", PanelRightEye, "Eye is open"},
	LeftEyeBlinked:  {"LeftEyeBlinked", PanelLeftEye, "Eye blinked"},
	LeftEyeOpen:     {"LeftEyeOpen", PanelLeftEye, "Eye is open"},
	HeadRight:       {"HeadRight", PanelHeadPoseX, "Right"},
	HeadLeft:        {"HeadLeft", PanelHeadPoseX, "Left"},
	HeadCenterX:     {"HeadCenterX", PanelHeadPoseX, "Center"},
	HeadUp:          {"HeadUp", PanelHeadPoseY, "Up"},
	HeadDown:        {"HeadDown", PanelHeadPoseY, "Down"},
	HeadCenterY:     {"HeadCenterY", PanelHeadPoseY, "Center"},
}

func (k EventKind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Panel returns the display slot this kind updates, or "" for an unknown kind.
func (k EventKind) Panel() Panel {
	return kinds[k].panel
}

// Label returns the text the UI shows for this kind.
func (k EventKind) Label() string {
	return kinds[k].label
}

// ParseEventKind is the inverse of String.
func ParseEventKind(s string) (EventKind, error) {
	for k, info := range kinds {
		if info.name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

func (k EventKind) MarshalText() ([]byte, error) {
	if _, ok := kinds[k]; !ok {
		return nil, fmt.Errorf("unknown event kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *EventKind) UnmarshalText(b []byte) error {
	parsed, err := ParseEventKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// StateChangeEvent is emitted once per state transition.
type StateChangeEvent struct {
	Kind EventKind `json:"kind"`
}

// FrameEvents is the envelope delivered to sinks for a frame that produced events.
type FrameEvents struct {
	SessionID string             `json:"session_id"`
	Seq       int                `json:"seq"`
	Timestamp time.Time          `json:"ts"`
	Ratios    RatioSet           `json:"ratios"`
	Events    []StateChangeEvent `json:"events"`
}

// FrameTask represents a single encoded video frame sent to an inference worker.
type FrameTask struct {
	Index int
	Data  []byte
}
