// Package classifier turns per-frame ratios into edge-triggered eye and head-pose events.
//
// Each signal axis keeps a single current state. An event is emitted only when a
// frame moves the axis into a different state, so a held pose or a held blink is
// reported once. Every axis starts in Unknown, which makes the first classified
// frame report all four axes.
package classifier

import (
	"math"

	"github.com/andresmejia3/facesignal/internal/types"
)

// EyeState is the open/blinked state of one eye.
type EyeState int

const (
	EyeUnknown EyeState = iota
	EyeOpen
	EyeBlinked
)

// HeadXState is the horizontal head pose.
type HeadXState int

const (
	HeadXUnknown HeadXState = iota
	HeadXLeft
	HeadXCenter
	HeadXRight
)

// HeadYState is the vertical head pose.
type HeadYState int

const (
	HeadYUnknown HeadYState = iota
	HeadYUp
	HeadYCenter
	HeadYDown
)

// State is a snapshot of every axis.
type State struct {
	RightEye EyeState
	LeftEye  EyeState
	HeadX    HeadXState
	HeadY    HeadYState
}

// DebounceState is the armed-flag view of State: a flag is true while its event may
// still fire, and false while the axis sits in that state.
type DebounceState struct {
	RightEyeBlinkArmed bool
	RightEyeOpenArmed  bool
	LeftEyeBlinkArmed  bool
	LeftEyeOpenArmed   bool
	HeadRightArmed     bool
	HeadLeftArmed      bool
	HeadCenterXArmed   bool
	HeadUpArmed        bool
	HeadDownArmed      bool
	HeadCenterYArmed   bool
}

// Classifier is not safe for concurrent use; the session serialises access.
type Classifier struct {
	th    Thresholds
	state State
}

// New returns a classifier with every axis in its Unknown state.
func New(th Thresholds) *Classifier {
	return &Classifier{th: th}
}

// Thresholds returns the bucket edges in use.
func (c *Classifier) Thresholds() Thresholds {
	return c.th
}

// State returns the current per-axis state.
func (c *Classifier) State() State {
	return c.state
}

// Reset puts every axis back to Unknown, as at session start.
func (c *Classifier) Reset() {
	c.state = State{}
}

// Armed reports which events may still fire.
func (c *Classifier) Armed() DebounceState {
	s := c.state
	return DebounceState{
		RightEyeBlinkArmed: s.RightEye != EyeBlinked,
		RightEyeOpenArmed:  s.RightEye != EyeOpen,
		LeftEyeBlinkArmed:  s.LeftEye != EyeBlinked,
		LeftEyeOpenArmed:   s.LeftEye != EyeOpen,
		HeadRightArmed:     s.HeadX != HeadXRight,
		HeadLeftArmed:      s.HeadX != HeadXLeft,
		HeadCenterXArmed:   s.HeadX != HeadXCenter,
		HeadUpArmed:        s.HeadY != HeadYUp,
		HeadDownArmed:      s.HeadY != HeadYDown,
		HeadCenterYArmed:   s.HeadY != HeadYCenter,
	}
}

// Classify buckets the ratios and returns the events for axes whose state changed,
// in the order right eye, left eye, head X, head Y. A non-finite ratio leaves its
// axis untouched.
func (c *Classifier) Classify(rs types.RatioSet) []types.StateChangeEvent {
	var events []types.StateChangeEvent
	emit := func(k types.EventKind) {
		events = append(events, types.StateChangeEvent{Kind: k})
	}

	if finite(rs.RightEye) {
		if next := c.eyeBucket(rs.RightEye); next != c.state.RightEye {
			c.state.RightEye = next
			emit(eyeEvent(next, types.RightEyeBlinked, types.RightEyeOpen))
		}
	}
	if finite(rs.LeftEye) {
		if next := c.eyeBucket(rs.LeftEye); next != c.state.LeftEye {
			c.state.LeftEye = next
			emit(eyeEvent(next, types.LeftEyeBlinked, types.LeftEyeOpen))
		}
	}
	if finite(rs.HeadPoseX) {
		if next := c.headXBucket(rs.HeadPoseX); next != c.state.HeadX {
			c.state.HeadX = next
			switch next {
			case HeadXRight:
				emit(types.HeadRight)
			case HeadXLeft:
				emit(types.HeadLeft)
			default:
				emit(types.HeadCenterX)
			}
		}
	}
	if finite(rs.HeadPoseY) {
		if next := c.headYBucket(rs.HeadPoseY); next != c.state.HeadY {
			c.state.HeadY = next
			switch next {
			case HeadYDown:
				emit(types.HeadDown)
			case HeadYUp:
				emit(types.HeadUp)
			default:
				emit(types.HeadCenterY)
			}
		}
	}
	return events
}

func (c *Classifier) eyeBucket(r float64) EyeState {
	if r < c.th.Eye {
		return EyeBlinked
	}
	return EyeOpen
}

// Right is checked before left, so overlapping bands resolve to right.
func (c *Classifier) headXBucket(r float64) HeadXState {
	switch {
	case r > c.th.HeadRight:
		return HeadXRight
	case r < c.th.HeadLeft:
		return HeadXLeft
	default:
		return HeadXCenter
	}
}

func (c *Classifier) headYBucket(r float64) HeadYState {
	switch {
	case r > c.th.HeadDown:
		return HeadYDown
	case r < c.th.HeadUp:
		return HeadYUp
	default:
		return HeadYCenter
	}
}

func eyeEvent(s EyeState, blinked, open types.EventKind) types.EventKind {
	if s == EyeBlinked {
		return blinked
	}
	return open
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
