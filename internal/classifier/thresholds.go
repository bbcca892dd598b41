package classifier

import (
	"fmt"
	"math"
)

// Thresholds are the bucket edges for each signal. The defaults are empirical.
type Thresholds struct {
	// Eye: ratio < Eye is blinked, otherwise open.
	Eye float64 `yaml:"eye" validate:"gt=0"`
	// HeadRight: ratio > HeadRight is right; HeadLeft: ratio < HeadLeft is left.
	HeadRight float64 `yaml:"head_right" validate:"gt=0"`
	HeadLeft  float64 `yaml:"head_left" validate:"gt=0"`
	// HeadDown: ratio > HeadDown is down; HeadUp: ratio < HeadUp is up.
	HeadDown float64 `yaml:"head_down" validate:"gt=0"`
	HeadUp   float64 `yaml:"head_up" validate:"gt=0"`
}

// DefaultThresholds returns the calibrated defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Eye:       0.7,
		HeadRight: 1.8,
		HeadLeft:  0.75,
		HeadDown:  1.15,
		HeadUp:    0.82,
	}
}

// Validate rejects non-finite edges and inverted center bands.
func (t Thresholds) Validate() error {
	for name, v := range map[string]float64{
		"eye": t.Eye, "head_right": t.HeadRight, "head_left": t.HeadLeft,
		"head_down": t.HeadDown, "head_up": t.HeadUp,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("threshold %s is not finite", name)
		}
	}
	if t.HeadLeft > t.HeadRight {
		return fmt.Errorf("head_left (%g) must not exceed head_right (%g)", t.HeadLeft, t.HeadRight)
	}
	if t.HeadUp > t.HeadDown {
		return fmt.Errorf("head_up (%g) must not exceed head_down (%g)", t.HeadUp, t.HeadDown)
	}
	return nil
}
