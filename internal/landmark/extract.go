// Package landmark turns one face's mesh landmarks into the eye and head-pose ratios.
package landmark

import (
	"fmt"
	"math"

	"github.com/andresmejia3/facesignal/internal/types"
)

// Face-mesh indices read by the extractor.
const (
	NoseTip        = 4
	NoseBridgeLow  = 5
	LeftCheek      = 36
	LeftEyeLower   = 145
	LeftEyeUpper   = 159
	UpperLip       = 164
	ForeheadCenter = 168
	RightCheek     = 266
	RightEyeLower  = 374
	RightEyeUpper  = 386

	// MinPoints is the shortest face the extractor accepts.
	MinPoints = RightEyeUpper + 1
)

// DefaultEpsilon is the smallest denominator, in pixels, we still divide by.
const DefaultEpsilon = 1e-6

// Extractor converts normalized landmarks to pixel space using the camera frame size.
type Extractor struct {
	Width   float64
	Height  float64
	Epsilon float64
}

// NewExtractor validates the frame size up front so a misconfigured session fails at startup.
func NewExtractor(width, height, epsilon float64) (*Extractor, error) {
	if err := ValidateDimensions(width, height); err != nil {
		return nil, err
	}
	if epsilon <= 0 || math.IsNaN(epsilon) || math.IsInf(epsilon, 0) {
		epsilon = DefaultEpsilon
	}
	return &Extractor{Width: width, Height: height, Epsilon: epsilon}, nil
}

// Extract computes the ratio set for one face.
func (e *Extractor) Extract(face types.Face) (types.RatioSet, error) {
	return extract(face, e.Width, e.Height, e.Epsilon)
}

// Extract is the one-shot form using DefaultEpsilon.
func Extract(face types.Face, frameWidth, frameHeight float64) (types.RatioSet, error) {
	return extract(face, frameWidth, frameHeight, DefaultEpsilon)
}

// ValidateDimensions rejects non-positive or non-finite frame sizes.
func ValidateDimensions(width, height float64) error {
	if !(width > 0) || !(height > 0) || math.IsInf(width, 0) || math.IsInf(height, 0) {
		return fmt.Errorf("%w: %gx%g", ErrInvalidDimensions, width, height)
	}
	return nil
}

func extract(face types.Face, w, h, eps float64) (types.RatioSet, error) {
	if err := ValidateDimensions(w, h); err != nil {
		return types.RatioSet{}, err
	}
	if len(face) < MinPoints {
		return types.RatioSet{}, &MissingLandmarkError{Index: MinPoints - 1, Have: len(face)}
	}

	ay1 := face[NoseTip].Y * h
	ay2 := face[NoseBridgeLow].Y * h
	ry1 := face[RightEyeLower].Y * h
	ry2 := face[RightEyeUpper].Y * h
	ly1 := face[LeftEyeLower].Y * h
	ly2 := face[LeftEyeUpper].Y * h
	lx := face[LeftCheek].X * w
	ax := face[NoseTip].X * w
	rx := face[RightCheek].X * w
	ty := face[ForeheadCenter].Y * h
	by := face[UpperLip].Y * h

	eyeDen := ay1 - ay2
	xDen := ax - rx
	yDen := by - ay2

	switch {
	case degenerate(eyeDen, eps):
		return types.RatioSet{}, &DegenerateGeometryError{Ratio: "eye", Denominator: eyeDen}
	case degenerate(xDen, eps):
		return types.RatioSet{}, &DegenerateGeometryError{Ratio: "head_x", Denominator: xDen}
	case degenerate(yDen, eps):
		return types.RatioSet{}, &DegenerateGeometryError{Ratio: "head_y", Denominator: yDen}
	}

	rs := types.RatioSet{
		RightEye:  (ry1 - ry2) / eyeDen,
		LeftEye:   (ly1 - ly2) / eyeDen,
		HeadPoseX: (lx - ax) / xDen,
		HeadPoseY: (ay2 - ty) / yDen,
	}
	// Non-finite inputs (NaN coordinates) slip past the denominator check.
	checks := []struct {
		name string
		v    float64
	}{
		{"right_eye", rs.RightEye},
		{"left_eye", rs.LeftEye},
		{"head_x", rs.HeadPoseX},
		{"head_y", rs.HeadPoseY},
	}
	for _, c := range checks {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return types.RatioSet{}, &DegenerateGeometryError{Ratio: c.name, Denominator: math.NaN()}
		}
	}
	return rs, nil
}

func degenerate(den, eps float64) bool {
	return math.IsNaN(den) || math.Abs(den) < eps
}
