package landmark

import (
	"errors"
	"math"
	"testing"

	"github.com/andresmejia3/facesignal/internal/types"
)

// neutralFace builds a 468-point face whose ratios at 1200x1920 are
// RightEye 1.0, LeftEye 0.4, HeadPoseX 2.0, HeadPoseY 1.0.
func neutralFace() types.Face {
	face := make(types.Face, 468)
	face[NoseTip] = types.LandmarkPoint{X: 0.5, Y: 0.5}
	face[NoseBridgeLow] = types.LandmarkPoint{X: 0.5, Y: 0.45}
	face[RightEyeLower] = types.LandmarkPoint{Y: 0.5}
	face[RightEyeUpper] = types.LandmarkPoint{Y: 0.45}
	face[LeftEyeLower] = types.LandmarkPoint{Y: 0.46}
	face[LeftEyeUpper] = types.LandmarkPoint{Y: 0.44}
	face[LeftCheek] = types.LandmarkPoint{X: 0.3}
	face[RightCheek] = types.LandmarkPoint{X: 0.6}
	face[ForeheadCenter] = types.LandmarkPoint{Y: 0.35}
	face[UpperLip] = types.LandmarkPoint{Y: 0.55}
	return face
}

func TestExtract(t *testing.T) {
	got, err := Extract(neutralFace(), 1200, 1920)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	want := types.RatioSet{RightEye: 1.0, LeftEye: 0.4, HeadPoseX: 2.0, HeadPoseY: 1.0}
	checks := []struct {
		name      string
		got, want float64
	}{
		{"RightEye", got.RightEye, want.RightEye},
		{"LeftEye", got.LeftEye, want.LeftEye},
		{"HeadPoseX", got.HeadPoseX, want.HeadPoseX},
		{"HeadPoseY", got.HeadPoseY, want.HeadPoseY},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestExtractScalesByFrameSize(t *testing.T) {
	// Eye and head-pose ratios are quotients along the same axis, so the frame size
	// cancels out as long as it is positive.
	a, err := Extract(neutralFace(), 1200, 1920)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Extract(neutralFace(), 640, 480)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(a.HeadPoseX-b.HeadPoseX) > 1e-9 || math.Abs(a.RightEye-b.RightEye) > 1e-9 {
		t.Errorf("ratios changed with frame size: %+v vs %+v", a, b)
	}
}

func TestExtractErrors(t *testing.T) {
	tests := []struct {
		name   string
		face   func() types.Face
		w, h   float64
		target error
	}{
		{
			name:   "too few points",
			face:   func() types.Face { return neutralFace()[:RightEyeUpper] },
			w:      1200,
			h:      1920,
			target: ErrMissingLandmark,
		},
		{
			name:   "empty face",
			face:   func() types.Face { return nil },
			w:      1200,
			h:      1920,
			target: ErrMissingLandmark,
		},
		{
			name:   "zero width",
			face:   neutralFace,
			w:      0,
			h:      1920,
			target: ErrInvalidDimensions,
		},
		{
			name:   "negative height",
			face:   neutralFace,
			w:      1200,
			h:      -1,
			target: ErrInvalidDimensions,
		},
		{
			name:   "NaN width",
			face:   neutralFace,
			w:      math.NaN(),
			h:      1920,
			target: ErrInvalidDimensions,
		},
		{
			name: "nose points level",
			face: func() types.Face {
				f := neutralFace()
				f[NoseBridgeLow].Y = f[NoseTip].Y
				return f
			},
			w:      1200,
			h:      1920,
			target: ErrDegenerateGeometry,
		},
		{
			name: "nose over right cheek",
			face: func() types.Face {
				f := neutralFace()
				f[RightCheek].X = f[NoseTip].X
				return f
			},
			w:      1200,
			h:      1920,
			target: ErrDegenerateGeometry,
		},
		{
			name: "lip level with bridge",
			face: func() types.Face {
				f := neutralFace()
				f[UpperLip].Y = f[NoseBridgeLow].Y
				return f
			},
			w:      1200,
			h:      1920,
			target: ErrDegenerateGeometry,
		},
		{
			name: "NaN coordinate",
			face: func() types.Face {
				f := neutralFace()
				f[LeftCheek].X = math.NaN()
				return f
			},
			w:      1200,
			h:      1920,
			target: ErrDegenerateGeometry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := Extract(tt.face(), tt.w, tt.h)
			if !errors.Is(err, tt.target) {
				t.Fatalf("Extract() error = %v, want %v", err, tt.target)
			}
			if rs != (types.RatioSet{}) {
				t.Errorf("expected zero RatioSet on error, got %+v", rs)
			}
		})
	}
}

func TestMissingLandmarkErrorDetails(t *testing.T) {
	_, err := Extract(make(types.Face, 100), 1200, 1920)

	var missing *MissingLandmarkError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingLandmarkError, got %T", err)
	}
	if missing.Index != 386 || missing.Have != 100 {
		t.Errorf("unexpected details %+v", missing)
	}
}

func TestDegenerateGeometryErrorNamesRatio(t *testing.T) {
	f := neutralFace()
	f[NoseBridgeLow].Y = f[NoseTip].Y

	_, err := Extract(f, 1200, 1920)
	var degen *DegenerateGeometryError
	if !errors.As(err, &degen) {
		t.Fatalf("expected DegenerateGeometryError, got %T", err)
	}
	if degen.Ratio != "eye" {
		t.Errorf("Ratio = %q, want eye", degen.Ratio)
	}
}

func TestExtractorEpsilon(t *testing.T) {
	f := neutralFace()
	// 0.0001 * 1920 = 0.192 px between nose tip and bridge.
	f[NoseBridgeLow].Y = f[NoseTip].Y - 0.0001

	loose, err := NewExtractor(1200, 1920, 0)
	if err != nil {
		t.Fatal(err)
	}
	if loose.Epsilon != DefaultEpsilon {
		t.Errorf("Epsilon = %v, want default", loose.Epsilon)
	}
	if _, err := loose.Extract(f); err != nil {
		t.Errorf("default epsilon rejected a 0.19px denominator: %v", err)
	}

	strict, err := NewExtractor(1200, 1920, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := strict.Extract(f); !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("expected degenerate error with 1px epsilon, got %v", err)
	}
}

func TestNewExtractorRejectsDimensions(t *testing.T) {
	if _, err := NewExtractor(1200, 0, 0); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("expected ErrInvalidDimensions, got %v", err)
	}
	if _, err := NewExtractor(math.Inf(1), 1920, 0); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("expected ErrInvalidDimensions for +Inf, got %v", err)
	}
}

func TestSynthesizeRoundTrip(t *testing.T) {
	tests := []types.RatioSet{
		{RightEye: 1.0, LeftEye: 1.0, HeadPoseX: 1.0, HeadPoseY: 1.0},
		{RightEye: 0.3, LeftEye: 0.9, HeadPoseX: 2.4, HeadPoseY: 0.5},
		{RightEye: 1.2, LeftEye: 0.1, HeadPoseX: 0.2, HeadPoseY: 1.6},
	}

	for _, want := range tests {
		face := Synthesize(want)
		if len(face) != MeshSize {
			t.Fatalf("len = %d, want %d", len(face), MeshSize)
		}
		got, err := Extract(face, 1280, 720)
		if err != nil {
			t.Fatalf("Extract(%+v) failed: %v", want, err)
		}
		if math.Abs(got.RightEye-want.RightEye) > 1e-9 ||
			math.Abs(got.LeftEye-want.LeftEye) > 1e-9 ||
			math.Abs(got.HeadPoseX-want.HeadPoseX) > 1e-9 ||
			math.Abs(got.HeadPoseY-want.HeadPoseY) > 1e-9 {
			t.Errorf("Extract(Synthesize(%+v)) = %+v", want, got)
		}
	}
}
