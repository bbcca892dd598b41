package classifier

import (
	"math"
	"math/rand"
	"testing"

	"github.com/andresmejia3/facesignal/internal/types"
)

// centered is a ratio set that lands every axis in its open/center bucket.
var centered = types.RatioSet{RightEye: 1.0, LeftEye: 1.0, HeadPoseX: 1.0, HeadPoseY: 1.0}

func kindsOn(events []types.StateChangeEvent, panel types.Panel) []types.EventKind {
	var out []types.EventKind
	for _, e := range events {
		if e.Kind.Panel() == panel {
			out = append(out, e.Kind)
		}
	}
	return out
}

func equalKinds(a, b []types.EventKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRightEyeSequence(t *testing.T) {
	c := New(DefaultThresholds())

	want := [][]types.EventKind{
		{types.RightEyeOpen},
		{types.RightEyeBlinked},
		nil,
		{types.RightEyeOpen},
	}
	for i, r := range []float64{0.9, 0.5, 0.5, 0.9} {
		rs := centered
		rs.RightEye = r
		got := kindsOn(c.Classify(rs), types.PanelRightEye)
		if !equalKinds(got, want[i]) {
			t.Errorf("frame %d: got %v, want %v", i, got, want[i])
		}
	}
}

func TestHeadXCycle(t *testing.T) {
	c := New(DefaultThresholds())

	var got []types.EventKind
	for _, r := range []float64{2.0, 0.5, 1.0, 2.0} {
		rs := centered
		rs.HeadPoseX = r
		got = append(got, kindsOn(c.Classify(rs), types.PanelHeadPoseX)...)
	}

	want := []types.EventKind{types.HeadRight, types.HeadLeft, types.HeadCenterX, types.HeadRight}
	if !equalKinds(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestHeadYCycle(t *testing.T) {
	c := New(DefaultThresholds())

	var got []types.EventKind
	for _, r := range []float64{1.5, 1.5, 0.5, 1.0, 1.0, 1.5} {
		rs := centered
		rs.HeadPoseY = r
		got = append(got, kindsOn(c.Classify(rs), types.PanelHeadPoseY)...)
	}

	want := []types.EventKind{types.HeadDown, types.HeadUp, types.HeadCenterY, types.HeadDown}
	if !equalKinds(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSteadyStateIsQuiet(t *testing.T) {
	tests := []struct {
		name   string
		ratios types.RatioSet
		want   []types.EventKind
	}{
		{
			name:   "all centered",
			ratios: centered,
			want:   []types.EventKind{types.RightEyeOpen, types.LeftEyeOpen, types.HeadCenterX, types.HeadCenterY},
		},
		{
			name:   "both blinking, head right and down",
			ratios: types.RatioSet{RightEye: 0.2, LeftEye: 0.3, HeadPoseX: 3.0, HeadPoseY: 2.0},
			want:   []types.EventKind{types.RightEyeBlinked, types.LeftEyeBlinked, types.HeadRight, types.HeadDown},
		},
		{
			name:   "head left and up",
			ratios: types.RatioSet{RightEye: 0.9, LeftEye: 0.9, HeadPoseX: 0.1, HeadPoseY: 0.1},
			want:   []types.EventKind{types.RightEyeOpen, types.LeftEyeOpen, types.HeadLeft, types.HeadUp},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(DefaultThresholds())

			first := c.Classify(tt.ratios)
			var got []types.EventKind
			for _, e := range first {
				got = append(got, e.Kind)
			}
			if !equalKinds(got, tt.want) {
				t.Errorf("first frame: got %v, want %v", got, tt.want)
			}

			for i := 0; i < 5; i++ {
				if ev := c.Classify(tt.ratios); len(ev) != 0 {
					t.Fatalf("repeat %d: expected no events, got %v", i, ev)
				}
			}
		})
	}
}

func TestThresholdEdges(t *testing.T) {
	const nudge = 1e-9

	tests := []struct {
		name  string
		set   func(*types.RatioSet)
		panel types.Panel
		want  types.EventKind
	}{
		{"eye at threshold is open", func(r *types.RatioSet) { r.RightEye = 0.7 }, types.PanelRightEye, types.RightEyeOpen},
		{"eye below threshold blinks", func(r *types.RatioSet) { r.RightEye = 0.7 - nudge }, types.PanelRightEye, types.RightEyeBlinked},
		{"left eye at threshold is open", func(r *types.RatioSet) { r.LeftEye = 0.7 }, types.PanelLeftEye, types.LeftEyeOpen},
		{"left eye below threshold blinks", func(r *types.RatioSet) { r.LeftEye = 0.7 - nudge }, types.PanelLeftEye, types.LeftEyeBlinked},
		{"head x at right edge is center", func(r *types.RatioSet) { r.HeadPoseX = 1.8 }, types.PanelHeadPoseX, types.HeadCenterX},
		{"head x above right edge", func(r *types.RatioSet) { r.HeadPoseX = 1.8 + nudge }, types.PanelHeadPoseX, types.HeadRight},
		{"head x at left edge is center", func(r *types.RatioSet) { r.HeadPoseX = 0.75 }, types.PanelHeadPoseX, types.HeadCenterX},
		{"head x below left edge", func(r *types.RatioSet) { r.HeadPoseX = 0.75 - nudge }, types.PanelHeadPoseX, types.HeadLeft},
		{"head y at down edge is center", func(r *types.RatioSet) { r.HeadPoseY = 1.15 }, types.PanelHeadPoseY, types.HeadCenterY},
		{"head y above down edge", func(r *types.RatioSet) { r.HeadPoseY = 1.15 + nudge }, types.PanelHeadPoseY, types.HeadDown},
		{"head y at up edge is center", func(r *types.RatioSet) { r.HeadPoseY = 0.82 }, types.PanelHeadPoseY, types.HeadCenterY},
		{"head y below up edge", func(r *types.RatioSet) { r.HeadPoseY = 0.82 - nudge }, types.PanelHeadPoseY, types.HeadUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(DefaultThresholds())
			rs := centered
			tt.set(&rs)

			got := kindsOn(c.Classify(rs), tt.panel)
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("got %v, want [%v]", got, tt.want)
			}
		})
	}
}

func disarmedCounts(d DebounceState) (rightEye, leftEye, headX, headY int) {
	count := func(flags ...bool) int {
		n := 0
		for _, f := range flags {
			if !f {
				n++
			}
		}
		return n
	}
	return count(d.RightEyeBlinkArmed, d.RightEyeOpenArmed),
		count(d.LeftEyeBlinkArmed, d.LeftEyeOpenArmed),
		count(d.HeadRightArmed, d.HeadLeftArmed, d.HeadCenterXArmed),
		count(d.HeadUpArmed, d.HeadDownArmed, d.HeadCenterYArmed)
}

func TestArmedFlagsStayMutuallyExclusive(t *testing.T) {
	c := New(DefaultThresholds())

	if re, le, hx, hy := disarmedCounts(c.Armed()); re+le+hx+hy != 0 {
		t.Fatalf("fresh classifier should be fully armed, got %+v", c.Armed())
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		rs := types.RatioSet{
			RightEye:  rng.Float64() * 1.4,
			LeftEye:   rng.Float64() * 1.4,
			HeadPoseX: rng.Float64() * 3,
			HeadPoseY: rng.Float64() * 2,
		}
		events := c.Classify(rs)
		if len(events) > 4 {
			t.Fatalf("frame %d: %d events", i, len(events))
		}

		re, le, hx, hy := disarmedCounts(c.Armed())
		if re != 1 || le != 1 || hx != 1 || hy != 1 {
			t.Fatalf("frame %d: expected exactly one disarmed flag per group, got %d/%d/%d/%d (%+v)",
				i, re, le, hx, hy, c.Armed())
		}
	}
}

func TestNoRepeatedConsecutiveEvents(t *testing.T) {
	c := New(DefaultThresholds())
	last := map[types.Panel]types.EventKind{}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		rs := types.RatioSet{
			RightEye:  rng.Float64() * 1.4,
			LeftEye:   rng.Float64() * 1.4,
			HeadPoseX: rng.Float64() * 3,
			HeadPoseY: rng.Float64() * 2,
		}
		for _, e := range c.Classify(rs) {
			p := e.Kind.Panel()
			if last[p] == e.Kind {
				t.Fatalf("frame %d: %v fired twice in a row", i, e.Kind)
			}
			last[p] = e.Kind
		}
	}
}

func TestArmedMatchesState(t *testing.T) {
	c := New(DefaultThresholds())
	c.Classify(types.RatioSet{RightEye: 0.1, LeftEye: 0.9, HeadPoseX: 2.5, HeadPoseY: 0.5})

	got := c.Armed()
	want := DebounceState{
		RightEyeBlinkArmed: false,
		RightEyeOpenArmed:  true,
		LeftEyeBlinkArmed:  true,
		LeftEyeOpenArmed:   false,
		HeadRightArmed:     false,
		HeadLeftArmed:      true,
		HeadCenterXArmed:   true,
		HeadUpArmed:        false,
		HeadDownArmed:      true,
		HeadCenterYArmed:   true,
	}
	if got != want {
		t.Errorf("Armed() = %+v, want %+v", got, want)
	}

	wantState := State{RightEye: EyeBlinked, LeftEye: EyeOpen, HeadX: HeadXRight, HeadY: HeadYUp}
	if c.State() != wantState {
		t.Errorf("State() = %+v, want %+v", c.State(), wantState)
	}
}

func TestReset(t *testing.T) {
	c := New(DefaultThresholds())
	c.Classify(centered)
	if len(c.Classify(centered)) != 0 {
		t.Fatal("expected steady state before reset")
	}

	c.Reset()
	if got := len(c.Classify(centered)); got != 4 {
		t.Errorf("expected all four axes to fire after reset, got %d", got)
	}
}

func TestNonFiniteRatioLeavesAxisAlone(t *testing.T) {
	c := New(DefaultThresholds())
	c.Classify(centered)

	rs := centered
	rs.HeadPoseX = math.NaN()
	rs.RightEye = math.Inf(-1)
	if ev := c.Classify(rs); len(ev) != 0 {
		t.Errorf("expected no events, got %v", ev)
	}
	if c.State().HeadX != HeadXCenter || c.State().RightEye != EyeOpen {
		t.Errorf("state changed on non-finite input: %+v", c.State())
	}
}

func TestCustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.Eye = 0.3
	c := New(th)

	rs := centered
	rs.RightEye = 0.5
	got := kindsOn(c.Classify(rs), types.PanelRightEye)
	if !equalKinds(got, []types.EventKind{types.RightEyeOpen}) {
		t.Errorf("got %v, want [RightEyeOpen] with eye threshold 0.3", got)
	}
	if c.Thresholds().Eye != 0.3 {
		t.Errorf("Thresholds().Eye = %v", c.Thresholds().Eye)
	}
}

func TestThresholdsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Thresholds)
		wantErr bool
	}{
		{"defaults", func(*Thresholds) {}, false},
		{"inverted x band", func(th *Thresholds) { th.HeadLeft = 2.0 }, true},
		{"inverted y band", func(th *Thresholds) { th.HeadUp = 1.5 }, true},
		{"NaN eye", func(th *Thresholds) { th.Eye = math.NaN() }, true},
		{"infinite right", func(th *Thresholds) { th.HeadRight = math.Inf(1) }, true},
		{"collapsed x band", func(th *Thresholds) { th.HeadLeft = th.HeadRight }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := DefaultThresholds()
			tt.mutate(&th)
			if err := th.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
