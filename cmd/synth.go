package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/facesignal/internal/landmark"
	"github.com/andresmejia3/facesignal/internal/stream"
	"github.com/andresmejia3/facesignal/internal/types"
)

var (
	synthOut    string
	synthRepeat int
	synthFPS    float64
)

var synthCmd = &cobra.Command{
	Use:   "synth <step>...",
	Short: "Generate a landmark stream that produces the given ratios",
	Long: `Each step sets some ratios on top of a neutral face (all ratios 1.0), e.g.

  facesignal synth re=0.5 le=0.5 "re=1 le=1 hx=2" hy=0.5 -o blink.jsonl

Keys: re (right eye), le (left eye), hx (head pose x), hy (head pose y).
Values inside one step are separated by spaces or commas.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		out := cmd.OutOrStdout()
		if synthOut != "" && synthOut != "-" {
			f, err := os.Create(synthOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return runSynth(out, args, synthRepeat, synthFPS)
	},
}

func init() {
	synthCmd.Flags().StringVarP(&synthOut, "output", "o", "-", `Output file, or "-" for stdout`)
	synthCmd.Flags().IntVarP(&synthRepeat, "repeat", "r", 1, "Frames emitted per step")
	synthCmd.Flags().Float64Var(&synthFPS, "fps", 30, "Frame rate used for timestamps")
	rootCmd.AddCommand(synthCmd)
}

func runSynth(out io.Writer, steps []string, repeat int, fps float64) error {
	if repeat < 1 {
		return fmt.Errorf("repeat must be >= 1, got %d", repeat)
	}
	if fps <= 0 {
		return fmt.Errorf("fps must be > 0, got %g", fps)
	}

	buf := bufio.NewWriter(out)
	w := stream.NewWriter(buf)
	start := time.Now().UTC()
	frameDur := time.Duration(float64(time.Second) / fps)

	seq := 0
	for _, step := range steps {
		rs, err := parseStep(step)
		if err != nil {
			return err
		}
		face := landmark.Synthesize(rs)
		for i := 0; i < repeat; i++ {
			seq++
			frame := types.LandmarkFrame{
				Seq:       seq,
				Faces:     []types.Face{face},
				Timestamp: start.Add(time.Duration(seq-1) * frameDur),
			}
			if err := w.Write(frame); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

// parseStep reads "re=0.5,hx=2" style assignments over a neutral RatioSet.
func parseStep(step string) (types.RatioSet, error) {
	rs := types.RatioSet{RightEye: 1, LeftEye: 1, HeadPoseX: 1, HeadPoseY: 1}
	fields := strings.FieldsFunc(step, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return rs, fmt.Errorf("empty step")
	}

	for _, f := range fields {
		key, raw, ok := strings.Cut(f, "=")
		if !ok {
			return rs, fmt.Errorf("step %q: expected key=value, got %q", step, f)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return rs, fmt.Errorf("step %q: %w", step, err)
		}
		switch key {
		case "re":
			rs.RightEye = v
		case "le":
			rs.LeftEye = v
		case "hx":
			rs.HeadPoseX = v
		case "hy":
			rs.HeadPoseY = v
		default:
			return rs, fmt.Errorf("step %q: unknown key %q", step, key)
		}
	}
	return rs, nil
}
