package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/andresmejia3/facesignal/internal/broadcast"
	"github.com/andresmejia3/facesignal/internal/classifier"
	"github.com/andresmejia3/facesignal/internal/config"
	"github.com/andresmejia3/facesignal/internal/display"
	"github.com/andresmejia3/facesignal/internal/landmark"
	applog "github.com/andresmejia3/facesignal/internal/log"
	"github.com/andresmejia3/facesignal/internal/session"
	"github.com/andresmejia3/facesignal/internal/store"
)

// Options holds the sink and frame settings shared by replay and watch.
type Options struct {
	InputPath string
	// Width and Height override the configured frame size when set.
	Width     float64
	Height    float64
	WSAddr    string
	Record    bool
	Label     string
	SessionID string
	Quiet     bool
}

type pipeline struct {
	session *session.Session
	console *display.Console
	hub     *broadcast.Hub
	stopHub context.CancelFunc
	width   float64
	height  float64
}

// buildPipeline validates the effective configuration and wires the session to its
// sinks: console, websocket hub and Postgres recorder.
func buildPipeline(ctx context.Context, cfg *config.Config, out io.Writer, opts Options, sessOpts session.Options) (*pipeline, error) {
	c := *cfg
	if opts.Width != 0 {
		c.Frame.Width = opts.Width
	}
	if opts.Height != 0 {
		c.Frame.Height = opts.Height
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	ext, err := landmark.NewExtractor(c.Frame.Width, c.Frame.Height, c.Epsilon)
	if err != nil {
		return nil, err
	}
	cls := classifier.New(c.Thresholds)

	if opts.SessionID != "" {
		sessOpts.ID = opts.SessionID
	}
	if sessOpts.ID == "" {
		sessOpts.ID = uuid.NewString()
	}

	p := &pipeline{width: c.Frame.Width, height: c.Frame.Height, stopHub: func() {}}
	var sinks session.MultiSink

	if !opts.Quiet {
		p.console = display.NewConsole(out)
		sinks = append(sinks, p.console)
	}

	if opts.Record {
		db, err := openStore(ctx)
		if err != nil {
			return nil, err
		}
		err = db.EnsureSession(ctx, store.Session{
			ID:          sessOpts.ID,
			Source:      opts.InputPath,
			Label:       opts.Label,
			FrameWidth:  int(c.Frame.Width),
			FrameHeight: int(c.Frame.Height),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to register session: %w", err)
		}
		sinks = append(sinks, store.Recorder{Store: db})
		fmt.Fprintf(os.Stderr, "🗄️  Recording session %s\n", sessOpts.ID)
	}

	if opts.WSAddr != "" {
		p.hub = broadcast.NewHub()
		hubCtx, cancel := context.WithCancel(ctx)
		p.stopHub = cancel
		go func() {
			if err := p.hub.Serve(hubCtx, opts.WSAddr); err != nil {
				applog.Error(applog.Fields{"addr": opts.WSAddr, "error": err.Error()}, "websocket server stopped")
			}
		}()
		sinks = append(sinks, p.hub)
		fmt.Fprintf(os.Stderr, "📡 Broadcasting events on ws://%s/events\n", opts.WSAddr)
	}

	p.session = session.New(ext, cls, sinks, sessOpts)
	return p, nil
}

// finish stops the hub and prints the run summary.
func (p *pipeline) finish(stats session.Stats) {
	p.stopHub()

	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "📊 SESSION SUMMARY (%s)\n", p.session.ID())
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
	if p.console != nil {
		p.console.Summary(os.Stderr)
		fmt.Fprintln(os.Stderr)
	}
	fmt.Fprintf(os.Stderr, "🎞️  Frames:          %d\n", stats.Frames)
	fmt.Fprintf(os.Stderr, "🙈 Without a face:  %d\n", stats.NoFace)
	fmt.Fprintf(os.Stderr, "⚠️  Skipped:         %d\n", stats.Skipped)
	fmt.Fprintf(os.Stderr, "🔔 Events:          %d\n", stats.Events)
	if stats.SinkErrors > 0 {
		fmt.Fprintf(os.Stderr, "❗ Delivery errors: %d\n", stats.SinkErrors)
	}
	if stats.Dropped > 0 {
		fmt.Fprintf(os.Stderr, "🗑️  Dropped:         %d\n", stats.Dropped)
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}
