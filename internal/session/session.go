// Package session runs the extractor and classifier over a stream of landmark frames.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/andresmejia3/facesignal/internal/classifier"
	"github.com/andresmejia3/facesignal/internal/landmark"
	applog "github.com/andresmejia3/facesignal/internal/log"
	"github.com/andresmejia3/facesignal/internal/types"
)

// Options configures a Session. The zero value is usable.
type Options struct {
	// ID identifies the session to sinks. A random UUID is used when empty.
	ID string
	// Reorder makes Run release frames strictly by Seq, starting at Start and
	// advancing by Step. Without it frames are handled in arrival order.
	Reorder bool
	Start   int
	Step    int
	// OnFrame, when set, sees every frame Run releases, in release order.
	OnFrame func(types.LandmarkFrame)
	Logger  *logrus.Logger
}

// Stats summarises a Run.
type Stats struct {
	Frames     int
	NoFace     int
	Skipped    int
	Events     int
	SinkErrors int
	Dropped    int
}

// Session owns the classifier state for one continuous capture. Process may be
// called from several goroutines; frames are serialised by a mutex.
type Session struct {
	id    string
	start int
	step  int
	order bool
	tap   func(types.LandmarkFrame)

	mu         sync.Mutex
	extractor  *landmark.Extractor
	classifier *classifier.Classifier
	sink       Sink
	log        *logrus.Entry
}

// New wires a session. sink may be nil.
func New(ext *landmark.Extractor, cls *classifier.Classifier, sink Sink, opts Options) *Session {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Step < 1 {
		opts.Step = 1
	}
	if opts.Start == 0 {
		opts.Start = opts.Step
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.Logger()
	}
	return &Session{
		id:         opts.ID,
		start:      opts.Start,
		step:       opts.Step,
		order:      opts.Reorder,
		tap:        opts.OnFrame,
		extractor:  ext,
		classifier: cls,
		sink:       sink,
		log:        logger.WithField("session", opts.ID),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Armed returns the classifier's armed flags.
func (s *Session) Armed() classifier.DebounceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.classifier.Armed()
}

// EmitError reports that a frame was classified but its events did not reach the sink.
type EmitError struct {
	Seq int
	Err error
}

func (e *EmitError) Error() string {
	return fmt.Sprintf("frame %d: emit: %v", e.Seq, e.Err)
}

func (e *EmitError) Unwrap() error {
	return e.Err
}

// Process classifies a single frame. A frame without faces is a no-op. Extraction
// errors leave the classifier untouched and emit nothing. An *EmitError is returned
// after the state has already advanced.
func (s *Session) Process(ctx context.Context, frame types.LandmarkFrame) (types.FrameEvents, error) {
	fe := types.FrameEvents{SessionID: s.id, Seq: frame.Seq, Timestamp: frame.Timestamp}
	if fe.Timestamp.IsZero() {
		fe.Timestamp = time.Now()
	}
	if len(frame.Faces) == 0 {
		return fe, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"frame": frame.Seq, "faces": len(frame.Faces)}).Debug("received face landmarks")

	ratios, err := s.extractor.Extract(frame.Faces[0])
	if err != nil {
		fields := logrus.Fields{"frame": frame.Seq, "error": err.Error()}
		if errors.Is(err, landmark.ErrDegenerateGeometry) {
			s.log.WithFields(fields).Warn("skipping frame with degenerate geometry")
		} else {
			s.log.WithFields(fields).Error("skipping malformed frame")
		}
		return fe, fmt.Errorf("frame %d: %w", frame.Seq, err)
	}

	fe.Ratios = ratios
	fe.Events = s.classifier.Classify(ratios)
	if len(fe.Events) == 0 || s.sink == nil {
		return fe, nil
	}

	if err := s.sink.Emit(ctx, fe); err != nil {
		s.log.WithFields(logrus.Fields{"frame": frame.Seq, "error": err.Error()}).Error("failed to deliver events")
		return fe, &EmitError{Seq: frame.Seq, Err: err}
	}
	return fe, nil
}

// Run consumes frames until the channel closes or ctx is cancelled. It is the only
// consumer of frames; per-frame failures are counted and do not stop the loop.
func (s *Session) Run(ctx context.Context, frames <-chan types.LandmarkFrame) (Stats, error) {
	var stats Stats

	// Buffer for re-ordering frames (worker 2 may finish before worker 1)
	buffer := make(map[int]types.LandmarkFrame)
	next := s.start

	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				if len(buffer) > 0 {
					stats.Dropped += len(buffer)
					s.log.WithFields(logrus.Fields{"waiting_for": next, "buffered": len(buffer)}).Warn("input closed with frames still out of order")
				}
				return stats, nil
			}

			if !s.order {
				s.handle(ctx, frame, &stats)
				continue
			}

			if frame.Seq < next {
				stats.Dropped++
				s.log.WithFields(logrus.Fields{"frame": frame.Seq, "expected": next}).Warn("dropping late frame")
				continue
			}
			// The cursor never lands on an off-grid seq; buffering it would leak.
			if (frame.Seq-s.start)%s.step != 0 {
				stats.Dropped++
				s.log.WithFields(logrus.Fields{"frame": frame.Seq, "start": s.start, "step": s.step}).Warn("dropping frame outside the sampling grid")
				continue
			}
			buffer[frame.Seq] = frame

			// Process frames in strict order
			for {
				f, ok := buffer[next]
				if !ok {
					break
				}
				delete(buffer, next)
				s.handle(ctx, f, &stats)
				next += s.step
			}
		}
	}
}

func (s *Session) handle(ctx context.Context, frame types.LandmarkFrame, stats *Stats) {
	stats.Frames++
	if s.tap != nil {
		s.tap(frame)
	}
	if len(frame.Faces) == 0 {
		stats.NoFace++
		return
	}
	fe, err := s.Process(ctx, frame)
	var emitErr *EmitError
	switch {
	case errors.As(err, &emitErr):
		stats.Events += len(fe.Events)
		stats.SinkErrors++
	case err != nil:
		stats.Skipped++
	default:
		stats.Events += len(fe.Events)
	}
}
