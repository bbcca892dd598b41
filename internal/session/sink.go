package session

import (
	"context"
	"errors"

	"github.com/andresmejia3/facesignal/internal/types"
)

// Sink receives the events of every frame that changed at least one state.
type Sink interface {
	Emit(ctx context.Context, fe types.FrameEvents) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, fe types.FrameEvents) error

func (f SinkFunc) Emit(ctx context.Context, fe types.FrameEvents) error {
	return f(ctx, fe)
}

// MultiSink delivers to every sink in order; one failing sink does not starve the rest.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, fe types.FrameEvents) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, fe); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
