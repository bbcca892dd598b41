// Package stream reads and writes landmark frames as JSON Lines.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	applog "github.com/andresmejia3/facesignal/internal/log"
	"github.com/andresmejia3/facesignal/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// A full 468-point face serialises to roughly 30KB; leave room for several faces.
const maxLineSize = 4 * 1024 * 1024

type record struct {
	Seq       *int         `json:"seq,omitempty"`
	Timestamp *time.Time   `json:"ts,omitempty"`
	Faces     []types.Face `json:"faces"`
}

// ErrLineTooLong is reported for a line longer than the reader's limit. The rest of
// the line is discarded.
var ErrLineTooLong = errors.New("line too long")

// LineError reports a line that could not be decoded. The reader stays usable.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Reader decodes one LandmarkFrame per non-blank line.
type Reader struct {
	br      *bufio.Reader
	buf     []byte
	limit   int
	line    int
	ordinal int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64*1024), limit: maxLineSize}
}

// readLine returns the next line without its terminator. tooLong is set when the
// line exceeded the limit; its content is dropped.
func (r *Reader) readLine() (line []byte, tooLong bool, err error) {
	r.buf = r.buf[:0]
	n := 0
	for {
		chunk, err := r.br.ReadSlice('\n')
		n += len(chunk)
		if !tooLong {
			if n > r.limit {
				tooLong = true
				r.buf = r.buf[:0]
			} else {
				r.buf = append(r.buf, chunk...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if n == 0 {
				return nil, false, io.EOF
			}
			return r.buf, tooLong, nil
		case err != nil:
			return nil, false, err
		}
		return r.buf, tooLong, nil
	}
}

// Next returns the next frame, or io.EOF once the input is exhausted. Frames without
// a seq are numbered by their ordinal among non-blank lines, starting at 1.
func (r *Reader) Next() (types.LandmarkFrame, error) {
	for {
		line, tooLong, err := r.readLine()
		if errors.Is(err, io.EOF) {
			return types.LandmarkFrame{}, io.EOF
		}
		if err != nil {
			return types.LandmarkFrame{}, fmt.Errorf("reading landmark stream: %w", err)
		}
		r.line++

		if tooLong {
			r.ordinal++
			return types.LandmarkFrame{}, &LineError{Line: r.line, Err: fmt.Errorf("%w (limit %d bytes)", ErrLineTooLong, r.limit)}
		}
		raw := bytes.TrimSpace(line)
		if len(raw) == 0 {
			continue
		}
		r.ordinal++

		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return types.LandmarkFrame{}, &LineError{Line: r.line, Err: err}
		}

		frame := types.LandmarkFrame{Seq: r.ordinal, Faces: rec.Faces}
		if rec.Seq != nil {
			frame.Seq = *rec.Seq
		}
		if rec.Timestamp != nil {
			frame.Timestamp = *rec.Timestamp
		}
		return frame, nil
	}
}

// Writer encodes frames in the format Reader understands. It is safe for
// concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Write(frame types.LandmarkFrame) error {
	seq := frame.Seq
	rec := record{Seq: &seq, Faces: frame.Faces}
	if !frame.Timestamp.IsZero() {
		ts := frame.Timestamp.UTC()
		rec.Timestamp = &ts
	}
	if rec.Faces == nil {
		rec.Faces = []types.Face{}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding frame %d: %w", frame.Seq, err)
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(data); err != nil {
		return fmt.Errorf("writing frame %d: %w", frame.Seq, err)
	}
	return nil
}

// Flush flushes the underlying writer if it buffers.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if f, ok := w.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Feed pumps r into out until EOF, a read failure or cancellation, then closes out.
// Undecodable lines are logged and skipped.
func Feed(ctx context.Context, r *Reader, out chan<- types.LandmarkFrame) error {
	defer close(out)
	for {
		frame, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var lineErr *LineError
		if errors.As(err, &lineErr) {
			applog.Warn(applog.Fields{"line": lineErr.Line, "error": lineErr.Err.Error()}, "skipping malformed landmark line")
			continue
		}
		if err != nil {
			return err
		}

		select {
		case out <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
