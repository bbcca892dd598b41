package worker

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/andresmejia3/facesignal/internal/types"
	"github.com/andresmejia3/facesignal/internal/utils" // Using the SafeCommand wrapper
)

// DefaultCommand launches the bundled face-mesh script.
var DefaultCommand = []string{"python3", "-u", "python/face_mesh.py"}

const (
	statusOK    = 0
	statusError = 1

	// Each landmark is three big-endian float32 values.
	pointSize = 12

	// MaxResponseSize bounds a single reply; a handful of 468-point faces is a few KB.
	MaxResponseSize = 64 * 1024 * 1024
)

// ErrMalformedResponse is returned when the worker's reply does not follow the protocol.
var ErrMalformedResponse = errors.New("malformed worker response")

// InferenceError is a failure the worker reported for a single frame. The worker
// itself is still usable.
type InferenceError struct {
	Msg string
}

func (e *InferenceError) Error() string {
	return "inference worker error: " + e.Msg
}

// InferenceWorker drives one face-mesh process. It is not safe for concurrent use;
// run one per goroutine.
type InferenceWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser
}

// New starts command (DefaultCommand when empty) with a result pipe on FD 3.
func New(id int, command []string) (*InferenceWorker, error) {
	if len(command) == 0 {
		command = DefaultCommand
	}
	// 1. Initialize the SafeCommand so crash logs survive
	proc := utils.NewSafeCommand(command[0], command[1:]...)

	// Create a side-channel pipe (FD 3) so stray prints on stdout can't corrupt results
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	proc.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := proc.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := proc.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &InferenceWorker{
		ID:       id,
		Cmd:      proc,
		Stdin:    stdin,
		DataPipe: r,
	}, nil
}

// Communicate sends one length-prefixed request and returns the raw reply payload.
func (w *InferenceWorker) Communicate(data []byte) ([]byte, error) {
	// Protocol: [Length][Data]
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // A worker that died on import shows up here
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > MaxResponseSize {
		return nil, fmt.Errorf("%w: reply of %d bytes exceeds %d", ErrMalformedResponse, respLen, MaxResponseSize)
	}
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// ProcessFrame runs face-mesh inference on one JPEG and returns the faces found,
// in the order the model reported them.
func (w *InferenceWorker) ProcessFrame(jpeg []byte) ([]types.Face, error) {
	resp, err := w.Communicate(jpeg)
	if err != nil {
		return nil, err
	}
	return DecodeResponse(resp)
}

// DecodeResponse parses a reply payload.
//
//	status 0: [u32 numFaces] { [u32 numPoints] numPoints x (x, y, z float32) }
//	status 1: [u32 msgLen] [msg]
func DecodeResponse(payload []byte) ([]types.Face, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedResponse)
	}
	r := bytes.NewReader(payload[1:])

	switch payload[0] {
	case statusOK:
	case statusError:
		var msgLen uint32
		if err := binary.Read(r, binary.BigEndian, &msgLen); err != nil {
			return nil, fmt.Errorf("%w: error length: %v", ErrMalformedResponse, err)
		}
		if int64(msgLen) > int64(r.Len()) {
			return nil, fmt.Errorf("%w: error message truncated", ErrMalformedResponse)
		}
		msg := make([]byte, msgLen)
		io.ReadFull(r, msg)
		return nil, &InferenceError{Msg: string(msg)}
	default:
		return nil, fmt.Errorf("%w: unknown status %d", ErrMalformedResponse, payload[0])
	}

	var numFaces uint32
	if err := binary.Read(r, binary.BigEndian, &numFaces); err != nil {
		return nil, fmt.Errorf("%w: face count: %v", ErrMalformedResponse, err)
	}
	// Every face needs at least its point count.
	if int64(numFaces)*4 > int64(r.Len()) {
		return nil, fmt.Errorf("%w: %d faces announced, %d bytes left", ErrMalformedResponse, numFaces, r.Len())
	}

	faces := make([]types.Face, 0, numFaces)
	for i := uint32(0); i < numFaces; i++ {
		var numPoints uint32
		if err := binary.Read(r, binary.BigEndian, &numPoints); err != nil {
			return nil, fmt.Errorf("%w: face %d point count: %v", ErrMalformedResponse, i, err)
		}
		if int64(numPoints)*pointSize > int64(r.Len()) {
			return nil, fmt.Errorf("%w: face %d truncated", ErrMalformedResponse, i)
		}

		raw := make([]float32, int(numPoints)*3)
		if err := binary.Read(r, binary.BigEndian, raw); err != nil {
			return nil, fmt.Errorf("%w: face %d points: %v", ErrMalformedResponse, i, err)
		}
		face := make(types.Face, numPoints)
		for p := range face {
			face[p] = types.LandmarkPoint{
				X: float64(raw[p*3]),
				Y: float64(raw[p*3+1]),
				Z: float64(raw[p*3+2]),
			}
		}
		faces = append(faces, face)
	}
	return faces, nil
}

// EncodeResponse builds a status-0 payload in the layout the bundled script writes.
func EncodeResponse(faces []types.Face) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(statusOK)
	binary.Write(buf, binary.BigEndian, uint32(len(faces)))
	for _, face := range faces {
		binary.Write(buf, binary.BigEndian, uint32(len(face)))
		for _, p := range face {
			binary.Write(buf, binary.BigEndian, [3]float32{float32(p.X), float32(p.Y), float32(p.Z)})
		}
	}
	return buf.Bytes()
}

// Close shuts the worker down and waits for it to exit.
func (w *InferenceWorker) Close() error {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd == nil {
		return nil
	}
	return w.Cmd.Wait()
}
