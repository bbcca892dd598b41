// Package display renders state changes as text, one slot per panel.
package display

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/andresmejia3/facesignal/internal/types"
)

// Panels lists the display slots in on-screen order.
var Panels = []types.Panel{
	types.PanelRightEye,
	types.PanelLeftEye,
	types.PanelHeadPoseX,
	types.PanelHeadPoseY,
}

var panelTitles = map[types.Panel]string{
	types.PanelRightEye:  "right eye",
	types.PanelLeftEye:   "left eye",
	types.PanelHeadPoseX: "head pose x",
	types.PanelHeadPoseY: "head pose y",
}

// Title returns the human name of a panel.
func Title(p types.Panel) string {
	if t, ok := panelTitles[p]; ok {
		return t
	}
	return string(p)
}

// Console prints a line per event and remembers the latest label of every panel.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	labels map[types.Panel]string
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w, labels: make(map[types.Panel]string)}
}

// Emit implements session.Sink.
func (c *Console) Emit(_ context.Context, fe types.FrameEvents) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range fe.Events {
		panel := e.Kind.Panel()
		c.labels[panel] = e.Kind.Label()
		if _, err := fmt.Fprintf(c.w, "[frame %d] %-11s : %s\n", fe.Seq, Title(panel), e.Kind.Label()); err != nil {
			return fmt.Errorf("console write: %w", err)
		}
	}
	return nil
}

// Label returns what the panel currently shows; "" until its first event.
func (c *Console) Label(p types.Panel) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.labels[p]
}

// Summary writes the final label of every panel.
func (c *Console) Summary(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range Panels {
		label := c.labels[p]
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(w, "   %-11s : %s\n", Title(p), label)
	}
}
