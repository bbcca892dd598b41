// Package broadcast fans state changes out to websocket subscribers.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	applog "github.com/andresmejia3/facesignal/internal/log"
	"github.com/andresmejia3/facesignal/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const sendBuffer = 64

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub is a session.Sink that pushes every FrameEvents to all connected clients as
// a JSON text message. A client that cannot keep up is disconnected.
type Hub struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeTimeout time.Duration
	log          *logrus.Entry

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingInterval: 30 * time.Second,
		writeTimeout: 5 * time.Second,
		log:          applog.Logger().WithField("component", "broadcast"),
		clients:      make(map[*client]struct{}),
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and subscribes the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithField("error", err.Error()).Warn("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.log.WithField("remote", r.RemoteAddr).Info("subscriber connected")

	go h.writePump(c)
	go h.readPump(c)
}

// Emit implements session.Sink. It never blocks on a client.
func (h *Hub) Emit(_ context.Context, fe types.FrameEvents) error {
	msg, err := json.Marshal(fe)
	if err != nil {
		return fmt.Errorf("encoding frame %d: %w", fe.Seq, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.WithField("remote", c.conn.RemoteAddr().String()).Warn("dropping slow subscriber")
			h.removeLocked(c)
		}
	}
	return nil
}

// Close disconnects every subscriber. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.close()
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout)); err != nil {
				h.log.WithField("error", err.Error()).Debug("ping failed, dropping subscriber")
				h.remove(c)
				return
			}
		}
	}
}

// readPump discards client input; its only job is noticing the peer going away.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Serve exposes the hub at /events on addr until ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/events", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		h.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
