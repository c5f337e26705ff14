// Package wstransport carries the newline-delimited JSON-RPC stream over
// WebSocket. Each WebSocket message holds one JSON-RPC message.
package wstransport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	mcp "github.com/tmc/mockmcp"
)

// Conn adapts a WebSocket connection to io.ReadWriteCloser.
type Conn struct {
	ws  *websocket.Conn
	id  string
	buf bytes.Buffer

	writeMu sync.Mutex
}

// NewConn wraps ws and assigns it a connection id.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws, id: ulid.Make().String()}
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// Read returns the next message, terminated by a newline.
func (c *Conn) Read(p []byte) (int, error) {
	for c.buf.Len() == 0 {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			continue
		}
		c.buf.Write(data)
		c.buf.WriteByte('\n')
	}
	return c.buf.Read(p)
}

// Write sends p as one text message. Callers write whole messages.
func (c *Conn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, bytes.TrimRight(p, "\n")); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a close frame and closes the connection.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.ws.Close()
}

// Handler upgrades requests and serves JSON-RPC on the resulting
// connection until the peer disconnects.
type Handler struct {
	srv      *mcp.Server
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler returns a Handler serving srv.
func NewHandler(srv *mcp.Server, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{srv: srv, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := NewConn(ws)
	log := h.logger.With(zap.String("conn", conn.ID()), zap.String("remote", r.RemoteAddr))
	log.Info("websocket session started")

	if err := h.srv.ServeConn(r.Context(), conn); err != nil {
		log.Info("websocket session ended", zap.Error(err))
		return
	}
	log.Info("websocket session ended")
}

// Dial connects to a WebSocket endpoint served by Handler.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewConn(ws), nil
}
