// Package jsonrpc implements newline-delimited JSON-RPC 2.0 over a byte
// stream.
package jsonrpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Version is the only JSON-RPC version accepted.
const Version = "2.0"

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

// Method handles a JSON-RPC method call
type Method func(ctx context.Context, params json.RawMessage) (any, error)

// Server implements a JSON-RPC 2.0 server
type Server struct {
	methods sync.Map // map[string]Method
	logger  *zap.Logger

	mu    sync.Mutex
	conns map[*lineWriter]struct{}
}

// NewServer creates a new JSON-RPC server. A nil logger discards output.
func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{logger: logger, conns: make(map[*lineWriter]struct{})}
}

// RegisterMethod registers a method handler
func (s *Server) RegisterMethod(name string, method Method) {
	s.methods.Store(name, method)
}

// Request represents a JSON-RPC request. A request without an ID is a
// notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool { return len(r.ID) == 0 }

// Response represents a JSON-RPC response
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error represents a JSON-RPC error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

var nullID = json.RawMessage("null")

// Serve handles requests read from rw until EOF or ctx is done. Each
// message occupies one line.
func (s *Server) Serve(ctx context.Context, rw io.ReadWriter) error {
	in := bufio.NewReader(rw)
	w := &lineWriter{enc: json.NewEncoder(rw)}
	s.mu.Lock()
	s.conns[w] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, w)
		s.mu.Unlock()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := in.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			if werr := s.handleLine(ctx, w, line); werr != nil {
				return fmt.Errorf("encode error: %w", werr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
	}
}

// Notify sends a notification to every connection being served.
func (s *Server) Notify(method string, params json.RawMessage) error {
	msg := Request{JSONRPC: Version, Method: method, Params: params}

	s.mu.Lock()
	conns := make([]*lineWriter, 0, len(s.conns))
	for w := range s.conns {
		conns = append(conns, w)
	}
	s.mu.Unlock()

	var errs []error
	for _, w := range conns {
		if err := w.write(msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) handleLine(ctx context.Context, w *lineWriter, line []byte) error {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Debug("parse error", zap.Error(err))
		return w.writeError(nullID, CodeParseError, "parse error")
	}

	if req.JSONRPC != Version || req.Method == "" {
		if req.IsNotification() {
			return nil
		}
		return w.writeError(req.ID, CodeInvalidRequest, "invalid JSON-RPC request")
	}

	s.logger.Debug("request received",
		zap.String("method", req.Method),
		zap.ByteString("id", req.ID))

	m, ok := s.methods.Load(req.Method)
	if !ok {
		if req.IsNotification() {
			return nil
		}
		return w.writeError(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}

	result, err := m.(Method)(ctx, req.Params)
	if req.IsNotification() {
		if err != nil {
			s.logger.Debug("notification failed", zap.String("method", req.Method), zap.Error(err))
		}
		return nil
	}
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			return w.write(Response{JSONRPC: Version, ID: req.ID, Error: rpcErr})
		}
		return w.writeError(req.ID, CodeServerError, err.Error())
	}

	resultBytes, err := json.Marshal(result)
	if err != nil {
		return w.writeError(req.ID, CodeInternalError, fmt.Sprintf("marshal error: %v", err))
	}
	return w.write(Response{JSONRPC: Version, ID: req.ID, Result: resultBytes})
}

// lineWriter serializes writes of whole messages.
type lineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (w *lineWriter) write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

func (w *lineWriter) writeError(id json.RawMessage, code int, message string) error {
	if len(id) == 0 {
		id = nullID
	}
	return w.write(Response{
		JSONRPC: Version,
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
		},
	})
}
