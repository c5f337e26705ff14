package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/tmc/mockmcp/internal/jsonrpc"
)

// MCP method names served by Server.
const (
	MethodInitialize    = "initialize"
	MethodPing          = "ping"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodResourcesList = "resources/list"
	MethodResourcesRead = "resources/read"
	MethodDispatch      = "dispatch"
)

// Server exposes a Registry over JSON-RPC.
type Server struct {
	reg          *Registry
	rpc          *jsonrpc.Server
	limiter      *RateLimiter
	logger       *zap.Logger
	instructions string
}

// NewServer creates a server for reg. The registry is sealed: no further
// tools or resources can be registered.
func NewServer(reg *Registry, opts ...ServerOption) *Server {
	reg.Seal()
	s := &Server{
		reg:    reg,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.rpc = jsonrpc.NewServer(s.logger)
	s.method(MethodInitialize, s.initialize)
	s.method(MethodPing, func(context.Context, json.RawMessage) (any, error) { return struct{}{}, nil })
	s.method(MethodInitialized, func(context.Context, json.RawMessage) (any, error) { return nil, nil })
	s.method(MethodToolsList, s.listTools)
	s.method(MethodToolsCall, s.callTool)
	s.method(MethodResourcesList, s.listResources)
	s.method(MethodResourcesRead, s.readResource)
	s.method(MethodDispatch, s.dispatch)

	reg.Handle(MethodLogging, s.forward)
	reg.Handle(MethodToolListChanged, s.forward)
	reg.Handle(MethodResourceListChanged, s.forward)
	return s
}

// forward relays a registry notification to every connected client.
// List changes are already gated by the registry; log messages need the
// logging capability.
func (s *Server) forward(method string, params json.RawMessage) error {
	if method == MethodLogging && s.reg.Capabilities().Logging == nil {
		return nil
	}
	return s.rpc.Notify(method, params)
}

// Registry returns the registry served by s.
func (s *Server) Registry() *Registry { return s.reg }

// method registers h behind rate limiting and error translation.
func (s *Server) method(name string, h jsonrpc.Method) {
	s.rpc.RegisterMethod(name, func(ctx context.Context, params json.RawMessage) (any, error) {
		if s.limiter != nil {
			if err := s.limiter.Allow(ctx, name); err != nil {
				return nil, rpcError(err)
			}
		}
		res, err := h(ctx, params)
		if err != nil {
			return nil, rpcError(err)
		}
		return res, nil
	})
}

// ServeConn serves JSON-RPC on a single connection until it is closed.
func (s *Server) ServeConn(ctx context.Context, conn io.ReadWriteCloser) error {
	defer conn.Close()
	return s.rpc.Serve(ctx, conn)
}

// ServeTransport serves t using its own context.
func (s *Server) ServeTransport(t Transport) error {
	return s.ServeConn(t.Context(), t)
}

// Dispatch routes a raw envelope to the registry once the dispatch rate
// limit allows it. A throttled request gets a RateLimitError envelope.
func (s *Server) Dispatch(ctx context.Context, data []byte) Response {
	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, MethodDispatch); err != nil {
			s.logger.Info("dispatch throttled", zap.Error(err))
			return ErrorResponse(err)
		}
	}
	return s.reg.DispatchJSON(ctx, data)
}

// ServeEnvelopes serves the plain envelope protocol: one Request per
// line in, one Response per line out.
func (s *Server) ServeEnvelopes(ctx context.Context, rw io.ReadWriter) error {
	in := bufio.NewReader(rw)
	enc := json.NewEncoder(rw)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := in.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			resp := s.Dispatch(ctx, line)
			if werr := enc.Encode(resp); werr != nil {
				return fmt.Errorf("write response: %w", werr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}
	}
}

func (s *Server) initialize(_ context.Context, params json.RawMessage) (any, error) {
	var args InitializeArgs
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, &InvalidRequestError{Reason: "initialize params", Err: err}
		}
	}
	s.logger.Info("client initialized",
		zap.String("client", args.ClientInfo.Name),
		zap.String("clientVersion", args.ClientInfo.Version))

	return &InitializeReply{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    s.reg.Capabilities(),
		ServerInfo: Implementation{
			Name:    s.reg.Name(),
			Version: s.reg.Version(),
		},
		Instructions: s.instructions,
	}, nil
}

func (s *Server) listTools(context.Context, json.RawMessage) (any, error) {
	return &ListToolsReply{Tools: s.reg.Tools()}, nil
}

func (s *Server) listResources(context.Context, json.RawMessage) (any, error) {
	return &ListResourcesReply{Resources: s.reg.Resources()}, nil
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, error) {
	var args CallToolArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, &InvalidRequestError{Reason: "tools/call params", Err: err}
	}
	if s.limiter != nil {
		if err := s.limiter.AllowTool(ctx, args.Name); err != nil {
			return nil, err
		}
	}
	res, err := s.reg.InvokeTool(ctx, args.Name, args.Arguments)
	if err != nil {
		s.reg.reportFailure(Request{Operation: OpTool, Name: args.Name}, err)
		return nil, err
	}
	return res, nil
}

func (s *Server) readResource(ctx context.Context, params json.RawMessage) (any, error) {
	var args ReadResourceArgs
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, &InvalidRequestError{Reason: "resources/read params", Err: err}
	}
	res, err := s.reg.InvokeResource(ctx, args.URI)
	if err != nil {
		s.reg.reportFailure(Request{Operation: OpResource, URI: args.URI}, err)
		return nil, err
	}
	return res, nil
}

// dispatch serves the envelope over JSON-RPC. Failures are part of the
// envelope, not JSON-RPC errors.
func (s *Server) dispatch(ctx context.Context, params json.RawMessage) (any, error) {
	return s.reg.DispatchJSON(ctx, params), nil
}

// rpcError translates err into a JSON-RPC error carrying its kind.
func rpcError(err error) *jsonrpc.Error {
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	code := CodeInternalError
	var coder interface{ RPCCode() int }
	if errors.As(err, &coder) {
		code = coder.RPCCode()
	}
	var data any = map[string]any{"kind": ErrorKind(err)}
	var withData interface{ RPCData() any }
	if errors.As(err, &withData) {
		data = withData.RPCData()
	}
	return &jsonrpc.Error{Code: code, Message: err.Error(), Data: data}
}
