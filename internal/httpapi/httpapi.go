// Package httpapi exposes a registry over HTTP: listings, envelope
// dispatch and a WebSocket JSON-RPC endpoint.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	mcp "github.com/tmc/mockmcp"
	"github.com/tmc/mockmcp/internal/wstransport"
)

// maxBody bounds the size of a dispatch request.
const maxBody = 1 << 20

// Server routes HTTP requests to a registry.
type Server struct {
	srv    *mcp.Server
	reg    *mcp.Registry
	router *chi.Mux
	logger *zap.Logger
}

// New constructs a Server with middleware and routes configured.
func New(srv *mcp.Server, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		srv:    srv,
		reg:    srv.Registry(),
		router: chi.NewRouter(),
		logger: logger,
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/health", s.handleHealth)
		r.Get("/tools", s.handleListTools)
		r.Get("/resources", s.handleListResources)
		r.Post("/dispatch", s.handleDispatch)
	})
	// Sessions outlive the request timeout.
	s.router.Handle("/mcp/ws", wstransport.NewHandler(srv, logger))

	return s
}

// Router exposes the root HTTP handler for the server.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, mcp.ListToolsReply{Tools: s.reg.Tools()})
}

func (s *Server) handleListResources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, mcp.ListResourcesReply{Resources: s.reg.Resources()})
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, mcp.ErrorResponse(&mcp.InvalidRequestError{Reason: "read body", Err: err}))
		return
	}
	resp := s.srv.Dispatch(r.Context(), body)
	writeJSON(w, statusFor(resp), resp)
}

// statusFor maps an envelope error kind to an HTTP status.
func statusFor(resp mcp.Response) int {
	if resp.Error == nil {
		return http.StatusOK
	}
	switch resp.Error.Kind {
	case mcp.KindNotFound:
		return http.StatusNotFound
	case mcp.KindValidation, mcp.KindInvalidRequest:
		return http.StatusBadRequest
	case mcp.KindRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
