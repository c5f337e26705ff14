package mcp

import "go.uber.org/zap"

// Option configures a Registry
type Option func(*Registry)

// WithDispatcher configures a custom notification dispatcher
func WithDispatcher(d *Dispatcher) Option {
	return func(r *Registry) {
		r.dispatch = d
	}
}

// WithCapabilities configures the advertised capabilities
func WithCapabilities(caps Capabilities) Option {
	return func(r *Registry) {
		r.caps = caps
	}
}

// WithLogger sets the logger used by the registry
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithRateLimiting enables rate limiting of protocol methods and tool calls
func WithRateLimiting(cfg RateLimitConfig) ServerOption {
	return func(s *Server) {
		s.limiter = NewRateLimiter(cfg)
	}
}

// WithServerLogger sets the logger used by the server
func WithServerLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithInstructions sets the instructions returned on initialize
func WithInstructions(text string) ServerOption {
	return func(s *Server) {
		s.instructions = text
	}
}
