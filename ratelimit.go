package mcp

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles protocol methods and tool calls. Limits are
// fixed at construction.
type RateLimiter struct {
	// Global limiter for all requests
	global *rate.Limiter
	// Per-method limiters
	methods map[string]*rate.Limiter
	// Per-tool limiters, "*" is the fallback
	tools map[string]*rate.Limiter
}

// RateLimitConfig defines rate limiting settings
type RateLimitConfig struct {
	GlobalRPS   float64
	GlobalBurst int
	MethodRPS   map[string]float64
	MethodBurst map[string]int
	ToolRPS     map[string]float64
	ToolBurst   map[string]int
}

// DefaultRateLimitConfig returns the limits used when rate limiting is
// switched on without explicit settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		GlobalRPS:   100,
		GlobalBurst: 50,
		MethodRPS: map[string]float64{
			MethodResourcesRead: 20,
			MethodResourcesList: 10,
			MethodToolsList:     10,
			MethodToolsCall:     10,
			MethodDispatch:      10,
		},
		MethodBurst: map[string]int{
			MethodResourcesRead: 10,
			MethodResourcesList: 5,
			MethodToolsList:     5,
			MethodToolsCall:     5,
			MethodDispatch:      5,
		},
		ToolRPS: map[string]float64{
			"*": 5,
		},
		ToolBurst: map[string]int{
			"*": 5,
		},
	}
}

// NewRateLimiter creates a new rate limiter with the given config
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		global:  rate.NewLimiter(rate.Limit(cfg.GlobalRPS), cfg.GlobalBurst),
		methods: make(map[string]*rate.Limiter),
		tools:   make(map[string]*rate.Limiter),
	}

	for method, rps := range cfg.MethodRPS {
		rl.methods[method] = rate.NewLimiter(rate.Limit(rps), cfg.MethodBurst[method])
	}
	for tool, rps := range cfg.ToolRPS {
		rl.tools[tool] = rate.NewLimiter(rate.Limit(rps), cfg.ToolBurst[tool])
	}

	return rl
}

// Allow waits until method may proceed or ctx is done.
func (rl *RateLimiter) Allow(ctx context.Context, method string) error {
	if err := rl.global.Wait(ctx); err != nil {
		return &RateLimitError{Key: method, Err: err}
	}

	if limiter, ok := rl.methods[method]; ok {
		if err := limiter.Wait(ctx); err != nil {
			return &RateLimitError{Key: method, Err: err}
		}
	}
	return nil
}

// AllowTool waits until the tool may be invoked or ctx is done.
func (rl *RateLimiter) AllowTool(ctx context.Context, toolName string) error {
	limiter, ok := rl.tools[toolName]
	if !ok {
		limiter = rl.tools["*"]
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return &RateLimitError{Key: toolName, Err: err}
		}
	}
	return nil
}
