package mcp

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds reported in error envelopes.
const (
	KindDuplicateName  = "DuplicateNameError"
	KindDuplicateURI   = "DuplicateUriError"
	KindNotFound       = "NotFoundError"
	KindValidation     = "ValidationError"
	KindHandler        = "HandlerError"
	KindInvalidRequest = "InvalidRequestError"
	KindRateLimit      = "RateLimitError"
	KindInternal       = "InternalError"
)

// JSON-RPC error codes used when errors cross the protocol boundary.
const (
	CodeInvalidRequest   = -32600
	CodeInvalidParams    = -32602
	CodeInternalError    = -32603
	CodeRateLimited      = -32000
	CodeResourceNotFound = -32002
)

// KindError is implemented by every error the registry returns.
type KindError interface {
	error
	Kind() string
}

// Compile-time verification that all error types implement KindError.
var (
	_ KindError = (*DuplicateNameError)(nil)
	_ KindError = (*DuplicateURIError)(nil)
	_ KindError = (*NotFoundError)(nil)
	_ KindError = (*ValidationError)(nil)
	_ KindError = (*HandlerError)(nil)
	_ KindError = (*InvalidRequestError)(nil)
	_ KindError = (*RateLimitError)(nil)
)

// ErrSealed is returned when registering into a registry that is already
// bound to a server.
var ErrSealed = errors.New("registry sealed: register before serving")

// DuplicateNameError reports a tool name registered twice.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("tool %q already registered", e.Name)
}

func (e *DuplicateNameError) Kind() string { return KindDuplicateName }

// DuplicateURIError reports a resource uri registered twice.
type DuplicateURIError struct {
	URI string
}

func (e *DuplicateURIError) Error() string {
	return fmt.Sprintf("resource %q already registered", e.URI)
}

func (e *DuplicateURIError) Kind() string { return KindDuplicateURI }

// EntryKind distinguishes tools from resources in lookups.
type EntryKind string

const (
	EntryTool     EntryKind = "tool"
	EntryResource EntryKind = "resource"
)

// NotFoundError reports an unknown tool name or resource uri.
type NotFoundError struct {
	Entry EntryKind
	Key   string
}

func (e *NotFoundError) Error() string {
	if e.Entry == EntryResource {
		return fmt.Sprintf("unknown resource: %s", e.Key)
	}
	return fmt.Sprintf("unknown tool: %s", e.Key)
}

func (e *NotFoundError) Kind() string { return KindNotFound }

func (e *NotFoundError) RPCCode() int {
	if e.Entry == EntryResource {
		return CodeResourceNotFound
	}
	return CodeInvalidParams
}

// FieldError is a single argument validation failure. Field is empty when
// the arguments as a whole are malformed.
type FieldError struct {
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

func (f FieldError) String() string {
	if f.Field == "" {
		return f.Reason
	}
	return f.Field + ": " + f.Reason
}

// ValidationError lists the offending fields of a tool call.
type ValidationError struct {
	Tool   string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(parts, "; "))
}

func (e *ValidationError) Kind() string { return KindValidation }
func (e *ValidationError) RPCCode() int { return CodeInvalidParams }
func (e *ValidationError) RPCData() any { return map[string]any{"kind": KindValidation, "fields": e.Fields} }

// HandlerError wraps a failure raised inside a handler.
type HandlerError struct {
	Name string
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Name, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
func (e *HandlerError) Kind() string  { return KindHandler }
func (e *HandlerError) RPCCode() int  { return CodeInternalError }

// InvalidRequestError reports a request envelope that cannot be dispatched.
type InvalidRequestError struct {
	Reason string
	Err    error
}

func (e *InvalidRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid request: %s: %v", e.Reason, e.Err)
	}
	return "invalid request: " + e.Reason
}

func (e *InvalidRequestError) Unwrap() error { return e.Err }
func (e *InvalidRequestError) Kind() string  { return KindInvalidRequest }
func (e *InvalidRequestError) RPCCode() int  { return CodeInvalidRequest }

// RateLimitError reports a call rejected by the rate limiter.
type RateLimitError struct {
	Key string
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %v", e.Key, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }
func (e *RateLimitError) Kind() string  { return KindRateLimit }
func (e *RateLimitError) RPCCode() int  { return CodeRateLimited }

// ErrorKind returns the envelope kind for err.
func ErrorKind(err error) string {
	var ke KindError
	if errors.As(err, &ke) {
		return ke.Kind()
	}
	return KindInternal
}
