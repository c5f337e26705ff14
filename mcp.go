package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Protocol version constants
const (
	ProtocolVersion = "2024-11-05"
	JSONRPCVersion  = "2.0"
)

// DefaultMimeType is used for resources registered without a mime type.
const DefaultMimeType = "text/plain"

// LoggingLevel represents the severity of a log message (RFC-5424)
type LoggingLevel string

const (
	LogDebug     LoggingLevel = "debug"
	LogInfo      LoggingLevel = "info"
	LogNotice    LoggingLevel = "notice"
	LogWarning   LoggingLevel = "warning"
	LogError     LoggingLevel = "error"
	LogCritical  LoggingLevel = "critical"
	LogAlert     LoggingLevel = "alert"
	LogEmergency LoggingLevel = "emergency"
)

type toolEntry struct {
	name        string
	description string
	schema      InputSchema
	handler     ToolHandler
}

type resourceEntry struct {
	uri         string
	description string
	mimeType    string
	handler     ResourceHandler
}

// Registry holds the tools and resources of a server and dispatches
// invocations to their handlers. Entries are registered at startup and
// never removed.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]*toolEntry
	resources map[string]*resourceEntry
	toolOrder []string
	resOrder  []string
	sealed    bool

	caps     Capabilities
	version  string
	name     string
	dispatch *Dispatcher
	logger   *zap.Logger
}

// NewRegistry creates an empty registry with default configuration.
func NewRegistry(name, version string, opts ...Option) *Registry {
	r := &Registry{
		tools:     make(map[string]*toolEntry),
		resources: make(map[string]*resourceEntry),
		version:   version,
		name:      name,
		dispatch:  NewDispatcher(),
		logger:    zap.NewNop(),
		caps: Capabilities{
			Tools:     &ListChangedCapability{ListChanged: true},
			Resources: &ListChangedCapability{ListChanged: true},
			Logging:   &struct{}{},
		},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Name returns the server name advertised on initialize.
func (r *Registry) Name() string { return r.name }

// Version returns the server version advertised on initialize.
func (r *Registry) Version() string { return r.version }

// Capabilities returns the advertised server capabilities.
func (r *Registry) Capabilities() Capabilities { return r.caps }

// Handle subscribes h to a notification method.
func (r *Registry) Handle(method string, h Handler) {
	if r.dispatch != nil {
		r.dispatch.Handle(method, h)
	}
}

// NotifyListChanged emits a list change notification when the matching
// capability is advertised.
func (r *Registry) NotifyListChanged(method string) error {
	if r.dispatch == nil {
		return nil
	}
	switch method {
	case MethodToolListChanged:
		if r.caps.Tools == nil || !r.caps.Tools.ListChanged {
			return nil
		}
	case MethodResourceListChanged:
		if r.caps.Resources == nil || !r.caps.Resources.ListChanged {
			return nil
		}
	default:
		return fmt.Errorf("unsupported list change notification: %s", method)
	}
	return r.dispatch.NotifyListChanged(method)
}

// Seal prevents further registrations.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// RegisterTool adds a tool to the registry.
func (r *Registry) RegisterTool(name, description string, schema InputSchema, h ToolHandler) error {
	if name == "" {
		return fmt.Errorf("tool name required")
	}
	if h == nil {
		return fmt.Errorf("tool %q: handler required", name)
	}
	if err := schema.check(); err != nil {
		return fmt.Errorf("tool %q: %w", name, err)
	}

	r.mu.Lock()
	if r.sealed {
		r.mu.Unlock()
		return ErrSealed
	}
	if _, exists := r.tools[name]; exists {
		r.mu.Unlock()
		return &DuplicateNameError{Name: name}
	}
	r.tools[name] = &toolEntry{
		name:        name,
		description: description,
		schema:      schema,
		handler:     h,
	}
	r.toolOrder = append(r.toolOrder, name)
	r.mu.Unlock()

	r.logger.Debug("tool registered", zap.String("tool", name))
	if err := r.NotifyListChanged(MethodToolListChanged); err != nil {
		r.logger.Warn("list change notification failed", zap.Error(err))
	}
	return nil
}

// RegisterResource adds a resource to the registry.
func (r *Registry) RegisterResource(uri, description, mimeType string, h ResourceHandler) error {
	if uri == "" {
		return fmt.Errorf("resource uri required")
	}
	if h == nil {
		return fmt.Errorf("resource %q: handler required", uri)
	}
	if mimeType == "" {
		mimeType = DefaultMimeType
	}

	r.mu.Lock()
	if r.sealed {
		r.mu.Unlock()
		return ErrSealed
	}
	if _, exists := r.resources[uri]; exists {
		r.mu.Unlock()
		return &DuplicateURIError{URI: uri}
	}
	r.resources[uri] = &resourceEntry{
		uri:         uri,
		description: description,
		mimeType:    mimeType,
		handler:     h,
	}
	r.resOrder = append(r.resOrder, uri)
	r.mu.Unlock()

	r.logger.Debug("resource registered", zap.String("uri", uri))
	if err := r.NotifyListChanged(MethodResourceListChanged); err != nil {
		r.logger.Warn("list change notification failed", zap.Error(err))
	}
	return nil
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]ToolInfo, 0, len(r.toolOrder))
	for _, name := range r.toolOrder {
		t := r.tools[name]
		tools = append(tools, ToolInfo{
			Name:        t.name,
			Description: t.description,
			InputSchema: t.schema.JSONSchema(),
		})
	}
	return tools
}

// Resources returns the registered resources in registration order.
func (r *Registry) Resources() []ResourceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resources := make([]ResourceInfo, 0, len(r.resOrder))
	for _, uri := range r.resOrder {
		e := r.resources[uri]
		resources = append(resources, ResourceInfo{
			URI:         e.uri,
			Name:        e.uri,
			Description: e.description,
			MimeType:    e.mimeType,
		})
	}
	return resources
}

// InvokeTool validates args and calls the named tool.
func (r *Registry) InvokeTool(ctx context.Context, name string, args json.RawMessage) (*ToolResult, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &NotFoundError{Entry: EntryTool, Key: name}
	}
	if errs := t.schema.Validate(args); len(errs) > 0 {
		return nil, &ValidationError{Tool: name, Fields: errs}
	}

	content, err := callTool(ctx, t, args)
	if err != nil {
		return nil, &HandlerError{Name: name, Err: err}
	}
	if content == nil {
		content = []Content{}
	}
	return &ToolResult{Content: content}, nil
}

// InvokeResource reads the resource identified by uri.
func (r *Registry) InvokeResource(ctx context.Context, uri string) (*ResourceResult, error) {
	r.mu.RLock()
	e, ok := r.resources[uri]
	r.mu.RUnlock()

	if !ok {
		return nil, &NotFoundError{Entry: EntryResource, Key: uri}
	}

	text, err := readResource(ctx, e)
	if err != nil {
		return nil, &HandlerError{Name: uri, Err: err}
	}
	return &ResourceResult{
		Contents: []Content{{
			Type:     ContentText,
			Text:     text,
			MimeType: e.mimeType,
			URI:      e.uri,
		}},
	}, nil
}

func callTool(ctx context.Context, t *toolEntry, args json.RawMessage) (content []Content, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return t.handler.CallTool(ctx, args)
}

func readResource(ctx context.Context, e *resourceEntry) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return e.handler.ReadResource(ctx)
}
