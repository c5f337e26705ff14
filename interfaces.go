package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Transport handles MCP protocol communication.
type Transport interface {
	io.ReadWriteCloser
	// Context returns the context for this transport
	Context() context.Context
}

// ToolHandler executes a tool. Arguments have already been validated
// against the tool's InputSchema.
type ToolHandler interface {
	CallTool(ctx context.Context, args json.RawMessage) ([]Content, error)
}

// ToolHandlerFunc adapts a function to ToolHandler.
type ToolHandlerFunc func(ctx context.Context, args json.RawMessage) ([]Content, error)

func (f ToolHandlerFunc) CallTool(ctx context.Context, args json.RawMessage) ([]Content, error) {
	return f(ctx, args)
}

// ResourceHandler produces the text of a resource.
type ResourceHandler interface {
	ReadResource(ctx context.Context) (string, error)
}

// ResourceHandlerFunc adapts a function to ResourceHandler.
type ResourceHandlerFunc func(ctx context.Context) (string, error)

func (f ResourceHandlerFunc) ReadResource(ctx context.Context) (string, error) {
	return f(ctx)
}

// TypedTool returns a ToolHandler that decodes the validated arguments
// into In before calling fn.
func TypedTool[In any](fn func(ctx context.Context, in In) ([]Content, error)) ToolHandler {
	return ToolHandlerFunc(func(ctx context.Context, args json.RawMessage) ([]Content, error) {
		var in In
		if len(args) > 0 && string(args) != "null" {
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("decode arguments: %w", err)
			}
		}
		return fn(ctx, in)
	})
}

// StaticText returns a ResourceHandler that always yields text.
func StaticText(text string) ResourceHandler {
	return ResourceHandlerFunc(func(context.Context) (string, error) {
		return text, nil
	})
}
