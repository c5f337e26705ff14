// Package sdkbridge serves a registry through the official MCP Go SDK.
//
// The SDK server is a mirror: every tool and resource is looked up and
// invoked through the registry, so validation and error kinds are the
// same as on the other transports.
package sdkbridge

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	mcp "github.com/tmc/mockmcp"
)

// New builds an SDK server exposing the tools and resources of reg. The
// registry is sealed.
func New(reg *mcp.Registry, logger *zap.Logger) *sdk.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg.Seal()

	server := sdk.NewServer(&sdk.Implementation{Name: reg.Name(), Version: reg.Version()}, nil)

	for _, t := range reg.Tools() {
		server.AddTool(&sdk.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}, toolHandler(reg, t.Name, logger))
	}
	for _, r := range reg.Resources() {
		server.AddResource(&sdk.Resource{
			URI:         r.URI,
			Name:        r.Name,
			Description: r.Description,
			MIMEType:    r.MimeType,
		}, resourceHandler(reg, logger))
	}
	return server
}

// Serve runs the SDK server for reg on stdio until ctx is done or the
// client disconnects.
func Serve(ctx context.Context, reg *mcp.Registry, logger *zap.Logger) error {
	return New(reg, logger).Run(ctx, &sdk.StdioTransport{})
}

// toolHandler reports registry failures as an error result so the client
// sees the message rather than a protocol error.
func toolHandler(reg *mcp.Registry, name string, logger *zap.Logger) sdk.ToolHandler {
	return func(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
		var args []byte
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		resp := reg.Dispatch(ctx, mcp.Request{Operation: mcp.OpTool, Name: name, Args: args})
		if resp.Error != nil {
			logger.Debug("sdk tool call failed", zap.String("tool", name), zap.String("kind", resp.Error.Kind))
			return &sdk.CallToolResult{
				Content: []sdk.Content{&sdk.TextContent{Text: resp.Error.Message}},
				IsError: true,
			}, nil
		}

		content := make([]sdk.Content, 0, len(resp.Content))
		for _, c := range resp.Content {
			content = append(content, &sdk.TextContent{Text: c.Text})
		}
		return &sdk.CallToolResult{Content: content}, nil
	}
}

func resourceHandler(reg *mcp.Registry, logger *zap.Logger) sdk.ResourceHandler {
	return func(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
		uri := req.Params.URI
		resp := reg.Dispatch(ctx, mcp.Request{Operation: mcp.OpResource, URI: uri})
		if resp.Error != nil {
			logger.Debug("sdk resource read failed", zap.String("uri", uri), zap.String("kind", resp.Error.Kind))
			if resp.Error.Kind == mcp.KindNotFound {
				return nil, sdk.ResourceNotFoundError(uri)
			}
			return nil, fmt.Errorf("%s: %s", resp.Error.Kind, resp.Error.Message)
		}

		contents := make([]*sdk.ResourceContents, 0, len(resp.Content))
		for _, c := range resp.Content {
			contents = append(contents, &sdk.ResourceContents{
				URI:      c.URI,
				MIMEType: c.MimeType,
				Text:     c.Text,
			})
		}
		return &sdk.ReadResourceResult{Contents: contents}, nil
	}
}
