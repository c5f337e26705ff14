package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tmc/mockmcp/internal/jsonrpc"
)

// RPCError is the error returned by Client calls that the server rejected.
type RPCError = jsonrpc.Error

// Client represents an MCP client.
type Client struct {
	rpc *jsonrpc.Client
}

// NewClient creates a new MCP client.
func NewClient(conn io.ReadWriteCloser) *Client {
	return &Client{rpc: jsonrpc.NewClient(conn)}
}

// Handle subscribes to notifications sent by the server.
func (c *Client) Handle(h Handler) {
	c.rpc.OnNotification(func(method string, params json.RawMessage) {
		_ = h(method, params)
	})
}

// Initialize performs the initialize handshake.
func (c *Client) Initialize(ctx context.Context, clientInfo Implementation) (*InitializeReply, error) {
	args := &InitializeArgs{
		ProtocolVersion: ProtocolVersion,
		ClientInfo:      clientInfo,
	}

	var reply InitializeReply
	if err := c.rpc.Call(ctx, MethodInitialize, args, &reply); err != nil {
		return nil, err
	}
	if err := c.rpc.Notify(ctx, MethodInitialized, nil); err != nil {
		return nil, fmt.Errorf("send initialized: %w", err)
	}
	return &reply, nil
}

// Ping checks that the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	return c.rpc.Call(ctx, MethodPing, nil, nil)
}

// ListTools requests available tools.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	var reply ListToolsReply
	if err := c.rpc.Call(ctx, MethodToolsList, &ListToolsArgs{}, &reply); err != nil {
		return nil, err
	}
	return reply.Tools, nil
}

// CallTool executes a tool. args is marshaled to JSON.
func (c *Client) CallTool(ctx context.Context, name string, args any) (*ToolResult, error) {
	argBytes, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}

	var reply ToolResult
	if err := c.rpc.Call(ctx, MethodToolsCall, &CallToolArgs{Name: name, Arguments: argBytes}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// ListResources requests available resources.
func (c *Client) ListResources(ctx context.Context) ([]ResourceInfo, error) {
	var reply ListResourcesReply
	if err := c.rpc.Call(ctx, MethodResourcesList, &ListResourcesArgs{}, &reply); err != nil {
		return nil, err
	}
	return reply.Resources, nil
}

// ReadResource reads a resource by uri.
func (c *Client) ReadResource(ctx context.Context, uri string) (*ResourceResult, error) {
	var reply ResourceResult
	if err := c.rpc.Call(ctx, MethodResourcesRead, &ReadResourceArgs{URI: uri}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Dispatch sends a request envelope and returns the response envelope.
func (c *Client) Dispatch(ctx context.Context, req Request) (*Response, error) {
	var resp Response
	if err := c.rpc.Call(ctx, MethodDispatch, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Call issues an arbitrary method and stores the raw result.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	var result json.RawMessage
	if err := c.rpc.Call(ctx, method, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.rpc.Close()
}
