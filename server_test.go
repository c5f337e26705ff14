package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry("test", "1.0.0")
	must(t, reg.RegisterTool("echo", "Echo the input", Schema(String("message", "text to echo")), echoTool("")))
	must(t, reg.RegisterTool("fail", "Always fails", Schema(), ToolHandlerFunc(func(context.Context, json.RawMessage) ([]Content, error) {
		return nil, errors.New("exploded")
	})))
	must(t, reg.RegisterResource("test://motd", "Message of the day", "", StaticText("be kind")))
	return reg
}

func startServer(t *testing.T, ctx context.Context, reg *Registry, opts ...ServerOption) *Client {
	t.Helper()
	srv := NewServer(reg, opts...)
	clientConn, serverConn := net.Pipe()
	go srv.ServeConn(ctx, serverConn)

	c := NewClient(clientConn)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestServerInitialize(t *testing.T) {
	ctx := context.Background()
	c := startServer(t, ctx, testRegistry(t), WithInstructions("call echo"))

	reply, err := c.Initialize(ctx, Implementation{Name: "test-client", Version: "1.0.0"})
	if err != nil {
		t.Fatal(err)
	}
	want := &InitializeReply{
		ProtocolVersion: ProtocolVersion,
		Capabilities: Capabilities{
			Logging:   &struct{}{},
			Tools:     &ListChangedCapability{ListChanged: true},
			Resources: &ListChangedCapability{ListChanged: true},
		},
		ServerInfo:   Implementation{Name: "test", Version: "1.0.0"},
		Instructions: "call echo",
	}
	if diff := cmp.Diff(want, reply); diff != "" {
		t.Errorf("Initialize mismatch (-want +got):\n%s", diff)
	}
	if err := c.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestServerList(t *testing.T) {
	ctx := context.Background()
	c := startServer(t, ctx, testRegistry(t))

	tools, err := c.ListTools(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 2 || tools[0].Name != "echo" || tools[1].Name != "fail" {
		t.Fatalf("got tools %+v", tools)
	}
	if diff := cmp.Diff([]string{"message"}, tools[0].InputSchema.Required); diff != "" {
		t.Errorf("required mismatch (-want +got):\n%s", diff)
	}

	resources, err := c.ListResources(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []ResourceInfo{{URI: "test://motd", Name: "test://motd", Description: "Message of the day", MimeType: DefaultMimeType}}
	if diff := cmp.Diff(want, resources); diff != "" {
		t.Errorf("ListResources mismatch (-want +got):\n%s", diff)
	}
}

func TestServerCallTool(t *testing.T) {
	ctx := context.Background()
	c := startServer(t, ctx, testRegistry(t))

	res, err := c.CallTool(ctx, "echo", map[string]string{"message": "Hello, World!"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(&ToolResult{Content: []Content{TextContent("Hello, World!")}}, res); diff != "" {
		t.Errorf("CallTool mismatch (-want +got):\n%s", diff)
	}

	rres, err := c.ReadResource(ctx, "test://motd")
	if err != nil {
		t.Fatal(err)
	}
	if got := rres.Contents[0].Text; got != "be kind" {
		t.Errorf("got %q, want %q", got, "be kind")
	}
}

func TestServerErrors(t *testing.T) {
	ctx := context.Background()
	c := startServer(t, ctx, testRegistry(t))

	tests := []struct {
		name     string
		call     func() error
		wantCode int
		wantKind string
	}{
		{
			name:     "unknown tool",
			call:     func() error { _, err := c.CallTool(ctx, "noSuchTool", map[string]any{}); return err },
			wantCode: CodeInvalidParams,
			wantKind: KindNotFound,
		},
		{
			name:     "missing argument",
			call:     func() error { _, err := c.CallTool(ctx, "echo", map[string]any{}); return err },
			wantCode: CodeInvalidParams,
			wantKind: KindValidation,
		},
		{
			name:     "handler failure",
			call:     func() error { _, err := c.CallTool(ctx, "fail", nil); return err },
			wantCode: CodeInternalError,
			wantKind: KindHandler,
		},
		{
			name:     "unknown resource",
			call:     func() error { _, err := c.ReadResource(ctx, "test://nope"); return err },
			wantCode: CodeResourceNotFound,
			wantKind: KindNotFound,
		},
		{
			name:     "malformed params",
			call:     func() error { _, err := c.Call(ctx, MethodToolsCall, []int{1}); return err },
			wantCode: CodeInvalidRequest,
			wantKind: KindInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var rpcErr *RPCError
			if !errors.As(err, &rpcErr) {
				t.Fatalf("got %v, want *RPCError", err)
			}
			if rpcErr.Code != tt.wantCode {
				t.Errorf("got code %d, want %d", rpcErr.Code, tt.wantCode)
			}
			data, _ := rpcErr.Data.(map[string]any)
			if data["kind"] != tt.wantKind {
				t.Errorf("got data %v, want kind %s", rpcErr.Data, tt.wantKind)
			}
		})
	}

	_, err := c.Call(ctx, "prompts/list", nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32601 {
		t.Errorf("unknown method: got %v, want method not found", err)
	}
}

func TestServerForwardsLogMessages(t *testing.T) {
	tests := []struct {
		name string
		caps Capabilities
		want bool
	}{
		{"logging advertised", Capabilities{Logging: &struct{}{}}, true},
		{"logging not advertised", Capabilities{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			reg := NewRegistry("test", "1.0.0", WithCapabilities(tt.caps))
			must(t, reg.RegisterTool("echo", "", Schema(String("message", "")), echoTool("")))
			c := startServer(t, ctx, reg)

			notes := make(chan LogMessage, 4)
			c.Handle(func(method string, params json.RawMessage) error {
				if method != MethodLogging {
					return nil
				}
				var msg LogMessage
				if err := json.Unmarshal(params, &msg); err != nil {
					return err
				}
				notes <- msg
				return nil
			})

			if _, err := c.CallTool(ctx, "noSuchTool", map[string]any{}); err == nil {
				t.Fatal("expected error for unknown tool")
			}
			// Notifications are handled before the response that follows them.
			select {
			case msg := <-notes:
				if !tt.want {
					t.Fatalf("unexpected notification %+v", msg)
				}
				data, _ := msg.Data.(map[string]any)
				if msg.Level != LogError || msg.Logger != "dispatch" || data["kind"] != KindNotFound {
					t.Errorf("got %+v", msg)
				}
			default:
				if tt.want {
					t.Fatal("no log notification received")
				}
			}
		})
	}
}

func TestServerValidationData(t *testing.T) {
	ctx := context.Background()
	c := startServer(t, ctx, testRegistry(t))

	_, err := c.CallTool(ctx, "echo", map[string]any{"message": 42})
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("got %v, want *RPCError", err)
	}
	want := map[string]any{
		"kind":   KindValidation,
		"fields": []any{map[string]any{"field": "message", "reason": "expected string"}},
	}
	if diff := cmp.Diff(want, rpcErr.Data); diff != "" {
		t.Errorf("error data mismatch (-want +got):\n%s", diff)
	}
}

func TestServerDispatch(t *testing.T) {
	ctx := context.Background()
	c := startServer(t, ctx, testRegistry(t))

	resp, err := c.Dispatch(ctx, Request{Operation: OpTool, Name: "noSuchTool"})
	if err != nil {
		t.Fatalf("Dispatch returned a protocol error: %v", err)
	}
	want := &Response{Error: &ErrorBody{Kind: KindNotFound, Message: "unknown tool: noSuchTool"}}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("Dispatch mismatch (-want +got):\n%s", diff)
	}

	resp, err = c.Dispatch(ctx, Request{Operation: OpResource, URI: "test://motd"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Error != nil || len(resp.Content) != 1 || resp.Content[0].Text != "be kind" {
		t.Errorf("got %+v", resp)
	}
}

func TestServerRateLimiting(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg := RateLimitConfig{
		GlobalRPS:   1000,
		GlobalBurst: 100,
		ToolRPS:     map[string]float64{"echo": 0.001},
		ToolBurst:   map[string]int{"echo": 1},
	}
	c := startServer(t, ctx, testRegistry(t), WithRateLimiting(cfg))

	if _, err := c.CallTool(ctx, "echo", map[string]string{"message": "one"}); err != nil {
		t.Fatal(err)
	}
	_, err := c.CallTool(ctx, "echo", map[string]string{"message": "two"})
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeRateLimited {
		t.Fatalf("got %v, want rate limit error", err)
	}
	if _, err := c.CallTool(ctx, "fail", nil); errors.As(err, &rpcErr) && rpcErr.Code == CodeRateLimited {
		t.Error("limit on echo throttled another tool")
	}
}

func TestServerDispatchRateLimited(t *testing.T) {
	srv := NewServer(testRegistry(t), WithRateLimiting(RateLimitConfig{
		GlobalRPS:   1000,
		GlobalBurst: 100,
		MethodRPS:   map[string]float64{MethodDispatch: 0.001},
		MethodBurst: map[string]int{MethodDispatch: 1},
	}))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	req := []byte(`{"operation":"resource","uri":"test://motd"}`)
	if resp := srv.Dispatch(ctx, req); resp.Error != nil {
		t.Fatalf("first dispatch: %+v", resp.Error)
	}
	resp := srv.Dispatch(ctx, req)
	if resp.Error == nil || resp.Error.Kind != KindRateLimit {
		t.Errorf("got %+v, want %s", resp, KindRateLimit)
	}
}

type pipeRW struct {
	io.Reader
	io.Writer
}

func TestServeEnvelopes(t *testing.T) {
	srv := NewServer(testRegistry(t))

	in := strings.Join([]string{
		`{"operation":"tool","name":"echo","args":{"message":"hi"}}`,
		``,
		`{"operation":"resource","uri":"test://motd"}`,
		`not json`,
		`{"operation":"tool","name":"fail"}`,
	}, "\n")
	var out bytes.Buffer
	if err := srv.ServeEnvelopes(context.Background(), pipeRW{strings.NewReader(in), &out}); err != nil {
		t.Fatal(err)
	}

	var got []Response
	dec := json.NewDecoder(&out)
	for dec.More() {
		var r Response
		if err := dec.Decode(&r); err != nil {
			t.Fatal(err)
		}
		got = append(got, r)
	}

	if len(got) != 4 {
		t.Fatalf("got %d responses, want 4", len(got))
	}
	if got[0].Content[0].Text != "hi" {
		t.Errorf("tool response: %+v", got[0])
	}
	if got[1].Content[0].URI != "test://motd" {
		t.Errorf("resource response: %+v", got[1])
	}
	if got[2].Error == nil || got[2].Error.Kind != KindInvalidRequest {
		t.Errorf("malformed response: %+v", got[2])
	}
	if got[3].Error == nil || got[3].Error.Kind != KindHandler {
		t.Errorf("handler response: %+v", got[3])
	}
}
