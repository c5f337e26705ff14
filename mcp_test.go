package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func echoTool(prefix string) ToolHandler {
	return TypedTool(func(_ context.Context, in struct {
		Message string `json:"message"`
	}) ([]Content, error) {
		return []Content{TextContent(prefix + in.Message)}, nil
	})
}

func TestRegisterToolDuplicate(t *testing.T) {
	reg := NewRegistry("test", "1.0.0")
	schema := Schema(String("message", "text to echo"))

	if err := reg.RegisterTool("echo", "first", schema, echoTool("first: ")); err != nil {
		t.Fatal(err)
	}
	err := reg.RegisterTool("echo", "second", schema, echoTool("second: "))

	var dup *DuplicateNameError
	if !errors.As(err, &dup) {
		t.Fatalf("got error %v, want DuplicateNameError", err)
	}
	if dup.Name != "echo" {
		t.Errorf("got name %q, want %q", dup.Name, "echo")
	}

	tools := reg.Tools()
	if len(tools) != 1 || tools[0].Description != "first" {
		t.Fatalf("got tools %+v, want only the first registration", tools)
	}
	res, err := reg.InvokeTool(context.Background(), "echo", json.RawMessage(`{"message":"hi"}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Content[0].Text; got != "first: hi" {
		t.Errorf("got %q, want %q", got, "first: hi")
	}
}

func TestRegisterResourceDuplicate(t *testing.T) {
	reg := NewRegistry("test", "1.0.0")
	if err := reg.RegisterResource("test://a", "a", "", StaticText("one")); err != nil {
		t.Fatal(err)
	}
	err := reg.RegisterResource("test://a", "a again", "text/plain", StaticText("two"))

	var dup *DuplicateURIError
	if !errors.As(err, &dup) {
		t.Fatalf("got error %v, want DuplicateURIError", err)
	}
	if got := ErrorKind(err); got != KindDuplicateURI {
		t.Errorf("got kind %q, want %q", got, KindDuplicateURI)
	}

	res, err := reg.InvokeResource(context.Background(), "test://a")
	if err != nil {
		t.Fatal(err)
	}
	want := &ResourceResult{Contents: []Content{{
		Type:     ContentText,
		Text:     "one",
		MimeType: DefaultMimeType,
		URI:      "test://a",
	}}}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("InvokeResource mismatch (-want +got):\n%s", diff)
	}
}

func TestRegisterRejectsInvalidEntries(t *testing.T) {
	reg := NewRegistry("test", "1.0.0")
	tests := []struct {
		name string
		err  error
	}{
		{"empty tool name", reg.RegisterTool("", "", Schema(), echoTool(""))},
		{"nil tool handler", reg.RegisterTool("x", "", Schema(), nil)},
		{"duplicate field", reg.RegisterTool("y", "", Schema(String("a", ""), String("a", "")), echoTool(""))},
		{"enum without values", reg.RegisterTool("z", "", Schema(Enum("a", "")), echoTool(""))},
		{"empty uri", reg.RegisterResource("", "", "", StaticText(""))},
		{"nil resource handler", reg.RegisterResource("test://x", "", "", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Error("expected error")
			}
		})
	}
	if n := len(reg.Tools()) + len(reg.Resources()); n != 0 {
		t.Errorf("got %d entries after failed registrations, want 0", n)
	}
}

func TestSealedRegistry(t *testing.T) {
	reg := NewRegistry("test", "1.0.0")
	NewServer(reg)

	if err := reg.RegisterTool("late", "", Schema(), echoTool("")); !errors.Is(err, ErrSealed) {
		t.Errorf("RegisterTool after serve: got %v, want ErrSealed", err)
	}
	if err := reg.RegisterResource("test://late", "", "", StaticText("")); !errors.Is(err, ErrSealed) {
		t.Errorf("RegisterResource after serve: got %v, want ErrSealed", err)
	}
}

func TestInvokeToolErrors(t *testing.T) {
	reg := NewRegistry("test", "1.0.0")
	cause := errors.New("backend down")
	must(t, reg.RegisterTool("echo", "", Schema(String("message", "")), echoTool("")))
	must(t, reg.RegisterTool("fail", "", Schema(), ToolHandlerFunc(func(context.Context, json.RawMessage) ([]Content, error) {
		return nil, cause
	})))
	must(t, reg.RegisterTool("panic", "", Schema(), ToolHandlerFunc(func(context.Context, json.RawMessage) ([]Content, error) {
		panic("boom")
	})))

	ctx := context.Background()

	_, err := reg.InvokeTool(ctx, "noSuchTool", json.RawMessage(`{}`))
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Entry != EntryTool || nf.Key != "noSuchTool" {
		t.Errorf("unknown tool: got %v, want NotFoundError", err)
	}

	_, err = reg.InvokeTool(ctx, "echo", json.RawMessage(`{}`))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("missing field: got %v, want ValidationError", err)
	}
	if diff := cmp.Diff([]FieldError{{Field: "message", Reason: "required"}}, ve.Fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	_, err = reg.InvokeTool(ctx, "fail", nil)
	var he *HandlerError
	if !errors.As(err, &he) {
		t.Fatalf("handler failure: got %v, want HandlerError", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("HandlerError does not carry its cause: %v", err)
	}

	_, err = reg.InvokeTool(ctx, "panic", nil)
	if !errors.As(err, &he) {
		t.Fatalf("handler panic: got %v, want HandlerError", err)
	}
}

func TestTypedToolIntegerArguments(t *testing.T) {
	reg := NewRegistry("test", "1.0.0")
	must(t, reg.RegisterTool("count", "", Schema(Integer("n", "")), TypedTool(func(_ context.Context, in struct {
		N int `json:"n"`
	}) ([]Content, error) {
		return []Content{TextContent(fmt.Sprint(in.N * 2))}, nil
	})))

	ctx := context.Background()
	res, err := reg.InvokeTool(ctx, "count", json.RawMessage(`{"n":21}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Content[0].Text; got != "42" {
		t.Errorf("got %q, want %q", got, "42")
	}

	for _, args := range []string{`{"n":2.0}`, `{"n":1e2}`, `{"n":1e30}`} {
		_, err := reg.InvokeTool(ctx, "count", json.RawMessage(args))
		if got := ErrorKind(err); got != KindValidation {
			t.Errorf("InvokeTool(%s): got kind %q (%v), want %q", args, got, err, KindValidation)
		}
	}
}

func TestInvokeResourceNotFound(t *testing.T) {
	reg := NewRegistry("test", "1.0.0")
	_, err := reg.InvokeResource(context.Background(), "test://missing")

	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Entry != EntryResource {
		t.Fatalf("got %v, want resource NotFoundError", err)
	}
	if got, want := err.Error(), "unknown resource: test://missing"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestInvokeToolIdempotent(t *testing.T) {
	reg := NewRegistry("test", "1.0.0")
	must(t, reg.RegisterTool("echo", "", Schema(String("message", "")), echoTool("> ")))

	args := json.RawMessage(`{"message":"same"}`)
	first, err := reg.InvokeTool(context.Background(), "echo", args)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		again, err := reg.InvokeTool(context.Background(), "echo", args)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("call %d differs (-first +again):\n%s", i, diff)
		}
	}
}

func TestListOrder(t *testing.T) {
	reg := NewRegistry("test", "1.0.0")
	for _, name := range []string{"c", "a", "b"} {
		must(t, reg.RegisterTool(name, "", Schema(), echoTool("")))
		must(t, reg.RegisterResource("test://"+name, "", "", StaticText(name)))
	}

	var tools, resources []string
	for _, ti := range reg.Tools() {
		tools = append(tools, ti.Name)
	}
	for _, ri := range reg.Resources() {
		resources = append(resources, ri.URI)
	}
	if diff := cmp.Diff([]string{"c", "a", "b"}, tools); diff != "" {
		t.Errorf("tool order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"test://c", "test://a", "test://b"}, resources); diff != "" {
		t.Errorf("resource order (-want +got):\n%s", diff)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
