package mcptest

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	mcp "github.com/tmc/mockmcp"
	"github.com/tmc/mockmcp/internal/mock"
)

// helperEnv makes the test binary act as a stdio server.
const helperEnv = "MCPTEST_HELPER_SERVER=1"

func TestMain(m *testing.M) {
	if os.Getenv("MCPTEST_HELPER_SERVER") == "1" {
		os.Exit(serveStdio())
	}
	os.Exit(m.Run())
}

func mockRegistry() (*mcp.Registry, error) {
	reg := mcp.NewRegistry(mock.ServerName, mock.ServerVersion)
	if err := mock.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func serveStdio() int {
	reg, err := mockRegistry()
	if err != nil {
		return 1
	}
	if err := mcp.NewServer(reg).ServeTransport(mcp.NewStdioTransport(context.Background())); err != nil {
		return 1
	}
	return 0
}

func TestScripts(t *testing.T) {
	files, err := filepath.Glob("testdata/*.txtar")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no scripts found")
	}

	r := &Runner{
		NewRegistry: mockRegistry,
		Env:         []string{helperEnv, "SERVER=" + os.Args[0]},
		Debug:       testing.Verbose(),
	}
	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			var log bytes.Buffer
			if err := r.RunFile(context.Background(), file, &log); err != nil {
				t.Fatalf("%v\n%s", err, log.String())
			}
		})
	}
}

func TestScriptFailureReported(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "fail.txtar")
	script := "mcp-serve\nmcp tools/call '{\"name\":\"trackPackage\",\"arguments\":{\"trackingNumber\":\"X\"}}'\nstdout 'not in the output'\n"
	if err := os.WriteFile(file, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &Runner{NewRegistry: mockRegistry}
	if err := r.RunFile(context.Background(), file, &bytes.Buffer{}); err == nil {
		t.Error("expected script failure")
	}
}

func TestServeWithoutRegistry(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "serve.txtar")
	if err := os.WriteFile(file, []byte("mcp-serve\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := RunFile(context.Background(), file, &bytes.Buffer{}); err == nil {
		t.Error("expected mcp-serve to fail without a registry")
	}
}

func TestTestServer(t *testing.T) {
	var log bytes.Buffer
	s := NewTestServer(t, os.Args[0], WithEnv(helperEnv), WithDebugLog(&log))

	reply, err := s.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize: %v\n%s", err, log.String())
	}
	if reply.ServerInfo.Name != mock.ServerName {
		t.Errorf("got server %q, want %q", reply.ServerInfo.Name, mock.ServerName)
	}

	raw, err := s.Call(mcp.MethodToolsCall, mcp.CallToolArgs{
		Name:      mock.ToolTrackPackage,
		Arguments: json.RawMessage(`{"trackingNumber":"ABC123"}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	var res mcp.ToolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Content) != 1 || res.Content[0].Text != "Checking delivery status for: ABC123" {
		t.Errorf("got %+v", res)
	}

	if _, err := s.Call(mcp.MethodToolsCall, mcp.CallToolArgs{Name: "noSuchTool"}); err == nil {
		t.Error("expected error for unknown tool")
	}

	tools, err := s.Client().ListTools(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 2 {
		t.Errorf("got %d tools, want 2", len(tools))
	}
}
