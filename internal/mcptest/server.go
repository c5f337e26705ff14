package mcptest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"testing"
	"time"

	mcp "github.com/tmc/mockmcp"
)

// callTimeout bounds each TestServer call.
const callTimeout = 5 * time.Second

// TestServer runs a server binary as a subprocess and talks to it over
// stdio.
type TestServer struct {
	t        *testing.T
	cmd      *exec.Cmd
	stderr   io.ReadCloser
	client   *mcp.Client
	debugLog io.Writer
	done     chan struct{}
}

type ServerOption func(*TestServer)

func WithDebugLog(w io.Writer) ServerOption {
	return func(s *TestServer) {
		s.debugLog = w
	}
}

// WithEnv adds environment variables to the server process.
func WithEnv(kv ...string) ServerOption {
	return func(s *TestServer) {
		if s.cmd.Env == nil {
			s.cmd.Env = os.Environ()
		}
		s.cmd.Env = append(s.cmd.Env, kv...)
	}
}

// NewTestServer starts serverPath. The process is killed when the test
// ends.
func NewTestServer(t *testing.T, serverPath string, opts ...ServerOption) *TestServer {
	t.Helper()

	s := &TestServer{
		t:        t,
		debugLog: io.Discard,
		done:     make(chan struct{}),
	}

	// Create command but don't start it yet
	s.cmd = exec.Command(serverPath)

	for _, opt := range opts {
		opt(s)
	}

	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		t.Fatalf("Failed to create stdin pipe: %v", err)
	}
	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		t.Fatalf("Failed to create stdout pipe: %v", err)
	}
	s.stderr, err = s.cmd.StderrPipe()
	if err != nil {
		t.Fatalf("Failed to create stderr pipe: %v", err)
	}

	fmt.Fprintf(s.debugLog, "Starting server: %v\n", s.cmd.Args)
	if err := s.cmd.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	go s.logStderr()

	s.client = mcp.NewClient(newDebugTransport(rwc{stdin, stdout}, s.debugLog))

	go func() {
		err := s.cmd.Wait()
		fmt.Fprintf(s.debugLog, "Server process exited: %v\n", err)
		close(s.done)
	}()

	t.Cleanup(func() { s.Close() })
	return s
}

// Client returns the client connected to the server.
func (s *TestServer) Client() *mcp.Client { return s.client }

func (s *TestServer) Initialize(ctx context.Context) (*mcp.InitializeReply, error) {
	reply, err := s.client.Initialize(ctx, mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	})
	if err != nil {
		select {
		case <-s.done:
			return nil, fmt.Errorf("server process exited before initialization completed")
		default:
			return nil, err
		}
	}
	return reply, nil
}

// Call issues method and returns the raw result.
func (s *TestServer) Call(method string, params any) (json.RawMessage, error) {
	select {
	case <-s.done:
		return nil, fmt.Errorf("server process is not running")
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	type result struct {
		resp json.RawMessage
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := s.client.Call(ctx, method, params)
		ch <- result{resp, err}
	}()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-s.done:
		return nil, fmt.Errorf("server process exited while waiting for response")
	}
}

func (s *TestServer) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		<-s.done // Wait for process to exit
	}
	return nil
}

func (s *TestServer) logStderr() {
	scanner := bufio.NewScanner(s.stderr)
	for scanner.Scan() {
		fmt.Fprintf(s.debugLog, "ERR: %s\n", scanner.Text())
	}
}
