// Package mcptest runs txtar scripts against MCP servers.
//
// The archive comment is the script. Besides the default rsc.io/script
// commands it understands:
//
//	mcp-start <command> [args...]  start a server subprocess speaking stdio
//	mcp-serve                      serve the runner's registry in-process
//	mcp <method> [params]          call a method; the result goes to stdout
//	mcp-stop                       stop the current server
//
// Failed calls put the error on stderr, so `! mcp ...` followed by
// `stderr 'pattern'` checks error responses.
package mcptest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/tools/txtar"
	"rsc.io/script"

	mcp "github.com/tmc/mockmcp"
)

// Runner executes script files.
type Runner struct {
	// NewRegistry builds the registry served by mcp-serve. mcp-serve fails
	// when it is nil.
	NewRegistry func() (*mcp.Registry, error)
	// Env is appended to the environment of the script.
	Env []string
	// Debug logs raw protocol traffic to the script log.
	Debug bool
}

// serverState tracks the current MCP server
type serverState struct {
	cmd    *exec.Cmd
	client *mcp.Client
}

func (st *serverState) stop() {
	if st.client != nil {
		st.client.Close()
		st.client = nil
	}
	if st.cmd != nil {
		st.cmd.Process.Kill()
		st.cmd.Wait()
		st.cmd = nil
	}
}

// RunFile runs the script in the txtar archive filename, writing the
// script log to output.
func (r *Runner) RunFile(ctx context.Context, filename string, output io.Writer) error {
	a, err := txtar.ParseFile(filename)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	workdir, err := os.MkdirTemp("", "mcptest-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workdir)

	eng := script.NewEngine()
	var state serverState
	defer state.stop()
	for name, cmd := range r.commands(output, &state) {
		eng.Cmds[name] = cmd
	}

	env := append(os.Environ(), r.Env...)
	s, err := script.NewState(ctx, workdir, env)
	if err != nil {
		return err
	}
	if err := initScriptDirs(s); err != nil {
		return err
	}
	if err := s.ExtractFiles(a); err != nil {
		return err
	}
	fmt.Fprintf(output, "$WORK=%s\n", workdir)
	return eng.Execute(s, filename, bufio.NewReader(bytes.NewReader(a.Comment)), output)
}

// RunFile runs filename with a Runner that has no in-process registry.
func RunFile(ctx context.Context, filename string, output io.Writer) error {
	return (&Runner{}).RunFile(ctx, filename, output)
}

func initScriptDirs(s *script.State) error {
	work := s.Getwd()
	if err := s.Setenv("WORK", work); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(work, "tmp"), 0777); err != nil {
		return err
	}
	return s.Setenv(tempEnvName(), filepath.Join(work, "tmp"))
}

func tempEnvName() string {
	switch runtime.GOOS {
	case "windows":
		return "TMP"
	default:
		return "TMPDIR"
	}
}

// handleMCPStart implements the mcp-start command
func (r *Runner) handleMCPStart(s *script.State, output io.Writer, state *serverState, args ...string) (script.WaitFunc, error) {
	if len(args) < 1 {
		return nil, script.ErrUsage
	}
	state.stop()

	cmd := exec.CommandContext(s.Context(), args[0], args[1:]...)
	cmd.Dir = s.Getwd()
	cmd.Env = s.Environ()
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}

	fmt.Fprintf(output, "# Starting MCP server: %s\n", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting server: %w", err)
	}
	state.cmd = cmd
	state.client = mcp.NewClient(r.wrap(rwc{stdin, stdout}, output))
	return nil, nil
}

// handleMCPServe implements the mcp-serve command
func (r *Runner) handleMCPServe(s *script.State, output io.Writer, state *serverState, args ...string) (script.WaitFunc, error) {
	if len(args) != 0 {
		return nil, script.ErrUsage
	}
	if r.NewRegistry == nil {
		return nil, fmt.Errorf("mcp-serve: runner has no registry")
	}
	reg, err := r.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("building registry: %w", err)
	}
	state.stop()

	clientConn, serverConn := net.Pipe()
	go mcp.NewServer(reg).ServeConn(s.Context(), serverConn)
	state.client = mcp.NewClient(r.wrap(clientConn, output))
	return nil, nil
}

func (r *Runner) handleMCP(s *script.State, output io.Writer, state *serverState, args ...string) (script.WaitFunc, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, script.ErrUsage
	}
	if state.client == nil {
		return nil, fmt.Errorf("no MCP server running, use mcp-start or mcp-serve first")
	}

	method := args[0]
	var params json.RawMessage
	if len(args) > 1 {
		params = json.RawMessage(args[1])
		if !json.Valid(params) {
			return nil, fmt.Errorf("params for %s are not valid JSON", method)
		}
	}

	client := state.client
	ctx := s.Context()
	return func(*script.State) (string, string, error) {
		result, err := call(ctx, client, method, params)
		if err != nil {
			return "", err.Error() + "\n", err
		}
		return string(result) + "\n", "", nil
	}, nil
}

// call issues method. initialize goes through the client handshake so the
// initialized notification follows it.
func call(ctx context.Context, c *mcp.Client, method string, params json.RawMessage) (json.RawMessage, error) {
	if method != mcp.MethodInitialize {
		var p any
		if params != nil {
			p = params
		}
		return c.Call(ctx, method, p)
	}

	var args mcp.InitializeArgs
	if params != nil {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, fmt.Errorf("parsing initialize args: %w", err)
		}
	}
	reply, err := c.Initialize(ctx, args.ClientInfo)
	if err != nil {
		return nil, err
	}
	return json.Marshal(reply)
}

func (r *Runner) wrap(rw io.ReadWriteCloser, output io.Writer) io.ReadWriteCloser {
	if !r.Debug {
		return rw
	}
	return newDebugTransport(rw, output)
}

// debugTransport logs the traffic passing through it.
type debugTransport struct {
	rw  io.ReadWriteCloser
	out io.Writer
}

func newDebugTransport(rw io.ReadWriteCloser, out io.Writer) *debugTransport {
	return &debugTransport{rw: rw, out: out}
}

func (d *debugTransport) Read(p []byte) (n int, err error) {
	n, err = d.rw.Read(p)
	if n > 0 {
		fmt.Fprintf(d.out, "# << %s\n", bytes.TrimSpace(p[:n]))
	}
	if err != nil && err != io.EOF {
		fmt.Fprintf(d.out, "# READ ERR: %v\n", err)
	}
	return
}

func (d *debugTransport) Write(p []byte) (n int, err error) {
	fmt.Fprintf(d.out, "# >> %s\n", bytes.TrimSpace(p))
	return d.rw.Write(p)
}

func (d *debugTransport) Close() error {
	return d.rw.Close()
}

// commands returns the MCP-specific script commands
func (r *Runner) commands(output io.Writer, state *serverState) map[string]script.Cmd {
	return map[string]script.Cmd{
		"mcp-start": script.Command(script.CmdUsage{
			Summary: "start an MCP server subprocess",
			Args:    "command [args...]",
		}, func(s *script.State, args ...string) (script.WaitFunc, error) {
			return r.handleMCPStart(s, output, state, args...)
		}),
		"mcp-serve": script.Command(script.CmdUsage{
			Summary: "serve the runner's registry in-process",
		}, func(s *script.State, args ...string) (script.WaitFunc, error) {
			return r.handleMCPServe(s, output, state, args...)
		}),
		"mcp": script.Command(script.CmdUsage{
			Summary: "call an MCP method",
			Args:    "method [params]",
		}, func(s *script.State, args ...string) (script.WaitFunc, error) {
			return r.handleMCP(s, output, state, args...)
		}),
		"mcp-stop": script.Command(script.CmdUsage{
			Summary: "stop the MCP server",
		}, func(*script.State, ...string) (script.WaitFunc, error) {
			state.stop()
			return nil, nil
		}),
	}
}

type rwc struct {
	io.WriteCloser
	io.Reader
}

func (r rwc) Close() error {
	if err := r.WriteCloser.Close(); err != nil {
		return err
	}
	if rc, ok := r.Reader.(io.Closer); ok {
		return rc.Close()
	}
	return nil
}
