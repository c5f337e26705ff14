package mcp

import (
	"context"
	"io"
	"os"
)

// StdioTransport implements Transport over stdin/stdout
type StdioTransport struct {
	ctx context.Context
	in  io.Reader
	out io.Writer
}

// NewStdioTransport creates a transport over the process's stdin and stdout.
func NewStdioTransport(ctx context.Context) *StdioTransport {
	return NewStreamTransport(ctx, os.Stdin, os.Stdout)
}

// NewStreamTransport creates a transport over an arbitrary reader/writer
// pair, such as the pipes of a child process.
func NewStreamTransport(ctx context.Context, in io.Reader, out io.Writer) *StdioTransport {
	return &StdioTransport{
		ctx: ctx,
		in:  in,
		out: out,
	}
}

func (t *StdioTransport) Read(p []byte) (n int, err error)  { return t.in.Read(p) }
func (t *StdioTransport) Write(p []byte) (n int, err error) { return t.out.Write(p) }
func (t *StdioTransport) Context() context.Context          { return t.ctx }

// Close closes the underlying streams when they support it. The process's
// own stdin and stdout are left open.
func (t *StdioTransport) Close() error {
	var err error
	if c, ok := t.out.(io.Closer); ok && t.out != os.Stdout {
		err = c.Close()
	}
	if c, ok := t.in.(io.Closer); ok && t.in != os.Stdin {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
