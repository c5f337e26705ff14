// Command mcptest runs txtar scripts against MCP servers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	mcp "github.com/tmc/mockmcp"
	"github.com/tmc/mockmcp/internal/logging"
	"github.com/tmc/mockmcp/internal/mcptest"
	"github.com/tmc/mockmcp/internal/mock"
)

func main() {
	var (
		verbose = flag.Bool("v", false, "verbose output")
		fail    = flag.Bool("f", false, "fail fast (stop on first failure)")
		debug   = flag.Bool("debug", false, "log raw protocol traffic")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mcptest [flags] <test.txtar...>\n")
		fmt.Fprintf(os.Stderr, "       mcptest [flags] <dir>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger := logging.Must(level, logging.FormatConsole)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := &mcptest.Runner{
		NewRegistry: func() (*mcp.Registry, error) { return mockRegistry(logger) },
		Debug:       *debug,
	}

	var failed bool
	for _, pattern := range flag.Args() {
		matches, err := expand(pattern)
		if err != nil {
			logger.Fatal("bad pattern", zap.String("pattern", pattern), zap.Error(err))
		}
		for _, match := range matches {
			if *verbose {
				fmt.Printf("=== RUN   %s\n", match)
			}
			var out strings.Builder
			if err := runner.RunFile(ctx, match, &out); err != nil {
				failed = true
				fmt.Printf("--- FAIL: %s\n%s\n%s\n", match, indent(out.String()), indent(err.Error()))
				if *fail {
					os.Exit(1)
				}
			} else if *verbose {
				fmt.Printf("--- PASS: %s\n", match)
			}
		}
	}

	if failed {
		os.Exit(1)
	}
}

// expand resolves a glob, or a directory to the scripts inside it.
func expand(pattern string) ([]string, error) {
	if info, err := os.Stat(pattern); err == nil && info.IsDir() {
		pattern = filepath.Join(pattern, "*.txtar")
	}
	return filepath.Glob(pattern)
}

// mockRegistry backs the mcp-serve command.
func mockRegistry(logger *zap.Logger) (*mcp.Registry, error) {
	reg := mcp.NewRegistry(mock.ServerName, mock.ServerVersion, mcp.WithLogger(logger))
	if err := mock.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func indent(s string) string {
	return "\t" + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n\t")
}
