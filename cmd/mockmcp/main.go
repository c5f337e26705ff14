// Command mockmcp serves the mock package tracking and weather tools.
//
// The transport is chosen with -transport or MOCKMCP_TRANSPORT:
//
//	stdio     JSON-RPC 2.0 on stdin/stdout (default)
//	envelope  one {"operation",...} request per line on stdin/stdout
//	sdk       the official MCP Go SDK on stdin/stdout
//	http      REST endpoints and WebSocket JSON-RPC on -addr
//
// Logs go to stderr.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	mcp "github.com/tmc/mockmcp"
	"github.com/tmc/mockmcp/internal/config"
	"github.com/tmc/mockmcp/internal/httpapi"
	"github.com/tmc/mockmcp/internal/logging"
	"github.com/tmc/mockmcp/internal/mock"
	"github.com/tmc/mockmcp/internal/sdkbridge"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Getenv, os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "mockmcp: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, getenv func(string) string, stdin io.Reader, stdout io.Writer) error {
	cfg := config.FromEnv(getenv, config.Config{
		Name:    mock.ServerName,
		Version: mock.ServerVersion,
	})
	fs := flag.NewFlagSet("mockmcp", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reg, err := newRegistry(cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("starting server",
		zap.String("name", cfg.Name),
		zap.String("version", cfg.Version),
		zap.String("transport", cfg.Transport),
		zap.Int("tools", len(reg.Tools())),
		zap.Int("resources", len(reg.Resources())))

	if cfg.Transport == config.TransportSDK {
		return serveStream(ctx, func() error { return sdkbridge.Serve(ctx, reg, logger) })
	}

	opts := []mcp.ServerOption{mcp.WithServerLogger(logger)}
	if cfg.RateLimit {
		opts = append(opts, mcp.WithRateLimiting(mcp.DefaultRateLimitConfig()))
	}
	srv := mcp.NewServer(reg, opts...)

	switch cfg.Transport {
	case config.TransportEnvelope:
		return serveStream(ctx, func() error {
			return srv.ServeEnvelopes(ctx, struct {
				io.Reader
				io.Writer
			}{stdin, stdout})
		})
	case config.TransportHTTP:
		return serveHTTP(ctx, cfg.Addr, httpapi.New(srv, logger).Router(), logger)
	default:
		return serveStream(ctx, func() error {
			return srv.ServeTransport(mcp.NewStreamTransport(ctx, stdin, stdout))
		})
	}
}

// newRegistry builds the mock registry with a dispatcher that logs its
// notifications.
func newRegistry(cfg config.Config, logger *zap.Logger) (*mcp.Registry, error) {
	d := mcp.NewDispatcher()
	listChanged := func(method string, _ json.RawMessage) error {
		logger.Debug("list changed", zap.String("method", method))
		return nil
	}
	d.Handle(mcp.MethodToolListChanged, listChanged)
	d.Handle(mcp.MethodResourceListChanged, listChanged)
	d.Handle(mcp.MethodLogging, func(_ string, params json.RawMessage) error {
		var msg mcp.LogMessage
		if err := json.Unmarshal(params, &msg); err != nil {
			return err
		}
		logger.Warn("server notification",
			zap.String("level", string(msg.Level)),
			zap.String("logger", msg.Logger),
			zap.Any("data", msg.Data))
		return nil
	})

	reg := mcp.NewRegistry(cfg.Name, cfg.Version, mcp.WithDispatcher(d), mcp.WithLogger(logger))
	if err := mock.Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// serveStream runs serve until it returns or ctx is done. Reads from
// stdin do not observe ctx, so serve may still be blocked on return.
func serveStream(ctx context.Context, serve func() error) error {
	errc := make(chan error, 1)
	go func() { errc <- serve() }()
	select {
	case err := <-errc:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		return nil
	}
}

func serveHTTP(ctx context.Context, addr string, h http.Handler, logger *zap.Logger) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", addr))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("http shutting down")
		return hs.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
