package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/pipemirror/pkg/adapters/http"
	"github.com/aretw0/pipemirror/pkg/adapters/mcp"
	"github.com/aretw0/pipemirror/pkg/observability"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MCP transports.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// ServeOptions configures RunServe.
type ServeOptions struct {
	Options
	Addr string
}

// RunServe mirrors the server and publishes the mirror as a read-only JSON
// API on opts.Addr, with Prometheus metrics under /metrics.
func RunServe(ctx context.Context, opts ServeOptions, w io.Writer) error {
	logger := opts.Logger
	if logger == nil {
		logger = createLogger(opts.Config.Log)
		opts.Logger = logger
	}
	reg := newRegistry()
	opts.Metrics = observability.NewMetrics(reg)

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", opts.Addr, err)
	}

	client, cleanup, err := createClient(opts.Options)
	if err != nil {
		ln.Close()
		return err
	}
	defer cleanup()

	api := httpAdapter.NewServer(client, logger)
	defer api.Close()

	srv := &http.Server{
		Handler: api.Handler(func(r chi.Router) {
			r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := client.Start(ctx); err != nil {
		ln.Close()
		return err
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Serve(ln)
	}()
	printSystemMessage(w, "Serving mirror of %s on http://%s", client.BaseURL(), ln.Addr())

	select {
	case err = <-serverErrors:
		err = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		printSystemMessage(w, "Interrupted.")
	case <-client.Done():
		printSystemMessage(w, "Server is shutting down.")
	}

	// SSE handlers only return once their streams are closed.
	api.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil && !errors.Is(shutdownErr, http.ErrServerClosed) {
		logger.Warn("graceful shutdown did not complete", "error", shutdownErr)
		_ = srv.Close()
	}

	return errors.Join(err, client.Close())
}

// MCPOptions configures RunMCP.
type MCPOptions struct {
	Options
	Transport string
	Addr      string
}

// RunMCP mirrors the server and exposes it to MCP clients.
// The stdio transport returns when stdin closes.
func RunMCP(ctx context.Context, opts MCPOptions, w io.Writer) error {
	switch opts.Transport {
	case TransportStdio, TransportSSE:
	default:
		return fmt.Errorf("unknown transport %q (supported: %s, %s)", opts.Transport, TransportStdio, TransportSSE)
	}

	logger := opts.Logger
	if logger == nil {
		logger = createLogger(opts.Config.Log)
		opts.Logger = logger
	}

	client, cleanup, err := createClient(opts.Options)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := client.Start(ctx); err != nil {
		return err
	}

	srv := mcp.NewServer(client.Sync(), logger)

	var serveErr error
	if opts.Transport == TransportStdio {
		serveErr = srv.ServeStdio()
	} else {
		// Also stop when the pipeline server goes away.
		sseCtx, cancel := context.WithCancel(ctx)
		go func() {
			select {
			case <-client.Done():
				cancel()
			case <-sseCtx.Done():
			}
		}()
		printSystemMessage(w, "MCP server (SSE) on %s", opts.Addr)
		serveErr = srv.ServeSSE(sseCtx, opts.Addr)
		cancel()
	}

	return errors.Join(serveErr, client.Close())
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}
