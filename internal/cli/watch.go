package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/pipemirror"
	"github.com/aretw0/pipemirror/internal/presentation/tui"
	"github.com/aretw0/pipemirror/pkg/domain"
	"github.com/aretw0/pipemirror/pkg/observability"
	"github.com/aretw0/pipemirror/pkg/push"
	"github.com/aretw0/pipemirror/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WatchOptions configures RunWatch.
type WatchOptions struct {
	Options
	Quiet bool
}

// RunWatch mirrors the server and prints every change until ctx ends or the
// server shuts down.
func RunWatch(ctx context.Context, opts WatchOptions, w io.Writer) error {
	logger := opts.Logger
	if logger == nil {
		logger = createLogger(opts.Config.Log)
		opts.Logger = logger
	}
	if !opts.Quiet {
		tui.PrintBanner(w, strings.TrimSpace(pipemirror.Version))
	}

	if addr := opts.Config.Metrics.Addr; addr != "" {
		reg := newRegistry()
		opts.Metrics = observability.NewMetrics(reg)

		srv := &http.Server{
			Addr:              addr,
			Handler:           metricsHandler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "addr", addr)
	}

	client, cleanup, err := createClient(opts.Options)
	if err != nil {
		return err
	}
	defer cleanup()

	printer := newChangePrinter(w)
	unsubscribe := client.Store().Subscribe(printer.change)
	defer unsubscribe()
	unsubscribeStatus := client.SubscribePushStatus(printer.status)
	defer unsubscribeStatus()

	orphans := client.Orphans()
	defer orphans.Close()
	orphans.Subscribe(printer.orphans)

	if err := client.Start(ctx); err != nil {
		return err
	}
	printSystemMessage(w, "Watching %s (%d workflows, %d instances, %d globals).",
		client.BaseURL(), client.Store().Workflows.Len(), client.Store().Instances.Len(), client.Store().Globals.Len())

	select {
	case <-ctx.Done():
		printSystemMessage(w, "Interrupted.")
	case <-client.Done():
		printSystemMessage(w, "Server is shutting down.")
	}
	return client.Close()
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

// changePrinter serialises output from the store observers, the push
// status observers and the orphan view.
type changePrinter struct {
	mu          sync.Mutex
	w           io.Writer
	st          *tui.Styler
	lastOrphans int
}

func newChangePrinter(w io.Writer) *changePrinter {
	return &changePrinter{w: w, st: tui.NewStyler(w), lastOrphans: -1}
}

func (p *changePrinter) line(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s %s\n", p.st.Faint(time.Now().Format("15:04:05")), fmt.Sprintf(format, args...))
}

func (p *changePrinter) change(c store.Change) {
	if c.Op != store.OpReplace {
		p.line("%-8s %-7s %s", c.Kind, p.st.Op(c.Op), strings.Join(c.Keys, ", "))
		return
	}
	p.line("%-8s %-7s +%d ~%d -%d", c.Kind, p.st.Op(c.Op), len(c.Diff.Added), len(c.Diff.Updated), len(c.Diff.Removed))
}

func (p *changePrinter) status(s push.Status) {
	p.line("push     %s", p.st.PushStatus(s))
}

func (p *changePrinter) orphans(m map[string]domain.Instance) {
	p.mu.Lock()
	changed := len(m) != p.lastOrphans
	p.lastOrphans = len(m)
	p.mu.Unlock()
	if changed {
		p.line("orphans  %d", len(m))
	}
}
