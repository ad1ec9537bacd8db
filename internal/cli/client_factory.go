package cli

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/aretw0/pipemirror"
	"github.com/aretw0/pipemirror/internal/config"
	"github.com/aretw0/pipemirror/pkg/adapters/file"
	"github.com/aretw0/pipemirror/pkg/adapters/redis"
	"github.com/aretw0/pipemirror/pkg/gateway"
	"github.com/aretw0/pipemirror/pkg/observability"
	"github.com/aretw0/pipemirror/pkg/persistence/middleware"
	"github.com/aretw0/pipemirror/pkg/ports"
)

// Options carries what the commands share besides the config file.
type Options struct {
	Config    config.Config
	Logger    *slog.Logger
	Confirmer gateway.Confirmer
	Metrics   *observability.Metrics
}

// createClient builds a client following the config. The returned cleanup
// releases resources the snapshot backend opened.
func createClient(opts Options) (*pipemirror.Client, func(), error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = createLogger(cfg.Log)
	}

	clientOpts := []pipemirror.Option{
		pipemirror.WithLogger(logger),
		pipemirror.WithTimeout(cfg.Server.Timeout),
		pipemirror.WithEventsPath(cfg.Server.EventsPath),
		pipemirror.WithBackoff(cfg.Push.MinBackoff, cfg.Push.MaxBackoff),
	}
	if opts.Metrics != nil {
		clientOpts = append(clientOpts, pipemirror.WithMetrics(opts.Metrics))
	}
	if opts.Confirmer != nil {
		clientOpts = append(clientOpts, pipemirror.WithConfirmer(opts.Confirmer))
	}
	if cfg.Commit.Optimistic {
		clientOpts = append(clientOpts, pipemirror.WithOptimisticCommit())
	}

	snapshots, cleanup, err := createSnapshotStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	if snapshots != nil {
		clientOpts = append(clientOpts, pipemirror.WithSnapshotStore(snapshots))
	}

	client, err := pipemirror.New(cfg.Server.URL, clientOpts...)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("error initializing client: %w", err)
	}
	return client, cleanup, nil
}

func createSnapshotStore(cfg config.Config) (ports.SnapshotStore, func(), error) {
	var (
		store   ports.SnapshotStore
		cleanup = func() {}
	)
	switch cfg.Snapshot.Backend {
	case config.SnapshotFile:
		store = file.New(cfg.Snapshot.Path)
	case config.SnapshotRedis:
		rc := cfg.Snapshot.Redis
		rs := redis.New(rc.Addr, rc.Password, rc.DB,
			redis.WithPrefix(rc.Prefix),
			redis.WithTTL(rc.TTL),
			redis.WithName(snapshotName(cfg.Server.URL)),
		)
		store, cleanup = rs, func() { _ = rs.Close() }
	default:
		return nil, cleanup, nil
	}

	mws, err := snapshotMiddlewares(cfg.Snapshot)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return middleware.Chain(store, mws...), cleanup, nil
}

// snapshotMiddlewares redacts before sealing so masked values never reach
// the ciphertext either.
func snapshotMiddlewares(sc config.SnapshotConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(sc.Redact) > 0 {
		mw, err := middleware.NewRedactMiddleware(sc.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	active, fallback, err := sc.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		})
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return mws, nil
}

// snapshotName keeps snapshots of different servers apart in one Redis.
func snapshotName(serverURL string) string {
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return "default"
	}
	return u.Host
}
