// Package app wires all voicelink subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects the
// observability stack, the local status server, and the room coordinator;
// Run executes them until the context ends; Shutdown tears everything down
// in order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/atluriin/voicelink/internal/config"
	"github.com/atluriin/voicelink/internal/health"
	"github.com/atluriin/voicelink/internal/observe"
	"github.com/atluriin/voicelink/internal/room"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// App owns the subsystem lifetimes for one voicelink run.
type App struct {
	cfg *config.Config
	log *slog.Logger

	metrics *observe.Metrics
	healthH *health.Handler
	room    *room.Coordinator
	server  *http.Server

	// closers are called in reverse order during Shutdown.
	closers  []func(context.Context) error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRoom injects a room coordinator instead of creating one from config.
func WithRoom(r *room.Coordinator) Option {
	return func(a *App) { a.room = r }
}

// WithMetrics injects a metrics instance instead of initialising the global
// provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{
		cfg:     cfg,
		log:     log,
		healthH: health.New(),
	}
	for _, o := range opts {
		o(a)
	}

	if a.metrics == nil {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    "voicelink",
			ServiceVersion: Version,
		})
		if err != nil {
			return nil, fmt.Errorf("app: init telemetry: %w", err)
		}
		a.closers = append(a.closers, shutdown)
		a.metrics = observe.DefaultMetrics()
	}

	if a.room == nil {
		r, err := room.New(cfg, log,
			room.WithMetrics(a.metrics),
			room.WithHealth(a.healthH),
		)
		if err != nil {
			return nil, err
		}
		a.room = r
	}

	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()
		a.healthH.Register(mux)
		mux.Handle("GET /metrics", promhttp.Handler())
		a.server = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return a, nil
}

// Room exposes the coordinator, mainly for interactive front ends and tests.
func (a *App) Room() *room.Coordinator {
	return a.room
}

// Run starts the status server (if configured) and the room coordinator and
// blocks until both finish or ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			a.log.Info("status server listening", "addr", a.server.Addr)
			err := a.server.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer a.room.Stop()
		return a.room.Run(gctx)
	})

	return g.Wait()
}

// Shutdown stops the room and flushes telemetry. Safe to call multiple
// times.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		a.room.Stop()
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
