// Package app owns the application lifecycle: it wires the ledger, chain
// client, monitor, services, and HTTP surface, starts the long-running
// goroutines, and tears everything down on shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xuanbach0212/predictum/internal/config"
)

// shutdownGrace bounds how long in-flight HTTP requests get on shutdown.
const shutdownGrace = 10 * time.Second

// App is the root application object. It owns the configuration, logger,
// and cleanup functions run in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the server and background loops, and
// blocks until the context is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.Int("port", a.cfg.Server.Port),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, gctx := errgroup.WithContext(ctx)

	// HTTP server, shut down when the group context ends.
	g.Go(func() error {
		return deps.Server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return deps.Server.Shutdown(shutdownCtx)
	})

	// WebSocket hub.
	if deps.Hub != nil {
		g.Go(func() error {
			if err := deps.Hub.Run(gctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		})
	}

	// Reconciliation monitor.
	if deps.Monitor != nil {
		g.Go(func() error {
			return deps.Monitor.Run(gctx)
		})
	}

	// Expiry sweeper: locks markets whose betting window has closed.
	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Ledger.ExpirySweep.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				locked := deps.Ledger.LockExpired(gctx, now)
				if len(locked) > 0 {
					a.logger.InfoContext(gctx, "locked expired markets",
						slog.Int("count", len(locked)),
					)
				}
			}
		}
	})

	// Price oracle: opens crypto markets and settles the ones it opened.
	if deps.Oracle != nil {
		g.Go(func() error {
			return deps.Oracle.Run(gctx)
		})
	}

	// Settlement archiver.
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		return fmt.Errorf("app: %w", err)
	}
	return nil
}

// Close tears down all resources in reverse registration order. Safe to
// call multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
