// Package app runs the gateway's long-lived components and ties their
// lifecycles together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Server serves HTTP until ctx is cancelled.
type Server interface {
	Run(ctx context.Context) error
}

// Scheduler runs background tasks between Start and Stop.
type Scheduler interface {
	Start() error
	Stop() error
}

// App represents the running gateway.
type App struct {
	logger    *slog.Logger
	server    Server
	scheduler Scheduler
}

// New creates an App. scheduler may be nil.
func New(logger *slog.Logger, server Server, scheduler Scheduler) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		logger:    logger.With("component", "app"),
		server:    server,
		scheduler: scheduler,
	}
}

// Run starts all components and blocks until ctx is cancelled or one of
// them fails, in which case the others are stopped too.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting gateway...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.server.Run(gCtx); err != nil {
			return err
		}
		if ctx.Err() == nil {
			return fmt.Errorf("http server stopped unexpectedly")
		}
		return nil
	})

	if a.scheduler != nil {
		g.Go(func() error {
			if err := a.scheduler.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			a.logger.Info("Shutdown signal received, stopping scheduler...")
			if err := a.scheduler.Stop(); err != nil {
				a.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Gateway stopped due to error", "error", err)
		return err
	}

	a.logger.Info("Gateway stopped gracefully.")
	return nil
}
