// Package app ties configuration, logging, metrics, and the engine
// into a runnable application with signal-driven graceful shutdown.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/thinhttp/thin-server/config"
	"github.com/thinhttp/thin-server/core"
	"github.com/thinhttp/thin-server/core/observability"
)

// App is the application instance.
type App struct {
	cfg     *config.Config
	engine  *core.Engine
	logger  observability.Logger
	metrics *observability.Metrics
}

// New creates an application from cfg.
func New(cfg *config.Config) (*App, error) {
	logger, err := observability.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics("thinserver")

	engine := core.NewEngine(
		core.WithLogger(logger),
		core.WithMetrics(metrics),
		core.WithReadTimeout(cfg.ReadTimeout.Duration()),
		core.WithMaxRequestsPerConn(cfg.MaxRequestsPerConn),
		core.WithMaxHeaderBytes(cfg.MaxHeaderBytes),
		core.WithMaxBodyBytes(cfg.MaxBodyBytes),
		core.WithMaxConns(cfg.MaxConns),
	)

	return &App{
		cfg:     cfg,
		engine:  engine,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Engine returns the underlying engine for route registration.
func (a *App) Engine() *core.Engine {
	return a.engine
}

// Logger returns the application logger.
func (a *App) Logger() observability.Logger {
	return a.logger
}

// Metrics returns the application metrics.
func (a *App) Metrics() *observability.Metrics {
	return a.metrics
}

// Run starts the engine and blocks until SIGINT/SIGTERM or a fatal
// serve error. In-flight connections get the configured shutdown grace
// before forced termination.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.engine.Start(a.cfg.Addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		// Bind failures and other fatal serve errors land here.
		if err != nil && !errors.Is(err, core.ErrServerClosed) {
			a.logger.Error("server failed", observability.Err(err))
			return err
		}
		return nil

	case sig := <-quit:
		a.logger.Info("signal received, shutting down",
			observability.String("signal", sig.String()),
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGrace.Duration())
	defer cancel()

	err := a.engine.Stop(ctx)
	<-errCh
	a.logger.Sync()
	return err
}
