// Package server wires the application's services together and runs them.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/metasim/ogcapi/internal/api"
	"github.com/metasim/ogcapi/internal/clock/system"
	"github.com/metasim/ogcapi/internal/config"
	"github.com/metasim/ogcapi/internal/executor"
	idgen "github.com/metasim/ogcapi/internal/id/uuid"
	"github.com/metasim/ogcapi/internal/metrics"
	"github.com/metasim/ogcapi/internal/ogc"
	queueMemory "github.com/metasim/ogcapi/internal/queue/memory"
	"github.com/metasim/ogcapi/internal/registry"
	"github.com/metasim/ogcapi/internal/runner"
	storeMemory "github.com/metasim/ogcapi/internal/storage/memory"
	pgstore "github.com/metasim/ogcapi/internal/storage/postgres"
	"github.com/metasim/ogcapi/internal/worker"
)

// App contains the application's long-lived services.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	apiServer *api.Server
	pool      *worker.Pool
	queue     *queueMemory.Queue
	store     ogc.JobStore
	pgStore   *pgstore.JobStore
}

// NewApp builds the full service graph from configuration. It fails
// fast when a backend cannot be initialized.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}

	switch cfg.DB.Provider {
	case "postgres":
		logger.Info("connecting to postgres job store")
		store, err := pgstore.NewJobStore(ctx, pgstore.JobStoreConfig{
			DSN:             cfg.DB.DSN,
			Table:           cfg.DB.Table,
			MaxConns:        int32(cfg.DB.MaxConns),
			MinConns:        int32(cfg.DB.MinConns),
			MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeMin) * time.Minute,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize job store: %w", err)
		}
		a.pgStore = store
		a.store = store
	case "memory":
		logger.Info("using in-memory job store")
		a.store = storeMemory.NewJobStore()
	default:
		return nil, fmt.Errorf("unknown db.provider: %s", cfg.DB.Provider)
	}

	echo := runner.NewEcho()
	sleep := runner.NewSleep()
	reg := registry.FromRunners(echo, sleep)
	runners := map[string]ogc.Runner{
		echo.Describe().ID:  echo,
		sleep.Describe().ID: sleep,
	}

	a.queue = queueMemory.NewQueue(cfg.Jobs.QueueDepth)
	a.pool = worker.New(a.queue, a.store, runners, worker.Config{
		Workers:        cfg.Jobs.Workers,
		MaxJobDuration: cfg.MaxJobDuration(),
	}, logger.Named("worker"))

	exec := executor.New(
		reg,
		a.store,
		a.queue,
		idgen.New(),
		system.New(),
		a.pool,
		executor.Config{PollInterval: cfg.PollInterval()},
		logger.Named("executor"),
	)

	a.apiServer = api.NewServer(reg, a.store, exec, cfg, logger.Named("api"))
	return a, nil
}

// Run starts the worker pool and the HTTP server, blocking until the
// context is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("worker pool started", zap.Int("workers", a.cfg.Jobs.Workers))
		a.pool.Run(ctx)
		return nil
	})

	g.Go(func() error {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", zap.Error(err))
		}
		return nil
	})

	err := g.Wait()
	a.Close()
	return err
}

// Close releases backend resources.
func (a *App) Close() {
	a.queue.Close()
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	a.logger.Info("shutdown complete")
}
