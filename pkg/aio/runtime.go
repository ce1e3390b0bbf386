package aio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	gferrors "github.com/vnykmshr/goloop/pkg/common/errors"
	"github.com/vnykmshr/goloop/pkg/common/validation"
	"github.com/vnykmshr/goloop/pkg/eventloop"
	"github.com/vnykmshr/goloop/pkg/metrics"
	"github.com/vnykmshr/goloop/pkg/scheduling/threadpool"
)

// Runtime owns a loop and the pool that delivers results to it.
type Runtime struct {
	config Config
	logger *slog.Logger
	loop   *eventloop.Loop
	pool   *threadpool.Pool

	closeOnce sync.Once
	closeErr  error
}

// New builds a runtime from config.
func New(config Config) (*Runtime, error) {
	if err := validation.ValidateNonNegative("aio", "PoolSize", config.PoolSize); err != nil {
		return nil, err
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.LogLevel}))
	}

	metricsConfig := metrics.Config{Enabled: config.MetricsEnabled, Registry: config.Registry}

	loop := eventloop.NewWithConfig(eventloop.Config{
		Name:    config.LoopName,
		Logger:  logger,
		Metrics: metricsConfig,
	})

	workers := config.PoolSize
	if workers == 0 {
		workers = threadpool.DefaultWorkerCount()
	}
	pool, err := threadpool.NewWithConfig(loop, threadpool.Config{
		WorkerCount: workers,
		Name:        config.PoolName,
		Logger:      logger,
		Metrics:     metricsConfig,
	})
	if err != nil {
		loop.Close()
		return nil, err
	}

	logger.Debug("runtime ready",
		slog.String("loop", loop.Name()),
		slog.String("pool", pool.Name()),
		slog.Int("workers", workers),
	)

	return &Runtime{
		config: config,
		logger: logger,
		loop:   loop,
		pool:   pool,
	}, nil
}

// Loop returns the runtime's event loop.
func (r *Runtime) Loop() *eventloop.Loop {
	return r.loop
}

// Pool returns the runtime's thread pool.
func (r *Runtime) Pool() *threadpool.Pool {
	return r.pool
}

// Logger returns the runtime's logger.
func (r *Runtime) Logger() *slog.Logger {
	return r.logger
}

// Run runs coro on the loop until it finishes or ctx is done.
func (r *Runtime) Run(ctx context.Context, coro eventloop.Coroutine) (any, error) {
	return r.loop.RunUntilComplete(ctx, coro)
}

// Close shuts the pool down, closes the loop and waits up to
// ShutdownTimeout for the workers to exit.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		done := r.pool.Shutdown()
		r.loop.Close()

		select {
		case <-done:
		case <-time.After(r.config.ShutdownTimeout):
			r.closeErr = gferrors.NewOperationError("aio", "Close",
				fmt.Errorf("workers still busy after %v: %w", r.config.ShutdownTimeout, gferrors.ErrTimeout))
			r.logger.Warn("runtime closed with busy workers",
				slog.Int("active_workers", r.pool.ActiveWorkers()))
		}
	})
	return r.closeErr
}
