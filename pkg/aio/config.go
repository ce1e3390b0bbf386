package aio

import (
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	gferrors "github.com/vnykmshr/goloop/pkg/common/errors"
)

// Config holds runtime configuration. Tagged fields are read from the
// environment by LoadConfig.
type Config struct {
	// LoopName names the event loop in logs and metrics.
	LoopName string `env:"GOLOOP_LOOP_NAME" envDefault:"main"`

	// PoolSize is the number of pool workers; 0 means threadpool.DefaultWorkerCount.
	PoolSize int `env:"GOLOOP_POOL_SIZE" envDefault:"0"`

	// PoolName names the thread pool in logs and metrics.
	PoolName string `env:"GOLOOP_POOL_NAME" envDefault:"default"`

	// LogLevel applies to the default logger only.
	LogLevel slog.Level `env:"GOLOOP_LOG_LEVEL" envDefault:"INFO"`

	// MetricsEnabled turns on Prometheus instrumentation.
	MetricsEnabled bool `env:"GOLOOP_METRICS_ENABLED" envDefault:"false"`

	// ShutdownTimeout bounds how long Close waits for pool workers.
	ShutdownTimeout time.Duration `env:"GOLOOP_SHUTDOWN_TIMEOUT" envDefault:"5s"`

	// Logger overrides the default text logger on stderr.
	Logger *slog.Logger

	// Registry receives metrics; nil means prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// DefaultConfig returns the configuration LoadConfig yields on an empty
// environment.
func DefaultConfig() Config {
	return Config{
		LoopName:        "main",
		PoolName:        "default",
		LogLevel:        slog.LevelInfo,
		ShutdownTimeout: 5 * time.Second,
	}
}

// LoadConfig reads Config from the environment. Any envFiles are loaded
// first with godotenv; missing files are ignored and variables already set
// in the environment win.
func LoadConfig(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, gferrors.NewOperationError("aio", "LoadConfig", err).
				WithContext(file)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, gferrors.NewOperationError("aio", "LoadConfig", err)
	}
	return cfg, nil
}
