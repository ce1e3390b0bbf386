package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for metrics collection.
type Config struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool

	// Registry is the Prometheus registry to use. If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Registry: prometheus.DefaultRegisterer,
	}
}

// Resolve returns the Registry described by the config, or nil when
// metrics are disabled. Components treat a nil *Registry as "off".
func (c Config) Resolve() *Registry {
	if !c.Enabled {
		return nil
	}
	reg := c.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return For(reg)
}
