package config

import (
	"runtime"
	"time"

	"github.com/ajitpratap0/crossbar/pkg/errors"
)

// Config is the process configuration for crossbar. Every section has a
// usable default, so an empty file is a valid configuration.
type Config struct {
	// Temporaries are staging locations such as "gs://bucket/tmp/" used when
	// no direct transfer path exists
	Temporaries []string `yaml:"temporaries" json:"temporaries"`

	// Drivers holds default driver arguments per scheme, e.g.
	// drivers.bigquery.location. Arguments given on the command line win.
	Drivers map[string]map[string]string `yaml:"drivers" json:"drivers"`

	Performance   PerformanceConfig   `yaml:"performance" json:"performance"`
	Timeouts      TimeoutConfig       `yaml:"timeouts" json:"timeouts"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// PerformanceConfig controls concurrency and buffering
type PerformanceConfig struct {
	// Workers is the size of the background pool running blocking calls
	Workers int `yaml:"workers" json:"workers"`
	// MaxStreams bounds how many destination loads may be pending at once
	MaxStreams int `yaml:"max_streams" json:"max_streams"`
	// ChunkSize is the read size used when splitting data into chunks
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
}

// TimeoutConfig bounds how long operations may take
type TimeoutConfig struct {
	// Connection timeout for establishing backend connections
	Connection time.Duration `yaml:"connection" json:"connection"`
	// Transfer caps a whole transfer; zero means no limit
	Transfer time.Duration `yaml:"transfer" json:"transfer"`
}

// ObservabilityConfig contains logging, tracing and metrics settings
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogFormat is "json" or "console"
	LogFormat string `yaml:"log_format" json:"log_format"`
	// EnableTracing exports spans to stdout
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// EnableMetrics serves Prometheus metrics on MetricsAddr
	EnableMetrics bool   `yaml:"enable_metrics" json:"enable_metrics"`
	MetricsAddr   string `yaml:"metrics_addr" json:"metrics_addr"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Drivers: make(map[string]map[string]string),
		Performance: PerformanceConfig{
			Workers:    runtime.NumCPU(),
			MaxStreams: 4,
			ChunkSize:  64 * 1024,
		},
		Timeouts: TimeoutConfig{
			Connection: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "console",
			MetricsAddr: ":9090",
		},
	}
}

// Validate checks that values are within acceptable ranges
func (c *Config) Validate() error {
	if c.Performance.Workers < 0 {
		return errors.New(errors.ErrorTypeConfig, "performance.workers cannot be negative")
	}
	if c.Performance.MaxStreams <= 0 {
		return errors.New(errors.ErrorTypeConfig, "performance.max_streams must be positive")
	}
	if c.Performance.ChunkSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "performance.chunk_size must be positive")
	}
	if c.Timeouts.Transfer < 0 || c.Timeouts.Connection < 0 {
		return errors.New(errors.ErrorTypeConfig, "timeouts cannot be negative")
	}
	switch c.Observability.LogFormat {
	case "json", "console":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "observability.log_format must be json or console, got %q", c.Observability.LogFormat)
	}
	if c.Observability.EnableMetrics && c.Observability.MetricsAddr == "" {
		return errors.New(errors.ErrorTypeConfig, "observability.metrics_addr is required when metrics are enabled")
	}
	return nil
}

// GetWorkers returns the number of workers, defaulting to the CPU count
func (p *PerformanceConfig) GetWorkers() int {
	if p.Workers <= 0 {
		return runtime.NumCPU()
	}
	return p.Workers
}

// DriverArgs returns a copy of the configured default arguments for scheme
func (c *Config) DriverArgs(scheme string) map[string]string {
	args := make(map[string]string, len(c.Drivers[scheme]))
	for k, v := range c.Drivers[scheme] {
		args[k] = v
	}
	return args
}
