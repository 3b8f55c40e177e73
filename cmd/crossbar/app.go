package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/crossbar/pkg/config"
	"github.com/ajitpratap0/crossbar/pkg/logger"
	"github.com/ajitpratap0/crossbar/pkg/metrics"
	"github.com/ajitpratap0/crossbar/pkg/observability"
)

// app holds process-wide state built before any subcommand runs
type app struct {
	v           *viper.Viper
	cfg         *config.Config
	stopTracing observability.ShutdownFunc
	stopMetrics context.CancelFunc
}

func newApp(v *viper.Viper) *app {
	return &app{v: v, cfg: config.Default()}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "crossbar",
		Short: "Copy tables between databases, warehouses and files",
		Long: `crossbar copies a table from one locator to another, for example from
PostgreSQL to BigQuery or from CSV files to Snowflake.

Settings may also be given as CROSSBAR_* environment variables
(CROSSBAR_LOG_LEVEL, CROSSBAR_WORKERS, ...) or in a YAML file passed with --config.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "YAML configuration file")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json or console)")
	flags.Int("workers", 0, "size of the background worker pool")
	flags.Int("max-streams", 0, "maximum number of destination loads pending at once")
	flags.Duration("timeout", 0, "abort a transfer that runs longer than this")
	flags.Bool("trace", false, "print OpenTelemetry spans to stderr")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	_ = a.v.BindPFlags(flags)
	a.v.SetEnvPrefix("CROSSBAR")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(a.cpCommand(), a.featuresCommand(), versionCommand())
	return root
}

// setup loads configuration and starts logging, tracing and metrics
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if path := a.v.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	a.applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	obs := cfg.Observability
	if err := logger.Init(logger.Config{Level: obs.LogLevel, Encoding: obs.LogFormat}); err != nil {
		return err
	}

	stop, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "crossbar",
		ServiceVersion: version,
		Enabled:        obs.EnableTracing,
		SamplingRate:   1.0,
		Output:         cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	a.stopTracing = stop

	if obs.EnableMetrics {
		ctx, cancel := context.WithCancel(cmd.Context())
		a.stopMetrics = cancel
		go func() {
			if err := metrics.Serve(ctx, obs.MetricsAddr); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}
	return nil
}

// applyOverrides layers flags and CROSSBAR_* variables over the file
func (a *app) applyOverrides(cfg *config.Config) {
	if a.v.IsSet("log-level") {
		cfg.Observability.LogLevel = a.v.GetString("log-level")
	}
	if a.v.IsSet("log-format") {
		cfg.Observability.LogFormat = a.v.GetString("log-format")
	}
	if a.v.IsSet("workers") {
		cfg.Performance.Workers = a.v.GetInt("workers")
	}
	if a.v.IsSet("max-streams") {
		cfg.Performance.MaxStreams = a.v.GetInt("max-streams")
	}
	if a.v.IsSet("timeout") {
		cfg.Timeouts.Transfer = a.v.GetDuration("timeout")
	}
	if a.v.IsSet("trace") {
		cfg.Observability.EnableTracing = a.v.GetBool("trace")
	}
	if addr := a.v.GetString("metrics-addr"); addr != "" {
		cfg.Observability.EnableMetrics = true
		cfg.Observability.MetricsAddr = addr
	}
}

func (a *app) shutdown(ctx context.Context) {
	if a.stopMetrics != nil {
		a.stopMetrics()
	}
	if a.stopTracing != nil {
		if err := a.stopTracing(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}
	_ = logger.Sync()
}
