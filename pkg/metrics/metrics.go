// Package metrics exposes Prometheus metrics for transfers.
//
// # Basic Usage
//
//	start := time.Now()
//	err := run()
//	metrics.ObserveTransfer("postgres", "bigquery", metrics.PathStaged, start, err)
//
//	// Serve /metrics until ctx is done
//	go metrics.Serve(ctx, ":9090")
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/logger"
)

// Transfer paths
const (
	PathDirect = "direct"
	PathStaged = "staged"
)

var (
	// TransfersTotal counts finished transfers.
	// Labels: source, destination (schemes), path (direct/staged), status (success or error type)
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossbar_transfers_total",
			Help: "Total number of transfers",
		},
		[]string{"source", "destination", "path", "status"},
	)

	// TransferDuration tracks how long whole transfers take
	TransferDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crossbar_transfer_duration_seconds",
			Help:    "Transfer duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 10),
		},
		[]string{"source", "destination", "path"},
	)

	// StreamsLoaded counts CSV streams written to a destination
	StreamsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossbar_streams_loaded_total",
			Help: "Number of CSV streams loaded into destinations",
		},
		[]string{"destination", "status"},
	)

	// BytesLoaded counts bytes handed to destination bulk loads
	BytesLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossbar_bytes_loaded_total",
			Help: "Bytes sent to destination bulk loads",
		},
		[]string{"destination"},
	)

	// BackgroundCalls tracks blocking calls currently running
	BackgroundCalls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crossbar_background_calls",
			Help: "Blocking backend calls currently running",
		},
	)
)

func status(err error) string {
	if err == nil {
		return "success"
	}
	return string(errors.TypeOf(err))
}

// ObserveTransfer records the outcome and duration of a transfer
func ObserveTransfer(source, dest, path string, start time.Time, err error) {
	TransfersTotal.WithLabelValues(source, dest, path, status(err)).Inc()
	TransferDuration.WithLabelValues(source, dest, path).Observe(time.Since(start).Seconds())
}

// ObserveStream records the outcome of loading one stream
func ObserveStream(dest string, bytes int64, err error) {
	StreamsLoaded.WithLabelValues(dest, status(err)).Inc()
	if bytes > 0 {
		BytesLoaded.WithLabelValues(dest).Add(float64(bytes))
	}
}

// TrackCall increments BackgroundCalls and returns a func that decrements it
func TrackCall() func() {
	BackgroundCalls.Inc()
	return BackgroundCalls.Dec
}

// Serve exposes the default registry on addr until ctx is done
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, errors.ErrorTypeConnection, "metrics server failed")
	}
	return nil
}
