// Package transfer moves a table from one locator to another.
//
// A transfer takes one of two paths. If the destination can load directly
// from the source (a warehouse reading files it already understands), the
// destination does all the work. Otherwise the source is read as CSV
// streams, staging through temporary storage when the source needs it, and
// the destination loads those streams one after another.
package transfer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/crossbar/pkg/bridge"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
	"github.com/ajitpratap0/crossbar/pkg/logger"
	"github.com/ajitpratap0/crossbar/pkg/metrics"
	"github.com/ajitpratap0/crossbar/pkg/observability"
	"github.com/ajitpratap0/crossbar/pkg/schema"
)

// DefaultMaxStreams bounds how many stream loads may be pending at once
const DefaultMaxStreams = 4

type options struct {
	locator.Options
	maxStreams int
	runID      string
}

// Option configures a transfer
type Option func(*options)

// WithQuery restricts the rows read from the source
func WithQuery(q locator.Query) Option {
	return func(o *options) { o.Query = q }
}

// WithFromArgs passes driver arguments to the source
func WithFromArgs(args locator.DriverArgs) Option {
	return func(o *options) { o.FromArgs = args }
}

// WithToArgs passes driver arguments to the destination
func WithToArgs(args locator.DriverArgs) Option {
	return func(o *options) { o.ToArgs = args }
}

// WithTemporary sets the staging locations for the staged path
func WithTemporary(temp *locator.TemporaryStorage) Option {
	return func(o *options) { o.Temporary = temp }
}

// WithMaxStreams sets how many completion handles may be outstanding
func WithMaxStreams(n int) Option {
	return func(o *options) { o.maxStreams = n }
}

// WithRunID fixes the directory name used below each temporary location.
// By default every transfer gets a fresh UUID.
func WithRunID(id string) Option {
	return func(o *options) { o.runID = id }
}

// Transfer copies table from source to dest, applying ifExists to the
// destination. It returns once every stream has been loaded or the first
// error occurs. Cancelling ctx stops reading new streams; a load already in
// progress runs to completion before Transfer reports the cancellation.
func Transfer(ctx context.Context, source locator.Locator, table *schema.Table, dest locator.Locator, ifExists locator.IfExists, opts ...Option) (err error) {
	o := options{maxStreams: DefaultMaxStreams}
	o.IfExists = ifExists
	for _, opt := range opts {
		opt(&o)
	}

	if err := table.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	direct := dest.SupportsDirectTransferFrom(source)
	path := metrics.PathStaged
	if direct {
		path = metrics.PathDirect
	}

	ctx = logger.With(ctx,
		zap.String("source", source.String()),
		zap.String("dest", dest.String()),
		zap.String("table", table.Name),
		zap.String("path", path),
	)
	ctx, span := observability.StartSpan(ctx, "transfer",
		attribute.String("source", string(source.Kind())),
		attribute.String("dest", string(dest.Kind())),
		attribute.String("path", path),
		attribute.String("if_exists", ifExists.String()),
	)
	start := time.Now()
	log := logger.FromContext(ctx)
	log.Info("starting transfer")

	defer func() {
		if err != nil {
			err = withLocators(err, source, dest, table)
			log.Error("transfer failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		} else {
			log.Info("transfer finished", zap.Duration("elapsed", time.Since(start)))
		}
		metrics.ObserveTransfer(string(source.Kind()), string(dest.Kind()), path, start, err)
		observability.EndSpan(span, err)
	}()

	if direct {
		return dest.DirectTransfer(ctx, table, source, o.Options)
	}
	return staged(ctx, source, table, dest, o)
}

func staged(ctx context.Context, source locator.Locator, table *schema.Table, dest locator.Locator, o options) error {
	runID := o.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	o.Temporary = o.Temporary.ForRun(runID)
	logger.FromContext(ctx).Debug("using temporary storage",
		zap.String("run_id", runID),
		zap.Strings("temporaries", o.Temporary.Locations()))

	data, err := source.LocalData(ctx, table, o.Options)
	if err != nil {
		return err
	}
	if data == nil {
		return errors.Newf(errors.ErrorTypeCapability, "don't know how to read data from %s", source.Kind())
	}

	futures, err := dest.WriteLocalData(ctx, table, data, o.Options)
	if err != nil {
		return err
	}
	_, err = bridge.AwaitAll(ctx, futures, o.maxStreams)
	return err
}

func withLocators(err error, source, dest locator.Locator, table *schema.Table) error {
	var e *errors.Error
	if !errors.As(err, &e) {
		return errors.Wrap(err, errors.TypeOf(err), "transfer failed").
			WithDetail("source", source.String()).
			WithDetail("dest", dest.String()).
			WithDetail("table", table.Name)
	}
	if _, ok := e.Details["source"]; !ok {
		e.WithDetail("source", source.String()).
			WithDetail("dest", dest.String()).
			WithDetail("table", table.Name)
	}
	return err
}
