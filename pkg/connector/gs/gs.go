// Package gs implements the "gs:" locator for Google Cloud Storage.
//
// Address form: gs://bucket/dir/ for a directory of CSV objects, or
// gs://bucket/dir/file.csv for one object. Only directories can be
// written. A gs: directory can also receive a BigQuery table directly
// through an extract job.
package gs

import (
	"context"

	"github.com/ajitpratap0/crossbar/pkg/bridge"
	"github.com/ajitpratap0/crossbar/pkg/connector/objstore"
	"github.com/ajitpratap0/crossbar/pkg/connector/registry"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
	"github.com/ajitpratap0/crossbar/pkg/schema"
	"github.com/ajitpratap0/crossbar/pkg/stream"
)

func init() {
	registry.Register(registry.Driver{
		Kind: locator.KindGS,
		Features: []string{
			"local_data", "write_local_data", "direct_from=bigquery",
			"if_exists=error|append|overwrite", "compression=gzip|zstd|snappy|s2|lz4",
		},
		Parse: func(s string) (locator.Locator, error) { return Parse(s) },
	})
}

// Locator is a Cloud Storage object or prefix
type Locator struct {
	locator.Base
	store  *objstore.Store
	opener func(args locator.DriverArgs) objstore.Opener
}

// Parse parses "gs://bucket/path"
func Parse(s string) (*Locator, error) {
	u, err := objstore.ParseURL(locator.KindGS, s)
	if err != nil {
		return nil, err
	}
	return &Locator{
		Base:   locator.NewBase(locator.KindGS),
		store:  objstore.NewStore(u, nil),
		opener: Opener,
	}, nil
}

// String renders the locator
func (l *Locator) String() string {
	return l.store.URL().String()
}

// URL returns the parsed location
func (l *Locator) URL() objstore.URL {
	return l.store.URL()
}

// WithBuckets returns a copy of l that talks to buckets from open
func (l *Locator) WithBuckets(open objstore.Opener) *Locator {
	c := *l
	c.opener = func(locator.DriverArgs) objstore.Opener { return open }
	return &c
}

func (l *Locator) storeFor(args locator.DriverArgs) *objstore.Store {
	return l.store.WithOpener(l.opener(args))
}

// LocalData reads the CSV objects at the locator
func (l *Locator) LocalData(ctx context.Context, _ *schema.Table, opts locator.Options) (*stream.Stream[*stream.CsvStream], error) {
	return l.storeFor(opts.FromArgs).LocalData(ctx, opts)
}

// WriteLocalData uploads each stream as one object under the directory
func (l *Locator) WriteLocalData(ctx context.Context, _ *schema.Table, data *stream.Stream[*stream.CsvStream], opts locator.Options) (*stream.Stream[*bridge.Future[struct{}]], error) {
	return l.storeFor(opts.ToArgs).WriteLocalData(ctx, data, opts)
}

// Prepare applies ifExists to the directory without writing anything
func (l *Locator) Prepare(ctx context.Context, ifExists locator.IfExists, args locator.DriverArgs) error {
	return l.storeFor(args).Prepare(ctx, ifExists)
}

// DirectTransfer asks a warehouse source to export into this directory
func (l *Locator) DirectTransfer(ctx context.Context, table *schema.Table, source locator.Locator, opts locator.Options) error {
	exporter, ok := source.(locator.Exporter)
	if !ok {
		return l.Base.DirectTransfer(ctx, table, source, opts)
	}
	if !l.URL().IsDirectory() {
		return errors.Newf(errors.ErrorTypeCapability, "can only export to a gs directory ending in '/', not %s", l)
	}
	if err := l.Prepare(ctx, opts.IfExists, opts.ToArgs); err != nil {
		return err
	}
	return exporter.ExportTo(ctx, table, l, opts)
}
