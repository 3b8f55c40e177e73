// Package s3 implements the "s3:" locator for Amazon S3 and compatible
// object stores.
//
// Address form: s3://bucket/dir/ for a directory of CSV objects, or
// s3://bucket/dir/file.csv for one object. Only directories can be
// written. Driver arguments: region, endpoint (for S3-compatible
// services), aws_access_key_id and aws_secret_access_key (otherwise the
// default credential chain), part_size_mb and upload_concurrency.
package s3

import (
	"context"

	"github.com/ajitpratap0/crossbar/pkg/bridge"
	"github.com/ajitpratap0/crossbar/pkg/connector/objstore"
	"github.com/ajitpratap0/crossbar/pkg/connector/registry"
	"github.com/ajitpratap0/crossbar/pkg/locator"
	"github.com/ajitpratap0/crossbar/pkg/schema"
	"github.com/ajitpratap0/crossbar/pkg/stream"
)

func init() {
	registry.Register(registry.Driver{
		Kind: locator.KindS3,
		Features: []string{
			"local_data", "write_local_data",
			"if_exists=error|append|overwrite", "compression=gzip|zstd|snappy|s2|lz4",
		},
		Parse: func(s string) (locator.Locator, error) { return Parse(s) },
	})
}

// Locator is an S3 object or prefix
type Locator struct {
	locator.Base
	store  *objstore.Store
	opener func(args locator.DriverArgs) objstore.Opener
}

// Parse parses "s3://bucket/path"
func Parse(s string) (*Locator, error) {
	u, err := objstore.ParseURL(locator.KindS3, s)
	if err != nil {
		return nil, err
	}
	return &Locator{
		Base:   locator.NewBase(locator.KindS3),
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
