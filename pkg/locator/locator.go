// Package locator defines the contract every backend driver satisfies.
//
// A Locator names a dataset at rest ("postgres://host/db#table",
// "gs://bucket/dir/") and knows how to move data in and out of it. The
// transfer engine never inspects a locator beyond this interface: it asks
// the destination whether it can pull directly from the source, and
// otherwise streams generic CSV from one to the other.
package locator

import (
	"context"
	"fmt"

	"github.com/ajitpratap0/crossbar/pkg/bridge"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/schema"
	"github.com/ajitpratap0/crossbar/pkg/stream"
)

// Kind identifies a backend. It is also the locator's scheme.
type Kind string

const (
	KindCSV       Kind = "csv"
	KindPostgres  Kind = "postgres"
	KindMySQL     Kind = "mysql"
	KindGS        Kind = "gs"
	KindS3        Kind = "s3"
	KindBigQuery  Kind = "bigquery"
	KindSnowflake Kind = "snowflake"
)

// Locator is a parsed dataset address plus the operations a backend supports.
// Implementations are immutable values and safe to copy.
type Locator interface {
	fmt.Stringer

	// Kind returns the backend kind
	Kind() Kind

	// SupportsDirectTransferFrom reports whether this locator can load data
	// from source without going through local streams. The answer depends
	// only on source.Kind().
	SupportsDirectTransferFrom(source Locator) bool

	// DirectTransfer loads source into this locator using backend-native
	// machinery. Only called when SupportsDirectTransferFrom returned true.
	DirectTransfer(ctx context.Context, table *schema.Table, source Locator, opts Options) error

	// LocalData extracts the dataset as CSV streams. A nil stream with a
	// nil error means the backend cannot be read this way.
	LocalData(ctx context.Context, table *schema.Table, opts Options) (*stream.Stream[*stream.CsvStream], error)

	// WriteLocalData loads data into this locator. Table preparation happens
	// before the returned stream yields anything; each future resolves when
	// the corresponding input stream has been loaded.
	WriteLocalData(ctx context.Context, table *schema.Table, data *stream.Stream[*stream.CsvStream], opts Options) (*stream.Stream[*bridge.Future[struct{}]], error)
}

// Options are the per-transfer settings handed to every locator operation.
// FromArgs belong to the source driver and ToArgs to the destination; a
// driver reads only its own.
type Options struct {
	IfExists  IfExists
	Query     Query
	FromArgs  DriverArgs
	ToArgs    DriverArgs
	Temporary *TemporaryStorage
}

// Base supplies the default answer for every optional operation. Drivers
// embed it and override what they support.
type Base struct {
	kind Kind
}

// NewBase returns a Base for kind
func NewBase(kind Kind) Base {
	return Base{kind: kind}
}

// Kind returns the backend kind
func (b Base) Kind() Kind {
	return b.kind
}

// SupportsDirectTransferFrom consults the direct transfer table
func (b Base) SupportsDirectTransferFrom(source Locator) bool {
	return SupportsDirectTransfer(source.Kind(), b.kind)
}

// DirectTransfer fails with a capability error
func (b Base) DirectTransfer(_ context.Context, _ *schema.Table, source Locator, _ Options) error {
	return errors.Newf(errors.ErrorTypeCapability, "cannot transfer directly from %s to %s", source.Kind(), b.kind).
		WithDetail("locator", source.String())
}

// LocalData reports that the backend cannot be read as local streams
func (b Base) LocalData(context.Context, *schema.Table, Options) (*stream.Stream[*stream.CsvStream], error) {
	return nil, nil
}

// WriteLocalData fails with a capability error
func (b Base) WriteLocalData(context.Context, *schema.Table, *stream.Stream[*stream.CsvStream], Options) (*stream.Stream[*bridge.Future[struct{}]], error) {
	return nil, errors.Newf(errors.ErrorTypeCapability, "cannot write local data to %s", b.kind)
}

// SchemaSource is implemented by locators that can describe their own
// table, letting callers omit an explicit schema.
type SchemaSource interface {
	Schema(ctx context.Context, args DriverArgs) (*schema.Table, error)
}

// Exporter is implemented by warehouses that can unload a table straight
// into an object storage locator. The destination has already applied
// IfExists when ExportTo is called.
type Exporter interface {
	ExportTo(ctx context.Context, table *schema.Table, dest Locator, opts Options) error
}
