// Package bigquery implements the "bigquery:" locator.
//
// Address form: bigquery:project:dataset.table. BigQuery never streams
// rows through crossbar directly: loads and extracts go through Cloud
// Storage. A gs: source is loaded with a single load job; local data is
// staged in a run-scoped gs: temporary directory first. Reading works the
// other way round, exporting to temporary storage and reading the objects
// back. A WHERE clause is applied by querying into a temporary table that
// is dropped afterwards.
package bigquery

import (
	"context"
	"strings"

	bq "cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/crossbar/pkg/bridge"
	"github.com/ajitpratap0/crossbar/pkg/connector/gs"
	"github.com/ajitpratap0/crossbar/pkg/connector/registry"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
	"github.com/ajitpratap0/crossbar/pkg/logger"
	"github.com/ajitpratap0/crossbar/pkg/schema"
	"github.com/ajitpratap0/crossbar/pkg/stream"
)

const scheme = "bigquery:"

// stagingWindow bounds the uploads to temporary storage in flight at once
const stagingWindow = 4

func init() {
	registry.Register(registry.Driver{
		Kind: locator.KindBigQuery,
		Features: []string{
			"local_data", "write_local_data", "where", "schema_discovery", "direct_from=gs",
			"if_exists=error|append|overwrite",
		},
		Parse: func(s string) (locator.Locator, error) { return Parse(s) },
	})
}

// Locator is a BigQuery table
type Locator struct {
	locator.Base
	table   TableName
	connect Connector
	temp    func(s string) (*gs.Locator, error)
}

// Parse parses "bigquery:project:dataset.table"
func Parse(s string) (*Locator, error) {
	if !strings.HasPrefix(s, scheme) {
		return nil, errors.Newf(errors.ErrorTypeParse, "expected %q to begin with %s", s, scheme)
	}
	table, err := ParseTableName(strings.TrimPrefix(s, scheme))
	if err != nil {
		return nil, err
	}
	return &Locator{
		Base:    locator.NewBase(locator.KindBigQuery),
		table:   table,
		connect: Connect,
		temp:    gs.Parse,
	}, nil
}

// String renders the locator
func (l *Locator) String() string {
	return scheme + l.table.String()
}

// Table returns the table name
func (l *Locator) Table() TableName {
	return l.table
}

// WithConnector returns a copy of l using connect for BigQuery and temp
// to build its temporary gs: locators.
func (l *Locator) WithConnector(connect Connector, temp func(s string) (*gs.Locator, error)) *Locator {
	c := *l
	c.connect = connect
	if temp != nil {
		c.temp = temp
	}
	return &c
}

// withClient runs fn on the pool with a client that is closed afterwards
func (l *Locator) withClient(ctx context.Context, args locator.DriverArgs, fn func(c Client) error) error {
	_, err := bridge.Go(ctx, func() (struct{}, error) {
		client, err := l.connect(ctx, l.table.Project, args)
		if err != nil {
			return struct{}{}, err
		}
		defer client.Close()
		return struct{}{}, fn(client)
	}).Wait(ctx)
	return err
}

func writeDisposition(ifExists locator.IfExists) bq.TableWriteDisposition {
	switch ifExists {
	case locator.IfExistsAppend:
		return bq.WriteAppend
	case locator.IfExistsOverwrite:
		return bq.WriteTruncate
	}
	return bq.WriteEmpty
}

// sourceURIs returns the objects a load job reads for a gs: locator
func sourceURIs(source *gs.Locator) []string {
	u := source.URL()
	if u.IsDirectory() {
		return []string{u.String() + "*"}
	}
	return []string{u.String()}
}

// DirectTransfer loads a gs: source with one load job
func (l *Locator) DirectTransfer(ctx context.Context, table *schema.Table, source locator.Locator, opts locator.Options) error {
	src, ok := source.(*gs.Locator)
	if !ok {
		return l.Base.DirectTransfer(ctx, table, source, opts)
	}
	bqSchema, err := ToBigQuery(table)
	if err != nil {
		return err
	}
	if err := opts.Query.RejectUnless(locator.KindGS); err != nil {
		return err
	}
	job := LoadJob{Table: l.table, URIs: sourceURIs(src), Schema: bqSchema, Write: writeDisposition(opts.IfExists)}
	logger.FromContext(ctx).Debug("loading from cloud storage", zap.Strings("uris", job.URIs))
	return l.withClient(ctx, opts.ToArgs, func(c Client) error {
		if err := c.Load(ctx, job); err != nil {
			return errors.Wrapf(err, errors.TypeOf(err), "cannot load %s into %s", src, l).
				WithDetail("table", l.table.String())
		}
		return nil
	})
}

// ExportTo extracts the table, filtered by opts.Query, into a gs:
// directory as header-bearing CSV objects.
func (l *Locator) ExportTo(ctx context.Context, table *schema.Table, dest locator.Locator, opts locator.Options) error {
	dst, ok := dest.(*gs.Locator)
	if !ok || !dst.URL().IsDirectory() {
		return errors.Newf(errors.ErrorTypeCapability, "BigQuery can only export to a gs: directory, not %s", dest)
	}
	uri := dst.URL().String() + "*.csv"
	return l.withClient(ctx, opts.FromArgs, func(c Client) error {
		from := l.table
		if !opts.Query.IsEmpty() {
			from = l.table.WithTable("temp_" + strings.ReplaceAll(uuid.NewString(), "-", "_"))
			log := logger.FromContext(ctx).With(zap.String("temp_table", from.String()))
			log.Debug("querying into temporary table")
			if err := c.QueryToTable(ctx, selectSQL(l.table, table, opts.Query.Where), from); err != nil {
				return errors.Wrapf(err, errors.TypeOf(err), "cannot query %s", l).
					WithDetail("table", l.table.String())
			}
			defer func() {
				if err := c.Delete(context.WithoutCancel(ctx), from); err != nil {
					log.Warn("cannot delete temporary table", zap.Error(err))
				}
			}()
		}
		if err := c.Extract(ctx, ExtractJob{Table: from, URI: uri}); err != nil {
			return errors.Wrapf(err, errors.TypeOf(err), "cannot export %s to %s", l, dst).
				WithDetail("table", l.table.String())
		}
		return nil
	})
}

// tempDir returns the run's gs: temporary directory as a locator
func (l *Locator) tempDir(opts locator.Options) (*gs.Locator, error) {
	dir, err := opts.Temporary.Resolve(locator.KindGS)
	if err != nil {
		return nil, err
	}
	return l.temp(dir)
}

// LocalData exports the table to temporary storage and streams the
// exported objects.
func (l *Locator) LocalData(ctx context.Context, table *schema.Table, opts locator.Options) (*stream.Stream[*stream.CsvStream], error) {
	temp, err := l.tempDir(opts)
	if err != nil {
		return nil, err
	}

	toTemp := logger.With(ctx, zap.String("to_temp", temp.String()))
	exportOpts := opts
	exportOpts.IfExists = locator.IfExistsOverwrite
	exportOpts.ToArgs = opts.FromArgs
	if err := temp.DirectTransfer(toTemp, table, l, exportOpts); err != nil {
		return nil, err
	}

	fromTemp := logger.With(ctx, zap.String("from_temp", temp.String()))
	return temp.LocalData(fromTemp, table, locator.Options{FromArgs: opts.FromArgs, Temporary: opts.Temporary})
}

// WriteLocalData stages data in temporary storage and loads it with one
// job once every upload has finished. The returned stream has a single
// handle covering staging and the load.
func (l *Locator) WriteLocalData(ctx context.Context, table *schema.Table, data *stream.Stream[*stream.CsvStream], opts locator.Options) (*stream.Stream[*bridge.Future[struct{}]], error) {
	if _, err := ToBigQuery(table); err != nil {
		return nil, err
	}
	temp, err := l.tempDir(opts)
	if err != nil {
		return nil, err
	}
	if opts.IfExists == locator.IfExistsError {
		err := l.withClient(ctx, opts.ToArgs, func(c Client) error {
			exists, err := c.Exists(ctx, l.table)
			if err != nil {
				return err
			}
			if exists {
				return errors.Newf(errors.ErrorTypeLifecycle, "table %s already exists", l.table).
					WithDetail("table", l.table.String())
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	toTemp := logger.With(ctx, zap.String("to_temp", temp.String()))
	uploads, err := temp.WriteLocalData(toTemp, table, data, locator.Options{IfExists: locator.IfExistsOverwrite, ToArgs: opts.ToArgs})
	if err != nil {
		return nil, err
	}

	// This call only waits on other tasks, so it must not hold a pool slot.
	done := bridge.Run(ctx, bridge.Dedicated, func() (struct{}, error) {
		staged, err := bridge.AwaitAll(toTemp, uploads, stagingWindow)
		if err != nil {
			return struct{}{}, err
		}
		logger.FromContext(ctx).Debug("staged streams", zap.Int("streams", len(staged)))
		fromTemp := logger.With(ctx, zap.String("from_temp", temp.String()))
		loadOpts := opts
		loadOpts.Query = locator.Query{}
		return struct{}{}, l.DirectTransfer(fromTemp, table, temp, loadOpts)
	})
	return stream.Once(done), nil
}

// Schema reads the table's schema from BigQuery
func (l *Locator) Schema(ctx context.Context, args locator.DriverArgs) (*schema.Table, error) {
	var table *schema.Table
	err := l.withClient(ctx, args, func(c Client) error {
		s, err := c.Schema(ctx, l.table)
		if err != nil {
			return errors.Wrapf(err, errors.TypeOf(err), "cannot describe %s", l)
		}
		table, err = FromBigQuery(l.table.Table, s)
		return err
	})
	return table, err
}
