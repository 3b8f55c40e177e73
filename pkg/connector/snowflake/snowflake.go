// Package snowflake implements the "snowflake:" locator.
//
// Address form: snowflake:database.schema.table. Snowflake loads with
// COPY INTO from an s3: location, either given directly as the source or
// staged in s3: temporary storage from local data. Extraction is not
// supported.
package snowflake

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/crossbar/pkg/bridge"
	"github.com/ajitpratap0/crossbar/pkg/connector/registry"
	"github.com/ajitpratap0/crossbar/pkg/connector/s3"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
	"github.com/ajitpratap0/crossbar/pkg/logger"
	"github.com/ajitpratap0/crossbar/pkg/schema"
	"github.com/ajitpratap0/crossbar/pkg/stream"
)

const scheme = "snowflake:"

// stagingWindow bounds the uploads to temporary storage in flight at once
const stagingWindow = 4

func init() {
	registry.Register(registry.Driver{
		Kind: locator.KindSnowflake,
		Features: []string{
			"write_local_data", "direct_from=s3", "if_exists=error|append|overwrite",
		},
		Parse: func(s string) (locator.Locator, error) { return Parse(s) },
	})
}

// Locator is a Snowflake table
type Locator struct {
	locator.Base
	table       TableName
	connect     Connector
	credentials func(ctx context.Context, args locator.DriverArgs) (S3Credentials, error)
	temp        func(s string) (*s3.Locator, error)
}

// Parse parses "snowflake:database.schema.table"
func Parse(s string) (*Locator, error) {
	if !strings.HasPrefix(s, scheme) {
		return nil, errors.Newf(errors.ErrorTypeParse, "expected %q to begin with %s", s, scheme)
	}
	table, err := ParseTableName(strings.TrimPrefix(s, scheme))
	if err != nil {
		return nil, err
	}
	return &Locator{
		Base:        locator.NewBase(locator.KindSnowflake),
		table:       table,
		connect:     Connect,
		credentials: awsCredentials,
		temp:        s3.Parse,
	}, nil
}

func awsCredentials(ctx context.Context, args locator.DriverArgs) (S3Credentials, error) {
	creds, err := s3.Credentials(ctx, args)
	if err != nil {
		return S3Credentials{}, err
	}
	return S3Credentials{KeyID: creds.AccessKeyID, SecretKey: creds.SecretAccessKey, SessionToken: creds.SessionToken}, nil
}

// String renders the locator
func (l *Locator) String() string {
	return scheme + l.table.String()
}

// Table returns the table name
func (l *Locator) Table() TableName {
	return l.table
}

// WithConnector returns a copy of l with its external dependencies
// replaced. Nil arguments keep the current value.
func (l *Locator) WithConnector(
	connect Connector,
	credentials func(ctx context.Context, args locator.DriverArgs) (S3Credentials, error),
	temp func(s string) (*s3.Locator, error),
) *Locator {
	c := *l
	if connect != nil {
		c.connect = connect
	}
	if credentials != nil {
		c.credentials = credentials
	}
	if temp != nil {
		c.temp = temp
	}
	return &c
}

// DirectTransfer creates the table as ifExists requires and loads the s3:
// source with COPY INTO.
func (l *Locator) DirectTransfer(ctx context.Context, table *schema.Table, source locator.Locator, opts locator.Options) error {
	src, ok := source.(*s3.Locator)
	if !ok {
		return l.Base.DirectTransfer(ctx, table, source, opts)
	}
	if err := opts.Query.RejectUnless(locator.KindS3); err != nil {
		return err
	}
	create, err := CreateTableSQL(l.table, table, opts.IfExists)
	if err != nil {
		return err
	}
	dsn, err := DSN(l.table, opts.ToArgs)
	if err != nil {
		return err
	}
	ctx = logger.With(ctx, zap.String("table", l.table.String()))

	_, err = bridge.Go(ctx, func() (struct{}, error) {
		creds, err := l.credentials(ctx, opts.FromArgs)
		if err != nil {
			return struct{}{}, err
		}
		db, err := l.connect(ctx, dsn)
		if err != nil {
			return struct{}{}, err
		}
		defer db.Close()

		log := logger.FromContext(ctx)
		log.Debug("creating table", zap.String("sql", create))
		if _, err := db.ExecContext(ctx, create); err != nil {
			err = classify(err, "cannot create table")
			return struct{}{}, errors.Wrapf(err, errors.TypeOf(err), "error creating %s", l).
				WithDetail("table", l.table.String())
		}
		log.Debug("loading from s3", zap.String("source", src.String()))
		res, err := db.ExecContext(ctx, CopyIntoSQL(l.table, table, src.URL(), creds))
		if err != nil {
			err = classify(err, "COPY INTO failed")
			return struct{}{}, errors.Wrapf(err, errors.TypeOf(err), "cannot load %s into %s", src, l).
				WithDetail("table", l.table.String())
		}
		if rows, err := res.RowsAffected(); err == nil {
			log.Info("loaded table", zap.Int64("rows", rows))
		}
		return struct{}{}, nil
	}).Wait(ctx)
	return err
}

// WriteLocalData stages data in s3: temporary storage and loads it once
// every upload has finished.
func (l *Locator) WriteLocalData(ctx context.Context, table *schema.Table, data *stream.Stream[*stream.CsvStream], opts locator.Options) (*stream.Stream[*bridge.Future[struct{}]], error) {
	if _, err := CreateTableSQL(l.table, table, opts.IfExists); err != nil {
		return nil, err
	}
	dir, err := opts.Temporary.Resolve(locator.KindS3)
	if err != nil {
		return nil, err
	}
	temp, err := l.temp(dir)
	if err != nil {
		return nil, err
	}

	toTemp := logger.With(ctx, zap.String("to_temp", temp.String()))
	uploads, err := temp.WriteLocalData(toTemp, table, data, locator.Options{IfExists: locator.IfExistsOverwrite, ToArgs: opts.ToArgs})
	if err != nil {
		return nil, err
	}

	// This call only waits on other tasks, so it must not hold a pool slot.
	done := bridge.Run(ctx, bridge.Dedicated, func() (struct{}, error) {
		if _, err := bridge.AwaitAll(toTemp, uploads, stagingWindow); err != nil {
			return struct{}{}, err
		}
		fromTemp := logger.With(ctx, zap.String("from_temp", temp.String()))
		// The staging area was written with our own arguments.
		loadOpts := opts
		loadOpts.Query = locator.Query{}
		loadOpts.FromArgs = opts.ToArgs
		return struct{}{}, l.DirectTransfer(fromTemp, table, temp, loadOpts)
	})
	return stream.Once(done), nil
}
