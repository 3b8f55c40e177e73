package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/crossbar/pkg/bridge"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
	"github.com/ajitpratap0/crossbar/pkg/logger"
	"github.com/ajitpratap0/crossbar/pkg/metrics"
	"github.com/ajitpratap0/crossbar/pkg/schema"
	"github.com/ajitpratap0/crossbar/pkg/stream"
)

// WriteLocalData prepares the table once according to opts.IfExists, then
// loads each CSV stream with a binary COPY, one stream at a time. A stream
// that fails leaves the streams before it committed; the failing COPY is
// rolled back by the server.
func (l *Locator) WriteLocalData(ctx context.Context, table *schema.Table, data *stream.Stream[*stream.CsvStream], opts locator.Options) (*stream.Stream[*bridge.Future[struct{}]], error) {
	ctx = logger.With(ctx, zap.String("table", l.table.String()))
	create, err := NewCreateTable(l.table, table)
	if err != nil {
		return nil, err
	}
	pool := bridge.FromContext(ctx)

	prepared := bridge.Run(ctx, pool, func() (struct{}, error) {
		return struct{}{}, l.prepareTable(ctx, create, opts.IfExists)
	})
	if _, err := prepared.Wait(ctx); err != nil {
		return nil, err
	}

	copySQL := create.CopyFromSQL()
	logger.FromContext(ctx).Debug("copy statement", zap.String("sql", copySQL))

	return locator.LoadEach(ctx, data, func(ctx context.Context, s *stream.CsvStream) *bridge.Future[struct{}] {
		return l.copyStream(ctx, pool, create, copySQL, s)
	}), nil
}

// prepareTable runs DROP and/or CREATE as required by ifExists
func (l *Locator) prepareTable(ctx context.Context, create *PgCreateTable, ifExists locator.IfExists) error {
	conn, err := l.open(ctx)
	if err != nil {
		return err
	}
	defer conn.Close(context.WithoutCancel(ctx))

	stmt := *create
	log := logger.FromContext(ctx)
	switch ifExists {
	case locator.IfExistsOverwrite:
		log.Debug("deleting table if exists")
		if err := conn.Exec(ctx, stmt.DropSQL()); err != nil {
			return errors.Wrapf(err, errors.TypeOf(err), "error deleting existing %s", l.table)
		}
		stmt.IfNotExists = false
	case locator.IfExistsAppend:
		// Reuse whatever is there; the explicit column list in COPY catches
		// name mismatches.
		stmt.IfNotExists = true
	default:
		stmt.IfNotExists = false
	}

	log.Debug("creating table", zap.String("sql", stmt.String()))
	if err := conn.Exec(ctx, stmt.String()); err != nil {
		return errors.Wrapf(err, errors.TypeOf(err), "error creating %s", l.table).
			WithDetail("table", l.table.String())
	}
	return nil
}

// copyStream encodes s to binary COPY format on one worker while a second
// worker streams the result into the server. Both slots are reserved
// together.
func (l *Locator) copyStream(ctx context.Context, pool *bridge.Pool, create *PgCreateTable, copySQL string, s *stream.CsvStream) *bridge.Future[struct{}] {
	res, err := pool.Reserve(ctx, 2)
	if err != nil {
		return bridge.Resolved(struct{}{}, err)
	}
	defer res.Release()

	// Once started, a partition runs to completion so it is either fully
	// committed or rolled back.
	wctx := context.WithoutCancel(ctx)
	encoder := NewBinaryEncoder(create)
	encoded := bridge.SpawnTransform(wctx, res, s.Data, encoder.Transform)

	return bridge.Run(wctx, res, func() (struct{}, error) {
		defer metrics.TrackCall()()
		conn, err := l.open(wctx)
		if err != nil {
			return struct{}{}, err
		}
		defer conn.Close(wctx)

		r := bridge.NewStreamReader(wctx, encoded)
		defer r.Close()
		counted := bridge.NewCountingReader(r)

		rows, err := conn.CopyFrom(wctx, counted, copySQL)
		if counted.Err() != nil {
			// The server only reports that the input was aborted; the
			// encoder's error says why.
			err = counted.Err()
		}
		metrics.ObserveStream(string(locator.KindPostgres), counted.Count(), err)
		if err != nil {
			return struct{}{}, errors.Wrapf(err, errors.TypeOf(err), "error copying data into %s", l.table).
				WithDetail("table", l.table.String()).
				WithDetail("stream", s.Name)
		}
		logger.FromContext(ctx).Debug("copied stream", zap.Int64("rows", rows), zap.Int64("bytes", counted.Count()))
		return struct{}{}, nil
	})
}
