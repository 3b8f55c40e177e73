package mysql

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
// loads each CSV stream with LOAD DATA LOCAL INFILE, one stream at a time.
func (l *Locator) WriteLocalData(ctx context.Context, table *schema.Table, data *stream.Stream[*stream.CsvStream], opts locator.Options) (*stream.Stream[*bridge.Future[struct{}]], error) {
	ctx = logger.With(ctx, zap.String("table", l.table))
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

	return locator.LoadEach(ctx, data, func(ctx context.Context, s *stream.CsvStream) *bridge.Future[struct{}] {
		return l.loadStream(ctx, pool, create, s)
	}), nil
}

func (l *Locator) prepareTable(ctx context.Context, create *CreateTable, ifExists locator.IfExists) error {
	conn, err := l.open(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	stmt := *create
	log := logger.FromContext(ctx)
	switch ifExists {
	case locator.IfExistsOverwrite:
		log.Debug("deleting table if exists")
		if err := conn.Exec(ctx, stmt.DropSQL()); err != nil {
			return errors.Wrapf(err, errors.TypeOf(err), "error deleting existing %s", l.table)
		}
	case locator.IfExistsAppend:
		stmt.IfNotExists = true
	}

	log.Debug("creating table", zap.String("sql", stmt.String()))
	if err := conn.Exec(ctx, stmt.String()); err != nil {
		return errors.Wrapf(err, errors.TypeOf(err), "error creating %s", l.table).
			WithDetail("table", l.table)
	}
	return nil
}

// loadStream converts s on one worker while a second feeds the server
func (l *Locator) loadStream(ctx context.Context, pool *bridge.Pool, create *CreateTable, s *stream.CsvStream) *bridge.Future[struct{}] {
	res, err := pool.Reserve(ctx, 2)
	if err != nil {
		return bridge.Resolved(struct{}{}, err)
	}
	defer res.Release()

	wctx := context.WithoutCancel(ctx)
	encoded := bridge.SpawnTransform(wctx, res, s.Data, NewTextEncoder(create).Transform)

	return bridge.Run(wctx, res, func() (struct{}, error) {
		defer metrics.TrackCall()()
		conn, err := l.open(wctx)
		if err != nil {
			return struct{}{}, err
		}
		defer conn.Close()

		r := bridge.NewStreamReader(wctx, encoded)
		defer r.Close()
		counted := bridge.NewCountingReader(r)

		rows, err := conn.LoadData(wctx, counted, create.LoadSQL)
		if counted.Err() != nil {
			err = counted.Err()
		}
		metrics.ObserveStream(string(locator.KindMySQL), counted.Count(), err)
		if err != nil {
			return struct{}{}, errors.Wrapf(err, errors.TypeOf(err), "error loading data into %s", l.table).
				WithDetail("table", l.table).
				WithDetail("stream", s.Name)
		}
		logger.FromContext(ctx).Debug("loaded stream", zap.Int64("rows", rows), zap.Int64("bytes", counted.Count()))
		return struct{}{}, nil
	})
}
