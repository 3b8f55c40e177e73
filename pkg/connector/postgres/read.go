package postgres

import (
	"context"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/crossbar/pkg/bridge"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
	"github.com/ajitpratap0/crossbar/pkg/logger"
	"github.com/ajitpratap0/crossbar/pkg/schema"
	"github.com/ajitpratap0/crossbar/pkg/stream"
)

// LocalData extracts the table as a single CSV stream named after the
// table. The query is checked against the server before any data is
// returned, so a bad table or WHERE clause fails the transfer before the
// destination is touched.
func (l *Locator) LocalData(ctx context.Context, table *schema.Table, opts locator.Options) (*stream.Stream[*stream.CsvStream], error) {
	ctx = logger.With(ctx, zap.String("table", l.table.String()))
	create, err := NewCreateTable(l.table, table)
	if err != nil {
		return nil, err
	}
	copySQL := create.CopyToSQL(opts.Query.Where)
	probeSQL := probeQuery(create, opts.Query.Where)

	checked := bridge.Go(ctx, func() (struct{}, error) {
		conn, err := l.open(ctx)
		if err != nil {
			return struct{}{}, err
		}
		defer conn.Close(context.WithoutCancel(ctx))
		if err := conn.Exec(ctx, probeSQL); err != nil {
			return struct{}{}, errors.Wrapf(err, errors.TypeOf(err), "cannot read from %s", l.table).
				WithDetail("table", l.table.String())
		}
		return struct{}{}, nil
	})
	if _, err := checked.Wait(ctx); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Debug("extracting table", zap.String("sql", copySQL))
	data := bridge.WriterStream(ctx, bridge.Dedicated, func(w io.Writer) error {
		conn, err := l.open(ctx)
		if err != nil {
			return err
		}
		defer conn.Close(context.WithoutCancel(ctx))
		if err := conn.CopyTo(ctx, w, copySQL); err != nil {
			return errors.Wrapf(err, errors.TypeOf(err), "error copying data from %s", l.table).
				WithDetail("table", l.table.String())
		}
		return nil
	})
	return stream.Once(&stream.CsvStream{Name: l.table.Name, Data: data}), nil
}

func probeQuery(create *PgCreateTable, where string) string {
	query := "SELECT " + create.quotedColumns() + " FROM " + create.Name.Quoted()
	if strings.TrimSpace(where) != "" {
		query += " WHERE " + where
	}
	return query + " LIMIT 0"
}

// Schema describes the table from information_schema
func (l *Locator) Schema(ctx context.Context, _ locator.DriverArgs) (*schema.Table, error) {
	cols := bridge.Go(ctx, func() ([]ColumnInfo, error) {
		conn, err := l.open(ctx)
		if err != nil {
			return nil, err
		}
		defer conn.Close(context.WithoutCancel(ctx))
		return conn.Columns(ctx, l.table)
	})
	infos, err := cols.Wait(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, errors.TypeOf(err), "cannot describe %s", l.table)
	}
	if len(infos) == 0 {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "table %s does not exist", l.table).
			WithDetail("table", l.table.String())
	}

	table := &schema.Table{Name: l.table.Name, Columns: make([]schema.Column, 0, len(infos))}
	for _, info := range infos {
		dt, err := portableType(info)
		if err != nil {
			return nil, err
		}
		table.Columns = append(table.Columns, schema.Column{Name: info.Name, IsNullable: info.IsNullable, DataType: dt})
	}
	return table, nil
}

var udtTypes = map[string]schema.TypeName{
	"bool":        schema.TypeBool,
	"date":        schema.TypeDate,
	"numeric":     schema.TypeDecimal,
	"float4":      schema.TypeFloat32,
	"float8":      schema.TypeFloat64,
	"int2":        schema.TypeInt16,
	"int4":        schema.TypeInt32,
	"int8":        schema.TypeInt64,
	"json":        schema.TypeJSON,
	"jsonb":       schema.TypeJSON,
	"text":        schema.TypeText,
	"varchar":     schema.TypeText,
	"bpchar":      schema.TypeText,
	"citext":      schema.TypeText,
	"timestamp":   schema.TypeTimestampWithoutTimeZone,
	"timestamptz": schema.TypeTimestampWithTimeZone,
	"uuid":        schema.TypeUUID,
}

func portableType(info ColumnInfo) (schema.DataType, error) {
	udt := info.UDTName
	isArray := info.DataType == "ARRAY"
	if isArray && len(udt) > 1 && udt[0] == '_' {
		udt = udt[1:]
	}
	name, ok := udtTypes[udt]
	if !ok {
		return schema.DataType{}, errors.Newf(errors.ErrorTypeSchema, "column %q has unsupported postgres type %s", info.Name, info.UDTName).
			WithDetail("column", info.Name)
	}
	if isArray {
		return schema.ArrayOf(schema.Scalar(name)), nil
	}
	return schema.Scalar(name), nil
}
