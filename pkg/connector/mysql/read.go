package mysql

import (
	"context"
	"database/sql"
	"encoding/csv"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/crossbar/pkg/bridge"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
	"github.com/ajitpratap0/crossbar/pkg/logger"
	"github.com/ajitpratap0/crossbar/pkg/schema"
	"github.com/ajitpratap0/crossbar/pkg/stream"
)

// LocalData extracts the table as a single CSV stream named after the
// table. The query is checked with LIMIT 0 before any data is returned.
func (l *Locator) LocalData(ctx context.Context, table *schema.Table, opts locator.Options) (*stream.Stream[*stream.CsvStream], error) {
	ctx = logger.With(ctx, zap.String("table", l.table))
	create, err := NewCreateTable(l.table, table)
	if err != nil {
		return nil, err
	}
	selectSQL := create.SelectSQL(opts.Query.Where)

	checked := bridge.Go(ctx, func() (struct{}, error) {
		conn, err := l.open(ctx)
		if err != nil {
			return struct{}{}, err
		}
		defer conn.Close()
		if err := conn.Exec(ctx, selectSQL+" LIMIT 0"); err != nil {
			return struct{}{}, errors.Wrapf(err, errors.TypeOf(err), "cannot read from %s", l.table).
				WithDetail("table", l.table)
		}
		return struct{}{}, nil
	})
	if _, err := checked.Wait(ctx); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Debug("extracting table", zap.String("sql", selectSQL))
	data := bridge.WriterStream(ctx, bridge.Dedicated, func(w io.Writer) error {
		conn, err := l.open(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		cw := csv.NewWriter(w)
		if err := cw.Write(table.ColumnNames()); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "cannot write CSV header")
		}
		record := make([]string, len(create.Columns))
		err = conn.Query(ctx, selectSQL, func(row []sql.NullString) error {
			for i, col := range create.Columns {
				v, err := renderValue(col.DataType, row[i])
				if err != nil {
					return errors.Wrapf(err, errors.ErrorTypeData, "cannot render column %q", col.Name).
						WithDetail("column", col.Name)
				}
				record[i] = v
			}
			return cw.Write(record)
		})
		if err != nil {
			return errors.Wrapf(err, errors.TypeOf(err), "error reading data from %s", l.table).
				WithDetail("table", l.table)
		}
		cw.Flush()
		return cw.Error()
	})
	return stream.Once(&stream.CsvStream{Name: l.table, Data: data}), nil
}

// renderValue turns a server value into its generic CSV text
func renderValue(t schema.DataType, v sql.NullString) (string, error) {
	if !v.Valid {
		return "", nil
	}
	switch t.Name {
	case schema.TypeBool:
		if v.String == "0" {
			return "false", nil
		}
		return "true", nil
	case schema.TypeTimestampWithTimeZone:
		ts, err := time.ParseInLocation(datetimeLayout, v.String, time.UTC)
		if err != nil {
			return "", err
		}
		return ts.Format(time.RFC3339Nano), nil
	case schema.TypeTimestampWithoutTimeZone:
		return strings.Replace(v.String, " ", "T", 1), nil
	}
	return v.String, nil
}

// Schema describes the table from information_schema
func (l *Locator) Schema(ctx context.Context, _ locator.DriverArgs) (*schema.Table, error) {
	cols := bridge.Go(ctx, func() ([]ColumnInfo, error) {
		conn, err := l.open(ctx)
		if err != nil {
			return nil, err
		}
		defer conn.Close()
		return conn.Columns(ctx, l.table)
	})
	infos, err := cols.Wait(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, errors.TypeOf(err), "cannot describe %s", l.table)
	}
	if len(infos) == 0 {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "table %s does not exist", l.table).
			WithDetail("table", l.table)
	}

	table := &schema.Table{Name: l.table, Columns: make([]schema.Column, 0, len(infos))}
	for _, info := range infos {
		dt, err := portableType(info)
		if err != nil {
			return nil, err
		}
		table.Columns = append(table.Columns, schema.Column{Name: info.Name, IsNullable: info.IsNullable, DataType: schema.Scalar(dt)})
	}
	return table, nil
}

var mysqlTypes = map[string]schema.TypeName{
	"bigint":     schema.TypeInt64,
	"char":       schema.TypeText,
	"date":       schema.TypeDate,
	"datetime":   schema.TypeTimestampWithoutTimeZone,
	"decimal":    schema.TypeDecimal,
	"double":     schema.TypeFloat64,
	"enum":       schema.TypeText,
	"float":      schema.TypeFloat32,
	"int":        schema.TypeInt32,
	"json":       schema.TypeJSON,
	"longtext":   schema.TypeText,
	"mediumint":  schema.TypeInt32,
	"mediumtext": schema.TypeText,
	"smallint":   schema.TypeInt16,
	"text":       schema.TypeText,
	"timestamp":  schema.TypeTimestampWithTimeZone,
	"tinyint":    schema.TypeInt16,
	"tinytext":   schema.TypeText,
	"varchar":    schema.TypeText,
}

// Unsigned integers need the next wider portable type
var unsignedTypes = map[string]schema.TypeName{
	"tinyint":   schema.TypeInt16,
	"smallint":  schema.TypeInt32,
	"mediumint": schema.TypeInt32,
	"int":       schema.TypeInt64,
	"bigint":    schema.TypeDecimal,
}

func portableType(info ColumnInfo) (schema.TypeName, error) {
	dataType := strings.ToLower(info.DataType)
	columnType := strings.ToLower(info.ColumnType)
	switch {
	case dataType == "tinyint" && strings.HasPrefix(columnType, "tinyint(1)"):
		return schema.TypeBool, nil
	case dataType == "char" && columnType == "char(36)":
		return schema.TypeUUID, nil
	case strings.HasSuffix(columnType, " unsigned"):
		if wider, ok := unsignedTypes[dataType]; ok {
			return wider, nil
		}
	}
	name, ok := mysqlTypes[dataType]
	if !ok {
		return "", errors.Newf(errors.ErrorTypeSchema, "column %q has unsupported mysql type %s", info.Name, info.ColumnType).
			WithDetail("column", info.Name)
	}
	return name, nil
}
