package postgres

import (
	"context"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ajitpratap0/crossbar/pkg/errors"
)

// Conn is the subset of a PostgreSQL connection the driver uses. A Conn is
// never shared between goroutines.
type Conn interface {
	Exec(ctx context.Context, sql string) error
	CopyFrom(ctx context.Context, r io.Reader, sql string) (int64, error)
	CopyTo(ctx context.Context, w io.Writer, sql string) error
	Columns(ctx context.Context, table TableName) ([]ColumnInfo, error)
	Close(ctx context.Context) error
}

// ColumnInfo is one row of information_schema.columns
type ColumnInfo struct {
	Name       string
	DataType   string
	UDTName    string
	IsNullable bool
}

// Connector opens a connection to the database at url
type Connector func(ctx context.Context, url string) (Conn, error)

// Connect opens a pgx connection
func Connect(ctx context.Context, url string) (Conn, error) {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return nil, err
	}
	return &pgxConn{conn: conn}, nil
}

type pgxConn struct {
	conn *pgx.Conn
}

func (c *pgxConn) Exec(ctx context.Context, sql string) error {
	_, err := c.conn.Exec(ctx, sql)
	return classify(err)
}

func (c *pgxConn) CopyFrom(ctx context.Context, r io.Reader, sql string) (int64, error) {
	tag, err := c.conn.PgConn().CopyFrom(ctx, r, sql)
	if err != nil {
		return 0, classify(err)
	}
	return tag.RowsAffected(), nil
}

func (c *pgxConn) CopyTo(ctx context.Context, w io.Writer, sql string) error {
	_, err := c.conn.PgConn().CopyTo(ctx, w, sql)
	return classify(err)
}

const columnsSQL = `SELECT column_name, data_type, udt_name, is_nullable = 'YES'
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

func (c *pgxConn) Columns(ctx context.Context, table TableName) ([]ColumnInfo, error) {
	rows, err := c.conn.Query(ctx, columnsSQL, table.Schema, table.Name)
	if err != nil {
		return nil, classify(err)
	}
	cols, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ColumnInfo, error) {
		var ci ColumnInfo
		err := row.Scan(&ci.Name, &ci.DataType, &ci.UDTName, &ci.IsNullable)
		return ci, err
	})
	return cols, classify(err)
}

func (c *pgxConn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// PostgreSQL error codes the driver reports specially
const (
	codeDuplicateTable = "42P07"
	codeUndefinedTable = "42P01"
	codeUndefinedCol   = "42703"
)

// classify maps server errors onto crossbar error types
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeDuplicateTable, codeUndefinedTable:
			return errors.Wrap(err, errors.ErrorTypeLifecycle, pgErr.Message)
		case codeUndefinedCol:
			return errors.Wrap(err, errors.ErrorTypeSchema, pgErr.Message)
		}
		if len(pgErr.Code) < 2 {
			return errors.Wrap(err, errors.ErrorTypeQuery, pgErr.Message)
		}
		switch pgErr.Code[:2] {
		case "22":
			return errors.Wrap(err, errors.ErrorTypeData, pgErr.Message)
		case "28":
			return errors.Wrap(err, errors.ErrorTypeAuthentication, pgErr.Message)
		}
		return errors.Wrap(err, errors.ErrorTypeQuery, pgErr.Message)
	}
	if pgconn.Timeout(err) {
		return errors.Wrap(err, errors.ErrorTypeTimeout, "postgres operation timed out")
	}
	return errors.Wrap(err, errors.ErrorTypeConnection, "postgres connection error")
}
