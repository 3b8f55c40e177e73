package mysql

import (
	"context"
	"database/sql"
	"io"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ajitpratap0/crossbar/pkg/errors"
)

// Conn is the subset of a MySQL connection the driver uses. A Conn is never
// shared between goroutines.
type Conn interface {
	Exec(ctx context.Context, query string) error
	// LoadData registers r under a unique name and runs stmt(source),
	// which must be a LOAD DATA LOCAL INFILE statement reading source.
	LoadData(ctx context.Context, r io.Reader, stmt func(source string) string) (int64, error)
	// Query calls fn for each row; NULLs are invalid NullStrings. The
	// slice is reused between calls.
	Query(ctx context.Context, query string, fn func(row []sql.NullString) error) error
	Columns(ctx context.Context, table string) ([]ColumnInfo, error)
	Close() error
}

// ColumnInfo is one row of information_schema.columns
type ColumnInfo struct {
	Name       string `db:"column_name"`
	DataType   string `db:"data_type"`
	ColumnType string `db:"column_type"`
	IsNullable bool   `db:"is_nullable"`
}

// Connector opens a connection to the database named by dsn
type Connector func(ctx context.Context, dsn string) (Conn, error)

// Connect opens a single-connection handle and checks that the server
// answers.
func Connect(ctx context.Context, dsn string) (Conn, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid mysql DSN")
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, classify(err)
	}
	return &sqlConn{db: db}, nil
}

type sqlConn struct {
	db *sqlx.DB
}

func (c *sqlConn) Exec(ctx context.Context, query string) error {
	_, err := c.db.ExecContext(ctx, query)
	return classify(err)
}

func (c *sqlConn) LoadData(ctx context.Context, r io.Reader, stmt func(source string) string) (int64, error) {
	name := "crossbar-" + uuid.NewString()
	mysql.RegisterReaderHandler(name, func() io.Reader { return r })
	defer mysql.DeregisterReaderHandler(name)

	// SHOW WARNINGS must run in the session that ran LOAD DATA
	conn, err := c.db.Connx(ctx)
	if err != nil {
		return 0, classify(err)
	}
	defer conn.Close()

	result, err := conn.ExecContext(ctx, stmt("Reader::"+name))
	if err != nil {
		return 0, classify(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, classify(err)
	}
	return rows, loadWarning(ctx, conn)
}

// loadWarning reports the first warning or error left by LOAD DATA. LOCAL
// loads turn bad values into warnings and store them truncated or zeroed.
func loadWarning(ctx context.Context, conn *sqlx.Conn) error {
	rows, err := conn.QueryContext(ctx, "SHOW WARNINGS")
	if err != nil {
		return classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var w Warning
		if err := rows.Scan(&w.Level, &w.Code, &w.Message); err != nil {
			return classify(err)
		}
		if err := w.Err(); err != nil {
			return err
		}
	}
	return classify(rows.Err())
}

// Warning is one row of SHOW WARNINGS
type Warning struct {
	Level   string
	Code    int
	Message string
}

// Err converts a Warning or Error level row into a data error. Notes are
// ignored.
func (w Warning) Err() error {
	if strings.EqualFold(w.Level, "note") {
		return nil
	}
	return errors.Newf(errors.ErrorTypeData, "LOAD DATA %s %d: %s", strings.ToLower(w.Level), w.Code, w.Message).
		WithDetail("code", w.Code)
}

func (c *sqlConn) Query(ctx context.Context, query string, fn func(row []sql.NullString) error) error {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return classify(err)
	}
	row := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range row {
		dest[i] = &row[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return classify(err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return classify(rows.Err())
}

const columnsSQL = `SELECT column_name AS column_name, data_type AS data_type, column_type AS column_type,
    is_nullable = 'YES' AS is_nullable
FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = ?
ORDER BY ordinal_position`

func (c *sqlConn) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	var cols []ColumnInfo
	if err := c.db.SelectContext(ctx, &cols, columnsSQL, table); err != nil {
		return nil, classify(err)
	}
	return cols, nil
}

func (c *sqlConn) Close() error {
	return c.db.Close()
}

// MySQL server error numbers the driver reports specially
const (
	errTableExists      = 1050
	errNoSuchTable      = 1146
	errAccessDenied     = 1045
	errDBAccessDenied   = 1044
	errBadField         = 1054
	errBadNull          = 1048
	errDataTooLong      = 1406
	errOutOfRange       = 1264
	errTruncatedValue   = 1292
	errIncorrectValue   = 1366
	errInvalidJSON      = 3140
	errLocalInfileOff   = 3948
	errCommandDisabled  = 1148
	errTooManyConns     = 1040
	errLockWaitTimeout  = 1205
	errQueryInterrupted = 3024
)

// classify maps server errors onto crossbar error types
func classify(err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errTableExists:
			return errors.Wrap(err, errors.ErrorTypeLifecycle, myErr.Message)
		case errNoSuchTable:
			return errors.Wrap(err, errors.ErrorTypeNotFound, myErr.Message)
		case errAccessDenied, errDBAccessDenied:
			return errors.Wrap(err, errors.ErrorTypeAuthentication, myErr.Message)
		case errBadField:
			return errors.Wrap(err, errors.ErrorTypeSchema, myErr.Message)
		case errBadNull, errDataTooLong, errOutOfRange, errTruncatedValue, errIncorrectValue, errInvalidJSON:
			return errors.Wrap(err, errors.ErrorTypeData, myErr.Message)
		case errLocalInfileOff, errCommandDisabled:
			return errors.Wrap(err, errors.ErrorTypeCapability, "server does not allow LOAD DATA LOCAL INFILE")
		case errTooManyConns:
			return errors.Wrap(err, errors.ErrorTypeRateLimit, myErr.Message)
		case errLockWaitTimeout, errQueryInterrupted:
			return errors.Wrap(err, errors.ErrorTypeTimeout, myErr.Message)
		}
		return errors.Wrap(err, errors.ErrorTypeQuery, myErr.Message)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrorTypeTimeout, "mysql operation timed out")
	}
	if errors.Is(err, context.Canceled) {
		return errors.Wrap(err, errors.ErrorTypeCancelled, "mysql operation cancelled")
	}
	return errors.Wrap(err, errors.ErrorTypeConnection, "mysql connection error")
}
