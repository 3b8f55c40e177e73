package snowflake

import (
	"context"
	"database/sql"
	"os"

	"github.com/snowflakedb/gosnowflake"

	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
)

// DB is the subset of *sql.DB the driver uses
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Close() error
}

// Connector opens a database handle for dsn
type Connector func(ctx context.Context, dsn string) (DB, error)

// Connect opens and pings a Snowflake connection
func Connect(ctx context.Context, dsn string) (DB, error) {
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open Snowflake connection")
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, classify(err, "failed to ping Snowflake")
	}
	return db, nil
}

// DSN returns the connection string for a table: the "dsn" argument, then
// $SNOWFLAKE_DSN, then one built from account, user, password, warehouse
// and role arguments.
func DSN(table TableName, args locator.DriverArgs) (string, error) {
	if dsn := args.Get("dsn", ""); dsn != "" {
		return dsn, nil
	}
	if dsn := os.Getenv("SNOWFLAKE_DSN"); dsn != "" {
		return dsn, nil
	}
	cfg := &gosnowflake.Config{
		Account:   args.Get("account", os.Getenv("SNOWFLAKE_ACCOUNT")),
		User:      args.Get("user", os.Getenv("SNOWFLAKE_USER")),
		Password:  args.Get("password", os.Getenv("SNOWFLAKE_PASSWORD")),
		Database:  table.Database,
		Schema:    table.Schema,
		Warehouse: args.Get("warehouse", ""),
		Role:      args.Get("role", ""),
	}
	if cfg.Account == "" || cfg.User == "" {
		return "", errors.New(errors.ErrorTypeConfig, "snowflake needs a dsn argument, SNOWFLAKE_DSN, or account and user")
	}
	dsn, err := gosnowflake.DSN(cfg)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConfig, "invalid Snowflake configuration")
	}
	return dsn, nil
}

// Snowflake error numbers the driver reports specially
const (
	errObjectExists     = 2002
	errObjectNotFound   = 2003
	errIncorrectLogin   = 390100
	errSQLCompilation   = 1003
	errNumericOverflow  = 100039
	errTimestampInvalid = 100035
)

// classify maps Snowflake errors onto crossbar error types
func classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	var sfErr *gosnowflake.SnowflakeError
	if errors.As(err, &sfErr) {
		switch sfErr.Number {
		case errObjectExists:
			return errors.Wrap(err, errors.ErrorTypeLifecycle, msg)
		case errObjectNotFound:
			return errors.Wrap(err, errors.ErrorTypeNotFound, msg)
		case errIncorrectLogin:
			return errors.Wrap(err, errors.ErrorTypeAuthentication, msg)
		case errSQLCompilation:
			return errors.Wrap(err, errors.ErrorTypeQuery, msg)
		case errNumericOverflow, errTimestampInvalid:
			return errors.Wrap(err, errors.ErrorTypeData, msg)
		}
		return errors.Wrap(err, errors.ErrorTypeQuery, msg)
	}
	return errors.Wrap(err, errors.ErrorTypeConnection, msg)
}
