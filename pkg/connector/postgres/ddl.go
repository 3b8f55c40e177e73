package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/schema"
)

// TableName is an optionally schema-qualified table name
type TableName struct {
	Schema string
	Name   string
	raw    string
}

// ParseTableName parses "table" or "schema.table"
func ParseTableName(s string) (TableName, error) {
	parts := strings.Split(s, ".")
	switch {
	case len(parts) == 1 && parts[0] != "":
		return TableName{Schema: "public", Name: parts[0], raw: s}, nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return TableName{Schema: parts[0], Name: parts[1], raw: s}, nil
	}
	return TableName{}, errors.Newf(errors.ErrorTypeParse, "invalid postgres table name %q", s)
}

// String returns the name as written in the locator
func (t TableName) String() string {
	return t.raw
}

// Quoted returns the name as a quoted SQL identifier
func (t TableName) Quoted() string {
	return pgx.Identifier{t.Schema, t.Name}.Sanitize()
}

// pgType describes how a portable type is stored in PostgreSQL
type pgType struct {
	sql string
	oid uint32
}

var pgTypes = map[schema.TypeName]pgType{
	schema.TypeBool:                     {"boolean", pgtype.BoolOID},
	schema.TypeDate:                     {"date", pgtype.DateOID},
	schema.TypeDecimal:                  {"numeric", pgtype.NumericOID},
	schema.TypeFloat32:                  {"real", pgtype.Float4OID},
	schema.TypeFloat64:                  {"double precision", pgtype.Float8OID},
	schema.TypeInt16:                    {"smallint", pgtype.Int2OID},
	schema.TypeInt32:                    {"integer", pgtype.Int4OID},
	schema.TypeInt64:                    {"bigint", pgtype.Int8OID},
	schema.TypeJSON:                     {"jsonb", pgtype.JSONBOID},
	schema.TypeText:                     {"text", pgtype.TextOID},
	schema.TypeTimestampWithoutTimeZone: {"timestamp", pgtype.TimestampOID},
	schema.TypeTimestampWithTimeZone:    {"timestamptz", pgtype.TimestamptzOID},
	schema.TypeUUID:                     {"uuid", pgtype.UUIDOID},
}

// PgColumn is one column of a CREATE TABLE statement
type PgColumn struct {
	Name       string
	DataType   schema.DataType
	IsNullable bool
}

// PgCreateTable is a CREATE TABLE statement derived from a portable table.
// Columns are kept in the portable table's order.
type PgCreateTable struct {
	Name        TableName
	Columns     []PgColumn
	IfNotExists bool
}

// NewCreateTable translates table into a CREATE TABLE for name. Array
// columns cannot be loaded and are rejected here, before anything touches
// the database.
func NewCreateTable(name TableName, table *schema.Table) (*PgCreateTable, error) {
	create := &PgCreateTable{Name: name, Columns: make([]PgColumn, 0, len(table.Columns))}
	for _, c := range table.Columns {
		if c.DataType.IsArray() {
			return nil, errors.Newf(errors.ErrorTypeSchema, "cannot yet import array column %q", c.Name).
				WithDetail("table", name.String()).
				WithDetail("column", c.Name)
		}
		if _, ok := pgTypes[c.DataType.Name]; !ok {
			return nil, errors.Newf(errors.ErrorTypeSchema, "postgres does not support column %q of type %s", c.Name, c.DataType).
				WithDetail("table", name.String()).
				WithDetail("column", c.Name)
		}
		create.Columns = append(create.Columns, PgColumn{Name: c.Name, DataType: c.DataType, IsNullable: c.IsNullable})
	}
	return create, nil
}

// String renders the statement
func (c *PgCreateTable) String() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if c.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(c.Name.Quoted())
	b.WriteString(" (\n")
	for i, col := range c.Columns {
		fmt.Fprintf(&b, "    %s %s", pgx.Identifier{col.Name}.Sanitize(), pgTypes[col.DataType.Name].sql)
		if !col.IsNullable {
			b.WriteString(" NOT NULL")
		}
		if i+1 < len(c.Columns) {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

// quotedColumns returns the quoted, comma-separated column list
func (c *PgCreateTable) quotedColumns() string {
	cols := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		cols[i] = pgx.Identifier{col.Name}.Sanitize()
	}
	return strings.Join(cols, ", ")
}

// CopyFromSQL names every column explicitly so a mismatched existing table
// fails at load time instead of loading columns into the wrong place.
func (c *PgCreateTable) CopyFromSQL() string {
	return fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT binary)", c.Name.Quoted(), c.quotedColumns())
}

// CopyToSQL selects the columns in schema order as CSV with a header row
func (c *PgCreateTable) CopyToSQL(where string) string {
	query := fmt.Sprintf("SELECT %s FROM %s", c.quotedColumns(), c.Name.Quoted())
	if strings.TrimSpace(where) != "" {
		query += " WHERE " + where
	}
	return fmt.Sprintf("COPY (%s) TO STDOUT WITH (FORMAT csv, HEADER true)", query)
}

// DropSQL drops the table if it exists
func (c *PgCreateTable) DropSQL() string {
	return "DROP TABLE IF EXISTS " + c.Name.Quoted()
}
