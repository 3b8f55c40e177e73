package mysql

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/schema"
)

func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// Timestamps with a time zone are stored as UTC DATETIMEs since TIMESTAMP
// ends in 2038.
var myTypes = map[schema.TypeName]string{
	schema.TypeBool:                     "BOOLEAN",
	schema.TypeDate:                     "DATE",
	schema.TypeDecimal:                  fmt.Sprintf("DECIMAL(%d, %d)", decimalPrecision, decimalScale),
	schema.TypeFloat32:                  "FLOAT",
	schema.TypeFloat64:                  "DOUBLE",
	schema.TypeInt16:                    "SMALLINT",
	schema.TypeInt32:                    "INT",
	schema.TypeInt64:                    "BIGINT",
	schema.TypeJSON:                     "JSON",
	schema.TypeText:                     "LONGTEXT",
	schema.TypeTimestampWithoutTimeZone: "DATETIME(6)",
	schema.TypeTimestampWithTimeZone:    "DATETIME(6)",
	schema.TypeUUID:                     "CHAR(36)",
}

// CreateTable is a CREATE TABLE statement for a portable table
type CreateTable struct {
	Name        string
	Columns     []schema.Column
	IfNotExists bool
}

// NewCreateTable translates table, rejecting types MySQL cannot hold
func NewCreateTable(name string, table *schema.Table) (*CreateTable, error) {
	for _, c := range table.Columns {
		if c.DataType.IsArray() {
			return nil, errors.Newf(errors.ErrorTypeSchema, "cannot yet import array column %q", c.Name).
				WithDetail("table", name).
				WithDetail("column", c.Name)
		}
		if _, ok := myTypes[c.DataType.Name]; !ok {
			return nil, errors.Newf(errors.ErrorTypeSchema, "mysql does not support column %q of type %s", c.Name, c.DataType).
				WithDetail("table", name).
				WithDetail("column", c.Name)
		}
	}
	return &CreateTable{Name: name, Columns: append([]schema.Column(nil), table.Columns...)}, nil
}

// String renders the statement
func (c *CreateTable) String() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if c.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(quoteIdent(c.Name))
	b.WriteString(" (\n")
	for i, col := range c.Columns {
		fmt.Fprintf(&b, "    %s %s", quoteIdent(col.Name), myTypes[col.DataType.Name])
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

func (c *CreateTable) quotedColumns() string {
	cols := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		cols[i] = quoteIdent(col.Name)
	}
	return strings.Join(cols, ", ")
}

// DropSQL drops the table if it exists
func (c *CreateTable) DropSQL() string {
	return "DROP TABLE IF EXISTS " + quoteIdent(c.Name)
}

// LoadSQL loads tab-separated text from source, an in-process reader name
func (c *CreateTable) LoadSQL(source string) string {
	return fmt.Sprintf("LOAD DATA LOCAL INFILE '%s' INTO TABLE %s CHARACTER SET utf8mb4 "+
		"FIELDS TERMINATED BY '\\t' ESCAPED BY '\\\\' LINES TERMINATED BY '\\n' (%s)",
		source, quoteIdent(c.Name), c.quotedColumns())
}

// SelectSQL selects the columns in schema order
func (c *CreateTable) SelectSQL(where string) string {
	query := fmt.Sprintf("SELECT %s FROM %s", c.quotedColumns(), quoteIdent(c.Name))
	if strings.TrimSpace(where) != "" {
		query += " WHERE " + where
	}
	return query
}
