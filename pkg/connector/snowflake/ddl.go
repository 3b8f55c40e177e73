package snowflake

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/crossbar/pkg/connector/objstore"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
	"github.com/ajitpratap0/crossbar/pkg/schema"
)

// TableName is a fully qualified Snowflake table
type TableName struct {
	Database string
	Schema   string
	Table    string
}

// ParseTableName parses "database.schema.table"
func ParseTableName(s string) (TableName, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return TableName{}, errors.Newf(errors.ErrorTypeParse, "Snowflake table %q must be database.schema.table", s)
	}
	return TableName{Database: parts[0], Schema: parts[1], Table: parts[2]}, nil
}

// String returns "database.schema.table"
func (t TableName) String() string {
	return t.Database + "." + t.Schema + "." + t.Table
}

// Quoted returns the name as a quoted identifier
func (t TableName) Quoted() string {
	return quoteIdent(t.Database) + "." + quoteIdent(t.Schema) + "." + quoteIdent(t.Table)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", `\'`) + "'"
}

// JSON is stored as text: a CSV field loaded into VARIANT stays a string.
var sfTypes = map[schema.TypeName]string{
	schema.TypeBool:                     "BOOLEAN",
	schema.TypeDate:                     "DATE",
	schema.TypeDecimal:                  "NUMBER(38, 9)",
	schema.TypeFloat32:                  "FLOAT",
	schema.TypeFloat64:                  "FLOAT",
	schema.TypeInt16:                    "SMALLINT",
	schema.TypeInt32:                    "INTEGER",
	schema.TypeInt64:                    "BIGINT",
	schema.TypeJSON:                     "TEXT",
	schema.TypeText:                     "TEXT",
	schema.TypeTimestampWithoutTimeZone: "TIMESTAMP_NTZ",
	schema.TypeTimestampWithTimeZone:    "TIMESTAMP_TZ",
	schema.TypeUUID:                     "TEXT",
}

// CreateTableSQL renders the statement that prepares name according to
// ifExists.
func CreateTableSQL(name TableName, table *schema.Table, ifExists locator.IfExists) (string, error) {
	var b strings.Builder
	switch ifExists {
	case locator.IfExistsOverwrite:
		b.WriteString("CREATE OR REPLACE TABLE ")
	case locator.IfExistsAppend:
		b.WriteString("CREATE TABLE IF NOT EXISTS ")
	default:
		b.WriteString("CREATE TABLE ")
	}
	b.WriteString(name.Quoted())
	b.WriteString(" (\n")
	for i, c := range table.Columns {
		if c.DataType.IsArray() {
			return "", errors.Newf(errors.ErrorTypeSchema, "cannot load array column %q into Snowflake from CSV", c.Name).
				WithDetail("column", c.Name)
		}
		sfType, ok := sfTypes[c.DataType.Name]
		if !ok {
			return "", errors.Newf(errors.ErrorTypeSchema, "Snowflake does not support column %q of type %s", c.Name, c.DataType).
				WithDetail("column", c.Name)
		}
		fmt.Fprintf(&b, "    %s %s", quoteIdent(c.Name), sfType)
		if !c.IsNullable {
			b.WriteString(" NOT NULL")
		}
		if i+1 < len(table.Columns) {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String(), nil
}

// S3Credentials are the keys Snowflake uses to read the source bucket
type S3Credentials struct {
	KeyID        string
	SecretKey    string
	SessionToken string
}

// CopyIntoSQL loads the CSV objects at src into name. Directories load
// every CSV object below them, compressed or not.
func CopyIntoSQL(name TableName, table *schema.Table, src objstore.URL, creds S3Credentials) string {
	cols := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		cols[i] = quoteIdent(c.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "COPY INTO %s (%s)\nFROM %s\n", name.Quoted(), strings.Join(cols, ", "), quoteString(src.String()))
	fmt.Fprintf(&b, "CREDENTIALS = (AWS_KEY_ID = %s AWS_SECRET_KEY = %s", quoteString(creds.KeyID), quoteString(creds.SecretKey))
	if creds.SessionToken != "" {
		fmt.Fprintf(&b, " AWS_TOKEN = %s", quoteString(creds.SessionToken))
	}
	b.WriteString(")\n")
	b.WriteString("FILE_FORMAT = (TYPE = CSV SKIP_HEADER = 1 FIELD_OPTIONALLY_ENCLOSED_BY = '\"' EMPTY_FIELD_AS_NULL = TRUE COMPRESSION = AUTO)")
	if src.IsDirectory() {
		b.WriteString("\nPATTERN = '.*[.]csv([.][a-z0-9]+)?'")
	}
	b.WriteString("\nON_ERROR = ABORT_STATEMENT")
	return b.String()
}
