// Package schema defines the backend-neutral table schema shared by every
// stage of a transfer, and its portable JSON form.
//
// A Table is fixed for the lifetime of one transfer. Drivers derive their own
// representations from it (a CREATE TABLE statement, a BigQuery schema) but
// never reorder or retype its columns.
package schema

import (
	"bytes"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/ajitpratap0/crossbar/pkg/errors"
)

// TypeName names a backend-neutral data type
type TypeName string

const (
	TypeArray                    TypeName = "array"
	TypeBool                     TypeName = "bool"
	TypeDate                     TypeName = "date"
	TypeDecimal                  TypeName = "decimal"
	TypeFloat32                  TypeName = "float32"
	TypeFloat64                  TypeName = "float64"
	TypeInt16                    TypeName = "int16"
	TypeInt32                    TypeName = "int32"
	TypeInt64                    TypeName = "int64"
	TypeJSON                     TypeName = "json"
	TypeText                     TypeName = "text"
	TypeTimestampWithoutTimeZone TypeName = "timestamp_without_time_zone"
	TypeTimestampWithTimeZone    TypeName = "timestamp_with_time_zone"
	TypeUUID                     TypeName = "uuid"
)

var scalarTypes = map[TypeName]bool{
	TypeBool:                     true,
	TypeDate:                     true,
	TypeDecimal:                  true,
	TypeFloat32:                  true,
	TypeFloat64:                  true,
	TypeInt16:                    true,
	TypeInt32:                    true,
	TypeInt64:                    true,
	TypeJSON:                     true,
	TypeText:                     true,
	TypeTimestampWithoutTimeZone: true,
	TypeTimestampWithTimeZone:    true,
	TypeUUID:                     true,
}

// DataType is a backend-neutral column type. Elem is set only for arrays.
type DataType struct {
	Name TypeName
	Elem *DataType
}

// Scalar returns the scalar type with the given name
func Scalar(name TypeName) DataType {
	return DataType{Name: name}
}

// ArrayOf returns an array type of elem
func ArrayOf(elem DataType) DataType {
	return DataType{Name: TypeArray, Elem: &elem}
}

// IsArray reports whether t is an array type
func (t DataType) IsArray() bool {
	return t.Name == TypeArray
}

// String renders the type in its portable form, e.g. "int64" or "array<text>"
func (t DataType) String() string {
	if t.IsArray() && t.Elem != nil {
		return "array<" + t.Elem.String() + ">"
	}
	return string(t.Name)
}

// Equal reports whether two types are identical
func (t DataType) Equal(other DataType) bool {
	if t.Name != other.Name {
		return false
	}
	if t.Elem == nil || other.Elem == nil {
		return t.Elem == nil && other.Elem == nil
	}
	return t.Elem.Equal(*other.Elem)
}

func (t DataType) validate() error {
	if t.IsArray() {
		if t.Elem == nil {
			return errors.New(errors.ErrorTypeSchema, "array type without element type")
		}
		return t.Elem.validate()
	}
	if !scalarTypes[t.Name] {
		return errors.Newf(errors.ErrorTypeSchema, "unknown data type %q", t.Name)
	}
	return nil
}

// MarshalJSON encodes scalars as strings and arrays as {"array": <elem>}
func (t DataType) MarshalJSON() ([]byte, error) {
	if t.IsArray() {
		if t.Elem == nil {
			return nil, errors.New(errors.ErrorTypeSchema, "array type without element type")
		}
		return json.Marshal(map[string]DataType{"array": *t.Elem})
	}
	return json.Marshal(string(t.Name))
}

// UnmarshalJSON is the inverse of MarshalJSON
func (t *DataType) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*t = DataType{Name: TypeName(name)}
		return nil
	}
	var wrapper map[string]DataType
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	elem, ok := wrapper["array"]
	if !ok || len(wrapper) != 1 {
		return errors.Newf(errors.ErrorTypeSchema, "cannot parse data type %s", string(data))
	}
	*t = ArrayOf(elem)
	return nil
}

// Column is one column of a Table
type Column struct {
	Name       string   `json:"name"`
	IsNullable bool     `json:"is_nullable"`
	DataType   DataType `json:"data_type"`
	Comment    string   `json:"comment,omitempty"`
}

// Table is a backend-neutral table schema. Treat it as read-only once built;
// stages of one transfer share the same value.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// NewTable builds and validates a Table. The column slice is copied.
func NewTable(name string, columns ...Column) (*Table, error) {
	t := &Table{Name: name, Columns: append([]Column(nil), columns...)}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks that the table has a name, at least one column, unique
// column names and known types.
func (t *Table) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New(errors.ErrorTypeSchema, "table name must not be empty")
	}
	if len(t.Columns) == 0 {
		return errors.Newf(errors.ErrorTypeSchema, "table %s has no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return errors.Newf(errors.ErrorTypeSchema, "table %s has a column with an empty name", t.Name)
		}
		if seen[c.Name] {
			return errors.Newf(errors.ErrorTypeSchema, "duplicate column %q in table %s", c.Name, t.Name)
		}
		seen[c.Name] = true
		if err := c.DataType.validate(); err != nil {
			return errors.Wrapf(err, errors.ErrorTypeSchema, "column %q of table %s", c.Name, t.Name).
				WithDetail("table", t.Name).
				WithDetail("column", c.Name)
		}
	}
	return nil
}

// ColumnNames returns the column names in schema order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the column with the given name
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// WithName returns a copy of t with a different table name. Columns are
// shared since they are never modified.
func (t *Table) WithName(name string) *Table {
	return &Table{Name: name, Columns: t.Columns}
}

// Load reads a portable JSON schema
func Load(r io.Reader) (*Table, error) {
	var t Table
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "cannot parse schema JSON")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadFile reads a portable JSON schema from path
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot open schema file").WithDetail("path", path)
	}
	defer f.Close()
	return Load(f)
}

// Write writes t as indented portable JSON
func (t *Table) Write(w io.Writer) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "cannot serialize schema")
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
