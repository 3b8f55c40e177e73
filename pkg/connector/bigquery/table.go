package bigquery

import (
	"strings"

	bq "cloud.google.com/go/bigquery"

	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/schema"
)

// TableName is a fully qualified BigQuery table
type TableName struct {
	Project string
	Dataset string
	Table   string
}

// ParseTableName parses "project:dataset.table"
func ParseTableName(s string) (TableName, error) {
	project, rest, ok := strings.Cut(s, ":")
	if !ok || project == "" {
		return TableName{}, errors.Newf(errors.ErrorTypeParse, "BigQuery table %q must be project:dataset.table", s)
	}
	dataset, table, ok := strings.Cut(rest, ".")
	if !ok || dataset == "" || table == "" || strings.Contains(table, ".") {
		return TableName{}, errors.Newf(errors.ErrorTypeParse, "BigQuery table %q must be project:dataset.table", s)
	}
	return TableName{Project: project, Dataset: dataset, Table: table}, nil
}

// String returns "project:dataset.table"
func (t TableName) String() string {
	return t.Project + ":" + t.Dataset + "." + t.Table
}

// SQL returns the table as a quoted standard SQL identifier
func (t TableName) SQL() string {
	return "`" + t.Project + "." + t.Dataset + "." + t.Table + "`"
}

// WithTable returns a table in the same dataset
func (t TableName) WithTable(table string) TableName {
	return TableName{Project: t.Project, Dataset: t.Dataset, Table: table}
}

var bqTypes = map[schema.TypeName]bq.FieldType{
	schema.TypeBool:                     bq.BooleanFieldType,
	schema.TypeDate:                     bq.DateFieldType,
	schema.TypeDecimal:                  bq.BigNumericFieldType,
	schema.TypeFloat32:                  bq.FloatFieldType,
	schema.TypeFloat64:                  bq.FloatFieldType,
	schema.TypeInt16:                    bq.IntegerFieldType,
	schema.TypeInt32:                    bq.IntegerFieldType,
	schema.TypeInt64:                    bq.IntegerFieldType,
	schema.TypeJSON:                     bq.JSONFieldType,
	schema.TypeText:                     bq.StringFieldType,
	schema.TypeTimestampWithoutTimeZone: bq.DateTimeFieldType,
	schema.TypeTimestampWithTimeZone:    bq.TimestampFieldType,
	schema.TypeUUID:                     bq.StringFieldType,
}

// ToBigQuery translates a portable table. CSV loads cannot carry REPEATED
// fields, so array columns are rejected.
func ToBigQuery(table *schema.Table) (bq.Schema, error) {
	out := make(bq.Schema, 0, len(table.Columns))
	for _, c := range table.Columns {
		if c.DataType.IsArray() {
			return nil, errors.Newf(errors.ErrorTypeSchema, "cannot load array column %q into BigQuery from CSV", c.Name).
				WithDetail("column", c.Name)
		}
		ft, ok := bqTypes[c.DataType.Name]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeSchema, "BigQuery does not support column %q of type %s", c.Name, c.DataType).
				WithDetail("column", c.Name)
		}
		out = append(out, &bq.FieldSchema{
			Name:        c.Name,
			Type:        ft,
			Required:    !c.IsNullable,
			Description: c.Comment,
		})
	}
	return out, nil
}

var portableTypes = map[bq.FieldType]schema.TypeName{
	bq.BooleanFieldType:    schema.TypeBool,
	bq.DateFieldType:       schema.TypeDate,
	bq.NumericFieldType:    schema.TypeDecimal,
	bq.BigNumericFieldType: schema.TypeDecimal,
	bq.FloatFieldType:      schema.TypeFloat64,
	bq.IntegerFieldType:    schema.TypeInt64,
	bq.JSONFieldType:       schema.TypeJSON,
	bq.StringFieldType:     schema.TypeText,
	bq.DateTimeFieldType:   schema.TypeTimestampWithoutTimeZone,
	bq.TimestampFieldType:  schema.TypeTimestampWithTimeZone,
}

// FromBigQuery translates a BigQuery schema into a portable table
func FromBigQuery(name string, s bq.Schema) (*schema.Table, error) {
	table := &schema.Table{Name: name, Columns: make([]schema.Column, 0, len(s))}
	for _, f := range s {
		tn, ok := portableTypes[f.Type]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeSchema, "column %q has unsupported BigQuery type %s", f.Name, f.Type).
				WithDetail("column", f.Name)
		}
		dt := schema.Scalar(tn)
		if f.Repeated {
			dt = schema.ArrayOf(dt)
		}
		table.Columns = append(table.Columns, schema.Column{
			Name:       f.Name,
			IsNullable: !f.Required && !f.Repeated,
			DataType:   dt,
			Comment:    f.Description,
		})
	}
	return table, nil
}

// selectSQL selects the table's columns in schema order
func selectSQL(name TableName, table *schema.Table, where string) string {
	cols := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		cols[i] = "`" + c.Name + "`"
	}
	sql := "SELECT " + strings.Join(cols, ", ") + " FROM " + name.SQL()
	if strings.TrimSpace(where) != "" {
		sql += " WHERE " + where
	}
	return sql
}
