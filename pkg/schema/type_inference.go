package schema

import (
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// inferenceOrder lists the types a column may be inferred as, most specific
// first. A column none of them fits is text.
var inferenceOrder = []TypeName{
	TypeBool,
	TypeInt64,
	TypeFloat64,
	TypeDate,
	TypeTimestampWithTimeZone,
	TypeTimestampWithoutTimeZone,
	TypeUUID,
	TypeJSON,
}

// TypeInference guesses column types from sampled rows of generic CSV. It
// is not safe for concurrent use.
type TypeInference struct {
	names   []string
	columns []inferredColumn
	rows    int
}

type inferredColumn struct {
	// possible[i] stays true while every value seen parses as inferenceOrder[i]
	possible []bool
	values   int
}

// NewTypeInference starts inference for a CSV header
func NewTypeInference(header []string) *TypeInference {
	ti := &TypeInference{
		names:   append([]string(nil), header...),
		columns: make([]inferredColumn, len(header)),
	}
	for i := range ti.columns {
		ti.columns[i].possible = make([]bool, len(inferenceOrder))
		for j := range inferenceOrder {
			ti.columns[i].possible[j] = true
		}
	}
	return ti
}

// Observe narrows the candidate types using one row. Empty fields are NULL
// and say nothing about the type; fields beyond the header are ignored.
func (ti *TypeInference) Observe(row []string) {
	ti.rows++
	for i := range ti.columns {
		if i >= len(row) || row[i] == "" {
			continue
		}
		col := &ti.columns[i]
		col.values++
		for j, t := range inferenceOrder {
			if col.possible[j] && !looksLike(t, row[i]) {
				col.possible[j] = false
			}
		}
	}
}

// Rows returns the number of rows observed
func (ti *TypeInference) Rows() int {
	return ti.rows
}

// Table returns the inferred table. Every column is nullable since a sample
// cannot show that a column never holds NULL. Columns without any values
// are text.
func (ti *TypeInference) Table(name string) (*Table, error) {
	columns := make([]Column, len(ti.names))
	for i, colName := range ti.names {
		typ := TypeText
		if ti.columns[i].values > 0 {
			for j, t := range inferenceOrder {
				if ti.columns[i].possible[j] {
					typ = t
					break
				}
			}
		}
		columns[i] = Column{Name: colName, IsNullable: true, DataType: Scalar(typ)}
	}
	return NewTable(name, columns...)
}

// looksLike reports whether s is a value of type t. Booleans must be
// spelled out so that 0/1 columns infer as integers.
func looksLike(t TypeName, s string) bool {
	switch t {
	case TypeBool:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "false", "t", "f":
			return true
		}
		return false
	case TypeInt64:
		_, err := ParseInt(s, 64)
		return err == nil
	case TypeFloat64:
		_, err := ParseFloat(s, 64)
		return err == nil
	case TypeDate:
		_, err := ParseDate(s)
		return err == nil
	case TypeTimestampWithTimeZone:
		_, err := ParseTimestampTZ(s)
		return err == nil
	case TypeTimestampWithoutTimeZone:
		_, err := ParseTimestamp(s)
		return err == nil
	case TypeUUID:
		_, err := uuid.Parse(s)
		return err == nil && len(s) == 36
	case TypeJSON:
		s = strings.TrimSpace(s)
		return (strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")) && json.Valid([]byte(s))
	}
	return false
}
