package postgres

import (
	"bufio"
	"encoding/binary"
	"encoding/csv"
	"io"
	"math"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/schema"
)

// pgcopySignature starts every binary COPY stream
var pgcopySignature = []byte("PGCOPY\n\377\r\n\000")

// BinaryEncoder converts generic CSV into PostgreSQL's binary COPY format.
//
// The stream is a signature, a 32-bit flags word and a 32-bit header
// extension length (both zero), then one tuple per row: a 16-bit field count
// followed by each field as a 32-bit length and its binary value, with -1
// for NULL. A 16-bit -1 ends the stream. All integers are big-endian.
type BinaryEncoder struct {
	table   string
	columns []PgColumn
	typeMap *pgtype.Map
	buf     []byte
}

// NewBinaryEncoder returns an encoder for rows of create's columns. An
// encoder is not safe for concurrent use.
func NewBinaryEncoder(create *PgCreateTable) *BinaryEncoder {
	return &BinaryEncoder{
		table:   create.Name.String(),
		columns: create.Columns,
		typeMap: pgtype.NewMap(),
	}
}

// Transform reads CSV with a header row from r and writes binary COPY data
// to w. The header must list the table's columns in order.
func (e *BinaryEncoder) Transform(r io.Reader, w io.Writer) error {
	rdr := csv.NewReader(r)
	rdr.FieldsPerRecord = -1
	rdr.ReuseRecord = true

	header, err := rdr.Read()
	if err == io.EOF {
		return errors.Newf(errors.ErrorTypeData, "CSV data for %s has no header row", e.table)
	}
	if err != nil {
		return errors.Wrapf(err, errors.ErrorTypeData, "cannot read CSV header for %s", e.table)
	}
	if err := e.checkHeader(header); err != nil {
		return err
	}

	bw := bufio.NewWriterSize(w, 64*1024)
	if err := e.writeHeader(bw); err != nil {
		return err
	}
	for record := 1; ; record++ {
		row, err := rdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, errors.ErrorTypeData, "cannot parse CSV for %s", e.table)
		}
		if len(row) != len(e.columns) {
			return errors.Newf(errors.ErrorTypeData, "CSV record %d for %s has %d fields, expected %d", record, e.table, len(row), len(e.columns))
		}
		if err := e.writeRow(bw, row); err != nil {
			var ce *errors.Error
			if errors.As(err, &ce) {
				ce.WithDetail("record", record)
			}
			return err
		}
	}
	if err := binary.Write(bw, binary.BigEndian, int16(-1)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "cannot write COPY trailer")
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "cannot flush COPY data")
	}
	return nil
}

func (e *BinaryEncoder) checkHeader(header []string) error {
	if len(header) != len(e.columns) {
		return errors.Newf(errors.ErrorTypeSchema, "CSV data for %s has %d columns, expected %d", e.table, len(header), len(e.columns)).
			WithDetail("table", e.table)
	}
	for i, col := range e.columns {
		if header[i] != col.Name {
			return errors.Newf(errors.ErrorTypeSchema, "CSV column %d is %q but %s expects %q", i+1, header[i], e.table, col.Name).
				WithDetail("table", e.table).
				WithDetail("column", col.Name)
		}
	}
	return nil
}

func (e *BinaryEncoder) writeHeader(w io.Writer) error {
	if _, err := w.Write(pgcopySignature); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "cannot write COPY header")
	}
	// Flags, then header extension length.
	if err := binary.Write(w, binary.BigEndian, [2]int32{0, 0}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "cannot write COPY header")
	}
	return nil
}

func (e *BinaryEncoder) writeRow(w io.Writer, row []string) error {
	if err := binary.Write(w, binary.BigEndian, int16(len(e.columns))); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "cannot write COPY row")
	}
	for i, col := range e.columns {
		if row[i] == "" {
			if !col.IsNullable {
				return errors.Newf(errors.ErrorTypeData, "NULL in non-nullable column %q", col.Name).WithDetail("column", col.Name)
			}
			if err := binary.Write(w, binary.BigEndian, int32(-1)); err != nil {
				return errors.Wrap(err, errors.ErrorTypeData, "cannot write COPY field")
			}
			continue
		}
		value, err := e.encodeValue(col, row[i])
		if err != nil {
			return err
		}
		if len(value) > math.MaxInt32 {
			return errors.Newf(errors.ErrorTypeData, "value in column %q is too large", col.Name)
		}
		if err := binary.Write(w, binary.BigEndian, int32(len(value))); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "cannot write COPY field")
		}
		if _, err := w.Write(value); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "cannot write COPY field")
		}
	}
	return nil
}

// encodeValue parses a CSV field and returns its binary representation.
// The returned slice is only valid until the next call.
func (e *BinaryEncoder) encodeValue(col PgColumn, s string) ([]byte, error) {
	value, err := parseValue(col.DataType, s)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeData, "invalid value for column %q", col.Name).
			WithDetail("column", col.Name)
	}
	pt, ok := pgTypes[col.DataType.Name]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeSchema, "cannot encode column %q of type %s", col.Name, col.DataType).
			WithDetail("column", col.Name)
	}
	e.buf, err = e.typeMap.Encode(pt.oid, pgtype.BinaryFormatCode, value, e.buf[:0])
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeData, "cannot encode value for column %q", col.Name).
			WithDetail("column", col.Name)
	}
	return e.buf, nil
}

// parseValue converts the CSV text of a non-NULL field into a Go value
// pgtype can encode for the column's type.
func parseValue(t schema.DataType, s string) (any, error) {
	switch t.Name {
	case schema.TypeBool:
		return schema.ParseBool(s)
	case schema.TypeDate:
		return schema.ParseDate(s)
	case schema.TypeDecimal:
		var n pgtype.Numeric
		if err := n.Scan(s); err != nil {
			return nil, err
		}
		return n, nil
	case schema.TypeFloat32:
		f, err := schema.ParseFloat(s, 32)
		return float32(f), err
	case schema.TypeFloat64:
		return schema.ParseFloat(s, 64)
	case schema.TypeInt16:
		n, err := schema.ParseInt(s, 16)
		return int16(n), err
	case schema.TypeInt32:
		n, err := schema.ParseInt(s, 32)
		return int32(n), err
	case schema.TypeInt64:
		return schema.ParseInt(s, 64)
	case schema.TypeJSON:
		if !json.Valid([]byte(s)) {
			return nil, errors.New(errors.ErrorTypeData, "invalid JSON")
		}
		return s, nil
	case schema.TypeText:
		return s, nil
	case schema.TypeTimestampWithoutTimeZone:
		return schema.ParseTimestamp(s)
	case schema.TypeTimestampWithTimeZone:
		return schema.ParseTimestampTZ(s)
	case schema.TypeUUID:
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		return [16]byte(u), nil
	}
	return nil, errors.Newf(errors.ErrorTypeSchema, "unsupported type %s", t)
}
