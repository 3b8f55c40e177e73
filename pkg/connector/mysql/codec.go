package mysql

import (
	"bufio"
	"encoding/csv"
	"io"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/schema"
)

const (
	textNull       = `\N`
	datetimeLayout = "2006-01-02 15:04:05.999999"

	// decimal columns are DECIMAL(decimalPrecision, decimalScale)
	decimalPrecision = 38
	decimalScale     = 9
)

// decimalSyntax is the plain decimal notation MySQL parses without
// conversion warnings. Exponents are bounded so parsing stays cheap.
var decimalSyntax = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d{1,3})?$`)

var decimalUnit = new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(decimalScale), nil))

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\n", `\n`,
	"\r", `\r`,
	"\x00", `\0`,
)

// TextEncoder converts generic CSV into the tab-separated text LOAD DATA
// reads: one line per row, backslash escapes, \N for NULL.
type TextEncoder struct {
	table   string
	columns []schema.Column
}

// NewTextEncoder returns an encoder for rows of create's columns
func NewTextEncoder(create *CreateTable) *TextEncoder {
	return &TextEncoder{table: create.Name, columns: create.Columns}
}

// Transform reads CSV with a header row from r and writes LOAD DATA text to
// w. The header must list the table's columns in order.
func (e *TextEncoder) Transform(r io.Reader, w io.Writer) error {
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
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "cannot flush LOAD DATA text")
	}
	return nil
}

func (e *TextEncoder) checkHeader(header []string) error {
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

func (e *TextEncoder) writeRow(w *bufio.Writer, row []string) error {
	for i, col := range e.columns {
		if i > 0 {
			w.WriteByte('\t')
		}
		if row[i] == "" {
			if !col.IsNullable {
				return errors.Newf(errors.ErrorTypeData, "NULL in non-nullable column %q", col.Name).WithDetail("column", col.Name)
			}
			w.WriteString(textNull)
			continue
		}
		value, err := formatValue(col.DataType, row[i])
		if err != nil {
			return errors.Wrapf(err, errors.ErrorTypeData, "invalid value for column %q", col.Name).
				WithDetail("column", col.Name)
		}
		if _, err := textEscaper.WriteString(w, value); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "cannot write LOAD DATA field")
		}
	}
	if err := w.WriteByte('\n'); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "cannot write LOAD DATA row")
	}
	return nil
}

// formatValue converts the CSV text of a non-NULL field into the literal
// MySQL stores for the column's type.
func formatValue(t schema.DataType, s string) (string, error) {
	switch t.Name {
	case schema.TypeBool:
		b, err := schema.ParseBool(s)
		if err != nil {
			return "", err
		}
		if b {
			return "1", nil
		}
		return "0", nil
	case schema.TypeDate:
		d, err := schema.ParseDate(s)
		if err != nil {
			return "", err
		}
		return d.Format("2006-01-02"), nil
	case schema.TypeDecimal:
		return formatDecimal(strings.TrimSpace(s))
	case schema.TypeFloat32, schema.TypeFloat64:
		bits := 64
		if t.Name == schema.TypeFloat32 {
			bits = 32
		}
		f, err := schema.ParseFloat(s, bits)
		if err != nil {
			return "", err
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return "", errors.Newf(errors.ErrorTypeData, "mysql cannot store %q", s)
		}
		return strconv.FormatFloat(f, 'g', -1, bits), nil
	case schema.TypeInt16, schema.TypeInt32, schema.TypeInt64:
		bits := map[schema.TypeName]int{schema.TypeInt16: 16, schema.TypeInt32: 32, schema.TypeInt64: 64}[t.Name]
		n, err := schema.ParseInt(s, bits)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	case schema.TypeJSON:
		if !json.Valid([]byte(s)) {
			return "", errors.New(errors.ErrorTypeData, "invalid JSON")
		}
		return s, nil
	case schema.TypeText:
		return s, nil
	case schema.TypeTimestampWithoutTimeZone:
		ts, err := schema.ParseTimestamp(s)
		if err != nil {
			return "", err
		}
		return ts.Format(datetimeLayout), nil
	case schema.TypeTimestampWithTimeZone:
		ts, err := schema.ParseTimestampTZ(s)
		if err != nil {
			return "", err
		}
		return ts.UTC().Format(datetimeLayout), nil
	case schema.TypeUUID:
		u, err := uuid.Parse(s)
		if err != nil {
			return "", err
		}
		return u.String(), nil
	}
	return "", errors.Newf(errors.ErrorTypeSchema, "unsupported type %s", t)
}

// formatDecimal checks that s fits a decimal column exactly. LOAD DATA
// LOCAL stores NaN, hex floats and out-of-range values as clipped or zero
// with only a warning, so they are rejected here. Values using an exponent
// are rewritten in plain notation.
func formatDecimal(s string) (string, error) {
	if !decimalSyntax.MatchString(s) {
		return "", errors.Newf(errors.ErrorTypeData, "invalid decimal %q", s)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return "", errors.Newf(errors.ErrorTypeData, "invalid decimal %q", s)
	}
	if !new(big.Rat).Mul(r, decimalUnit).IsInt() {
		return "", errors.Newf(errors.ErrorTypeData, "decimal %q has more than %d fractional digits", s, decimalScale)
	}
	whole := new(big.Int).Quo(r.Num(), r.Denom())
	if digits := len(whole.Abs(whole).String()); digits > decimalPrecision-decimalScale {
		return "", errors.Newf(errors.ErrorTypeData, "decimal %q has more than %d integer digits", s, decimalPrecision-decimalScale)
	}
	if strings.ContainsAny(s, "eE") {
		return trimFraction(r.FloatString(decimalScale)), nil
	}
	return s, nil
}

func trimFraction(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	return strings.TrimSuffix(strings.TrimRight(s, "0"), ".")
}
