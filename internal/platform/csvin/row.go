package csvin

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"gopkg.in/guregu/null.v3"
)

// nullMarker is treated like an empty cell.
const nullMarker = "NULL"

// Field is one named cell of a row.
type Field struct {
	Name  string
	Value string
}

// Row is one input record, keyed by column name. Column order is kept so
// that prefixed columns (identifiers, components) come out in input order.
type Row struct {
	Line    int
	columns []string
	values  map[string]string
}

// NewRow builds a row from a header and a record. Surplus cells without a
// header are dropped; missing cells are absent.
func NewRow(line int, header, record []string) Row {
	r := Row{
		Line:    line,
		columns: make([]string, 0, len(header)),
		values:  make(map[string]string, len(header)),
	}
	for i, col := range header {
		if i >= len(record) {
			break
		}
		if _, dup := r.values[col]; !dup {
			r.columns = append(r.columns, col)
		}
		r.values[col] = record[i]
	}
	return r
}

// Columns returns the column names of the row in input order.
func (r Row) Columns() []string {
	return r.columns
}

// Lookup returns the trimmed value of a column. Empty cells and "NULL" are
// reported as absent.
func (r Row) Lookup(col string) (string, bool) {
	v, ok := r.values[col]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" || v == nullMarker {
		return "", false
	}
	return v, true
}

// Value returns the value of a column or "" if it is absent.
func (r Row) Value(col string) string {
	v, _ := r.Lookup(col)
	return v
}

// String returns the column as a nullable string.
func (r Row) String(col string) null.String {
	v, ok := r.Lookup(col)
	if !ok {
		return null.String{}
	}
	return null.StringFrom(v)
}

// WithPrefix returns the present cells whose column starts with prefix, with
// the prefix stripped from the name, in column order.
func (r Row) WithPrefix(prefix string) []Field {
	var out []Field
	for _, col := range r.columns {
		if !strings.HasPrefix(col, prefix) {
			continue
		}
		v, ok := r.Lookup(col)
		if !ok {
			continue
		}
		out = append(out, Field{Name: strings.TrimPrefix(col, prefix), Value: v})
	}
	return out
}

// Time parses a date or date-time column. Values without zone information
// are interpreted in loc.
func (r Row) Time(col string, loc *time.Location) (null.Time, error) {
	v, ok := r.Lookup(col)
	if !ok {
		return null.Time{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := dateparse.ParseIn(v, loc)
	if err != nil {
		return null.Time{}, fmt.Errorf("column %s: invalid date %q: %w", col, v, err)
	}
	return null.TimeFrom(t), nil
}

// Float parses a decimal column. A decimal comma is accepted.
func (r Row) Float(col string) (null.Float, error) {
	v, ok := r.Lookup(col)
	if !ok {
		return null.Float{}, nil
	}
	f, err := strconv.ParseFloat(strings.Replace(v, ",", ".", 1), 64)
	if err != nil {
		return null.Float{}, fmt.Errorf("column %s: invalid number %q", col, v)
	}
	return null.FloatFrom(f), nil
}

// Position parses a rack position. Integers are taken as is, single letters
// count from A=1 to Z=26 regardless of case.
func (r Row) Position(col string) (null.Int, error) {
	v, ok := r.Lookup(col)
	if !ok {
		return null.Int{}, nil
	}
	if len(v) == 1 {
		c := v[0] | 0x20
		if c >= 'a' && c <= 'z' {
			return null.IntFrom(int64(c-'a') + 1), nil
		}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return null.Int{}, fmt.Errorf("column %s: invalid position %q", col, v)
	}
	return null.IntFrom(n), nil
}

// Bool parses a flag column; absent flags are false.
func (r Row) Bool(col string) (bool, error) {
	v, ok := r.Lookup(col)
	if !ok {
		return false, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return false, fmt.Errorf("column %s: invalid flag %q", col, v)
	}
	return b, nil
}
