package finding

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/guregu/null.v3"

	"github.com/numlims/fhirbuild/internal/platform/csvin"
	"github.com/numlims/fhirbuild/internal/platform/ident"
	"github.com/numlims/fhirbuild/pkg/fhirmodels"
)

const (
	prefixIDs       = "idcs_"
	prefixComponent = "cmp_"
)

// DefaultComponentDelimiter separates the values of MULTI and CATALOG
// components.
const DefaultComponentDelimiter = ","

// Decoder builds findings from input rows.
type Decoder struct {
	Location *time.Location
	// ComponentDelimiter separates multiple values in one component cell.
	ComponentDelimiter string
}

// NewDecoder creates a decoder reading dates in loc and splitting
// multi-valued components at delim.
func NewDecoder(loc *time.Location, delim string) *Decoder {
	if delim == "" {
		delim = DefaultComponentDelimiter
	}
	return &Decoder{Location: loc, ComponentDelimiter: delim}
}

// Decode builds a finding from row. Components come out ordered by their
// index; components without a value are left out.
func (d *Decoder) Decode(row csvin.Row) (*Finding, error) {
	f := &Finding{
		Row:        row.Line,
		Method:     row.Value("method"),
		MethodName: row.Value("methodname"),
		Sender:     row.String("sender"),
	}
	for _, fld := range row.WithPrefix(prefixIDs) {
		f.Sample.Add(fld.Name, fld.Value)
	}
	if subject, ok := row.Lookup("subject_id"); ok {
		container := row.Value("subject_idcontainer")
		if container == "" {
			container = fhirmodels.DefaultPatientIDContainer
		}
		f.Patient = ident.Identifier{Code: container, Value: subject}
	}

	var errs, err error
	f.EffectiveDate, err = row.Time("effective_date_time", d.Location)
	errs = multierr.Append(errs, err)
	f.UpdateWithOverwrite, err = row.Bool("update_with_overwrite")
	errs = multierr.Append(errs, err)
	f.Components, err = d.components(row)
	errs = multierr.Append(errs, err)

	if errs != nil {
		return nil, errs
	}
	return f, nil
}

// components reads the cmp_<index>_<field> columns of row.
func (d *Decoder) components(row csvin.Row) ([]Component, error) {
	fields := make(map[int]map[string]string)
	for _, col := range row.Columns() {
		if !strings.HasPrefix(col, prefixComponent) {
			continue
		}
		rest := strings.TrimPrefix(col, prefixComponent)
		num, field, ok := strings.Cut(rest, "_")
		if !ok {
			return nil, fmt.Errorf("column %s: expected %s<index>_<field>", col, prefixComponent)
		}
		idx, err := strconv.Atoi(num)
		if err != nil {
			return nil, fmt.Errorf("column %s: invalid component index %q", col, num)
		}
		switch field {
		case "code", "type", "value", "unit", "catalog":
		default:
			return nil, fmt.Errorf("column %s: unknown component field %q", col, field)
		}
		if fields[idx] == nil {
			fields[idx] = make(map[string]string)
		}
		fields[idx][field] = col
	}

	indexes := make([]int, 0, len(fields))
	for idx := range fields {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	var out []Component
	var errs error
	for _, idx := range indexes {
		cols := fields[idx]
		if _, ok := row.Lookup(cols["value"]); !ok {
			continue
		}
		c, err := d.component(row, idx, cols)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("component %d: %w", idx, err))
			continue
		}
		out = append(out, c)
	}
	return out, errs
}

func (d *Decoder) component(row csvin.Row, idx int, cols map[string]string) (Component, error) {
	c := Component{
		Index:   idx,
		Code:    row.Value(cols["code"]),
		Unit:    row.Value(cols["unit"]),
		Catalog: row.Value(cols["catalog"]),
	}
	if c.Code == "" {
		return c, fmt.Errorf("missing code")
	}
	var err error
	if c.Type, err = ParseComponentType(row.Value(cols["type"])); err != nil {
		return c, err
	}

	valueCol := cols["value"]
	switch c.Type {
	case TypeBoolean:
		c.Bool, err = row.Bool(valueCol)
	case TypeNumber:
		var n null.Float
		n, err = row.Float(valueCol)
		c.Number = n.Float64
	case TypeDate:
		c.Date, err = row.Time(valueCol, d.Location)
	case TypeString:
		c.Text = row.Value(valueCol)
	case TypeMulti, TypeCatalog:
		c.Values = d.split(row.Value(valueCol))
		if c.Type == TypeCatalog && c.Catalog == "" {
			err = fmt.Errorf("catalog component has no catalog")
		}
	}
	return c, err
}

// split separates a multi-valued cell, dropping empty values.
func (d *Decoder) split(v string) []string {
	var out []string
	for _, part := range strings.Split(v, d.ComponentDelimiter) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
