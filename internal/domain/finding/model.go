package finding

import (
	"errors"
	"fmt"

	"gopkg.in/guregu/null.v3"

	"github.com/numlims/fhirbuild/internal/platform/ident"
)

// ErrUnknownComponentType is returned for a component type outside the
// supported set.
var ErrUnknownComponentType = errors.New("unknown component type")

// ComponentType says how a component value is read and rendered.
type ComponentType string

const (
	TypeBoolean ComponentType = "BOOLEAN"
	TypeNumber  ComponentType = "NUMBER"
	TypeDate    ComponentType = "DATE"
	TypeString  ComponentType = "STRING"
	TypeMulti   ComponentType = "MULTI"
	TypeCatalog ComponentType = "CATALOG"
)

// ParseComponentType parses a component type.
func ParseComponentType(s string) (ComponentType, error) {
	switch t := ComponentType(s); t {
	case TypeBoolean, TypeNumber, TypeDate, TypeString, TypeMulti, TypeCatalog:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownComponentType, s)
}

// Component is one measured value. Only the value field matching Type is
// set.
type Component struct {
	Index   int
	Code    string
	Type    ComponentType
	Unit    string
	Catalog string

	Bool   bool
	Number float64
	Date   null.Time
	Text   string
	Values []string
}

// Finding is one observation on a sample: the values measured with one
// method.
type Finding struct {
	Row int

	Sample              ident.Identifiers
	Patient             ident.Identifier
	EffectiveDate       null.Time
	Method              string
	MethodName          string
	Sender              null.String
	Components          []Component
	UpdateWithOverwrite bool
}

// SampleKey returns the natural key of the sample the finding belongs to.
func (f *Finding) SampleKey(mainCode string) (ident.Identifier, bool) {
	return f.Sample.Main(mainCode)
}

// FHIRID derives the finding's surrogate id from the sample's natural key
// and the method, so re-importing a finding updates the same observation.
func (f *Finding) FHIRID(mainCode string) (string, error) {
	key, ok := f.SampleKey(mainCode)
	if !ok {
		return "", fmt.Errorf("%w: finding has no sample %s", ident.ErrMissingNaturalKey, mainCode)
	}
	if f.Method == "" {
		return "", fmt.Errorf("%w: finding has no method", ident.ErrMissingNaturalKey)
	}
	return ident.GenerateFHIRID(key.Value + f.Method)
}
