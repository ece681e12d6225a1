package fhir

import (
	"errors"
	"fmt"

	"github.com/numlims/fhirbuild/internal/platform/ident"
	"github.com/numlims/fhirbuild/pkg/fhirmodels"
)

// ErrMissingIdentifier is returned when an identifier has no code or value.
var ErrMissingIdentifier = errors.New("missing identifier")

type Coding struct {
	System  string `json:"system,omitempty"`
	Version string `json:"version,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference  string      `json:"reference,omitempty"`
	Identifier *Identifier `json:"identifier,omitempty"`
	Display    string      `json:"display,omitempty"`
}

type Identifier struct {
	Type   *CodeableConcept `json:"type,omitempty"`
	System string           `json:"system,omitempty"`
	Value  string           `json:"value,omitempty"`
}

type Quantity struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
	System string  `json:"system,omitempty"`
}

// Extension is a FHIR extension. Only the value types used by the CentraXX
// importer are modelled; nested extensions go into Extension.
type Extension struct {
	URL            string      `json:"url"`
	ValueBoolean   *bool       `json:"valueBoolean,omitempty"`
	ValueString    string      `json:"valueString,omitempty"`
	ValueInteger   *int64      `json:"valueInteger,omitempty"`
	ValueDateTime  string      `json:"valueDateTime,omitempty"`
	ValueCoding    *Coding     `json:"valueCoding,omitempty"`
	ValueQuantity  *Quantity   `json:"valueQuantity,omitempty"`
	ValueReference *Reference  `json:"valueReference,omitempty"`
	Extension      []Extension `json:"extension,omitempty"`
}

// ObservationComponent is one measured value of an Observation. Exactly one
// of the value fields is set.
type ObservationComponent struct {
	Code                 CodeableConcept  `json:"code"`
	ValueBoolean         *bool            `json:"valueBoolean,omitempty"`
	ValueQuantity        *Quantity        `json:"valueQuantity,omitempty"`
	ValueString          string           `json:"valueString,omitempty"`
	ValueDateTime        string           `json:"valueDateTime,omitempty"`
	ValueCodeableConcept *CodeableConcept `json:"valueCodeableConcept,omitempty"`
}

// NewCoding returns a coding in the CentraXX system.
func NewCoding(code string) Coding {
	return Coding{System: fhirmodels.System, Code: code}
}

// NewIdentifier renders an identifier with its code as the identifier type.
// Identifiers without code or value are rejected; the importer cannot match
// on them.
func NewIdentifier(id ident.Identifier) (*Identifier, error) {
	if id.Code == "" {
		return nil, fmt.Errorf("%w: identifier has no code", ErrMissingIdentifier)
	}
	if id.Value == "" {
		return nil, fmt.Errorf("%w: value for identifier %s is empty", ErrMissingIdentifier, id.Code)
	}
	return &Identifier{
		Type:  &CodeableConcept{Coding: []Coding{NewCoding(id.Code)}},
		Value: id.Value,
	}, nil
}

// NewIdentifiers renders all durable identifiers in order.
func NewIdentifiers(ids ident.Identifiers) ([]Identifier, error) {
	out := make([]Identifier, 0, len(ids))
	for _, id := range ids.Durable() {
		fid, err := NewIdentifier(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *fid)
	}
	return out, nil
}

// NewQuantity returns a quantity in the CentraXX system.
func NewQuantity(value float64, unit string) *Quantity {
	return &Quantity{Value: value, Unit: unit, System: fhirmodels.System}
}

// BoolExtension returns an extension carrying a boolean.
func BoolExtension(url string, v bool) Extension {
	return Extension{URL: url, ValueBoolean: &v}
}

// IntExtension returns an extension carrying an integer.
func IntExtension(url string, v int64) Extension {
	return Extension{URL: url, ValueInteger: &v}
}

// OperationOutcome represents a FHIR OperationOutcome for errors.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string   `json:"severity"`
	Code        string   `json:"code"`
	Diagnostics string   `json:"diagnostics,omitempty"`
	Expression  []string `json:"expression,omitempty"`
}

func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}
