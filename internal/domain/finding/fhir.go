package finding

import (
	"fmt"
	"time"

	"github.com/numlims/fhirbuild/internal/platform/fhir"
	"github.com/numlims/fhirbuild/pkg/fhirmodels"
)

// methodVersion is the version of every method coding.
const methodVersion = "1"

// ToFHIR builds the Observation resource of a finding with the given id.
// The sender, if any, is added as last component.
func (f *Finding) ToFHIR(fhirid, mainCode string) (map[string]interface{}, error) {
	result := map[string]interface{}{
		"resourceType": fhirmodels.ResourceObservation,
		"id":           fhirid,
		"extension":    []fhir.Extension{fhir.BoolExtension(fhirmodels.ExtUpdateWithOverwrite, f.UpdateWithOverwrite)},
		"status":       fhirmodels.ObservationStatusUnknown,
		"code":         fhir.CodeableConcept{Coding: []fhir.Coding{fhir.NewCoding(f.MethodName)}},
		"method": fhir.CodeableConcept{Coding: []fhir.Coding{{
			System:  fhirmodels.System,
			Version: methodVersion,
			Code:    f.Method,
		}}},
	}

	if f.Patient.Value != "" {
		subject, err := fhir.NewIdentifier(f.Patient)
		if err != nil {
			return nil, fmt.Errorf("subject: %w", err)
		}
		result["subject"] = fhir.Reference{Identifier: subject}
	}
	if f.EffectiveDate.Valid {
		result["effectiveDateTime"] = f.EffectiveDate.Time.Format(time.RFC3339)
	}

	key, ok := f.SampleKey(mainCode)
	if !ok {
		return nil, fmt.Errorf("%w: finding has no sample %s", fhir.ErrMissingIdentifier, mainCode)
	}
	specimen, err := fhir.NewIdentifier(key)
	if err != nil {
		return nil, fmt.Errorf("specimen: %w", err)
	}
	result["specimen"] = fhir.Reference{Identifier: specimen}

	components := make([]fhir.ObservationComponent, 0, len(f.Components)+1)
	for _, c := range f.Components {
		if oc, ok := c.toFHIR(); ok {
			components = append(components, oc)
		}
	}
	if f.Sender.Valid {
		components = append(components, fhir.ObservationComponent{
			Code:        codeOf(fhirmodels.SenderComponentCode),
			ValueString: f.Sender.String,
		})
	}
	result["component"] = components
	return result, nil
}

// toFHIR renders a component. Empty strings are left out; the importer
// rejects them.
func (c Component) toFHIR() (fhir.ObservationComponent, bool) {
	oc := fhir.ObservationComponent{Code: codeOf(c.Code)}
	switch c.Type {
	case TypeBoolean:
		v := c.Bool
		oc.ValueBoolean = &v
	case TypeNumber:
		oc.ValueQuantity = &fhir.Quantity{Value: c.Number, Unit: c.Unit}
	case TypeDate:
		if !c.Date.Valid {
			return oc, false
		}
		oc.ValueDateTime = c.Date.Time.Format(time.RFC3339)
	case TypeString:
		if c.Text == "" {
			return oc, false
		}
		oc.ValueString = c.Text
	case TypeMulti:
		oc.ValueCodeableConcept = codings(fhirmodels.SystemUsageEntry, c.Values)
	case TypeCatalog:
		oc.ValueCodeableConcept = codings(fhirmodels.SystemValueList+c.Catalog, c.Values)
	default:
		return oc, false
	}
	return oc, true
}

func codeOf(code string) fhir.CodeableConcept {
	return fhir.CodeableConcept{Coding: []fhir.Coding{fhir.NewCoding(code)}}
}

func codings(system string, values []string) *fhir.CodeableConcept {
	cc := &fhir.CodeableConcept{Coding: make([]fhir.Coding, 0, len(values))}
	for _, v := range values {
		cc.Coding = append(cc.Coding, fhir.Coding{System: system, Code: v})
	}
	return cc
}
