package patient

import (
	"fmt"

	"gopkg.in/guregu/null.v3"

	"github.com/numlims/fhirbuild/internal/platform/csvin"
	"github.com/numlims/fhirbuild/internal/platform/fhir"
	"github.com/numlims/fhirbuild/internal/platform/ident"
	"github.com/numlims/fhirbuild/pkg/fhirmodels"
)

const prefixIDs = "idcp_"

// Patient is one patient record.
type Patient struct {
	Row                 int
	IDs                 ident.Identifiers
	OrganizationUnit    null.String
	UpdateWithOverwrite bool
}

// Decode builds a patient from row.
func Decode(row csvin.Row) (*Patient, error) {
	p := &Patient{
		Row:              row.Line,
		OrganizationUnit: row.String("organization_unit"),
	}
	for _, f := range row.WithPrefix(prefixIDs) {
		p.IDs.Add(f.Name, f.Value)
	}
	if v, ok := row.Lookup(ident.CodeFHIRID); ok {
		p.IDs.Add(ident.CodeFHIRID, v)
	}

	var err error
	if p.UpdateWithOverwrite, err = row.Bool("update_with_overwrite"); err != nil {
		return nil, err
	}
	return p, nil
}

// FHIRID returns the given fhirid or derives one from the patient's natural
// key.
func (p *Patient) FHIRID(mainCode string) (string, error) {
	if v, ok := p.IDs.Get(ident.CodeFHIRID); ok {
		return v, nil
	}
	main, ok := p.IDs.Main(mainCode)
	if !ok {
		return "", fmt.Errorf("%w: patient has no %s", ident.ErrMissingNaturalKey, mainCode)
	}
	return ident.GenerateFHIRID(main.Value)
}

// ToFHIR builds the Patient resource. The organization unit is given as
// general practitioner.
func (p *Patient) ToFHIR(fhirid string) (map[string]interface{}, error) {
	ids, err := fhir.NewIdentifiers(p.IDs)
	if err != nil {
		return nil, err
	}
	result := map[string]interface{}{
		"resourceType": fhirmodels.ResourcePatient,
		"id":           fhirid,
		"extension":    []fhir.Extension{fhir.BoolExtension(fhirmodels.ExtUpdateWithOverwrite, p.UpdateWithOverwrite)},
		"identifier":   ids,
	}
	if p.OrganizationUnit.Valid {
		result["generalPractitioner"] = []fhir.Reference{{
			Identifier: &fhir.Identifier{Value: p.OrganizationUnit.String},
		}}
	}
	return result, nil
}
