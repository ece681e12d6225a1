package sample

import (
	"fmt"
	"time"

	"gopkg.in/guregu/null.v3"

	"github.com/numlims/fhirbuild/internal/platform/fhir"
	"github.com/numlims/fhirbuild/pkg/fhirmodels"
)

// ToFHIR builds the Specimen resource of a resolved sample. Master and
// derived samples become available specimens, aliquot groups unavailable
// ones without sprec. The parent is referenced by fhirid when known and by
// natural key otherwise.
func (s *Sample) ToFHIR(mainCode string) (map[string]interface{}, error) {
	fhirid := s.FHIRID()
	if fhirid == "" {
		return nil, fmt.Errorf("sample %s has no fhirid", s.Key(mainCode))
	}

	result := map[string]interface{}{
		"resourceType": fhirmodels.ResourceSpecimen,
		"id":           fhirid,
	}

	ext := []fhir.Extension{fhir.BoolExtension(fhirmodels.ExtUpdateWithOverwrite, s.UpdateWithOverwrite)}
	if s.OrganizationUnit.Valid {
		ext = append(ext, fhir.Extension{
			URL:            fhirmodels.ExtOrganizationUnit,
			ValueReference: &fhir.Reference{Identifier: &fhir.Identifier{Value: s.OrganizationUnit.String}},
		})
	}
	category := fhir.NewCoding(string(s.Category))
	ext = append(ext, fhir.Extension{URL: fhirmodels.ExtSampleCategory, ValueCoding: &category})

	if s.Type.Valid {
		result["type"] = fhir.CodeableConcept{Coding: []fhir.Coding{fhir.NewCoding(s.Type.String)}}
	}
	if s.Patient.Value != "" {
		subject, err := fhir.NewIdentifier(s.Patient)
		if err != nil {
			return nil, fmt.Errorf("subject: %w", err)
		}
		result["subject"] = fhir.Reference{Identifier: subject}
	}
	if s.ReceivedDate.Valid {
		result["receivedTime"] = dateTime(s.ReceivedDate.Time)
	}
	if s.Parent != nil {
		parent, err := parentReference(s.Parent, mainCode)
		if err != nil {
			return nil, err
		}
		result["parent"] = []fhir.Reference{parent}
	}

	if s.Category == CategoryAliquotGroup {
		ext = append(ext, fhir.Extension{
			URL:       fhirmodels.ExtSprec,
			Extension: []fhir.Extension{fhir.BoolExtension(fhirmodels.ExtUseSprec, false)},
		})
		result["status"] = fhirmodels.SpecimenUnavailable
		result["extension"] = ext
		return result, nil
	}

	ids, err := fhir.NewIdentifiers(s.IDs)
	if err != nil {
		return nil, err
	}
	result["identifier"] = ids
	result["status"] = fhirmodels.SpecimenAvailable

	ext = append(ext, s.sprec())
	if loc, ok := s.location(); ok {
		ext = append(ext, loc)
	}
	if s.DerivalDate.Valid {
		ext = append(ext, fhir.Extension{URL: fhirmodels.ExtDerivalDate, ValueDateTime: dateTime(s.DerivalDate.Time)})
	}
	if s.Concentration.Valid {
		ext = append(ext, fhir.Extension{URL: fhirmodels.ExtConcentration, ValueQuantity: fhir.NewQuantity(s.Concentration.Float64, "")})
	}
	if s.RepositionDate.Valid {
		ext = append(ext, fhir.Extension{URL: fhirmodels.ExtRepositionDate, ValueDateTime: dateTime(s.RepositionDate.Time)})
	}
	result["extension"] = ext

	collection := map[string]interface{}{}
	if s.CollectionDate.Valid {
		collection["collectedDateTime"] = dateTime(s.CollectionDate.Time)
	}
	if s.InitialAmount != nil {
		collection["quantity"] = fhir.NewQuantity(s.InitialAmount.Value, s.InitialAmount.Unit)
	}
	if len(collection) > 0 {
		result["collection"] = collection
	}

	container := map[string]interface{}{}
	if s.Receptacle.Valid {
		container["identifier"] = []fhir.Identifier{{System: fhirmodels.System, Value: s.Receptacle.String}}
	}
	if s.RestAmount != nil {
		container["specimenQuantity"] = fhir.NewQuantity(s.RestAmount.Value, s.RestAmount.Unit)
	}
	if len(container) > 0 {
		result["container"] = []map[string]interface{}{container}
	}
	return result, nil
}

// sprec builds the sprec extension with the processing steps that are set.
func (s *Sample) sprec() fhir.Extension {
	sub := []fhir.Extension{fhir.BoolExtension(fhirmodels.ExtUseSprec, true)}
	if c, ok := coding(s.StockProcessing); ok {
		sub = append(sub, fhir.Extension{URL: fhirmodels.ExtStockProcessing, ValueCoding: c})
	}
	if s.StockProcessingDate.Valid {
		sub = append(sub, fhir.Extension{URL: fhirmodels.ExtStockProcessingDate, ValueDateTime: dateTime(s.StockProcessingDate.Time)})
	}
	if c, ok := coding(s.SecondProcessing); ok {
		sub = append(sub, fhir.Extension{URL: fhirmodels.ExtSecondProcessing, ValueCoding: c})
	}
	if s.SecondProcessingDate.Valid {
		sub = append(sub, fhir.Extension{URL: fhirmodels.ExtSecondProcessingDate, ValueDateTime: dateTime(s.SecondProcessingDate.Time)})
	}
	return fhir.Extension{URL: fhirmodels.ExtSprec, Extension: sub}
}

// location builds the sample location extension from path and rack
// position, in that order.
func (s *Sample) location() (fhir.Extension, bool) {
	var sub []fhir.Extension
	if s.LocationPath.Valid {
		sub = append(sub, fhir.Extension{URL: fhirmodels.ExtSampleLocationPath, ValueString: s.LocationPath.String})
	}
	if s.XPosition.Valid {
		sub = append(sub, fhir.IntExtension(fhirmodels.ExtXPosition, s.XPosition.Int64))
	}
	if s.YPosition.Valid {
		sub = append(sub, fhir.IntExtension(fhirmodels.ExtYPosition, s.YPosition.Int64))
	}
	if len(sub) == 0 {
		return fhir.Extension{}, false
	}
	return fhir.Extension{URL: fhirmodels.ExtSampleLocation, Extension: sub}, true
}

// parentReference renders the parent as a literal reference when its fhirid
// is known. Otherwise the parent is identified by its natural key, or by its
// first identifier if it has no natural key.
func parentReference(p *Ref, mainCode string) (fhir.Reference, error) {
	if fhirid := p.FHIRID(); fhirid != "" {
		return fhir.Reference{Reference: fhir.FormatReference(fhirmodels.ResourceSpecimen, fhirid)}, nil
	}

	id, ok := p.IDs.Main(mainCode)
	if !ok {
		durable := p.IDs.Durable()
		if len(durable) == 0 {
			return fhir.Reference{}, fmt.Errorf("%w: parent %s can not be referenced", fhir.ErrMissingIdentifier, p.IDs)
		}
		id = durable[0]
	}
	fid, err := fhir.NewIdentifier(id)
	if err != nil {
		return fhir.Reference{}, fmt.Errorf("parent: %w", err)
	}
	return fhir.Reference{Identifier: fid}, nil
}

func coding(v null.String) (*fhir.Coding, bool) {
	if !v.Valid {
		return nil, false
	}
	c := fhir.NewCoding(v.String)
	return &c, true
}

func dateTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
