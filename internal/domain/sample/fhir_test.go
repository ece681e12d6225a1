package sample

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gopkg.in/guregu/null.v3"

	"github.com/numlims/fhirbuild/internal/platform/fhir"
	"github.com/numlims/fhirbuild/internal/platform/ident"
	"github.com/numlims/fhirbuild/pkg/fhirmodels"
)

// toJSON round-trips a resource into generic JSON for inspection.
func toJSON(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

func extensionURLs(m map[string]interface{}) []string {
	var urls []string
	for _, e := range m["extension"].([]interface{}) {
		urls = append(urls, e.(map[string]interface{})["url"].(string))
	}
	return urls
}

func findExtension(m map[string]interface{}, url string) map[string]interface{} {
	for _, e := range m["extension"].([]interface{}) {
		ext := e.(map[string]interface{})
		if ext["url"] == url {
			return ext
		}
	}
	return nil
}

func TestToFHIR_Specimen(t *testing.T) {
	s := master("S-1")
	s.IDs.Add(ident.CodeOID, "1")
	s.IDs.Add(ident.CodeFHIRID, "fid-1")
	s.Patient = ident.Identifier{Code: "LIMSPSN", Value: "P-1"}
	s.Type = null.StringFrom("SER")
	s.OrganizationUnit = null.StringFrom("ORG")
	s.CollectionDate = null.TimeFrom(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
	s.InitialAmount = &Amount{Value: 2, Unit: "ml"}
	s.Receptacle = null.StringFrom("TUBE")
	s.XPosition = null.IntFrom(3)
	s.StockProcessing = null.StringFrom("A")

	res, err := s.ToFHIR("SAMPLEID")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := toJSON(t, res)

	if m["resourceType"] != "Specimen" || m["id"] != "fid-1" {
		t.Errorf("unexpected header %v/%v", m["resourceType"], m["id"])
	}
	if m["status"] != fhirmodels.SpecimenAvailable {
		t.Errorf("expected status available, got %v", m["status"])
	}
	ids := m["identifier"].([]interface{})
	if len(ids) != 1 {
		t.Fatalf("expected only the durable identifier, got %v", ids)
	}
	if ids[0].(map[string]interface{})["value"] != "S-1" {
		t.Errorf("unexpected identifier %v", ids[0])
	}

	urls := extensionURLs(m)
	want := []string{
		fhirmodels.ExtUpdateWithOverwrite,
		fhirmodels.ExtOrganizationUnit,
		fhirmodels.ExtSampleCategory,
		fhirmodels.ExtSprec,
		fhirmodels.ExtSampleLocation,
	}
	if len(urls) != len(want) {
		t.Fatalf("expected extensions %v, got %v", want, urls)
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("extension %d: got %s, want %s", i, urls[i], want[i])
		}
	}
	if findExtension(m, fhirmodels.ExtUpdateWithOverwrite)["valueBoolean"] != false {
		t.Error("expected updateWithOverwrite false")
	}
	sprec := findExtension(m, fhirmodels.ExtSprec)["extension"].([]interface{})
	if len(sprec) != 2 {
		t.Errorf("expected useSprec and stockProcessing, got %v", sprec)
	}

	collection := m["collection"].(map[string]interface{})
	if collection["collectedDateTime"] != "2024-01-15T10:30:00Z" {
		t.Errorf("unexpected collection date %v", collection["collectedDateTime"])
	}
	if _, ok := m["parent"]; ok {
		t.Error("expected no parent for a master sample")
	}
}

func TestToFHIR_ParentByFHIRID(t *testing.T) {
	s := derived("S-2", "", "")
	s.IDs.Add(ident.CodeFHIRID, "fid-2")
	s.Parent.IDs.Add(ident.CodeFHIRID, "fid-1")

	res, err := s.ToFHIR("SAMPLEID")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parent := res["parent"].([]fhir.Reference)
	if parent[0].Reference != "Specimen/fid-1" {
		t.Errorf("expected Specimen/fid-1, got %+v", parent[0])
	}
}

func TestToFHIR_ParentByNaturalKey(t *testing.T) {
	s := derived("S-2", "", "9")
	s.IDs.Add(ident.CodeFHIRID, "fid-2")
	s.Parent.IDs.Add("SAMPLEID", "S-1")

	res, err := s.ToFHIR("SAMPLEID")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parent := res["parent"].([]fhir.Reference)
	if parent[0].Reference != "" || parent[0].Identifier == nil || parent[0].Identifier.Value != "S-1" {
		t.Errorf("expected identifier reference to S-1, got %+v", parent[0])
	}
}

func TestToFHIR_ParentWithoutIdentifier(t *testing.T) {
	s := derived("S-2", "", "9")
	s.IDs.Add(ident.CodeFHIRID, "fid-2")

	if _, err := s.ToFHIR("SAMPLEID"); !errors.Is(err, fhir.ErrMissingIdentifier) {
		t.Errorf("expected ErrMissingIdentifier, got %v", err)
	}
}

func TestToFHIR_AliquotGroup(t *testing.T) {
	s := aliquotGroup("1", "S-1", "Serum")
	s.IDs.Add(ident.CodeFHIRID, "fid-ag")
	s.Patient = ident.Identifier{Code: "LIMSPSN", Value: "P-1"}

	res, err := s.ToFHIR("SAMPLEID")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := toJSON(t, res)
	if m["status"] != fhirmodels.SpecimenUnavailable {
		t.Errorf("expected status unavailable, got %v", m["status"])
	}
	if _, ok := m["identifier"]; ok {
		t.Error("expected no identifiers on an aliquot group")
	}
	sprec := findExtension(m, fhirmodels.ExtSprec)["extension"].([]interface{})
	if sprec[0].(map[string]interface{})["valueBoolean"] != false {
		t.Error("expected useSprec false")
	}
	category := findExtension(m, fhirmodels.ExtSampleCategory)["valueCoding"].(map[string]interface{})
	if category["code"] != "ALIQUOTGROUP" {
		t.Errorf("expected category ALIQUOTGROUP, got %v", category["code"])
	}
}

func TestToFHIR_Unresolved(t *testing.T) {
	if _, err := master("S-1").ToFHIR("SAMPLEID"); err == nil {
		t.Fatal("expected error for a sample without fhirid")
	}
}
