package fhir

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/numlims/fhirbuild/internal/platform/ident"
)

func TestNewIdentifier(t *testing.T) {
	id, err := NewIdentifier(ident.Identifier{Code: "SAMPLEID", Value: "S-100"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Value != "S-100" {
		t.Errorf("expected value S-100, got %s", id.Value)
	}
	if id.Type == nil || len(id.Type.Coding) != 1 {
		t.Fatalf("expected one type coding, got %+v", id.Type)
	}
	if c := id.Type.Coding[0]; c.System != "urn:centraxx" || c.Code != "SAMPLEID" {
		t.Errorf("unexpected coding %+v", c)
	}
}

func TestNewIdentifier_Empty(t *testing.T) {
	if _, err := NewIdentifier(ident.Identifier{Code: "SAMPLEID"}); !errors.Is(err, ErrMissingIdentifier) {
		t.Errorf("expected ErrMissingIdentifier for empty value, got %v", err)
	}
	if _, err := NewIdentifier(ident.Identifier{Value: "S-1"}); !errors.Is(err, ErrMissingIdentifier) {
		t.Errorf("expected ErrMissingIdentifier for empty code, got %v", err)
	}
}

func TestNewIdentifiers_SkipsTransient(t *testing.T) {
	ids := ident.Identifiers{
		{Code: "SAMPLEID", Value: "S-1"},
		{Code: "oid", Value: "7"},
		{Code: "fhirid", Value: "abc"},
		{Code: "EXTSAMPLEID", Value: "E-1"},
	}
	got, err := NewIdentifiers(ids)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 identifiers, got %d", len(got))
	}
	if got[0].Value != "S-1" || got[1].Value != "E-1" {
		t.Errorf("unexpected identifiers %+v", got)
	}
}

func TestExtension_FalseBooleanIsWritten(t *testing.T) {
	data, err := json.Marshal(BoolExtension("u", false))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"valueBoolean":false`) {
		t.Errorf("expected valueBoolean false, got %s", data)
	}
}

func TestFormatReference(t *testing.T) {
	if got := FormatReference("Specimen", "abc"); got != "Specimen/abc" {
		t.Errorf("expected Specimen/abc, got %s", got)
	}
}
