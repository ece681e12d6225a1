package patient

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/numlims/fhirbuild/internal/platform/csvin"
	"github.com/numlims/fhirbuild/internal/platform/fhir"
	"github.com/numlims/fhirbuild/internal/platform/ident"
)

func readRows(t *testing.T, in string) []csvin.Row {
	t.Helper()
	rows, err := csvin.ReadRows(strings.NewReader(in), csvin.Options{Delimiter: ";"})
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	return rows
}

func TestPatient_FHIRID(t *testing.T) {
	p := &Patient{IDs: ident.Identifiers{{Code: "LIMSPSN", Value: "P-1"}, {Code: "PSN", Value: "X"}}}
	got, err := p.FHIRID("LIMSPSN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, _ := ident.GenerateFHIRID("P-1")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	p.IDs.Add(ident.CodeFHIRID, "given")
	if got, _ := p.FHIRID("LIMSPSN"); got != "given" {
		t.Errorf("expected given fhirid, got %s", got)
	}
}

func TestPatient_FHIRIDWithoutKey(t *testing.T) {
	p := &Patient{IDs: ident.Identifiers{{Code: "A", Value: "1"}, {Code: "B", Value: "2"}}}
	if _, err := p.FHIRID("LIMSPSN"); !errors.Is(err, ident.ErrMissingNaturalKey) {
		t.Errorf("expected ErrMissingNaturalKey, got %v", err)
	}
}

type patientResource struct {
	ResourceType        string            `json:"resourceType"`
	ID                  string            `json:"id"`
	Identifier          []fhir.Identifier `json:"identifier"`
	GeneralPractitioner []fhir.Reference  `json:"generalPractitioner"`
	Extension           []fhir.Extension  `json:"extension"`
}

func TestService_Convert(t *testing.T) {
	in := "idcp_LIMSPSN;idcp_PSN;fhirid;organization_unit;update_with_overwrite\n" +
		"P-1;X-1;;ORG;true\n" +
		"P-2;;given;;\n" +
		";;;ORG;\n"

	entries, issues, err := NewService(Options{}, zerolog.Nop()).Convert(readRows(t, in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if len(issues) != 1 || issues[0].Row != 4 {
		t.Errorf("expected one issue on row 4, got %+v", issues)
	}

	var p patientResource
	if err := json.Unmarshal(entries[0].Resource, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want, _ := ident.GenerateFHIRID("P-1")
	if p.ID != want || entries[0].FullURL != "Patient/"+want {
		t.Errorf("unexpected id %s / %s", p.ID, entries[0].FullURL)
	}
	if len(p.Identifier) != 2 {
		t.Errorf("expected 2 identifiers, got %d", len(p.Identifier))
	}
	if len(p.GeneralPractitioner) != 1 || p.GeneralPractitioner[0].Identifier.Value != "ORG" {
		t.Errorf("unexpected general practitioner %+v", p.GeneralPractitioner)
	}
	if p.Extension[0].ValueBoolean == nil || !*p.Extension[0].ValueBoolean {
		t.Error("expected updateWithOverwrite true")
	}

	if entries[1].FullURL != "Patient/given" {
		t.Errorf("expected given fhirid, got %s", entries[1].FullURL)
	}
}
