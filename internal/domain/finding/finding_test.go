package finding

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/numlims/fhirbuild/internal/platform/csvin"
	"github.com/numlims/fhirbuild/internal/platform/fhir"
	"github.com/numlims/fhirbuild/internal/platform/ident"
	"github.com/numlims/fhirbuild/internal/report"
)

const header = "idcs_SAMPLEID;subject_id;effective_date_time;method;methodname;sender;" +
	"cmp_2_code;cmp_2_type;cmp_2_value;cmp_2_unit;" +
	"cmp_1_code;cmp_1_type;cmp_1_value;" +
	"cmp_10_code;cmp_10_type;cmp_10_value;cmp_10_catalog\n"

func readRows(t *testing.T, in string) []csvin.Row {
	t.Helper()
	rows, err := csvin.ReadRows(strings.NewReader(in), csvin.Options{Delimiter: ";"})
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	return rows
}

func decodeOne(t *testing.T, in string) (*Finding, error) {
	t.Helper()
	return NewDecoder(time.UTC, "").Decode(readRows(t, in)[0])
}

func TestDecode_ComponentsInIndexOrder(t *testing.T) {
	f, err := decodeOne(t, header+"S-1;P-1;2024-01-15;M1;Profile;LAB;HB;NUMBER;12,5;g/dl;POS;BOOLEAN;true;COL;CATALOG;a, b;COLORS\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Components) != 3 {
		t.Fatalf("expected 3 components, got %d", len(f.Components))
	}
	if f.Components[0].Index != 1 || f.Components[1].Index != 2 || f.Components[2].Index != 10 {
		t.Errorf("unexpected order %d,%d,%d", f.Components[0].Index, f.Components[1].Index, f.Components[2].Index)
	}
	if !f.Components[0].Bool {
		t.Error("expected boolean component to be true")
	}
	if f.Components[1].Number != 12.5 || f.Components[1].Unit != "g/dl" {
		t.Errorf("unexpected number component %+v", f.Components[1])
	}
	if strings.Join(f.Components[2].Values, "|") != "a|b" {
		t.Errorf("unexpected catalog values %v", f.Components[2].Values)
	}
	if f.Patient != (ident.Identifier{Code: "LIMSPSN", Value: "P-1"}) {
		t.Errorf("unexpected patient %+v", f.Patient)
	}
}

func TestDecode_SkipsEmptyComponents(t *testing.T) {
	f, err := decodeOne(t, header+"S-1;P-1;2024-01-15;M1;Profile;;HB;NUMBER;;;POS;BOOLEAN;true;;;;\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Components) != 1 || f.Components[0].Code != "POS" {
		t.Errorf("expected only the POS component, got %+v", f.Components)
	}
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := decodeOne(t, "idcs_SAMPLEID;method;cmp_1_code;cmp_1_type;cmp_1_value\nS-1;M1;X;BLOB;1\n")
	if !errors.Is(err, ErrUnknownComponentType) {
		t.Errorf("expected ErrUnknownComponentType, got %v", err)
	}
}

func TestDecode_CatalogNeedsCatalog(t *testing.T) {
	_, err := decodeOne(t, "idcs_SAMPLEID;method;cmp_1_code;cmp_1_type;cmp_1_value\nS-1;M1;X;CATALOG;a\n")
	if err == nil {
		t.Fatal("expected error for catalog component without catalog")
	}
}

func TestDecode_BadComponentColumn(t *testing.T) {
	for _, col := range []string{"cmp_x_code", "cmp_1", "cmp_1_colour"} {
		_, err := decodeOne(t, "idcs_SAMPLEID;"+col+"\nS-1;v\n")
		if err == nil {
			t.Errorf("expected error for column %s", col)
		}
	}
}

func TestDecode_MultiDelimiter(t *testing.T) {
	rows := readRows(t, "idcs_SAMPLEID;method;cmp_1_code;cmp_1_type;cmp_1_value\nS-1;M1;X;MULTI;a|b|c\n")
	f, err := NewDecoder(time.UTC, "|").Decode(rows[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Components[0].Values) != 3 {
		t.Errorf("expected 3 values, got %v", f.Components[0].Values)
	}
}

func TestFinding_FHIRID(t *testing.T) {
	f := &Finding{Sample: ident.Identifiers{{Code: "SAMPLEID", Value: "S-1"}}, Method: "M1"}
	got, err := f.FHIRID("SAMPLEID")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, _ := ident.GenerateFHIRID("S-1M1")
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	f.Method = ""
	if _, err := f.FHIRID("SAMPLEID"); !errors.Is(err, ident.ErrMissingNaturalKey) {
		t.Errorf("expected ErrMissingNaturalKey without method, got %v", err)
	}
}

type observation struct {
	ResourceType string `json:"resourceType"`
	Status       string `json:"status"`
	Method       struct {
		Coding []fhir.Coding `json:"coding"`
	} `json:"method"`
	Component []fhir.ObservationComponent `json:"component"`
}

func TestService_Convert(t *testing.T) {
	in := header +
		"S-1;P-1;2024-01-15;M1;Profile;LAB;HB;NUMBER;12,5;g/dl;NOTE;STRING;;COL;CATALOG;a,b;COLORS\n" +
		"S-1;P-1;2024-01-15;M1;Profile;;HB;NUMBER;13;g/dl;;;;;;;\n"

	entries, issues, err := NewService(NewDecoder(time.UTC, ","), Options{MainCode: "SAMPLEID"}, zerolog.Nop()).Convert(readRows(t, in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if len(issues) != 1 || issues[0].Kind != WarningDuplicateFinding || issues[0].Row != 3 {
		t.Errorf("expected duplicate warning on row 3, got %+v", issues)
	}

	var obs observation
	if err := json.Unmarshal(entries[0].Resource, &obs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if obs.ResourceType != "Observation" || obs.Status != "unknown" {
		t.Errorf("unexpected observation header %+v", obs)
	}
	if obs.Method.Coding[0].Version != "1" || obs.Method.Coding[0].Code != "M1" {
		t.Errorf("unexpected method %+v", obs.Method)
	}
	// HB, COL, then the sender.
	if len(obs.Component) != 3 {
		t.Fatalf("expected 3 components, got %d", len(obs.Component))
	}
	if obs.Component[0].ValueQuantity == nil || obs.Component[0].ValueQuantity.Value != 12.5 {
		t.Errorf("unexpected quantity %+v", obs.Component[0])
	}
	if cc := obs.Component[1].ValueCodeableConcept; cc == nil || cc.Coding[0].System != "urn:centraxx:CodeSystem/ValueList-COLORS" {
		t.Errorf("unexpected catalog component %+v", obs.Component[1])
	}
	if obs.Component[2].Code.Coding[0].Code != "EINS_CODE" || obs.Component[2].ValueString != "LAB" {
		t.Errorf("unexpected sender component %+v", obs.Component[2])
	}
}

func TestService_Delete(t *testing.T) {
	in := "idcs_SAMPLEID;subject_id;method\nS-1;P-1;M1\n"
	entries, _, err := NewService(NewDecoder(time.UTC, ","), Options{MainCode: "SAMPLEID", Delete: true}, zerolog.Nop()).Convert(readRows(t, in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entries[0].Request.Method != "DELETE" {
		t.Errorf("expected DELETE, got %s", entries[0].Request.Method)
	}
}

func TestService_FailFast(t *testing.T) {
	in := "idcs_SAMPLEID;subject_id;method\n;P-1;M1\nS-2;P-1;M1\n"
	_, issues, err := NewService(NewDecoder(time.UTC, ","), Options{MainCode: "SAMPLEID", FailFast: true}, zerolog.Nop()).Convert(readRows(t, in))
	if !errors.Is(err, ident.ErrMissingNaturalKey) {
		t.Fatalf("expected ErrMissingNaturalKey, got %v", err)
	}
	if len(issues) != 1 || issues[0].Severity != report.SeverityError {
		t.Errorf("expected one error issue, got %+v", issues)
	}
}
