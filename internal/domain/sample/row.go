package sample

import (
	"time"

	"go.uber.org/multierr"
	"gopkg.in/guregu/null.v3"

	"github.com/numlims/fhirbuild/internal/platform/csvin"
	"github.com/numlims/fhirbuild/internal/platform/ident"
	"github.com/numlims/fhirbuild/pkg/fhirmodels"
)

// Column prefixes of sample identifiers.
const (
	prefixIDs       = "idcs_"
	prefixParent    = "parent_"
	prefixParentIDs = prefixParent + prefixIDs
)

// Decoder builds samples from input rows.
type Decoder struct {
	// Location is used for dates without zone information.
	Location *time.Location
}

// NewDecoder creates a decoder reading dates in loc.
func NewDecoder(loc *time.Location) *Decoder {
	return &Decoder{Location: loc}
}

// Decode builds a sample from row. The category is taken as given and
// checked by the resolver. All malformed cells of the row are reported
// together.
func (d *Decoder) Decode(row csvin.Row) (*Sample, error) {
	s := &Sample{
		Row:              row.Line,
		Category:         Category(row.Value("category")),
		IDs:              identifiers(row, prefixIDs, ""),
		Type:             row.String("type"),
		OrganizationUnit: row.String("organization_unit"),
		LocationPath:     row.String("location_path"),
		Receptacle:       row.String("receptacle"),
		StockProcessing:  row.String("stock_processing"),
		SecondProcessing: row.String("second_processing"),
	}

	if subject, ok := row.Lookup("subject_id"); ok {
		container := row.Value("subject_idcontainer")
		if container == "" {
			container = fhirmodels.DefaultPatientIDContainer
		}
		s.Patient = ident.Identifier{Code: container, Value: subject}
	}

	if parent := identifiers(row, prefixParentIDs, prefixParent); len(parent) > 0 {
		s.Parent = &Ref{IDs: parent}
	}

	var errs error
	date := func(col string) null.Time {
		t, err := row.Time(col, d.Location)
		errs = multierr.Append(errs, err)
		return t
	}
	s.ReceivedDate = date("received_date")
	s.CollectionDate = date("collection_date")
	s.DerivalDate = date("derival_date")
	s.RepositionDate = date("reposition_date")
	s.StockProcessingDate = date("stock_processing_date")
	s.SecondProcessingDate = date("second_processing_date")

	amount := func(valueCol, unitCol string) *Amount {
		v, err := row.Float(valueCol)
		errs = multierr.Append(errs, err)
		if !v.Valid {
			return nil
		}
		return &Amount{Value: v.Float64, Unit: row.Value(unitCol)}
	}
	s.InitialAmount = amount("initial_amount", "initial_unit")
	s.RestAmount = amount("rest_amount", "rest_unit")

	var err error
	s.Concentration, err = row.Float("concentration")
	errs = multierr.Append(errs, err)
	s.XPosition, err = row.Position("xpos")
	errs = multierr.Append(errs, err)
	s.YPosition, err = row.Position("ypos")
	errs = multierr.Append(errs, err)
	s.UpdateWithOverwrite, err = row.Bool("update_with_overwrite")
	errs = multierr.Append(errs, err)

	if errs != nil {
		return nil, errs
	}
	return s, nil
}

// identifiers collects the identifier columns starting with idPrefix,
// followed by the transient fhirid, oid and index columns under
// transientPrefix.
func identifiers(row csvin.Row, idPrefix, transientPrefix string) ident.Identifiers {
	var ids ident.Identifiers
	for _, f := range row.WithPrefix(idPrefix) {
		ids.Add(f.Name, f.Value)
	}
	for _, code := range []string{ident.CodeFHIRID, ident.CodeOID, ident.CodeIndex} {
		if v, ok := row.Lookup(transientPrefix + code); ok {
			ids.Add(code, v)
		}
	}
	return ids
}
