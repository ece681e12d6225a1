package finding

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/numlims/fhirbuild/internal/platform/csvin"
	"github.com/numlims/fhirbuild/internal/platform/fhir"
	"github.com/numlims/fhirbuild/internal/report"
	"github.com/numlims/fhirbuild/pkg/fhirmodels"
)

// WarningDuplicateFinding is reported when two rows produce the same
// observation id.
const WarningDuplicateFinding = "duplicate_finding"

// Options control a finding conversion.
type Options struct {
	// MainCode is the sample identifier code observation ids are derived from.
	MainCode string
	FailFast bool
	Delete   bool
}

// Service converts finding rows into Observation transaction entries.
type Service struct {
	decoder   *Decoder
	validator *fhir.Validator
	opts      Options
	logger    zerolog.Logger
}

func NewService(decoder *Decoder, opts Options, logger zerolog.Logger) *Service {
	return &Service{
		decoder:   decoder,
		validator: fhir.NewValidator(),
		opts:      opts,
		logger:    logger.With().Str("component", "finding-service").Logger(),
	}
}

// Convert builds one entry per row in row order.
func (s *Service) Convert(rows []csvin.Row) ([]fhir.BundleEntry, []report.Issue, error) {
	c := report.NewCollector(s.opts.FailFast)

	method := fhir.MethodPost
	if s.opts.Delete {
		method = fhir.MethodDelete
	}

	seen := make(map[string]int)
	entries := make([]fhir.BundleEntry, 0, len(rows))
	for _, row := range rows {
		f, err := s.decoder.Decode(row)
		if err != nil {
			if err := c.Fail(report.KindDecode, "", row.Line, err); err != nil {
				return nil, c.Issues(), err
			}
			continue
		}

		subject := f.Sample.String()
		fhirid, err := f.FHIRID(s.opts.MainCode)
		if err != nil {
			if err := c.Fail(report.KindResolve, subject, f.Row, err); err != nil {
				return nil, c.Issues(), err
			}
			continue
		}
		if prev, ok := seen[fhirid]; ok {
			c.Warn(report.Issue{
				Row:     f.Row,
				Kind:    WarningDuplicateFinding,
				Subject: subject,
				Message: fmt.Sprintf("method %s for this sample was already given in row %d", f.Method, prev),
			})
		}
		seen[fhirid] = f.Row

		entry, err := s.build(f, fhirid, method)
		if err != nil {
			if err := c.Fail(report.KindBuild, subject, f.Row, err); err != nil {
				return nil, c.Issues(), err
			}
			continue
		}
		if vr := s.validator.ValidateEntry(entry); !vr.Valid {
			if err := c.Fail(report.KindValidation, subject, f.Row, vr.ToOperationOutcome()); err != nil {
				return nil, c.Issues(), err
			}
			continue
		}
		entries = append(entries, entry)
	}

	s.logger.Info().
		Int("rows", len(rows)).
		Int("entries", len(entries)).
		Int("issues", len(c.Issues())).
		Msg("findings converted")
	return entries, c.Issues(), nil
}

func (s *Service) build(f *Finding, fhirid, method string) (fhir.BundleEntry, error) {
	resource, err := f.ToFHIR(fhirid, s.opts.MainCode)
	if err != nil {
		return fhir.BundleEntry{}, err
	}
	return fhir.NewEntry(fhirmodels.ResourceObservation, fhirid, method, resource)
}
