package patient

import (
	"github.com/rs/zerolog"

	"github.com/numlims/fhirbuild/internal/platform/csvin"
	"github.com/numlims/fhirbuild/internal/platform/fhir"
	"github.com/numlims/fhirbuild/internal/report"
	"github.com/numlims/fhirbuild/pkg/fhirmodels"
)

// Options control a patient conversion.
type Options struct {
	// MainCode is the patient identifier code fhirids are derived from.
	MainCode string
	FailFast bool
	Delete   bool
}

// Service converts patient rows into Patient transaction entries.
type Service struct {
	validator *fhir.Validator
	opts      Options
	logger    zerolog.Logger
}

func NewService(opts Options, logger zerolog.Logger) *Service {
	if opts.MainCode == "" {
		opts.MainCode = fhirmodels.DefaultPatientIDContainer
	}
	return &Service{
		validator: fhir.NewValidator(),
		opts:      opts,
		logger:    logger.With().Str("component", "patient-service").Logger(),
	}
}

// Convert builds one entry per row in row order.
func (s *Service) Convert(rows []csvin.Row) ([]fhir.BundleEntry, []report.Issue, error) {
	c := report.NewCollector(s.opts.FailFast)

	method := fhir.MethodPost
	if s.opts.Delete {
		method = fhir.MethodDelete
	}

	entries := make([]fhir.BundleEntry, 0, len(rows))
	for _, row := range rows {
		p, err := Decode(row)
		if err != nil {
			if err := c.Fail(report.KindDecode, "", row.Line, err); err != nil {
				return nil, c.Issues(), err
			}
			continue
		}

		subject := p.IDs.String()
		fhirid, err := p.FHIRID(s.opts.MainCode)
		if err != nil {
			if err := c.Fail(report.KindResolve, subject, p.Row, err); err != nil {
				return nil, c.Issues(), err
			}
			continue
		}

		entry, err := s.build(p, fhirid, method)
		if err != nil {
			if err := c.Fail(report.KindBuild, subject, p.Row, err); err != nil {
				return nil, c.Issues(), err
			}
			continue
		}
		if vr := s.validator.ValidateEntry(entry); !vr.Valid {
			if err := c.Fail(report.KindValidation, subject, p.Row, vr.ToOperationOutcome()); err != nil {
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
		Msg("patients converted")
	return entries, c.Issues(), nil
}

func (s *Service) build(p *Patient, fhirid, method string) (fhir.BundleEntry, error) {
	resource, err := p.ToFHIR(fhirid)
	if err != nil {
		return fhir.BundleEntry{}, err
	}
	return fhir.NewEntry(fhirmodels.ResourcePatient, fhirid, method, resource)
}
