package sample

import (
	"github.com/rs/zerolog"

	"github.com/numlims/fhirbuild/internal/platform/csvin"
	"github.com/numlims/fhirbuild/internal/platform/fhir"
	"github.com/numlims/fhirbuild/internal/report"
	"github.com/numlims/fhirbuild/pkg/fhirmodels"
)

// Options control a sample conversion.
type Options struct {
	// MainCode is the identifier code fhirids are derived from.
	MainCode string
	// FailFast stops the conversion at the first record error instead of
	// skipping the record.
	FailFast bool
	// Delete writes DELETE requests instead of POST.
	Delete bool
}

// Service converts sample rows into Specimen transaction entries.
type Service struct {
	decoder   *Decoder
	resolver  *Resolver
	validator *fhir.Validator
	opts      Options
	logger    zerolog.Logger
}

func NewService(decoder *Decoder, opts Options, logger zerolog.Logger) *Service {
	return &Service{
		decoder:   decoder,
		resolver:  NewResolver(opts.MainCode, logger),
		validator: fhir.NewValidator(),
		opts:      opts,
		logger:    logger.With().Str("component", "sample-service").Logger(),
	}
}

// Convert decodes all rows, resolves the samples in row order and builds
// one entry per resolved sample. Entries keep row order. The returned issues
// hold resolver warnings and the errors of skipped records; the error is
// only set when FailFast stopped the conversion.
func (s *Service) Convert(rows []csvin.Row) ([]fhir.BundleEntry, []report.Issue, error) {
	c := report.NewCollector(s.opts.FailFast)

	samples := make([]*Sample, 0, len(rows))
	for _, row := range rows {
		smp, err := s.decoder.Decode(row)
		if err != nil {
			if err := c.Fail(report.KindDecode, "", row.Line, err); err != nil {
				return nil, c.Issues(), err
			}
			continue
		}
		samples = append(samples, smp)
	}

	// The resolver sees every decoded record before any entry is built.
	res := s.resolver.Resolve(samples)

	for _, w := range res.Warnings {
		c.Warn(report.Issue{
			Row:     samples[w.Index].Row,
			Kind:    w.Kind,
			Subject: w.Sample,
			Parent:  w.Parent,
			Message: w.Message,
		})
	}

	// Under FailFast all resolution failures are reported together.
	if s.opts.FailFast {
		if err := res.Err(); err != nil {
			first := -1
			for i, smp := range samples {
				if res.OK(i) {
					continue
				}
				if first < 0 {
					first = i
				}
				_ = c.FailRecord(s.issue(report.KindResolve, smp), res.Failed[i])
			}
			return nil, c.Issues(), &report.RecordError{Row: samples[first].Row, Err: err}
		}
	}

	method := fhir.MethodPost
	if s.opts.Delete {
		method = fhir.MethodDelete
	}

	entries := make([]fhir.BundleEntry, 0, len(samples))
	for i, smp := range samples {
		if !res.OK(i) {
			if err := c.FailRecord(s.issue(report.KindResolve, smp), res.Failed[i]); err != nil {
				return nil, c.Issues(), err
			}
			continue
		}

		entry, err := s.build(smp, method)
		if err != nil {
			if err := c.FailRecord(s.issue(report.KindBuild, smp), err); err != nil {
				return nil, c.Issues(), err
			}
			continue
		}
		if vr := s.validator.ValidateEntry(entry); !vr.Valid {
			if err := c.FailRecord(s.issue(report.KindValidation, smp), vr.ToOperationOutcome()); err != nil {
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
		Msg("samples converted")
	return entries, c.Issues(), nil
}

// issue describes smp for the report.
func (s *Service) issue(kind string, smp *Sample) report.Issue {
	is := report.Issue{Row: smp.Row, Kind: kind, Subject: smp.Key(s.opts.MainCode)}
	if smp.Parent != nil {
		is.Parent = smp.Parent.IDs.String()
	}
	return is
}

func (s *Service) build(smp *Sample, method string) (fhir.BundleEntry, error) {
	resource, err := smp.ToFHIR(s.opts.MainCode)
	if err != nil {
		return fhir.BundleEntry{}, err
	}
	return fhir.NewEntry(fhirmodels.ResourceSpecimen, smp.FHIRID(), method, resource)
}
