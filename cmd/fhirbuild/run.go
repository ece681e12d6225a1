package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/numlims/fhirbuild/internal/config"
	"github.com/numlims/fhirbuild/internal/domain/finding"
	"github.com/numlims/fhirbuild/internal/domain/patient"
	"github.com/numlims/fhirbuild/internal/domain/sample"
	"github.com/numlims/fhirbuild/internal/platform/csvin"
	"github.com/numlims/fhirbuild/internal/platform/fhir"
	"github.com/numlims/fhirbuild/internal/report"
	"github.com/numlims/fhirbuild/pkg/fhirmodels"
)

type options struct {
	mainCode string
	wrap     bool
	print    bool
	delete   bool
	failFast bool
	report   string
}

type converter func(rows []csvin.Row, cfg *config.Config, loc *time.Location, opts options, logger zerolog.Logger) ([]fhir.BundleEntry, []report.Issue, error)

// kind is one input type: the subcommand name, the resource type of its
// entries and the name used in output files.
type kind struct {
	name    string
	restype string
	file    string
	convert converter
}

var (
	specimenKind = kind{
		name:    "specimen",
		restype: fhirmodels.ResourceSpecimen,
		file:    "sample",
		convert: func(rows []csvin.Row, cfg *config.Config, loc *time.Location, opts options, logger zerolog.Logger) ([]fhir.BundleEntry, []report.Issue, error) {
			svc := sample.NewService(sample.NewDecoder(loc), sample.Options{
				MainCode: opts.mainCode,
				FailFast: opts.failFast,
				Delete:   opts.delete,
			}, logger)
			return svc.Convert(rows)
		},
	}
	observationKind = kind{
		name:    "observation",
		restype: fhirmodels.ResourceObservation,
		file:    "obs",
		convert: func(rows []csvin.Row, cfg *config.Config, loc *time.Location, opts options, logger zerolog.Logger) ([]fhir.BundleEntry, []report.Issue, error) {
			svc := finding.NewService(finding.NewDecoder(loc, cfg.DelimCmp), finding.Options{
				MainCode: opts.mainCode,
				FailFast: opts.failFast,
				Delete:   opts.delete,
			}, logger)
			return svc.Convert(rows)
		},
	}
	patientKind = kind{
		name:    "patient",
		restype: fhirmodels.ResourcePatient,
		file:    "patient",
		convert: func(rows []csvin.Row, cfg *config.Config, loc *time.Location, opts options, logger zerolog.Logger) ([]fhir.BundleEntry, []report.Issue, error) {
			svc := patient.NewService(patient.Options{
				MainCode: opts.mainCode,
				FailFast: opts.failFast,
				Delete:   opts.delete,
			}, logger)
			return svc.Convert(rows)
		},
	}
)

// run converts the input at in and writes the bundles to outdir, or to out
// when printing. Skipped records make run fail after the output is written.
func run(ctx context.Context, k kind, cfg *config.Config, opts options, in, outdir string, out io.Writer, logger zerolog.Logger) error {
	logger = logger.With().Str("kind", k.name).Logger()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	rows, err := readInput(in, cfg)
	if err != nil {
		return err
	}
	logger.Info().Str("input", in).Int("rows", len(rows)).Msg("input read")

	entries, issues, convErr := k.convert(rows, cfg, loc, opts, logger)
	report.Log(logger, issues)
	if opts.report != "" {
		if err := report.WriteFile(opts.report, issues); err != nil {
			return err
		}
	}
	if convErr != nil {
		return fmt.Errorf("convert %s: %w", in, convErr)
	}

	bundles, err := fhir.Paginate(entries, cfg.BatchSize, k.restype, cfg.CXX)
	if err != nil {
		return err
	}
	if err := validateBundles(bundles); err != nil {
		return err
	}

	if opts.print {
		for _, b := range bundles {
			if err := fhir.EncodeTo(out, b); err != nil {
				return fmt.Errorf("print bundle: %w", err)
			}
		}
	} else {
		w := fhir.NewWriter(outdir,
			fhir.WithWrap(opts.wrap),
			fhir.WithWorkers(cfg.WriteWorkers),
			fhir.WithLogger(logger),
		)
		if _, _, err := w.Write(ctx, bundles, k.file); err != nil {
			return err
		}
	}

	warnings, errs := report.Counts(issues)
	logger.Info().
		Int("entries", len(entries)).
		Int("bundles", len(bundles)).
		Int("warnings", warnings).
		Int("errors", errs).
		Msg("conversion finished")
	if errs > 0 {
		return fmt.Errorf("%d record(s) skipped", errs)
	}
	return nil
}

func validateBundles(bundles []*fhir.Bundle) error {
	v := fhir.NewValidator()
	for i, b := range bundles {
		if oo := v.ValidateBundle(b).ToOperationOutcome(); oo.HasErrors() {
			return fmt.Errorf("bundle %d: %w", i, oo)
		}
	}
	return nil
}

func readInput(in string, cfg *config.Config) ([]csvin.Row, error) {
	rc, err := csvin.Open(in)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	rows, err := csvin.ReadRows(rc, csvin.Options{
		Delimiter: cfg.Delimiter,
		Encoding:  cfg.Encoding,
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", in, err)
	}
	return rows, nil
}
