package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/numlims/fhirbuild/internal/config"
	"github.com/numlims/fhirbuild/pkg/fhirmodels"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fhirbuild",
		Short: "Build CentraXX FHIR transaction bundles from delimited files",
	}

	rootCmd.AddCommand(
		convertCmd(specimenKind, "Build Specimen bundles from sample rows"),
		convertCmd(observationKind, "Build Observation bundles from finding rows", "obs"),
		convertCmd(patientKind, "Build Patient bundles from patient rows"),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func convertCmd(k kind, short string, aliases ...string) *cobra.Command {
	cmd := &cobra.Command{
		Use:          k.name + " <incsv> <outdir>",
		Short:        short,
		Aliases:      aliases,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts, err := applyFlags(cmd, cfg)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			// Patient fhirids come from the patient id container unless asked otherwise.
			if k.name == patientKind.name && !cmd.Flags().Changed("mainidc") {
				opts.mainCode = fhirmodels.DefaultPatientIDContainer
			}

			logger := newLogger(cfg)
			return run(cmd.Context(), k, cfg, opts, args[0], args[1], cmd.OutOrStdout(), logger)
		},
	}

	f := cmd.Flags()
	f.StringP("delimiter", "d", "", "input delimiter: a character, \"tab\" or \"auto\" (default from FHIRBUILD_DELIMITER)")
	f.StringP("encoding", "e", "", "input encoding (default from FHIRBUILD_ENCODING)")
	f.String("delim-cmp", "", "delimiter of MULTI and CATALOG component values")
	f.Int("cxx", 0, "CentraXX version, 3 or 4")
	f.String("mainidc", "", "identifier code fhirids are derived from")
	f.Int("batch-size", 0, "entries per bundle")
	f.String("log-format", "", "log format: json or console")
	f.Bool("wrap", false, "write the bundles into a timestamped subdirectory of outdir")
	f.Bool("print", false, "print each bundle to stdout as its own JSON document instead of a single array; no files are written")
	f.Bool("delete", false, "emit DELETE requests")
	f.Bool("fail-fast", false, "stop at the first record error")
	f.String("report", "", "write warnings and skipped records to this CSV file")
	return cmd
}

// applyFlags copies the flags set on the command line over cfg and returns
// the run options.
func applyFlags(cmd *cobra.Command, cfg *config.Config) (options, error) {
	f := cmd.Flags()
	var err error
	str := func(name string, dst *string) {
		if err == nil && f.Changed(name) {
			*dst, err = f.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if err == nil && f.Changed(name) {
			*dst, err = f.GetInt(name)
		}
	}
	str("delimiter", &cfg.Delimiter)
	str("encoding", &cfg.Encoding)
	str("delim-cmp", &cfg.DelimCmp)
	str("mainidc", &cfg.MainIDC)
	str("log-format", &cfg.LogFormat)
	num("cxx", &cfg.CXX)
	num("batch-size", &cfg.BatchSize)
	if err != nil {
		return options{}, fmt.Errorf("read flags: %w", err)
	}

	opts := options{mainCode: cfg.MainIDC}
	opts.wrap, _ = f.GetBool("wrap")
	opts.print, _ = f.GetBool("print")
	opts.delete, _ = f.GetBool("delete")
	opts.failFast, _ = f.GetBool("fail-fast")
	opts.report, _ = f.GetString("report")
	return opts, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() || cfg.LogFormat == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
