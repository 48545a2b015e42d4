package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/grdload/internal/exitcode"
	"github.com/gyeh/grdload/internal/ingest"
	"github.com/gyeh/grdload/internal/logging"
	"github.com/gyeh/grdload/internal/memstore"
	"github.com/gyeh/grdload/internal/model"
	"github.com/gyeh/grdload/internal/norms"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a discharge CSV export into the database",
	RunE:  runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&cfg.FilePath, "file", "", "Path to the episode CSV file (required)")
	f.BoolVar(&cfg.DryRun, "dry-run", false, "Run the full pipeline against an in-memory store")
	f.StringVar(&cfg.ReportPath, "report", "", "Also write the batch report JSON to this path")
	_ = ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	validate := cfg.ValidateWithDSN
	if cfg.DryRun {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	batch, err := ingest.Preflight(cfg.FilePath, log)
	if err != nil {
		pe := &ingest.PipelineError{Phase: "preflight", Err: err}
		log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("ingest failed")
		os.Exit(exitcode.ValidationError)
	}

	var (
		store     ingest.Store
		persister norms.Persister
	)
	if cfg.DryRun {
		log.Info().Msg("dry run: writing to an in-memory store")
		store = memstore.New()
	} else {
		pgStore, pool := openStore(ctx, log)
		defer pool.Close()
		store, persister = pgStore, pgStore
	}

	deps := ingest.Deps{
		Store:   store,
		Columns: cfg.Columns,
		Rates:   cfg.BillingRates(),
		Log:     log,
	}
	if cache := newNormCache(persister, log); cache != nil {
		deps.Norms = cache
	}

	report := ingest.Run(ctx, deps, *batch)

	if err := writeReport(report); err != nil {
		log.Error().Err(err).Msg("write report failed")
		os.Exit(exitcode.IngestError)
	}

	if report.InvalidRows > 0 {
		os.Exit(exitcode.PartialSuccess)
	}
	return nil
}

func writeReport(report *model.BatchReport) error {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	body = append(body, '\n')
	if cfg.ReportPath != "" {
		if err := os.WriteFile(cfg.ReportPath, body, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", cfg.ReportPath, err)
		}
	}
	_, err = os.Stdout.Write(body)
	return err
}
