package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gyeh/grdload/internal/exitcode"
	"github.com/gyeh/grdload/internal/ingest"
	"github.com/gyeh/grdload/internal/logging"
	"github.com/gyeh/grdload/internal/memstore"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run validation and stats (no writes)",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&cfg.FilePath, "file", "", "Path to the episode CSV file (required)")
	_ = planCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	batch, err := ingest.Preflight(cfg.FilePath, log)
	if err != nil {
		log.Error().Err(err).Msg("preflight failed")
		os.Exit(exitcode.ValidationError)
	}

	store := memstore.New()
	deps := ingest.Deps{
		Store:   store,
		Columns: cfg.Columns,
		Rates:   cfg.BillingRates(),
		// Row-level detail goes to the printed plan, not the log.
		Log: log.Level(zerolog.ErrorLevel),
	}
	cache := newNormCache(nil, log)
	if cache != nil {
		deps.Norms = cache
	}
	report := ingest.Run(ctx, deps, *batch)

	tags := make(map[string]int)
	for _, e := range store.Episodes() {
		if e.Tag == nil {
			tags["unclassified"]++
			continue
		}
		tags[string(*e.Tag)]++
	}

	fmt.Println("=== grdload plan ===")
	fmt.Printf("File:        %s\n", cfg.FilePath)
	fmt.Printf("SHA-256:     %s\n", batch.Source.SHA256)
	fmt.Printf("Columns:     %d\n", len(batch.Headers))
	fmt.Printf("Total rows:  %d\n", report.TotalRows)
	fmt.Printf("Valid:       %d\n", report.ValidRows)
	fmt.Printf("Invalid:     %d\n", report.InvalidRows)
	fmt.Printf("Duplicates:  %d\n", report.Duplicates.Count)
	if cache != nil {
		fmt.Printf("Norm:        %s\n", cache.Describe())
	} else {
		fmt.Println("Norm:        not configured")
	}
	fmt.Println()

	if len(report.StructureWarnings.Details) > 0 {
		fmt.Println("Structure warnings:")
		for _, w := range report.StructureWarnings.Details {
			fmt.Printf("  %s\n", w)
		}
		fmt.Println()
	}

	fmt.Println("Classification:")
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-18s %6d\n", name, tags[name])
	}
	fmt.Printf("\nClassification warnings: %d\n", report.ClassificationWarnings.WarningCount)

	const maxErrors = 20
	if len(report.Errors) > 0 {
		fmt.Println("\nRejected rows:")
		for i, rec := range report.Errors {
			if i == maxErrors {
				fmt.Printf("  ... %d more\n", len(report.Errors)-maxErrors)
				break
			}
			fmt.Printf("  row %-6d %s\n", rec.Row, rec.Error)
		}
	}
	return nil
}
