package ingest

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/gyeh/grdload/internal/model"
)

// Finalize persists the report when the store keeps reports and logs the
// batch summary. A failed save is logged and otherwise ignored.
func Finalize(ctx context.Context, store Store, log zerolog.Logger, report *model.BatchReport, src model.BatchSource) {
	if saver, ok := store.(ReportSaver); ok {
		if err := saver.SaveBatchReport(ctx, report, src); err != nil {
			log.Warn().Err(err).Msg("batch report not persisted")
		}
	}

	log.Info().
		Str("file", src.FileName).
		Int("total_rows", report.TotalRows).
		Int("valid_rows", report.ValidRows).
		Int("invalid_rows", report.InvalidRows).
		Int("duplicates", report.Duplicates.Count).
		Int("structure_warnings", report.StructureWarnings.WarningCount).
		Int("classification_warnings", report.ClassificationWarnings.WarningCount).
		Str("duration", report.FinishedAt.Sub(report.StartedAt).String()).
		Msg("ingest batch complete")
}
