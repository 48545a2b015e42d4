package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/gyeh/grdload/internal/billing"
	"github.com/gyeh/grdload/internal/model"
	"github.com/gyeh/grdload/internal/normalize"
	"github.com/gyeh/grdload/internal/norms"
	"github.com/gyeh/grdload/internal/rowsource"
	"github.com/gyeh/grdload/internal/validate"
)

// PipelineError wraps an error with the phase where it occurred.
type PipelineError struct {
	Phase string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Store is the persistence a batch needs.
type Store interface {
	validate.ExistenceChecker
	FindOrCreatePatient(ctx context.Context, p model.Patient) (int64, error)
	InsertEpisode(ctx context.Context, e *model.Episode) error
}

// ReportSaver is implemented by stores that keep batch reports.
type ReportSaver interface {
	SaveBatchReport(ctx context.Context, r *model.BatchReport, src model.BatchSource) error
}

// TableProvider hands out the norm table for a batch. *norms.Cache
// satisfies it.
type TableProvider interface {
	Current(ctx context.Context) (*norms.Table, error)
}

// Deps are the collaborators of one run. Zero Columns and zero Rates fall
// back to their defaults.
type Deps struct {
	Store   Store
	Norms   TableProvider
	Columns normalize.Columns
	Rates   billing.Rates
	Log     zerolog.Logger

	// BatchID defaults to a fresh random id.
	BatchID uuid.UUID
	// Now defaults to time.Now.
	Now func() time.Time
	// PatientCache memoizes national id to patient id. A fresh cache is used
	// per run when nil.
	PatientCache *cache.Cache
}

func (d Deps) withDefaults() Deps {
	if d.BatchID == uuid.Nil {
		d.BatchID = uuid.New()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Columns == (normalize.Columns{}) {
		d.Columns = normalize.DefaultColumns()
	}
	if d.PatientCache == nil {
		d.PatientCache = cache.New(cache.NoExpiration, 0)
	}
	if d.Rates.OutlierFactor.IsZero() && d.Rates.DemoraFactor.IsZero() {
		d.Rates = billing.DefaultRates()
	}
	return d
}

// Batch is the input of one run: the file's header row, its data rows in
// source order and where they came from. A record the reader could not parse
// is a nil entry in Rows and is listed in Malformed.
type Batch struct {
	Source    model.BatchSource
	Headers   []string
	Rows      []model.RawRow
	Malformed []rowsource.Malformed
}

// Run ingests batch row by row in source order: normalize, validate,
// resolve patient and norm entry, classify, bill, persist. Nothing in a row
// stops the batch; every problem lands in the returned report.
func Run(ctx context.Context, deps Deps, batch Batch) *model.BatchReport {
	deps = deps.withDefaults()
	log := deps.Log.With().Str("batch_id", deps.BatchID.String()).Logger()

	report := model.NewBatchReport(deps.BatchID, deps.Now().UTC())

	for _, w := range rowsource.CheckHeaders(batch.Headers, deps.Columns.Required()) {
		report.AddStructureWarning(w)
		log.Warn().Str("warning", w).Msg("structure warning")
	}

	table := currentTable(ctx, deps.Norms, log)

	r := &runner{
		deps:      deps,
		log:       log,
		report:    report,
		table:     table,
		validator: validate.New(deps.Store),
		patients:  newPatientResolver(deps.Store, deps.PatientCache),
	}

	malformed := make(map[int]error, len(batch.Malformed))
	for _, m := range batch.Malformed {
		malformed[m.Row] = m.Err
	}

	for i, row := range batch.Rows {
		rowNum := rowsource.FirstDataRow + i
		if err := ctx.Err(); err != nil {
			log.Error().Err(err).Int("row", rowNum).Msg("batch interrupted")
			break
		}
		report.TotalRows++
		if row == nil {
			r.unreadable(rowNum, malformed[rowNum])
			continue
		}
		r.processRow(ctx, rowNum, row)
	}

	report.FinishedAt = deps.Now().UTC()
	Finalize(ctx, deps.Store, log, report, batch.Source)
	return report
}

// currentTable returns the norm table for this batch, or nil when none has
// ever loaded and classification must be skipped.
func currentTable(ctx context.Context, provider TableProvider, log zerolog.Logger) *norms.Table {
	if provider == nil {
		log.Error().Msg("no norm table configured; episodes will be created unclassified")
		return nil
	}
	t, err := provider.Current(ctx)
	if t == nil {
		log.Error().Err(err).Msg("no norm table has ever loaded; episodes will be created unclassified")
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("norm refresh failed, using cached table")
	}
	log.Info().
		Int("norm_entries", t.Len()).
		Str("norm_source", t.Source()).
		Time("norm_loaded_at", t.LoadedAt()).
		Msg("norm table resolved")
	return t
}
