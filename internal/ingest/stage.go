package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gyeh/grdload/internal/model"
	"github.com/gyeh/grdload/internal/normalize"
	"github.com/gyeh/grdload/internal/norms"
	"github.com/gyeh/grdload/internal/validate"
)

// PersistenceError is an unexpected failure writing one row.
type PersistenceError struct {
	Row int
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

type runner struct {
	deps      Deps
	log       zerolog.Logger
	report    *model.BatchReport
	table     *norms.Table
	validator *validate.Validator
	patients  *patientResolver
}

func (r *runner) unreadable(rowNum int, err error) {
	msg := "unreadable record"
	if err != nil {
		msg = fmt.Sprintf("unreadable record: %s", err)
	}
	r.report.AddError(rowNum, msg, nil)
	r.log.Warn().Int("row", rowNum).Err(err).Msg("row unreadable")
}

func (r *runner) processRow(ctx context.Context, rowNum int, row model.RawRow) {
	c := normalize.ToCandidate(row, rowNum, r.deps.Columns)

	if rej := r.validator.Validate(ctx, c); rej != nil {
		if rej.Kind == validate.KindDuplicate {
			r.report.AddDuplicate(rowNum, deref(c.ExternalID), rej.Reason)
			r.log.Warn().Int("row", rowNum).Str("episode", deref(c.ExternalID)).Msg(rej.Reason)
			return
		}
		r.report.AddError(rowNum, rej.Reason, row)
		r.log.Warn().Int("row", rowNum).Str("reason", rej.Reason).Msg("row rejected")
		return
	}
	id := *c.ExternalID

	patientID, err := r.patients.resolve(ctx, c)
	if err != nil {
		r.persistFailed(row, &PersistenceError{Row: rowNum, Err: fmt.Errorf("resolve patient: %w", err)})
		return
	}

	e, warnings := BuildEpisode(c, patientID, r.table, r.deps.Rates)
	e.BatchID = r.deps.BatchID

	if err := r.deps.Store.InsertEpisode(ctx, e); err != nil {
		if errors.Is(err, model.ErrDuplicateEpisode) {
			msg := fmt.Sprintf("duplicate episode %s (conflict at insert)", id)
			r.report.AddDuplicate(rowNum, id, msg)
			r.log.Warn().Int("row", rowNum).Str("episode", id).Msg(msg)
			return
		}
		r.persistFailed(row, &PersistenceError{Row: rowNum, Err: fmt.Errorf("insert episode %s: %w", id, err)})
		return
	}

	r.validator.Accept(id, rowNum)
	r.report.ValidRows++
	for _, w := range warnings {
		r.report.AddClassificationWarning(w)
		r.log.Warn().Int("row", rowNum).Str("episode", id).Msg(w)
	}
}

func (r *runner) persistFailed(row model.RawRow, err *PersistenceError) {
	r.report.AddError(err.Row, err.Err.Error(), row)
	r.log.Error().Err(err.Err).Int("row", err.Row).Msg("row not persisted")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
