package db

import (
	"github.com/jackc/pgx/v5"

	"github.com/gyeh/grdload/internal/model"
)

// normStageColumns is the COPY column order of norm_entries_stage.
var normStageColumns = []string{
	"code", "weight", "lower_cutoff", "upper_cutoff", "base_tariff_cents",
	"p25_cents", "p50_cents", "p75_cents",
}

// NormSource implements pgx.CopyFromSource over loaded norm entries.
type NormSource struct {
	entries []model.NormEntry
	idx     int
}

// NewNormSource creates a CopyFromSource backed by entries.
func NewNormSource(entries []model.NormEntry) *NormSource {
	return &NormSource{entries: entries, idx: -1}
}

// Next advances to the next entry.
func (s *NormSource) Next() bool {
	s.idx++
	return s.idx < len(s.entries)
}

// Values returns the current entry in COPY column order.
func (s *NormSource) Values() ([]any, error) {
	e := s.entries[s.idx]
	return []any{
		e.Code,
		e.Weight.InexactFloat64(),
		e.LowerCutoff,
		e.UpperCutoff,
		ToCents(e.BaseTariff),
		centsPtr(e.P25),
		centsPtr(e.P50),
		centsPtr(e.P75),
	}, nil
}

// Err is always nil; entries are already in memory.
func (s *NormSource) Err() error {
	return nil
}

var _ pgx.CopyFromSource = (*NormSource)(nil)
