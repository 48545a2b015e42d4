package norms

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gyeh/grdload/internal/model"
	"github.com/gyeh/grdload/internal/normalize"
)

// Columns maps norm attributes to sheet headers.
type Columns struct {
	Code   string `yaml:"code"`
	Weight string `yaml:"weight"`
	Lower  string `yaml:"lower_cutoff"`
	Upper  string `yaml:"upper_cutoff"`
	Tariff string `yaml:"tariff"`
	P25    string `yaml:"p25"`
	P50    string `yaml:"p50"`
	P75    string `yaml:"p75"`
}

// DefaultColumns returns the headers of the published IR-GRD norm sheet.
func DefaultColumns() Columns {
	return Columns{
		Code:   "GRD",
		Weight: "Peso",
		Lower:  "PCI",
		Upper:  "PCS",
		Tariff: "Tarifa",
		P25:    "P25",
		P50:    "P50",
		P75:    "P75",
	}
}

// LoadOptions controls how sheet rows become entries.
type LoadOptions struct {
	Columns Columns
	// BasePrice prices entries whose sheet has no tariff: tariff = weight × BasePrice.
	BasePrice decimal.Decimal
	Now       func() time.Time
}

// LoadStats counts what happened to each sheet row.
type LoadStats struct {
	Rows          int
	Loaded        int
	SkippedNoCode int
	SkippedCutoff int
}

// Load fetches the sheet from src and builds a table. Rows without a code
// and rows whose cut-offs are missing, non-finite, negative or inverted are
// skipped.
func Load(ctx context.Context, src Source, opts LoadOptions) (*Table, LoadStats, error) {
	var stats LoadStats

	rows, err := src.Fetch(ctx)
	if err != nil {
		return nil, stats, &NormLoadError{Source: src.Name(), Err: err}
	}

	cols := opts.Columns
	entries := make([]model.NormEntry, 0, len(rows))
	for _, row := range rows {
		stats.Rows++
		get := func(header string) *string {
			v, ok := row[header]
			if !ok || header == "" {
				return nil
			}
			return &v
		}

		code := normalize.NormalizeCode(get(cols.Code))
		if code == nil {
			stats.SkippedNoCode++
			continue
		}

		lower, okLower := cutoff(get(cols.Lower))
		upper, okUpper := cutoff(get(cols.Upper))
		if !okLower || !okUpper || lower > upper {
			stats.SkippedCutoff++
			continue
		}

		e := model.NormEntry{
			Code:        *code,
			LowerCutoff: lower,
			UpperCutoff: upper,
			P25:         normalize.ParseAmount(get(cols.P25)),
			P50:         normalize.ParseAmount(get(cols.P50)),
			P75:         normalize.ParseAmount(get(cols.P75)),
		}
		if w := normalize.ParseFloat(get(cols.Weight)); w != nil {
			e.Weight = decimal.NewFromFloat(*w)
		}
		if tariff := normalize.ParseAmount(get(cols.Tariff)); tariff != nil {
			e.BaseTariff = *tariff
		} else if !opts.BasePrice.IsZero() {
			e.BaseTariff = e.Weight.Mul(opts.BasePrice).Round(2)
		}

		entries = append(entries, e)
		stats.Loaded++
	}

	if len(entries) == 0 {
		return nil, stats, &NormLoadError{
			Source: src.Name(),
			Err:    fmt.Errorf("no usable rows (%d read)", stats.Rows),
		}
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	return NewTable(entries, now(), src.Name()), stats, nil
}

func cutoff(v *string) (int, bool) {
	f := normalize.ParseFloat(v)
	if f == nil || *f < 0 || *f > math.MaxInt32 {
		return 0, false
	}
	return int(math.Round(*f)), true
}
