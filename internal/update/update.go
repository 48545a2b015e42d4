// Package update applies authorized partial updates to stored episodes.
package update

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/grdload/internal/authz"
	"github.com/gyeh/grdload/internal/billing"
	"github.com/gyeh/grdload/internal/model"
	"github.com/gyeh/grdload/internal/norms"
)

var (
	ErrUnknownField   = errors.New("unknown field")
	ErrImmutableField = errors.New("field cannot be updated")
	ErrDerivedField   = errors.New("field is derived and cannot be written directly")
	ErrInvalidValue   = errors.New("invalid value")
	ErrEmptyUpdate    = errors.New("no fields to update")
)

// FieldError ties a rejection to the offending field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Store loads and saves episodes by external id.
type Store interface {
	GetEpisode(ctx context.Context, externalID string) (*model.Episode, error)
	UpdateEpisode(ctx context.Context, e *model.Episode) error
}

// TableProvider hands out the current norm table.
type TableProvider interface {
	Current(ctx context.Context) (*norms.Table, error)
}

// Request is one partial update of an episode.
type Request struct {
	Role      string
	Actor     string
	EpisodeID string
	Fields    map[string]any
}

// Options tune Apply.
type Options struct {
	Rates billing.Rates
	Now   func() time.Time
	Log   zerolog.Logger
}

// Apply checks, decodes and persists req. Either every field is applied or
// none is. Billing is recomputed after the fields are written.
func Apply(ctx context.Context, store Store, provider TableProvider, req Request, opts Options) (*model.Episode, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Rates.OutlierFactor.IsZero() && opts.Rates.DemoraFactor.IsZero() {
		opts.Rates = billing.DefaultRates()
	}

	fields := make([]string, 0, len(req.Fields))
	for f := range req.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, f := range fields {
		if err := checkToken(f); err != nil {
			return nil, &FieldError{Field: f, Err: err}
		}
	}

	if err := authz.Authorize(req.Role, fields); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrEmptyUpdate
	}

	current, err := store.GetEpisode(ctx, req.EpisodeID)
	if err != nil {
		return nil, fmt.Errorf("load episode %s: %w", req.EpisodeID, err)
	}

	next := current.Clone()
	for _, f := range fields {
		if err := setField(next, f, req.Fields[f]); err != nil {
			return nil, &FieldError{Field: f, Err: err}
		}
	}

	if _, ok := req.Fields[authz.FieldValidated]; ok && !sameBool(current.Validated, next.Validated) {
		now := opts.Now().UTC()
		if _, explicit := req.Fields[authz.FieldReviewedAt]; !explicit {
			next.ReviewedAt = &now
		}
		if _, explicit := req.Fields[authz.FieldReviewedBy]; !explicit && req.Actor != "" {
			actor := req.Actor
			next.ReviewedBy = &actor
		}
	}

	entry := normEntry(ctx, provider, current, opts.Log)
	if err := checkPremiums(fields, entry); err != nil {
		return nil, err
	}
	billing.Compute(billing.FromEpisode(next), entry, opts.Rates).ApplyTo(next)

	if err := store.UpdateEpisode(ctx, next); err != nil {
		return nil, fmt.Errorf("save episode %s: %w", req.EpisodeID, err)
	}
	return next, nil
}

func checkToken(field string) error {
	switch {
	case authz.IsDerived(field):
		return ErrDerivedField
	case authz.IsImmutable(field):
		return ErrImmutableField
	}
	if _, ok := authz.PartitionOf(field); !ok {
		return ErrUnknownField
	}
	return nil
}

// normEntry resolves the entry to bill against. Without a loaded table the
// stored base tariff is kept and premiums stay as entered.
func normEntry(ctx context.Context, provider TableProvider, e *model.Episode, log zerolog.Logger) *model.NormEntry {
	if e.NormCode == nil {
		return nil
	}
	var table *norms.Table
	if provider != nil {
		var err error
		table, err = provider.Current(ctx)
		if table == nil {
			log.Warn().Err(err).Str("episode", e.ExternalID).
				Msg("norm table unavailable; keeping stored tariff")
		}
	}
	if entry, ok := table.Lookup(*e.NormCode); ok {
		return &entry
	}
	return &model.NormEntry{Code: *e.NormCode, BaseTariff: e.BaseTariff}
}

// checkPremiums rejects a premium typed in for a code whose norm entry
// carries the percentile marker it is computed from.
func checkPremiums(fields []string, entry *model.NormEntry) error {
	if entry == nil {
		return nil
	}
	for _, f := range fields {
		switch {
		case f == authz.FieldOutlierSuperior && entry.P50 != nil:
			return &FieldError{Field: f, Err: fmt.Errorf("%w: computed from the p50 of %s", ErrDerivedField, entry.Code)}
		case f == authz.FieldDemoraRescate && entry.P75 != nil:
			return &FieldError{Field: f, Err: fmt.Errorf("%w: computed from the p75 of %s", ErrDerivedField, entry.Code)}
		}
	}
	return nil
}

func sameBool(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
