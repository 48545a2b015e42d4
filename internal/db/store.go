package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gyeh/grdload/internal/model"
	embedsql "github.com/gyeh/grdload/internal/sql"
)

const uniqueViolation = "23505"

// Store persists patients, episodes, norm entries and batch reports in
// Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// FindOrCreatePatient returns the id of the patient with p.NationalID,
// inserting it first when absent.
func (s *Store) FindOrCreatePatient(ctx context.Context, p model.Patient) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, embedsql.LookupPatient, p.NationalID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("lookup patient: %w", err)
	}

	err = s.pool.QueryRow(ctx, embedsql.InsertPatient, p.NationalID, p.Name, p.Age, p.Sex).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("insert patient: %w", err)
	}

	// Created concurrently between the lookup and the insert.
	if err2 := s.pool.QueryRow(ctx, embedsql.LookupPatient, p.NationalID).Scan(&id); err2 != nil {
		return 0, fmt.Errorf("resolve patient: insert=%w, lookup=%w", err, err2)
	}
	return id, nil
}

// EpisodeExists reports whether externalID is already stored.
func (s *Store) EpisodeExists(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, embedsql.EpisodeExists, externalID).Scan(&exists); err != nil {
		return false, fmt.Errorf("episode exists: %w", err)
	}
	return exists, nil
}

// InsertEpisode stores e and sets its ID and timestamps. A conflicting
// external id yields model.ErrDuplicateEpisode.
func (s *Store) InsertEpisode(ctx context.Context, e *model.Episode) error {
	var batchID *uuid.UUID
	if e.BatchID != uuid.Nil {
		batchID = &e.BatchID
	}
	err := s.pool.QueryRow(ctx, embedsql.InsertEpisode,
		e.ExternalID, e.Facility, e.PatientID, e.Code, e.NormCode, e.DeclaredWeight,
		e.Admission, e.Discharge, e.LengthOfStay, tagValue(e.Tag),
		e.Technology, e.TechnologyDetail, ToCents(e.TechnologyAmount),
		e.NewbornStatus, ToCents(e.NewbornAmount),
		e.RescueDelayDays, ToCents(e.DemoraRescatePremium), ToCents(e.OutlierSuperiorPremium),
		ToCents(e.BaseTariff), ToCents(e.FinalAmount),
		e.Diagnosis, e.Insurer, e.Service,
		e.Validated, e.ReviewStatus, e.ReviewComment, e.ReviewedAt, e.ReviewedBy,
		batchID,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "episodes_external_id_key") {
			return model.ErrDuplicateEpisode
		}
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}

// GetEpisode loads the episode with externalID.
func (s *Store) GetEpisode(ctx context.Context, externalID string) (*model.Episode, error) {
	var (
		e       model.Episode
		tag     *string
		batchID uuid.NullUUID

		techCents, newbornCents, demoraCents  int64
		outlierCents, tariffCents, finalCents int64
	)
	err := s.pool.QueryRow(ctx, embedsql.GetEpisode, externalID).Scan(
		&e.ID, &e.ExternalID, &e.Facility, &e.PatientID,
		&e.NationalID, &e.Name, &e.Age, &e.Sex,
		&e.Code, &e.NormCode, &e.DeclaredWeight,
		&e.Admission, &e.Discharge, &e.LengthOfStay, &tag,
		&e.Technology, &e.TechnologyDetail, &techCents,
		&e.NewbornStatus, &newbornCents,
		&e.RescueDelayDays, &demoraCents, &outlierCents,
		&tariffCents, &finalCents,
		&e.Diagnosis, &e.Insurer, &e.Service,
		&e.Validated, &e.ReviewStatus, &e.ReviewComment, &e.ReviewedAt, &e.ReviewedBy,
		&batchID, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrEpisodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}

	if tag != nil {
		t := model.Tag(*tag)
		e.Tag = &t
	}
	e.TechnologyAmount = FromCents(techCents)
	e.NewbornAmount = FromCents(newbornCents)
	e.DemoraRescatePremium = FromCents(demoraCents)
	e.OutlierSuperiorPremium = FromCents(outlierCents)
	e.BaseTariff = FromCents(tariffCents)
	e.FinalAmount = FromCents(finalCents)
	if batchID.Valid {
		e.BatchID = batchID.UUID
	}
	return &e, nil
}

// UpdateEpisode writes the mutable columns of e in one statement.
func (s *Store) UpdateEpisode(ctx context.Context, e *model.Episode) error {
	err := s.pool.QueryRow(ctx, embedsql.UpdateEpisode,
		e.ExternalID,
		tagValue(e.Tag),
		e.Technology, e.TechnologyDetail, ToCents(e.TechnologyAmount),
		e.NewbornStatus, ToCents(e.NewbornAmount),
		e.RescueDelayDays, ToCents(e.DemoraRescatePremium), ToCents(e.OutlierSuperiorPremium),
		ToCents(e.BaseTariff), ToCents(e.FinalAmount),
		e.Validated, e.ReviewStatus, e.ReviewComment, e.ReviewedAt, e.ReviewedBy,
	).Scan(&e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrEpisodeNotFound
	}
	if err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	return nil
}

// UpsertNorms COPYs entries into a temporary stage table and merges them
// into norm_entries keyed by code, all in one transaction.
func (s *Store) UpsertNorms(ctx context.Context, entries []model.NormEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin norm upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, embedsql.StageNorms); err != nil {
		return fmt.Errorf("create norm stage: %w", err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"norm_entries_stage"}, normStageColumns, NewNormSource(entries)); err != nil {
		return fmt.Errorf("copy norms: %w", err)
	}
	if _, err := tx.Exec(ctx, embedsql.UpsertNorms); err != nil {
		return fmt.Errorf("merge norms: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit norm upsert: %w", err)
	}
	return nil
}

// ListNorms returns every stored entry ordered by code.
func (s *Store) ListNorms(ctx context.Context) ([]model.NormEntry, error) {
	rows, err := s.pool.Query(ctx, embedsql.ListNorms)
	if err != nil {
		return nil, fmt.Errorf("list norms: %w", err)
	}
	defer rows.Close()

	var out []model.NormEntry
	for rows.Next() {
		var (
			e             model.NormEntry
			weight        float64
			tariff        int64
			p25, p50, p75 *int64
		)
		if err := rows.Scan(&e.Code, &weight, &e.LowerCutoff, &e.UpperCutoff, &tariff, &p25, &p50, &p75); err != nil {
			return nil, fmt.Errorf("scan norm: %w", err)
		}
		e.Weight = decimal.NewFromFloat(weight)
		e.BaseTariff = FromCents(tariff)
		e.P25 = fromCentsPtr(p25)
		e.P50 = fromCentsPtr(p50)
		e.P75 = fromCentsPtr(p75)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list norms: %w", err)
	}
	return out, nil
}

// SaveBatchReport records the batch summary with the full report as JSONB.
func (s *Store) SaveBatchReport(ctx context.Context, r *model.BatchReport, src model.BatchSource) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode batch report: %w", err)
	}
	_, err = s.pool.Exec(ctx, embedsql.InsertBatch,
		r.BatchID, nilIfEmpty(src.FileName), nilIfEmpty(src.SHA256),
		r.TotalRows, r.ValidRows, r.InvalidRows, r.Duplicates.Count,
		r.StartedAt, r.FinishedAt, body,
	)
	if err != nil {
		return fmt.Errorf("save batch report: %w", err)
	}
	return nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

func tagValue(t *model.Tag) *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
