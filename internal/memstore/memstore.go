// Package memstore is an in-memory store used by dry runs and tests. It
// mirrors the uniqueness rules of the Postgres schema.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gyeh/grdload/internal/model"
)

// Store holds patients, episodes, norm entries and batch reports in maps
// guarded by one mutex.
type Store struct {
	mu sync.Mutex

	patients       map[string]model.Patient  // by national id
	episodes       map[string]*model.Episode // by external id
	norms          map[string]model.NormEntry
	reports        []SavedReport
	nextPatientID  int64
	nextEpisodeID  int64
	failInsertWith error

	// Now stamps creadoEn/actualizadoEn. Defaults to time.Now.
	Now func() time.Time
}

// SavedReport is a persisted batch report with its source.
type SavedReport struct {
	Report *model.BatchReport
	Source model.BatchSource
}

// New returns an empty store.
func New() *Store {
	return &Store{
		patients: make(map[string]model.Patient),
		episodes: make(map[string]*model.Episode),
		norms:    make(map[string]model.NormEntry),
		Now:      time.Now,
	}
}

// FailInserts makes every subsequent InsertEpisode return err. Pass nil to
// restore normal behavior.
func (s *Store) FailInserts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failInsertWith = err
}

// FindOrCreatePatient returns the id of the patient with p.NationalID,
// creating it from p when absent. Existing patients are not overwritten.
func (s *Store) FindOrCreatePatient(_ context.Context, p model.Patient) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.patients[p.NationalID]; ok {
		return existing.ID, nil
	}
	s.nextPatientID++
	p.ID = s.nextPatientID
	s.patients[p.NationalID] = p
	return p.ID, nil
}

// EpisodeExists reports whether externalID is already stored.
func (s *Store) EpisodeExists(_ context.Context, externalID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.episodes[externalID]
	return ok, nil
}

// InsertEpisode stores a copy of e and sets its ID and timestamps.
func (s *Store) InsertEpisode(_ context.Context, e *model.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsertWith != nil {
		return s.failInsertWith
	}
	if _, ok := s.episodes[e.ExternalID]; ok {
		return model.ErrDuplicateEpisode
	}
	now := s.Now().UTC()
	s.nextEpisodeID++
	e.ID = s.nextEpisodeID
	e.CreatedAt = now
	e.UpdatedAt = now
	s.episodes[e.ExternalID] = e.Clone()
	return nil
}

// GetEpisode returns a copy of the stored episode.
func (s *Store) GetEpisode(_ context.Context, externalID string) (*model.Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.episodes[externalID]
	if !ok {
		return nil, model.ErrEpisodeNotFound
	}
	return e.Clone(), nil
}

// UpdateEpisode replaces the stored episode with the same external id.
func (s *Store) UpdateEpisode(_ context.Context, e *model.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.episodes[e.ExternalID]
	if !ok {
		return model.ErrEpisodeNotFound
	}
	c := e.Clone()
	c.ID = old.ID
	c.CreatedAt = old.CreatedAt
	c.UpdatedAt = s.Now().UTC()
	e.UpdatedAt = c.UpdatedAt
	s.episodes[e.ExternalID] = c
	return nil
}

// Episodes returns copies of all stored episodes ordered by ID.
func (s *Store) Episodes() []*model.Episode {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Episode, 0, len(s.episodes))
	for _, e := range s.episodes {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PatientCount returns the number of distinct patients.
func (s *Store) PatientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patients)
}

// UpsertNorms inserts or replaces entries keyed by code.
func (s *Store) UpsertNorms(_ context.Context, entries []model.NormEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.norms[e.Code] = e
	}
	return nil
}

// ListNorms returns every stored entry ordered by code.
func (s *Store) ListNorms(_ context.Context) ([]model.NormEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.NormEntry, 0, len(s.norms))
	for _, e := range s.norms {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// SaveBatchReport appends the report.
func (s *Store) SaveBatchReport(_ context.Context, r *model.BatchReport, src model.BatchSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, SavedReport{Report: r, Source: src})
	return nil
}

// Reports returns the saved batch reports in save order.
func (s *Store) Reports() []SavedReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SavedReport(nil), s.reports...)
}
