package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gyeh/grdload/internal/ingest"
	"github.com/gyeh/grdload/internal/model"
	"github.com/gyeh/grdload/internal/norms"
	"github.com/gyeh/grdload/internal/update"
)

var (
	_ ingest.Store       = (*Store)(nil)
	_ ingest.ReportSaver = (*Store)(nil)
	_ update.Store       = (*Store)(nil)
	_ norms.Persister    = (*Store)(nil)
)

func strPtr(s string) *string { return &s }

func TestFindOrCreatePatient(t *testing.T) {
	s := New()
	ctx := context.Background()

	id1, err := s.FindOrCreatePatient(ctx, model.Patient{NationalID: "1-9", Name: strPtr("Ana")})
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.FindOrCreatePatient(ctx, model.Patient{NationalID: "1-9", Name: strPtr("Otra")})
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("ids differ: %d vs %d", id1, id2)
	}
	id3, _ := s.FindOrCreatePatient(ctx, model.Patient{NationalID: "2-7"})
	if id3 == id1 {
		t.Error("distinct national ids share a patient")
	}
	if s.PatientCount() != 2 {
		t.Errorf("PatientCount = %d, want 2", s.PatientCount())
	}
}

func TestInsertEpisodeUnique(t *testing.T) {
	s := New()
	ctx := context.Background()
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return fixed }

	e := &model.Episode{ExternalID: "E1", Code: "X"}
	if err := s.InsertEpisode(ctx, e); err != nil {
		t.Fatal(err)
	}
	if e.ID == 0 || !e.CreatedAt.Equal(fixed) {
		t.Errorf("insert did not stamp episode: %+v", e)
	}
	err := s.InsertEpisode(ctx, &model.Episode{ExternalID: "E1"})
	if !errors.Is(err, model.ErrDuplicateEpisode) {
		t.Fatalf("second insert = %v, want ErrDuplicateEpisode", err)
	}
	ok, _ := s.EpisodeExists(ctx, "E1")
	if !ok {
		t.Error("EpisodeExists(E1) = false")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.InsertEpisode(ctx, &model.Episode{ExternalID: "E1", Diagnosis: strPtr("a")})

	got, err := s.GetEpisode(ctx, "E1")
	if err != nil {
		t.Fatal(err)
	}
	*got.Diagnosis = "changed"

	again, _ := s.GetEpisode(ctx, "E1")
	if *again.Diagnosis != "a" {
		t.Errorf("stored episode mutated through returned copy: %q", *again.Diagnosis)
	}
}

func TestUpdateEpisode(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.UpdateEpisode(ctx, &model.Episode{ExternalID: "missing"}); !errors.Is(err, model.ErrEpisodeNotFound) {
		t.Fatalf("update missing = %v", err)
	}
	e := &model.Episode{ExternalID: "E1"}
	_ = s.InsertEpisode(ctx, e)
	e.ReviewComment = strPtr("ok")
	if err := s.UpdateEpisode(ctx, e); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetEpisode(ctx, "E1")
	if got.ReviewComment == nil || *got.ReviewComment != "ok" {
		t.Errorf("ReviewComment = %v", got.ReviewComment)
	}
	if got.ID != e.ID {
		t.Errorf("ID changed: %d vs %d", got.ID, e.ID)
	}
}

func TestNormsUpsert(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.UpsertNorms(ctx, []model.NormEntry{{Code: "B", UpperCutoff: 5}, {Code: "A", UpperCutoff: 3}})
	_ = s.UpsertNorms(ctx, []model.NormEntry{{Code: "B", UpperCutoff: 9}})

	got, _ := s.ListNorms(ctx)
	if len(got) != 2 || got[0].Code != "A" || got[1].UpperCutoff != 9 {
		t.Errorf("ListNorms = %+v", got)
	}
}
