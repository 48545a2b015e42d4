package update

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gyeh/grdload/internal/authz"
	"github.com/gyeh/grdload/internal/memstore"
	"github.com/gyeh/grdload/internal/model"
	"github.com/gyeh/grdload/internal/norms"
)

type staticNorms struct{ table *norms.Table }

func (s staticNorms) Current(ctx context.Context) (*norms.Table, error) {
	if s.table == nil {
		return nil, errors.New("never loaded")
	}
	return s.table, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

var fixedNow = time.Date(2024, 5, 2, 15, 0, 0, 0, time.UTC)

func opts() Options {
	return Options{Now: func() time.Time { return fixedNow }}
}

func g1() *norms.Table {
	p50 := dec("20000")
	p75 := dec("30000")
	return norms.NewTable([]model.NormEntry{{
		Code: "G1", LowerCutoff: 2, UpperCutoff: 8,
		BaseTariff: dec("1000000"), P50: &p50, P75: &p75,
	}}, fixedNow, "test")
}

func seed(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New()
	tag := model.TagInlier
	e := &model.Episode{
		ExternalID:   "E1",
		Facility:     "HC",
		NationalID:   "1-9",
		Code:         "G1",
		NormCode:     strPtr("G1"),
		LengthOfStay: intPtr(5),
		Tag:          &tag,
		BaseTariff:   dec("1000000"),
		FinalAmount:  dec("1000000"),
	}
	if err := s.InsertEpisode(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	return s
}

func stored(t *testing.T, s *memstore.Store) *model.Episode {
	t.Helper()
	e, err := s.GetEpisode(context.Background(), "E1")
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestApply_FinanceOnManagementFieldForbidden(t *testing.T) {
	s := seed(t)
	_, err := Apply(context.Background(), s, staticNorms{g1()}, Request{
		Role: "finance", EpisodeID: "E1", Fields: map[string]any{"validado": true},
	}, opts())
	if !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
	var fe *authz.ForbiddenError
	if !errors.As(err, &fe) || fe.Partition != authz.PartitionManagement {
		t.Errorf("forbidden error = %+v", err)
	}
	if stored(t, s).Validated != nil {
		t.Error("episode changed despite rejection")
	}

	got, err := Apply(context.Background(), s, staticNorms{g1()}, Request{
		Role: "admin", Actor: "root", EpisodeID: "E1", Fields: map[string]any{"validado": true},
	}, opts())
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if got.Validated == nil || !*got.Validated {
		t.Errorf("Validated = %v", got.Validated)
	}
}

func TestApply_MixedPartitionsAppliesNothing(t *testing.T) {
	s := seed(t)
	_, err := Apply(context.Background(), s, staticNorms{g1()}, Request{
		Role: "finance", EpisodeID: "E1",
		Fields: map[string]any{"estadoRN": "Aprobado", "validado": true},
	}, opts())
	if !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("err = %v, want forbidden", err)
	}
	e := stored(t, s)
	if e.NewbornStatus != nil || e.Validated != nil {
		t.Errorf("fields applied: estadoRN=%v validado=%v", e.NewbornStatus, e.Validated)
	}
}

func TestApply_TokenChecks(t *testing.T) {
	s := seed(t)
	tests := []struct {
		field string
		want  error
	}{
		{"nope", ErrUnknownField},
		{"rut", ErrImmutableField},
		{"diasEstada", ErrImmutableField},
		{"montoFinal", ErrDerivedField},
		{"tarifaBase", ErrDerivedField},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			_, err := Apply(context.Background(), s, staticNorms{g1()}, Request{
				Role: "admin", EpisodeID: "E1", Fields: map[string]any{tt.field: "1"},
			}, opts())
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			var fe *FieldError
			if !errors.As(err, &fe) || fe.Field != tt.field {
				t.Errorf("FieldError = %+v", fe)
			}
		})
	}
}

func TestApply_InvalidValueRejectsWholeRequest(t *testing.T) {
	s := seed(t)
	_, err := Apply(context.Background(), s, staticNorms{g1()}, Request{
		Role: "finance", EpisodeID: "E1",
		Fields: map[string]any{"montoRN": "1500", "diasDemoraRescate": "dos"},
	}, opts())
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("err = %v, want ErrInvalidValue", err)
	}
	if !stored(t, s).NewbornAmount.IsZero() {
		t.Error("montoRN applied despite rejection")
	}
}

func TestApply_RecomputesBilling(t *testing.T) {
	s := seed(t)
	got, err := Apply(context.Background(), s, staticNorms{g1()}, Request{
		Role: "Finanzas", EpisodeID: "E1",
		Fields: map[string]any{
			"at":                "S",
			"montoAT":           "25.000",
			"atDetalle":         "Stent",
			"montoRN":           float64(700),
			"diasDemoraRescate": "2",
		},
	}, opts())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	// 1,000,000 + 25,000 + 700 + 2 * 30,000
	if !got.FinalAmount.Equal(dec("1085700")) {
		t.Errorf("FinalAmount = %s, want 1085700", got.FinalAmount)
	}
	if !stored(t, s).FinalAmount.Equal(dec("1085700")) {
		t.Errorf("stored FinalAmount = %s", stored(t, s).FinalAmount)
	}

	got, err = Apply(context.Background(), s, staticNorms{g1()}, Request{
		Role: "finance", EpisodeID: "E1", Fields: map[string]any{"at": "N"},
	}, opts())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !got.TechnologyAmount.IsZero() || got.TechnologyDetail != nil {
		t.Errorf("technology not cleared: %s %v", got.TechnologyAmount, got.TechnologyDetail)
	}
	if !got.FinalAmount.Equal(dec("1060700")) {
		t.Errorf("FinalAmount = %s, want 1060700", got.FinalAmount)
	}
}

func TestApply_NoNormKeepsStoredTariff(t *testing.T) {
	s := seed(t)
	got, err := Apply(context.Background(), s, staticNorms{}, Request{
		Role: "finance", EpisodeID: "E1", Fields: map[string]any{"montoRN": "100"},
	}, opts())
	if err != nil {
		t.Fatal(err)
	}
	if !got.BaseTariff.Equal(dec("1000000")) || !got.FinalAmount.Equal(dec("1000100")) {
		t.Errorf("tariff=%s final=%s", got.BaseTariff, got.FinalAmount)
	}
}

func TestApply_StampsReview(t *testing.T) {
	s := seed(t)
	got, err := Apply(context.Background(), s, staticNorms{g1()}, Request{
		Role: "gestión", Actor: "maria", EpisodeID: "E1",
		Fields: map[string]any{"validado": "si", "estadoRevision": ""},
	}, opts())
	if err != nil {
		t.Fatal(err)
	}
	if got.ReviewedAt == nil || !got.ReviewedAt.Equal(fixedNow) {
		t.Errorf("ReviewedAt = %v", got.ReviewedAt)
	}
	if got.ReviewedBy == nil || *got.ReviewedBy != "maria" {
		t.Errorf("ReviewedBy = %v", got.ReviewedBy)
	}
	if got.ReviewStatus != nil {
		t.Errorf("ReviewStatus = %q, want nil", *got.ReviewStatus)
	}

	got, err = Apply(context.Background(), s, staticNorms{g1()}, Request{
		Role: "management", Actor: "otro", EpisodeID: "E1",
		Fields: map[string]any{"comentarioRevision": "revisado"},
	}, opts())
	if err != nil {
		t.Fatal(err)
	}
	if *got.ReviewedBy != "maria" {
		t.Errorf("reviewer restamped without a validado change: %q", *got.ReviewedBy)
	}
}

func TestApply_MissingEpisode(t *testing.T) {
	s := seed(t)
	_, err := Apply(context.Background(), s, staticNorms{g1()}, Request{
		Role: "management", EpisodeID: "E404", Fields: map[string]any{"validado": true},
	}, opts())
	if !errors.Is(err, model.ErrEpisodeNotFound) {
		t.Errorf("err = %v, want ErrEpisodeNotFound", err)
	}
}

func TestApply_Empty(t *testing.T) {
	s := seed(t)
	if _, err := Apply(context.Background(), s, nil, Request{Role: "finance", EpisodeID: "E1"}, opts()); !errors.Is(err, authz.ErrForbidden) {
		t.Errorf("finance empty = %v, want forbidden", err)
	}
	if _, err := Apply(context.Background(), s, nil, Request{Role: "admin", EpisodeID: "E1"}, opts()); !errors.Is(err, ErrEmptyUpdate) {
		t.Errorf("admin empty = %v, want ErrEmptyUpdate", err)
	}
}

func apply(t *testing.T, s *memstore.Store, fields map[string]any) *model.Episode {
	t.Helper()
	got, err := Apply(context.Background(), s, staticNorms{g1()}, Request{
		Role: "finance", EpisodeID: "E1", Fields: fields,
	}, opts())
	if err != nil {
		t.Fatalf("Apply(%v): %v", fields, err)
	}
	return got
}

func TestApply_ClearingDelayDropsDemoraPremium(t *testing.T) {
	s := seed(t)
	got := apply(t, s, map[string]any{"diasDemoraRescate": "2"})
	if !got.DemoraRescatePremium.Equal(dec("60000")) || !got.FinalAmount.Equal(dec("1060000")) {
		t.Fatalf("demora=%s final=%s, want 60000 / 1060000", got.DemoraRescatePremium, got.FinalAmount)
	}

	got = apply(t, s, map[string]any{"diasDemoraRescate": nil})
	if got.RescueDelayDays != nil {
		t.Errorf("RescueDelayDays = %d, want nil", *got.RescueDelayDays)
	}
	if !got.DemoraRescatePremium.IsZero() || !got.FinalAmount.Equal(dec("1000000")) {
		t.Errorf("demora=%s final=%s, want 0 / 1000000", got.DemoraRescatePremium, got.FinalAmount)
	}
	if !stored(t, s).FinalAmount.Equal(dec("1000000")) {
		t.Errorf("stored FinalAmount = %s", stored(t, s).FinalAmount)
	}
}

func TestApply_RetagDropsOutlierPremium(t *testing.T) {
	s := memstore.New()
	tag := model.TagOutlierSuperior
	e := &model.Episode{
		ExternalID:             "E1",
		Facility:               "HC",
		NationalID:             "1-9",
		Code:                   "G1",
		NormCode:               strPtr("G1"),
		LengthOfStay:           intPtr(10),
		Tag:                    &tag,
		BaseTariff:             dec("1000000"),
		OutlierSuperiorPremium: dec("40000"),
		FinalAmount:            dec("1040000"),
	}
	if err := s.InsertEpisode(context.Background(), e); err != nil {
		t.Fatal(err)
	}

	// Recomputing an unchanged outlier keeps the derived premium.
	got := apply(t, s, map[string]any{"estadoRN": "Aprobado"})
	if !got.OutlierSuperiorPremium.Equal(dec("40000")) || !got.FinalAmount.Equal(dec("1040000")) {
		t.Fatalf("premium=%s final=%s, want 40000 / 1040000", got.OutlierSuperiorPremium, got.FinalAmount)
	}

	got = apply(t, s, map[string]any{"inlierOutlier": "inlier"})
	if !got.OutlierSuperiorPremium.IsZero() || !got.FinalAmount.Equal(dec("1000000")) {
		t.Errorf("premium=%s final=%s, want 0 / 1000000", got.OutlierSuperiorPremium, got.FinalAmount)
	}
}

func TestApply_PremiumWithMarkerIsDerived(t *testing.T) {
	s := seed(t)
	for _, field := range []string{"pagoOutlierSuperior", "pagoDemoraRescate"} {
		t.Run(field, func(t *testing.T) {
			_, err := Apply(context.Background(), s, staticNorms{g1()}, Request{
				Role: "finance", EpisodeID: "E1",
				Fields: map[string]any{field: "50000", "montoRN": "100"},
			}, opts())
			if !errors.Is(err, ErrDerivedField) {
				t.Fatalf("err = %v, want ErrDerivedField", err)
			}
			var fe *FieldError
			if !errors.As(err, &fe) || fe.Field != field {
				t.Errorf("FieldError = %+v", fe)
			}
			if !stored(t, s).NewbornAmount.IsZero() {
				t.Error("montoRN applied despite rejection")
			}
		})
	}
}

func TestApply_ManualPremiumWithoutMarker(t *testing.T) {
	s := seed(t)
	bare := norms.NewTable([]model.NormEntry{{
		Code: "G1", LowerCutoff: 2, UpperCutoff: 8, BaseTariff: dec("1000000"),
	}}, fixedNow, "test")
	got, err := Apply(context.Background(), s, staticNorms{bare}, Request{
		Role: "finance", EpisodeID: "E1",
		Fields: map[string]any{"pagoDemoraRescate": "45000", "diasDemoraRescate": "3"},
	}, opts())
	if err != nil {
		t.Fatal(err)
	}
	if !got.DemoraRescatePremium.Equal(dec("45000")) || !got.FinalAmount.Equal(dec("1045000")) {
		t.Errorf("demora=%s final=%s, want 45000 / 1045000", got.DemoraRescatePremium, got.FinalAmount)
	}
}

func TestApply_LogsUnavailableNorm(t *testing.T) {
	s := seed(t)
	var buf bytes.Buffer
	o := opts()
	o.Log = zerolog.New(&buf)
	if _, err := Apply(context.Background(), s, staticNorms{}, Request{
		Role: "finance", EpisodeID: "E1", Fields: map[string]any{"montoRN": "100"},
	}, o); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "norm table unavailable") || !strings.Contains(out, "never loaded") {
		t.Errorf("log = %q", out)
	}
}
