package ingest

import (
	"context"

	"github.com/patrickmn/go-cache"

	"github.com/gyeh/grdload/internal/model"
)

// patientResolver finds or creates the patient of each candidate, memoizing
// ids so repeat patients in a batch cost one store round trip.
type patientResolver struct {
	store Store
	memo  *cache.Cache
}

func newPatientResolver(store Store, memo *cache.Cache) *patientResolver {
	return &patientResolver{store: store, memo: memo}
}

func (r *patientResolver) resolve(ctx context.Context, c *model.EpisodeCandidate) (int64, error) {
	key := *c.NationalID
	if v, ok := r.memo.Get(key); ok {
		return v.(int64), nil
	}
	id, err := r.store.FindOrCreatePatient(ctx, model.Patient{
		NationalID: key,
		Name:       c.Name,
		Age:        c.Age,
		Sex:        c.Sex,
	})
	if err != nil {
		return 0, err
	}
	r.memo.Set(key, id, cache.DefaultExpiration)
	return id, nil
}
