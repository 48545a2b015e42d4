package ingest

import (
	"github.com/gyeh/grdload/internal/billing"
	"github.com/gyeh/grdload/internal/classify"
	"github.com/gyeh/grdload/internal/model"
	"github.com/gyeh/grdload/internal/norms"
)

// BuildEpisode turns a validated candidate into a classified, billed
// episode. table is nil when no norm was ever loaded; classification is then
// skipped and no warnings are produced.
func BuildEpisode(c *model.EpisodeCandidate, patientID int64, table *norms.Table, rates billing.Rates) (*model.Episode, []string) {
	var (
		res   classify.Result
		entry *model.NormEntry
	)
	if table != nil {
		if e, ok := table.Lookup(*c.Code); ok {
			entry = &e
		}
		res = classify.Classify(c, entry)
	} else {
		res.LengthOfStay = classify.LengthOfStay(c.DeclaredLOS, c.Admission, c.Discharge)
	}

	ep := &model.Episode{
		ExternalID:      *c.ExternalID,
		Facility:        *c.Facility,
		PatientID:       patientID,
		NationalID:      *c.NationalID,
		Name:            c.Name,
		Age:             c.Age,
		Sex:             c.Sex,
		Code:            *c.Code,
		DeclaredWeight:  c.DeclaredWeight,
		Admission:       c.Admission,
		Discharge:       c.Discharge,
		LengthOfStay:    res.LengthOfStay,
		Tag:             res.Tag,
		Technology:      c.Technology,
		NewbornStatus:   c.NewbornStatus,
		RescueDelayDays: c.RescueDelayDays,
		Diagnosis:       c.Diagnosis,
		Insurer:         c.Insurer,
		Service:         c.Service,
	}
	if entry != nil {
		code := entry.Code
		ep.NormCode = &code
	}

	billing.Compute(billing.Input{
		Tag:              res.Tag,
		LengthOfStay:     res.LengthOfStay,
		Technology:       c.Technology,
		TechnologyDetail: c.TechnologyDetail,
		TechnologyAmount: c.TechnologyAmount,
		NewbornAmount:    c.NewbornAmount,
		RescueDelayDays:  c.RescueDelayDays,
		DemoraRescate:    c.DemoraRescateAmount,
		OutlierSuperior:  c.OutlierSuperiorAmount,
	}, entry, rates).ApplyTo(ep)

	return ep, res.Warnings
}
