package classify

import (
	"fmt"
	"math"
	"time"

	"github.com/gyeh/grdload/internal/model"
)

const day = 24 * time.Hour

// Result is the classification of one episode.
type Result struct {
	LengthOfStay *int
	Tag          *model.Tag
	Warnings     []string
}

// LengthOfStay returns the declared stay when present and non-negative,
// otherwise the whole days between admission and discharge, or nil when
// neither is known.
func LengthOfStay(declared *int, admission, discharge *time.Time) *int {
	if declared != nil && *declared >= 0 {
		v := *declared
		return &v
	}
	if admission == nil || discharge == nil {
		return nil
	}
	days := int(math.Round(float64(discharge.Sub(*admission)) / float64(day)))
	if days < 0 {
		days = 0
	}
	return &days
}

// TagFor classifies los against the entry's inlier band.
func TagFor(los int, entry model.NormEntry) model.Tag {
	switch {
	case los < entry.LowerCutoff:
		return model.TagOutlierInferior
	case los > entry.UpperCutoff:
		return model.TagOutlierSuperior
	default:
		return model.TagInlier
	}
}

// Classify computes the stay and tag of c. entry is nil when the code is not
// in the norm; the episode is then left unclassified with a warning. An
// episode without a computable stay is left unclassified silently.
func Classify(c *model.EpisodeCandidate, entry *model.NormEntry) Result {
	var res Result
	res.LengthOfStay = LengthOfStay(c.DeclaredLOS, c.Admission, c.Discharge)
	if res.LengthOfStay == nil {
		return res
	}

	if entry == nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("episode %s: code not found in norm: %s", deref(c.ExternalID), deref(c.Code)))
		return res
	}

	tag := TagFor(*res.LengthOfStay, *entry)
	res.Tag = &tag

	// Finance fills the amount in a later update when the norm carries no
	// percentile to compute it from.
	if tag == model.TagOutlierSuperior && c.OutlierSuperiorAmount == nil && entry.P50 == nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("episode %s: missing outlier-superior amount (stay %d > pcs %d)",
			deref(c.ExternalID), *res.LengthOfStay, entry.UpperCutoff))
	}
	return res
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
