package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/gyeh/grdload/internal/model"
)

// Kind distinguishes bad data from rows that were already loaded.
type Kind int

const (
	KindRejected Kind = iota + 1
	KindDuplicate
)

func (k Kind) String() string {
	switch k {
	case KindRejected:
		return "rejected"
	case KindDuplicate:
		return "duplicate"
	}
	return "unknown"
}

// Accepted ranges.
const (
	MinAge    = 0
	MaxAge    = 120
	MinWeight = 0.3
	MaxWeight = 300.0
)

// Rejection explains why a candidate cannot become an episode.
type Rejection struct {
	Kind    Kind
	Reason  string
	Missing []string // required fields that were absent, in check order
}

func (r *Rejection) Error() string { return r.Reason }

// ExistenceChecker reports whether an episode is already persisted.
type ExistenceChecker interface {
	EpisodeExists(ctx context.Context, externalID string) (bool, error)
}

// Validator checks candidates of one batch. It remembers accepted external
// ids so repeats inside the batch are caught even before they reach the store.
type Validator struct {
	store ExistenceChecker
	seen  map[string]int
}

// New returns a Validator backed by store.
func New(store ExistenceChecker) *Validator {
	return &Validator{store: store, seen: make(map[string]int)}
}

// Accept records that the episode of row was persisted.
func (v *Validator) Accept(externalID string, row int) {
	v.seen[externalID] = row
}

// Validate runs the checks in order: required fields, duplicates, dates,
// ranges. It returns nil when the candidate passes. Date and range problems
// are reported together.
func (v *Validator) Validate(ctx context.Context, c *model.EpisodeCandidate) *Rejection {
	if missing := MissingFields(c); len(missing) > 0 {
		return &Rejection{
			Kind:    KindRejected,
			Reason:  "missing required fields: " + strings.Join(missing, ", "),
			Missing: missing,
		}
	}

	id := *c.ExternalID
	if row, ok := v.seen[id]; ok {
		return &Rejection{
			Kind:   KindDuplicate,
			Reason: fmt.Sprintf("duplicate episode %s (already in this batch at row %d)", id, row),
		}
	}
	if v.store != nil {
		exists, err := v.store.EpisodeExists(ctx, id)
		if err != nil {
			return &Rejection{Kind: KindRejected, Reason: fmt.Sprintf("check duplicate episode %s: %s", id, err)}
		}
		if exists {
			return &Rejection{Kind: KindDuplicate, Reason: fmt.Sprintf("duplicate episode %s (already loaded)", id)}
		}
	}

	var problems []string
	problems = append(problems, dateProblems(c)...)
	problems = append(problems, rangeProblems(c)...)
	if len(problems) > 0 {
		return &Rejection{Kind: KindRejected, Reason: strings.Join(problems, "; ")}
	}
	return nil
}

// MissingFields lists the absent required fields by their episode field name.
func MissingFields(c *model.EpisodeCandidate) []string {
	var missing []string
	if c.ExternalID == nil {
		missing = append(missing, "episodio")
	}
	if c.Facility == nil {
		missing = append(missing, "centro")
	}
	if c.NationalID == nil {
		missing = append(missing, "rut")
	}
	if c.Code == nil {
		missing = append(missing, "grd")
	}
	return missing
}

func dateProblems(c *model.EpisodeCandidate) []string {
	var problems []string
	if c.AdmissionRaw != nil && c.Admission == nil {
		problems = append(problems, fmt.Sprintf("invalid admission date %q", *c.AdmissionRaw))
	}
	if c.DischargeRaw != nil && c.Discharge == nil {
		problems = append(problems, fmt.Sprintf("invalid discharge date %q", *c.DischargeRaw))
	}
	if c.Admission != nil && c.Discharge != nil && c.Discharge.Before(*c.Admission) {
		problems = append(problems, fmt.Sprintf("discharge %s precedes admission %s",
			c.Discharge.Format("2006-01-02"), c.Admission.Format("2006-01-02")))
	}
	return problems
}

func rangeProblems(c *model.EpisodeCandidate) []string {
	var problems []string
	if c.Age != nil && (*c.Age < MinAge || *c.Age > MaxAge) {
		problems = append(problems, fmt.Sprintf("age %d outside [%d, %d]", *c.Age, MinAge, MaxAge))
	}
	if w := c.DeclaredWeight; w != nil && (*w < MinWeight || *w > MaxWeight) {
		problems = append(problems, fmt.Sprintf("relative weight %g outside [%g, %g]", *w, MinWeight, MaxWeight))
	}
	if d := c.RescueDelayDays; d != nil && *d < 0 {
		problems = append(problems, fmt.Sprintf("rescue delay days %d is negative", *d))
	}
	return problems
}
