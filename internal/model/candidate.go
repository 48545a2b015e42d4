package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawRow is one source row keyed by column header.
type RawRow map[string]string

// EpisodeCandidate is the normalized, not yet validated form of one input
// row. Absent values are nil.
type EpisodeCandidate struct {
	Row int // spreadsheet row number (header is row 1)

	ExternalID *string
	Facility   *string
	NationalID *string
	Name       *string
	Age        *int
	Sex        *string

	Code           *string
	DeclaredWeight *float64

	// Raw date text is kept so the validator can tell "absent" from
	// "present but unparseable".
	AdmissionRaw *string
	DischargeRaw *string
	Admission    *time.Time
	Discharge    *time.Time

	DeclaredLOS *int

	Technology       bool
	TechnologyDetail *string
	TechnologyAmount *decimal.Decimal

	NewbornStatus *string
	NewbornAmount *decimal.Decimal

	RescueDelayDays       *int
	DemoraRescateAmount   *decimal.Decimal
	OutlierSuperiorAmount *decimal.Decimal

	Diagnosis *string
	Insurer   *string
	Service   *string

	Raw RawRow
}
