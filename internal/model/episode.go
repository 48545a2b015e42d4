package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Episode is a validated, classified and billed discharge record.
type Episode struct {
	ID         int64
	ExternalID string
	Facility   string
	PatientID  int64
	NationalID string
	Name       *string
	Age        *int
	Sex        *string

	Code           string
	NormCode       *string // set only when Code resolved in the norm table
	DeclaredWeight *float64

	Admission    *time.Time
	Discharge    *time.Time
	LengthOfStay *int
	Tag          *Tag

	Technology       bool
	TechnologyDetail *string
	TechnologyAmount decimal.Decimal

	NewbornStatus *string
	NewbornAmount decimal.Decimal

	RescueDelayDays        *int
	DemoraRescatePremium   decimal.Decimal
	OutlierSuperiorPremium decimal.Decimal

	BaseTariff  decimal.Decimal
	FinalAmount decimal.Decimal

	Diagnosis *string
	Insurer   *string
	Service   *string

	Validated     *bool
	ReviewStatus  *string
	ReviewComment *string
	ReviewedAt    *time.Time
	ReviewedBy    *string

	BatchID   uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so callers can stage changes without touching
// the original.
func (e *Episode) Clone() *Episode {
	c := *e
	c.Name = clonePtr(e.Name)
	c.Age = clonePtr(e.Age)
	c.Sex = clonePtr(e.Sex)
	c.NormCode = clonePtr(e.NormCode)
	c.DeclaredWeight = clonePtr(e.DeclaredWeight)
	c.Admission = clonePtr(e.Admission)
	c.Discharge = clonePtr(e.Discharge)
	c.LengthOfStay = clonePtr(e.LengthOfStay)
	c.Tag = clonePtr(e.Tag)
	c.TechnologyDetail = clonePtr(e.TechnologyDetail)
	c.NewbornStatus = clonePtr(e.NewbornStatus)
	c.RescueDelayDays = clonePtr(e.RescueDelayDays)
	c.Diagnosis = clonePtr(e.Diagnosis)
	c.Insurer = clonePtr(e.Insurer)
	c.Service = clonePtr(e.Service)
	c.Validated = clonePtr(e.Validated)
	c.ReviewStatus = clonePtr(e.ReviewStatus)
	c.ReviewComment = clonePtr(e.ReviewComment)
	c.ReviewedAt = clonePtr(e.ReviewedAt)
	c.ReviewedBy = clonePtr(e.ReviewedBy)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// episodeJSON is the external wire form. Keys double as the field tokens
// used by update requests.
type episodeJSON struct {
	ID            int64      `json:"id"`
	ExternalID    string     `json:"episodio"`
	Facility      string     `json:"centro"`
	NationalID    string     `json:"rut"`
	Name          *string    `json:"nombre"`
	Age           *int       `json:"edad"`
	Sex           *string    `json:"sexo"`
	Code          string     `json:"grd"`
	Weight        *float64   `json:"pesoGrd"`
	Admission     *time.Time `json:"fechaIngreso"`
	Discharge     *time.Time `json:"fechaAlta"`
	LengthOfStay  *int       `json:"diasEstada"`
	Diagnosis     *string    `json:"diagnostico"`
	Insurer       *string    `json:"prevision"`
	Service       *string    `json:"servicio"`
	BatchID       string     `json:"loteId"`
	CreatedAt     time.Time  `json:"creadoEn"`
	UpdatedAt     time.Time  `json:"actualizadoEn"`

	Tag                    *Tag        `json:"inlierOutlier"`
	Technology             string      `json:"at"`
	TechnologyDetail       *string     `json:"atDetalle"`
	TechnologyAmount       json.Number `json:"montoAT"`
	NewbornStatus          *string     `json:"estadoRN"`
	NewbornAmount          json.Number `json:"montoRN"`
	RescueDelayDays        *int        `json:"diasDemoraRescate"`
	DemoraRescatePremium   json.Number `json:"pagoDemoraRescate"`
	OutlierSuperiorPremium json.Number `json:"pagoOutlierSuperior"`
	BaseTariff             json.Number `json:"tarifaBase"`
	FinalAmount            json.Number `json:"montoFinal"`

	Validated     *bool      `json:"validado"`
	ReviewStatus  *string    `json:"estadoRevision"`
	ReviewComment *string    `json:"comentarioRevision"`
	ReviewedAt    *time.Time `json:"fechaRevision"`
	ReviewedBy    *string    `json:"revisadoPor"`
}

// MarshalJSON encodes the technology flag as "S"/"N", money as numbers with
// two fraction digits and an empty review status as null.
func (e Episode) MarshalJSON() ([]byte, error) {
	w := episodeJSON{
		ID:                     e.ID,
		ExternalID:             e.ExternalID,
		Facility:               e.Facility,
		NationalID:             e.NationalID,
		Name:                   e.Name,
		Age:                    e.Age,
		Sex:                    e.Sex,
		Code:                   e.Code,
		Weight:                 e.DeclaredWeight,
		Admission:              e.Admission,
		Discharge:              e.Discharge,
		LengthOfStay:           e.LengthOfStay,
		Diagnosis:              e.Diagnosis,
		Insurer:                e.Insurer,
		Service:                e.Service,
		CreatedAt:              e.CreatedAt,
		UpdatedAt:              e.UpdatedAt,
		Tag:                    e.Tag,
		Technology:             YesNo(e.Technology),
		TechnologyDetail:       e.TechnologyDetail,
		TechnologyAmount:       MoneyNumber(e.TechnologyAmount),
		NewbornStatus:          e.NewbornStatus,
		NewbornAmount:          MoneyNumber(e.NewbornAmount),
		RescueDelayDays:        e.RescueDelayDays,
		DemoraRescatePremium:   MoneyNumber(e.DemoraRescatePremium),
		OutlierSuperiorPremium: MoneyNumber(e.OutlierSuperiorPremium),
		BaseTariff:             MoneyNumber(e.BaseTariff),
		FinalAmount:            MoneyNumber(e.FinalAmount),
		Validated:              e.Validated,
		ReviewComment:          e.ReviewComment,
		ReviewedAt:             e.ReviewedAt,
		ReviewedBy:             e.ReviewedBy,
	}
	if e.BatchID != uuid.Nil {
		w.BatchID = e.BatchID.String()
	}
	if e.ReviewStatus != nil && *e.ReviewStatus != "" {
		w.ReviewStatus = e.ReviewStatus
	}
	return json.Marshal(w)
}

// YesNo renders a boolean as the two-letter code used by the hospital's
// spreadsheets.
func YesNo(b bool) string {
	if b {
		return "S"
	}
	return "N"
}

// MoneyNumber renders d rounded to two fraction digits as a JSON number.
func MoneyNumber(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
