package normalize

import (
	"strings"

	"github.com/gyeh/grdload/internal/model"
)

// Columns maps each episode attribute to its header in the source sheet.
type Columns struct {
	ExternalID       string `yaml:"episode"`
	Facility         string `yaml:"facility"`
	NationalID       string `yaml:"national_id"`
	Name             string `yaml:"name"`
	Age              string `yaml:"age"`
	Sex              string `yaml:"sex"`
	Code             string `yaml:"code"`
	Weight           string `yaml:"weight"`
	Admission        string `yaml:"admission"`
	Discharge        string `yaml:"discharge"`
	LengthOfStay     string `yaml:"length_of_stay"`
	Technology       string `yaml:"technology"`
	TechnologyDetail string `yaml:"technology_detail"`
	TechnologyAmount string `yaml:"technology_amount"`
	NewbornStatus    string `yaml:"newborn_status"`
	NewbornAmount    string `yaml:"newborn_amount"`
	RescueDelayDays  string `yaml:"rescue_delay_days"`
	DemoraRescate    string `yaml:"demora_rescate_amount"`
	OutlierSuperior  string `yaml:"outlier_superior_amount"`
	Diagnosis        string `yaml:"diagnosis"`
	Insurer          string `yaml:"insurer"`
	Service          string `yaml:"service"`
}

// DefaultColumns returns the headers of the hospital's discharge export.
func DefaultColumns() Columns {
	return Columns{
		ExternalID:       "Episodio",
		Facility:         "Centro",
		NationalID:       "RUT",
		Name:             "Nombre",
		Age:              "Edad",
		Sex:              "Sexo",
		Code:             "IR-GRD",
		Weight:           "Peso GRD",
		Admission:        "Fecha Ingreso",
		Discharge:        "Fecha Alta",
		LengthOfStay:     "Días Estada",
		Technology:       "AT (S/N)",
		TechnologyDetail: "AT Detalle",
		TechnologyAmount: "Monto AT",
		NewbornStatus:    "Estado RN",
		NewbornAmount:    "Monto RN",
		RescueDelayDays:  "Días Demora Rescate",
		DemoraRescate:    "Pago Demora Rescate",
		OutlierSuperior:  "Pago Outlier Superior",
		Diagnosis:        "Diagnóstico",
		Insurer:          "Previsión",
		Service:          "Servicio",
	}
}

// Required returns the headers a file must carry for rows to be valid.
func (c Columns) Required() []string {
	return []string{c.ExternalID, c.Facility, c.NationalID, c.Code, c.Admission, c.Discharge}
}

// All returns every mapped header.
func (c Columns) All() []string {
	return []string{
		c.ExternalID, c.Facility, c.NationalID, c.Name, c.Age, c.Sex,
		c.Code, c.Weight, c.Admission, c.Discharge, c.LengthOfStay,
		c.Technology, c.TechnologyDetail, c.TechnologyAmount,
		c.NewbornStatus, c.NewbornAmount, c.RescueDelayDays,
		c.DemoraRescate, c.OutlierSuperior, c.Diagnosis, c.Insurer, c.Service,
	}
}

// ToCandidate converts one raw row into an EpisodeCandidate. It never fails:
// values that cannot be interpreted are left absent for the validator.
func ToCandidate(row model.RawRow, rowNum int, cols Columns) *model.EpisodeCandidate {
	get := func(header string) *string {
		if header == "" {
			return nil
		}
		v, ok := row[header]
		if !ok {
			return nil
		}
		return Clean(&v)
	}

	c := &model.EpisodeCandidate{
		Row:        rowNum,
		ExternalID: get(cols.ExternalID),
		Facility:   get(cols.Facility),
		Name:       get(cols.Name),
		Age:        ParseInt(get(cols.Age)),
		Sex:        upper(get(cols.Sex)),

		Code:           NormalizeCode(get(cols.Code)),
		DeclaredWeight: ParseFloat(get(cols.Weight)),

		AdmissionRaw: get(cols.Admission),
		DischargeRaw: get(cols.Discharge),

		DeclaredLOS: ParseInt(get(cols.LengthOfStay)),

		TechnologyDetail: get(cols.TechnologyDetail),
		TechnologyAmount: ParseAmount(get(cols.TechnologyAmount)),

		NewbornStatus: get(cols.NewbornStatus),
		NewbornAmount: ParseAmount(get(cols.NewbornAmount)),

		RescueDelayDays:       ParseInt(get(cols.RescueDelayDays)),
		DemoraRescateAmount:   ParseAmount(get(cols.DemoraRescate)),
		OutlierSuperiorAmount: ParseAmount(get(cols.OutlierSuperior)),

		Diagnosis: get(cols.Diagnosis),
		Insurer:   get(cols.Insurer),
		Service:   get(cols.Service),

		Raw: row,
	}

	c.Admission = ParseDate(c.AdmissionRaw)
	c.Discharge = ParseDate(c.DischargeRaw)

	if id := NationalID(get(cols.NationalID)); id != nil {
		if IsPlaceholderID(*id) {
			unknown := model.UnknownNationalID
			id = &unknown
		}
		c.NationalID = id
	}

	// A blank technology flag means no technology adjustment was billed.
	if b := ParseBool(get(cols.Technology)); b != nil {
		c.Technology = *b
	}

	return c
}

func upper(v *string) *string {
	if v == nil {
		return nil
	}
	u := strings.ToUpper(*v)
	return &u
}
