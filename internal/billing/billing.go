package billing

import (
	"github.com/shopspring/decimal"

	"github.com/gyeh/grdload/internal/model"
)

// Rates scale the percentile-driven premiums.
type Rates struct {
	// OutlierFactor multiplies excess days × p50 for the outlier-superior premium.
	OutlierFactor decimal.Decimal
	// DemoraFactor multiplies rescue-delay days × p75 for the demora-rescate premium.
	DemoraFactor decimal.Decimal
}

// DefaultRates pays one percentile marker per day.
func DefaultRates() Rates {
	return Rates{OutlierFactor: decimal.NewFromInt(1), DemoraFactor: decimal.NewFromInt(1)}
}

// Input carries the billing-relevant values of an episode. Supplied amounts
// are the values entered by hand; nil means none was entered.
type Input struct {
	Tag          *model.Tag
	LengthOfStay *int

	Technology       bool
	TechnologyDetail *string
	TechnologyAmount *decimal.Decimal

	NewbornAmount *decimal.Decimal

	RescueDelayDays *int
	DemoraRescate   *decimal.Decimal
	OutlierSuperior *decimal.Decimal
}

// Breakdown is the computed billing of an episode. All amounts carry two
// fraction digits.
type Breakdown struct {
	BaseTariff             decimal.Decimal
	TechnologyAmount       decimal.Decimal
	TechnologyDetail       *string
	NewbornAmount          decimal.Decimal
	OutlierSuperiorPremium decimal.Decimal
	DemoraRescatePremium   decimal.Decimal
	FinalAmount            decimal.Decimal
}

// Compute derives the billing components and their total. entry is nil when
// the episode's code is not in the norm; the tariff is then zero and premiums
// are the supplied amounts. Compute is deterministic.
func Compute(in Input, entry *model.NormEntry, rates Rates) Breakdown {
	var b Breakdown

	if entry != nil {
		b.BaseTariff = entry.BaseTariff
	}

	// Without the technology flag nothing is billed for it, whatever was typed.
	if in.Technology {
		b.TechnologyAmount = orZero(in.TechnologyAmount)
		b.TechnologyDetail = in.TechnologyDetail
	}

	b.NewbornAmount = orZero(in.NewbornAmount)

	// A premium whose percentile marker is in the norm is always derived, and
	// is zero when its condition does not hold. Supplied amounts only count
	// when the marker is missing.
	if entry != nil && entry.P50 != nil {
		if in.Tag != nil && *in.Tag == model.TagOutlierSuperior && in.LengthOfStay != nil {
			if excess := *in.LengthOfStay - entry.UpperCutoff; excess > 0 {
				b.OutlierSuperiorPremium = decimal.NewFromInt(int64(excess)).Mul(*entry.P50).Mul(rates.OutlierFactor)
			}
		}
	} else {
		b.OutlierSuperiorPremium = nonNegative(orZero(in.OutlierSuperior))
	}

	if entry != nil && entry.P75 != nil {
		if in.RescueDelayDays != nil && *in.RescueDelayDays >= 0 {
			b.DemoraRescatePremium = decimal.NewFromInt(int64(*in.RescueDelayDays)).Mul(*entry.P75).Mul(rates.DemoraFactor)
		}
	} else {
		b.DemoraRescatePremium = nonNegative(orZero(in.DemoraRescate))
	}

	b.BaseTariff = round(b.BaseTariff)
	b.TechnologyAmount = round(b.TechnologyAmount)
	b.NewbornAmount = round(b.NewbornAmount)
	b.OutlierSuperiorPremium = round(b.OutlierSuperiorPremium)
	b.DemoraRescatePremium = round(b.DemoraRescatePremium)
	b.FinalAmount = b.BaseTariff.
		Add(b.TechnologyAmount).
		Add(b.NewbornAmount).
		Add(b.OutlierSuperiorPremium).
		Add(b.DemoraRescatePremium)

	return b
}

// FromEpisode rebuilds the input of a stored episode. Its stored premiums
// become the supplied amounts, which Compute only honors for a premium whose
// percentile marker is missing from the norm.
func FromEpisode(e *model.Episode) Input {
	tech := e.TechnologyAmount
	newborn := e.NewbornAmount
	demora := e.DemoraRescatePremium
	outlier := e.OutlierSuperiorPremium
	return Input{
		Tag:              e.Tag,
		LengthOfStay:     e.LengthOfStay,
		Technology:       e.Technology,
		TechnologyDetail: e.TechnologyDetail,
		TechnologyAmount: &tech,
		NewbornAmount:    &newborn,
		RescueDelayDays:  e.RescueDelayDays,
		DemoraRescate:    &demora,
		OutlierSuperior:  &outlier,
	}
}

// ApplyTo writes the breakdown onto e.
func (b Breakdown) ApplyTo(e *model.Episode) {
	e.BaseTariff = b.BaseTariff
	e.TechnologyAmount = b.TechnologyAmount
	e.TechnologyDetail = b.TechnologyDetail
	e.NewbornAmount = b.NewbornAmount
	e.OutlierSuperiorPremium = b.OutlierSuperiorPremium
	e.DemoraRescatePremium = b.DemoraRescatePremium
	e.FinalAmount = b.FinalAmount
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
