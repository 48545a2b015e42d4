package db

import "github.com/shopspring/decimal"

// ToCents converts a two-digit amount to integer cents, rounding half away
// from zero.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromCents converts integer cents back to a two-digit amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

func centsPtr(d *decimal.Decimal) *int64 {
	if d == nil {
		return nil
	}
	c := ToCents(*d)
	return &c
}

func fromCentsPtr(c *int64) *decimal.Decimal {
	if c == nil {
		return nil
	}
	d := FromCents(*c)
	return &d
}
