package model

import "github.com/shopspring/decimal"

// NormEntry holds the regulatory parameters for one IR-GRD classification code.
// Percentile markers are independently optional.
type NormEntry struct {
	Code        string
	Weight      decimal.Decimal
	LowerCutoff int // PCI
	UpperCutoff int // PCS
	BaseTariff  decimal.Decimal
	P25         *decimal.Decimal
	P50         *decimal.Decimal
	P75         *decimal.Decimal
}

// Contains reports whether los falls inside the inlier band [PCI, PCS].
func (e NormEntry) Contains(los int) bool {
	return los >= e.LowerCutoff && los <= e.UpperCutoff
}
