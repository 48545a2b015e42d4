package model

// NormRow mirrors the Parquet layout of a norm export.
type NormRow struct {
	Code   string   `parquet:"grd"`
	Weight *float64 `parquet:"peso,optional"`
	PCI    *int64   `parquet:"pci,optional"`
	PCS    *int64   `parquet:"pcs,optional"`
	Tariff *float64 `parquet:"tarifa,optional"`
	P25    *float64 `parquet:"p25,optional"`
	P50    *float64 `parquet:"p50,optional"`
	P75    *float64 `parquet:"p75,optional"`
}

// NormRowRequiredColumns are the Parquet columns a norm export must carry.
var NormRowRequiredColumns = []string{"grd", "pci", "pcs"}
