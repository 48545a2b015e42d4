// mkfixture writes a sample norm Parquet file and a matching episodes CSV for
// local runs of grdload. Output is deterministic for a given seed.
// Usage: go run ./cmd/mkfixture --norm testdata/norma.parquet --episodes testdata/episodios.csv --rows 200
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	goparquet "github.com/parquet-go/parquet-go"

	"github.com/gyeh/grdload/internal/model"
	"github.com/gyeh/grdload/internal/normalize"
	"github.com/gyeh/grdload/internal/parquetread"
)

func main() {
	normOut := flag.String("norm", "testdata/norma.parquet", "output norm parquet")
	episodesOut := flag.String("episodes", "testdata/episodios.csv", "output episodes csv")
	codes := flag.Int("codes", 40, "number of norm codes")
	rows := flag.Int("rows", 200, "number of episode rows")
	seed := flag.Int64("seed", 1, "random seed")
	checkOnly := flag.String("check", "", "only print stats of an existing norm parquet")
	flag.Parse()

	if *checkOnly != "" {
		if err := check(*checkOnly); err != nil {
			fmt.Fprintf(os.Stderr, "check: %v\n", err)
			os.Exit(1)
		}
		return
	}

	rng := rand.New(rand.NewSource(*seed))
	norm := makeNorm(rng, *codes)
	if err := writeNorm(*normOut, norm); err != nil {
		fmt.Fprintf(os.Stderr, "write norm: %v\n", err)
		os.Exit(1)
	}
	stats, err := writeEpisodes(*episodesOut, rng, norm, *rows)
	if err != nil {
		fmt.Fprintf(os.Stderr, "write episodes: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d norm rows to %s\n", len(norm), *normOut)
	fmt.Printf("Wrote %d episode rows to %s\n", *rows, *episodesOut)
	for _, k := range []string{"inlier", "outlier_superior", "outlier_inferior", "unknown_code", "missing_rut", "duplicate"} {
		fmt.Printf("  %-18s %d\n", k, stats[k])
	}
}

func makeNorm(rng *rand.Rand, n int) []model.NormRow {
	out := make([]model.NormRow, 0, n)
	for i := 0; i < n; i++ {
		pci := int64(1 + rng.Intn(4))
		pcs := pci + int64(4+rng.Intn(20))
		weight := 0.3 + float64(rng.Intn(5000))/1000
		p50 := float64(15000 + rng.Intn(30000))
		p75 := p50 * 1.5
		row := model.NormRow{
			Code:   fmt.Sprintf("%02d1%02d%d", 1+i%20, i, 1+i%3),
			Weight: &weight,
			PCI:    &pci,
			PCS:    &pcs,
			P50:    &p50,
			P75:    &p75,
		}
		// Leave a few codes without a tariff so base-price pricing is exercised.
		if i%7 != 0 {
			tariff := float64(int(weight*1_500_000)/100) * 100
			row.Tariff = &tariff
		}
		out = append(out, row)
	}
	return out
}

func writeNorm(path string, rows []model.NormRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := goparquet.NewGenericWriter[model.NormRow](f)
	if _, err := w.Write(rows); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return f.Close()
}

func writeEpisodes(path string, rng *rand.Rand, norm []model.NormRow, n int) (map[string]int, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cols := normalize.DefaultColumns()
	w := csv.NewWriter(f)
	w.Comma = ';'
	if err := w.Write(cols.All()); err != nil {
		return nil, err
	}

	stats := make(map[string]int)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	patients := n/3 + 1
	prev := ""
	for i := 0; i < n; i++ {
		entry := norm[rng.Intn(len(norm))]
		code := entry.Code
		var los int64
		switch r := rng.Intn(10); {
		case r == 0:
			los = *entry.PCS + 1 + int64(rng.Intn(10))
			stats["outlier_superior"]++
		case r == 1 && *entry.PCI > 0:
			los = int64(rng.Intn(int(*entry.PCI)))
			stats["outlier_inferior"]++
		default:
			los = *entry.PCI + int64(rng.Intn(int(*entry.PCS-*entry.PCI+1)))
			stats["inlier"]++
		}
		if i%50 == 17 {
			code = "999999"
			stats["unknown_code"]++
		}

		id := fmt.Sprintf("EP%06d", i+1)
		if i%60 == 59 && prev != "" {
			id = prev
			stats["duplicate"]++
		}
		prev = id

		rut := fmt.Sprintf("%d-%d", 10_000_000+rng.Intn(patients), rng.Intn(10))
		if i%45 == 44 {
			rut = "S/R"
			stats["missing_rut"]++
		}

		admission := start.AddDate(0, 0, rng.Intn(300))
		discharge := admission.AddDate(0, 0, int(los))
		tech := "N"
		techAmount := ""
		if rng.Intn(8) == 0 {
			tech = "S"
			techAmount = strconv.Itoa(100_000 + rng.Intn(400_000))
		}

		rec := map[string]string{
			cols.ExternalID: id,
			cols.Facility:   "Hospital Base",
			cols.NationalID: rut,
			cols.Name:       fmt.Sprintf("Paciente %d", i%patients),
			cols.Age:        strconv.Itoa(rng.Intn(90)),
			cols.Sex:        []string{"M", "F"}[rng.Intn(2)],
			cols.Code:       code,
			cols.Weight:     strings.Replace(strconv.FormatFloat(*entry.Weight, 'f', 4, 64), ".", ",", 1),
			cols.Admission:  admission.Format("02-01-2006"),
			cols.Discharge:  discharge.Format("02-01-2006"),
			cols.Technology: tech,
			cols.Insurer:    []string{"FONASA", "ISAPRE"}[rng.Intn(2)],
			cols.Service:    "Medicina",
			cols.Diagnosis:  "J18.9",
		}
		if techAmount != "" {
			rec[cols.TechnologyAmount] = techAmount
			rec[cols.TechnologyDetail] = "Stent"
		}

		line := make([]string, 0, len(cols.All()))
		for _, h := range cols.All() {
			line = append(line, rec[h])
		}
		if err := w.Write(line); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return stats, f.Close()
}

func check(path string) error {
	r, err := parquetread.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	rows, err := r.ReadAll(context.Background())
	if err != nil {
		return err
	}
	var noTariff, noP50 int
	for _, row := range rows {
		if row.Tariff == nil {
			noTariff++
		}
		if row.P50 == nil {
			noP50++
		}
	}
	fmt.Printf("Total: %d, without tariff: %d, without p50: %d\n", len(rows), noTariff, noP50)
	return nil
}
