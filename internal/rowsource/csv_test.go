package rowsource

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewCSV_CommaAndBOM(t *testing.T) {
	in := "\xEF\xBB\xBFEpisodio,Centro, IR-GRD \nE1,HC,G1\nE2,HC\n"
	r, err := NewCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("NewCSV: %v", err)
	}
	if got := r.Headers(); len(got) != 3 || got[0] != "Episodio" || got[2] != "IR-GRD" {
		t.Fatalf("headers = %q", got)
	}
	rows, bad, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(bad) != 0 {
		t.Fatalf("malformed = %v", bad)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["IR-GRD"] != "G1" {
		t.Errorf("row 0 code = %q", rows[0]["IR-GRD"])
	}
	if _, ok := rows[1]["IR-GRD"]; ok {
		t.Error("short record should leave trailing header unset")
	}
}

func TestNewCSV_Semicolon(t *testing.T) {
	in := "Episodio;Monto AT\nE1;1.234,50\n"
	r, err := NewCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("NewCSV: %v", err)
	}
	rows, bad, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(bad) != 0 {
		t.Fatalf("malformed = %v", bad)
	}
	if len(rows) != 1 || rows[0]["Monto AT"] != "1.234,50" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestNewCSV_Empty(t *testing.T) {
	if _, err := NewCSV(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestOpenCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "episodes.csv")
	os.WriteFile(path, []byte("Episodio\nE1\nE2\nE3\n"), 0644)

	r, err := OpenCSV(path)
	if err != nil {
		t.Fatalf("OpenCSV: %v", err)
	}
	defer r.Close()
	rows, bad, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(bad) != 0 {
		t.Fatalf("malformed = %v", bad)
	}
	if len(rows) != 3 {
		t.Errorf("rows = %d, want 3", len(rows))
	}
}

func TestCheckHeaders(t *testing.T) {
	headers := []string{"Episodio", "", "Centro", "Centro"}
	warnings := CheckHeaders(headers, []string{"Episodio", "Centro", "RUT"})
	if len(warnings) != 3 {
		t.Fatalf("warnings = %q, want 3", warnings)
	}
	if !strings.Contains(warnings[0], "column 2") {
		t.Errorf("warning 0 = %q", warnings[0])
	}
	if !strings.Contains(warnings[1], `"Centro"`) {
		t.Errorf("warning 1 = %q", warnings[1])
	}
	if !strings.Contains(warnings[2], `"RUT"`) {
		t.Errorf("warning 2 = %q", warnings[2])
	}

	if got := CheckHeaders([]string{"Episodio"}, []string{"Episodio"}); len(got) != 0 {
		t.Errorf("clean headers produced %q", got)
	}
}

func TestReadAll_MalformedRecordKeepsGoing(t *testing.T) {
	strict := csv.NewReader(strings.NewReader("E1,HC\nE2,\"bad\"x\nE3,HC\n"))
	r := &CSVReader{csv: strict, headers: []string{"Episodio", "Centro"}}

	rows, bad, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[1] != nil {
		t.Errorf("malformed slot = %v, want nil", rows[1])
	}
	if rows[2]["Episodio"] != "E3" {
		t.Errorf("row after malformed = %v", rows[2])
	}
	if len(bad) != 1 || bad[0].Row != 3 {
		t.Fatalf("malformed = %+v, want row 3", bad)
	}
	var pe *csv.ParseError
	if !errors.As(bad[0].Err, &pe) {
		t.Errorf("malformed error = %T", bad[0].Err)
	}
}
