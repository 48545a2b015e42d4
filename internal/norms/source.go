package norms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gyeh/grdload/internal/model"
	"github.com/gyeh/grdload/internal/parquetread"
	"github.com/gyeh/grdload/internal/rowsource"
)

// Source yields the raw rows of the norm sheet.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.RawRow, error)
}

// SheetURL returns the CSV export URL of one sheet of a Google spreadsheet.
func SheetURL(spreadsheetID, sheet string) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/gviz/tq?tqx=out:csv&sheet=%s",
		url.PathEscape(spreadsheetID), url.QueryEscape(sheet))
}

// HTTPSource downloads the norm sheet as CSV.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// NewHTTPSource returns an HTTPSource with a bounded client timeout.
func NewHTTPSource(rawURL string) *HTTPSource {
	return &HTTPSource{URL: rawURL, Client: &http.Client{Timeout: 60 * time.Second}}
}

func (s *HTTPSource) Name() string { return s.URL }

func (s *HTTPSource) Fetch(ctx context.Context) ([]model.RawRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch sheet: status %d: %s", resp.StatusCode, body)
	}

	r, err := rowsource.NewCSV(resp.Body)
	if err != nil {
		return nil, err
	}
	return readRows(r)
}

// readRows drops records the parser rejected; Load counts what is left.
func readRows(r *rowsource.CSVReader) ([]model.RawRow, error) {
	rows, _, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	kept := rows[:0]
	for _, row := range rows {
		if row != nil {
			kept = append(kept, row)
		}
	}
	return kept, nil
}

// CSVFileSource reads the norm from a local CSV export.
type CSVFileSource struct {
	Path string
}

func (s CSVFileSource) Name() string { return s.Path }

func (s CSVFileSource) Fetch(ctx context.Context) ([]model.RawRow, error) {
	r, err := rowsource.OpenCSV(s.Path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readRows(r)
}

// ParquetFileSource reads model.NormRow records and presents them under the
// configured column names so they go through the same parsing rules as CSV.
type ParquetFileSource struct {
	Path    string
	Columns Columns
}

func (s ParquetFileSource) Name() string { return s.Path }

func (s ParquetFileSource) Fetch(ctx context.Context) ([]model.RawRow, error) {
	reader, err := parquetread.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	records, err := reader.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]model.RawRow, len(records))
	for i := range records {
		rows[i] = s.toRaw(&records[i])
	}
	return rows, nil
}

func (s ParquetFileSource) toRaw(r *model.NormRow) model.RawRow {
	c := s.Columns
	raw := model.RawRow{c.Code: r.Code}
	putFloat(raw, c.Weight, r.Weight)
	putInt(raw, c.Lower, r.PCI)
	putInt(raw, c.Upper, r.PCS)
	putFloat(raw, c.Tariff, r.Tariff)
	putFloat(raw, c.P25, r.P25)
	putFloat(raw, c.P50, r.P50)
	putFloat(raw, c.P75, r.P75)
	return raw
}

// putFloat writes v with a decimal comma, the sheet's locale, so values such
// as 123.456 are not read back as dot-grouped thousands.
func putFloat(raw model.RawRow, key string, v *float64) {
	if v != nil && key != "" {
		raw[key] = strings.Replace(strconv.FormatFloat(*v, 'f', -1, 64), ".", ",", 1)
	}
}

func putInt(raw model.RawRow, key string, v *int64) {
	if v != nil && key != "" {
		raw[key] = strconv.FormatInt(*v, 10)
	}
}
