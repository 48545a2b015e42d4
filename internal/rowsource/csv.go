package rowsource

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gyeh/grdload/internal/model"
)

// FirstDataRow is the spreadsheet row number of the first record after the
// header line.
const FirstDataRow = 2

// CSVReader streams a header-first CSV export as RawRows keyed by header.
type CSVReader struct {
	closer  io.Closer
	csv     *csv.Reader
	headers []string
}

// OpenCSV opens the CSV file at path and reads its header line.
func OpenCSV(path string) (*CSVReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r, err := NewCSV(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewCSV reads the header line from r. The delimiter is detected from the
// header: exports from Spanish-locale spreadsheets use ';'.
func NewCSV(r io.Reader) (*CSVReader, error) {
	br := bufio.NewReaderSize(r, 256*1024)

	// Skip UTF-8 BOM if present
	if bom, err := br.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		br.Discard(3)
	}

	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("peek header: %w", err)
	}
	line := string(first)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	reader := csv.NewReader(br)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	if strings.Count(line, ";") > strings.Count(line, ",") {
		reader.Comma = ';'
	}

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header row: empty file")
		}
		return nil, fmt.Errorf("read header row: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	return &CSVReader{csv: reader, headers: headers}, nil
}

// Headers returns the trimmed header names in file order.
func (r *CSVReader) Headers() []string {
	return r.headers
}

// Next returns the next record, or io.EOF when the file is exhausted.
// Fully blank lines are skipped by encoding/csv; a record with fewer fields
// than headers leaves the trailing headers unset.
func (r *CSVReader) Next() (model.RawRow, error) {
	rec, err := r.csv.Read()
	if err != nil {
		return nil, err
	}
	row := make(model.RawRow, len(r.headers))
	for i, h := range r.headers {
		if h == "" || i >= len(rec) {
			continue
		}
		row[h] = rec[i]
	}
	return row, nil
}

// Malformed is a record the CSV parser could not read. Row is its
// spreadsheet row number.
type Malformed struct {
	Row int
	Err error
}

// ReadAll reads every remaining record. A record that fails to parse keeps
// its slot as a nil row so later row numbers stay aligned, and is listed in
// the returned Malformed. Only failures of the underlying reader abort.
func (r *CSVReader) ReadAll() ([]model.RawRow, []Malformed, error) {
	var (
		rows []model.RawRow
		bad  []Malformed
	)
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return rows, bad, nil
		}
		rowNum := len(rows) + FirstDataRow
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			bad = append(bad, Malformed{Row: rowNum, Err: err})
			rows = append(rows, nil)
			continue
		}
		if err != nil {
			return rows, bad, fmt.Errorf("read row %d: %w", rowNum, err)
		}
		rows = append(rows, row)
	}
}

// Close releases the underlying file, if any.
func (r *CSVReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// CheckHeaders compares the file's headers against the expected ones and
// returns one warning per problem: missing required headers, blank headers
// and repeated headers. Matching is exact.
func CheckHeaders(headers, required []string) []string {
	var warnings []string
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		if h == "" {
			warnings = append(warnings, fmt.Sprintf("column %d has an empty header", i+1))
			continue
		}
		seen[h]++
		if seen[h] == 2 {
			warnings = append(warnings, fmt.Sprintf("header %q appears more than once; the last column wins", h))
		}
	}
	for _, req := range required {
		if req == "" {
			continue
		}
		if seen[req] == 0 {
			warnings = append(warnings, fmt.Sprintf("missing required header %q", req))
		}
	}
	return warnings
}
