package ingest

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/grdload/internal/model"
	"github.com/gyeh/grdload/internal/normalize"
	"github.com/gyeh/grdload/internal/rowsource"
)

// Preflight hashes the episode file and reads its header and rows into a
// Batch. Failures here mean no batch can start.
func Preflight(filePath string, log zerolog.Logger) (*Batch, error) {
	start := time.Now()

	sha, err := normalize.FileHash(filePath)
	if err != nil {
		return nil, fmt.Errorf("preflight hash: %w", err)
	}

	reader, err := rowsource.OpenCSV(filePath)
	if err != nil {
		return nil, fmt.Errorf("preflight open: %w", err)
	}
	defer reader.Close()

	rows, bad, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("preflight read: %w", err)
	}

	batch := &Batch{
		Source:    model.BatchSource{FileName: filepath.Base(filePath), SHA256: sha},
		Headers:   reader.Headers(),
		Rows:      rows,
		Malformed: bad,
	}

	log.Info().
		Str("file", batch.Source.FileName).
		Str("sha256", sha).
		Int("rows", len(rows)).
		Int("malformed", len(bad)).
		Int("columns", len(batch.Headers)).
		Dur("duration", time.Since(start)).
		Msg("preflight complete")

	return batch, nil
}
