package parquetread

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/gyeh/grdload/internal/model"
)

const batchSize = 256

// Reader decodes a Parquet norm export into model.NormRow records.
type Reader struct {
	file *os.File
	rows *parquet.GenericReader[model.NormRow]
}

// Open opens the export at path. Files missing a required norm column are
// refused before any row is decoded.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open norm parquet: %w", err)
	}
	r, err := open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func open(f *os.File) (*Reader, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, err
	}
	if err := ValidateSchema(pf.Schema()); err != nil {
		return nil, err
	}
	return &Reader{file: f, rows: parquet.NewGenericReader[model.NormRow](pf)}, nil
}

// NumRows is the row count recorded in the file footer.
func (r *Reader) NumRows() int64 {
	return r.rows.NumRows()
}

// ReadAll decodes every remaining row, checking ctx between batches.
func (r *Reader) ReadAll(ctx context.Context) ([]model.NormRow, error) {
	out := make([]model.NormRow, 0, r.NumRows())
	buf := make([]model.NormRow, batchSize)
	for {
		n, err := r.rows.Read(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("decode norm rows: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
	}
}

// Close releases the decoder and the file.
func (r *Reader) Close() error {
	return errors.Join(r.rows.Close(), r.file.Close())
}
