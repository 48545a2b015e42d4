package model

import (
	"time"

	"github.com/google/uuid"
)

// ErrorRecord describes one rejected row. Append-only.
type ErrorRecord struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
	Data  RawRow `json:"data"`
}

// DuplicateRecord describes a row omitted because its episode already exists.
type DuplicateRecord struct {
	Row     int    `json:"row"`
	Episode string `json:"episodio"`
	Error   string `json:"error"`
}

// DuplicateSummary groups duplicate omissions.
type DuplicateSummary struct {
	Count   int               `json:"count"`
	Details []DuplicateRecord `json:"details"`
}

// WarningSummary groups non-blocking warnings.
type WarningSummary struct {
	WarningCount int      `json:"warning_count"`
	Details      []string `json:"details"`
}

// BatchReport is the outcome of one ingestion run. It is not modified after
// the run completes.
type BatchReport struct {
	BatchID                uuid.UUID        `json:"batch_id"`
	TotalRows              int              `json:"total_rows"`
	ValidRows              int              `json:"valid_rows"`
	InvalidRows            int              `json:"invalid_rows"`
	Errors                 []ErrorRecord    `json:"errors"`
	Duplicates             DuplicateSummary `json:"duplicates"`
	StructureWarnings      WarningSummary   `json:"structure_warnings"`
	ClassificationWarnings WarningSummary   `json:"classification_warnings"`
	StartedAt              time.Time        `json:"started_at"`
	FinishedAt             time.Time        `json:"finished_at"`
}

// NewBatchReport returns an empty report whose lists encode as [] rather than null.
func NewBatchReport(batchID uuid.UUID, started time.Time) *BatchReport {
	return &BatchReport{
		BatchID:                batchID,
		Errors:                 []ErrorRecord{},
		Duplicates:             DuplicateSummary{Details: []DuplicateRecord{}},
		StructureWarnings:      WarningSummary{Details: []string{}},
		ClassificationWarnings: WarningSummary{Details: []string{}},
		StartedAt:              started,
	}
}

// AddError records a rejected row.
func (r *BatchReport) AddError(row int, msg string, data RawRow) {
	r.Errors = append(r.Errors, ErrorRecord{Row: row, Error: msg, Data: data})
	r.InvalidRows++
}

// AddDuplicate records a duplicate omission. Duplicates are not invalid rows.
func (r *BatchReport) AddDuplicate(row int, episode, msg string) {
	r.Duplicates.Details = append(r.Duplicates.Details, DuplicateRecord{Row: row, Episode: episode, Error: msg})
	r.Duplicates.Count++
}

// AddStructureWarning records a problem with the file layout.
func (r *BatchReport) AddStructureWarning(msg string) {
	r.StructureWarnings.Details = append(r.StructureWarnings.Details, msg)
	r.StructureWarnings.WarningCount++
}

// AddClassificationWarning records a soft classification problem.
func (r *BatchReport) AddClassificationWarning(msg string) {
	r.ClassificationWarnings.Details = append(r.ClassificationWarnings.Details, msg)
	r.ClassificationWarnings.WarningCount++
}

// BatchSource identifies the file a batch was read from.
type BatchSource struct {
	FileName string
	SHA256   string
}
