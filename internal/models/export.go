package models

import "time"

// ExportFormat selects the rendered output for a results export.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus tracks an asynchronous export job.
type ExportStatus string

const (
	ExportStatusQueued   ExportStatus = "QUEUED"
	ExportStatusRunning  ExportStatus = "RUNNING"
	ExportStatusFinished ExportStatus = "FINISHED"
	ExportStatusFailed   ExportStatus = "FAILED"
)

// ResultExport is a trainer-requested export of one exam's attempt history.
type ResultExport struct {
	ID          string       `db:"id" json:"id"`
	ExamID      string       `db:"exam_id" json:"exam_id"`
	RequestedBy string       `db:"requested_by" json:"requested_by"`
	Format      ExportFormat `db:"format" json:"format"`
	Status      ExportStatus `db:"status" json:"status"`
	FilePath    *string      `db:"file_path" json:"file_path,omitempty"`
	ErrorText   *string      `db:"error_text" json:"error_text,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}
