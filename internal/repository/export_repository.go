package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dlcampaign/dlc-api/internal/models"
)

// ExportRepository tracks asynchronous results export jobs.
type ExportRepository struct {
	db *sqlx.DB
}

// NewExportRepository creates a new export repository.
func NewExportRepository(db *sqlx.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// Insert records a queued export.
func (r *ExportRepository) Insert(ctx context.Context, export *models.ResultExport) error {
	if export.ID == "" {
		export.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if export.CreatedAt.IsZero() {
		export.CreatedAt = now
	}
	export.UpdatedAt = now
	const query = `INSERT INTO result_exports (id, exam_id, requested_by, format, status, file_path, error_text, created_at, updated_at)
        VALUES (:id, :exam_id, :requested_by, :format, :status, :file_path, :error_text, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, export); err != nil {
		return fmt.Errorf("insert export: %w", err)
	}
	return nil
}

// UpdateStatus transitions an export job, optionally attaching the rendered
// file path or a failure message.
func (r *ExportRepository) UpdateStatus(ctx context.Context, id string, status models.ExportStatus, filePath, errorText *string) error {
	const query = `UPDATE result_exports SET status = $2, file_path = COALESCE($3, file_path), error_text = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, filePath, errorText, time.Now().UTC()); err != nil {
		return fmt.Errorf("update export status: %w", err)
	}
	return nil
}

// FindByID returns one export job.
func (r *ExportRepository) FindByID(ctx context.Context, id string) (*models.ResultExport, error) {
	const query = `SELECT id, exam_id, requested_by, format, status, file_path, error_text, created_at, updated_at
        FROM result_exports WHERE id = $1 LIMIT 1`
	var export models.ResultExport
	if err := r.db.GetContext(ctx, &export, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find export: %w", err)
	}
	return &export, nil
}
