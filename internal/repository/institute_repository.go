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

// InstituteRepository handles institute persistence.
type InstituteRepository struct {
	db *sqlx.DB
}

// NewInstituteRepository creates a new institute repository.
func NewInstituteRepository(db *sqlx.DB) *InstituteRepository {
	return &InstituteRepository{db: db}
}

// Create inserts a new institute.
func (r *InstituteRepository) Create(ctx context.Context, institute *models.Institute) error {
	if institute.ID == "" {
		institute.ID = uuid.NewString()
	}
	if institute.CreatedAt.IsZero() {
		institute.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO institutes (id, name, district, block, created_at)
        VALUES (:id, :name, :district, :block, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, institute); err != nil {
		return fmt.Errorf("insert institute: %w", err)
	}
	return nil
}

// List returns all institutes ordered by name.
func (r *InstituteRepository) List(ctx context.Context) ([]models.Institute, error) {
	const query = `SELECT id, name, district, block, created_at FROM institutes ORDER BY name ASC`
	var institutes []models.Institute
	if err := r.db.SelectContext(ctx, &institutes, query); err != nil {
		return nil, fmt.Errorf("list institutes: %w", err)
	}
	return institutes, nil
}

// FindByID returns one institute.
func (r *InstituteRepository) FindByID(ctx context.Context, id string) (*models.Institute, error) {
	const query = `SELECT id, name, district, block, created_at FROM institutes WHERE id = $1 LIMIT 1`
	var institute models.Institute
	if err := r.db.GetContext(ctx, &institute, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find institute: %w", err)
	}
	return &institute, nil
}
