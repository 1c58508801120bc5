package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dlcampaign/dlc-api/internal/models"
)

// UserRepository provides database access for users and role profiles.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT id, email, password_hash, full_name, role, aadhaar_id, created_at FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, password_hash, full_name, role, aadhaar_id, created_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// Create inserts the user row and, for trainers and candidates, the matching
// institute profile row in one transaction.
func (r *UserRepository) Create(ctx context.Context, user *models.User, instituteID string) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	const userQuery = `INSERT INTO users (id, email, password_hash, full_name, role, aadhaar_id, created_at)
        VALUES (:id, :email, :password_hash, :full_name, :role, :aadhaar_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, userQuery, user); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert user: %w", err)
	}

	switch user.Role {
	case models.RoleCandidate:
		const q = `INSERT INTO candidates (user_id, institute_id, ekyc_verified) VALUES ($1, $2, false)`
		if _, err := tx.ExecContext(ctx, q, user.ID, instituteID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert candidate profile: %w", err)
		}
	case models.RoleTrainer:
		const q = `INSERT INTO trainers (user_id, institute_id) VALUES ($1, $2)`
		if _, err := tx.ExecContext(ctx, q, user.ID, instituteID); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert trainer profile: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}
	return nil
}

// IsDuplicateErr reports whether err is a unique-constraint violation.
func IsDuplicateErr(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// CandidateProfile returns the candidate row for a user.
func (r *UserRepository) CandidateProfile(ctx context.Context, userID string) (*models.CandidateProfile, error) {
	const query = `SELECT user_id, institute_id, ekyc_verified FROM candidates WHERE user_id = $1 LIMIT 1`
	var profile models.CandidateProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find candidate profile: %w", err)
	}
	return &profile, nil
}

// TrainerProfile returns the trainer row for a user.
func (r *UserRepository) TrainerProfile(ctx context.Context, userID string) (*models.TrainerProfile, error) {
	const query = `SELECT user_id, institute_id FROM trainers WHERE user_id = $1 LIMIT 1`
	var profile models.TrainerProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find trainer profile: %w", err)
	}
	return &profile, nil
}

// ListByRole returns all users holding the given role.
func (r *UserRepository) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	const query = `SELECT id, email, password_hash, full_name, role, aadhaar_id, created_at FROM users WHERE role = $1 ORDER BY created_at DESC`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, role); err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return users, nil
}

// ListInstituteCandidates returns candidate users enrolled at an institute.
func (r *UserRepository) ListInstituteCandidates(ctx context.Context, instituteID string) ([]models.User, error) {
	const query = `SELECT u.id, u.email, u.password_hash, u.full_name, u.role, u.aadhaar_id, u.created_at
        FROM users u
        JOIN candidates c ON c.user_id = u.id
        WHERE c.institute_id = $1
        ORDER BY u.created_at DESC`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, instituteID); err != nil {
		return nil, fmt.Errorf("list institute candidates: %w", err)
	}
	return users, nil
}
