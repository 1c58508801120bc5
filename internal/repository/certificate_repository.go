package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dlcampaign/dlc-api/internal/models"
)

// CertificateRepository persists course certificates. The table carries a
// UNIQUE (candidate_id, course_id) constraint; Insert relies on it to keep
// the at-most-one invariant under concurrent submissions.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository creates a new certificate repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Insert creates the certificate row. A conflicting row is left untouched
// and Insert reports created=false, so racing issuers converge on one row.
func (r *CertificateRepository) Insert(ctx context.Context, cert *models.CourseCertificate) (bool, error) {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.IssuedOn.IsZero() {
		cert.IssuedOn = time.Now().UTC()
	}
	const query = `INSERT INTO course_certificates (id, candidate_id, course_id, certificate_path, issued_on)
        VALUES (:id, :candidate_id, :course_id, :certificate_path, :issued_on)
        ON CONFLICT (candidate_id, course_id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, cert)
	if err != nil {
		return false, fmt.Errorf("insert certificate: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("certificate rows affected: %w", err)
	}
	return rows == 1, nil
}

// Exists reports whether a certificate already exists for the pair.
func (r *CertificateRepository) Exists(ctx context.Context, candidateID, courseID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM course_certificates WHERE candidate_id = $1 AND course_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, candidateID, courseID); err != nil {
		return false, fmt.Errorf("check certificate: %w", err)
	}
	return exists, nil
}

// ListByCandidate returns a candidate's certificates.
func (r *CertificateRepository) ListByCandidate(ctx context.Context, candidateID string) ([]models.CourseCertificate, error) {
	const query = `SELECT id, candidate_id, course_id, certificate_path, issued_on
        FROM course_certificates WHERE candidate_id = $1 ORDER BY issued_on DESC`
	var certs []models.CourseCertificate
	if err := r.db.SelectContext(ctx, &certs, query, candidateID); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return certs, nil
}
