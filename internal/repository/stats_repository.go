package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// StatsRepository serves read-side aggregates over attempts, users and
// certificates. Queries are simple scans with equality filters.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// EntityCounts holds system-wide entity totals.
type EntityCounts struct {
	Candidates int `db:"candidates"`
	Trainers   int `db:"trainers"`
	Institutes int `db:"institutes"`
	Courses    int `db:"courses"`
	Subjects   int `db:"subjects"`
}

// AttemptAggregates summarises attempt rows in a scope.
type AttemptAggregates struct {
	Total        int     `db:"total"`
	Passed       int     `db:"passed"`
	AverageScore float64 `db:"average_score"`
}

// SystemCounts returns platform-wide entity totals.
func (r *StatsRepository) SystemCounts(ctx context.Context) (*EntityCounts, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM candidates) AS candidates,
        (SELECT COUNT(*) FROM trainers) AS trainers,
        (SELECT COUNT(*) FROM institutes) AS institutes,
        (SELECT COUNT(*) FROM courses) AS courses,
        (SELECT COUNT(*) FROM subjects) AS subjects`
	var counts EntityCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("system counts: %w", err)
	}
	return &counts, nil
}

// SystemAttemptAggregates summarises all attempts.
func (r *StatsRepository) SystemAttemptAggregates(ctx context.Context) (*AttemptAggregates, error) {
	const query = `SELECT COUNT(*) AS total,
        COUNT(*) FILTER (WHERE passed) AS passed,
        COALESCE(AVG(score_percentage), 0) AS average_score
        FROM exam_attempts`
	var agg AttemptAggregates
	if err := r.db.GetContext(ctx, &agg, query); err != nil {
		return nil, fmt.Errorf("attempt aggregates: %w", err)
	}
	return &agg, nil
}

// InstituteAttemptAggregates summarises attempts by candidates of one institute.
func (r *StatsRepository) InstituteAttemptAggregates(ctx context.Context, instituteID string) (*AttemptAggregates, error) {
	const query = `SELECT COUNT(*) AS total,
        COUNT(*) FILTER (WHERE a.passed) AS passed,
        COALESCE(AVG(a.score_percentage), 0) AS average_score
        FROM exam_attempts a
        JOIN candidates c ON c.user_id = a.candidate_id
        WHERE c.institute_id = $1`
	var agg AttemptAggregates
	if err := r.db.GetContext(ctx, &agg, query, instituteID); err != nil {
		return nil, fmt.Errorf("institute attempt aggregates: %w", err)
	}
	return &agg, nil
}

// CountInstituteMembers returns candidate and trainer headcounts for an institute.
func (r *StatsRepository) CountInstituteMembers(ctx context.Context, instituteID string) (candidates, trainers int, err error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM candidates WHERE institute_id = $1) AS candidates,
        (SELECT COUNT(*) FROM trainers WHERE institute_id = $1) AS trainers`
	var row struct {
		Candidates int `db:"candidates"`
		Trainers   int `db:"trainers"`
	}
	if err := r.db.GetContext(ctx, &row, query, instituteID); err != nil {
		return 0, 0, fmt.Errorf("institute members: %w", err)
	}
	return row.Candidates, row.Trainers, nil
}

// CountInstituteCertificates counts certificates earned by an institute's candidates.
func (r *StatsRepository) CountInstituteCertificates(ctx context.Context, instituteID string) (int, error) {
	const query = `SELECT COUNT(*)
        FROM course_certificates cc
        JOIN candidates c ON c.user_id = cc.candidate_id
        WHERE c.institute_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, instituteID); err != nil {
		return 0, fmt.Errorf("institute certificates: %w", err)
	}
	return count, nil
}

// CountCertificates counts all issued certificates.
func (r *StatsRepository) CountCertificates(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM course_certificates`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count certificates: %w", err)
	}
	return count, nil
}

// CountCandidateCertificates counts certificates earned by one candidate.
func (r *StatsRepository) CountCandidateCertificates(ctx context.Context, candidateID string) (int, error) {
	const query = `SELECT COUNT(*) FROM course_certificates WHERE candidate_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, candidateID); err != nil {
		return 0, fmt.Errorf("count candidate certificates: %w", err)
	}
	return count, nil
}

// CountCandidatePassedSubjects counts distinct subjects the candidate has a
// passing attempt for, across all courses.
func (r *StatsRepository) CountCandidatePassedSubjects(ctx context.Context, candidateID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT e.subject_id)
        FROM exam_attempts a
        JOIN exams e ON e.id = a.exam_id
        WHERE a.candidate_id = $1 AND a.passed = true`
	var count int
	if err := r.db.GetContext(ctx, &count, query, candidateID); err != nil {
		return 0, fmt.Errorf("count candidate passed subjects: %w", err)
	}
	return count, nil
}

// CountCandidatePassedAttempts counts a candidate's passing attempts.
func (r *StatsRepository) CountCandidatePassedAttempts(ctx context.Context, candidateID string) (int, error) {
	const query = `SELECT COUNT(*) FROM exam_attempts WHERE candidate_id = $1 AND passed = true`
	var count int
	if err := r.db.GetContext(ctx, &count, query, candidateID); err != nil {
		return 0, fmt.Errorf("count candidate passed attempts: %w", err)
	}
	return count, nil
}
