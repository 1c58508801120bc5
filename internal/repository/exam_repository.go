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

// ExamRepository handles exam and attempt persistence.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository creates a new exam repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO exams (id, subject_id, title, csv_path, created_at)
        VALUES (:id, :subject_id, :title, :csv_path, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}
	return nil
}

// FindByID returns one exam.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	const query = `SELECT id, subject_id, title, csv_path, created_at FROM exams WHERE id = $1 LIMIT 1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find exam: %w", err)
	}
	return &exam, nil
}

// FindOwned returns an exam only when its subject belongs to the trainer.
func (r *ExamRepository) FindOwned(ctx context.Context, examID, trainerID string) (*models.Exam, error) {
	const query = `SELECT e.id, e.subject_id, e.title, e.csv_path, e.created_at
        FROM exams e
        JOIN subjects s ON s.id = e.subject_id
        WHERE e.id = $1 AND s.trainer_id = $2
        LIMIT 1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, examID, trainerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find owned exam: %w", err)
	}
	return &exam, nil
}

// UpdateCSVPath records the uploaded question bank reference.
func (r *ExamRepository) UpdateCSVPath(ctx context.Context, examID, path string) error {
	const query = `UPDATE exams SET csv_path = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, examID, path); err != nil {
		return fmt.Errorf("update exam csv path: %w", err)
	}
	return nil
}

// ListBySubject returns exams for one subject.
func (r *ExamRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.Exam, error) {
	const query = `SELECT id, subject_id, title, csv_path, created_at FROM exams WHERE subject_id = $1 ORDER BY created_at DESC`
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, subjectID); err != nil {
		return nil, fmt.Errorf("list subject exams: %w", err)
	}
	return exams, nil
}

// ListAvailableForInstitute returns exams taught by trainers of the
// candidate's institute.
func (r *ExamRepository) ListAvailableForInstitute(ctx context.Context, instituteID string) ([]models.Exam, error) {
	const query = `SELECT e.id, e.subject_id, e.title, e.csv_path, e.created_at
        FROM exams e
        JOIN subjects s ON s.id = e.subject_id
        JOIN trainers t ON t.user_id = s.trainer_id
        WHERE t.institute_id = $1
        ORDER BY e.created_at DESC`
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, instituteID); err != nil {
		return nil, fmt.Errorf("list available exams: %w", err)
	}
	return exams, nil
}

// InsertAttempt appends one immutable attempt row.
func (r *ExamRepository) InsertAttempt(ctx context.Context, attempt *models.ExamAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.AttemptedOn.IsZero() {
		attempt.AttemptedOn = time.Now().UTC()
	}
	const query = `INSERT INTO exam_attempts (id, candidate_id, exam_id, answers, score_percentage, passed, attempted_on)
        VALUES (:id, :candidate_id, :exam_id, :answers, :score_percentage, :passed, :attempted_on)`
	if _, err := r.db.NamedExecContext(ctx, query, attempt); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// ListAttemptsByCandidate returns a candidate's own attempts.
func (r *ExamRepository) ListAttemptsByCandidate(ctx context.Context, candidateID string) ([]models.ExamAttempt, error) {
	const query = `SELECT id, candidate_id, exam_id, answers, score_percentage, passed, attempted_on
        FROM exam_attempts WHERE candidate_id = $1 ORDER BY attempted_on DESC`
	var attempts []models.ExamAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, candidateID); err != nil {
		return nil, fmt.Errorf("list candidate attempts: %w", err)
	}
	return attempts, nil
}

// ListAttemptsByExam returns all attempts for one exam.
func (r *ExamRepository) ListAttemptsByExam(ctx context.Context, examID string) ([]models.ExamAttempt, error) {
	const query = `SELECT id, candidate_id, exam_id, answers, score_percentage, passed, attempted_on
        FROM exam_attempts WHERE exam_id = $1 ORDER BY attempted_on DESC`
	var attempts []models.ExamAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, examID); err != nil {
		return nil, fmt.Errorf("list exam attempts: %w", err)
	}
	return attempts, nil
}

// CountPassedSubjects returns how many distinct subjects of a course the
// candidate has at least one passing attempt for.
func (r *ExamRepository) CountPassedSubjects(ctx context.Context, candidateID, courseID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT s.id)
        FROM exam_attempts a
        JOIN exams e ON e.id = a.exam_id
        JOIN subjects s ON s.id = e.subject_id
        WHERE a.candidate_id = $1 AND a.passed = true AND s.course_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, candidateID, courseID); err != nil {
		return 0, fmt.Errorf("count passed subjects: %w", err)
	}
	return count, nil
}
