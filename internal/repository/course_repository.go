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

// CourseRepository handles course and subject persistence.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// CreateCourse inserts a new course.
func (r *CourseRepository) CreateCourse(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO courses (id, title, description, pdf_url, created_by, created_at)
        VALUES (:id, :title, :description, :pdf_url, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

// ListCourses returns all courses.
func (r *CourseRepository) ListCourses(ctx context.Context) ([]models.Course, error) {
	const query = `SELECT id, title, description, pdf_url, created_by, created_at FROM courses ORDER BY created_at DESC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// FindCourseByID returns one course.
func (r *CourseRepository) FindCourseByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, description, pdf_url, created_by, created_at FROM courses WHERE id = $1 LIMIT 1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// CreateSubject inserts a new subject owned by a trainer.
func (r *CourseRepository) CreateSubject(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO subjects (id, course_id, name, trainer_id, created_at)
        VALUES (:id, :course_id, :name, :trainer_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("insert subject: %w", err)
	}
	return nil
}

// ListSubjectsByTrainer returns subjects owned by a trainer.
func (r *CourseRepository) ListSubjectsByTrainer(ctx context.Context, trainerID string) ([]models.Subject, error) {
	const query = `SELECT id, course_id, name, trainer_id, created_at FROM subjects WHERE trainer_id = $1 ORDER BY created_at DESC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, trainerID); err != nil {
		return nil, fmt.Errorf("list trainer subjects: %w", err)
	}
	return subjects, nil
}

// FindSubjectByID returns one subject.
func (r *CourseRepository) FindSubjectByID(ctx context.Context, id string) (*models.Subject, error) {
	const query = `SELECT id, course_id, name, trainer_id, created_at FROM subjects WHERE id = $1 LIMIT 1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &subject, nil
}

// CountSubjectsByCourse returns how many subjects a course contains.
func (r *CourseRepository) CountSubjectsByCourse(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM subjects WHERE course_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID); err != nil {
		return 0, fmt.Errorf("count course subjects: %w", err)
	}
	return count, nil
}
