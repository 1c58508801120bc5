package models

import "time"

// Course groups subjects into a certifiable unit. A certificate is issued
// once a candidate has passed every subject in the course.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	PDFURL      *string   `db:"pdf_url" json:"pdf_url,omitempty"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Subject is a gradable unit within a course, owned by one trainer.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Name      string    `db:"name" json:"name"`
	TrainerID string    `db:"trainer_id" json:"trainer_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
