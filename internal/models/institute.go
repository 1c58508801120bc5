package models

import "time"

// Institute is an organizational unit grouping candidates and trainers.
type Institute struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	District  string    `db:"district" json:"district"`
	Block     string    `db:"block" json:"block"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// InstituteStats aggregates training outcomes for one institute.
type InstituteStats struct {
	Institute
	TotalCandidates  int     `json:"total_candidates"`
	TotalTrainers    int     `json:"total_trainers"`
	CompletedCourses int     `json:"completed_courses"`
	PassRate         float64 `json:"pass_rate"`
}
