package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleTrainer   UserRole = "TRAINER"
	RoleCandidate UserRole = "CANDIDATE"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         UserRole  `db:"role" json:"role"`
	AadhaarID    string    `db:"aadhaar_id" json:"aadhaar_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// CandidateProfile links a candidate user to their institute.
type CandidateProfile struct {
	UserID       string `db:"user_id" json:"user_id"`
	InstituteID  string `db:"institute_id" json:"institute_id"`
	EkycVerified bool   `db:"ekyc_verified" json:"ekyc_verified"`
}

// TrainerProfile links a trainer user to their institute.
type TrainerProfile struct {
	UserID      string `db:"user_id" json:"user_id"`
	InstituteID string `db:"institute_id" json:"institute_id"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}
