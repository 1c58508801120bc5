package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Exam is the question-bank-backed assessment for a subject. CSVPath is nil
// until a trainer uploads a question file; grading and listing fail with
// NOT_CONFIGURED while it is absent.
type Exam struct {
	ID        string    `db:"id" json:"id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	Title     string    `db:"title" json:"title"`
	CSVPath   *string   `db:"csv_path" json:"csv_path,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Question is one row of a question bank. Its identity is its 0-based
// position within the file; there is no persistent question ID.
type Question struct {
	Prompt        string `json:"question"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectAnswer string `json:"correct_answer"`
}

// CandidateQuestion is the answer-free view served to candidates.
type CandidateQuestion struct {
	Prompt  string `json:"question"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
	OptionC string `json:"option_c"`
	OptionD string `json:"option_d"`
}

// Candidate strips the correct answer from a question.
func (q Question) Candidate() CandidateQuestion {
	return CandidateQuestion{
		Prompt:  q.Prompt,
		OptionA: q.OptionA,
		OptionB: q.OptionB,
		OptionC: q.OptionC,
		OptionD: q.OptionD,
	}
}

// QuestionPage is one page of the answer-free question listing.
type QuestionPage struct {
	Questions  []CandidateQuestion `json:"questions"`
	Total      int                 `json:"total"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"page_size"`
	TotalPages int                 `json:"total_pages"`
}

// AnswerMap maps a question's 0-based index (as a string) to the submitted
// answer letter. Stored as JSONB alongside the attempt.
type AnswerMap map[string]string

// Value implements driver.Valuer for JSONB columns.
func (a AnswerMap) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner for JSONB columns.
func (a *AnswerMap) Scan(src interface{}) error {
	if src == nil {
		*a = AnswerMap{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported answers column type %T", src)
	}
	return json.Unmarshal(raw, a)
}

// ExamSubmission is a candidate's answer sheet for one exam.
type ExamSubmission struct {
	ExamID  string    `json:"exam_id" validate:"required"`
	Answers AnswerMap `json:"answers" validate:"required"`
}

// ExamResult is the graded outcome returned to the candidate.
type ExamResult struct {
	ExamID          string    `json:"exam_id"`
	ScorePercentage float64   `json:"score_percentage"`
	Passed          bool      `json:"passed"`
	TotalQuestions  int       `json:"total_questions"`
	CorrectAnswers  int       `json:"correct_answers"`
	AttemptedOn     time.Time `json:"attempted_on"`
}

// ExamAttempt is one immutable graded submission. Rows are append-only and
// never updated; "has passed" means at least one passing attempt exists.
type ExamAttempt struct {
	ID              string    `db:"id" json:"id"`
	CandidateID     string    `db:"candidate_id" json:"candidate_id"`
	ExamID          string    `db:"exam_id" json:"exam_id"`
	Answers         AnswerMap `db:"answers" json:"answers"`
	ScorePercentage float64   `db:"score_percentage" json:"score_percentage"`
	Passed          bool      `db:"passed" json:"passed"`
	AttemptedOn     time.Time `db:"attempted_on" json:"attempted_on"`
}

// CourseCertificate is proof of having passed every subject in a course.
// At most one exists per (candidate, course).
type CourseCertificate struct {
	ID              string    `db:"id" json:"id"`
	CandidateID     string    `db:"candidate_id" json:"candidate_id"`
	CourseID        string    `db:"course_id" json:"course_id"`
	CertificatePath string    `db:"certificate_path" json:"certificate_path"`
	IssuedOn        time.Time `db:"issued_on" json:"issued_on"`
}

// AttemptRow summarises one attempt in trainer-facing results.
type AttemptRow struct {
	CandidateID string    `json:"candidate_id"`
	Score       float64   `json:"score"`
	Passed      bool      `json:"passed"`
	AttemptedOn time.Time `json:"attempted_on"`
}

// ExamResults rolls up attempts for one exam.
type ExamResults struct {
	ExamID         string       `json:"exam_id"`
	TotalAttempts  int          `json:"total_attempts"`
	PassedAttempts int          `json:"passed_attempts"`
	PassRate       float64      `json:"pass_rate"`
	AverageScore   float64      `json:"average_score"`
	Attempts       []AttemptRow `json:"attempts"`
}

// CandidateProgress summarises a candidate's standing across the programme.
type CandidateProgress struct {
	TotalCourses         int     `json:"total_courses"`
	TotalSubjects        int     `json:"total_subjects"`
	CompletedSubjects    int     `json:"completed_subjects"`
	PassedAttempts       int     `json:"passed_attempts"`
	EarnedCertificates   int     `json:"earned_certificates"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

// SystemAnalytics is the admin-wide rollup.
type SystemAnalytics struct {
	TotalCandidates         int     `json:"total_candidates"`
	TotalTrainers           int     `json:"total_trainers"`
	TotalInstitutes         int     `json:"total_institutes"`
	TotalCourses            int     `json:"total_courses"`
	TotalExamAttempts       int     `json:"total_exam_attempts"`
	AverageExamScore        float64 `json:"average_exam_score"`
	PassRate                float64 `json:"pass_rate"`
	TotalCertificatesIssued int     `json:"total_certificates_issued"`
}
