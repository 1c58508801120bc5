package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/dlcampaign/dlc-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestExamRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO exams")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	exam := &models.Exam{SubjectID: "subj-1", Title: "Basics"}
	require.NoError(t, repo.Create(context.Background(), exam))
	require.NotEmpty(t, exam.ID)

	rows := sqlmock.NewRows([]string{"id", "subject_id", "title", "csv_path", "created_at"}).
		AddRow(exam.ID, "subj-1", "Basics", nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, subject_id, title, csv_path, created_at FROM exams WHERE id = $1")).
		WithArgs(exam.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), exam.ID)
	require.NoError(t, err)
	require.Equal(t, exam.ID, found.ID)
	require.Nil(t, found.CSVPath)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryFindOwnedScopesByTrainer(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("JOIN subjects s ON s.id = e.subject_id")).
		WithArgs("exam-1", "trainer-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "subject_id", "title", "csv_path", "created_at"}))

	_, err := repo.FindOwned(context.Background(), "exam-1", "trainer-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryInsertAttempt(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO exam_attempts")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	attempt := &models.ExamAttempt{
		CandidateID:     "cand-1",
		ExamID:          "exam-1",
		Answers:         models.AnswerMap{"0": "a"},
		ScorePercentage: 100,
		Passed:          true,
	}
	require.NoError(t, repo.InsertAttempt(context.Background(), attempt))
	require.NotEmpty(t, attempt.ID)
	require.False(t, attempt.AttemptedOn.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryCountPassedSubjects(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT s.id)")).
		WithArgs("cand-1", "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountPassedSubjects(context.Background(), "cand-1", "course-1")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamRepositoryUpdateCSVPath(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewExamRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE exams SET csv_path = $2 WHERE id = $1")).
		WithArgs("exam-1", "exams/t/e/bank.csv").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateCSVPath(context.Background(), "exam-1", "exams/t/e/bank.csv"))
	require.NoError(t, mock.ExpectationsWereMet())
}
