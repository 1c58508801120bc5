package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/dlcampaign/dlc-api/internal/models"
)

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "aadhaar_id", "created_at"}).
		AddRow("user-1", "a@b.c", "hash", "Name", "CANDIDATE", "123456789012", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("a@b.c").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "a@b.c")
	require.NoError(t, err)
	require.Equal(t, models.RoleCandidate, user.Role)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("missing@b.c").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = repo.FindByEmail(context.Background(), "missing@b.c")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateCandidateTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO candidates")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user := &models.User{Email: "a@b.c", PasswordHash: "hash", FullName: "Name", Role: models.RoleCandidate, AadhaarID: "123456789012", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), user, "inst-1"))
	require.NotEmpty(t, user.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateRollsBackOnProfileFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trainers")).
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	user := &models.User{Email: "a@b.c", Role: models.RoleTrainer, AadhaarID: "123456789012", CreatedAt: time.Now()}
	require.Error(t, repo.Create(context.Background(), user, "inst-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDuplicateErr(t *testing.T) {
	require.True(t, IsDuplicateErr(&pq.Error{Code: "23505"}))
	require.False(t, IsDuplicateErr(&pq.Error{Code: "23503"}))
	require.False(t, IsDuplicateErr(errors.New("other")))
	require.False(t, IsDuplicateErr(nil))
}
