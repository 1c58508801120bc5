package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dlcampaign/dlc-api/internal/models"
	appErrors "github.com/dlcampaign/dlc-api/pkg/errors"
)

type mockAuthUsers struct {
	byEmail   map[string]*models.User
	created   []models.User
	createErr error
}

func (m *mockAuthUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := m.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockAuthUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, user := range m.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthUsers) Create(ctx context.Context, user *models.User, instituteID string) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, *user)
	return nil
}

type mockInstitutes struct {
	known map[string]bool
}

func (m *mockInstitutes) FindByID(ctx context.Context, id string) (*models.Institute, error) {
	if !m.known[id] {
		return nil, sql.ErrNoRows
	}
	return &models.Institute{ID: id}, nil
}

func newAuthFixture() (*mockAuthUsers, *mockInstitutes, *AuthService) {
	users := &mockAuthUsers{byEmail: map[string]*models.User{}}
	institutes := &mockInstitutes{known: map[string]bool{"inst-1": true}}
	svc := NewAuthService(users, institutes, nil, nil, AuthConfig{
		TokenSecret: "test-secret",
		TokenExpiry: time.Hour,
	})
	return users, institutes, svc
}

func validRegister() models.RegisterRequest {
	return models.RegisterRequest{
		Email:       "user@example.com",
		Password:    "secret123",
		FullName:    "Test User",
		Role:        "CANDIDATE",
		AadhaarID:   "123456789012",
		InstituteID: "inst-1",
	}
}

func TestRegisterCandidate(t *testing.T) {
	users, _, svc := newAuthFixture()

	info, err := svc.Register(context.Background(), validRegister())
	require.NoError(t, err)
	assert.Equal(t, models.RoleCandidate, info.Role)
	require.Len(t, users.created, 1)
	assert.NotEqual(t, "secret123", users.created[0].PasswordHash)
}

func TestRegisterRequiresInstituteForNonAdmins(t *testing.T) {
	_, _, svc := newAuthFixture()

	req := validRegister()
	req.InstituteID = ""
	_, err := svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	req.InstituteID = "unknown"
	_, err = svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRegisterAdminSkipsInstituteCheck(t *testing.T) {
	users, _, svc := newAuthFixture()

	req := validRegister()
	req.Role = "ADMIN"
	req.InstituteID = ""
	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, users.created, 1)
}

func TestRegisterDuplicate(t *testing.T) {
	users, _, svc := newAuthFixture()
	users.createErr = &pq.Error{Code: "23505"}

	_, err := svc.Register(context.Background(), validRegister())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRegisterRejectsBadPayload(t *testing.T) {
	_, _, svc := newAuthFixture()

	req := validRegister()
	req.AadhaarID = "123"
	_, err := svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLoginAndValidateToken(t *testing.T) {
	users, _, svc := newAuthFixture()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	users.byEmail["user@example.com"] = &models.User{
		ID:           "user-1",
		Email:        "user@example.com",
		PasswordHash: string(hash),
		FullName:     "Test User",
		Role:         models.RoleTrainer,
	}

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, "user-1", res.User.ID)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleTrainer, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	users, _, svc := newAuthFixture()
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	users.byEmail["user@example.com"] = &models.User{ID: "user-1", Email: "user@example.com", PasswordHash: string(hash)}

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	// Unknown email yields the same error so callers cannot probe accounts.
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, _, svc := newAuthFixture()

	_, err := svc.ValidateToken("not.a.token")
	require.Error(t, err)

	other := NewAuthService(&mockAuthUsers{byEmail: map[string]*models.User{}}, &mockInstitutes{}, nil, nil, AuthConfig{TokenSecret: "different", TokenExpiry: time.Hour})
	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	users := &mockAuthUsers{byEmail: map[string]*models.User{"a@b.c": {ID: "u", Email: "a@b.c", PasswordHash: string(hash)}}}
	issuer := NewAuthService(users, &mockInstitutes{}, nil, nil, AuthConfig{TokenSecret: "test-secret", TokenExpiry: time.Hour})
	res, err := issuer.Login(context.Background(), models.LoginRequest{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)

	_, err = other.ValidateToken(res.AccessToken)
	require.Error(t, err)
}
