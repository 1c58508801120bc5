package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dlcampaign/dlc-api/internal/middleware"
	"github.com/dlcampaign/dlc-api/internal/models"
	"github.com/dlcampaign/dlc-api/internal/service"
)

type fakeUserRepo struct {
	users   map[string]*models.User
	created []models.User
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User, instituteID string) error {
	f.created = append(f.created, *user)
	return nil
}

type fakeInstituteRepo struct{}

func (f *fakeInstituteRepo) FindByID(ctx context.Context, id string) (*models.Institute, error) {
	if id != "inst-1" {
		return nil, sql.ErrNoRows
	}
	return &models.Institute{ID: id}, nil
}

func newAuthHandlerFixture(t *testing.T) (*fakeUserRepo, *AuthHandler, *service.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &fakeUserRepo{users: map[string]*models.User{
		"known@example.com": {ID: "user-1", Email: "known@example.com", PasswordHash: string(hash), FullName: "Known", Role: models.RoleCandidate},
	}}
	svc := service.NewAuthService(repo, &fakeInstituteRepo{}, nil, nil, service.AuthConfig{TokenSecret: "test", TokenExpiry: time.Hour})
	return repo, NewAuthHandler(svc), svc
}

func postJSON(t *testing.T, h gin.HandlerFunc, target string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	h(c)
	return rec
}

func TestAuthHandlerLogin(t *testing.T) {
	_, h, _ := newAuthHandlerFixture(t)

	rec := postJSON(t, h.Login, "/auth/login", models.LoginRequest{Email: "known@example.com", Password: "secret123"})
	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.AccessToken)
	assert.Equal(t, "user-1", envelope.Data.User.ID)
}

func TestAuthHandlerLoginBadCredentials(t *testing.T) {
	_, h, _ := newAuthHandlerFixture(t)

	rec := postJSON(t, h.Login, "/auth/login", models.LoginRequest{Email: "known@example.com", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandlerLoginMalformedBody(t *testing.T) {
	_, h, _ := newAuthHandlerFixture(t)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte("{not json")))
	h.Login(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandlerRegister(t *testing.T) {
	repo, h, _ := newAuthHandlerFixture(t)

	rec := postJSON(t, h.Register, "/auth/register", models.RegisterRequest{
		Email:       "new@example.com",
		Password:    "secret123",
		FullName:    "New User",
		Role:        "CANDIDATE",
		AadhaarID:   "123456789012",
		InstituteID: "inst-1",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.RoleCandidate, repo.created[0].Role)
}

func TestAuthHandlerMe(t *testing.T) {
	_, h, _ := newAuthHandlerFixture(t)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Email: "known@example.com", Role: models.RoleCandidate})
	h.Me(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data models.UserInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "user-1", envelope.Data.ID)
}

func TestAuthHandlerMeUnauthenticated(t *testing.T) {
	_, h, _ := newAuthHandlerFixture(t)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	h.Me(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
