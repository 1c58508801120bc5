package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/dlcampaign/dlc-api/internal/models"
)

func rbacContext(role models.UserRole) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/protected", nil)
	if role != "" {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: role})
	}
	return c, rec
}

func TestRBACAllowsMatchingRole(t *testing.T) {
	c, rec := rbacContext(models.RoleTrainer)
	RequireRoles(models.RoleTrainer)(c)
	assert.False(t, c.IsAborted())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRBACForbidsOtherRole(t *testing.T) {
	c, rec := rbacContext(models.RoleCandidate)
	RequireRoles(models.RoleAdmin)(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRBACRejectsMissingClaims(t *testing.T) {
	c, rec := rbacContext("")
	RequireRoles(models.RoleAdmin)(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRBACMultipleRoles(t *testing.T) {
	c, rec := rbacContext(models.RoleTrainer)
	RequireRoles(models.RoleAdmin, models.RoleTrainer)(c)
	assert.False(t, c.IsAborted())
	assert.Equal(t, http.StatusOK, rec.Code)
}
