package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dlcampaign/dlc-api/internal/models"
	"github.com/dlcampaign/dlc-api/internal/service"
	appErrors "github.com/dlcampaign/dlc-api/pkg/errors"
	"github.com/dlcampaign/dlc-api/pkg/response"
)

// AdminHandler serves institute and course administration plus the
// platform-wide analytics rollup.
type AdminHandler struct {
	institutes *service.InstituteService
	courses    *service.CourseService
	stats      *service.StatsService
}

// NewAdminHandler creates a new handler.
func NewAdminHandler(institutes *service.InstituteService, courses *service.CourseService, stats *service.StatsService) *AdminHandler {
	return &AdminHandler{institutes: institutes, courses: courses, stats: stats}
}

// CreateInstitute godoc
// @Summary Create institute
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateInstituteRequest true "Institute payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/institutes [post]
func (h *AdminHandler) CreateInstitute(c *gin.Context) {
	var req service.CreateInstituteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid institute payload"))
		return
	}
	institute, err := h.institutes.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, institute)
}

// ListInstitutes godoc
// @Summary List institutes
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/institutes [get]
func (h *AdminHandler) ListInstitutes(c *gin.Context) {
	institutes, err := h.institutes.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institutes, nil)
}

// InstituteStats godoc
// @Summary Institute outcome rollup
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Institute ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/institutes/{id}/stats [get]
func (h *AdminHandler) InstituteStats(c *gin.Context) {
	stats, err := h.institutes.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// CreateCourse godoc
// @Summary Create course
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/courses [post]
func (h *AdminHandler) CreateCourse(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return
	}
	course, err := h.courses.CreateCourse(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// ListCourses godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *AdminHandler) ListCourses(c *gin.Context) {
	courses, err := h.courses.ListCourses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// ListUsers godoc
// @Summary List users by role
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param role query string false "Role filter" default(CANDIDATE)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	role := models.UserRole(c.DefaultQuery("role", string(models.RoleCandidate)))
	users, err := h.courses.UsersByRole(c.Request.Context(), role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// SystemAnalytics godoc
// @Summary Platform-wide analytics
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/analytics [get]
func (h *AdminHandler) SystemAnalytics(c *gin.Context) {
	analytics, err := h.stats.SystemAnalytics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analytics, nil)
}
