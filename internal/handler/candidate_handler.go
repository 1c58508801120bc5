package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dlcampaign/dlc-api/internal/models"
	"github.com/dlcampaign/dlc-api/internal/service"
	appErrors "github.com/dlcampaign/dlc-api/pkg/errors"
	"github.com/dlcampaign/dlc-api/pkg/response"
)

// CandidateHandler serves the candidate-facing exam surface.
type CandidateHandler struct {
	exams        *service.ExamService
	certificates *service.CertificateService
	stats        *service.StatsService
}

// NewCandidateHandler creates a new handler.
func NewCandidateHandler(exams *service.ExamService, certificates *service.CertificateService, stats *service.StatsService) *CandidateHandler {
	return &CandidateHandler{exams: exams, certificates: certificates, stats: stats}
}

// AvailableExams godoc
// @Summary List available exams
// @Tags Candidate
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /candidate/exams [get]
func (h *CandidateHandler) AvailableExams(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	exams, err := h.exams.Available(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exams, nil)
}

// ExamQuestions godoc
// @Summary Paginated answer-free question listing
// @Tags Candidate
// @Produce json
// @Security BearerAuth
// @Param id path string true "Exam ID"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Page size" default(10)
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /candidate/exams/{id}/questions [get]
func (h *CandidateHandler) ExamQuestions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	result, err := h.exams.Questions(c.Request.Context(), c.Param("id"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Questions, &models.Pagination{
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalCount: result.Total,
		TotalPages: result.TotalPages,
	})
}

// SubmitExam godoc
// @Summary Submit answer sheet
// @Tags Candidate
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.ExamSubmission true "Answer sheet"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /candidate/attempts [post]
func (h *CandidateHandler) SubmitExam(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var submission models.ExamSubmission
	if err := c.ShouldBindJSON(&submission); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}
	result, err := h.exams.Submit(c.Request.Context(), claims.UserID, submission)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Attempts godoc
// @Summary Own attempt history
// @Tags Candidate
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /candidate/attempts [get]
func (h *CandidateHandler) Attempts(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	attempts, err := h.exams.Attempts(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attempts, nil)
}

// Certificates godoc
// @Summary Own certificates
// @Tags Candidate
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /candidate/certificates [get]
func (h *CandidateHandler) Certificates(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	certs, err := h.certificates.CandidateCertificates(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certs, nil)
}

// Progress godoc
// @Summary Programme progress
// @Tags Candidate
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /candidate/progress [get]
func (h *CandidateHandler) Progress(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	progress, err := h.stats.CandidateProgress(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}
