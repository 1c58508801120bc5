package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dlcampaign/dlc-api/internal/service"
	appErrors "github.com/dlcampaign/dlc-api/pkg/errors"
	"github.com/dlcampaign/dlc-api/pkg/response"
)

// TrainerHandler serves subject, exam and results endpoints for trainers.
type TrainerHandler struct {
	courses *service.CourseService
	exams   *service.ExamService
}

// NewTrainerHandler creates a new handler.
func NewTrainerHandler(courses *service.CourseService, exams *service.ExamService) *TrainerHandler {
	return &TrainerHandler{courses: courses, exams: exams}
}

// CreateSubject godoc
// @Summary Create subject
// @Tags Trainer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateSubjectRequest true "Subject payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /trainer/subjects [post]
func (h *TrainerHandler) CreateSubject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid subject payload"))
		return
	}
	subject, err := h.courses.CreateSubject(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// ListSubjects godoc
// @Summary List own subjects
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /trainer/subjects [get]
func (h *TrainerHandler) ListSubjects(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	subjects, err := h.courses.TrainerSubjects(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// ListCandidates godoc
// @Summary List institute candidates
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /trainer/candidates [get]
func (h *TrainerHandler) ListCandidates(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	candidates, err := h.courses.InstituteCandidates(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, nil)
}

// ListSubjectExams godoc
// @Summary List exams under an owned subject
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /trainer/subjects/{id}/exams [get]
func (h *TrainerHandler) ListSubjectExams(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	exams, err := h.exams.SubjectExams(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exams, nil)
}

// CreateExam godoc
// @Summary Create exam
// @Tags Trainer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateExamRequest true "Exam payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /trainer/exams [post]
func (h *TrainerHandler) CreateExam(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exam payload"))
		return
	}
	exam, err := h.exams.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exam)
}

// UploadQuestionBank godoc
// @Summary Upload question bank CSV
// @Tags Trainer
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Exam ID"
// @Param file formData file true "Question bank CSV"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /trainer/exams/{id}/questions [post]
func (h *TrainerHandler) UploadQuestionBank(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file field is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	path, err := h.exams.UploadQuestionBank(c.Request.Context(), claims.UserID, c.Param("id"), fileHeader.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"csv_path": path}, nil)
}

// ExamResults godoc
// @Summary Exam attempt rollup
// @Tags Trainer
// @Produce json
// @Security BearerAuth
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /trainer/exams/{id}/results [get]
func (h *TrainerHandler) ExamResults(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	results, err := h.exams.Results(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}
