package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dlcampaign/dlc-api/internal/models"
	appErrors "github.com/dlcampaign/dlc-api/pkg/errors"
)

type courseRepo interface {
	CreateCourse(ctx context.Context, course *models.Course) error
	ListCourses(ctx context.Context) ([]models.Course, error)
	FindCourseByID(ctx context.Context, id string) (*models.Course, error)
	CreateSubject(ctx context.Context, subject *models.Subject) error
	ListSubjectsByTrainer(ctx context.Context, trainerID string) ([]models.Subject, error)
}

type courseUserReader interface {
	TrainerProfile(ctx context.Context, userID string) (*models.TrainerProfile, error)
	ListInstituteCandidates(ctx context.Context, instituteID string) ([]models.User, error)
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

// CreateCourseRequest creates a course in the catalogue.
type CreateCourseRequest struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description"`
	PDFURL      *string `json:"pdf_url"`
}

// CreateSubjectRequest attaches a subject to a course under the calling
// trainer.
type CreateSubjectRequest struct {
	CourseID string `json:"course_id" validate:"required"`
	Name     string `json:"name" validate:"required"`
}

// CourseService manages the course catalogue and trainer subject assignments.
type CourseService struct {
	courses   courseRepo
	users     courseUserReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(courses courseRepo, users courseUserReader, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{courses: courses, users: users, validator: validate, logger: logger}
}

// CreateCourse adds a course to the catalogue.
func (s *CourseService) CreateCourse(ctx context.Context, adminID string, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := &models.Course{
		Title:       req.Title,
		Description: req.Description,
		PDFURL:      req.PDFURL,
		CreatedBy:   adminID,
	}
	if err := s.courses.CreateCourse(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// ListCourses returns the catalogue.
func (s *CourseService) ListCourses(ctx context.Context) ([]models.Course, error) {
	courses, err := s.courses.ListCourses(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// CreateSubject creates a subject owned by the calling trainer. The trainer
// must have an institute profile and the course must exist.
func (s *CourseService) CreateSubject(ctx context.Context, trainerID string, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	if _, err := s.users.TrainerProfile(ctx, trainerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "trainer profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trainer profile")
	}
	if _, err := s.courses.FindCourseByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	subject := &models.Subject{CourseID: req.CourseID, Name: req.Name, TrainerID: trainerID}
	if err := s.courses.CreateSubject(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return subject, nil
}

// TrainerSubjects lists the calling trainer's subjects.
func (s *CourseService) TrainerSubjects(ctx context.Context, trainerID string) ([]models.Subject, error) {
	subjects, err := s.courses.ListSubjectsByTrainer(ctx, trainerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// UsersByRole lists registered users holding a role, for the admin roster.
func (s *CourseService) UsersByRole(ctx context.Context, role models.UserRole) ([]models.UserInfo, error) {
	switch role {
	case models.RoleAdmin, models.RoleTrainer, models.RoleCandidate:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	users, err := s.users.ListByRole(ctx, role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	infos := make([]models.UserInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, models.UserInfo{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role})
	}
	return infos, nil
}

// InstituteCandidates lists candidate users at the calling trainer's
// institute.
func (s *CourseService) InstituteCandidates(ctx context.Context, trainerID string) ([]models.UserInfo, error) {
	profile, err := s.users.TrainerProfile(ctx, trainerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "trainer profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trainer profile")
	}
	users, err := s.users.ListInstituteCandidates(ctx, profile.InstituteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list candidates")
	}
	infos := make([]models.UserInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, models.UserInfo{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role})
	}
	return infos, nil
}
