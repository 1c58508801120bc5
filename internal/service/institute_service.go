package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dlcampaign/dlc-api/internal/models"
	"github.com/dlcampaign/dlc-api/internal/repository"
	appErrors "github.com/dlcampaign/dlc-api/pkg/errors"
)

type instituteRepo interface {
	Create(ctx context.Context, institute *models.Institute) error
	List(ctx context.Context) ([]models.Institute, error)
	FindByID(ctx context.Context, id string) (*models.Institute, error)
}

type instituteStatsReader interface {
	CountInstituteMembers(ctx context.Context, instituteID string) (candidates, trainers int, err error)
	CountInstituteCertificates(ctx context.Context, instituteID string) (int, error)
	InstituteAttemptAggregates(ctx context.Context, instituteID string) (*repository.AttemptAggregates, error)
}

// CreateInstituteRequest registers a training institute.
type CreateInstituteRequest struct {
	Name     string `json:"name" validate:"required"`
	District string `json:"district" validate:"required"`
	Block    string `json:"block" validate:"required"`
}

// InstituteService manages institutes and their outcome rollups.
type InstituteService struct {
	institutes instituteRepo
	stats      instituteStatsReader
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewInstituteService constructs InstituteService.
func NewInstituteService(institutes instituteRepo, stats instituteStatsReader, validate *validator.Validate, logger *zap.Logger) *InstituteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstituteService{institutes: institutes, stats: stats, validator: validate, logger: logger}
}

// Create registers an institute.
func (s *InstituteService) Create(ctx context.Context, req CreateInstituteRequest) (*models.Institute, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid institute payload")
	}
	institute := &models.Institute{Name: req.Name, District: req.District, Block: req.Block}
	if err := s.institutes.Create(ctx, institute); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create institute")
	}
	return institute, nil
}

// List returns all institutes.
func (s *InstituteService) List(ctx context.Context) ([]models.Institute, error) {
	institutes, err := s.institutes.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list institutes")
	}
	return institutes, nil
}

// Stats returns the outcome rollup for one institute.
func (s *InstituteService) Stats(ctx context.Context, instituteID string) (*models.InstituteStats, error) {
	institute, err := s.institutes.FindByID(ctx, instituteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institute not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institute")
	}

	candidates, trainers, err := s.stats.CountInstituteMembers(ctx, instituteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count members")
	}
	certificates, err := s.stats.CountInstituteCertificates(ctx, instituteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count certificates")
	}
	agg, err := s.stats.InstituteAttemptAggregates(ctx, instituteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attempts")
	}

	stats := &models.InstituteStats{
		Institute:        *institute,
		TotalCandidates:  candidates,
		TotalTrainers:    trainers,
		CompletedCourses: certificates,
	}
	if agg.Total > 0 {
		stats.PassRate = float64(agg.Passed) / float64(agg.Total) * 100
	}
	return stats, nil
}
