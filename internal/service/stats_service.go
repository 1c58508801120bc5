package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/dlcampaign/dlc-api/internal/models"
	"github.com/dlcampaign/dlc-api/internal/repository"
	appErrors "github.com/dlcampaign/dlc-api/pkg/errors"
)

type statsReader interface {
	SystemCounts(ctx context.Context) (*repository.EntityCounts, error)
	SystemAttemptAggregates(ctx context.Context) (*repository.AttemptAggregates, error)
	CountCertificates(ctx context.Context) (int, error)
	CountCandidateCertificates(ctx context.Context, candidateID string) (int, error)
	CountCandidatePassedSubjects(ctx context.Context, candidateID string) (int, error)
	CountCandidatePassedAttempts(ctx context.Context, candidateID string) (int, error)
}

// StatsService serves platform-wide and per-candidate rollups.
type StatsService struct {
	stats  statsReader
	logger *zap.Logger
}

// NewStatsService constructs StatsService.
func NewStatsService(stats statsReader, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{stats: stats, logger: logger}
}

// SystemAnalytics returns the admin dashboard rollup. Rates are 0 when there
// is nothing to average.
func (s *StatsService) SystemAnalytics(ctx context.Context) (*models.SystemAnalytics, error) {
	counts, err := s.stats.SystemCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count entities")
	}
	agg, err := s.stats.SystemAttemptAggregates(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attempts")
	}
	certificates, err := s.stats.CountCertificates(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count certificates")
	}

	analytics := &models.SystemAnalytics{
		TotalCandidates:         counts.Candidates,
		TotalTrainers:           counts.Trainers,
		TotalInstitutes:         counts.Institutes,
		TotalCourses:            counts.Courses,
		TotalExamAttempts:       agg.Total,
		AverageExamScore:        agg.AverageScore,
		TotalCertificatesIssued: certificates,
	}
	if agg.Total > 0 {
		analytics.PassRate = float64(agg.Passed) / float64(agg.Total) * 100
	}
	return analytics, nil
}

// CandidateProgress returns the calling candidate's programme standing.
func (s *StatsService) CandidateProgress(ctx context.Context, candidateID string) (*models.CandidateProgress, error) {
	counts, err := s.stats.SystemCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count entities")
	}
	passedSubjects, err := s.stats.CountCandidatePassedSubjects(ctx, candidateID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count passed subjects")
	}
	passedAttempts, err := s.stats.CountCandidatePassedAttempts(ctx, candidateID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count passed attempts")
	}
	certificates, err := s.stats.CountCandidateCertificates(ctx, candidateID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count certificates")
	}

	progress := &models.CandidateProgress{
		TotalCourses:       counts.Courses,
		TotalSubjects:      counts.Subjects,
		CompletedSubjects:  passedSubjects,
		PassedAttempts:     passedAttempts,
		EarnedCertificates: certificates,
	}
	if counts.Subjects > 0 {
		progress.CompletionPercentage = float64(passedSubjects) / float64(counts.Subjects) * 100
	}
	return progress, nil
}
