package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dlcampaign/dlc-api/internal/models"
	appErrors "github.com/dlcampaign/dlc-api/pkg/errors"
)

type examRepo interface {
	Create(ctx context.Context, exam *models.Exam) error
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	FindOwned(ctx context.Context, examID, trainerID string) (*models.Exam, error)
	UpdateCSVPath(ctx context.Context, examID, path string) error
	ListBySubject(ctx context.Context, subjectID string) ([]models.Exam, error)
	ListAvailableForInstitute(ctx context.Context, instituteID string) ([]models.Exam, error)
	InsertAttempt(ctx context.Context, attempt *models.ExamAttempt) error
	ListAttemptsByCandidate(ctx context.Context, candidateID string) ([]models.ExamAttempt, error)
	ListAttemptsByExam(ctx context.Context, examID string) ([]models.ExamAttempt, error)
}

type subjectReader interface {
	FindSubjectByID(ctx context.Context, id string) (*models.Subject, error)
}

type candidateProfileReader interface {
	CandidateProfile(ctx context.Context, userID string) (*models.CandidateProfile, error)
}

type bankStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type bankCache interface {
	Get(ctx context.Context, examID, csvPath string) ([]models.Question, bool)
	Set(ctx context.Context, examID, csvPath string, questions []models.Question)
	Invalidate(ctx context.Context, examID, csvPath string)
}

type certificateIssuer interface {
	MaybeIssue(ctx context.Context, candidateID, examID string) (bool, error)
}

// ExamConfig carries grading and upload limits.
type ExamConfig struct {
	PassingThreshold float64
	MaxPageSize      int
	MaxUploadSize    int64
}

// CreateExamRequest creates an exam under a trainer-owned subject.
type CreateExamRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
	Title     string `json:"title" validate:"required"`
}

// ExamService orchestrates the submission pipeline: load bank, grade,
// record the attempt, evaluate certificate eligibility.
type ExamService struct {
	exams        examRepo
	subjects     subjectReader
	profiles     candidateProfileReader
	store        bankStore
	cache        bankCache
	certificates certificateIssuer
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	config       ExamConfig
}

// NewExamService constructs ExamService.
func NewExamService(exams examRepo, subjects subjectReader, profiles candidateProfileReader, store bankStore, cache bankCache, certificates certificateIssuer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config ExamConfig) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.PassingThreshold <= 0 {
		config.PassingThreshold = 40
	}
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = 50
	}
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = 5 * 1024 * 1024
	}
	return &ExamService{
		exams:        exams,
		subjects:     subjects,
		profiles:     profiles,
		store:        store,
		cache:        cache,
		certificates: certificates,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		config:       config,
	}
}

// Create registers a new exam for a subject the trainer owns.
func (s *ExamService) Create(ctx context.Context, trainerID string, req CreateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	subject, err := s.subjects.FindSubjectByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if subject.TrainerID != trainerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "subject not assigned to trainer")
	}

	exam := &models.Exam{SubjectID: req.SubjectID, Title: req.Title}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	return exam, nil
}

// UploadQuestionBank validates and stores a question bank CSV for an exam the
// trainer owns, then points the exam at the stored file. The header is
// checked before anything touches disk so a rejected file leaves no trace.
func (s *ExamService) UploadQuestionBank(ctx context.Context, trainerID, examID, filename string, r io.Reader) (string, error) {
	exam, err := s.exams.FindOwned(ctx, examID, trainerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrForbidden, "exam not found or not assigned to trainer")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	data, err := io.ReadAll(io.LimitReader(r, s.config.MaxUploadSize+1))
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInvalidFormat.Code, appErrors.ErrInvalidFormat.Status, "failed to read uploaded file")
	}
	if int64(len(data)) > s.config.MaxUploadSize {
		return "", appErrors.Clone(appErrors.ErrValidation, "uploaded file exceeds size limit")
	}
	if err := ValidateQuestionBankHeader(bytes.NewReader(data)); err != nil {
		return "", err
	}

	path := fmt.Sprintf("exams/%s/%s/%s", trainerID, examID, filepath.Base(filename))
	if _, err := s.store.Save(path, data); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store question bank")
	}
	if err := s.exams.UpdateCSVPath(ctx, examID, path); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam")
	}

	if s.cache != nil {
		if exam.CSVPath != nil {
			s.cache.Invalidate(ctx, examID, *exam.CSVPath)
		}
		s.cache.Invalidate(ctx, examID, path)
	}

	s.logger.Info("question bank uploaded",
		zap.String("exam_id", examID),
		zap.String("trainer_id", trainerID),
		zap.String("path", path),
	)
	return path, nil
}

// SubjectExams lists the exams under a subject the trainer owns.
func (s *ExamService) SubjectExams(ctx context.Context, trainerID, subjectID string) ([]models.Exam, error) {
	subject, err := s.subjects.FindSubjectByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if subject.TrainerID != trainerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "subject not assigned to trainer")
	}
	exams, err := s.exams.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, nil
}

// Questions returns one page of the answer-free question listing.
func (s *ExamService) Questions(ctx context.Context, examID string, page, pageSize int) (*models.QuestionPage, error) {
	exam, err := s.findExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	questions, err := s.loadBank(ctx, exam)
	if err != nil {
		return nil, err
	}
	result := PaginateQuestions(questions, page, pageSize, s.config.MaxPageSize)
	return &result, nil
}

// Submit grades a candidate's answer sheet, appends the attempt and kicks
// certificate evaluation. Nothing is persisted when loading or grading fails.
func (s *ExamService) Submit(ctx context.Context, candidateID string, submission models.ExamSubmission) (*models.ExamResult, error) {
	if err := s.validator.Struct(submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	exam, err := s.findExam(ctx, submission.ExamID)
	if err != nil {
		return nil, err
	}
	questions, err := s.loadBank(ctx, exam)
	if err != nil {
		return nil, err
	}

	summary, err := Grade(questions, submission.Answers, s.config.PassingThreshold)
	if err != nil {
		return nil, err
	}

	attempt := &models.ExamAttempt{
		CandidateID:     candidateID,
		ExamID:          exam.ID,
		Answers:         submission.Answers,
		ScorePercentage: summary.ScorePercentage,
		Passed:          summary.Passed,
	}
	if err := s.exams.InsertAttempt(ctx, attempt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attempt")
	}
	s.metrics.RecordAttempt(summary.Passed)

	// The attempt is already durable; a certificate hiccup must not fail the
	// submission. Issuance is idempotent so the next passing attempt retries.
	if issued, err := s.certificates.MaybeIssue(ctx, candidateID, exam.ID); err != nil {
		s.logger.Warn("certificate evaluation failed",
			zap.String("candidate_id", candidateID),
			zap.String("exam_id", exam.ID),
			zap.Error(err),
		)
	} else if issued {
		s.metrics.RecordCertificate()
		s.logger.Info("course certificate issued",
			zap.String("candidate_id", candidateID),
			zap.String("exam_id", exam.ID),
		)
	}

	return &models.ExamResult{
		ExamID:          exam.ID,
		ScorePercentage: summary.ScorePercentage,
		Passed:          summary.Passed,
		TotalQuestions:  summary.Total,
		CorrectAnswers:  summary.Correct,
		AttemptedOn:     attempt.AttemptedOn,
	}, nil
}

// Attempts returns the candidate's own attempt history.
func (s *ExamService) Attempts(ctx context.Context, candidateID string) ([]models.ExamAttempt, error) {
	attempts, err := s.exams.ListAttemptsByCandidate(ctx, candidateID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attempts")
	}
	return attempts, nil
}

// Available lists exams offered by trainers at the candidate's institute.
func (s *ExamService) Available(ctx context.Context, candidateID string) ([]models.Exam, error) {
	profile, err := s.profiles.CandidateProfile(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.Exam{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate profile")
	}
	exams, err := s.exams.ListAvailableForInstitute(ctx, profile.InstituteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, nil
}

// Results rolls up attempt statistics for an exam the trainer owns.
func (s *ExamService) Results(ctx context.Context, trainerID, examID string) (*models.ExamResults, error) {
	if _, err := s.exams.FindOwned(ctx, examID, trainerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "exam not found or not assigned to trainer")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	attempts, err := s.exams.ListAttemptsByExam(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attempts")
	}

	results := &models.ExamResults{ExamID: examID, Attempts: make([]models.AttemptRow, 0, len(attempts))}
	var scoreSum float64
	for _, attempt := range attempts {
		results.TotalAttempts++
		if attempt.Passed {
			results.PassedAttempts++
		}
		scoreSum += attempt.ScorePercentage
		results.Attempts = append(results.Attempts, models.AttemptRow{
			CandidateID: attempt.CandidateID,
			Score:       attempt.ScorePercentage,
			Passed:      attempt.Passed,
			AttemptedOn: attempt.AttemptedOn,
		})
	}
	if results.TotalAttempts > 0 {
		results.PassRate = float64(results.PassedAttempts) / float64(results.TotalAttempts) * 100
		results.AverageScore = scoreSum / float64(results.TotalAttempts)
	}
	return results, nil
}

func (s *ExamService) findExam(ctx context.Context, examID string) (*models.Exam, error) {
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return exam, nil
}

// loadBank re-derives the ordered question sequence from the exam's stored
// file reference, consulting the cache first.
func (s *ExamService) loadBank(ctx context.Context, exam *models.Exam) ([]models.Question, error) {
	if exam.CSVPath == nil || *exam.CSVPath == "" {
		return nil, appErrors.ErrNotConfigured
	}

	if s.cache != nil {
		if questions, ok := s.cache.Get(ctx, exam.ID, *exam.CSVPath); ok {
			s.metrics.RecordBankCache(true)
			return questions, nil
		}
		s.metrics.RecordBankCache(false)
	}

	file, err := s.store.Open(*exam.CSVPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErrors.ErrSourceNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open question bank")
	}
	defer file.Close() //nolint:errcheck

	questions, err := ParseQuestionBank(file)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, exam.ID, *exam.CSVPath, questions)
	}
	return questions, nil
}
