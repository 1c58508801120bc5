package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dlcampaign/dlc-api/internal/models"
	appErrors "github.com/dlcampaign/dlc-api/pkg/errors"
	"github.com/dlcampaign/dlc-api/pkg/export"
	"github.com/dlcampaign/dlc-api/pkg/jobs"
	"github.com/dlcampaign/dlc-api/pkg/storage"
)

type exportRepo interface {
	Insert(ctx context.Context, export *models.ResultExport) error
	UpdateStatus(ctx context.Context, id string, status models.ExportStatus, filePath, errorText *string) error
	FindByID(ctx context.Context, id string) (*models.ResultExport, error)
}

type exportExamReader interface {
	FindOwned(ctx context.Context, examID, trainerID string) (*models.Exam, error)
	ListAttemptsByExam(ctx context.Context, examID string) ([]models.ExamAttempt, error)
}

type exportStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

// ExportStatusResponse pairs the export row with a download token once the
// file is ready.
type ExportStatusResponse struct {
	Export      models.ResultExport `json:"export"`
	DownloadURL string              `json:"download_url,omitempty"`
	ExpiresAt   *time.Time          `json:"expires_at,omitempty"`
}

// ExportService renders exam attempt histories to CSV or PDF on a background
// worker pool and serves them through signed, expiring download tokens.
type ExportService struct {
	exports exportRepo
	exams   exportExamReader
	store   exportStore
	signer  *storage.SignedURLSigner
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewExportService constructs ExportService. Call Start before accepting
// requests and Stop on shutdown.
func NewExportService(exports exportRepo, exams exportExamReader, store exportStore, signer *storage.SignedURLSigner, metrics *MetricsService, logger *zap.Logger, queueCfg jobs.QueueConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		exports: exports,
		exams:   exams,
		store:   store,
		signer:  signer,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		metrics: metrics,
		logger:  logger,
	}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("result-exports", s.process, queueCfg)
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Request queues an export of one exam's attempt history for a trainer who
// owns the exam.
func (s *ExportService) Request(ctx context.Context, trainerID, examID string, format models.ExportFormat) (*models.ResultExport, error) {
	switch format {
	case models.ExportFormatCSV, models.ExportFormatPDF:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if _, err := s.exams.FindOwned(ctx, examID, trainerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "exam not found or not assigned to trainer")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	exp := &models.ResultExport{
		ID:          uuid.NewString(),
		ExamID:      examID,
		RequestedBy: trainerID,
		Format:      format,
		Status:      models.ExportStatusQueued,
	}
	if err := s.exports.Insert(ctx, exp); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: exp.ID, Type: "results_export", Payload: exp.ID}); err != nil {
		msg := err.Error()
		_ = s.exports.UpdateStatus(ctx, exp.ID, models.ExportStatusFailed, nil, &msg)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}
	return exp, nil
}

// Status returns the export row, with a signed download token once finished.
// Only the requesting trainer may poll it.
func (s *ExportService) Status(ctx context.Context, trainerID, exportID string) (*ExportStatusResponse, error) {
	exp, err := s.exports.FindByID(ctx, exportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export")
	}
	if exp.RequestedBy != trainerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export belongs to another trainer")
	}

	resp := &ExportStatusResponse{Export: *exp}
	if exp.Status == models.ExportStatusFinished && exp.FilePath != nil {
		token, expiresAt, err := s.signer.Generate(exp.ID, *exp.FilePath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
		}
		resp.DownloadURL = token
		resp.ExpiresAt = &expiresAt
	}
	return resp, nil
}

// Download resolves a signed token to the rendered file. The token alone is
// the credential; expired or tampered tokens are rejected by the signer.
func (s *ExportService) Download(ctx context.Context, token string) (*os.File, *models.ResultExport, error) {
	exportID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	exp, err := s.exports.FindByID(ctx, exportID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export")
	}
	if exp.Status != models.ExportStatusFinished || exp.FilePath == nil || *exp.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export file not available")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export file not available")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return file, exp, nil
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	exportID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	exp, err := s.exports.FindByID(ctx, exportID)
	if err != nil {
		return fmt.Errorf("load export %s: %w", exportID, err)
	}
	if err := s.exports.UpdateStatus(ctx, exp.ID, models.ExportStatusRunning, nil, nil); err != nil {
		return fmt.Errorf("mark export running: %w", err)
	}

	path, err := s.render(ctx, exp)
	if err != nil {
		msg := err.Error()
		if updateErr := s.exports.UpdateStatus(ctx, exp.ID, models.ExportStatusFailed, nil, &msg); updateErr != nil {
			s.logger.Error("failed to mark export failed", zap.String("export_id", exp.ID), zap.Error(updateErr))
		}
		s.metrics.RecordExport(string(exp.Format), false)
		return fmt.Errorf("render export %s: %w", exp.ID, err)
	}
	if err := s.exports.UpdateStatus(ctx, exp.ID, models.ExportStatusFinished, &path, nil); err != nil {
		return fmt.Errorf("mark export finished: %w", err)
	}
	s.metrics.RecordExport(string(exp.Format), true)
	s.logger.Info("results export finished", zap.String("export_id", exp.ID), zap.String("path", path))
	return nil
}

func (s *ExportService) render(ctx context.Context, exp *models.ResultExport) (string, error) {
	attempts, err := s.exams.ListAttemptsByExam(ctx, exp.ExamID)
	if err != nil {
		return "", fmt.Errorf("list attempts: %w", err)
	}

	data := export.Dataset{
		Headers: []string{"candidate_id", "score_percentage", "passed", "attempted_on"},
		Rows:    make([]map[string]string, 0, len(attempts)),
	}
	for _, attempt := range attempts {
		data.Rows = append(data.Rows, map[string]string{
			"candidate_id":     attempt.CandidateID,
			"score_percentage": strconv.FormatFloat(attempt.ScorePercentage, 'f', 2, 64),
			"passed":           strconv.FormatBool(attempt.Passed),
			"attempted_on":     attempt.AttemptedOn.UTC().Format(time.RFC3339),
		})
	}

	var rendered []byte
	switch exp.Format {
	case models.ExportFormatPDF:
		rendered, err = s.pdf.Render(data, fmt.Sprintf("Exam Results %s", exp.ExamID))
	default:
		rendered, err = s.csv.Render(data)
	}
	if err != nil {
		return "", fmt.Errorf("render %s: %w", exp.Format, err)
	}

	path := fmt.Sprintf("exports/%s/%s.%s", exp.ExamID, exp.ID, exp.Format)
	if _, err := s.store.Save(path, rendered); err != nil {
		return "", fmt.Errorf("store rendered file: %w", err)
	}
	return path, nil
}
