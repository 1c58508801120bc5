package service

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlcampaign/dlc-api/internal/models"
	appErrors "github.com/dlcampaign/dlc-api/pkg/errors"
	"github.com/dlcampaign/dlc-api/pkg/jobs"
	"github.com/dlcampaign/dlc-api/pkg/storage"
)

type mockExportRepo struct {
	exports map[string]*models.ResultExport
}

func newMockExportRepo() *mockExportRepo {
	return &mockExportRepo{exports: make(map[string]*models.ResultExport)}
}

func (m *mockExportRepo) Insert(ctx context.Context, export *models.ResultExport) error {
	clone := *export
	m.exports[export.ID] = &clone
	return nil
}

func (m *mockExportRepo) UpdateStatus(ctx context.Context, id string, status models.ExportStatus, filePath, errorText *string) error {
	export, ok := m.exports[id]
	if !ok {
		return sql.ErrNoRows
	}
	export.Status = status
	if filePath != nil {
		export.FilePath = filePath
	}
	export.ErrorText = errorText
	export.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *mockExportRepo) FindByID(ctx context.Context, id string) (*models.ResultExport, error) {
	export, ok := m.exports[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *export
	return &clone, nil
}

type exportFixture struct {
	repo  *mockExportRepo
	exams *mockExamRepo
	store *storage.LocalStorage
	svc   *ExportService
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	f := &exportFixture{
		repo:  newMockExportRepo(),
		exams: newMockExamRepo(),
		store: store,
	}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	f.svc = NewExportService(f.repo, f.exams, store, signer, nil, nil, jobs.QueueConfig{Workers: 1})

	f.exams.exams["exam-1"] = &models.Exam{ID: "exam-1", SubjectID: "subj-1", Title: "t"}
	f.exams.owners["exam-1"] = "trainer-1"
	f.exams.attempts = []models.ExamAttempt{
		{ExamID: "exam-1", CandidateID: "c1", ScorePercentage: 80, Passed: true, AttemptedOn: time.Now().UTC()},
		{ExamID: "exam-1", CandidateID: "c2", ScorePercentage: 20, Passed: false, AttemptedOn: time.Now().UTC()},
	}
	return f
}

func TestExportRequestValidation(t *testing.T) {
	f := newExportFixture(t)

	_, err := f.svc.Request(context.Background(), "trainer-1", "exam-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Request(context.Background(), "other-trainer", "exam-1", models.ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestExportRequestQueues(t *testing.T) {
	f := newExportFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.svc.Start(ctx)
	defer f.svc.Stop()

	export, err := f.svc.Request(context.Background(), "trainer-1", "exam-1", models.ExportFormatCSV)
	require.NoError(t, err)
	assert.NotEmpty(t, export.ID)
	assert.Equal(t, models.ExportStatusQueued, export.Status)
}

func TestExportProcessRendersCSV(t *testing.T) {
	f := newExportFixture(t)
	export := &models.ResultExport{ID: "exp-1", ExamID: "exam-1", RequestedBy: "trainer-1", Format: models.ExportFormatCSV, Status: models.ExportStatusQueued}
	require.NoError(t, f.repo.Insert(context.Background(), export))

	err := f.svc.process(context.Background(), jobs.Job{ID: "exp-1", Type: "results_export", Payload: "exp-1"})
	require.NoError(t, err)

	stored, err := f.repo.FindByID(context.Background(), "exp-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, stored.Status)
	require.NotNil(t, stored.FilePath)

	file, err := f.store.Open(*stored.FilePath)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	raw, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "candidate_id")
	assert.Contains(t, string(raw), "c1")
}

func TestExportProcessRendersPDF(t *testing.T) {
	f := newExportFixture(t)
	export := &models.ResultExport{ID: "exp-2", ExamID: "exam-1", RequestedBy: "trainer-1", Format: models.ExportFormatPDF, Status: models.ExportStatusQueued}
	require.NoError(t, f.repo.Insert(context.Background(), export))

	err := f.svc.process(context.Background(), jobs.Job{ID: "exp-2", Type: "results_export", Payload: "exp-2"})
	require.NoError(t, err)

	stored, err := f.repo.FindByID(context.Background(), "exp-2")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, stored.Status)
	require.NotNil(t, stored.FilePath)
	assert.True(t, f.store.Exists(*stored.FilePath))
}

func TestExportStatusAndDownload(t *testing.T) {
	f := newExportFixture(t)
	export := &models.ResultExport{ID: "exp-3", ExamID: "exam-1", RequestedBy: "trainer-1", Format: models.ExportFormatCSV, Status: models.ExportStatusQueued}
	require.NoError(t, f.repo.Insert(context.Background(), export))
	require.NoError(t, f.svc.process(context.Background(), jobs.Job{Payload: "exp-3"}))

	status, err := f.svc.Status(context.Background(), "trainer-1", "exp-3")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, status.Export.Status)
	require.NotEmpty(t, status.DownloadURL)

	_, err = f.svc.Status(context.Background(), "other-trainer", "exp-3")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	file, stored, err := f.svc.Download(context.Background(), status.DownloadURL)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck
	assert.Equal(t, "exp-3", stored.ID)

	_, _, err = f.svc.Download(context.Background(), "tampered.token.value.here")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
