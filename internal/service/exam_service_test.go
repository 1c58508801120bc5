package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlcampaign/dlc-api/internal/models"
	appErrors "github.com/dlcampaign/dlc-api/pkg/errors"
	"github.com/dlcampaign/dlc-api/pkg/storage"
)

type mockExamRepo struct {
	exams    map[string]*models.Exam
	owners   map[string]string
	attempts []models.ExamAttempt
	csvPaths map[string]string
}

func newMockExamRepo() *mockExamRepo {
	return &mockExamRepo{
		exams:    make(map[string]*models.Exam),
		owners:   make(map[string]string),
		csvPaths: make(map[string]string),
	}
}

func (m *mockExamRepo) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = "exam-new"
	}
	m.exams[exam.ID] = exam
	return nil
}

func (m *mockExamRepo) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	exam, ok := m.exams[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *exam
	return &clone, nil
}

func (m *mockExamRepo) FindOwned(ctx context.Context, examID, trainerID string) (*models.Exam, error) {
	if m.owners[examID] != trainerID {
		return nil, sql.ErrNoRows
	}
	return m.FindByID(ctx, examID)
}

func (m *mockExamRepo) UpdateCSVPath(ctx context.Context, examID, path string) error {
	m.csvPaths[examID] = path
	if exam, ok := m.exams[examID]; ok {
		exam.CSVPath = &path
	}
	return nil
}

func (m *mockExamRepo) ListBySubject(ctx context.Context, subjectID string) ([]models.Exam, error) {
	var exams []models.Exam
	for _, exam := range m.exams {
		if exam.SubjectID == subjectID {
			exams = append(exams, *exam)
		}
	}
	return exams, nil
}

func (m *mockExamRepo) ListAvailableForInstitute(ctx context.Context, instituteID string) ([]models.Exam, error) {
	var exams []models.Exam
	for _, exam := range m.exams {
		exams = append(exams, *exam)
	}
	return exams, nil
}

func (m *mockExamRepo) InsertAttempt(ctx context.Context, attempt *models.ExamAttempt) error {
	m.attempts = append(m.attempts, *attempt)
	return nil
}

func (m *mockExamRepo) ListAttemptsByCandidate(ctx context.Context, candidateID string) ([]models.ExamAttempt, error) {
	var out []models.ExamAttempt
	for _, a := range m.attempts {
		if a.CandidateID == candidateID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockExamRepo) ListAttemptsByExam(ctx context.Context, examID string) ([]models.ExamAttempt, error) {
	var out []models.ExamAttempt
	for _, a := range m.attempts {
		if a.ExamID == examID {
			out = append(out, a)
		}
	}
	return out, nil
}

type mockSubjectReader struct {
	subjects map[string]*models.Subject
}

func (m *mockSubjectReader) FindSubjectByID(ctx context.Context, id string) (*models.Subject, error) {
	subject, ok := m.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return subject, nil
}

type mockProfileReader struct {
	profiles map[string]*models.CandidateProfile
}

func (m *mockProfileReader) CandidateProfile(ctx context.Context, userID string) (*models.CandidateProfile, error) {
	profile, ok := m.profiles[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return profile, nil
}

type memBankCache struct {
	entries map[string][]models.Question
}

func (m *memBankCache) key(examID, csvPath string) string { return examID + "|" + csvPath }

func (m *memBankCache) Get(ctx context.Context, examID, csvPath string) ([]models.Question, bool) {
	q, ok := m.entries[m.key(examID, csvPath)]
	return q, ok
}

func (m *memBankCache) Set(ctx context.Context, examID, csvPath string, questions []models.Question) {
	if m.entries == nil {
		m.entries = make(map[string][]models.Question)
	}
	m.entries[m.key(examID, csvPath)] = questions
}

func (m *memBankCache) Invalidate(ctx context.Context, examID, csvPath string) {
	delete(m.entries, m.key(examID, csvPath))
}

type mockIssuer struct {
	calls int
	err   error
}

func (m *mockIssuer) MaybeIssue(ctx context.Context, candidateID, examID string) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	return true, nil
}

type examFixture struct {
	repo     *mockExamRepo
	subjects *mockSubjectReader
	profiles *mockProfileReader
	store    *storage.LocalStorage
	cache    *memBankCache
	issuer   *mockIssuer
	svc      *ExamService
}

func newExamFixture(t *testing.T) *examFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	f := &examFixture{
		repo:     newMockExamRepo(),
		subjects: &mockSubjectReader{subjects: map[string]*models.Subject{}},
		profiles: &mockProfileReader{profiles: map[string]*models.CandidateProfile{}},
		store:    store,
		cache:    &memBankCache{},
		issuer:   &mockIssuer{},
	}
	f.svc = NewExamService(f.repo, f.subjects, f.profiles, f.store, f.cache, f.issuer, nil, nil, nil, ExamConfig{
		PassingThreshold: 40,
		MaxPageSize:      50,
		MaxUploadSize:    1 << 20,
	})
	return f
}

func (f *examFixture) addExamWithBank(t *testing.T, examID, csv string) {
	t.Helper()
	path := "exams/trainer-1/" + examID + "/bank.csv"
	_, err := f.store.Save(path, []byte(csv))
	require.NoError(t, err)
	f.repo.exams[examID] = &models.Exam{ID: examID, SubjectID: "subj-1", Title: "t", CSVPath: &path}
	f.repo.owners[examID] = "trainer-1"
}

func TestQuestionsNotConfigured(t *testing.T) {
	f := newExamFixture(t)
	f.repo.exams["exam-1"] = &models.Exam{ID: "exam-1", SubjectID: "subj-1"}

	_, err := f.svc.Questions(context.Background(), "exam-1", 1, 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotConfigured.Code, appErrors.FromError(err).Code)
}

func TestQuestionsSourceMissing(t *testing.T) {
	f := newExamFixture(t)
	path := "exams/trainer-1/exam-1/gone.csv"
	f.repo.exams["exam-1"] = &models.Exam{ID: "exam-1", SubjectID: "subj-1", CSVPath: &path}

	_, err := f.svc.Questions(context.Background(), "exam-1", 1, 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSourceNotFound.Code, appErrors.FromError(err).Code)
}

func TestQuestionsUnknownExam(t *testing.T) {
	f := newExamFixture(t)
	_, err := f.svc.Questions(context.Background(), "nope", 1, 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestQuestionsPaginates(t *testing.T) {
	f := newExamFixture(t)
	f.addExamWithBank(t, "exam-1", sampleBank)

	page, err := f.svc.Questions(context.Background(), "exam-1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Questions, 2)
}

func TestQuestionsServedFromCacheAfterFirstLoad(t *testing.T) {
	f := newExamFixture(t)
	f.addExamWithBank(t, "exam-1", sampleBank)

	_, err := f.svc.Questions(context.Background(), "exam-1", 1, 10)
	require.NoError(t, err)

	// Remove the file; the cached parse keeps serving.
	require.NoError(t, f.store.Delete(*f.repo.exams["exam-1"].CSVPath))
	page, err := f.svc.Questions(context.Background(), "exam-1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
}

func TestSubmitHappyPath(t *testing.T) {
	f := newExamFixture(t)
	f.addExamWithBank(t, "exam-1", sampleBank)

	result, err := f.svc.Submit(context.Background(), "cand-1", models.ExamSubmission{
		ExamID:  "exam-1",
		Answers: models.AnswerMap{"0": "a", "1": "b", "2": "c"},
	})
	require.NoError(t, err)
	assert.InDelta(t, 100, result.ScorePercentage, 0.0001)
	assert.True(t, result.Passed)
	assert.Equal(t, 3, result.TotalQuestions)
	require.Len(t, f.repo.attempts, 1)
	assert.Equal(t, "cand-1", f.repo.attempts[0].CandidateID)
	assert.Equal(t, 1, f.issuer.calls)
}

func TestSubmitEmptyBankRecordsNothing(t *testing.T) {
	f := newExamFixture(t)
	f.addExamWithBank(t, "exam-1", "question,option_a,option_b,option_c,option_d,correct_answer\n")

	_, err := f.svc.Submit(context.Background(), "cand-1", models.ExamSubmission{
		ExamID:  "exam-1",
		Answers: models.AnswerMap{"0": "a"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmptyBank.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.repo.attempts)
	assert.Zero(t, f.issuer.calls)
}

func TestSubmitSurvivesCertificateFailure(t *testing.T) {
	f := newExamFixture(t)
	f.addExamWithBank(t, "exam-1", sampleBank)
	f.issuer.err = errors.New("certificate backend down")

	result, err := f.svc.Submit(context.Background(), "cand-1", models.ExamSubmission{
		ExamID:  "exam-1",
		Answers: models.AnswerMap{"0": "a", "1": "b", "2": "c"},
	})
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Len(t, f.repo.attempts, 1)
}

func TestUploadQuestionBankNotOwned(t *testing.T) {
	f := newExamFixture(t)
	f.repo.exams["exam-1"] = &models.Exam{ID: "exam-1", SubjectID: "subj-1"}
	f.repo.owners["exam-1"] = "someone-else"

	_, err := f.svc.UploadQuestionBank(context.Background(), "trainer-1", "exam-1", "bank.csv", strings.NewReader(sampleBank))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUploadQuestionBankRejectsBadHeader(t *testing.T) {
	f := newExamFixture(t)
	f.repo.exams["exam-1"] = &models.Exam{ID: "exam-1", SubjectID: "subj-1"}
	f.repo.owners["exam-1"] = "trainer-1"

	_, err := f.svc.UploadQuestionBank(context.Background(), "trainer-1", "exam-1", "bank.csv", strings.NewReader("question,option_a\nq,1\n"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidFormat.Code, appErrors.FromError(err).Code)
	// Rejected upload leaves the exam untouched.
	assert.Empty(t, f.repo.csvPaths)
}

func TestUploadQuestionBankStoresAndPointsExam(t *testing.T) {
	f := newExamFixture(t)
	f.repo.exams["exam-1"] = &models.Exam{ID: "exam-1", SubjectID: "subj-1"}
	f.repo.owners["exam-1"] = "trainer-1"

	path, err := f.svc.UploadQuestionBank(context.Background(), "trainer-1", "exam-1", "bank.csv", strings.NewReader(sampleBank))
	require.NoError(t, err)
	assert.Equal(t, "exams/trainer-1/exam-1/bank.csv", path)
	assert.Equal(t, path, f.repo.csvPaths["exam-1"])
	assert.True(t, f.store.Exists(path))
}

func TestUploadQuestionBankSizeLimit(t *testing.T) {
	f := newExamFixture(t)
	f.repo.exams["exam-1"] = &models.Exam{ID: "exam-1", SubjectID: "subj-1"}
	f.repo.owners["exam-1"] = "trainer-1"
	f.svc.config.MaxUploadSize = 16

	_, err := f.svc.UploadQuestionBank(context.Background(), "trainer-1", "exam-1", "bank.csv", strings.NewReader(sampleBank))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAvailableWithoutProfileIsEmpty(t *testing.T) {
	f := newExamFixture(t)
	exams, err := f.svc.Available(context.Background(), "cand-1")
	require.NoError(t, err)
	assert.Empty(t, exams)
}

func TestResultsRollup(t *testing.T) {
	f := newExamFixture(t)
	f.addExamWithBank(t, "exam-1", sampleBank)
	f.repo.attempts = []models.ExamAttempt{
		{ExamID: "exam-1", CandidateID: "c1", ScorePercentage: 100, Passed: true},
		{ExamID: "exam-1", CandidateID: "c2", ScorePercentage: 0, Passed: false},
		{ExamID: "exam-1", CandidateID: "c1", ScorePercentage: 50, Passed: true},
	}

	results, err := f.svc.Results(context.Background(), "trainer-1", "exam-1")
	require.NoError(t, err)
	assert.Equal(t, 3, results.TotalAttempts)
	assert.Equal(t, 2, results.PassedAttempts)
	assert.InDelta(t, 66.6667, results.PassRate, 0.001)
	assert.InDelta(t, 50, results.AverageScore, 0.0001)
}

func TestResultsForbiddenForOtherTrainer(t *testing.T) {
	f := newExamFixture(t)
	f.addExamWithBank(t, "exam-1", sampleBank)

	_, err := f.svc.Results(context.Background(), "other-trainer", "exam-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSubjectExamsOwnershipScoped(t *testing.T) {
	f := newExamFixture(t)
	f.subjects.subjects["subj-1"] = &models.Subject{ID: "subj-1", CourseID: "course-1", TrainerID: "trainer-1"}
	f.addExamWithBank(t, "exam-1", sampleBank)

	exams, err := f.svc.SubjectExams(context.Background(), "trainer-1", "subj-1")
	require.NoError(t, err)
	assert.Len(t, exams, 1)

	_, err = f.svc.SubjectExams(context.Background(), "other-trainer", "subj-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCreateExamChecksSubjectOwnership(t *testing.T) {
	f := newExamFixture(t)
	f.subjects.subjects["subj-1"] = &models.Subject{ID: "subj-1", CourseID: "course-1", TrainerID: "trainer-1"}

	_, err := f.svc.Create(context.Background(), "other-trainer", CreateExamRequest{SubjectID: "subj-1", Title: "t"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	exam, err := f.svc.Create(context.Background(), "trainer-1", CreateExamRequest{SubjectID: "subj-1", Title: "t"})
	require.NoError(t, err)
	assert.NotEmpty(t, exam.ID)
}
