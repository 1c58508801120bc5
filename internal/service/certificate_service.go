package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dlcampaign/dlc-api/internal/models"
	appErrors "github.com/dlcampaign/dlc-api/pkg/errors"
)

type certExamReader interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	CountPassedSubjects(ctx context.Context, candidateID, courseID string) (int, error)
}

type certCourseReader interface {
	FindSubjectByID(ctx context.Context, id string) (*models.Subject, error)
	CountSubjectsByCourse(ctx context.Context, courseID string) (int, error)
}

type certificateRepo interface {
	Insert(ctx context.Context, cert *models.CourseCertificate) (bool, error)
	Exists(ctx context.Context, candidateID, courseID string) (bool, error)
	ListByCandidate(ctx context.Context, candidateID string) ([]models.CourseCertificate, error)
}

// CertificateService decides certificate eligibility after every graded
// attempt and issues at most one certificate per (candidate, course).
type CertificateService struct {
	exams        certExamReader
	courses      certCourseReader
	certificates certificateRepo
	logger       *zap.Logger
}

// NewCertificateService constructs CertificateService.
func NewCertificateService(exams certExamReader, courses certCourseReader, certificates certificateRepo, logger *zap.Logger) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		exams:        exams,
		courses:      courses,
		certificates: certificates,
		logger:       logger,
	}
}

// MaybeIssue re-evaluates the candidate's standing in the course the exam
// belongs to and issues the course certificate if every subject now has a
// passing attempt. Returns true only when this call created the certificate;
// an already-issued certificate is a silent no-op, which makes the whole
// operation safe to retry.
func (s *CertificateService) MaybeIssue(ctx context.Context, candidateID, examID string) (bool, error) {
	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return false, fmt.Errorf("load exam: %w", err)
	}
	subject, err := s.courses.FindSubjectByID(ctx, exam.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return false, fmt.Errorf("load subject: %w", err)
	}

	// Once issued, repeat passing attempts skip the counting queries.
	issued, err := s.certificates.Exists(ctx, candidateID, subject.CourseID)
	if err != nil {
		return false, fmt.Errorf("check certificate: %w", err)
	}
	if issued {
		return false, nil
	}

	totalSubjects, err := s.courses.CountSubjectsByCourse(ctx, subject.CourseID)
	if err != nil {
		return false, fmt.Errorf("count course subjects: %w", err)
	}
	// A course with no subjects can never be completed.
	if totalSubjects == 0 {
		return false, nil
	}

	passedSubjects, err := s.exams.CountPassedSubjects(ctx, candidateID, subject.CourseID)
	if err != nil {
		return false, fmt.Errorf("count passed subjects: %w", err)
	}
	if passedSubjects < totalSubjects {
		return false, nil
	}

	cert := &models.CourseCertificate{
		CandidateID:     candidateID,
		CourseID:        subject.CourseID,
		CertificatePath: fmt.Sprintf("certificates/%s/%s.pdf", candidateID, subject.CourseID),
	}
	created, err := s.certificates.Insert(ctx, cert)
	if err != nil {
		return false, fmt.Errorf("issue certificate: %w", err)
	}
	return created, nil
}

// CandidateCertificates lists the calling candidate's certificates.
func (s *CertificateService) CandidateCertificates(ctx context.Context, candidateID string) ([]models.CourseCertificate, error) {
	certs, err := s.certificates.ListByCandidate(ctx, candidateID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return certs, nil
}
