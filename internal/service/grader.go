package service

import (
	"strconv"
	"strings"

	"github.com/dlcampaign/dlc-api/internal/models"
	appErrors "github.com/dlcampaign/dlc-api/pkg/errors"
)

// GradeSummary is the outcome of grading one submission.
type GradeSummary struct {
	ScorePercentage float64
	Passed          bool
	Total           int
	Correct         int
}

// Grade scores a submission against an ordered question sequence. Pure
// function; the caller persists the result.
//
// Answers are keyed by the question's 0-based index rendered as a string.
// Missing, out-of-range and unknown keys are ignored. Comparison is
// case-insensitive exact match. An empty question sequence is an error so a
// misconfigured exam can never produce a NaN score.
func Grade(questions []models.Question, answers models.AnswerMap, passingThreshold float64) (GradeSummary, error) {
	total := len(questions)
	if total == 0 {
		return GradeSummary{}, appErrors.ErrEmptyBank
	}

	correct := 0
	for i, q := range questions {
		submitted, ok := answers[strconv.Itoa(i)]
		if !ok {
			continue
		}
		if strings.ToLower(submitted) == q.CorrectAnswer {
			correct++
		}
	}

	score := float64(correct) / float64(total) * 100
	return GradeSummary{
		ScorePercentage: score,
		Passed:          score >= passingThreshold,
		Total:           total,
		Correct:         correct,
	}, nil
}
