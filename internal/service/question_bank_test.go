package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dlcampaign/dlc-api/internal/models"
	appErrors "github.com/dlcampaign/dlc-api/pkg/errors"
)

const sampleBank = `question,option_a,option_b,option_c,option_d,correct_answer
What is a mouse?,Input device,Output device,Storage,Network,a
What is a monitor?,Input device,Output device,Storage,Network,b
,,,,,
What is a hard disk?,Input device,Output device,Storage,Network,C
`

func TestParseQuestionBank(t *testing.T) {
	questions, err := ParseQuestionBank(strings.NewReader(sampleBank))
	require.NoError(t, err)
	require.Len(t, questions, 3)

	assert.Equal(t, "What is a mouse?", questions[0].Prompt)
	assert.Equal(t, "a", questions[0].CorrectAnswer)
	// Answers normalise to lowercase.
	assert.Equal(t, "c", questions[2].CorrectAnswer)
}

func TestParseQuestionBankMissingColumn(t *testing.T) {
	raw := "question,option_a,option_b,option_d,correct_answer\nq,1,2,4,a\n"
	_, err := ParseQuestionBank(strings.NewReader(raw))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidFormat.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "option_c")
}

func TestParseQuestionBankBadAnswer(t *testing.T) {
	raw := "question,option_a,option_b,option_c,option_d,correct_answer\nq,1,2,3,4,e\n"
	_, err := ParseQuestionBank(strings.NewReader(raw))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidFormat.Code, appErrors.FromError(err).Code)
}

func TestParseQuestionBankSkipsIncompleteRows(t *testing.T) {
	raw := "question,option_a,option_b,option_c,option_d,correct_answer\n" +
		"kept,1,2,3,4,a\n" +
		",1,2,3,4,a\n" +
		"no answer,1,2,3,4,\n"
	questions, err := ParseQuestionBank(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "kept", questions[0].Prompt)
}

func TestParseQuestionBankEmptyFile(t *testing.T) {
	_, err := ParseQuestionBank(strings.NewReader(""))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidFormat.Code, appErrors.FromError(err).Code)
}

func TestParseQuestionBankHeaderOnly(t *testing.T) {
	raw := "question,option_a,option_b,option_c,option_d,correct_answer\n"
	questions, err := ParseQuestionBank(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Empty(t, questions)
}

func TestValidateQuestionBankHeader(t *testing.T) {
	require.NoError(t, ValidateQuestionBankHeader(strings.NewReader(sampleBank)))

	err := ValidateQuestionBankHeader(strings.NewReader("question,option_a\n"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidFormat.Code, appErrors.FromError(err).Code)
}

func makeQuestions(n int) []models.Question {
	questions := make([]models.Question, n)
	for i := range questions {
		questions[i] = models.Question{Prompt: "q", CorrectAnswer: "a"}
	}
	return questions
}

func TestPaginateQuestionsClampsToLastPage(t *testing.T) {
	page := PaginateQuestions(makeQuestions(25), 99, 10, 50)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Questions, 5)
}

func TestPaginateQuestionsCoversWholeBank(t *testing.T) {
	questions := makeQuestions(23)
	seen := 0
	for p := 1; ; p++ {
		page := PaginateQuestions(questions, p, 10, 50)
		seen += len(page.Questions)
		if p >= page.TotalPages {
			break
		}
	}
	assert.Equal(t, len(questions), seen)
}

func TestPaginateQuestionsEmptyBank(t *testing.T) {
	page := PaginateQuestions(nil, 1, 10, 50)
	assert.Equal(t, 0, page.Page)
	assert.Equal(t, 0, page.TotalPages)
	assert.Empty(t, page.Questions)
	assert.NotNil(t, page.Questions)
}

func TestPaginateQuestionsBounds(t *testing.T) {
	// Page size is clamped to the configured maximum.
	page := PaginateQuestions(makeQuestions(100), 1, 500, 50)
	assert.Equal(t, 50, page.PageSize)
	assert.Len(t, page.Questions, 50)

	// Non-positive inputs fall back to sane values.
	page = PaginateQuestions(makeQuestions(5), -3, 0, 50)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.PageSize)
}

func TestPaginateQuestionsStripsAnswers(t *testing.T) {
	questions := []models.Question{{Prompt: "q", OptionA: "1", CorrectAnswer: "a"}}
	page := PaginateQuestions(questions, 1, 10, 50)
	require.Len(t, page.Questions, 1)
	assert.Equal(t, "q", page.Questions[0].Prompt)
}
