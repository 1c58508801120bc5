package service

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/dlcampaign/dlc-api/internal/models"
	appErrors "github.com/dlcampaign/dlc-api/pkg/errors"
)

// requiredColumns are the header fields a question bank file must carry.
// Extra columns are ignored.
var requiredColumns = []string{"question", "option_a", "option_b", "option_c", "option_d", "correct_answer"}

// ParseQuestionBank reads a question bank CSV into an ordered question
// sequence. Row order after skip-filtering defines each question's implicit
// index; listing and grading both go through this function so indices agree.
//
// Rows missing a question or correct_answer value are skipped. A
// correct_answer outside a-d fails the whole file: a bad answer key should
// surface to the trainer on first read, not at grading time.
func ParseQuestionBank(r io.Reader) ([]models.Question, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidFormat.Code, appErrors.ErrInvalidFormat.Status, "question bank file has no header row")
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, appErrors.Clone(appErrors.ErrInvalidFormat, "question bank file missing required column: "+col)
		}
	}

	field := func(record []string, col string) string {
		i := index[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var questions []models.Question
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidFormat.Code, appErrors.ErrInvalidFormat.Status, "unreadable question bank row")
		}

		prompt := field(record, "question")
		answer := strings.ToLower(field(record, "correct_answer"))
		if prompt == "" || answer == "" {
			// Blank or padding row.
			continue
		}
		switch answer {
		case "a", "b", "c", "d":
		default:
			return nil, appErrors.Clone(appErrors.ErrInvalidFormat, "correct_answer must be one of a, b, c, d")
		}

		questions = append(questions, models.Question{
			Prompt:        prompt,
			OptionA:       field(record, "option_a"),
			OptionB:       field(record, "option_b"),
			OptionC:       field(record, "option_c"),
			OptionD:       field(record, "option_d"),
			CorrectAnswer: answer,
		})
	}

	return questions, nil
}

// ValidateQuestionBankHeader checks only the header row. Used before an
// uploaded file is committed to storage.
func ValidateQuestionBankHeader(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidFormat.Code, appErrors.ErrInvalidFormat.Status, "question bank file has no header row")
	}
	present := make(map[string]struct{}, len(header))
	for _, name := range header {
		present[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}
	for _, col := range requiredColumns {
		if _, ok := present[col]; !ok {
			return appErrors.Clone(appErrors.ErrInvalidFormat, "question bank file missing required column: "+col)
		}
	}
	return nil
}

// PaginateQuestions slices the answer-free question sequence.
//
// The requested page is clamped to the last page rather than erroring: asking
// for page 99 of a 2-page bank returns page 2. This mirrors the behaviour
// candidates' clients already depend on.
func PaginateQuestions(questions []models.Question, page, pageSize, maxPageSize int) models.QuestionPage {
	if maxPageSize <= 0 {
		maxPageSize = 50
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page < 1 {
		page = 1
	}

	total := len(questions)
	totalPages := 0
	if total > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	if totalPages > 0 {
		if page > totalPages {
			page = totalPages
		}
	} else {
		page = 0
	}

	result := models.QuestionPage{
		Questions:  []models.CandidateQuestion{},
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
	if page == 0 {
		return result
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}
	for _, q := range questions[start:end] {
		result.Questions = append(result.Questions, q.Candidate())
	}
	return result
}
