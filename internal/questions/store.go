package questions

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/premiosplatzi/polls/internal/models"
)

const maxTextLen = 200

var (
	ErrNotFound        = errors.New("question not found")
	ErrChoiceNotFound  = errors.New("choice not found")
	ErrInvalidQuestion = errors.New("invalid question")
	ErrInvalidChoice   = errors.New("invalid choice")
)

// Store is the question persistence contract shared by the PostgreSQL and in-memory implementations.
type Store interface {
	// Create inserts q and any choices it carries, assigning their IDs.
	Create(ctx context.Context, q *models.Question) error
	// GetByID returns a question with its choices regardless of pub date.
	GetByID(ctx context.Context, id int64) (*models.Question, error)
	// GetVisible returns a question with its choices only if it is published at now.
	// Unknown and not-yet-published questions both yield ErrNotFound.
	GetVisible(ctx context.Context, id int64, now time.Time) (*models.Question, error)
	// LatestVisible returns questions with pub_date <= now, newest first, ties by ascending ID.
	// limit <= 0 means no limit. Choices are not loaded.
	LatestVisible(ctx context.Context, now time.Time, limit int) ([]models.Question, error)
	// PublishedBetween returns questions with from < pub_date <= to, oldest first.
	PublishedBetween(ctx context.Context, from, to time.Time) ([]models.Question, error)
	AddChoice(ctx context.Context, c *models.Choice) error
	Choices(ctx context.Context, questionID int64) ([]models.Choice, error)
	// Vote adds one vote to choiceID, which must belong to questionID, and returns the updated choice.
	Vote(ctx context.Context, questionID, choiceID int64) (*models.Choice, error)
}

func validateQuestion(q *models.Question) error {
	text := strings.TrimSpace(q.QuestionText)
	if text == "" || utf8.RuneCountInString(text) > maxTextLen || q.PubDate.IsZero() {
		return ErrInvalidQuestion
	}
	for i := range q.Choices {
		if err := validateChoiceText(q.Choices[i].ChoiceText); err != nil {
			return err
		}
	}
	return nil
}

func validateChoiceText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" || utf8.RuneCountInString(text) > maxTextLen {
		return ErrInvalidChoice
	}
	return nil
}
