package questions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/premiosplatzi/polls/internal/models"
)

// foreign_key_violation
const pgForeignKeyViolation = "23503"

// Repository handles question and choice persistence in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a questions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a question and its choices in one transaction.
func (r *Repository) Create(ctx context.Context, q *models.Question) error {
	if err := validateQuestion(q); err != nil {
		return err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertQuestion = `INSERT INTO polls_question (question_text, pub_date)
		VALUES ($1, $2)
		RETURNING id`
	if err := tx.QueryRow(ctx, insertQuestion, q.QuestionText, q.PubDate).Scan(&q.ID); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	const insertChoice = `INSERT INTO polls_choice (question_id, choice_text)
		VALUES ($1, $2)
		RETURNING id, votes`
	for i := range q.Choices {
		c := &q.Choices[i]
		c.QuestionID = q.ID
		if err := tx.QueryRow(ctx, insertChoice, q.ID, c.ChoiceText).Scan(&c.ID, &c.Votes); err != nil {
			return fmt.Errorf("insert choice: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID returns a question with its choices.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Question, error) {
	const query = `SELECT id, question_text, pub_date FROM polls_question WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetVisible returns a question with its choices if it is published at now.
func (r *Repository) GetVisible(ctx context.Context, id int64, now time.Time) (*models.Question, error) {
	const query = `SELECT id, question_text, pub_date FROM polls_question WHERE id = $1 AND pub_date <= $2`
	return r.getOne(ctx, query, id, now)
}

func (r *Repository) getOne(ctx context.Context, query string, args ...any) (*models.Question, error) {
	var q models.Question
	err := r.pool.QueryRow(ctx, query, args...).Scan(&q.ID, &q.QuestionText, &q.PubDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get question: %w", err)
	}
	q.PubDate = q.PubDate.UTC()
	choices, err := r.Choices(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	q.Choices = choices
	return &q, nil
}

// LatestVisible returns published questions newest first.
func (r *Repository) LatestVisible(ctx context.Context, now time.Time, limit int) ([]models.Question, error) {
	query := `SELECT id, question_text, pub_date FROM polls_question
		WHERE pub_date <= $1
		ORDER BY pub_date DESC, id ASC`
	args := []any{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.list(ctx, query, args...)
}

// PublishedBetween returns questions whose pub_date lies in (from, to], oldest first.
func (r *Repository) PublishedBetween(ctx context.Context, from, to time.Time) ([]models.Question, error) {
	const query = `SELECT id, question_text, pub_date FROM polls_question
		WHERE pub_date > $1 AND pub_date <= $2
		ORDER BY pub_date ASC, id ASC`
	return r.list(ctx, query, from, to)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]models.Question, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()
	list := make([]models.Question, 0)
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.QuestionText, &q.PubDate); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.PubDate = q.PubDate.UTC()
		list = append(list, q)
	}
	return list, rows.Err()
}

// AddChoice inserts a choice for an existing question.
func (r *Repository) AddChoice(ctx context.Context, c *models.Choice) error {
	if err := validateChoiceText(c.ChoiceText); err != nil {
		return err
	}
	const query = `INSERT INTO polls_choice (question_id, choice_text)
		VALUES ($1, $2)
		RETURNING id, votes`
	err := r.pool.QueryRow(ctx, query, c.QuestionID, c.ChoiceText).Scan(&c.ID, &c.Votes)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert choice: %w", err)
	}
	return nil
}

// Choices returns the choices of a question in creation order.
func (r *Repository) Choices(ctx context.Context, questionID int64) ([]models.Choice, error) {
	const query = `SELECT id, question_id, choice_text, votes FROM polls_choice
		WHERE question_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, questionID)
	if err != nil {
		return nil, fmt.Errorf("list choices: %w", err)
	}
	defer rows.Close()
	list := make([]models.Choice, 0)
	for rows.Next() {
		var c models.Choice
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.ChoiceText, &c.Votes); err != nil {
			return nil, fmt.Errorf("scan choice: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Vote increments a choice's vote count atomically.
func (r *Repository) Vote(ctx context.Context, questionID, choiceID int64) (*models.Choice, error) {
	const query = `UPDATE polls_choice SET votes = votes + 1
		WHERE id = $1 AND question_id = $2
		RETURNING id, question_id, choice_text, votes`
	var c models.Choice
	err := r.pool.QueryRow(ctx, query, choiceID, questionID).Scan(&c.ID, &c.QuestionID, &c.ChoiceText, &c.Votes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("vote: %w", err)
	}
	return &c, nil
}
