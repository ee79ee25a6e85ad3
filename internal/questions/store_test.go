package questions

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/premiosplatzi/polls/internal/models"
	"github.com/premiosplatzi/polls/pkg/database"
)

var now = time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)

func days(n int) time.Time { return now.Add(time.Duration(n) * 24 * time.Hour) }

func createQuestion(t *testing.T, s Store, text string, pubDate time.Time, choices ...string) *models.Question {
	t.Helper()
	q := &models.Question{QuestionText: text, PubDate: pubDate}
	for _, c := range choices {
		q.Choices = append(q.Choices, models.Choice{ChoiceText: c})
	}
	require.NoError(t, s.Create(context.Background(), q))
	return q
}

func texts(list []models.Question) []string {
	out := make([]string, 0, len(list))
	for _, q := range list {
		out = append(out, q.QuestionText)
	}
	return out
}

func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("no questions gives empty list", func(t *testing.T) {
		s := newStore(t)
		list, err := s.LatestVisible(ctx, now, 0)
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})

	t.Run("future question is excluded", func(t *testing.T) {
		s := newStore(t)
		createQuestion(t, s, "future question", days(30))
		list, err := s.LatestVisible(ctx, now, 0)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("past question is included", func(t *testing.T) {
		s := newStore(t)
		q := createQuestion(t, s, "past question", days(-10))
		list, err := s.LatestVisible(ctx, now, 0)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, q.ID, list[0].ID)
	})

	t.Run("only past questions when both exist", func(t *testing.T) {
		s := newStore(t)
		createQuestion(t, s, "past question", days(-30))
		createQuestion(t, s, "future question", days(30))
		list, err := s.LatestVisible(ctx, now, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"past question"}, texts(list))
	})

	t.Run("two past questions newest first", func(t *testing.T) {
		s := newStore(t)
		createQuestion(t, s, "past question 2", days(-40))
		createQuestion(t, s, "past question 1", days(-30))
		list, err := s.LatestVisible(ctx, now, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"past question 1", "past question 2"}, texts(list))
	})

	t.Run("two future questions", func(t *testing.T) {
		s := newStore(t)
		createQuestion(t, s, "future question 1", days(30))
		createQuestion(t, s, "future question 2", days(40))
		list, err := s.LatestVisible(ctx, now, 0)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("pub date equal to now is visible", func(t *testing.T) {
		s := newStore(t)
		createQuestion(t, s, "right now", now)
		list, err := s.LatestVisible(ctx, now, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"right now"}, texts(list))
	})

	t.Run("ties are ordered by id and stable", func(t *testing.T) {
		s := newStore(t)
		a := createQuestion(t, s, "tie a", days(-1))
		b := createQuestion(t, s, "tie b", days(-1))
		createQuestion(t, s, "newer", days(0).Add(-time.Hour))
		first, err := s.LatestVisible(ctx, now, 0)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			again, err := s.LatestVisible(ctx, now, 0)
			require.NoError(t, err)
			assert.Equal(t, texts(first), texts(again))
		}
		require.Len(t, first, 3)
		assert.Equal(t, "newer", first[0].QuestionText)
		assert.Equal(t, a.ID, first[1].ID)
		assert.Equal(t, b.ID, first[2].ID)
	})

	t.Run("limit caps the list", func(t *testing.T) {
		s := newStore(t)
		for i := 1; i <= 7; i++ {
			createQuestion(t, s, "q", days(-i))
		}
		list, err := s.LatestVisible(ctx, now, 5)
		require.NoError(t, err)
		assert.Len(t, list, 5)
		for i := 1; i < len(list); i++ {
			assert.True(t, list[i-1].PubDate.After(list[i].PubDate))
		}
	})

	t.Run("get visible hides future questions", func(t *testing.T) {
		s := newStore(t)
		future := createQuestion(t, s, "future", days(30))
		past := createQuestion(t, s, "past", days(-30), "yes", "no")

		_, err := s.GetVisible(ctx, future.ID, now)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetVisible(ctx, 999999, now)
		assert.ErrorIs(t, err, ErrNotFound)

		got, err := s.GetVisible(ctx, past.ID, now)
		require.NoError(t, err)
		assert.Equal(t, "past", got.QuestionText)
		assert.True(t, got.PubDate.Equal(past.PubDate))
		require.Len(t, got.Choices, 2)
		assert.Equal(t, "yes", got.Choices[0].ChoiceText)

		byID, err := s.GetByID(ctx, future.ID)
		require.NoError(t, err)
		assert.Equal(t, "future", byID.QuestionText)
	})

	t.Run("create rejects blank text", func(t *testing.T) {
		s := newStore(t)
		err := s.Create(ctx, &models.Question{QuestionText: "   ", PubDate: now})
		assert.ErrorIs(t, err, ErrInvalidQuestion)
		err = s.Create(ctx, &models.Question{QuestionText: "ok", PubDate: now, Choices: []models.Choice{{ChoiceText: ""}}})
		assert.ErrorIs(t, err, ErrInvalidChoice)
	})

	t.Run("text length is counted in characters", func(t *testing.T) {
		s := newStore(t)
		text := "¿Quién " + strings.Repeat("é", 193)
		require.Len(t, []rune(text), 200)
		q := createQuestion(t, s, text, days(-1), strings.Repeat("ñ", 200))

		got, err := s.GetByID(context.Background(), q.ID)
		require.NoError(t, err)
		assert.Equal(t, text, got.QuestionText)

		tooLong := &models.Question{QuestionText: text + "é", PubDate: days(-1)}
		assert.ErrorIs(t, s.Create(context.Background(), tooLong), ErrInvalidQuestion)
		assert.ErrorIs(t, s.AddChoice(context.Background(), &models.Choice{QuestionID: q.ID, ChoiceText: strings.Repeat("ñ", 201)}), ErrInvalidChoice)
	})

	t.Run("add choice and vote", func(t *testing.T) {
		s := newStore(t)
		q := createQuestion(t, s, "Best course?", days(-1))
		other := createQuestion(t, s, "Other", days(-1), "x")
		c := &models.Choice{QuestionID: q.ID, ChoiceText: "Go"}
		require.NoError(t, s.AddChoice(ctx, c))
		assert.NotZero(t, c.ID)

		assert.ErrorIs(t, s.AddChoice(ctx, &models.Choice{QuestionID: 999999, ChoiceText: "x"}), ErrNotFound)

		updated, err := s.Vote(ctx, q.ID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, updated.Votes)
		updated, err = s.Vote(ctx, q.ID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Votes)

		_, err = s.Vote(ctx, q.ID, other.Choices[0].ID)
		assert.ErrorIs(t, err, ErrChoiceNotFound)

		choices, err := s.Choices(ctx, q.ID)
		require.NoError(t, err)
		require.Len(t, choices, 1)
		assert.Equal(t, 2, choices[0].Votes)
	})

	t.Run("concurrent votes are all counted", func(t *testing.T) {
		s := newStore(t)
		q := createQuestion(t, s, "Concurrent", days(-1), "a")
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Vote(ctx, q.ID, q.Choices[0].ID)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		choices, err := s.Choices(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, 20, choices[0].Votes)
	})

	t.Run("published between is half open", func(t *testing.T) {
		s := newStore(t)
		createQuestion(t, s, "at from", days(-2))
		createQuestion(t, s, "inside", days(-1))
		createQuestion(t, s, "at to", now)
		createQuestion(t, s, "after", days(1))
		list, err := s.PublishedBetween(ctx, days(-2), now)
		require.NoError(t, err)
		assert.Equal(t, []string{"inside", "at to"}, texts(list))
	})
}

func TestMemStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store { return NewMemStore() })
}

// TestRepository runs against a real PostgreSQL. Skipped unless TEST_DATABASE_URL is set.
func TestRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL integration test")
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, 4, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool, zap.NewNop()))

	runStoreContract(t, func(t *testing.T) Store {
		_, err := pool.Exec(ctx, `TRUNCATE polls_choice, polls_question RESTART IDENTITY`)
		require.NoError(t, err)
		return NewRepository(pool)
	})
}
