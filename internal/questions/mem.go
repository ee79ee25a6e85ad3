package questions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/premiosplatzi/polls/internal/models"
)

// MemStore is an in-memory Store, used when no database is configured and in tests.
type MemStore struct {
	mu           sync.RWMutex
	lastQuestion int64
	lastChoice   int64
	questions    map[int64]models.Question
	choices      map[int64][]models.Choice
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		questions: make(map[int64]models.Question),
		choices:   make(map[int64][]models.Choice),
	}
}

func (s *MemStore) Create(_ context.Context, q *models.Question) error {
	if err := validateQuestion(q); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuestion++
	q.ID = s.lastQuestion
	for i := range q.Choices {
		s.lastChoice++
		q.Choices[i].ID = s.lastChoice
		q.Choices[i].QuestionID = q.ID
		q.Choices[i].Votes = 0
	}
	stored := *q
	stored.Choices = nil
	s.questions[q.ID] = stored
	s.choices[q.ID] = append([]models.Choice(nil), q.Choices...)
	return nil
}

func (s *MemStore) GetByID(_ context.Context, id int64) (*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, ErrNotFound
	}
	q.Choices = append([]models.Choice{}, s.choices[id]...)
	return &q, nil
}

func (s *MemStore) GetVisible(ctx context.Context, id int64, now time.Time) (*models.Question, error) {
	q, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.IsVisible(q.PubDate, now) {
		return nil, ErrNotFound
	}
	return q, nil
}

func (s *MemStore) LatestVisible(_ context.Context, now time.Time, limit int) ([]models.Question, error) {
	s.mu.RLock()
	out := make([]models.Question, 0, len(s.questions))
	for _, q := range s.questions {
		if models.IsVisible(q.PubDate, now) {
			out = append(out, q)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].PubDate.Equal(out[j].PubDate) {
			return out[i].PubDate.After(out[j].PubDate)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) PublishedBetween(_ context.Context, from, to time.Time) ([]models.Question, error) {
	s.mu.RLock()
	out := make([]models.Question, 0)
	for _, q := range s.questions {
		if q.PubDate.After(from) && !q.PubDate.After(to) {
			out = append(out, q)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].PubDate.Equal(out[j].PubDate) {
			return out[i].PubDate.Before(out[j].PubDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemStore) AddChoice(_ context.Context, c *models.Choice) error {
	if err := validateChoiceText(c.ChoiceText); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[c.QuestionID]; !ok {
		return ErrNotFound
	}
	s.lastChoice++
	c.ID = s.lastChoice
	c.Votes = 0
	s.choices[c.QuestionID] = append(s.choices[c.QuestionID], *c)
	return nil
}

func (s *MemStore) Choices(_ context.Context, questionID int64) ([]models.Choice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.questions[questionID]; !ok {
		return nil, ErrNotFound
	}
	return append([]models.Choice{}, s.choices[questionID]...), nil
}

func (s *MemStore) Vote(_ context.Context, questionID, choiceID int64) (*models.Choice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.choices[questionID]
	for i := range list {
		if list[i].ID == choiceID {
			list[i].Votes++
			c := list[i]
			return &c, nil
		}
	}
	return nil, ErrChoiceNotFound
}
