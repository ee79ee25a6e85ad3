// Package jobs holds scheduled background work.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/premiosplatzi/polls/internal/clock"
	"github.com/premiosplatzi/polls/internal/questions"
	"github.com/premiosplatzi/polls/internal/realtime"
)

const runTimeout = 30 * time.Second

// Publisher delivers an event to a realtime room.
type Publisher interface {
	Publish(room, event string, payload any)
}

// Published is the payload of a question_published event.
type Published struct {
	ID           int64     `json:"id"`
	QuestionText string    `json:"question_text"`
	PubDate      time.Time `json:"pub_date"`
}

// Lookback is how far behind the previous run each run searches again, so a row whose insert
// commits after a tick already passed its pub date is still announced.
const Lookback = 5 * time.Minute

// Announcer broadcasts questions whose pub date has passed since its previous run.
// Questions already visible at startup are not announced. A question created with a pub date
// more than Lookback in the past is visible at once and is never announced.
type Announcer struct {
	store  questions.Store
	clock  clock.Clock
	pub    Publisher
	logger *zap.Logger

	mu        sync.Mutex
	start     time.Time
	last      time.Time
	announced map[int64]time.Time // id -> pub date, for questions inside the lookback window
}

// NewAnnouncer creates an announcer whose watermark starts at the clock's current time.
func NewAnnouncer(store questions.Store, clk clock.Clock, pub Publisher, logger *zap.Logger) *Announcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := clk.Now()
	return &Announcer{
		store:     store,
		clock:     clk,
		pub:       pub,
		logger:    logger,
		start:     now,
		last:      now,
		announced: make(map[int64]time.Time),
	}
}

// Run announces questions published in (last run - Lookback, now] that were not announced yet, and
// returns how many it announced. The watermark only advances when the query succeeds, so a failed
// run is retried on the next tick.
func (a *Announcer) Run(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if !now.After(a.last) {
		return 0, nil
	}
	from := a.last.Add(-Lookback)
	if from.Before(a.start) {
		from = a.start
	}
	list, err := a.store.PublishedBetween(ctx, from, now)
	if err != nil {
		return 0, fmt.Errorf("published between: %w", err)
	}
	n := 0
	for _, q := range list {
		if _, ok := a.announced[q.ID]; ok {
			continue
		}
		a.pub.Publish(realtime.RoomAnnouncements, realtime.EventQuestionPublished, Published{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			PubDate:      q.PubDate,
		})
		a.announced[q.ID] = q.PubDate
		n++
		a.logger.Info("question published", zap.Int64("question_id", q.ID), zap.Time("pub_date", q.PubDate))
	}
	a.last = now

	// The next run starts at now - Lookback and never sees these again.
	cutoff := now.Add(-Lookback)
	for id, pubDate := range a.announced {
		if !pubDate.After(cutoff) {
			delete(a.announced, id)
		}
	}
	return n, nil
}

// Schedule registers the announcer on c with a cron spec such as "@every 1m".
func Schedule(c *cron.Cron, spec string, a *Announcer) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := a.Run(ctx); err != nil {
			a.logger.Warn("announcer run failed", zap.Error(err))
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule announcer %q: %w", spec, err)
	}
	return id, nil
}
