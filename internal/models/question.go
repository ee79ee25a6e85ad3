package models

import (
	"time"
)

// RecentWindow is how long after publication a question counts as recent.
const RecentWindow = 24 * time.Hour

// Question is a poll question. It is visible once PubDate is reached.
type Question struct {
	ID           int64     `json:"id"`
	QuestionText string    `json:"question_text"`
	PubDate      time.Time `json:"pub_date"`
	Choices      []Choice  `json:"choices,omitempty"`
}

// Choice is one answer option of a question with its running vote count.
type Choice struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	ChoiceText string `json:"choice_text"`
	Votes      int    `json:"votes"`
}

// IsVisible reports whether a question published at pubDate can be shown at now.
func IsVisible(pubDate, now time.Time) bool {
	return !pubDate.After(now)
}

// IsRecent reports whether pubDate falls in (now-24h, now].
func IsRecent(pubDate, now time.Time) bool {
	return now.Add(-RecentWindow).Before(pubDate) && IsVisible(pubDate, now)
}

// WasPublishedRecently reports whether q was published within the last day.
func (q *Question) WasPublishedRecently(now time.Time) bool {
	return IsRecent(q.PubDate, now)
}

// TotalVotes sums the votes over the loaded choices.
func (q *Question) TotalVotes() int {
	n := 0
	for _, c := range q.Choices {
		n += c.Votes
	}
	return n
}
