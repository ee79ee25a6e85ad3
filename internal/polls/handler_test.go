package polls

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/premiosplatzi/polls/internal/clock"
	"github.com/premiosplatzi/polls/internal/models"
	"github.com/premiosplatzi/polls/internal/questions"
	"github.com/premiosplatzi/polls/internal/realtime"
	"github.com/premiosplatzi/polls/web"
)

var now = time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)

type fixture struct {
	router *gin.Engine
	store  *questions.MemStore
	hub    *realtime.Hub
}

func setup(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tmpl, err := web.Templates()
	require.NoError(t, err)

	store := questions.NewMemStore()
	hub := realtime.NewHub(zap.NewNop(), nil, nil)
	h := NewHandler(store, clock.Fixed(now), hub, zap.NewNop())

	router := gin.New()
	router.SetHTMLTemplate(tmpl)
	router.GET("/polls/:id/results/", h.Results)
	router.POST("/polls/:id/vote/", h.Vote)
	router.GET("/polls/:id/live", h.Live)
	router.POST("/api/questions/:id/vote", h.VoteAPI)
	return fixture{router: router, store: store, hub: hub}
}

func (f fixture) question(t *testing.T, text string, offset time.Duration, choices ...string) *models.Question {
	t.Helper()
	q := &models.Question{QuestionText: text, PubDate: now.Add(offset)}
	for _, c := range choices {
		q.Choices = append(q.Choices, models.Choice{ChoiceText: c})
	}
	require.NoError(t, f.store.Create(context.Background(), q))
	return q
}

func (f fixture) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f fixture) postJSON(path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f fixture) get(path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

const month = 30 * 24 * time.Hour

func TestVote_RedirectsToResults(t *testing.T) {
	f := setup(t)
	q := f.question(t, "Best language?", -month, "Go", "Python")

	rr := f.postForm(fmt.Sprintf("/polls/%d/vote/", q.ID), url.Values{"choice": {fmt.Sprint(q.Choices[0].ID)}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, fmt.Sprintf("/polls/%d/results/", q.ID), rr.Header().Get("Location"))

	rr = f.get(fmt.Sprintf("/polls/%d/results/", q.ID))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Go -- 1 vote<")
	assert.Contains(t, rr.Body.String(), "Python -- 0 votes")
	assert.Contains(t, rr.Body.String(), fmt.Sprintf(`data-live="/polls/%d/live"`, q.ID))
	assert.Contains(t, rr.Body.String(), "new WebSocket(")
}

func TestVote_WithoutChoice(t *testing.T) {
	f := setup(t)
	q := f.question(t, "Best language?", -month, "Go")
	other := f.question(t, "Other", -month, "Elsewhere")

	for _, form := range []url.Values{
		{},
		{"choice": {"abc"}},
		{"choice": {fmt.Sprint(other.Choices[0].ID)}},
	} {
		rr := f.postForm(fmt.Sprintf("/polls/%d/vote/", q.ID), form)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "You didn&#39;t select a choice.")
		assert.Contains(t, rr.Body.String(), "Best language?")
	}

	choices, err := f.store.Choices(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Zero(t, choices[0].Votes)
}

func TestVote_FutureQuestion(t *testing.T) {
	f := setup(t)
	q := f.question(t, "Not yet", month, "a")

	rr := f.postForm(fmt.Sprintf("/polls/%d/vote/", q.ID), url.Values{"choice": {fmt.Sprint(q.Choices[0].ID)}})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, http.StatusNotFound, f.get(fmt.Sprintf("/polls/%d/results/", q.ID)).Code)
	assert.Equal(t, http.StatusNotFound, f.get(fmt.Sprintf("/polls/%d/live", q.ID)).Code)

	rr = f.postJSON(fmt.Sprintf("/api/questions/%d/vote", q.ID), VoteRequest{ChoiceID: q.Choices[0].ID})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	choices, err := f.store.Choices(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Zero(t, choices[0].Votes)
}

func TestVoteAPI(t *testing.T) {
	f := setup(t)
	q := f.question(t, "Tabs or spaces?", -time.Hour, "Tabs", "Spaces")

	rr := f.postJSON(fmt.Sprintf("/api/questions/%d/vote", q.ID), VoteRequest{ChoiceID: q.Choices[1].ID})
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data models.Choice `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Votes)
	assert.Equal(t, "Spaces", resp.Data.ChoiceText)

	rr = f.postJSON(fmt.Sprintf("/api/questions/%d/vote", q.ID), VoteRequest{ChoiceID: 12345})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.postJSON(fmt.Sprintf("/api/questions/%d/vote", q.ID), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLive_ReceivesVoteTally(t *testing.T) {
	f := setup(t)
	q := f.question(t, "Live?", -time.Hour, "yes")

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + fmt.Sprintf("/polls/%d/live", q.ID)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	room := realtime.QuestionRoom(q.ID)
	require.Eventually(t, func() bool { return f.hub.RoomSize(room) == 1 }, time.Second, 10*time.Millisecond)

	rr := f.postJSON(fmt.Sprintf("/api/questions/%d/vote", q.ID), VoteRequest{ChoiceID: q.Choices[0].ID})
	require.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg realtime.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, realtime.EventVoteCast, msg.Event)

	var ev VoteEvent
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, VoteEvent{QuestionID: q.ID, ChoiceID: q.Choices[0].ID, Votes: 1}, ev)
}
