// Package polls handles voting on published questions and their live results.
package polls

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/premiosplatzi/polls/internal/clock"
	"github.com/premiosplatzi/polls/internal/models"
	"github.com/premiosplatzi/polls/internal/questions"
	"github.com/premiosplatzi/polls/internal/realtime"
	"github.com/premiosplatzi/polls/pkg/response"
)

// NoChoiceMessage is shown when a vote names no valid choice.
const NoChoiceMessage = "You didn't select a choice."

// VoteRequest is the body for POST /api/questions/:id/vote.
type VoteRequest struct {
	ChoiceID int64 `json:"choice_id" binding:"required"`
}

// VoteEvent is broadcast to a question's room after each vote.
type VoteEvent struct {
	QuestionID int64 `json:"question_id"`
	ChoiceID   int64 `json:"choice_id"`
	Votes      int   `json:"votes"`
}

// Handler handles voting, results and the live sockets.
type Handler struct {
	store  questions.Store
	clock  clock.Clock
	hub    *realtime.Hub
	logger *zap.Logger
}

// NewHandler creates a polls handler.
func NewHandler(store questions.Store, clk clock.Clock, hub *realtime.Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, clock: clk, hub: hub, logger: logger}
}

// Results handles GET /polls/:id/results/.
func (h *Handler) Results(c *gin.Context) {
	q, ok := h.visible(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "results.html", gin.H{
		"Title":    q.QuestionText,
		"Question": q,
	})
}

// Vote handles POST /polls/:id/vote/ from the detail page form.
func (h *Handler) Vote(c *gin.Context) {
	q, ok := h.visible(c)
	if !ok {
		return
	}
	choiceID, err := strconv.ParseInt(c.PostForm("choice"), 10, 64)
	if err != nil {
		questions.RenderDetail(c, http.StatusBadRequest, q, NoChoiceMessage)
		return
	}
	if _, err := h.vote(c, q.ID, choiceID); err != nil {
		if errors.Is(err, questions.ErrChoiceNotFound) {
			questions.RenderDetail(c, http.StatusBadRequest, q, NoChoiceMessage)
			return
		}
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/polls/%d/results/", q.ID))
}

// VoteAPI handles POST /api/questions/:id/vote.
func (h *Handler) VoteAPI(c *gin.Context) {
	id, ok := questions.ParseID(c)
	if !ok {
		response.NotFound(c, questions.ErrNotFound.Error())
		return
	}
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if _, err := h.store.GetVisible(c.Request.Context(), id, h.clock.Now()); err != nil {
		h.apiError(c, id, err)
		return
	}
	choice, err := h.vote(c, id, req.ChoiceID)
	if err != nil {
		h.apiError(c, id, err)
		return
	}
	response.OK(c, choice)
}

// Live handles GET /polls/:id/live, a WebSocket streaming vote_cast events of a published question.
func (h *Handler) Live(c *gin.Context) {
	q, ok := h.visible(c)
	if !ok {
		return
	}
	realtime.ServeRoom(h.hub, h.logger, realtime.QuestionRoom(q.ID), c)
}

// Announcements handles GET /live, a WebSocket streaming question_published events.
func (h *Handler) Announcements(c *gin.Context) {
	realtime.ServeRoom(h.hub, h.logger, realtime.RoomAnnouncements, c)
}

func (h *Handler) vote(c *gin.Context, questionID, choiceID int64) (*models.Choice, error) {
	choice, err := h.store.Vote(c.Request.Context(), questionID, choiceID)
	if err != nil {
		if !errors.Is(err, questions.ErrChoiceNotFound) {
			h.logger.Error("vote", zap.Int64("question_id", questionID), zap.Int64("choice_id", choiceID), zap.Error(err))
		}
		return nil, err
	}
	h.hub.Publish(realtime.QuestionRoom(questionID), realtime.EventVoteCast, VoteEvent{
		QuestionID: questionID,
		ChoiceID:   choice.ID,
		Votes:      choice.Votes,
	})
	return choice, nil
}

func (h *Handler) visible(c *gin.Context) (*models.Question, bool) {
	id, ok := questions.ParseID(c)
	if !ok {
		questions.RenderNotFound(c)
		return nil, false
	}
	q, err := h.store.GetVisible(c.Request.Context(), id, h.clock.Now())
	if errors.Is(err, questions.ErrNotFound) {
		questions.RenderNotFound(c)
		return nil, false
	}
	if err != nil {
		h.logger.Error("get question", zap.Int64("question_id", id), zap.Error(err))
		c.String(http.StatusInternalServerError, "internal error")
		return nil, false
	}
	return q, true
}

func (h *Handler) apiError(c *gin.Context, id int64, err error) {
	switch {
	case errors.Is(err, questions.ErrNotFound):
		response.NotFound(c, questions.ErrNotFound.Error())
	case errors.Is(err, questions.ErrChoiceNotFound):
		response.NotFound(c, questions.ErrChoiceNotFound.Error())
	default:
		h.logger.Error("vote api", zap.Int64("question_id", id), zap.Error(err))
		response.Internal(c, "failed to record vote")
	}
}
