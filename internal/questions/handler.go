package questions

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/premiosplatzi/polls/internal/clock"
	"github.com/premiosplatzi/polls/internal/middleware"
	"github.com/premiosplatzi/polls/internal/models"
	"github.com/premiosplatzi/polls/pkg/response"
)

// NoPollsMessage is shown on the index page when nothing is published.
const NoPollsMessage = "No polls are available."

// CreateRequest is the body for POST /api/questions.
type CreateRequest struct {
	QuestionText string     `json:"question_text" binding:"required,max=200"`
	PubDate      *time.Time `json:"pub_date"` // defaults to now
	Choices      []string   `json:"choices" binding:"omitempty,dive,required,max=200"`
}

// AddChoiceRequest is the body for POST /api/questions/:id/choices.
type AddChoiceRequest struct {
	ChoiceText string `json:"choice_text" binding:"required,max=200"`
}

// ListItem is one entry of the index page and of GET /api/questions.
type ListItem struct {
	ID           int64     `json:"id"`
	QuestionText string    `json:"question_text"`
	PubDate      time.Time `json:"pub_date"`
	Recent       bool      `json:"recent"`
}

// Handler serves the polls pages and the questions API.
type Handler struct {
	store      Store
	clock      clock.Clock
	indexLimit int
	logger     *zap.Logger
}

// NewHandler creates a questions handler. indexLimit caps the index list; <= 0 shows everything.
func NewHandler(store Store, clk clock.Clock, indexLimit int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, clock: clk, indexLimit: indexLimit, logger: logger}
}

// Index handles GET /polls/.
func (h *Handler) Index(c *gin.Context) {
	items, err := h.latest(c)
	if err != nil {
		h.logger.Error("list questions", zap.Error(err))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Title":              "Polls",
		"LatestQuestionList": items,
	})
}

// Detail handles GET /polls/:id/.
func (h *Handler) Detail(c *gin.Context) {
	q, ok := h.visibleOr404(c)
	if !ok {
		return
	}
	RenderDetail(c, http.StatusOK, q, "")
}

// List handles GET /api/questions.
func (h *Handler) List(c *gin.Context) {
	items, err := h.latest(c)
	if err != nil {
		h.logger.Error("list questions", zap.Error(err))
		response.Internal(c, "failed to list questions")
		return
	}
	response.OK(c, gin.H{"questions": items})
}

// Get handles GET /api/questions/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := ParseID(c)
	if !ok {
		response.NotFound(c, ErrNotFound.Error())
		return
	}
	q, err := h.store.GetVisible(c.Request.Context(), id, h.clock.Now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, ErrNotFound.Error())
			return
		}
		h.logger.Error("get question", zap.Int64("question_id", id), zap.Error(err))
		response.Internal(c, "failed to get question")
		return
	}
	response.OK(c, q)
}

// Create handles POST /api/questions (editor).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	q := &models.Question{QuestionText: req.QuestionText, PubDate: h.clock.Now()}
	if req.PubDate != nil {
		q.PubDate = req.PubDate.UTC()
	}
	for _, text := range req.Choices {
		q.Choices = append(q.Choices, models.Choice{ChoiceText: text})
	}
	if err := h.store.Create(c.Request.Context(), q); err != nil {
		if errors.Is(err, ErrInvalidQuestion) || errors.Is(err, ErrInvalidChoice) {
			response.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("create question", zap.Error(err))
		response.Internal(c, "failed to create question")
		return
	}
	fields := []zap.Field{zap.Int64("question_id", q.ID), zap.Time("pub_date", q.PubDate)}
	if claims, ok := middleware.CurrentUser(c); ok {
		fields = append(fields, zap.String("editor", claims.Email))
	}
	h.logger.Info("question created", fields...)
	response.Created(c, q)
}

// AddChoice handles POST /api/questions/:id/choices (editor).
func (h *Handler) AddChoice(c *gin.Context) {
	id, ok := ParseID(c)
	if !ok {
		response.NotFound(c, ErrNotFound.Error())
		return
	}
	var req AddChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	choice := &models.Choice{QuestionID: id, ChoiceText: req.ChoiceText}
	if err := h.store.AddChoice(c.Request.Context(), choice); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, ErrNotFound.Error())
		case errors.Is(err, ErrInvalidChoice):
			response.BadRequest(c, err.Error())
		default:
			h.logger.Error("add choice", zap.Int64("question_id", id), zap.Error(err))
			response.Internal(c, "failed to add choice")
		}
		return
	}
	response.Created(c, choice)
}

func (h *Handler) latest(c *gin.Context) ([]ListItem, error) {
	now := h.clock.Now()
	list, err := h.store.LatestVisible(c.Request.Context(), now, h.indexLimit)
	if err != nil {
		return nil, err
	}
	items := make([]ListItem, 0, len(list))
	for i := range list {
		items = append(items, ListItem{
			ID:           list[i].ID,
			QuestionText: list[i].QuestionText,
			PubDate:      list[i].PubDate,
			Recent:       list[i].WasPublishedRecently(now),
		})
	}
	return items, nil
}

func (h *Handler) visibleOr404(c *gin.Context) (*models.Question, bool) {
	id, ok := ParseID(c)
	if !ok {
		RenderNotFound(c)
		return nil, false
	}
	q, err := h.store.GetVisible(c.Request.Context(), id, h.clock.Now())
	if errors.Is(err, ErrNotFound) {
		RenderNotFound(c)
		return nil, false
	}
	if err != nil {
		h.logger.Error("get question", zap.Int64("question_id", id), zap.Error(err))
		c.String(http.StatusInternalServerError, "internal error")
		return nil, false
	}
	return q, true
}

// ParseID reads the :id path parameter. Malformed IDs are reported as absent.
func ParseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// RenderDetail renders the question page with its vote form.
func RenderDetail(c *gin.Context, status int, q *models.Question, errorMessage string) {
	c.HTML(status, "detail.html", gin.H{
		"Title":        q.QuestionText,
		"Question":     q,
		"ErrorMessage": errorMessage,
	})
}

// RenderNotFound renders the 404 page without saying whether the question exists.
func RenderNotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "404.html", gin.H{
		"Title":   "Not Found",
		"Message": "No Question matches the given query.",
	})
}
