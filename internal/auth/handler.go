package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/premiosplatzi/polls/internal/models"
	"github.com/premiosplatzi/polls/pkg/response"
	"github.com/premiosplatzi/polls/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	FullName string `json:"full_name" binding:"required"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.Account `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	users        UserStore
	jwt          *JWTService
	editorEmails map[string]bool
	logger       *zap.Logger
}

// NewHandler creates an auth handler. Accounts registered with one of editorEmails get the editor role;
// everyone else is a voter.
func NewHandler(users UserStore, jwt *JWTService, editorEmails []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	editors := make(map[string]bool, len(editorEmails))
	for _, e := range editorEmails {
		editors[normalizeEmail(e)] = true
	}
	return &Handler{users: users, jwt: jwt, editorEmails: editors, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	role := models.RoleVoter
	if h.editorEmails[normalizeEmail(req.Email)] {
		role = models.RoleEditor
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.Email, hash, req.FullName, role)
	if errors.Is(err, ErrEmailTaken) {
		response.Conflict(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("create user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	h.respondWithToken(c, user, true)
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			h.logger.Error("get user", zap.Error(err))
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	h.respondWithToken(c, user, false)
}

func (h *Handler) respondWithToken(c *gin.Context, user *models.User, created bool) {
	token, err := h.jwt.Generate(user)
	if err != nil {
		h.logger.Error("sign token", zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}
	body := TokenResponse{Token: token, User: user.Account()}
	if created {
		response.Created(c, body)
		return
	}
	response.OK(c, body)
}
