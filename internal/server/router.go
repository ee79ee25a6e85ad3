// Package server assembles the HTTP routes of the polls service.
package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/premiosplatzi/polls/internal/auth"
	"github.com/premiosplatzi/polls/internal/clock"
	"github.com/premiosplatzi/polls/internal/middleware"
	"github.com/premiosplatzi/polls/internal/polls"
	"github.com/premiosplatzi/polls/internal/questions"
	"github.com/premiosplatzi/polls/internal/realtime"
	"github.com/premiosplatzi/polls/web"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	Questions    questions.Store
	Users        auth.UserStore
	JWT          *auth.JWTService
	Hub          *realtime.Hub
	Clock        clock.Clock
	Logger       *zap.Logger
	IndexLimit   int
	CORSOrigins  string
	EditorEmails []string
	HealthChecks map[string]HealthCheck
}

// NewRouter builds the gin engine with every route of the service.
func NewRouter(d Deps) (*gin.Engine, error) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = clock.RealClock{}
	}
	tmpl, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	questionHandler := questions.NewHandler(d.Questions, d.Clock, d.IndexLimit, d.Logger)
	pollHandler := polls.NewHandler(d.Questions, d.Clock, d.Hub, d.Logger)
	authHandler := auth.NewHandler(d.Users, d.JWT, d.EditorEmails, d.Logger)

	router := gin.New()
	router.SetHTMLTemplate(tmpl)
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(d.CORSOrigins))
	router.Use(middleware.Logger(d.Logger))

	router.GET("/health", health(d.HealthChecks, d.Logger))
	router.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/polls/") })

	// Pages
	pages := router.Group("/polls")
	{
		pages.GET("/", questionHandler.Index)
		pages.GET("/:id/", questionHandler.Detail)
		pages.GET("/:id/results/", pollHandler.Results)
		pages.POST("/:id/vote/", pollHandler.Vote)
		pages.GET("/:id/live", pollHandler.Live)
	}
	router.GET("/live", pollHandler.Announcements)

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	// JSON API
	api := router.Group("/api")
	{
		api.GET("/questions", questionHandler.List)
		api.GET("/questions/:id", questionHandler.Get)
		api.POST("/questions/:id/vote", pollHandler.VoteAPI)

		editor := api.Group("")
		editor.Use(middleware.JWT(d.JWT), middleware.RequireEditor())
		editor.POST("/questions", questionHandler.Create)
		editor.POST("/questions/:id/choices", questionHandler.AddChoice)
	}

	return router, nil
}
