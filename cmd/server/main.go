// Package main runs the polls HTTP server with live updates, the publication announcer and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/premiosplatzi/polls/config"
	"github.com/premiosplatzi/polls/internal/auth"
	"github.com/premiosplatzi/polls/internal/clock"
	"github.com/premiosplatzi/polls/internal/jobs"
	"github.com/premiosplatzi/polls/internal/questions"
	"github.com/premiosplatzi/polls/internal/realtime"
	"github.com/premiosplatzi/polls/internal/server"
	"github.com/premiosplatzi/polls/pkg/database"
	"github.com/premiosplatzi/polls/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	clk := clock.RealClock{}

	var (
		questionStore questions.Store
		userStore     auth.UserStore
	)
	checks := map[string]server.HealthCheck{}
	switch cfg.Database.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		questionStore = questions.NewMemStore()
		userStore = auth.NewMemUserStore()
	default:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		questionStore = questions.NewRepository(pool)
		userStore = auth.NewRepository(pool)
		checks["postgres"] = pool.Ping
	}

	hub := realtime.NewHub(logger, nil, nil)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		checks["redis"] = rdb.Check
		redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, redisPubSub, redisPubSub)
	} else {
		logger.Info("REDIS_ADDR not set, live updates stay on this instance")
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	router, err := server.NewRouter(server.Deps{
		Questions:    questionStore,
		Users:        userStore,
		JWT:          jwtService,
		Hub:          hub,
		Clock:        clk,
		Logger:       logger,
		IndexLimit:   cfg.Polls.IndexLimit,
		CORSOrigins:  cfg.Server.CORSAllowedOrigins,
		EditorEmails: cfg.JWT.EditorEmails,
		HealthChecks: checks,
	})
	if err != nil {
		logger.Fatal("router", zap.Error(err))
	}

	// Publication announcer
	scheduler := cron.New()
	if cfg.Polls.AnnounceSchedule != "" {
		announcer := jobs.NewAnnouncer(questionStore, clk, hub, logger)
		if _, err := jobs.Schedule(scheduler, cfg.Polls.AnnounceSchedule, announcer); err != nil {
			logger.Fatal("schedule announcer", zap.Error(err))
		}
		scheduler.Start()
		logger.Info("announcer started", zap.String("schedule", cfg.Polls.AnnounceSchedule))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Database.Store))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	<-scheduler.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
