// Package main runs the publication announcer as its own process, so a fleet of servers
// started with an empty ANNOUNCE_SCHEDULE announces each question once.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/premiosplatzi/polls/config"
	"github.com/premiosplatzi/polls/internal/clock"
	"github.com/premiosplatzi/polls/internal/jobs"
	"github.com/premiosplatzi/polls/internal/questions"
	"github.com/premiosplatzi/polls/internal/realtime"
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
	if cfg.Database.Store != config.StorePostgres {
		logger.Fatal("worker needs STORE=postgres to share questions with the servers")
	}
	if cfg.Redis.Addr == "" {
		logger.Fatal("worker needs REDIS_ADDR to reach the servers' live clients")
	}
	// The fleet shares one env file, where ANNOUNCE_SCHEDULE is empty to keep servers quiet.
	schedule := cfg.Polls.AnnounceSchedule
	if schedule == "" {
		schedule = "@every 1m"
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// No local clients: Publish only goes out through Redis.
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	announcer := jobs.NewAnnouncer(questions.NewRepository(pool), clock.RealClock{}, hub, logger)
	scheduler := cron.New()
	if _, err := jobs.Schedule(scheduler, schedule, announcer); err != nil {
		logger.Fatal("schedule announcer", zap.Error(err))
	}
	scheduler.Start()
	logger.Info("worker started", zap.String("schedule", schedule))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	<-scheduler.Stop().Done()
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
