package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/groupquest/partyboard/internal/config"
	"github.com/groupquest/partyboard/internal/database"
	"github.com/groupquest/partyboard/internal/events"
	"github.com/groupquest/partyboard/internal/gamedata"
	"github.com/groupquest/partyboard/internal/hub"
	"github.com/groupquest/partyboard/internal/lifecycle"
	"github.com/groupquest/partyboard/internal/profiles"
	"github.com/groupquest/partyboard/internal/rooms"
	"github.com/groupquest/partyboard/internal/router"
)

func main() {
	cfg := config.Load()

	if cfg.AppEnv == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logrus.SetLevel(level)

	logrus.Info("Starting Partyboard")
	logrus.WithFields(logrus.Fields{
		"host":     cfg.Host,
		"port":     cfg.Port,
		"database": cfg.DatabaseURL,
		"redis":    cfg.RedisAddr,
		"gamedata": cfg.GamedataURL,
	}).Info("Configuration loaded")

	ctx := context.Background()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	publisher := events.NewRedisPublisher(rdb)
	lookup := gamedata.NewClient(cfg.GamedataURL)
	profileSvc := profiles.NewService(db)
	roomSvc := rooms.NewService(db, lookup, profileSvc, publisher)
	sweeper := lifecycle.NewSweeper(db, publisher)

	h := hub.NewHub(rdb)
	go h.Run()

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	worker := lifecycle.NewWorkerServer(redisOpt, sweeper, cfg.SweepSchedule)
	go worker.Start()

	r := router.Setup(router.Deps{
		Rooms:        rooms.NewHandler(roomSvc),
		Lifecycle:    lifecycle.NewHandler(sweeper),
		Gamedata:     gamedata.NewHandler(lookup),
		Hub:          h,
		Redis:        rdb,
		JWTSecret:    cfg.JWTSecret,
		ServiceToken: cfg.ServiceToken,
		RateLimitMax: cfg.RateLimitMax,
		RateLimitWin: cfg.RateLimitWin,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logrus.Infof("Partyboard listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down Partyboard...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	worker.Shutdown()
	h.Stop()

	logrus.Info("Partyboard stopped")
}
