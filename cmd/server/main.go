// Package main runs the meeting engagement HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-meet/engagement/config"
	"github.com/aura-meet/engagement/internal/auth"
	"github.com/aura-meet/engagement/internal/cities"
	"github.com/aura-meet/engagement/internal/engagement"
	"github.com/aura-meet/engagement/internal/meetingrooms"
	"github.com/aura-meet/engagement/internal/meetings"
	"github.com/aura-meet/engagement/internal/middleware"
	"github.com/aura-meet/engagement/internal/participants"
	"github.com/aura-meet/engagement/internal/realtime"
	"github.com/aura-meet/engagement/pkg/database"
	"github.com/aura-meet/engagement/pkg/queue"
	"github.com/aura-meet/engagement/pkg/redis"
	"github.com/aura-meet/engagement/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	clock := clockwork.NewRealClock()
	sessions := auth.NewSessionService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	cityRepo := cities.NewRepository(pool)
	cityHandler := cities.NewHandler(cityRepo)

	roomRepo := meetingrooms.NewRepository(pool)
	roomHandler := meetingrooms.NewHandler(roomRepo)

	meetingRepo := meetings.NewRepository(pool)
	participantRepo := participants.NewRepository(pool)
	snapshotCache := meetings.NewSnapshotCache(rdb.Client, time.Duration(cfg.Meeting.SnapshotTTLSec)*time.Second)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	svc := meetings.NewService(meetingRepo, participantRepo, snapshotCache, sessions, jobQueue, clock, logger, meetings.ServiceConfig{
		SlotMinutes:   cfg.Meeting.SlotMinutes,
		BucketMinutes: cfg.Meeting.BucketMinutes,
		WindowMinutes: cfg.Meeting.WindowMinutes,
		Smoothing:     engagement.SmoothingAlgorithm(cfg.Meeting.Smoothing),
	})
	meetingHandler := meetings.NewHandler(svc)
	participantHandler := participants.NewHandler(svc)

	broadcaster := realtime.NewBroadcaster(hub, svc, clock,
		time.Duration(cfg.Meeting.BroadcastIntervalSec)*time.Second, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public API
	router.POST("/visit", meetingHandler.Visit)
	router.GET("/meetings/:id", meetingHandler.GetByID)
	router.GET("/meetings/:id/engagement", meetingHandler.Engagement)
	router.GET("/meetings/:id/summary", meetingHandler.Summary)
	router.POST("/users/status", participantHandler.RecordStatus)
	router.GET("/cities", cityHandler.List)
	router.POST("/cities", cityHandler.Create)
	router.GET("/meeting-rooms", roomHandler.List)
	router.POST("/meeting-rooms", roomHandler.Create)

	// Session-guarded API (Bearer session token from /visit)
	api := router.Group("")
	api.Use(middleware.Session(sessions))
	{
		api.PATCH("/meetings/:id/duration", meetingHandler.UpdateDuration)
	}

	// WebSocket (identity token travels in the join frame)
	router.GET("/ws/meetings/:id", realtime.ServeWs(hub, svc, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	broadcastCtx, broadcastCancel := context.WithCancel(context.Background())
	defer broadcastCancel()
	go broadcaster.Run(broadcastCtx)
	logger.Info("broadcaster started", zap.Int("interval_sec", cfg.Meeting.BroadcastIntervalSec))

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	broadcastCancel()
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
