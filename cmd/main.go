package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stringchat/backend/internal/alert"
	"stringchat/backend/internal/api/handler"
	"stringchat/backend/internal/chathub"
	"stringchat/backend/internal/config"
	"stringchat/backend/internal/media"
	"stringchat/backend/internal/models"
	"stringchat/backend/internal/moderation"
	"stringchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	if err := db.AutoMigrate(&models.SavedChat{}, &models.Report{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	slog.Info("database and redis connections established")
	return db, rdb
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)

	// Coordination engine
	matcher := chathub.NewMatcherService()
	sessions := chathub.NewSessionRegistry(config.SessionPurgeGrace)
	mod := moderation.NewService(s, config.ViolationThreshold)
	hub := chathub.NewManagerService(matcher, sessions, mod)

	// Ephemeral media
	store, err := media.NewStore(cfg.MediaDir, config.MediaTTL, config.MaxUploadSize)
	if err != nil {
		log.Fatalf("Failed to open media store: %v", err)
	}
	sweeper := media.NewSweeper(store, config.SweepInterval)

	notifier, err := alert.NewNotifier(cfg.AlertBotToken, cfg.AlertChatID)
	if err != nil {
		log.Fatalf("Failed to start alert bot: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run(ctx)
	go sweeper.Run(ctx)

	r := gin.Default()
	h := handler.NewHandler(hub, s, store, notifier, []byte(cfg.JWTSecret))

	r.GET("/anonid", h.GetAnonID)
	r.GET("/ws", h.ServeWebSocket)
	r.GET("/api/health", h.Health)

	r.POST("/api/media", h.UploadMedia)
	r.GET("/api/media/:id", h.GetMedia)
	r.Static("/uploads", store.Dir())

	r.POST("/api/chats", h.SaveChat)
	r.GET("/api/chats/:sessionToken", h.ListChats)
	r.DELETE("/api/chats/:sessionToken/:chatId", h.DeleteChat)

	r.POST("/api/reports", h.CreateReport)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("string server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
