package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gantim/nvcloud-api-and-bot/pkg/api"
	"github.com/gantim/nvcloud-api-and-bot/pkg/auth"
	"github.com/gantim/nvcloud-api-and-bot/pkg/bot"
	"github.com/gantim/nvcloud-api-and-bot/pkg/config"
	"github.com/gantim/nvcloud-api-and-bot/pkg/database"
	"github.com/gantim/nvcloud-api-and-bot/pkg/database/repositories"
	"github.com/gantim/nvcloud-api-and-bot/pkg/proxmox"
	"github.com/gantim/nvcloud-api-and-bot/pkg/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg)

	// Initialize database connection
	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run database migrations
	if err := db.AutoMigrate(); err != nil {
		db.Close()
		log.Fatalf("Failed to migrate database: %v", err)
	}
	defer db.Close()

	// Initialize repositories and the transaction layer
	userRepo := repositories.NewUserRepository(db.DB)
	uow := database.NewUnitOfWork(db)

	// Initialize authentication services
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	authSvc := auth.NewService(userRepo, jwtManager)

	// Initialize the hypervisor client and the container orchestrator
	provider := proxmox.NewClient(proxmox.ClientConfig{
		BaseURL:     cfg.Proxmox.BaseURL,
		TokenID:     cfg.Proxmox.TokenID,
		TokenSecret: cfg.Proxmox.TokenSecret,
		Timeout:     cfg.Proxmox.RequestTimeout,
		InsecureTLS: cfg.Proxmox.InsecureTLS,
	})
	containerSvc := services.NewContainerService(uow, provider, cfg.Proxmox.Node, cfg.Proxmox.TemplateVMIDs, logger)

	// Initialize the chat bot webhook when enabled
	var webhook gin.HandlerFunc
	if cfg.Bot.Enabled {
		dispatcher := bot.NewDispatcher(uow, containerSvc, &bot.LogSender{Logger: logger}, logger)
		webhook = bot.WebhookHandler(dispatcher, cfg.Bot.WebhookSecret, logger)
	}

	// Initialize API server
	server := api.NewServer(cfg, db, authSvc, jwtManager, containerSvc, webhook, logger)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received")

	// Give the server 30 seconds to finish current requests
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
