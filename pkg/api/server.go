package api

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gantim/nvcloud-api-and-bot/pkg/api/handlers"
	"github.com/gantim/nvcloud-api-and-bot/pkg/auth"
	"github.com/gantim/nvcloud-api-and-bot/pkg/config"
	"github.com/gantim/nvcloud-api-and-bot/pkg/database"
	"github.com/gantim/nvcloud-api-and-bot/pkg/services"
)

// Server represents the API server
type Server struct {
	config     *config.Config
	db         *database.DB
	authSvc    *auth.Service
	jwtManager *auth.JWTManager
	containers *services.ContainerService
	webhook    gin.HandlerFunc
	logger     *slog.Logger
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer creates a new API server instance. The webhook handler is
// optional; pass nil when the chat bot is disabled.
func NewServer(cfg *config.Config, db *database.DB, authSvc *auth.Service, jwtManager *auth.JWTManager, containers *services.ContainerService, webhook gin.HandlerFunc, logger *slog.Logger) *Server {
	server := &Server{
		config:     cfg,
		db:         db,
		authSvc:    authSvc,
		jwtManager: jwtManager,
		containers: containers,
		webhook:    webhook,
		logger:     logger,
	}

	// Configure gin mode based on log level
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router = gin.New()

	// Global middleware
	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(s.corsMiddleware())
	s.router.Use(s.errorHandlerMiddleware())

	// Health endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/ready", s.readinessHandler)

	sessionH := handlers.NewSessionHandlers(s.authSvc, s.logger)
	userH := handlers.NewUserHandlers(s.authSvc, s.logger)
	containerH := handlers.NewContainerHandlers(s.containers, s.authSvc, s.logger)
	ticketH := handlers.NewTicketHandlers(s.containers, s.authSvc, s.logger)

	v1 := s.router.Group("/api/v1")
	{
		// Public endpoints (no authentication required)
		v1.GET("/health", s.healthHandler)
		v1.GET("/version", s.versionHandler)
		v1.POST("/auth/signup", sessionH.Signup)
		v1.POST("/auth/login", sessionH.Login)

		// Protected endpoints (authentication required)
		protected := v1.Group("/")
		protected.Use(auth.JWTMiddleware(s.jwtManager))
		{
			protected.GET("/user/profile", userH.Profile)
			protected.POST("/user/link-code", userH.LinkCode)

			protected.GET("/containers", containerH.List)
			protected.POST("/containers", containerH.Create)
			protected.POST("/containers/:vmid/start", containerH.Start)
			protected.POST("/containers/:vmid/stop", containerH.Stop)
			protected.POST("/containers/:vmid/restart", containerH.Restart)
			protected.DELETE("/containers/:vmid", containerH.Delete)
			protected.GET("/containers/:vmid/telemetry", containerH.Telemetry)

			protected.POST("/tickets", ticketH.Create)
			protected.GET("/tickets", ticketH.List)
			protected.DELETE("/tickets/:id", ticketH.Delete)
			protected.POST("/tickets/:id/consume", ticketH.Consume)

			protected.GET("/admin/containers", containerH.ListAll)
		}
	}

	// Chat bot webhook, authenticated by a shared secret instead of JWT
	if s.webhook != nil {
		s.router.POST("/bot/webhook", s.webhook)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	address := fmt.Sprintf(":%d", s.config.API.Port)
	log.Printf("Starting API server on %s", address)

	s.httpServer = &http.Server{
		Addr:         address,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.config.API.TLSCert != "" && s.config.API.TLSKey != "" {
		// Verify TLS certificate and key files exist and are readable
		if _, err := os.Stat(s.config.API.TLSCert); err != nil {
			return fmt.Errorf("TLS certificate file error: %w", err)
		}
		if _, err := os.Stat(s.config.API.TLSKey); err != nil {
			return fmt.Errorf("TLS key file error: %w", err)
		}

		log.Println("Starting HTTPS server")
		return s.httpServer.ListenAndServeTLS(s.config.API.TLSCert, s.config.API.TLSKey)
	}

	log.Println("Starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	log.Println("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}

// GetRouter returns the gin router (useful for testing)
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
