package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gantim/nvcloud-api-and-bot/pkg/auth"
)

// SessionHandlers exposes registration and login.
type SessionHandlers struct {
	authSvc *auth.Service
	logger  *slog.Logger
}

func NewSessionHandlers(authSvc *auth.Service, logger *slog.Logger) *SessionHandlers {
	return &SessionHandlers{
		authSvc: authSvc,
		logger:  logger,
	}
}

// Signup creates an account and returns a token for it.
func (h *SessionHandlers) Signup(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	token, err := h.authSvc.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, token)
}

// Login verifies credentials and returns a token.
func (h *SessionHandlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	token, err := h.authSvc.Authenticate(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, token)
}
