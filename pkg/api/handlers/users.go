package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gantim/nvcloud-api-and-bot/pkg/auth"
)

// UserHandlers exposes the caller's own account.
type UserHandlers struct {
	authSvc *auth.Service
	logger  *slog.Logger
}

func NewUserHandlers(authSvc *auth.Service, logger *slog.Logger) *UserHandlers {
	return &UserHandlers{
		authSvc: authSvc,
		logger:  logger,
	}
}

// Profile returns the authenticated account.
func (h *UserHandlers) Profile(c *gin.Context) {
	user, ok := resolveCaller(c, h.authSvc)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        user.ID,
		"username":  user.Username,
		"email":     user.Email,
		"full_name": user.FullName,
		"is_admin":  user.IsAdmin,
	})
}

// LinkCode mints a one-time code for binding a chat to this account.
func (h *UserHandlers) LinkCode(c *gin.Context) {
	user, ok := resolveCaller(c, h.authSvc)
	if !ok {
		return
	}
	code, err := h.authSvc.IssueLinkCode(c.Request.Context(), user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"link_code": code})
}
