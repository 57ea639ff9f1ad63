package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gantim/nvcloud-api-and-bot/pkg/auth"
	"github.com/gantim/nvcloud-api-and-bot/pkg/proxmox"
	"github.com/gantim/nvcloud-api-and-bot/pkg/services"
)

// respondError maps the service error taxonomy onto HTTP statuses. Provider
// failures surface as 502 because the hypervisor, not this service, failed.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var providerErr *proxmox.ProviderError

	switch {
	case errors.Is(err, services.ErrContainerNotFound),
		errors.Is(err, services.ErrTicketNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"code":    404,
			"error":   "Not Found",
			"message": err.Error(),
		})
	case errors.Is(err, services.ErrNoPermissions):
		c.JSON(http.StatusForbidden, gin.H{
			"code":    403,
			"error":   "Forbidden",
			"message": err.Error(),
		})
	case errors.Is(err, services.ErrTicketClosed),
		errors.Is(err, proxmox.ErrVMIDExhausted),
		errors.Is(err, auth.ErrUsernameTaken),
		errors.Is(err, auth.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{
			"code":    409,
			"error":   "Conflict",
			"message": err.Error(),
		})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    401,
			"error":   "Unauthorized",
			"message": err.Error(),
		})
	case errors.As(err, &providerErr):
		logger.Error("hypervisor request failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"code":    502,
			"error":   "Bad Gateway",
			"message": "hypervisor request failed",
		})
	default:
		logger.Error("internal error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"error":   "Internal Server Error",
			"message": "internal server error",
		})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    400,
		"error":   "Bad Request",
		"message": err.Error(),
	})
}
