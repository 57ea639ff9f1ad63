package bot

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// SecretHeader carries the shared webhook secret on every delivery.
const SecretHeader = "X-Webhook-Secret"

// WebhookHandler returns a gin handler that authenticates deliveries with
// the shared secret, decodes the update and hands it to the dispatcher.
// Deliveries are always acknowledged with 200 once authenticated so the
// platform does not redeliver updates that fail downstream.
func WebhookHandler(d *Dispatcher, secret string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" || c.GetHeader(SecretHeader) != secret {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		var update Update
		if err := c.ShouldBindJSON(&update); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed update"})
			return
		}

		if err := d.HandleEvent(c.Request.Context(), DecodeEvent(update)); err != nil {
			logger.Error("webhook event handling failed", "update", update.UpdateID, "error", err)
		}
		c.Status(http.StatusOK)
	}
}
