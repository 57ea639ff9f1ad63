package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gantim/nvcloud-api-and-bot/pkg/auth"
	"github.com/gantim/nvcloud-api-and-bot/pkg/database/models"
)

// resolveCaller loads the account behind the request's verified claims.
// Aborts with 401 when the token's account no longer exists.
func resolveCaller(c *gin.Context, authSvc *auth.Service) (*models.User, bool) {
	claims, ok := auth.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil, false
	}
	user, err := authSvc.ResolveUser(c.Request.Context(), claims)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "account no longer exists"})
		return nil, false
	}
	return user, true
}
