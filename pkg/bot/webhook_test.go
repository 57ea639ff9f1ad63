package bot

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupWebhookRouter(t *testing.T) (*gin.Engine, *fakeSender) {
	gin.SetMode(gin.TestMode)
	d, sender, _, _ := setupDispatcher(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := gin.New()
	router.POST("/bot/webhook", WebhookHandler(d, "hook-secret", logger))
	return router, sender
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	router, _ := setupWebhookRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bot/webhook", strings.NewReader(`{}`))
	req.Header.Set(SecretHeader, "wrong")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/bot/webhook", strings.NewReader(`{}`))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	router, _ := setupWebhookRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bot/webhook", strings.NewReader("not json"))
	req.Header.Set(SecretHeader, "hook-secret")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookDispatchesUpdate(t *testing.T) {
	router, sender := setupWebhookRouter(t)

	body := `{
		"update_id": 1,
		"message": {
			"chat": {"id": 424242, "username": "alice_chat", "full_name": "Alice"},
			"text": "/help"
		}
	}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bot/webhook", strings.NewReader(body))
	req.Header.Set(SecretHeader, "hook-secret")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, sender.last(424242), "Commands:")
}
