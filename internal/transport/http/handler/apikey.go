package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gopherai-insect/internal/app"
	"gopherai-insect/internal/transport/http/response"
)

type APIKeyHandler struct {
	keys *app.APIKeyStore
}

// SetAPIKeyRequest accepts a string or null. Null and blank clear the key.
type SetAPIKeyRequest struct {
	APIKey *string `json:"api_key"`
}

func NewAPIKeyHandler(keys *app.APIKeyStore) *APIKeyHandler {
	return &APIKeyHandler{keys: keys}
}

func (h *APIKeyHandler) Set(c *gin.Context) {
	var req SetAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	key := ""
	if req.APIKey != nil {
		key = *req.APIKey
	}
	message := "API 키가 해제되었습니다."
	if h.keys.Set(key) {
		message = "API 키가 설정되었습니다."
	}
	h.respond(c, message)
}

func (h *APIKeyHandler) Clear(c *gin.Context) {
	h.keys.Clear()
	h.respond(c, "API 키가 해제되었습니다.")
}

func (h *APIKeyHandler) respond(c *gin.Context, message string) {
	response.OK(c, gin.H{
		"message":     message,
		"api_key_set": h.keys.IsSet(),
		"api_key":     h.keys.Masked(),
		"updated_at":  h.keys.UpdatedAt().Format(time.RFC3339),
	})
}
