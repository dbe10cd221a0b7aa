package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gopherai-insect/internal/model"
	"gopherai-insect/internal/transport/http/response"
)

type HistoryReader interface {
	ListRecent(limit int) ([]model.ClassificationRecord, error)
}

type HistoryHandler struct {
	history HistoryReader
}

func NewHistoryHandler(history HistoryReader) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// List returns the most recent classification records, newest first.
func (h *HistoryHandler) List(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = v
	}

	records, err := h.history.ListRecent(limit)
	if err != nil {
		writeError(c, err, "분류 기록 조회")
		return
	}
	response.OK(c, gin.H{
		"records": records,
		"count":   len(records),
	})
}
