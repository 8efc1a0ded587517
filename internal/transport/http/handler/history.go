package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"line-relay/internal/app"
	"line-relay/internal/repository"
	"line-relay/internal/transport/http/response"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

type HistoryHandler struct {
	store  *app.HistoryStore
	events *repository.TurnEventRepository
}

func NewHistoryHandler(store *app.HistoryStore, events *repository.TurnEventRepository) *HistoryHandler {
	return &HistoryHandler{store: store, events: events}
}

func (h *HistoryHandler) Get(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("userId"))
	limit, ok := parseLimit(c, defaultHistoryLimit)
	if !ok {
		return
	}

	turns, err := h.store.Recent(c.Request.Context(), userID, limit)
	if err != nil {
		writeServiceError(c, err, "load history failed")
		return
	}
	response.OK(c, gin.H{
		"user_id": userID,
		"turns":   turns,
	})
}

func (h *HistoryHandler) Clear(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("userId"))
	if err := h.store.Clear(c.Request.Context(), userID); err != nil {
		writeServiceError(c, err, "clear history failed")
		return
	}
	response.OK(c, gin.H{
		"user_id": userID,
		"cleared": true,
	})
}

func (h *HistoryHandler) Events(c *gin.Context) {
	limit, ok := parseLimit(c, 50)
	if !ok {
		return
	}

	events, err := h.events.ListRecent(c.Request.Context(), strings.TrimSpace(c.Query("user_id")), limit)
	if err != nil {
		writeServiceError(c, err, "load turn events failed")
		return
	}
	response.OK(c, events)
}

func parseLimit(c *gin.Context, fallback int) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return fallback, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "limit must be a positive integer")
		return 0, false
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit, true
}
