package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"line-relay/internal/line"
)

type BatchDispatcher interface {
	HandleBatch(ctx context.Context, events []line.Event)
}

type WebhookHandler struct {
	dispatcher BatchDispatcher
}

func NewWebhookHandler(dispatcher BatchDispatcher) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher}
}

// Receive acknowledges every parseable delivery with {"ok":true}, whatever
// happens to the individual events. The batch runs detached from the
// request so a dropped platform connection cannot cut it short.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var payload line.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid webhook payload"})
		return
	}

	h.dispatcher.HandleBatch(context.WithoutCancel(c.Request.Context()), payload.Events)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
