package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"line-relay/internal/app"
	"line-relay/internal/transport/http/response"
)

type GreetingHandler struct {
	greetings *app.GreetingService
}

type GreetingRequest struct {
	Style   string `json:"style" binding:"max=64"`
	Context string `json:"context" binding:"max=2000"`
}

func NewGreetingHandler(greetings *app.GreetingService) *GreetingHandler {
	return &GreetingHandler{greetings: greetings}
}

func (h *GreetingHandler) Preview(c *gin.Context) {
	var req GreetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	res, err := h.greetings.Preview(c.Request.Context(), app.GreetingInput{Style: req.Style, Context: req.Context})
	if err != nil {
		writeServiceError(c, err, "generate greeting failed")
		return
	}
	response.OK(c, res)
}

func (h *GreetingHandler) Send(c *gin.Context) {
	var req GreetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	res, err := h.greetings.Send(c.Request.Context(), app.GreetingInput{Style: req.Style, Context: req.Context})
	if err != nil {
		writeServiceError(c, err, "send greeting failed")
		return
	}
	response.OK(c, res)
}
