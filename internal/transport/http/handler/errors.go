package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"line-relay/internal/app"
	"line-relay/internal/transport/http/response"
)

func writeServiceError(c *gin.Context, err error, fallbackMessage string) {
	switch {
	case errors.Is(err, app.ErrValidation):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrConfiguration):
		response.Error(c, http.StatusInternalServerError, response.CodeConfiguration, err.Error())
	case errors.Is(err, app.ErrGeneration):
		response.Error(c, http.StatusBadGateway, response.CodeGeneration, err.Error())
	case errors.Is(err, app.ErrDelivery):
		response.Error(c, http.StatusBadGateway, response.CodeDelivery, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallbackMessage)
	}
}
