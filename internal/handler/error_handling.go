package handler

import (
	"errors"
	"net/http"

	"finishflow/shared/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// busyRetryAfter - подсказка клиенту при отказе admission control, в секундах.
const busyRetryAfter = "30"

func handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var errResp models.ErrorResponse

	switch {
	case errors.Is(err, models.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		errResp = models.NewErrorResponse(models.ErrCodeInvalidInput, err.Error())
	case errors.Is(err, models.ErrBusy):
		statusCode = http.StatusServiceUnavailable
		errResp = models.NewErrorResponse(models.ErrCodeBusy, "Another generation is in progress, try again later")
		c.Header("Retry-After", busyRetryAfter)
	case errors.Is(err, models.ErrUpstreamScript):
		statusCode = http.StatusBadGateway
		errResp = models.NewErrorResponse(models.ErrCodeUpstreamScript, err.Error())
	case errors.Is(err, models.ErrUpstreamSpeech):
		statusCode = http.StatusBadGateway
		errResp = models.NewErrorResponse(models.ErrCodeUpstreamSpeech, err.Error())
	case errors.Is(err, models.ErrRender):
		statusCode = http.StatusInternalServerError
		errResp = models.NewErrorResponse(models.ErrCodeRender, err.Error())
	case errors.Is(err, models.ErrOutputInvalid):
		statusCode = http.StatusInternalServerError
		errResp = models.NewErrorResponse(models.ErrCodeOutputInvalid, err.Error())
	case errors.Is(err, models.ErrTokenNotFound):
		statusCode = http.StatusNotFound
		errResp = models.NewErrorResponse(models.ErrCodeNotFound, "Download token is unknown or expired")
	default:
		zap.L().Error("Unhandled internal error in handleServiceError", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResp = models.NewErrorResponse(models.ErrCodeInternal, "An unexpected internal error occurred")
	}

	c.AbortWithStatusJSON(statusCode, errResp)
}
