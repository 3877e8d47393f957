package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"servechat/internal/llm"
	"servechat/internal/service"
)

// statusForError traduce los errores de servicio a codigos HTTP.
func statusForError(err error) int {
	var statusErr *llm.StatusError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSessionTokenInvalid), errors.Is(err, service.ErrSessionTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrConversationNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, pgx.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, service.ErrPersistenceDisabled),
		errors.Is(err, service.ErrChatNotConfigured),
		errors.Is(err, llm.ErrEndpointNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrPersistenceUnavailable), errors.As(err, &statusErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError responde con el codigo de statusForError; los 5xx se loguean.
func writeError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err), zap.String("path", c.Request.URL.Path))
	} else {
		logger.Warn(msg, zap.Error(err), zap.String("path", c.Request.URL.Path))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
