package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"servechat/internal/service"
)

type AnalyticsHandler struct {
	logger    *zap.Logger
	analytics *service.AnalyticsService
}

func NewAnalyticsHandler(logger *zap.Logger, analytics *service.AnalyticsService) *AnalyticsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsHandler{logger: logger, analytics: analytics}
}

// Summary maneja GET /analytics. Sin persistencia responde la forma vacia.
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	summary, err := h.analytics.Summary(c.Request.Context(), currentIdentity(c).UserID)
	switch {
	case errors.Is(err, service.ErrPersistenceDisabled):
		c.JSON(http.StatusOK, gin.H{"persistence_enabled": false, "summary": summary})
	case err != nil:
		writeError(c, h.logger, "usage summary", err)
	default:
		c.JSON(http.StatusOK, gin.H{"persistence_enabled": true, "summary": summary})
	}
}
