package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"servechat/internal/domain"
	"servechat/internal/service"
)

// HistoryHandler expone el historial de conversaciones del usuario.
type HistoryHandler struct {
	logger        *zap.Logger
	conversations *service.ConversationService
}

func NewHistoryHandler(logger *zap.Logger, conversations *service.ConversationService) *HistoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryHandler{logger: logger, conversations: conversations}
}

// List maneja GET /conversations?search=&include_content=&limit=.
func (h *HistoryHandler) List(c *gin.Context) {
	filter := domain.ConversationFilter{
		UserID: currentIdentity(c).UserID,
		Search: c.Query("search"),
	}
	if raw := strings.TrimSpace(c.Query("include_content")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid include_content"})
			return
		}
		filter.IncludeContent = v
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		filter.Limit = v
	}

	items, err := h.conversations.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.logger, "list conversations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": items})
}

// Messages maneja GET /conversations/:id/messages.
func (h *HistoryHandler) Messages(c *gin.Context) {
	userID := currentIdentity(c).UserID
	conv, err := h.conversations.Meta(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, h.logger, "get conversation", err)
		return
	}
	msgs, err := h.conversations.LoadMessages(c.Request.Context(), userID, conv.ID)
	if err != nil {
		writeError(c, h.logger, "load messages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv, "messages": msgs})
}

// Export maneja GET /conversations/:id/export.
func (h *HistoryHandler) Export(c *gin.Context) {
	id := c.Param("id")
	raw, err := h.conversations.Export(c.Request.Context(), currentIdentity(c).UserID, id)
	if err != nil {
		writeError(c, h.logger, "export conversation", err)
		return
	}
	writeExport(c, id, raw)
}

// Delete maneja DELETE /conversations/:id.
func (h *HistoryHandler) Delete(c *gin.Context) {
	if err := h.conversations.Delete(c.Request.Context(), currentIdentity(c).UserID, c.Param("id")); err != nil {
		writeError(c, h.logger, "delete conversation", err)
		return
	}
	c.Status(http.StatusNoContent)
}
