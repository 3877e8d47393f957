package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"servechat/internal/identity"
	"servechat/internal/service"
)

const statusPingTimeout = 3 * time.Second

// StatusInfo describe la persistencia configurada para /status.
type StatusInfo struct {
	PersistenceEnabled bool
	RunAsUser          bool
	Catalog            string
	Schema             string
	// Ping comprueba el warehouse; nil si no hay persistencia.
	Ping func(ctx context.Context) error
}

// SettingsHandler cubre salud, endpoints de serving e identidad.
type SettingsHandler struct {
	logger *zap.Logger
	chat   *service.ChatService
	info   StatusInfo
}

func NewSettingsHandler(logger *zap.Logger, chat *service.ChatService, info StatusInfo) *SettingsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsHandler{logger: logger, chat: chat, info: info}
}

// Healthz maneja GET /healthz.
func (h *SettingsHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status maneja GET /status.
func (h *SettingsHandler) Status(c *gin.Context) {
	persistence := gin.H{
		"enabled": h.info.PersistenceEnabled,
		"catalog": h.info.Catalog,
		"schema":  h.info.Schema,
	}
	if h.info.PersistenceEnabled && h.info.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), statusPingTimeout)
		err := h.info.Ping(ctx)
		cancel()
		persistence["reachable"] = err == nil
		if err != nil {
			h.logger.Warn("warehouse ping failed", zap.Error(err))
			persistence["error"] = err.Error()
		}
	}

	id := currentIdentity(c)
	catalog := h.chat.Catalog()
	c.JSON(http.StatusOK, gin.H{
		"status":               "ok",
		"default_endpoint":     catalog.Default(),
		"endpoints_configured": catalog.Configured(),
		"persistence":          persistence,
		"auth_mode":            identity.AuthMode(h.info.RunAsUser, id),
	})
}

// Endpoints maneja GET /endpoints.
func (h *SettingsHandler) Endpoints(c *gin.Context) {
	c.JSON(http.StatusOK, h.chat.Catalog())
}

// TestEndpoint maneja POST /endpoints/test.
func (h *SettingsHandler) TestEndpoint(c *gin.Context) {
	var req struct {
		EndpointID string `json:"endpoint_id"`
	}
	if !bindJSON(c, &req) {
		return
	}
	endpoint := strings.TrimSpace(req.EndpointID)
	if endpoint == "" {
		endpoint = h.chat.Catalog().Default()
	}
	c.JSON(http.StatusOK, h.chat.TestEndpoint(c.Request.Context(), endpoint))
}

// ReadyEndpoints maneja GET /endpoints/ready.
func (h *SettingsHandler) ReadyEndpoints(c *gin.Context) {
	names, err := h.chat.ReadyEndpoints(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "list ready endpoints", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"endpoints": names})
}

// Identity maneja GET /identity.
func (h *SettingsHandler) Identity(c *gin.Context) {
	id := currentIdentity(c)
	recs := identity.Validate(id, h.info.PersistenceEnabled, h.info.RunAsUser)
	if recs == nil {
		recs = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"identity":        id,
		"auth_mode":       identity.AuthMode(h.info.RunAsUser, id),
		"has_token":       id.HasToken(),
		"recommendations": recs,
	})
}
