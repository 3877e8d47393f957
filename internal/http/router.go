package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig agrupa los ajustes de transporte del router.
type RouterConfig struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	cfg RouterConfig,
	resolve IdentityResolver,
	chatH *ChatHandler,
	historyH *HistoryHandler,
	settingsH *SettingsHandler,
	analyticsH *AnalyticsHandler,
) *gin.Engine {
	r := gin.New()

	r.Use(
		zapLoggerMiddleware(logger),
		gin.Recovery(),
		corsMiddleware(cfg.AllowedOrigins),
		bodyLimitMiddleware(cfg.MaxBodyBytes),
		jsonContentTypeMiddleware(),
		IdentityMiddleware(resolve),
	)

	r.GET("/healthz", settingsH.Healthz)
	r.GET("/status", settingsH.Status)
	r.GET("/identity", settingsH.Identity)

	r.POST("/session", chatH.CreateSession)

	session := r.Group("", SessionAuthMiddleware(chatH.sessions))
	session.GET("/session", chatH.GetSession)
	session.DELETE("/session", chatH.EndSession)
	session.POST("/session/reset", chatH.ResetSession)
	session.PUT("/session/endpoint", chatH.SwitchEndpoint)
	session.PUT("/session/title", chatH.Rename)
	session.POST("/session/load", chatH.LoadConversation)
	session.GET("/session/export", chatH.ExportSession)
	session.POST("/chat/messages", chatH.PostMessage)
	session.GET("/chat/ws", chatH.Stream)

	conversations := r.Group("/conversations")
	conversations.GET("", historyH.List)
	conversations.GET("/:id/messages", historyH.Messages)
	conversations.GET("/:id/export", historyH.Export)
	conversations.DELETE("/:id", historyH.Delete)

	endpoints := r.Group("/endpoints")
	endpoints.GET("", settingsH.Endpoints)
	endpoints.POST("/test", settingsH.TestEndpoint)
	endpoints.GET("/ready", settingsH.ReadyEndpoints)

	r.GET("/analytics", analyticsH.Summary)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

// corsMiddleware sin origenes configurados (o con "*") acepta cualquiera.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if allowAnyOrigin(origins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func allowAnyOrigin(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
