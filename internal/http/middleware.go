package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"servechat/internal/domain"
	"servechat/internal/identity"
	"servechat/internal/service"
)

const sessionIDKey = "session_id"

// IdentityResolver arma la identidad del request; en produccion envuelve identity.Resolve.
type IdentityResolver func(r *http.Request) domain.Identity

// IdentityMiddleware resuelve la identidad reenviada por el proxy y la deja en el contexto del request.
func IdentityMiddleware(resolve IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := domain.Identity{UserID: domain.UnknownUserID, AuthMode: domain.AuthModeApp}
		if resolve != nil {
			id = resolve(c.Request)
		}
		c.Request = c.Request.WithContext(identity.WithContext(c.Request.Context(), id))
		c.Next()
	}
}

// currentIdentity lee la identidad guardada por IdentityMiddleware.
func currentIdentity(c *gin.Context) domain.Identity {
	if id, ok := identity.FromContext(c.Request.Context()); ok {
		return id
	}
	return domain.Identity{UserID: domain.UnknownUserID, AuthMode: domain.AuthModeApp}
}

// SessionAuthMiddleware valida el token de sesion (header Bearer o query ?token=)
// y guarda el id de sesion en el contexto.
func SessionAuthMiddleware(sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessions == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sessions not configured"})
			c.Abort()
			return
		}

		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		sessionID, err := sessions.Authenticate(token, currentIdentity(c).UserID)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, service.ErrSessionTokenExpired) {
				msg = "session expired"
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
			c.Abort()
			return
		}

		c.Set(sessionIDKey, sessionID)
		c.Next()
	}
}

// GetSessionID obtiene el id de sesion validado desde el contexto.
func GetSessionID(c *gin.Context) (string, bool) {
	val, ok := c.Get(sessionIDKey)
	if !ok {
		return "", false
	}
	id, ok := val.(string)
	return id, ok && id != ""
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

// bodyLimitMiddleware corta los bodies que superan maxBytes.
func bodyLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// bindJSON decodifica el body; responde 413 o 400 y devuelve false si falla.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return false
	}
	return true
}
