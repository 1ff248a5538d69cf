package http

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/deskchat/deskchat-server/internal/auth"
	"github.com/deskchat/deskchat-server/internal/chat"
)

// contextKeyIdentity is the gin context key for the resolved caller identity.
const contextKeyIdentity = "identity"

// IdentityMiddleware resolves the caller's (authenticated, callerId, role)
// triple from the bearer token. It never aborts: unauthenticated callers get
// an unauthenticated identity, and the handler decides what that means.
func IdentityMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := chat.Identity{}

		if token := bearerToken(c); token != "" {
			claims, err := authService.ValidateToken(token)
			if err != nil {
				logger.Debug().Err(err).Msg("invalid session token")
			} else {
				identity = chat.Identity{
					Authenticated: true,
					CallerID:      claims.UserID,
					Role:          chat.ParticipantRole(claims.Role),
				}
			}
		}

		c.Set(contextKeyIdentity, identity)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// identityFromContext returns the caller identity resolved by IdentityMiddleware.
func identityFromContext(c *gin.Context) chat.Identity {
	if v, exists := c.Get(contextKeyIdentity); exists {
		if id, ok := v.(chat.Identity); ok {
			return id
		}
	}
	return chat.Identity{}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
