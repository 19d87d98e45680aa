package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserAuth requires a customer token and injects the userId into the context.
func UserAuth(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return AuthGuard(verifier, logger)
}

// OptionalUser attaches the userId when a valid token is present. Guests and
// bad tokens pass through anonymously.
func OptionalUser(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("auth")
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err == ErrMissingToken {
			c.Next()
			return
		}
		if err == nil {
			var identity Identity
			if identity, err = verifier.Verify(token); err == nil {
				c.Set(ContextUserID, identity.UserID)
				c.Set(ContextRole, identity.Role)
				c.Next()
				return
			}
		}
		logger.Info("ignoring unusable token on optional route", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.Next()
	}
}

// UserID returns the authenticated user, or "" for guests.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
