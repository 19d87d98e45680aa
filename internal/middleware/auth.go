package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	ContextUserID = "userId"
	ContextRole   = "role"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is what a verified bearer token says about its holder.
type Identity struct {
	UserID string
	Role   string
}

// TokenVerifier checks a bearer token issued by the identity provider.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

// JWTVerifier accepts HS256 tokens signed with a shared secret and carrying
// a userId claim.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(raw string) (Identity, error) {
	if len(v.secret) == 0 {
		return Identity{}, fmt.Errorf("%w: verifier has no secret", ErrInvalidToken)
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: claims", ErrInvalidToken)
	}
	userID, _ := claims["userId"].(string)
	if strings.TrimSpace(userID) == "" {
		return Identity{}, fmt.Errorf("%w: userId claim missing", ErrInvalidToken)
	}
	role, _ := claims["role"].(string)
	return Identity{UserID: strings.TrimSpace(userID), Role: role}, nil
}

func bearerToken(c *gin.Context) (string, error) {
	raw := strings.TrimSpace(c.GetHeader("Authorization"))
	if raw == "" {
		return "", ErrMissingToken
	}
	parts := strings.Split(raw, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}

// AuthGuard rejects requests without a valid bearer token, and with a role
// outside allowedRoles when any are given.
func AuthGuard(verifier TokenVerifier, logger *zap.Logger, allowedRoles ...string) gin.HandlerFunc {
	logger = logger.Named("auth")
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			logger.Info("request rejected", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			logger.Info("token validation failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if len(allowedRoles) > 0 {
			match := false
			for _, r := range allowedRoles {
				if identity.Role == r {
					match = true
					break
				}
			}
			if !match {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
		}

		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextRole, identity.Role)
		c.Next()
	}
}

func AdminAuth(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return AuthGuard(verifier, logger, "admin")
}
