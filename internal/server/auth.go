package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/fieldproof/fieldproof/internal/ports"
)

// contextKeyAuth holds the resolved AuthContext in the gin context.
const contextKeyAuth = "authContext"

// Claims is the JWT payload issued to API callers. Subject carries the
// user id.
type Claims struct {
	TenantID   string `json:"tenant_id"`
	TenantSlug string `json:"tenant_slug"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for the given identity. Used by
// provisioning tooling and tests; the API itself never issues tokens.
func GenerateToken(auth ports.AuthContext, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		TenantID:   auth.TenantID,
		TenantSlug: auth.TenantSlug,
		Role:       auth.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   auth.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// validateToken parses and verifies a token string.
func validateToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// AuthMiddleware validates the bearer token and attaches the resolved
// identity. Everything downstream trusts the AuthContext completely.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "authorization header required")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "authorization header format must be Bearer {token}")
			return
		}

		claims, err := validateToken(parts[1], secret)
		if err != nil {
			abortUnauthorized(c, "invalid or expired token")
			return
		}
		if claims.TenantID == "" {
			abortUnauthorized(c, "token carries no tenant")
			return
		}

		c.Set(contextKeyAuth, ports.AuthContext{
			TenantID:   claims.TenantID,
			TenantSlug: claims.TenantSlug,
			UserID:     claims.Subject,
			Role:       claims.Role,
		})
		c.Next()
	}
}

// authFrom returns the AuthContext placed by AuthMiddleware.
func authFrom(c *gin.Context) ports.AuthContext {
	return c.MustGet(contextKeyAuth).(ports.AuthContext)
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"code": "UNAUTHORIZED", "message": message},
	})
}
