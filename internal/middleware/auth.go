package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"whatsapp-campaigns/internal/config"
	"whatsapp-campaigns/pkg/response"
)

// ContextKey is a custom type for context keys
type ContextKey string

const (
	// TenantKey is the context key for the authenticated tenant
	TenantKey ContextKey = "tenant"
)

// Claims represents the JWT claims issued to a tenant's UI
type Claims struct {
	Tenant string `json:"tenant"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates bearer tokens and stores the tenant claim
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Browsers cannot set headers on websocket upgrades
		tokenString := c.Query("token")
		if header := c.GetHeader("Authorization"); header != "" {
			var err error
			tokenString, err = ExtractTokenFromHeader(header)
			if err != nil {
				response.Unauthorized(c, err.Error())
				return
			}
		}
		if tokenString == "" {
			response.Unauthorized(c, "Authorization header required")
			return
		}

		claims, err := ValidateToken(tokenString, cfg)
		if err != nil {
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				response.Unauthorized(c, "Token has expired")
			case errors.Is(err, jwt.ErrTokenNotValidYet):
				response.Unauthorized(c, "Token not valid yet")
			default:
				response.Unauthorized(c, "Invalid token")
			}
			return
		}

		c.Set(string(TenantKey), claims.Tenant)
		c.Next()
	}
}

// ValidateToken validates a JWT token string without gin context
func ValidateToken(tokenString string, cfg *config.Config) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if cfg.JWT.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWT.Issuer))
	}
	if cfg.JWT.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.JWT.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.JWT.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims.Tenant == "" {
		return nil, fmt.Errorf("missing tenant claim")
	}

	return claims, nil
}

// ExtractTokenFromHeader extracts the JWT token from an Authorization header
func ExtractTokenFromHeader(authHeader string) (string, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("invalid authorization header format")
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", fmt.Errorf("authorization header is empty")
	}
	return token, nil
}

// GetTenant returns the authenticated tenant; ok is false when auth is disabled
func GetTenant(c *gin.Context) (string, bool) {
	tenant, exists := c.Get(string(TenantKey))
	if !exists {
		return "", false
	}
	s, ok := tenant.(string)
	return s, ok
}

// TenantAllowed reports whether the caller may act on every non-empty id, sending 403 otherwise
func TenantAllowed(c *gin.Context, ids ...string) bool {
	tenant, ok := GetTenant(c)
	if !ok {
		return true
	}

	for _, id := range ids {
		if id != "" && id != tenant {
			response.Forbidden(c, "Access denied for this tenant")
			return false
		}
	}
	return true
}

// GetClientIP retrieves the client's IP address
func GetClientIP(c *gin.Context) string {
	// Check X-Forwarded-For header first
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		// X-Forwarded-For can contain multiple IPs, get the first one
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}

	// Check X-Real-IP header
	if realIP := c.GetHeader("X-Real-IP"); realIP != "" {
		return realIP
	}

	// Fall back to RemoteAddr
	return c.ClientIP()
}
