package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// TokenClaims is the modern-model Bearer token payload: a principal
// (subject) plus the scopes it was issued for. Legacy-model targets never
// reach this path; they authenticate via the x-api-token header instead.
type TokenClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

func (c *TokenClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// AuthMiddleware validates the inbound request's credentials and stores
// the resolved principal/scopes/legacy-token in fiber locals for handlers
// and the lifecycle coordinator's authorization step to read.
//
// Two credential forms are accepted per the registry's back-compat model:
// a Bearer JWT (modern) or an x-api-token header (legacy).
func AuthMiddleware(secret []byte, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if legacyToken := c.Get("x-api-token"); legacyToken != "" {
			c.Locals("legacy_token", legacyToken)
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			logger.Warn("missing authorization header")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "missing_authorization_header",
				"message": "Authorization header or x-api-token is required",
			})
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims := &TokenClaims{}
		_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil {
			logger.Warn("token validation failed", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "invalid_token",
				"message": "token validation failed",
			})
		}

		c.Locals("claims", claims)
		c.Locals("principal", claims.Subject)

		return c.Next()
	}
}

// ClaimsFromContext extracts the validated modern-model claims, if present.
func ClaimsFromContext(c *fiber.Ctx) (*TokenClaims, bool) {
	v := c.Locals("claims")
	if v == nil {
		return nil, false
	}
	claims, ok := v.(*TokenClaims)
	return claims, ok
}

// LegacyTokenFromContext extracts the legacy x-api-token, if present.
func LegacyTokenFromContext(c *fiber.Ctx) (string, bool) {
	v := c.Locals("legacy_token")
	if v == nil {
		return "", false
	}
	token, ok := v.(string)
	return token, ok
}
