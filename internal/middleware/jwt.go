package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/skillswap-api/internal/identity"
	"github.com/noah-isme/skillswap-api/internal/utils"
)

// TokenRevocations reports whether a token id was revoked by logout.
type TokenRevocations interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// JWTProtected returns a middleware that validates JWT bearer tokens and binds
// the caller's identity to the request context. Websocket upgrades may pass the
// token as the access_token query parameter.
func JWTProtected(secret string, revocations TokenRevocations) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		netID := extractNetIDFromClaims(claims)
		if netID == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		tokenID, _ := claims["jti"].(string)
		if revocations != nil && tokenID != "" {
			revoked, err := revocations.IsRevoked(c.UserContext(), tokenID)
			if err != nil {
				return utils.SendError(c, fiber.StatusServiceUnavailable, "unable to verify session")
			}
			if revoked {
				return utils.SendError(c, fiber.StatusUnauthorized, "session has ended")
			}
		}

		var expiresAt time.Time
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			expiresAt = exp.Time
		}

		c.Locals("user_id", netID)
		c.SetUserContext(identity.WithIdentity(c.UserContext(), identity.Identity{
			NetID:     netID,
			TokenID:   tokenID,
			ExpiresAt: expiresAt,
		}))

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authorization := c.Get("Authorization")
	if authorization == "" {
		if token := strings.TrimSpace(c.Query("access_token")); token != "" {
			return token, nil
		}
		return "", fmt.Errorf("authorization header missing")
	}

	const bearer = "Bearer "
	if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
		return "", fmt.Errorf("invalid authorization header")
	}

	tokenString := strings.TrimSpace(authorization[len(bearer):])
	if tokenString == "" {
		return "", fmt.Errorf("invalid token")
	}
	return tokenString, nil
}

func extractNetIDFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"sub", "net_id"} {
		if value, ok := claims[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
