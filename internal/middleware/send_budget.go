package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/skillswap-api/internal/identity"
	"github.com/noah-isme/skillswap-api/internal/utils"
	"github.com/noah-isme/skillswap-api/pkg/apperrors"
)

// SendBudget is a fixed-window allowance per caller kept in redis. HTTP routes
// and websocket frames draw from the same counter on every node.
type SendBudget struct {
	client     *redis.Client
	prefix     string
	identifier string
	max        int
	window     time.Duration
}

// NewSendBudget creates a budget of max units per window for each caller.
func NewSendBudget(client *redis.Client, prefix, identifier string, max int, window time.Duration) *SendBudget {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}
	if prefix == "" {
		prefix = "skillswap"
	}

	return &SendBudget{
		client:     client,
		prefix:     prefix,
		identifier: identifier,
		max:        max,
		window:     window,
	}
}

func (b *SendBudget) key(caller string) string {
	return fmt.Sprintf("%s:ratelimit:%s:%s", b.prefix, b.identifier, caller)
}

// Allow consumes one unit for caller. Redis failures let the request through.
func (b *SendBudget) Allow(ctx context.Context, caller string) bool {
	if b == nil || b.client == nil {
		return true
	}

	key := b.key(caller)
	count, err := b.client.Incr(ctx, key).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		_ = b.client.Expire(ctx, key, b.window).Err()
	}
	return count <= int64(b.max)
}

// Handler enforces the budget on HTTP routes.
func (b *SendBudget) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller := identity.NetID(c.UserContext())
		if caller == "" {
			caller = c.IP()
		}
		if !b.Allow(c.UserContext(), caller) {
			return utils.SendAppError(c, apperrors.RateLimited("too many messages, slow down"))
		}
		return c.Next()
	}
}
