package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shop-payments/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// Guard serializes deliveries of the same session and remembers finished
// ones so redeliveries skip the database.
type Guard struct {
	Redis *redis.Client
	TTL   time.Duration
}

func (g *Guard) Acquire(ctx context.Context, sessionID string) (func(context.Context) error, error) {
	release, err := redisx.Lock(ctx, g.Redis, fmt.Sprintf(redisx.KeyFulfillmentLock, sessionID), g.TTL)
	if errors.Is(err, redisx.ErrLocked) {
		return nil, ErrInProgress
	}
	return release, err
}

func (g *Guard) Fulfilled(ctx context.Context, sessionID string) (string, bool) {
	orderID, err := g.Redis.Get(ctx, fmt.Sprintf(redisx.KeyFulfilled, sessionID)).Result()
	if err != nil {
		return "", false
	}
	return orderID, true
}

func (g *Guard) MarkFulfilled(ctx context.Context, sessionID, orderID string) error {
	return g.Redis.Set(ctx, fmt.Sprintf(redisx.KeyFulfilled, sessionID), orderID, redisx.TTLFulfilled).Err()
}
