package oracle

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"reflights/internal/domain/payment"
	"reflights/internal/ports"
)

// Cached keeps the last normalized price in redis for ttl so a burst of
// mints reads the feed once.
type Cached struct {
	inner  ports.PriceOracle
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewCached(inner ports.PriceOracle, client *redis.Client, domainID string, ttl time.Duration) *Cached {
	return &Cached{
		inner:  inner,
		client: client,
		key:    "oracle:price:" + domainID,
		ttl:    ttl,
	}
}

func (c *Cached) CurrentUnitPrice(ctx context.Context) (payment.Amount, error) {
	if val, err := c.client.Get(ctx, c.key).Result(); err == nil {
		if n, convErr := strconv.ParseInt(val, 10, 64); convErr == nil && n > 0 {
			return payment.Amount(n), nil
		}
	}

	price, err := c.inner.CurrentUnitPrice(ctx)
	if err != nil {
		return 0, err
	}
	// A cache write failure only costs the next caller a feed read.
	_ = c.client.Set(ctx, c.key, strconv.FormatInt(int64(price), 10), c.ttl).Err()
	return price, nil
}
