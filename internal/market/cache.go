package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trader/internal/models"
)

// CachedQuoter keeps last closes in Redis for a short TTL in front of another Quoter.
// Prices are stored as decimal strings so the cached value is the exact provider text.
// Redis failures fall through to the wrapped Quoter.
type CachedQuoter struct {
	next Quoter
	rdb  *redis.Client
	ttl  time.Duration
	log  *slog.Logger
}

var _ Quoter = (*CachedQuoter)(nil)

// NewCachedQuoter wraps next with a Redis cache
func NewCachedQuoter(next Quoter, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *CachedQuoter {
	return &CachedQuoter{
		next: next,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With("component", "quote-cache"),
	}
}

// LastClose returns the cached last close or fetches and caches it.
// Unavailable results are never cached.
func (c *CachedQuoter) LastClose(ctx context.Context, ticker string, w Window) (decimal.Decimal, error) {
	ticker = models.NormalizeTicker(ticker)
	key := cacheKey(ticker, w)

	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		if price, perr := decimal.NewFromString(cached); perr == nil {
			return price, nil
		}
		c.log.Warn("discarding malformed cached quote", "key", key, "value", cached)
	case !errors.Is(err, redis.Nil):
		c.log.Warn("quote cache read failed", "key", key, "error", err)
	}

	price, err := c.next.LastClose(ctx, ticker, w)
	if err != nil {
		return decimal.Zero, err
	}

	if err := c.rdb.Set(ctx, key, price.String(), c.ttl).Err(); err != nil {
		c.log.Warn("quote cache write failed", "key", key, "error", err)
	}
	return price, nil
}

func cacheKey(ticker string, w Window) string {
	return fmt.Sprintf("quote:%s:%s:%s", ticker, w.Period, w.Interval)
}
