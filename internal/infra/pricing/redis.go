package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order_go/internal/domain"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix is prepended to the upper-case symbol to form the cache key.
const KeyPrefix = "price:"

// stringGetter is the part of redis.Cmdable the source needs.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisSource reads quotes the pricing service caches in Redis as JSON.
type RedisSource struct {
	client stringGetter
}

var _ domain.PriceSource = (*RedisSource)(nil)

// NewRedisSource wraps a go-redis client.
func NewRedisSource(client redis.Cmdable) *RedisSource {
	return &RedisSource{client: client}
}

// Quote reads price:<SYMBOL>. A missing key means no price.
func (s *RedisSource) Quote(ctx context.Context, symbol string) (domain.Quote, error) {
	data, err := s.client.Get(ctx, KeyPrefix+symbol).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Quote{}, fmt.Errorf("%w: no cached quote for %s", domain.ErrPriceUnavailable, symbol)
	}
	if err != nil {
		return domain.Quote{}, fmt.Errorf("%w: %w", domain.ErrPriceUnavailable, domain.NewNetworkError("redis get", err))
	}

	q, err := decodeQuote(data, "redis", time.Time{})
	if err != nil {
		return domain.Quote{}, err
	}
	if q.Symbol == "" {
		q.Symbol = symbol
	}
	return q, nil
}
