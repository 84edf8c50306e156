package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/glekoz/ticket-images/internal/models"
)

const tokenPrefix = "token:"

// TokenCache keeps recently seen auth tokens in Redis so the hot
// request path does not hit Postgres on every call.
type TokenCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTokenCache(addr, password string, ttl time.Duration) *TokenCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &TokenCache{rdb: rdb, ttl: ttl}
}

func (c *TokenCache) Get(ctx context.Context, token string) (int64, error) {
	val, err := c.rdb.Get(ctx, tokenPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, models.ErrNotFound
		}
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

func (c *TokenCache) Save(ctx context.Context, token string, userID int64) error {
	return c.rdb.Set(ctx, tokenPrefix+token, strconv.FormatInt(userID, 10), c.ttl).Err()
}

func (c *TokenCache) Close() error {
	return c.rdb.Close()
}
