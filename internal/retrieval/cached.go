package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spigell/eu-call-finder/internal/calls"
	"go.uber.org/zap"
)

const defaultCachePrefix = "call-finder:search:"

type kv interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type redisKV struct {
	client redis.UniversalClient
}

func (r redisKV) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r redisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Cached stores search results in Redis. Cache errors never fail a search.
type Cached struct {
	next   Adapter
	store  kv
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewCached wraps next with a Redis cache.
func NewCached(next Adapter, client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *Cached {
	return newCached(next, redisKV{client: client}, ttl, logger)
}

func newCached(next Adapter, store kv, ttl time.Duration, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Cached{next: next, store: store, ttl: ttl, prefix: defaultCachePrefix, logger: logger}
}

// Search implements Adapter.
func (c *Cached) Search(ctx context.Context, req Request) ([]*calls.Call, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key, err := c.key(req)
	if err != nil {
		return c.next.Search(ctx, req)
	}

	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var items []*calls.Call
		if err := json.Unmarshal([]byte(data), &items); err == nil {
			c.logger.Debug("search cache hit", zap.String("key", key), zap.Int("calls", len(items)))
			return items, nil
		}
		c.logger.Warn("search cache entry is corrupt; ignoring", zap.String("key", key))
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("search cache read failed", zap.Error(err))
	}

	items, err := c.next.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(items); err == nil {
		if err := c.store.Set(ctx, key, string(encoded), c.ttl); err != nil {
			c.logger.Warn("search cache write failed", zap.Error(err))
		}
	}
	return items, nil
}

func (c *Cached) key(req Request) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return c.prefix + hex.EncodeToString(sum[:]), nil
}
