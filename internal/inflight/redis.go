package inflight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultPrefix  = "call-finder:inflight:"
	defaultTTL     = 10 * time.Minute
	releaseTimeout = 5 * time.Second
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type lockStore interface {
	SetNX(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, token string) error
}

type redisStore struct {
	client redis.UniversalClient
}

func (s redisStore) SetNX(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, token, ttl).Result()
}

func (s redisStore) CompareAndDelete(ctx context.Context, key, token string) error {
	err := releaseScript.Run(ctx, s.client, []string{key}, token).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// RedisConfig tunes the shared registry.
type RedisConfig struct {
	Prefix string        `mapstructure:"prefix"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// Redis is a registry shared by several processes. Entries expire after TTL
// so a crashed holder does not block its id forever.
type Redis struct {
	store  lockStore
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedis(client redis.UniversalClient, cfg RedisConfig, logger *zap.Logger) *Redis {
	return newRedis(redisStore{client: client}, cfg, logger)
}

func newRedis(store lockStore, cfg RedisConfig, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	return &Redis{store: store, prefix: cfg.Prefix, ttl: cfg.TTL, logger: logger}
}

// Acquire implements Registry.
func (r *Redis) Acquire(ctx context.Context, id string) (func(), error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("request id is required")
	}

	key := r.prefix + id
	token := uuid.NewString()

	ok, err := r.store.SetNX(ctx, key, token, r.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", id, err)
	}
	if !ok {
		return nil, ErrInFlight
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The run context may already be cancelled.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			if err := r.store.CompareAndDelete(releaseCtx, key, token); err != nil {
				r.logger.Warn("failed to release in-flight entry", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}
