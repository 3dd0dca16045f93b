// pantry/throttle/redis.go
package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/inquiry/pantry/retry"
	"github.com/redis/go-redis/v9"
)

// Redis is a Store shared by every instance pointing at the same server.
// A window is a key set with NX and a PX expiry.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisConfig configures a Redis store.
type RedisConfig struct {
	// Client, when set, is used as is and the connection fields are ignored.
	Client redis.UniversalClient

	Address  string
	Password string
	DB       int

	// KeyPrefix namespaces throttle keys. Default "inquiry:throttle:".
	KeyPrefix string

	// DialTimeout bounds the initial Ping, retries included. Default 5s.
	DialTimeout time.Duration
}

// NewRedis connects (or adopts cfg.Client) and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "inquiry:throttle:"
	}

	client := cfg.Client
	if client == nil {
		if cfg.Address == "" {
			return nil, errors.New("throttle: redis address required")
		}
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Address,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	// a server that is still starting gets a few tries within DialTimeout
	err := retry.Do(pingCtx, retry.DefaultConfig(), func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		if cfg.Client == nil {
			_ = client.Close()
		}
		return nil, fmt.Errorf("throttle: redis ping: %w", err)
	}

	return &Redis{client: client, keyPrefix: cfg.KeyPrefix}, nil
}

// Allow implements Store.
func (r *Redis) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	if window <= 0 {
		return true, nil
	}
	ok, err := r.client.SetNX(ctx, r.keyPrefix+key, time.Now().UnixMilli(), window).Result()
	if err != nil {
		return false, fmt.Errorf("throttle: redis setnx: %w", err)
	}
	return ok, nil
}

// Ping checks the connection; used by the health endpoint.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
