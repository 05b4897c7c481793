package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/config"
)

// NewRedis returns a configured Redis client.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Pinger adapts a Redis client to readiness probes.
type Pinger struct {
	client *redis.Client
}

// NewPinger wraps client.
func NewPinger(client *redis.Client) Pinger {
	return Pinger{client: client}
}

// PingContext round-trips a PING.
func (p Pinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
