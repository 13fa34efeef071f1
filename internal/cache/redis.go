package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient implementa Client usando Redis.
type redisClient struct {
	client *redis.Client
	prefix string
}

// NewRedis crea un cliente de cache Redis.
func NewRedis(cfg Config) (*redisClient, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verificar conexión
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis ping failed: %w", err)
	}

	return &redisClient{
		client: rdb,
		prefix: cfg.Prefix,
	}, nil
}

func (c *redisClient) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *redisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (c *redisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

func (c *redisClient) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

func (c *redisClient) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor uint64
		total  int
	)
	match := c.key(prefix) + "*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return total, err
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return total, err
			}
			total += int(n)
		}
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

func (c *redisClient) Clear(ctx context.Context) error {
	// Con prefix solo borramos nuestras keys; sin prefix, la DB entera.
	if c.prefix != "" {
		_, err := c.DeletePrefix(ctx, "")
		return err
	}
	return c.client.FlushDB(ctx).Err()
}

// Snapshot no aplica en redis: el backend ya persiste entre procesos.
func (c *redisClient) Snapshot(ctx context.Context) ([]byte, error) {
	return nil, nil
}

func (c *redisClient) Restore(ctx context.Context, data []byte) error {
	return nil
}

func (c *redisClient) Close() error {
	return c.client.Close()
}
