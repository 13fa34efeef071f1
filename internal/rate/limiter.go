// Package rate implementa un rate limit fixed-window para los endpoints de
// auth del stub de desarrollo: corta fuerza bruta de login sin estado extra.
package rate

import (
	"context"
	"sync"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Result es el veredicto de un intento.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	CurrentHits int64
}

// Limiter decide si un key (usuario o IP) puede intentar de nuevo.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// MemoryLimiter: fixed window in-process. Default del stub de desarrollo.
type MemoryLimiter struct {
	Max    int64
	Window time.Duration

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	hits  int64
	reset time.Time
}

func NewMemoryLimiter(max int, win time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		Max:     int64(max),
		Window:  win,
		windows: map[string]*window{},
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.After(w.reset) {
		w = &window{reset: now.Add(l.Window)}
		l.windows[key] = w
	}
	w.hits++

	res := Result{
		Allowed:     w.hits <= l.Max,
		Remaining:   l.Max - w.hits,
		CurrentHits: w.hits,
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = time.Until(w.reset)
	}
	return res, nil
}

// RedisLimiter: fixed window sencillo (INCR + EXPIRE). Para cuando varios
// procesos del stub comparten un redis.
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	Max    int64
	Window time.Duration
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, win time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{Client: client, Prefix: prefix, Max: int64(max), Window: win}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	k := l.Prefix + key
	hits, err := l.Client.Incr(ctx, k).Result()
	if err != nil {
		return Result{}, err
	}
	if hits == 1 {
		// primera del window: arranca el TTL
		if err := l.Client.Expire(ctx, k, l.Window).Err(); err != nil {
			return Result{}, err
		}
	}

	res := Result{
		Allowed:     hits <= l.Max,
		Remaining:   l.Max - hits,
		CurrentHits: hits,
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		if ttl, err := l.Client.TTL(ctx, k).Result(); err == nil && ttl > 0 {
			res.RetryAfter = ttl
		}
	}
	return res, nil
}
