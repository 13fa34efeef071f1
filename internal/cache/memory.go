package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache.
type memoryClient struct {
	c      *gocache.Cache
	prefix string
}

// NewMemory crea un cliente de cache in-process.
func NewMemory(prefix string) *memoryClient {
	return &memoryClient{
		c:      gocache.New(gocache.NoExpiration, 5*time.Minute),
		prefix: prefix,
	}
}

func (c *memoryClient) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *memoryClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := c.c.Get(c.key(key))
	if !ok {
		return "", ErrNotFound
	}
	s, ok := v.(string)
	if !ok {
		return "", ErrNotFound
	}
	return s, nil
}

func (c *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	d := ttl
	if d == 0 {
		d = gocache.NoExpiration
	}
	c.c.Set(c.key(key), value, d)
	return nil
}

func (c *memoryClient) Delete(ctx context.Context, key string) error {
	c.c.Delete(c.key(key))
	return nil
}

func (c *memoryClient) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	full := c.key(prefix)
	n := 0
	for k := range c.c.Items() {
		if strings.HasPrefix(k, full) {
			c.c.Delete(k)
			n++
		}
	}
	return n, nil
}

func (c *memoryClient) Clear(ctx context.Context) error {
	c.c.Flush()
	return nil
}

// snapshotEntry es el formato persistido de una entrada.
type snapshotEntry struct {
	Value     string `json:"v"`
	ExpiresAt int64  `json:"exp,omitempty"` // unix nanos; 0 = sin expiración
}

func (c *memoryClient) Snapshot(ctx context.Context) ([]byte, error) {
	out := map[string]snapshotEntry{}
	for k, item := range c.c.Items() {
		if item.Expired() {
			continue
		}
		s, ok := item.Object.(string)
		if !ok {
			continue
		}
		out[k] = snapshotEntry{Value: s, ExpiresAt: item.Expiration}
	}
	return json.Marshal(out)
}

func (c *memoryClient) Restore(ctx context.Context, data []byte) error {
	var in map[string]snapshotEntry
	if err := json.Unmarshal(data, &in); err != nil {
		// Blob corrupto: se descarta, el cache arranca frío.
		return nil
	}
	now := time.Now()
	for k, e := range in {
		d := gocache.NoExpiration
		if e.ExpiresAt > 0 {
			exp := time.Unix(0, e.ExpiresAt)
			if !exp.After(now) {
				continue
			}
			d = exp.Sub(now)
		}
		c.c.Set(k, e.Value, d)
	}
	return nil
}

func (c *memoryClient) Close() error {
	c.c.Flush()
	return nil
}
