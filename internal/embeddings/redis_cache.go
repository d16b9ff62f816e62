package embeddings

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the optional L2 embedding cache shared across process
// instances, sitting behind the in-process LRU (L1). A nil *RedisCache is
// valid and simply disables the L2 layer.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache dials redis at addr. Connectivity is not verified here;
// callers should Ping during startup health checks.
func NewRedisCache(addr string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
		prefix: "zerorag:embed:",
	}
}

func (r *RedisCache) Get(ctx context.Context, text string) ([]float32, bool) {
	if r == nil {
		return nil, false
	}
	data, err := r.client.Get(ctx, r.prefix+HashKey(text)).Bytes()
	if err != nil {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

func (r *RedisCache) Set(ctx context.Context, text string, embedding []float32) {
	if r == nil {
		return
	}
	data, err := json.Marshal(embedding)
	if err != nil {
		return
	}
	r.client.Set(ctx, r.prefix+HashKey(text), data, r.ttl)
}

func (r *RedisCache) Ping(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	if r == nil {
		return nil
	}
	return r.client.Close()
}
