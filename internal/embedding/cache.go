package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
)

const cacheKeyPrefix = "rag:embedding:"

// Cache stores vectors by key. Get reports ok=false on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (vec []float32, ok bool, err error)
	Set(ctx context.Context, key string, vec []float32) error
}

// CachedClient answers from the cache and only sends misses to the wrapped client.
type CachedClient struct {
	client embeddings.EmbedderClient
	cache  Cache
	model  string
}

var _ embeddings.EmbedderClient = (*CachedClient)(nil)

func NewCachedClient(client embeddings.EmbedderClient, cache Cache, model string) *CachedClient {
	return &CachedClient{client: client, cache: cache, model: model}
}

func (c *CachedClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missIdx   []int
		missTexts []string
	)
	for i, t := range texts {
		vec, ok, err := c.cache.Get(ctx, CacheKey(c.model, t))
		if err != nil {
			// a broken cache only costs a provider call
			log.Warn().Err(err).Msg("Embedding cache read failed")
		}
		if ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.client.CreateEmbedding(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrWrongNumberVectors, len(vecs), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		if err := c.cache.Set(ctx, CacheKey(c.model, missTexts[j]), vecs[j]); err != nil {
			log.Warn().Err(err).Msg("Embedding cache write failed")
		}
	}
	return out, nil
}

// CacheKey is sha256 over the model name and the text.
func CacheKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// RedisCache keeps vectors as little-endian float32 blobs.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache connects to url and pings it.
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisCache{rdb: rdb, ttl: ttl}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	vec, err := decodeVector(b)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, vec []float32) error {
	return r.rdb.Set(ctx, key, encodeVector(vec), r.ttl).Err()
}

func (r *RedisCache) Close() error {
	return r.rdb.Close()
}

func encodeVector(vec []float32) []byte {
	b := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached vector of %d bytes", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return vec, nil
}
