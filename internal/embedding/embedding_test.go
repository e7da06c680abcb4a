package embedding

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"gemini-pinecone-rag/internal/config"
	"gemini-pinecone-rag/internal/models"

	"github.com/tmc/langchaingo/embeddings"
)

// lengthClient returns [len(text), 1, 0...] padded to dim and counts calls.
type lengthClient struct {
	dim   int
	calls int
	texts []string
}

func (c *lengthClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.texts = append(c.texts, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, c.dim)
		v[0] = float32(len(t))
		if c.dim > 1 {
			v[1] = 1
		}
		out[i] = v
	}
	return out, nil
}

type mapCache struct {
	mu sync.Mutex
	m  map[string][]float32
}

func newMapCache() *mapCache { return &mapCache{m: map[string][]float32{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = vec
	return nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.RateLimit.EmbedRPM = 0
	return cfg
}

func TestGenerateEmbeddingSequential(t *testing.T) {
	client := &lengthClient{dim: 8}
	embedder, err := NewEmbedder(client, testConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}

	chunks := []models.Chunk{
		{Content: "first\nline", Source: "a.txt", ChunkID: 1},
		{Content: "second", Source: "a.txt", ChunkID: 2},
		{Content: "third", Source: "a.txt", ChunkID: 3},
	}
	got, err := GenerateEmbedding(context.Background(), embedder, 8, chunks)
	if err != nil {
		t.Fatalf("GenerateEmbedding: %v", err)
	}
	if len(got) != 3 || client.calls != 3 {
		t.Fatalf("got %d embeddings over %d calls", len(got), client.calls)
	}
	for i, ce := range got {
		if ce.ChunkID != chunks[i].ChunkID || ce.Content != chunks[i].Content {
			t.Fatalf("order not kept at %d: %+v", i, ce)
		}
		if len(ce.Embedding) != 8 {
			t.Fatalf("dimension %d", len(ce.Embedding))
		}
	}
	if client.texts[0] != "first\nline" {
		t.Fatalf("newlines must be kept, sent %q", client.texts[0])
	}
}

func TestGenerateEmbeddingNoChunks(t *testing.T) {
	client := &lengthClient{dim: 4}
	embedder, _ := NewEmbedder(client, testConfig(), nil)
	got, err := GenerateEmbedding(context.Background(), embedder, 4, nil)
	if err != nil || got != nil {
		t.Fatalf("got %v, %v", got, err)
	}
	if client.calls != 0 {
		t.Fatalf("client called %d times", client.calls)
	}
}

func TestEmbedTextDimensionMismatch(t *testing.T) {
	embedder, _ := NewEmbedder(&lengthClient{dim: 768}, testConfig(), nil)
	_, err := EmbedText(context.Background(), embedder, 3072, "What is RAG?")
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("got %v, want ErrDimensionMismatch", err)
	}
}

func TestEmbedderWrongNumberOfVectors(t *testing.T) {
	empty := embeddings.EmbedderClientFunc(func(context.Context, []string) ([][]float32, error) {
		return nil, nil
	})
	embedder, _ := NewEmbedder(empty, testConfig(), nil)
	_, err := EmbedText(context.Background(), embedder, 0, "x")
	if !errors.Is(err, ErrWrongNumberVectors) {
		t.Fatalf("got %v, want ErrWrongNumberVectors", err)
	}
}

func TestCachedClient(t *testing.T) {
	client := &lengthClient{dim: 4}
	cache := newMapCache()
	cached := NewCachedClient(client, cache, "models/gemini-embedding-001")
	ctx := context.Background()

	first, err := cached.CreateEmbedding(ctx, []string{"a", "bb"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := cached.CreateEmbedding(ctx, []string{"ccc", "a", "bb"})
	if err != nil {
		t.Fatal(err)
	}
	if client.calls != 2 {
		t.Fatalf("calls = %d", client.calls)
	}
	if !reflect.DeepEqual(client.texts, []string{"a", "bb", "ccc"}) {
		t.Fatalf("only misses should reach the client, got %q", client.texts)
	}
	if !reflect.DeepEqual(second[1], first[0]) || !reflect.DeepEqual(second[2], first[1]) {
		t.Fatal("cached vectors differ")
	}
	if second[0][0] != 3 {
		t.Fatalf("miss placed at wrong index: %v", second)
	}

	if _, err := cached.CreateEmbedding(ctx, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if client.calls != 2 {
		t.Fatal("full hit must not call the client")
	}
}

func TestCacheKeyIncludesModel(t *testing.T) {
	if CacheKey("m1", "text") == CacheKey("m2", "text") {
		t.Fatal("model must be part of the key")
	}
	if CacheKey("m1", "ab") == CacheKey("m1a", "b") {
		t.Fatal("model and text must be separated")
	}
}

func TestVectorEncoding(t *testing.T) {
	vec := []float32{0, -1.5, 3.25, 1e-7}
	got, err := decodeVector(encodeVector(vec))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, vec) {
		t.Fatalf("got %v", got)
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error on truncated blob")
	}
}

func TestRateLimitedClientHonoursContext(t *testing.T) {
	client := &lengthClient{dim: 2}
	limited := NewRateLimitedClient(client, 1)

	ctx := context.Background()
	if _, err := limited.CreateEmbedding(ctx, []string{"a"}); err != nil {
		t.Fatal(err)
	}

	// the next token is a minute away
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := limited.CreateEmbedding(cctx, []string{"b"}); err == nil {
		t.Fatal("expected error from cancelled wait")
	}
	if client.calls != 1 {
		t.Fatalf("calls = %d", client.calls)
	}
}
