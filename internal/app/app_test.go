package app

import (
	"context"
	"errors"
	"testing"

	"gemini-pinecone-rag/internal/config"
	"gemini-pinecone-rag/internal/models"
)

func chromemConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.EmbedLLM = config.LLMConfig{Provider: config.ProviderOllama, Model: "nomic-embed-text"}
	cfg.LLM = config.LLMConfig{Provider: config.ProviderOllama, Model: "llama3.2"}
	cfg.VectorDB.Type = config.VectorDBChromem
	cfg.VectorDB.IndexName = "docs"
	cfg.VectorDB.Chromem = config.ChromemConfig{Path: t.TempDir(), InMemory: true}
	cfg.RAG.Dimension = 3
	return cfg
}

func TestNewSplitOnly(t *testing.T) {
	cfg := config.DefaultConfig()
	a, err := New(context.Background(), cfg, config.PurposeSplit)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if a.Ingestor == nil || a.Index != nil || a.Query != nil {
		t.Fatalf("unexpected app %+v", a)
	}
}

func TestNewByPurpose(t *testing.T) {
	cfg := chromemConfig(t)

	ingest, err := New(context.Background(), cfg, config.PurposeIngest)
	if err != nil {
		t.Fatal(err)
	}
	defer ingest.Close()
	if ingest.Index == nil || ingest.Ingestor == nil || ingest.Query != nil {
		t.Fatalf("unexpected ingest app %+v", ingest)
	}

	query, err := New(context.Background(), cfg, config.PurposeQuery)
	if err != nil {
		t.Fatal(err)
	}
	defer query.Close()
	if query.Query == nil {
		t.Fatal("query engine missing")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.EmbedLLM.Key = ""
	_, err := New(context.Background(), cfg, config.PurposeIngest)
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("got %v", err)
	}
}

func TestFlushExportsInMemoryCollection(t *testing.T) {
	ctx := context.Background()
	cfg := chromemConfig(t)
	cfg.RAG.EncryptionKey = "0123456789abcdef0123456789abcdef"

	a, err := New(ctx, cfg, config.PurposeIngest)
	if err != nil {
		t.Fatal(err)
	}
	rec := models.Record{
		ID:       "r1",
		Values:   []float32{1, 0, 0},
		Content:  "kept across restarts",
		Metadata: map[string]any{models.MetadataSource: "a.txt"},
	}
	if err := a.Index.Upsert(ctx, []models.Record{rec}); err != nil {
		t.Fatal(err)
	}
	if err := a.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	b, err := New(ctx, cfg, config.PurposeQuery)
	if err != nil {
		t.Fatal(err)
	}
	matches, err := b.Index.Query(ctx, []float32{1, 0, 0}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Content != rec.Content {
		t.Fatalf("matches %+v", matches)
	}
}

func TestFlushWithoutKeyIsNoop(t *testing.T) {
	a, err := New(context.Background(), chromemConfig(t), config.PurposeIngest)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, chromemConfig(t), config.PurposeIngest)
	if err != nil {
		t.Fatal(err)
	}
	rec := models.Record{ID: "r1", Values: []float32{0, 1, 0}, Content: "old"}
	if err := a.Index.Upsert(ctx, []models.Record{rec}); err != nil {
		t.Fatal(err)
	}
	if err := a.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	matches, err := a.Index.Query(ctx, []float32{0, 1, 0}, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Fatalf("index not cleared: %+v", matches)
	}
}
