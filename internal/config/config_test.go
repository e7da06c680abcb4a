package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RAG.ChunkSize != 500 || cfg.RAG.ChunkOverlap != 50 || cfg.RAG.TopK != 4 {
		t.Fatalf("unexpected rag defaults: %+v", cfg.RAG)
	}
	if cfg.RAG.Dimension != 3072 {
		t.Fatalf("dimension = %d", cfg.RAG.Dimension)
	}
	if cfg.LLM.Temperature != 0 {
		t.Fatalf("temperature = %v", cfg.LLM.Temperature)
	}
	if cfg.VectorDB.Pinecone.Metric != "cosine" || cfg.VectorDB.Pinecone.Cloud != "aws" || cfg.VectorDB.Pinecone.Region != "us-east-1" {
		t.Fatalf("unexpected pinecone defaults: %+v", cfg.VectorDB.Pinecone)
	}
	if cfg.InputFile != "data/sample.txt" {
		t.Fatalf("input file = %q", cfg.InputFile)
	}
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	t.Setenv("PINECONE_INDEX", "")
	path := writeConfig(t, `
vector_db:
  type: chromem
  index_name: docs
rag:
  top_k: 2
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.VectorDB.Type != VectorDBChromem || cfg.VectorDB.IndexName != "docs" {
		t.Fatalf("vector_db = %+v", cfg.VectorDB)
	}
	if cfg.RAG.TopK != 2 {
		t.Fatalf("top_k = %d", cfg.RAG.TopK)
	}
	// untouched keys keep their defaults
	if cfg.RAG.ChunkSize != 500 || cfg.VectorDB.Pinecone.Region != "us-east-1" {
		t.Fatalf("defaults lost: %+v", cfg.RAG)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("PINECONE_API_KEY", "p-key")
	t.Setenv("PINECONE_INDEX", "rag-demo")

	cfg, err := LoadConfig(writeConfig(t, "vector_db:\n  index_name: from-file\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.EmbedLLM.Key != "g-key" || cfg.LLM.Key != "g-key" {
		t.Fatalf("google key not applied: %q %q", cfg.EmbedLLM.Key, cfg.LLM.Key)
	}
	if cfg.VectorDB.Pinecone.APIKey != "p-key" {
		t.Fatalf("pinecone key = %q", cfg.VectorDB.Pinecone.APIKey)
	}
	if cfg.VectorDB.IndexName != "rag-demo" {
		t.Fatalf("index name = %q", cfg.VectorDB.IndexName)
	}
	if err := cfg.Validate(PurposeQuery); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "rag: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.EmbedLLM.Key = "k"
		cfg.LLM.Key = "k"
		cfg.VectorDB.IndexName = "idx"
		cfg.VectorDB.Pinecone.APIKey = "p"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		purpose Purpose
		wantErr error
	}{
		{"valid query", func(*Config) {}, PurposeQuery, nil},
		{"split needs no keys", func(c *Config) { c.EmbedLLM.Key = ""; c.VectorDB.IndexName = "" }, PurposeSplit, nil},
		{"missing embed key", func(c *Config) { c.EmbedLLM.Key = "" }, PurposeIngest, ErrMissingAPIKey},
		{"missing pinecone key", func(c *Config) { c.VectorDB.Pinecone.APIKey = "" }, PurposeIngest, ErrMissingAPIKey},
		{"missing index", func(c *Config) { c.VectorDB.IndexName = "" }, PurposeIngest, ErrMissingIndexName},
		{"ingest ignores llm key", func(c *Config) { c.LLM.Key = "" }, PurposeIngest, nil},
		{"query needs llm key", func(c *Config) { c.LLM.Key = "" }, PurposeQuery, ErrMissingAPIKey},
		{"overlap too large", func(c *Config) { c.RAG.ChunkOverlap = 500 }, PurposeSplit, ErrInvalidChunking},
		{"unknown splitter", func(c *Config) { c.RAG.Splitter = "sentences" }, PurposeSplit, ErrUnknownBackend},
		{"unknown backend", func(c *Config) { c.VectorDB.Type = "milvus" }, PurposeIngest, ErrUnknownBackend},
		{"chromem needs no pinecone key", func(c *Config) {
			c.VectorDB.Type = VectorDBChromem
			c.VectorDB.Pinecone.APIKey = ""
		}, PurposeQuery, nil},
		{"ollama needs no key", func(c *Config) {
			c.EmbedLLM.Provider = ProviderOllama
			c.EmbedLLM.Key = ""
		}, PurposeIngest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate(tt.purpose)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("RAG_CONFIG", "")
	if got := DefaultPath(); got != "./configs/config.yaml" {
		t.Fatalf("got %q", got)
	}
	t.Setenv("RAG_CONFIG", "/etc/rag.yaml")
	if got := DefaultPath(); got != "/etc/rag.yaml" {
		t.Fatalf("got %q", got)
	}
}
