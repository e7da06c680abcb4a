package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gemini-pinecone-rag/internal/config"
	"gemini-pinecone-rag/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrWrongNumberVectors = errors.New("embedding client returned wrong number of vectors")
)

// NewClient creates the provider client that turns texts into vectors.
func NewClient(ctx context.Context, llmConfig *config.LLMConfig) (embeddings.EmbedderClient, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("embedding_model", llmConfig.Model).Msg("Creating embedding client")

	switch llmConfig.Provider {
	case config.ProviderGoogleAI, "":
		return googleai.New(ctx,
			googleai.WithAPIKey(llmConfig.Key),
			googleai.WithDefaultEmbeddingModel(llmConfig.Model),
		)
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithEmbeddingModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		return openai.New(opts...)
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
		if llmConfig.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", llmConfig.Provider)
	}
}

// NewEmbedder wraps client with the configured rate limit and, when cache is
// not nil, a read-through cache. Chunk text is embedded as is, newlines included.
func NewEmbedder(client embeddings.EmbedderClient, cfg *config.Config, cache Cache) (*embeddings.EmbedderImpl, error) {
	if cfg.RateLimit.EmbedRPM > 0 {
		client = NewRateLimitedClient(client, cfg.RateLimit.EmbedRPM)
	}
	if cache != nil {
		client = NewCachedClient(client, cache, cfg.EmbedLLM.Model)
	}
	return embeddings.NewEmbedder(checkCount(client), embeddings.WithStripNewLines(false))
}

// checkCount turns a short or long reply into an error instead of an index panic.
func checkCount(client embeddings.EmbedderClient) embeddings.EmbedderClient {
	return embeddings.EmbedderClientFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
		vecs, err := client.CreateEmbedding(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrWrongNumberVectors, len(vecs), len(texts))
		}
		return vecs, nil
	})
}

// GenerateEmbedding embeds chunks one at a time, in order. Every vector must
// have dim values.
func GenerateEmbedding(ctx context.Context, embedder embeddings.Embedder, dim int, chunks []models.Chunk) ([]models.ChunkEmbedding, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks generated from content")
		return nil, nil
	}

	chunkEmbeddings := make([]models.ChunkEmbedding, 0, len(chunks))
	for _, chunk := range chunks {
		embedding, err := EmbedText(ctx, embedder, dim, chunk.Content)
		if err != nil {
			return nil, fmt.Errorf("chunk %d of %s: %w", chunk.ChunkID, chunk.Source, err)
		}
		chunkEmbeddings = append(chunkEmbeddings, models.ChunkEmbedding{
			Content:   chunk.Content,
			Embedding: embedding,
			Source:    chunk.Source,
			ChunkID:   chunk.ChunkID,
			Metadata:  chunk.Metadata,
		})
	}

	log.Debug().Int("chunks", len(chunkEmbeddings)).Int("dimension", dim).Msg("Generated embeddings")
	return chunkEmbeddings, nil
}

// EmbedText embeds a single text and checks its dimension.
func EmbedText(ctx context.Context, embedder embeddings.Embedder, dim int, text string) ([]float32, error) {
	embedding, err := embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if dim > 0 && len(embedding) != dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(embedding), dim)
	}
	return embedding, nil
}
