package rag

import (
	"context"
	"fmt"

	"gemini-pinecone-rag/internal/embedding"
	"gemini-pinecone-rag/internal/models"
	"gemini-pinecone-rag/internal/telemetry"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Retriever embeds a question and returns the closest chunks from the index.
type Retriever struct {
	embedder  embeddings.Embedder
	index     VectorIndex
	topK      int
	dimension int
}

var _ schema.Retriever = (*Retriever)(nil)

func NewRetriever(embedder embeddings.Embedder, index VectorIndex, topK, dimension int) *Retriever {
	return &Retriever{embedder: embedder, index: index, topK: topK, dimension: dimension}
}

// Retrieve returns at most topK matches, most similar first. Fewer matches
// than topK is not an error.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]models.Match, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "rag.retrieve", trace.WithAttributes(attribute.Int("rag.top_k", r.topK)))
	defer span.End()

	vector, err := embedding.EmbedText(ctx, r.embedder, r.dimension, question)
	if err != nil {
		return nil, telemetry.RecordError(span, fmt.Errorf("failed to embed question: %w", err))
	}

	matches, err := r.index.Query(ctx, vector, r.topK)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	span.SetAttributes(attribute.Int("rag.matches", len(matches)))
	log.Debug().Int("top_k", r.topK).Int("matches", len(matches)).Msg("Retrieved context")
	return matches, nil
}

// GetRelevantDocuments lets the retriever plug into langchaingo chains.
func (r *Retriever) GetRelevantDocuments(ctx context.Context, query string) ([]schema.Document, error) {
	matches, err := r.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	docs := make([]schema.Document, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, schema.Document{
			PageContent: m.Content,
			Metadata:    m.Metadata,
			Score:       m.Score,
		})
	}
	return docs, nil
}
