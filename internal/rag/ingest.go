package rag

import (
	"context"
	"fmt"

	"gemini-pinecone-rag/internal/embedding"
	"gemini-pinecone-rag/internal/helper"
	"gemini-pinecone-rag/internal/models"
	"gemini-pinecone-rag/internal/parser"
	"gemini-pinecone-rag/internal/telemetry"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/textsplitter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type IngestResult struct {
	Source string   `json:"source"`
	Chunks int      `json:"chunks"`
	IDs    []string `json:"ids"`
}

// Ingestor turns documents into index records: split, embed each chunk in
// order, then upsert everything in one call.
type Ingestor struct {
	index     VectorIndex
	embedder  embeddings.Embedder
	splitter  textsplitter.TextSplitter
	dimension int
}

func NewIngestor(index VectorIndex, embedder embeddings.Embedder, splitter textsplitter.TextSplitter, dimension int) *Ingestor {
	return &Ingestor{index: index, embedder: embedder, splitter: splitter, dimension: dimension}
}

// IngestFile makes sure the index exists, then loads and indexes the file.
func (in *Ingestor) IngestFile(ctx context.Context, path string) (*IngestResult, error) {
	if err := in.index.Ensure(ctx); err != nil {
		return nil, err
	}
	doc, err := parser.ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return in.ingest(ctx, doc)
}

// IngestText indexes text under the given source name.
func (in *Ingestor) IngestText(ctx context.Context, source, text string) (*IngestResult, error) {
	if err := in.index.Ensure(ctx); err != nil {
		return nil, err
	}
	return in.ingest(ctx, &models.Document{
		Content:  text,
		Source:   source,
		Metadata: map[string]any{models.MetadataSource: source},
	})
}

// Split loads and splits path without touching the embedder or the index.
func (in *Ingestor) Split(ctx context.Context, path string) ([]models.Chunk, error) {
	doc, err := parser.ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return parser.GetChunks(in.splitter, doc)
}

func (in *Ingestor) ingest(ctx context.Context, doc *models.Document) (*IngestResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "rag.ingest", trace.WithAttributes(attribute.String("rag.source", doc.Source)))
	defer span.End()

	chunks, err := parser.GetChunks(in.splitter, doc)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	span.SetAttributes(attribute.Int("rag.chunks", len(chunks)))
	if len(chunks) == 0 {
		return nil, telemetry.RecordError(span, fmt.Errorf("%w: %s", ErrNoChunks, doc.Source))
	}
	log.Info().Str("source", doc.Source).Int("chunks", len(chunks)).Msg("Split document")

	chunkEmbeddings, err := embedding.GenerateEmbedding(ctx, in.embedder, in.dimension, chunks)
	if err != nil {
		return nil, telemetry.RecordError(span, fmt.Errorf("failed to embed %s: %w", doc.Source, err))
	}

	records := make([]models.Record, 0, len(chunkEmbeddings))
	ids := make([]string, 0, len(chunkEmbeddings))
	for _, ce := range chunkEmbeddings {
		id, err := helper.GenerateUUID()
		if err != nil {
			return nil, telemetry.RecordError(span, err)
		}
		records = append(records, models.Record{
			ID:       id,
			Values:   ce.Embedding,
			Content:  ce.Content,
			Metadata: ce.Metadata,
		})
		ids = append(ids, id)
	}

	if err := in.index.Upsert(ctx, records); err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	log.Info().Str("source", doc.Source).Int("records", len(records)).Msg("Indexed document")

	return &IngestResult{Source: doc.Source, Chunks: len(records), IDs: ids}, nil
}
