package rag

import (
	"context"
	"errors"

	"gemini-pinecone-rag/internal/models"
)

var (
	// ErrNoChunks is returned when a document splits into nothing worth indexing.
	ErrNoChunks = errors.New("document produced no chunks")
	// ErrNoContext is returned when retrieval finds no records, before the model is called.
	ErrNoContext = errors.New("no context retrieved for question")
)

// VectorIndex is the vector store both pipelines talk to.
type VectorIndex interface {
	// Ensure creates the index when missing. Calling it again is a no-op.
	Ensure(ctx context.Context) error
	Upsert(ctx context.Context, records []models.Record) error
	// Query returns at most topK matches ordered by decreasing similarity.
	Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error)
}
