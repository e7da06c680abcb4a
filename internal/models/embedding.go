package models

// Document is a loaded source file before splitting
type Document struct {
	Content  string
	Source   string
	Metadata map[string]any
}

// Chunk represents a split piece of a document with metadata
type Chunk struct {
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	ChunkID  int            `json:"chunk_id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChunkEmbedding pairs a chunk with its embedding vector
type ChunkEmbedding struct {
	Content   string
	Embedding []float32
	Source    string
	ChunkID   int
	Metadata  map[string]any
}

// Record is what gets written to a vector index.
type Record struct {
	ID       string
	Values   []float32
	Content  string
	Metadata map[string]any
}

// Match is a record returned by a similarity search, most similar first.
type Match struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float32        `json:"score"`
}

type PromptResponse struct {
	Query   string  `json:"query"`
	Source  string  `json:"source"`
	Content string  `json:"answer"`
	Matches []Match `json:"matches"`
}
