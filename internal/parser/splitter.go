package parser

import (
	"errors"
	"fmt"
	"strings"

	"gemini-pinecone-rag/internal/config"
	"gemini-pinecone-rag/internal/models"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

var ErrInvalidWindow = errors.New("chunk overlap must be smaller than chunk size")

// WindowSplitter cuts text into windows of ChunkSize characters, each starting
// ChunkSize-ChunkOverlap characters after the previous one. Chunks are exact
// substrings so neighbours share exactly ChunkOverlap characters; only the
// last chunk may be shorter.
type WindowSplitter struct {
	ChunkSize    int
	ChunkOverlap int
}

var _ textsplitter.TextSplitter = WindowSplitter{}

func (s WindowSplitter) SplitText(text string) ([]string, error) {
	if s.ChunkSize <= 0 || s.ChunkOverlap < 0 || s.ChunkOverlap >= s.ChunkSize {
		return nil, fmt.Errorf("%w: size %d, overlap %d", ErrInvalidWindow, s.ChunkSize, s.ChunkOverlap)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	if len(runes) <= s.ChunkSize {
		return []string{text}, nil
	}

	step := s.ChunkSize - s.ChunkOverlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := min(start+s.ChunkSize, len(runes))
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}

// NewSplitter returns the splitter selected by rag.splitter.
func NewSplitter(cfg config.RAGConfig) (textsplitter.TextSplitter, error) {
	switch cfg.Splitter {
	case config.SplitterWindow, "":
		return WindowSplitter{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap}, nil
	case config.SplitterRecursive:
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		), nil
	default:
		return nil, fmt.Errorf("unknown splitter %q", cfg.Splitter)
	}
}

// GetChunks splits doc and numbers the pieces from 1. Every chunk carries a
// copy of the document metadata plus its own chunk id.
func GetChunks(splitter textsplitter.TextSplitter, doc *models.Document) ([]models.Chunk, error) {
	docs, err := textsplitter.SplitDocuments(splitter, []schema.Document{{
		PageContent: doc.Content,
		Metadata:    doc.Metadata,
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", doc.Source, err)
	}

	chunks := make([]models.Chunk, 0, len(docs))
	for i, d := range docs {
		if d.Metadata == nil {
			d.Metadata = map[string]any{}
		}
		d.Metadata[models.MetadataChunkID] = i + 1
		chunks = append(chunks, models.Chunk{
			Content:  d.PageContent,
			Source:   doc.Source,
			ChunkID:  i + 1,
			Metadata: d.Metadata,
		})
	}
	return chunks, nil
}
