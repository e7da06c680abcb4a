package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"gemini-pinecone-rag/internal/models"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

var errNoEmbeddingFunc = errors.New("documents must carry their own embedding")

// VectorDBManager keeps one chromem-go collection per index name, in memory
// or persisted under dbPath.
type VectorDBManager struct {
	db *chromem.DB

	mu         sync.Mutex
	collection *chromem.Collection

	collectionName string
	dbPath         string
	compress       bool
	encryptionKey  string
	filePath       string
}

// NewVectorDBManager initializes a new vector database manager
func NewVectorDBManager(dbPath, collectionName string, inMemory, compress bool, encryptionKey string) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &VectorDBManager{
		db:             db,
		collectionName: collectionName,
		dbPath:         dbPath,
		compress:       compress,
		encryptionKey:  encryptionKey,
		filePath:       filepath.Join(dbPath, collectionName+".chromem"),
	}, nil
}

// create or read collection
func (m *VectorDBManager) Ensure(ctx context.Context) error {
	_, err := m.openCollection()
	return err
}

func (m *VectorDBManager) openCollection() (*chromem.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCollectionLocked()
}

func (m *VectorDBManager) openCollectionLocked() (*chromem.Collection, error) {
	if m.collection != nil {
		return m.collection, nil
	}
	noEmbed := func(context.Context, string) ([]float32, error) { return nil, errNoEmbeddingFunc }
	c, err := m.db.GetOrCreateCollection(m.collectionName, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	log.Debug().Str("collection", m.collectionName).Int("documents", c.Count()).Msg("Collection ready")
	return c, nil
}

// Upsert adds the records one at a time; ids already present are replaced.
func (m *VectorDBManager) Upsert(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	collection, err := m.openCollection()
	if err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(records))
	for _, rec := range records {
		docs = append(docs, chromem.Document{
			ID:        rec.ID,
			Content:   rec.Content,
			Metadata:  toStringMap(rec.Metadata),
			Embedding: rec.Values,
		})
	}

	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Query returns up to topK matches, most similar first. A topK above the
// collection size is clamped.
func (m *VectorDBManager) Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error) {
	collection, err := m.openCollection()
	if err != nil {
		return nil, err
	}
	n := min(topK, collection.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := collection.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	matches := make([]models.Match, 0, len(results))
	for _, r := range results {
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		matches = append(matches, models.Match{
			ID:       r.ID,
			Content:  r.Content,
			Metadata: meta,
			Score:    r.Similarity,
		})
	}
	return matches, nil
}

// Reset drops the collection and creates it again empty.
func (m *VectorDBManager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	m.collection = nil
	_, err := m.openCollectionLocked()
	return err
}

// Export writes the collection to <dbPath>/<collection>.chromem, encrypted
// with the configured 32 byte key.
func (m *VectorDBManager) Export(ctx context.Context) error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if m.dbPath == "" {
		return fmt.Errorf("db path is required")
	}
	if err := m.Ensure(ctx); err != nil {
		return err
	}

	log.Debug().Str("collection", m.collectionName).Str("file", m.filePath).Bool("compress", m.compress).Msg("Exporting collection")
	if err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads the collection written by Export, replacing what is in memory.
func (m *VectorDBManager) Import(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.ImportFromFile(m.filePath, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	m.collection = nil
	_, err := m.openCollectionLocked()
	return err
}

func (m *VectorDBManager) FilePath() string {
	return m.filePath
}

func toStringMap(metadata map[string]any) map[string]string {
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = fmt.Sprint(v)
	}
	return out
}
