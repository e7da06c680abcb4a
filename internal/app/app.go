// Package app builds the pipelines from a config.Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gemini-pinecone-rag/internal/chromemdb"
	"gemini-pinecone-rag/internal/config"
	"gemini-pinecone-rag/internal/db"
	"gemini-pinecone-rag/internal/embedding"
	"gemini-pinecone-rag/internal/llmservice"
	"gemini-pinecone-rag/internal/parser"
	"gemini-pinecone-rag/internal/pineconedb"
	"gemini-pinecone-rag/internal/rag"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
)

// App holds the clients shared by the pipelines. Fields a purpose does not
// need stay nil.
type App struct {
	Config   *config.Config
	Index    rag.VectorIndex
	Ingestor *rag.Ingestor
	Query    *rag.QueryEngine

	chromem *chromemdb.VectorDBManager
	closers []func() error
}

// New validates cfg for purpose and constructs every client it requires.
func New(ctx context.Context, cfg *config.Config, purpose config.Purpose) (*App, error) {
	if err := cfg.Validate(purpose); err != nil {
		return nil, err
	}
	a := &App{Config: cfg}

	splitter, err := parser.NewSplitter(cfg.RAG)
	if err != nil {
		return nil, err
	}
	if purpose == config.PurposeSplit {
		a.Ingestor = rag.NewIngestor(nil, nil, splitter, cfg.RAG.Dimension)
		return a, nil
	}

	embedder, err := a.newEmbedder(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.Index, err = a.newIndex(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.Ingestor = rag.NewIngestor(a.Index, embedder, splitter, cfg.RAG.Dimension)

	if purpose == config.PurposeIngest {
		return a, nil
	}

	model, err := llmservice.NewModel(ctx, &cfg.LLM)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create language model: %w", err)
	}
	model = llmservice.WithRateLimit(model, cfg.RateLimit.LLMRPM)
	retriever := rag.NewRetriever(embedder, a.Index, cfg.RAG.TopK, cfg.RAG.Dimension)
	a.Query = rag.NewQueryEngine(retriever, model, cfg.LLM.Temperature)
	return a, nil
}

func (a *App) newEmbedder(ctx context.Context) (embeddings.Embedder, error) {
	client, err := embedding.NewClient(ctx, &a.Config.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	var cache embedding.Cache
	if a.Config.Cache.Enabled {
		ttl := time.Duration(a.Config.Cache.TTLSecs) * time.Second
		rc, err := embedding.NewRedisCache(ctx, a.Config.Cache.RedisURL, ttl)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rc.Close)
		cache = rc
	}
	return embedding.NewEmbedder(client, a.Config, cache)
}

func (a *App) newIndex(ctx context.Context) (rag.VectorIndex, error) {
	vdb := a.Config.VectorDB
	dim := a.Config.RAG.Dimension

	switch vdb.Type {
	case config.VectorDBPinecone:
		return pineconedb.NewIndex(pineconedb.Params{
			APIKey:    vdb.Pinecone.APIKey,
			IndexName: vdb.IndexName,
			Host:      vdb.Pinecone.Host,
			Namespace: vdb.Pinecone.Namespace,
			Dimension: dim,
			Metric:    vdb.Pinecone.Metric,
			Cloud:     vdb.Pinecone.Cloud,
			Region:    vdb.Pinecone.Region,
		})

	case config.VectorDBChromem:
		m, err := chromemdb.NewVectorDBManager(vdb.Chromem.Path, vdb.IndexName, vdb.Chromem.InMemory, vdb.Chromem.Compress, a.Config.RAG.EncryptionKey)
		if err != nil {
			return nil, err
		}
		if a.exportsChromem() {
			if _, err := os.Stat(m.FilePath()); err == nil {
				if err := m.Import(ctx); err != nil {
					return nil, err
				}
				log.Info().Str("file", m.FilePath()).Msg("Imported collection")
			}
		}
		a.chromem = m
		return m, nil

	case config.VectorDBPostgres:
		sqldb, err := db.ConnectDB(vdb.Postgres.Driver, vdb.Postgres.DSN, vdb.Postgres.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		bunDB := db.NewDB(sqldb, vdb.Postgres.Debug)
		a.closers = append(a.closers, bunDB.Close)
		return db.NewStore(bunDB, vdb.IndexName, dim), nil

	default:
		return nil, fmt.Errorf("%w: vector_db.type %q", config.ErrUnknownBackend, vdb.Type)
	}
}

type resetter interface {
	Reset(ctx context.Context) error
}

// Reset empties the configured index. Pinecone indexes are left untouched.
func (a *App) Reset(ctx context.Context) error {
	r, ok := a.Index.(resetter)
	if !ok {
		return fmt.Errorf("%w: %s index cannot be reset", config.ErrUnknownBackend, a.Config.VectorDB.Type)
	}
	log.Warn().Str("vector_db", a.Config.VectorDB.Type).Str("index", a.Config.VectorDB.IndexName).Msg("Clearing index")
	return r.Reset(ctx)
}

// an in-memory chromem collection survives restarts only through an
// encrypted export file
func (a *App) exportsChromem() bool {
	c := a.Config.VectorDB.Chromem
	return c.InMemory && c.Path != "" && a.Config.RAG.EncryptionKey != ""
}

// Flush writes in-memory state that would otherwise be lost on exit.
func (a *App) Flush(ctx context.Context) error {
	if a.chromem == nil || !a.exportsChromem() {
		return nil
	}
	if err := os.MkdirAll(a.Config.VectorDB.Chromem.Path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}
	return a.chromem.Export(ctx)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
