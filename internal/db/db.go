package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gemini-pinecone-rag/internal/models"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

var ErrDimensionMismatch = errors.New("embedding column dimension mismatch")

// Document is one chunk row. Rows of different indexes share the table and
// are told apart by index_name, so they share one vector dimension too.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            string          `bun:"id,pk"`
	IndexName     string          `bun:"index_name,notnull"`
	Content       string          `bun:"content,notnull"`
	Metadata      map[string]any  `bun:"metadata,type:jsonb"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Distance      float64         `bun:"distance,scanonly"`
}

// documentTable is the DDL shape of Document. The embedding column is added
// with its dimension when the table is created.
type documentTable struct {
	bun.BaseModel `bun:"table:documents"`
	ID            string         `bun:"id,pk"`
	IndexName     string         `bun:"index_name,notnull"`
	Content       string         `bun:"content,notnull"`
	Metadata      map[string]any `bun:"metadata,type:jsonb"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens dsn with bun's pgdriver ("pg") or lib/pq ("postgres").
func ConnectDB(driver, dsn, password string) (*sql.DB, error) {
	switch driver {
	case "pg", "":
		opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
		if password != "" {
			opts = append(opts, pgdriver.WithPassword(password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	case "postgres":
		return sql.Open("postgres", dsn)
	default:
		return nil, fmt.Errorf("unknown postgres driver %q", driver)
	}
}

// Store is a pgvector backed vector index. Similarity is cosine, reported as
// 1 - cosine distance.
type Store struct {
	db        *bun.DB
	indexName string
	dimension int
}

func NewStore(db *bun.DB, indexName string, dimension int) *Store {
	return &Store{db: db, indexName: indexName, dimension: dimension}
}

// Ensure enables the vector extension, creates the table if missing and
// checks that an existing embedding column has the store's dimension.
func (s *Store) Ensure(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	if err := InitDB(ctx, s.db, s.dimension); err != nil {
		return err
	}
	return checkDimension(ctx, s.db, s.dimension)
}

func createTableQuery(db *bun.DB, dimension int) *bun.CreateTableQuery {
	return db.NewCreateTable().
		Model((*documentTable)(nil)).
		ColumnExpr("embedding vector(?) NOT NULL", dimension).
		IfNotExists()
}

func InitDB(ctx context.Context, db *bun.DB, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", dimension)
	}
	if _, err := createTableQuery(db, dimension).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}
	_, err := db.NewCreateIndex().
		Model((*Document)(nil)).
		Index("documents_index_name_idx").
		Column("index_name").
		IfNotExists().
		Exec(ctx)
	return err
}

// pgvector keeps the declared dimension in atttypmod, -1 when undeclared.
func checkDimension(ctx context.Context, db *bun.DB, dimension int) error {
	var typmod int
	err := db.NewSelect().
		TableExpr("pg_attribute").
		Column("atttypmod").
		Where("attrelid = 'documents'::regclass").
		Where("attname = 'embedding'").
		Scan(ctx, &typmod)
	if err != nil {
		return fmt.Errorf("failed to read embedding column type: %w", err)
	}
	if typmod != dimension {
		return fmt.Errorf("%w: documents.embedding is vector(%d), want %d", ErrDimensionMismatch, typmod, dimension)
	}
	return nil
}

// Upsert inserts every record in one statement, replacing rows with the same id.
func (s *Store) Upsert(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]Document, 0, len(records))
	for _, rec := range records {
		if s.dimension > 0 && len(rec.Values) != s.dimension {
			return fmt.Errorf("record %s has %d dimensions, want %d", rec.ID, len(rec.Values), s.dimension)
		}
		docs = append(docs, Document{
			ID:        rec.ID,
			IndexName: s.indexName,
			Content:   rec.Content,
			Metadata:  rec.Metadata,
			Embedding: pgvector.NewVector(rec.Values),
		})
	}

	_, err := s.db.NewInsert().
		Model(&docs).
		On("CONFLICT (id) DO UPDATE").
		Set("index_name = EXCLUDED.index_name").
		Set("content = EXCLUDED.content").
		Set("metadata = EXCLUDED.metadata").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store %d documents: %w", len(docs), err)
	}
	log.Debug().Int("rows", len(docs)).Str("index", s.indexName).Msg("Stored documents")
	return nil
}

func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error) {
	docs, err := SearchDocuments(ctx, s.db, s.indexName, vector, topK)
	if err != nil {
		return nil, err
	}

	matches := make([]models.Match, 0, len(docs))
	for _, d := range docs {
		matches = append(matches, models.Match{
			ID:       d.ID,
			Content:  d.Content,
			Metadata: d.Metadata,
			Score:    float32(1 - d.Distance),
		})
	}
	return matches, nil
}

func SearchDocuments(ctx context.Context, db *bun.DB, indexName string, queryEmbedding []float32, limit int) ([]Document, error) {
	q := pgvector.NewVector(queryEmbedding)
	var docs []Document
	err := db.NewSelect().
		Model(&docs).
		Column("id", "content", "metadata").
		ColumnExpr("embedding <=> ? AS distance", q).
		Where("index_name = ?", indexName).
		OrderExpr("embedding <=> ?", q).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	return docs, nil
}

// Reset deletes every record of this index, leaving other indexes alone.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.Ensure(ctx); err != nil {
		return err
	}
	if err := DropDocuments(ctx, s.db, s.indexName); err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}
	return nil
}

// DropDocuments removes the rows of one index.
func DropDocuments(ctx context.Context, db *bun.DB, indexName string) error {
	_, err := db.NewDelete().Model((*Document)(nil)).Where("index_name = ?", indexName).Exec(ctx)
	return err
}
