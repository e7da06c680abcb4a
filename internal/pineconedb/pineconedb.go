package pineconedb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gemini-pinecone-rag/internal/models"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	ErrDimensionMismatch = errors.New("index dimension does not match embedding dimension")
	ErrMissingText       = errors.New("match has no text metadata")
)

const defaultPollInterval = 2 * time.Second

type Params struct {
	APIKey    string
	IndexName string
	// Host skips the control plane lookup when set.
	Host      string
	Namespace string
	Dimension int
	Metric    string
	Cloud     string
	Region    string
}

type indexInfo struct {
	Name      string
	Host      string
	Dimension int
	Ready     bool
}

type createRequest struct {
	Name      string
	Dimension int
	Metric    string
	Cloud     string
	Region    string
}

// controlPlane is the slice of the Pinecone management API the index needs.
type controlPlane interface {
	ListIndexes(ctx context.Context) ([]indexInfo, error)
	CreateServerlessIndex(ctx context.Context, req createRequest) error
	DescribeIndex(ctx context.Context, name string) (indexInfo, error)
}

type dataPlane interface {
	UpsertVectors(ctx context.Context, host, namespace string, vectors []*pinecone.Vector) error
	QueryByVectorValues(ctx context.Context, host, namespace string, req *pinecone.QueryByVectorValuesRequest) ([]*pinecone.ScoredVector, error)
}

// Index is a Pinecone serverless index holding one record per chunk. The
// chunk text is stored under the "text" metadata key.
type Index struct {
	params       Params
	control      controlPlane
	data         dataPlane
	pollInterval time.Duration

	mu   sync.RWMutex
	host string
}

// NewIndex connects a Pinecone client; no request is made until the first call.
func NewIndex(p Params) (*Index, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("pinecone api key is required")
	}
	client, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: p.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %w", err)
	}
	sdk := &sdkClient{client: client}
	return newIndex(p, sdk, sdk), nil
}

func newIndex(p Params, control controlPlane, data dataPlane) *Index {
	return &Index{
		params:       p,
		control:      control,
		data:         data,
		host:         p.Host,
		pollInterval: defaultPollInterval,
	}
}

// Ensure creates the index when it does not exist yet and waits until it is
// ready. Safe to call any number of times.
func (idx *Index) Ensure(ctx context.Context) error {
	indexes, err := idx.control.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}

	for _, info := range indexes {
		if info.Name != idx.params.IndexName {
			continue
		}
		if idx.params.Dimension > 0 && info.Dimension != idx.params.Dimension {
			return fmt.Errorf("%w: index %s has %d, want %d", ErrDimensionMismatch, info.Name, info.Dimension, idx.params.Dimension)
		}
		log.Debug().Str("index", info.Name).Bool("ready", info.Ready).Msg("Index exists")
		if info.Ready && info.Host != "" {
			idx.setHost(info.Host)
			return nil
		}
		return idx.waitReady(ctx)
	}

	log.Info().
		Str("index", idx.params.IndexName).
		Int("dimension", idx.params.Dimension).
		Str("metric", idx.params.Metric).
		Str("cloud", idx.params.Cloud).
		Str("region", idx.params.Region).
		Msg("Creating index")
	err = idx.control.CreateServerlessIndex(ctx, createRequest{
		Name:      idx.params.IndexName,
		Dimension: idx.params.Dimension,
		Metric:    idx.params.Metric,
		Cloud:     idx.params.Cloud,
		Region:    idx.params.Region,
	})
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", idx.params.IndexName, err)
	}
	return idx.waitReady(ctx)
}

func (idx *Index) waitReady(ctx context.Context) error {
	for {
		info, err := idx.control.DescribeIndex(ctx, idx.params.IndexName)
		if err != nil {
			return fmt.Errorf("failed to describe index %s: %w", idx.params.IndexName, err)
		}
		if info.Ready && info.Host != "" {
			idx.setHost(info.Host)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(idx.pollInterval):
		}
	}
}

// resolveHost finds the data plane host without creating anything.
func (idx *Index) resolveHost(ctx context.Context) (string, error) {
	if host := idx.cachedHost(); host != "" {
		return host, nil
	}
	info, err := idx.control.DescribeIndex(ctx, idx.params.IndexName)
	if err != nil {
		return "", fmt.Errorf("failed to describe index %s: %w", idx.params.IndexName, err)
	}
	if info.Host == "" {
		return "", fmt.Errorf("index %s has no host yet", idx.params.IndexName)
	}
	idx.setHost(info.Host)
	return info.Host, nil
}

func (idx *Index) cachedHost() string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.host
}

func (idx *Index) setHost(host string) {
	idx.mu.Lock()
	idx.host = host
	idx.mu.Unlock()
}

// Upsert writes all records in one request.
func (idx *Index) Upsert(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	host, err := idx.resolveHost(ctx)
	if err != nil {
		return err
	}

	vectors := make([]*pinecone.Vector, 0, len(records))
	for _, rec := range records {
		meta, err := toStruct(rec.Metadata, rec.Content)
		if err != nil {
			return fmt.Errorf("record %s: %w", rec.ID, err)
		}
		vectors = append(vectors, &pinecone.Vector{
			Id:       rec.ID,
			Values:   rec.Values,
			Metadata: meta,
		})
	}

	if err := idx.data.UpsertVectors(ctx, host, idx.params.Namespace, vectors); err != nil {
		return fmt.Errorf("failed to upsert %d vectors: %w", len(vectors), err)
	}
	log.Debug().Int("vectors", len(vectors)).Str("index", idx.params.IndexName).Msg("Upserted vectors")
	return nil
}

// Query returns up to topK matches, most similar first.
func (idx *Index) Query(ctx context.Context, vector []float32, topK int) ([]models.Match, error) {
	host, err := idx.resolveHost(ctx)
	if err != nil {
		return nil, err
	}

	scored, err := idx.data.QueryByVectorValues(ctx, host, idx.params.Namespace, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query index %s: %w", idx.params.IndexName, err)
	}

	matches := make([]models.Match, 0, len(scored))
	for _, sv := range scored {
		if sv == nil || sv.Vector == nil {
			continue
		}
		var metadata map[string]any
		if sv.Vector.Metadata != nil {
			metadata = sv.Vector.Metadata.AsMap()
		}
		text, ok := metadata[models.MetadataText].(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingText, sv.Vector.Id)
		}
		delete(metadata, models.MetadataText)
		matches = append(matches, models.Match{
			ID:       sv.Vector.Id,
			Content:  text,
			Metadata: metadata,
			Score:    sv.Score,
		})
	}
	return matches, nil
}

// toStruct converts metadata to a protobuf struct. Values protobuf cannot
// represent are stored as their string form.
func toStruct(metadata map[string]any, text string) (*structpb.Struct, error) {
	m := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		switch v.(type) {
		case nil, bool, string, int, int32, int64, uint32, uint64, float32, float64:
			m[k] = v
		default:
			m[k] = fmt.Sprint(v)
		}
	}
	m[models.MetadataText] = text
	return structpb.NewStruct(m)
}
