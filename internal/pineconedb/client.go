package pineconedb

import (
	"context"

	"github.com/pinecone-io/go-pinecone/pinecone"
)

// sdkClient adapts the go-pinecone client to controlPlane and dataPlane.
type sdkClient struct {
	client *pinecone.Client
}

func fromSDK(idx *pinecone.Index) indexInfo {
	if idx == nil {
		return indexInfo{}
	}
	info := indexInfo{
		Name:      idx.Name,
		Host:      idx.Host,
		Dimension: int(idx.Dimension),
	}
	if idx.Status != nil {
		info.Ready = idx.Status.Ready
	}
	return info
}

func (s *sdkClient) ListIndexes(ctx context.Context) ([]indexInfo, error) {
	indexes, err := s.client.ListIndexes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]indexInfo, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, fromSDK(idx))
	}
	return out, nil
}

func (s *sdkClient) CreateServerlessIndex(ctx context.Context, req createRequest) error {
	_, err := s.client.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:      req.Name,
		Dimension: int32(req.Dimension),
		Metric:    pinecone.IndexMetric(req.Metric),
		Cloud:     pinecone.Cloud(req.Cloud),
		Region:    req.Region,
	})
	return err
}

func (s *sdkClient) DescribeIndex(ctx context.Context, name string) (indexInfo, error) {
	idx, err := s.client.DescribeIndex(ctx, name)
	if err != nil {
		return indexInfo{}, err
	}
	return fromSDK(idx), nil
}

func (s *sdkClient) UpsertVectors(ctx context.Context, host, namespace string, vectors []*pinecone.Vector) error {
	conn, err := s.client.IndexWithNamespace(host, namespace)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.UpsertVectors(&ctx, vectors)
	return err
}

func (s *sdkClient) QueryByVectorValues(ctx context.Context, host, namespace string, req *pinecone.QueryByVectorValuesRequest) ([]*pinecone.ScoredVector, error) {
	conn, err := s.client.IndexWithNamespace(host, namespace)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	res, err := conn.QueryByVectorValues(&ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Matches, nil
}
