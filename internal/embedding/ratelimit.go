package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"golang.org/x/time/rate"
)

// RateLimitedClient waits for a token before every call to the wrapped client.
type RateLimitedClient struct {
	client  embeddings.EmbedderClient
	limiter *rate.Limiter
}

var _ embeddings.EmbedderClient = (*RateLimitedClient)(nil)

// NewRateLimitedClient allows rpm calls per minute with a burst of one.
func NewRateLimitedClient(client embeddings.EmbedderClient, rpm int) *RateLimitedClient {
	return &RateLimitedClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
}

func (c *RateLimitedClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limit: %w", err)
	}
	return c.client.CreateEmbedding(ctx, texts)
}
