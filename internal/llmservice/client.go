package llmservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gemini-pinecone-rag/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// NewModel creates the chat model for llmConfig.Provider.
func NewModel(ctx context.Context, llmConfig *config.LLMConfig) (llms.Model, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("Creating chat model")

	var (
		model llms.Model
		err   error
	)
	switch llmConfig.Provider {
	case config.ProviderGoogleAI, "":
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(llmConfig.Key),
			googleai.WithDefaultModel(llmConfig.Model),
			googleai.WithDefaultTemperature(llmConfig.Temperature),
		)
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		model, err = openai.New(opts...)
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
		if llmConfig.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
		}
		model, err = ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", llmConfig.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s model: %w", llmConfig.Provider, err)
	}
	return model, nil
}

// Generate sends prompt as a single human message and returns the first choice.
func Generate(ctx context.Context, model llms.Model, prompt string, temperature float64) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, model, prompt, llms.WithTemperature(temperature))
}

// RateLimitedModel waits for a token before every call to the wrapped model.
type RateLimitedModel struct {
	llms.Model
	limiter *rate.Limiter
}

// WithRateLimit returns model unchanged when rpm is not positive.
func WithRateLimit(model llms.Model, rpm int) llms.Model {
	if rpm <= 0 {
		return model
	}
	return &RateLimitedModel{
		Model:   model,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
	}
}

func (m *RateLimitedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("llm rate limit: %w", err)
	}
	return m.Model.GenerateContent(ctx, messages, options...)
}

func (m *RateLimitedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}
