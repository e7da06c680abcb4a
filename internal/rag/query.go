package rag

import (
	"context"
	"fmt"
	"strings"

	"gemini-pinecone-rag/internal/llmservice"
	"gemini-pinecone-rag/internal/models"
	"gemini-pinecone-rag/internal/telemetry"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/outputparser"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// QueryEngine answers a question from the retrieved context only.
type QueryEngine struct {
	retriever   *Retriever
	model       llms.Model
	temperature float64
	parser      outputparser.Simple
}

func NewQueryEngine(retriever *Retriever, model llms.Model, temperature float64) *QueryEngine {
	return &QueryEngine{
		retriever:   retriever,
		model:       model,
		temperature: temperature,
		parser:      outputparser.NewSimple(),
	}
}

func (q *QueryEngine) Query(ctx context.Context, question string) (*models.PromptResponse, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "rag.query")
	defer span.End()

	matches, err := q.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	if len(matches) == 0 {
		return nil, telemetry.RecordError(span, ErrNoContext)
	}

	prompt, err := BuildPrompt(BuildContext(matches), question)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}

	answer, err := q.generate(ctx, prompt)
	if err != nil {
		return nil, telemetry.RecordError(span, err)
	}

	return &models.PromptResponse{
		Query:   question,
		Source:  sources(matches),
		Content: answer,
		Matches: matches,
	}, nil
}

func (q *QueryEngine) generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "rag.generate", trace.WithAttributes(attribute.Int("rag.prompt_chars", len(prompt))))
	defer span.End()

	log.Debug().Float64("temperature", q.temperature).Msg("Generating answer")
	raw, err := llmservice.Generate(ctx, q.model, prompt, q.temperature)
	if err != nil {
		return "", telemetry.RecordError(span, fmt.Errorf("failed to generate answer: %w", err))
	}

	parsed, err := q.parser.Parse(raw)
	if err != nil {
		return "", telemetry.RecordError(span, err)
	}
	answer, ok := parsed.(string)
	if !ok {
		return "", fmt.Errorf("unexpected parser output %T", parsed)
	}
	return answer, nil
}

// distinct sources in retrieval order
func sources(matches []models.Match) string {
	var out []string
	seen := map[string]bool{}
	for _, m := range matches {
		s, _ := m.Metadata[models.MetadataSource].(string)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return strings.Join(out, ", ")
}
