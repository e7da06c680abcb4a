package rag

import (
	"fmt"
	"strings"

	"gemini-pinecone-rag/internal/models"

	"github.com/tmc/langchaingo/prompts"
)

var promptTemplate = prompts.PromptTemplate{
	Template:       models.PromptTemplate,
	InputVariables: []string{"context", "question"},
	TemplateFormat: prompts.TemplateFormatFString,
}

// BuildContext joins the match texts with a blank line, in retrieval order.
func BuildContext(matches []models.Match) string {
	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		texts = append(texts, m.Content)
	}
	return strings.Join(texts, models.ContextSeparator)
}

// BuildPrompt fills the answer template. Braces inside context or question
// are copied as is.
func BuildPrompt(context, question string) (string, error) {
	p, err := promptTemplate.Format(map[string]any{
		"context":  context,
		"question": question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to format prompt: %w", err)
	}
	return p, nil
}
