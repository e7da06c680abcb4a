package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gemini-pinecone-rag/internal/models"
	"gemini-pinecone-rag/internal/rag"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubQuerier struct {
	resp *models.PromptResponse
	err  error
	got  string
}

func (s *stubQuerier) Query(_ context.Context, question string) (*models.PromptResponse, error) {
	s.got = question
	return s.resp, s.err
}

type stubIngestor struct {
	err          error
	source, text string
}

func (s *stubIngestor) IngestText(_ context.Context, source, text string) (*rag.IngestResult, error) {
	s.source, s.text = source, text
	if s.err != nil {
		return nil, s.err
	}
	return &rag.IngestResult{Source: source, Chunks: 1, IDs: []string{"id-1"}}, nil
}

func serve(h *Handler, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	NewRouter(h, "test").ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := serve(New(&stubQuerier{}, &stubIngestor{}), http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
}

func TestQuery(t *testing.T) {
	q := &stubQuerier{resp: &models.PromptResponse{Query: "What is RAG?", Content: "Retrieval."}}
	w := serve(New(q, &stubIngestor{}), http.MethodPost, "/v1/query", `{"question":"  What is RAG? "}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	if q.got != "What is RAG?" {
		t.Fatalf("question %q", q.got)
	}
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["answer"] != "Retrieval." {
		t.Fatalf("body %s", w.Body)
	}
}

func TestQueryErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"bad json", `{`, nil, http.StatusBadRequest},
		{"missing question", `{}`, nil, http.StatusBadRequest},
		{"blank question", `{"question":"   "}`, nil, http.StatusBadRequest},
		{"no context", `{"question":"x"}`, fmt.Errorf("query: %w", rag.ErrNoContext), http.StatusUnprocessableEntity},
		{"backend failure", `{"question":"x"}`, errors.New("pinecone down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(New(&stubQuerier{err: tt.err}, &stubIngestor{}), http.MethodPost, "/v1/query", tt.body)
			if w.Code != tt.want {
				t.Fatalf("status %d, want %d: %s", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestIngest(t *testing.T) {
	in := &stubIngestor{}
	w := serve(New(&stubQuerier{}, in), http.MethodPost, "/v1/ingest?source=notes.txt", "some text to index")
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	if in.source != "notes.txt" || in.text != "some text to index" {
		t.Fatalf("ingested %q from %q", in.text, in.source)
	}
}

func TestIngestErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"empty body", "  ", nil, http.StatusBadRequest},
		{"no chunks", "text", rag.ErrNoChunks, http.StatusUnprocessableEntity},
		{"embed failure", "text", errors.New("quota"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(New(&stubQuerier{}, &stubIngestor{err: tt.err}), http.MethodPost, "/v1/ingest", tt.body)
			if w.Code != tt.want {
				t.Fatalf("status %d, want %d", w.Code, tt.want)
			}
		})
	}
}
