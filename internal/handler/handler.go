package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"gemini-pinecone-rag/internal/models"
	"gemini-pinecone-rag/internal/rag"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxIngestBytes = 10 << 20

type Querier interface {
	Query(ctx context.Context, question string) (*models.PromptResponse, error)
}

type TextIngestor interface {
	IngestText(ctx context.Context, source, text string) (*rag.IngestResult, error)
}

type Handler struct {
	querier  Querier
	ingestor TextIngestor
}

func New(querier Querier, ingestor TextIngestor) *Handler {
	return &Handler{querier: querier, ingestor: ingestor}
}

type queryRequest struct {
	Question string `json:"question" binding:"required"`
}

// NewRouter mounts the API on a fresh gin engine with recovery, request
// logging and tracing.
func NewRouter(h *Handler, serviceName string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(requestLogger())

	router.GET("/healthz", h.Health)
	v1 := router.Group("/v1")
	v1.POST("/query", h.Query)
	v1.POST("/ingest", h.Ingest)
	return router
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Query answers {"question": "..."} with the generated answer and its matches.
func (h *Handler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	resp, err := h.querier.Query(c.Request.Context(), question)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Ingest indexes the raw request body. The source name comes from the
// "source" query parameter.
func (h *Handler) Ingest(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxIngestBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	if strings.TrimSpace(string(body)) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body is empty"})
		return
	}
	source := c.DefaultQuery("source", "request")

	res, err := h.ingestor.IngestText(c.Request.Context(), source, string(body))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, rag.ErrNoContext), errors.Is(err, rag.ErrNoChunks):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request")
	}
}
