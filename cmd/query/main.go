package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"gemini-pinecone-rag/internal/app"
	"gemini-pinecone-rag/internal/config"
	"gemini-pinecone-rag/internal/helper"
	"gemini-pinecone-rag/internal/telemetry"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to the config file")
	query := flag.String("query", "What is RAG?", "Question to be answered")
	verbose := flag.Bool("v", false, "Also print the retrieved sources")
	flag.Parse()

	if err := run(*configPath, *query, *verbose); err != nil {
		log.Fatal().Err(err).Msg("Query failed")
	}
}

func run(configPath, query string, verbose bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	helper.SetupLogger(cfg.Log.Level, cfg.Log.Pretty, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("Tracer shutdown failed")
		}
	}()

	a, err := app.New(ctx, cfg, config.PurposeQuery)
	if err != nil {
		return err
	}
	defer a.Close()

	response, err := a.Query.Query(ctx, query)
	if err != nil {
		return err
	}

	if verbose {
		log.Info().Str("source", response.Source).Int("matches", len(response.Matches)).Msg("Retrieved context")
	}
	return printAnswer(os.Stdout, response.Content)
}

// printAnswer writes a blank line, the "Answer:" header, another blank line
// and the answer.
func printAnswer(w io.Writer, answer string) error {
	_, err := fmt.Fprintf(w, "\nAnswer:\n\n%s\n", answer)
	return err
}
