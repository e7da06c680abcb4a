package main

import (
	"context"
	"flag"
	"fmt"
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
	filePath := flag.String("file", "", "Path to the document file (defaults to input_file from config)")
	dryRun := flag.Bool("dry-run", false, "Load and split only, print the chunks")
	reset := flag.Bool("reset", false, "Clear the index before ingesting (chromem and postgres only)")
	flag.Parse()

	if err := run(*configPath, *filePath, *dryRun, *reset); err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}
}

func run(configPath, filePath string, dryRun, reset bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	helper.SetupLogger(cfg.Log.Level, cfg.Log.Pretty, os.Stderr)
	if filePath == "" {
		filePath = cfg.InputFile
	}

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

	purpose := config.PurposeIngest
	if dryRun {
		purpose = config.PurposeSplit
	}
	a, err := app.New(ctx, cfg, purpose)
	if err != nil {
		return err
	}
	defer a.Close()

	if dryRun {
		chunks, err := a.Ingestor.Split(ctx, filePath)
		if err != nil {
			return err
		}
		log.Info().Str("source", filePath).Int("chunks", len(chunks)).Msg("Dry run, nothing stored")
		return helper.PrettyPrint(os.Stdout, chunks)
	}

	if reset {
		if err := a.Reset(ctx); err != nil {
			return err
		}
	}

	log.Info().Str("source", filePath).Str("vector_db", cfg.VectorDB.Type).Str("index", cfg.VectorDB.IndexName).Msg("Ingesting document")
	if _, err := a.Ingestor.IngestFile(ctx, filePath); err != nil {
		return err
	}
	if err := a.Flush(ctx); err != nil {
		return err
	}

	fmt.Println("Documents indexed successfully.")
	return nil
}
