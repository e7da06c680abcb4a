package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"gemini-pinecone-rag/internal/app"
	"gemini-pinecone-rag/internal/config"
	"gemini-pinecone-rag/internal/handler"
	"gemini-pinecone-rag/internal/helper"
	"gemini-pinecone-rag/internal/telemetry"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to the config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func run(configPath string) error {
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

	a, err := app.New(ctx, cfg, config.PurposeServe)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Index.Ensure(ctx); err != nil {
		return err
	}

	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.NewRouter(handler.New(a.Query, a.Ingestor), cfg.Telemetry.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := a.Flush(sctx); err != nil {
		return err
	}
	log.Info().Msg("Server exited")
	return nil
}
