// Command langpipe runs the local pipe server and ingests documents into
// memory.
//
//	langpipe serve [-config langpipe.toml]
//	langpipe ingest [-config langpipe.toml] -memory NAME FILE...
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/langpipe/langpipe"
	"github.com/langpipe/langpipe/embed/ollama"
	"github.com/langpipe/langpipe/embed/openai"
	"github.com/langpipe/langpipe/ingest"
	"github.com/langpipe/langpipe/internal/config"
	"github.com/langpipe/langpipe/observer"
	"github.com/langpipe/langpipe/provider/registry"
	"github.com/langpipe/langpipe/server"
	"github.com/langpipe/langpipe/store/postgres"
	"github.com/langpipe/langpipe/store/sqlite"
)

// chunkStore is the intersection of the retrieval and ingestion store
// surfaces, satisfied by both backends.
type chunkStore interface {
	langpipe.ChunkStore
	ingest.ChunkWriter
	Close() error
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(args, logger)
	case "ingest":
		err = runIngest(args, logger)
	default:
		err = fmt.Errorf("unknown command %q (want serve or ingest)", cmd)
	}
	if err != nil {
		logger.Error(cmd+" failed", "error", err)
		os.Exit(1)
	}
}

func runServe(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("LANGPIPE_CONFIG"), "path to langpipe.toml")
	fs.Parse(args)

	cfg := config.Load(*configPath)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	var reg langpipe.Registry = registry.Default()
	var tracer langpipe.Tracer
	if cfg.Observer.Enabled {
		if cfg.Observer.Endpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Observer.Endpoint)
		}
		inst, shutdown, err := observer.Init(ctx)
		if err != nil {
			return fmt.Errorf("init observer: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				logger.Warn("observer shutdown", "error", err)
			}
		}()
		reg = observer.WrapRegistry(reg, inst)
		embedder = observer.WrapEmbedder(embedder, inst)
		tracer = observer.NewTracer()
	}

	retrievalOpts := []langpipe.RetrievalOption{langpipe.WithRetrievalLogger(logger)}
	if cfg.Memory.TopK > 0 {
		retrievalOpts = append(retrievalOpts, langpipe.WithTopK(cfg.Memory.TopK))
	}
	retrieval := langpipe.NewRetrievalEngine(embedder, store, retrievalOpts...)

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithRetrieval(retrieval),
		server.WithKeyResolver(config.LLMKey),
	}
	if cfg.Pipes.MaxCalls > 0 {
		opts = append(opts, server.WithMaxCalls(cfg.Pipes.MaxCalls))
	}
	if tracer != nil {
		opts = append(opts, server.WithTracer(tracer))
	}
	srv := server.New(cfg.Server.Addr, reg, opts...)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func runIngest(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("LANGPIPE_CONFIG"), "path to langpipe.toml")
	memory := fs.String("memory", "", "memory name to ingest into")
	fs.Parse(args)

	if *memory == "" {
		return fmt.Errorf("ingest: -memory is required")
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("ingest: at least one file is required")
	}

	cfg := config.Load(*configPath)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	ing := ingest.NewIngestor(store, embedder, ingest.WithLogger(logger))
	for _, path := range fs.Args() {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		res, err := ing.IngestFile(ctx, *memory, path, content)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		logger.Info("ingested", "file", path, "memory", res.Memory, "chunks", res.ChunkCount)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (chunkStore, error) {
	switch cfg.Memory.Backend {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Memory.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		store := postgres.New(pool, postgres.WithEmbeddingDimension(cfg.Embedding.Dimensions))
		if err := store.Init(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		return store, nil
	case "sqlite", "":
		store, err := sqlite.Open(ctx, cfg.Memory.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}
}

func newEmbedder(cfg config.Config) (langpipe.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "ollama":
		opts := []ollama.Option{
			ollama.WithModel(cfg.Embedding.Model),
			ollama.WithDimensions(cfg.Embedding.Dimensions),
		}
		if cfg.Embedding.BaseURL != "" {
			opts = append(opts, ollama.WithBaseURL(cfg.Embedding.BaseURL))
		}
		return ollama.New(opts...), nil
	case "openai", "":
		key, err := config.LLMKey("openai")
		if err != nil {
			return nil, fmt.Errorf("embedding: %w", err)
		}
		opts := []openai.Option{
			openai.WithModel(cfg.Embedding.Model),
			openai.WithDimensions(cfg.Embedding.Dimensions),
		}
		if cfg.Embedding.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Embedding.BaseURL))
		}
		return openai.New(key, opts...), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}
