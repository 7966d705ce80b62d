package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/knoguchi/graphrag/internal/config"
	"github.com/knoguchi/graphrag/internal/extract"
	"github.com/knoguchi/graphrag/internal/graph/neo4j"
	"github.com/knoguchi/graphrag/internal/ingestion"
	"github.com/knoguchi/graphrag/internal/jobs"
	"github.com/knoguchi/graphrag/internal/llm"
	"github.com/knoguchi/graphrag/internal/search"
	"github.com/knoguchi/graphrag/internal/server"
	"github.com/knoguchi/graphrag/internal/service"
	"github.com/knoguchi/graphrag/internal/vectorstore"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting GraphRAG engine",
		"api_port", cfg.APIPort,
		"mcp_port", cfg.MCPPort,
		"environment", cfg.Environment,
		"version", version,
	)

	// Initialize the LLM gateway
	gateway, err := buildGateway(cfg)
	if err != nil {
		return err
	}
	slog.Info("initialized LLM gateway", "provider", cfg.LLMProvider, "model", cfg.LLMModel)

	// Initialize Neo4j
	graphStore, err := neo4j.New(ctx, neo4j.Config{
		URI:      cfg.Neo4jURI,
		Username: cfg.Neo4jUser,
		Password: cfg.Neo4jPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	defer graphStore.Close(ctx)
	if err := graphStore.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure graph schema: %w", err)
	}
	slog.Info("connected to Neo4j")

	// Initialize Qdrant
	vectorStore, err := vectorstore.NewQdrantStore(ctx, cfg.QdrantGRPCURL, cfg.QdrantCollection)
	if err != nil {
		return fmt.Errorf("failed to connect to qdrant: %w", err)
	}
	defer vectorStore.Close()
	if err := vectorStore.EnsureCollection(ctx, gateway.Dimension()); err != nil {
		return fmt.Errorf("failed to ensure qdrant collection: %w", err)
	}
	slog.Info("connected to Qdrant", "collection", cfg.QdrantCollection)

	// Build the ingestion and search pipeline
	chunker, err := ingestion.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("invalid chunking config: %w", err)
	}
	extractor := extract.New(gateway)
	detector := ingestion.NewDetector(vectorStore, cfg.FuzzyTitleThreshold)
	ingestor := ingestion.NewIngestor(graphStore, vectorStore, gateway, extractor, detector, chunker)
	searcher := search.NewSearcher(graphStore, vectorStore, gateway)

	// Job manager with crash recovery
	manager, err := jobs.NewManager(filepath.Join(cfg.StateDir, "jobs"))
	if err != nil {
		return fmt.Errorf("failed to create job manager: %w", err)
	}
	if err := manager.Recover(); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	// Sweep old terminal job records in the background
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := manager.Cleanup(24 * time.Hour); removed > 0 {
					slog.Info("cleaned up job records", "removed", removed)
				}
			}
		}
	}()

	svc := service.New(service.Config{
		Version:           version,
		UseChunkingForPDF: cfg.UseChunkingForPDF,
	}, graphStore, vectorStore, searcher, ingestor, manager, gateway)

	registry := server.NewToolRegistry(svc)

	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.APIPort,
		Logger:         slog.Default(),
		AllowedOrigins: []string{"*"}, // Configure in production
	}, svc)

	mcpServer := server.NewMCPServer(server.MCPServerConfig{
		Port:   cfg.MCPPort,
		Name:   "graphrag",
		Logger: slog.Default(),
	}, svc, registry)

	bugServer := server.NewMCPServer(server.MCPServerConfig{
		Port:   cfg.BugMCPPort,
		Name:   "graphrag-bugs",
		Logger: slog.Default(),
	}, svc, registry)

	// Start servers
	errCh := make(chan error, 3)
	go func() { errCh <- httpServer.Start() }()
	go func() { errCh <- mcpServer.Start() }()
	go func() { errCh <- bugServer.Start() }()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown
	slog.Info("shutting down servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}
	if err := mcpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown MCP server", "error", err)
	}
	if err := bugServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown bug MCP server", "error", err)
	}

	// Let in-flight jobs finish before the stores close
	manager.Wait()

	slog.Info("servers stopped")
	return nil
}

// buildGateway assembles the provider chain from config. The fallback
// provider is optional.
func buildGateway(cfg *config.Config) (*llm.Gateway, error) {
	primary, err := buildProvider(cfg.LLMProvider, cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.EmbeddingModel, cfg.LLMTimeout)
	if err != nil {
		return nil, fmt.Errorf("primary LLM provider: %w", err)
	}

	var fallback llm.Provider
	if cfg.FallbackProvider != "" {
		fallback, err = buildProvider(cfg.FallbackProvider, cfg.FallbackBaseURL, cfg.FallbackAPIKey, cfg.FallbackModel, cfg.EmbeddingModel, cfg.FallbackTimeout)
		if err != nil {
			return nil, fmt.Errorf("fallback LLM provider: %w", err)
		}
	}
	return llm.NewGateway(primary, fallback), nil
}

func buildProvider(kind, baseURL, apiKey, model, embeddingModel string, timeout time.Duration) (llm.Provider, error) {
	switch kind {
	case "ollama":
		return llm.NewOllamaProvider(
			llm.WithBaseURL(baseURL),
			llm.WithModel(model),
			llm.WithEmbeddingModel(embeddingModel, llm.DefaultOllamaDimension),
			llm.WithTimeout(timeout),
		), nil
	case "openai":
		return llm.NewOpenAIProvider(llm.OpenAIConfig{
			BaseURL:        baseURL,
			APIKey:         apiKey,
			Model:          model,
			EmbeddingModel: embeddingModel,
			Timeout:        timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", kind)
	}
}
