// Package config loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the GraphRAG service
type Config struct {
	// Server
	APIPort     int    `env:"GRAPHRAG_PORT_API" envDefault:"5001"`
	MCPPort     int    `env:"GRAPHRAG_PORT_MCP" envDefault:"8767"`
	BugMCPPort  int    `env:"GRAPHRAG_PORT_BUG_MCP" envDefault:"5005"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Neo4j
	Neo4jURI      string `env:"NEO4J_URI" envDefault:"bolt://localhost:7687"`
	Neo4jUser     string `env:"NEO4J_USER" envDefault:"neo4j"`
	Neo4jPassword string `env:"NEO4J_PASSWORD" envDefault:"graphrag"`
	Neo4jBoltPort int    `env:"GRAPHRAG_PORT_NEO4J_BOLT" envDefault:"7687"`

	// Qdrant
	QdrantGRPCURL    string `env:"QDRANT_GRPC_URL" envDefault:"localhost:6334"`
	QdrantCollection string `env:"QDRANT_COLLECTION" envDefault:"graphrag_documents"`

	// Primary LLM provider
	LLMProvider    string        `env:"LLM_PROVIDER" envDefault:"ollama"`
	LLMBaseURL     string        `env:"LLM_BASE_URL" envDefault:"http://localhost:11434"`
	LLMAPIKey      string        `env:"LLM_API_KEY"`
	LLMModel       string        `env:"LLM_MODEL" envDefault:"llama3.2"`
	LLMTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	LLMMaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"2048"`
	LLMTemperature float32       `env:"LLM_TEMPERATURE" envDefault:"0.3"`

	// Fallback LLM provider (optional; empty base URL disables it)
	FallbackProvider string        `env:"LLM_FALLBACK_PROVIDER" envDefault:""`
	FallbackBaseURL  string        `env:"LLM_FALLBACK_BASE_URL" envDefault:""`
	FallbackAPIKey   string        `env:"LLM_FALLBACK_API_KEY"`
	FallbackModel    string        `env:"LLM_FALLBACK_MODEL" envDefault:""`
	FallbackTimeout  time.Duration `env:"LLM_FALLBACK_TIMEOUT" envDefault:"60s"`

	// Embedding
	EmbeddingModel string `env:"LLM_EMBEDDING_MODEL" envDefault:"nomic-embed-text"`

	// Ingestion
	ChunkSize           int  `env:"CHUNK_SIZE" envDefault:"2000"`
	ChunkOverlap        int  `env:"CHUNK_OVERLAP" envDefault:"200"`
	UseChunkingForPDF   bool `env:"USE_CHUNKING_FOR_PDF" envDefault:"true"`
	FuzzyTitleThreshold int  `env:"FUZZY_TITLE_THRESHOLD" envDefault:"90"`

	// Job persistence
	StateDir string `env:"GRAPHRAG_STATE_DIR" envDefault:"./data/state"`
}

// Load loads configuration from .env file (if present) and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Port returns the configured port for a named service.
// Unknown service names fail loudly rather than returning a zero port.
func (c *Config) Port(service string) (int, error) {
	switch service {
	case "api":
		return c.APIPort, nil
	case "mcp":
		return c.MCPPort, nil
	case "neo4j-bolt":
		return c.Neo4jBoltPort, nil
	case "bug-mcp":
		return c.BugMCPPort, nil
	default:
		return 0, fmt.Errorf("unknown service %q: no port configured", service)
	}
}
