// Package neo4j implements graph.Repo on a Neo4j property graph.
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/knoguchi/graphrag/internal/graph"
)

// Config holds Neo4j connection parameters.
type Config struct {
	URI      string
	Username string
	Password string
}

// Store implements graph.Repo using the Neo4j bolt driver.
type Store struct {
	driver neo4j.DriverWithContext
}

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j URI is required")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity check failed: %w", err)
	}

	return &Store{driver: driver}, nil
}

// Ping verifies store connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j ping failed: %w", err)
	}
	return nil
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// EnsureSchema creates the uniqueness constraints the merge rules rely on.
// Safe to call on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	constraints := []string{
		`CREATE CONSTRAINT concept_normalized_name IF NOT EXISTS FOR (c:Concept) REQUIRE c.normalized_name IS UNIQUE`,
		`CREATE CONSTRAINT document_id IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE`,
		`CREATE CONSTRAINT chunk_id IF NOT EXISTS FOR (c:Chunk) REQUIRE c.id IS UNIQUE`,
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	for _, stmt := range constraints {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("failed to create constraint: %w", err)
		}
	}
	return nil
}

// session opens a session with default configuration.
func (s *Store) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{})
}

// stringProp reads a string property from a query record value map.
func stringProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

// intProp reads an integer property from a query record value map.
func intProp(props map[string]any, key string) int {
	if v, ok := props[key].(int64); ok {
		return int(v)
	}
	return 0
}

// floatProp reads a float property, tolerating integer storage.
func floatProp(props map[string]any, key string, fallback float64) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return fallback
	}
}

// Ensure Store implements the interface
var _ graph.Repo = (*Store)(nil)
