// Package vectorstore provides the interface and implementation for dense
// vector storage and similarity search over document and chunk text.
package vectorstore

import (
	"context"
	"strings"
)

// Record is one embedded unit (a chunk, or a whole document when chunking is
// disabled) with its flattened metadata.
type Record struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata map[string]string
}

// QueryResult is a similarity search hit. Distance is cosine distance
// (1 - similarity), ascending order is most similar first.
type QueryResult struct {
	ID       string
	Document string
	Metadata map[string]string
	Distance float32
}

// Store defines the narrow facade over the vector store.
type Store interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert inserts or updates records.
	Upsert(ctx context.Context, records []Record) error

	// Query performs similarity search, optionally filtered by exact
	// metadata matches. Results are ordered by ascending distance.
	Query(ctx context.Context, vector []float32, k int, where map[string]string) ([]QueryResult, error)

	// Find returns records whose metadata exactly matches the filter.
	Find(ctx context.Context, where map[string]string, limit int) ([]QueryResult, error)

	// ListPayloads returns stored metadata without vectors, for scans such
	// as fuzzy title matching.
	ListPayloads(ctx context.Context, limit int) ([]map[string]string, error)

	// CheckHealth probes the collection. A nil error means healthy; the
	// error text is the diagnostic otherwise.
	CheckHealth(ctx context.Context) error

	// Repair attempts to restore an unhealthy collection.
	Repair(ctx context.Context) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Close releases the underlying client.
	Close() error
}

// JoinList flattens a list value for storage; the store holds scalar
// metadata only.
func JoinList(values []string) string {
	return strings.Join(values, ",")
}

// SplitList restores a list value flattened by JoinList. Empty input yields
// an empty list, never [""].
func SplitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
