// Package graph defines the domain model and data access interface for the
// property graph: documents, chunks, concepts, and typed relationships.
package graph

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Concept source tags, in descending identity priority during extraction merge.
const (
	SourceLLM         = "llm"
	SourceKeywordPE   = "keyword_pe"
	SourceKeywordText = "keyword_text"
	SourceMetadata    = "metadata"
)

// Relationship extraction methods, in descending merge priority.
const (
	MethodLLM          = "llm"
	MethodPattern      = "pattern_based"
	MethodCooccurrence = "basic_cooccurrence"
)

// Concept-to-concept edge kinds.
const (
	RelRelatedTo        = "RELATED_TO"
	RelDefinesConcept   = "DEFINES_CONCEPT"
	RelIsA              = "IS_A"
	RelHasPart          = "HAS_PART"
	RelUsedFor          = "USED_FOR"
	RelImplementsMethod = "IMPLEMENTS_METHOD"
	RelHasAttribute     = "HAS_ATTRIBUTE"
	RelExampleOf        = "EXAMPLE_OF"
	RelRequiresInput    = "REQUIRES_INPUT"
	RelStepInProcess    = "STEP_IN_PROCESS"
	RelComparesWith     = "COMPARES_WITH"
)

// Structural edge kinds.
const (
	RelHasChunk        = "HAS_CHUNK"
	RelMentionsConcept = "MENTIONS_CONCEPT"
)

var (
	edgeKindPattern = regexp.MustCompile(`^[A-Z_]+$`)
	labelPattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ValidEdgeKind reports whether kind is a legal relationship type.
func ValidEdgeKind(kind string) bool {
	return edgeKindPattern.MatchString(kind)
}

// ValidLabel reports whether label is a legal node label.
func ValidLabel(label string) bool {
	return labelPattern.MatchString(label)
}

// SanitizeLabel returns label if it is a legal node label, "Concept" otherwise.
func SanitizeLabel(label string) string {
	if ValidLabel(label) {
		return label
	}
	return "Concept"
}

// Document represents one ingested source.
type Document struct {
	ID              string
	Title           string
	Source          string
	DocumentType    string // text, pdf, txt
	ContentHash     string
	WordCount       int
	CharCount       int
	Author          string
	Category        string
	PublicationDate string
	URL             string
	Filename        string
	FilePath        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Chunk is a contiguous text slice of a Document.
type Chunk struct {
	ID         string
	DocumentID string
	ChunkIndex int
	TextHash   string
	CharCount  int
	WordCount  int
	CreatedAt  time.Time
}

// Concept is a domain entity or topic with a single normalized identity.
type Concept struct {
	ID              string
	Name            string
	NormalizedName  string
	Type            string
	Abbreviation    string
	Description     string
	Source          string // llm, keyword_text, keyword_pe, metadata
	FirstChunkIndex int    // provenance: chunk where the concept first appeared
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Relationship is a directed typed edge between two concepts.
type Relationship struct {
	SourceID    string
	TargetID    string
	Kind        string
	Strength    float64 // [0, 1]
	Description string
	Method      string // llm, pattern_based, basic_cooccurrence
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Neighbor is a concept reached by graph traversal with its accumulated score.
type Neighbor struct {
	ID    string
	Name  string
	Score float64
}

// Repo defines the narrow facade over the property graph store.
type Repo interface {
	// EnsureSchema creates uniqueness constraints for Concept.normalized_name,
	// Document.id, and Chunk.id. Idempotent.
	EnsureSchema(ctx context.Context) error

	// Ping verifies store connectivity.
	Ping(ctx context.Context) error

	// CreateDocument creates the Document node.
	CreateDocument(ctx context.Context, doc *Document) error

	// CreateChunk creates a Chunk node and links HAS_CHUNK from its document.
	CreateChunk(ctx context.Context, chunk *Chunk) error

	// UpsertConcept merges a concept by id then by normalized_name; when an
	// existing node matches the normalized name, the stored id is adopted and
	// returned. The returned id is always the canonical id.
	UpsertConcept(ctx context.Context, concept *Concept) (string, error)

	// UpsertEdge creates or updates a concept-to-concept edge. Strength is
	// monotone nondecreasing across re-assertions; description and method are
	// replaced.
	UpsertEdge(ctx context.Context, rel *Relationship) error

	// LinkMentions creates a MENTIONS_CONCEPT edge from a document or chunk
	// node to a concept. Idempotent.
	LinkMentions(ctx context.Context, sourceID, conceptID string) error

	// GetConceptByName looks up a concept by normalized name.
	GetConceptByName(ctx context.Context, normalizedName string) (*Concept, error)

	// ListConcepts lists concepts, deduplicated by id.
	ListConcepts(ctx context.Context, limit int) ([]*Concept, error)

	// DocumentsByConcept returns documents that mention the concept with
	// this normalized name, directly or through one of their chunks,
	// deduplicated by document id.
	DocumentsByConcept(ctx context.Context, conceptName string, limit int) ([]*Document, error)

	// Traverse walks RELATED_TO edges from a seed concept up to maxHops hops,
	// returning each reachable concept with its best path score (sum of edge
	// strengths along the path; missing strength counts 0.5). maxHops <= 0
	// yields no results.
	Traverse(ctx context.Context, seedConceptID string, maxHops int) ([]Neighbor, error)

	// Close releases the underlying driver.
	Close(ctx context.Context) error
}
