// Package service holds the operations shared by the HTTP and MCP
// surfaces: ingestion, hybrid search, graph lookups, and background job
// orchestration. Handlers translate wire formats; this layer does the
// work.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/knoguchi/graphrag/internal/graph"
	"github.com/knoguchi/graphrag/internal/ids"
	"github.com/knoguchi/graphrag/internal/ingestion"
	"github.com/knoguchi/graphrag/internal/jobs"
	"github.com/knoguchi/graphrag/internal/search"
	"github.com/knoguchi/graphrag/internal/vectorstore"
)

// ErrNotFound marks lookups of unknown concepts, documents, or jobs.
var ErrNotFound = errors.New("not found")

// ErrBadRequest marks malformed or incomplete client input.
var ErrBadRequest = errors.New("bad request")

const (
	defaultListLimit    = 100
	defaultPassageLimit = 5
	healthProbeTimeout  = 5 * time.Second
)

// Embedder is the slice of the LLM gateway the service needs directly.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config carries the service-level settings.
type Config struct {
	Version           string
	UseChunkingForPDF bool
}

// Service wires the engine's components behind one facade.
type Service struct {
	cfg      Config
	graph    graph.Repo
	vectors  vectorstore.Store
	searcher *search.Searcher
	ingestor *ingestion.Ingestor
	jobs     *jobs.Manager
	embedder Embedder
}

// New creates the service facade.
func New(cfg Config, g graph.Repo, vectors vectorstore.Store, searcher *search.Searcher, ingestor *ingestion.Ingestor, manager *jobs.Manager, embedder Embedder) *Service {
	return &Service{
		cfg:      cfg,
		graph:    g,
		vectors:  vectors,
		searcher: searcher,
		ingestor: ingestor,
		jobs:     manager,
		embedder: embedder,
	}
}

// Version returns the build version string.
func (s *Service) Version() string {
	return s.cfg.Version
}

// Jobs exposes the job manager for status queries and cancellation.
func (s *Service) Jobs() *jobs.Manager {
	return s.jobs
}

// Health reports connectivity of both stores.
type Health struct {
	Status         string `json:"status"`
	Neo4jConnected bool   `json:"neo4j_connected"`
	VectorDB       bool   `json:"vector_db_connected"`
	Version        string `json:"version"`
}

// CheckHealth probes the graph and vector stores. Status is ok only when
// both respond.
func (s *Service) CheckHealth(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	h := Health{Version: s.cfg.Version}
	h.Neo4jConnected = s.graph.Ping(ctx) == nil
	h.VectorDB = s.vectors.CheckHealth(ctx) == nil
	if h.Neo4jConnected && h.VectorDB {
		h.Status = "ok"
	} else {
		h.Status = "degraded"
	}
	return h
}

// Search runs a hybrid query.
func (s *Service) Search(ctx context.Context, query string, k, maxHops int, repairIndex bool) (*search.Result, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: missing required parameter: query", ErrBadRequest)
	}
	return s.searcher.Search(ctx, query, search.Options{K: k, MaxHops: maxHops, Verify: repairIndex})
}

// IngestText runs the full ingestion pipeline over one document.
func (s *Service) IngestText(ctx context.Context, text string, metadata map[string]any) *ingestion.Report {
	return s.ingestor.Ingest(ctx, text, metadata, ingestion.Options{
		UseChunkingForPDF: s.cfg.UseChunkingForPDF,
	})
}

// Concept looks a concept up by name.
func (s *Service) Concept(ctx context.Context, name string) (*graph.Concept, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: missing required parameter: name", ErrBadRequest)
	}
	c, err := s.graph.GetConceptByName(ctx, ids.NormalizeName(name))
	if errors.Is(err, graph.ErrNotFound) {
		return nil, fmt.Errorf("%w: concept %q", ErrNotFound, name)
	}
	return c, err
}

// Concepts lists stored concepts.
func (s *Service) Concepts(ctx context.Context, limit int) ([]*graph.Concept, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.graph.ListConcepts(ctx, limit)
}

// DocumentsByConcept returns the documents mentioning a concept.
func (s *Service) DocumentsByConcept(ctx context.Context, conceptName string, limit int) ([]*graph.Document, error) {
	if conceptName == "" {
		return nil, fmt.Errorf("%w: missing required parameter: concept_name", ErrBadRequest)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.graph.DocumentsByConcept(ctx, ids.NormalizeName(conceptName), limit)
}

// RelatedConcepts traverses outward from a named concept.
func (s *Service) RelatedConcepts(ctx context.Context, name string, maxHops int) ([]graph.Neighbor, error) {
	c, err := s.Concept(ctx, name)
	if err != nil {
		return nil, err
	}
	if maxHops <= 0 {
		maxHops = 2
	}
	return s.graph.Traverse(ctx, c.ID, maxHops)
}

// Passage is one retrieved text span about a concept.
type Passage struct {
	Text       string  `json:"text"`
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id,omitempty"`
	Distance   float32 `json:"distance"`
}

// Passages retrieves text spans about a named concept: similarity search
// on the concept name, preferring hits whose provenance lists the
// concept.
func (s *Service) Passages(ctx context.Context, conceptName string, limit int) ([]Passage, error) {
	c, err := s.Concept(ctx, conceptName)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPassageLimit
	}

	vectors, err := s.embedder.Embed(ctx, []string{c.Name})
	if err != nil {
		return nil, fmt.Errorf("embedding concept name: %w", err)
	}
	// Over-fetch so provenance filtering still fills the limit.
	hits, err := s.vectors.Query(ctx, vectors[0], limit*4, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	var tagged, untagged []Passage
	for _, h := range hits {
		p := Passage{
			Text:       h.Document,
			DocumentID: h.Metadata["document_id"],
			ChunkID:    h.Metadata["chunk_id"],
			Distance:   h.Distance,
		}
		if mentionsConcept(h.Metadata, c.ID) {
			tagged = append(tagged, p)
		} else {
			untagged = append(untagged, p)
		}
	}

	passages := tagged
	if len(passages) < limit {
		passages = append(passages, untagged...)
	}
	if len(passages) > limit {
		passages = passages[:limit]
	}
	return passages, nil
}

func mentionsConcept(metadata map[string]string, conceptID string) bool {
	if metadata["concept_id"] == conceptID {
		return true
	}
	for _, id := range vectorstore.SplitList(metadata["concept_ids"]) {
		if id == conceptID {
			return true
		}
	}
	return false
}
