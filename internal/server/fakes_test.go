package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/knoguchi/graphrag/internal/extract"
	"github.com/knoguchi/graphrag/internal/graph"
	"github.com/knoguchi/graphrag/internal/ingestion"
	"github.com/knoguchi/graphrag/internal/jobs"
	"github.com/knoguchi/graphrag/internal/llm"
	"github.com/knoguchi/graphrag/internal/search"
	"github.com/knoguchi/graphrag/internal/service"
	"github.com/knoguchi/graphrag/internal/vectorstore"
)

type fakeGenerator struct {
	response string
	err      error
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if g.response == "" {
		return "[]", nil
	}
	return g.response, nil
}

type fakeEmbedder struct {
	err error
}

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeGraph struct {
	documents    map[string]*graph.Document
	chunks       map[string]*graph.Chunk
	concepts     map[string]*graph.Concept // keyed by normalized name
	edges        []*graph.Relationship
	mentions     map[string][]string // source id -> concept ids
	pingErr      error
	createDocErr error
	nextID       int
}

var _ graph.Repo = (*fakeGraph)(nil)

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		documents: make(map[string]*graph.Document),
		chunks:    make(map[string]*graph.Chunk),
		concepts:  make(map[string]*graph.Concept),
		mentions:  make(map[string][]string),
	}
}

func (g *fakeGraph) EnsureSchema(ctx context.Context) error { return nil }
func (g *fakeGraph) Ping(ctx context.Context) error         { return g.pingErr }

func (g *fakeGraph) CreateDocument(ctx context.Context, doc *graph.Document) error {
	if g.createDocErr != nil {
		return g.createDocErr
	}
	g.documents[doc.ID] = doc
	return nil
}

func (g *fakeGraph) CreateChunk(ctx context.Context, chunk *graph.Chunk) error {
	g.chunks[chunk.ID] = chunk
	return nil
}

func (g *fakeGraph) UpsertConcept(ctx context.Context, c *graph.Concept) (string, error) {
	if existing, ok := g.concepts[c.NormalizedName]; ok {
		return existing.ID, nil
	}
	stored := *c
	g.concepts[c.NormalizedName] = &stored
	return stored.ID, nil
}

func (g *fakeGraph) UpsertEdge(ctx context.Context, rel *graph.Relationship) error {
	g.edges = append(g.edges, rel)
	return nil
}

func (g *fakeGraph) LinkMentions(ctx context.Context, sourceID, conceptID string) error {
	g.mentions[sourceID] = append(g.mentions[sourceID], conceptID)
	return nil
}

func (g *fakeGraph) GetConceptByName(ctx context.Context, normalizedName string) (*graph.Concept, error) {
	c, ok := g.concepts[normalizedName]
	if !ok {
		return nil, graph.ErrNotFound
	}
	return c, nil
}

func (g *fakeGraph) ListConcepts(ctx context.Context, limit int) ([]*graph.Concept, error) {
	names := make([]string, 0, len(g.concepts))
	for name := range g.concepts {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*graph.Concept, 0, len(names))
	for _, name := range names {
		if len(out) == limit {
			break
		}
		out = append(out, g.concepts[name])
	}
	return out, nil
}

// DocumentsByConcept matches the normalized name exactly, like the real
// store's Cypher lookup. Callers must normalize first.
func (g *fakeGraph) DocumentsByConcept(ctx context.Context, normalizedName string, limit int) ([]*graph.Document, error) {
	c, ok := g.concepts[normalizedName]
	if !ok {
		return nil, nil
	}
	var out []*graph.Document
	for sourceID, conceptIDs := range g.mentions {
		doc, isDoc := g.documents[sourceID]
		if !isDoc {
			if chunk, isChunk := g.chunks[sourceID]; isChunk {
				doc = g.documents[chunk.DocumentID]
			}
		}
		if doc == nil {
			continue
		}
		for _, id := range conceptIDs {
			if id == c.ID {
				out = append(out, doc)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (g *fakeGraph) Traverse(ctx context.Context, seedConceptID string, maxHops int) ([]graph.Neighbor, error) {
	if maxHops <= 0 {
		return nil, nil
	}
	var out []graph.Neighbor
	for _, e := range g.edges {
		if e.SourceID != seedConceptID {
			continue
		}
		for _, c := range g.concepts {
			if c.ID == e.TargetID {
				out = append(out, graph.Neighbor{ID: c.ID, Name: c.Name, Score: e.Strength})
			}
		}
	}
	return out, nil
}

func (g *fakeGraph) Close(ctx context.Context) error { return nil }

type fakeStore struct {
	records   map[string]vectorstore.Record
	healthy   bool
	repairOK  bool
	healthLog []string
}

var _ vectorstore.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]vectorstore.Record), healthy: true, repairOK: true}
}

func (s *fakeStore) EnsureCollection(ctx context.Context, dimension int) error { return nil }

func (s *fakeStore) Upsert(ctx context.Context, records []vectorstore.Record) error {
	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}

func (s *fakeStore) Query(ctx context.Context, vector []float32, k int, where map[string]string) ([]vectorstore.QueryResult, error) {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []vectorstore.QueryResult
	for _, id := range ids {
		if len(out) == k {
			break
		}
		r := s.records[id]
		if !matches(r.Metadata, where) {
			continue
		}
		out = append(out, vectorstore.QueryResult{
			ID: r.ID, Document: r.Text, Metadata: r.Metadata, Distance: 0.1,
		})
	}
	return out, nil
}

func (s *fakeStore) Find(ctx context.Context, where map[string]string, limit int) ([]vectorstore.QueryResult, error) {
	return s.Query(ctx, nil, limit, where)
}

func (s *fakeStore) ListPayloads(ctx context.Context, limit int) ([]map[string]string, error) {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []map[string]string
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		out = append(out, s.records[id].Metadata)
	}
	return out, nil
}

func (s *fakeStore) CheckHealth(ctx context.Context) error {
	s.healthLog = append(s.healthLog, "check")
	if !s.healthy {
		return errors.New("collection missing")
	}
	return nil
}

func (s *fakeStore) Repair(ctx context.Context) error {
	s.healthLog = append(s.healthLog, "repair")
	if !s.repairOK {
		return errors.New("repair failed")
	}
	s.healthy = true
	return nil
}

func (s *fakeStore) Count(ctx context.Context) (int, error) { return len(s.records), nil }
func (s *fakeStore) Close() error                           { return nil }

func matches(metadata, where map[string]string) bool {
	for k, v := range where {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// testEnv bundles the fakes behind a fully wired service.
type testEnv struct {
	svc      *service.Service
	graph    *fakeGraph
	store    *fakeStore
	jobs     *jobs.Manager
	embedder *fakeEmbedder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	g := newFakeGraph()
	store := newFakeStore()
	embedder := &fakeEmbedder{}
	gen := &fakeGenerator{}

	chunker, err := ingestion.NewChunker(200, 40)
	if err != nil {
		t.Fatal(err)
	}
	extractor := extract.New(gen)
	detector := ingestion.NewDetector(store, ingestion.DefaultFuzzyTitleThreshold)
	ingestor := ingestion.NewIngestor(g, store, embedder, extractor, detector, chunker)
	searcher := search.NewSearcher(g, store, embedder)

	manager, err := jobs.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(manager.Wait)

	svc := service.New(service.Config{Version: "1.2.3", UseChunkingForPDF: true}, g, store, searcher, ingestor, manager, embedder)
	return &testEnv{svc: svc, graph: g, store: store, jobs: manager, embedder: embedder}
}

func (e *testEnv) httpServer() *HTTPServer {
	return NewHTTPServer(HTTPServerConfig{Port: 0, Logger: slog.Default()}, e.svc)
}

// seedConcept puts a concept straight into the fake graph.
func (e *testEnv) seedConcept(name string) *graph.Concept {
	e.graph.nextID++
	c := &graph.Concept{
		ID:             fmt.Sprintf("concept_%d", e.graph.nextID),
		Name:           name,
		NormalizedName: strings.ToLower(name),
		Type:           "Concept",
		Source:         "llm",
	}
	e.graph.concepts[c.NormalizedName] = c
	return c
}
