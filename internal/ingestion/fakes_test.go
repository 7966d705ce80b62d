package ingestion

import (
	"context"
	"fmt"
	"sync"

	"github.com/knoguchi/graphrag/internal/graph"
	"github.com/knoguchi/graphrag/internal/vectorstore"
)

// fakeVectorStore is an in-memory vectorstore.Store for pipeline tests.
type fakeVectorStore struct {
	mu       sync.Mutex
	records  map[string]vectorstore.Record
	healthy  bool
	listErr  error
	upserts  int
	repaired int
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{records: make(map[string]vectorstore.Record), healthy: true}
}

func (f *fakeVectorStore) EnsureCollection(context.Context, int) error { return nil }

func (f *fakeVectorStore) Upsert(_ context.Context, records []vectorstore.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.healthy {
		return fmt.Errorf("store down")
	}
	for _, r := range records {
		f.records[r.ID] = r
	}
	f.upserts++
	return nil
}

func (f *fakeVectorStore) Query(_ context.Context, _ []float32, k int, where map[string]string) ([]vectorstore.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.healthy {
		return nil, fmt.Errorf("store down")
	}
	var out []vectorstore.QueryResult
	for _, r := range f.records {
		if !matches(r.Metadata, where) {
			continue
		}
		out = append(out, vectorstore.QueryResult{ID: r.ID, Document: r.Text, Metadata: r.Metadata})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func (f *fakeVectorStore) Find(_ context.Context, where map[string]string, limit int) ([]vectorstore.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []vectorstore.QueryResult
	for _, r := range f.records {
		if !matches(r.Metadata, where) {
			continue
		}
		out = append(out, vectorstore.QueryResult{ID: r.ID, Document: r.Text, Metadata: r.Metadata})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeVectorStore) ListPayloads(context.Context, int) ([]map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []map[string]string
	for _, r := range f.records {
		out = append(out, r.Metadata)
	}
	return out, nil
}

func (f *fakeVectorStore) CheckHealth(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.healthy {
		return fmt.Errorf("store down")
	}
	return nil
}

func (f *fakeVectorStore) Repair(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repaired++
	f.healthy = true
	return nil
}

func (f *fakeVectorStore) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), nil
}

func (f *fakeVectorStore) Close() error { return nil }

func matches(metadata, where map[string]string) bool {
	for k, v := range where {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

var _ vectorstore.Store = (*fakeVectorStore)(nil)

// fakeGraph is an in-memory graph.Repo capturing writes.
type fakeGraph struct {
	mu        sync.Mutex
	documents map[string]*graph.Document
	chunks    map[string]*graph.Chunk
	concepts  map[string]*graph.Concept // by normalized name
	edges     map[string]*graph.Relationship
	mentions  map[string][]string // source id -> concept ids

	createDocErr error
	upsertErrFor map[string]bool // normalized names that fail
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		documents: make(map[string]*graph.Document),
		chunks:    make(map[string]*graph.Chunk),
		concepts:  make(map[string]*graph.Concept),
		edges:     make(map[string]*graph.Relationship),
		mentions:  make(map[string][]string),
	}
}

func (f *fakeGraph) EnsureSchema(context.Context) error { return nil }
func (f *fakeGraph) Ping(context.Context) error         { return nil }

func (f *fakeGraph) CreateDocument(_ context.Context, doc *graph.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createDocErr != nil {
		return f.createDocErr
	}
	f.documents[doc.ID] = doc
	return nil
}

func (f *fakeGraph) CreateChunk(_ context.Context, chunk *graph.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.documents[chunk.DocumentID]; !ok {
		return graph.ErrNotFound
	}
	f.chunks[chunk.ID] = chunk
	return nil
}

func (f *fakeGraph) UpsertConcept(_ context.Context, concept *graph.Concept) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErrFor[concept.NormalizedName] {
		return "", fmt.Errorf("constraint violation")
	}
	if existing, ok := f.concepts[concept.NormalizedName]; ok {
		if concept.Description != "" {
			existing.Description = concept.Description
		}
		return existing.ID, nil
	}
	copied := *concept
	f.concepts[concept.NormalizedName] = &copied
	return concept.ID, nil
}

func (f *fakeGraph) UpsertEdge(_ context.Context, rel *graph.Relationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := rel.SourceID + "|" + rel.TargetID + "|" + rel.Kind
	if existing, ok := f.edges[key]; ok {
		if rel.Strength > existing.Strength {
			existing.Strength = rel.Strength
		}
		existing.Method = rel.Method
		existing.Description = rel.Description
		return nil
	}
	copied := *rel
	f.edges[key] = &copied
	return nil
}

func (f *fakeGraph) LinkMentions(_ context.Context, sourceID, conceptID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mentions[sourceID] = append(f.mentions[sourceID], conceptID)
	return nil
}

func (f *fakeGraph) GetConceptByName(_ context.Context, normalizedName string) (*graph.Concept, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.concepts[normalizedName]; ok {
		return c, nil
	}
	return nil, graph.ErrNotFound
}

func (f *fakeGraph) ListConcepts(_ context.Context, limit int) ([]*graph.Concept, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*graph.Concept
	for _, c := range f.concepts {
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeGraph) DocumentsByConcept(_ context.Context, conceptName string, limit int) ([]*graph.Document, error) {
	return nil, nil
}

func (f *fakeGraph) Traverse(_ context.Context, seedConceptID string, maxHops int) ([]graph.Neighbor, error) {
	return nil, nil
}

func (f *fakeGraph) Close(context.Context) error { return nil }

var _ graph.Repo = (*fakeGraph)(nil)

// fakeEmbedder returns constant unit vectors.
type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}
