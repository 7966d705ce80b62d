// Package search implements hybrid retrieval: dense vector search over
// chunk text fused with bounded graph traversal from the concepts the
// hits mention.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/knoguchi/graphrag/internal/graph"
	"github.com/knoguchi/graphrag/internal/vectorstore"
)

// VectorHit is one dense retrieval result.
type VectorHit struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Distance float32           `json:"distance"`
}

// GraphHit is one concept reached by traversal, with its best path score.
type GraphHit struct {
	ConceptID string  `json:"concept_id"`
	Name      string  `json:"name"`
	Score     float64 `json:"score"`
}

// Result carries both retrieval streams, explicitly separated. Fusing
// them into one ranking is the caller's concern.
type Result struct {
	Query         string      `json:"query"`
	VectorResults []VectorHit `json:"vector_results"`
	GraphResults  []GraphHit  `json:"graph_results"`
}

// Options tunes one search call.
type Options struct {
	K       int  // vector top-k, default 5
	MaxHops int  // graph traversal bound, default 2
	Verify  bool // probe vector store health first, repairing once
}

// Embedder is the slice of the LLM gateway the searcher needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher runs hybrid queries.
type Searcher struct {
	graph    graph.Repo
	vectors  vectorstore.Store
	embedder Embedder
}

// NewSearcher wires the hybrid searcher.
func NewSearcher(g graph.Repo, vectors vectorstore.Store, embedder Embedder) *Searcher {
	return &Searcher{graph: g, vectors: vectors, embedder: embedder}
}

// Search embeds the query, takes the vector top-k, seeds graph traversal
// from the concepts attached to those hits, and fuses traversal scores
// per destination concept (max across seeds, descending, stable).
func (s *Searcher) Search(ctx context.Context, query string, opts Options) (*Result, error) {
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	if opts.K <= 0 {
		opts.K = 5
	}
	if opts.MaxHops < 0 {
		opts.MaxHops = 0
	}

	if opts.Verify {
		if err := s.verifyStore(ctx); err != nil {
			return nil, err
		}
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := s.vectors.Query(ctx, vectors[0], opts.K, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	result := &Result{Query: query, VectorResults: make([]VectorHit, 0, len(hits))}
	for _, h := range hits {
		result.VectorResults = append(result.VectorResults, VectorHit{
			ID:       h.ID,
			Text:     h.Document,
			Metadata: h.Metadata,
			Distance: h.Distance,
		})
	}

	result.GraphResults = s.traverseSeeds(ctx, seedConcepts(hits), opts.MaxHops)
	return result, nil
}

// verifyStore probes the vector store and attempts one repair before
// giving up. A store that stays unhealthy fails the search outright.
func (s *Searcher) verifyStore(ctx context.Context) error {
	err := s.vectors.CheckHealth(ctx)
	if err == nil {
		return nil
	}
	slog.Warn("vector store unhealthy, attempting repair", "error", err)
	if rerr := s.vectors.Repair(ctx); rerr != nil {
		return fmt.Errorf("vector store unhealthy and repair failed: %v (health: %v)", rerr, err)
	}
	if err := s.vectors.CheckHealth(ctx); err != nil {
		return fmt.Errorf("vector store still unhealthy after repair: %w", err)
	}
	return nil
}

// seedConcepts collects concept ids from hit metadata. Both the singular
// concept_id and the joined concept_ids forms are honored.
func seedConcepts(hits []vectorstore.QueryResult) []string {
	var seeds []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			seeds = append(seeds, id)
		}
	}
	for _, h := range hits {
		add(h.Metadata["concept_id"])
		for _, id := range vectorstore.SplitList(h.Metadata["concept_ids"]) {
			add(id)
		}
	}
	return seeds
}

// traverseSeeds walks the graph from every seed and fuses the results:
// one entry per destination concept at its maximum score across seeds,
// sorted descending. Equal scores keep first-seen order.
func (s *Searcher) traverseSeeds(ctx context.Context, seeds []string, maxHops int) []GraphHit {
	if maxHops == 0 || len(seeds) == 0 {
		return nil
	}

	var order []string
	best := make(map[string]GraphHit)
	for _, seed := range seeds {
		neighbors, err := s.graph.Traverse(ctx, seed, maxHops)
		if err != nil {
			slog.Warn("graph traversal failed for seed", "seed", seed, "error", err)
			continue
		}
		for _, n := range neighbors {
			hit, ok := best[n.ID]
			if !ok {
				best[n.ID] = GraphHit{ConceptID: n.ID, Name: n.Name, Score: n.Score}
				order = append(order, n.ID)
				continue
			}
			if n.Score > hit.Score {
				hit.Score = n.Score
				best[n.ID] = hit
			}
		}
	}

	fused := make([]GraphHit, 0, len(order))
	for _, id := range order {
		fused = append(fused, best[id])
	}
	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})
	return fused
}
