package neo4j

import (
	"context"
	"fmt"

	"github.com/knoguchi/graphrag/internal/graph"
)

// defaultEdgeStrength is assumed for RELATED_TO edges stored without one.
const defaultEdgeStrength = 0.5

// Traverse walks RELATED_TO edges outward from a seed concept, at most
// maxHops hops, and returns every reached concept with its best accumulated
// score (sum of edge strengths along the path). Neighbors come back in the
// order they were first reached, so repeated traversals of the same graph
// produce the same slice.
//
// The walk is a frontier expansion that accumulates scores per destination,
// one query per hop — concept graphs are cyclic and enumerating simple paths
// does not terminate usefully. A node is re-expanded only when a later path
// improves its score.
func (s *Store) Traverse(ctx context.Context, seedConceptID string, maxHops int) ([]graph.Neighbor, error) {
	if maxHops <= 0 {
		return nil, nil
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (s:Concept)-[r:RELATED_TO]->(t:Concept)
		WHERE s.id IN $ids
		RETURN s.id AS source, t.id AS target, t.name AS name, r.strength AS strength
	`

	w := newWalk(seedConceptID)
	frontier := []string{seedConceptID}

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		result, err := session.Run(ctx, query, map[string]any{"ids": frontier})
		if err != nil {
			return nil, fmt.Errorf("failed to expand traversal frontier: %w", err)
		}

		var next []string
		seen := map[string]bool{}
		for result.Next(ctx) {
			record := result.Record().AsMap()
			source, _ := record["source"].(string)
			target, _ := record["target"].(string)
			name, _ := record["name"].(string)
			strength := floatProp(record, "strength", defaultEdgeStrength)

			if !w.observe(source, target, name, strength) {
				continue
			}
			if !seen[target] {
				seen[target] = true
				next = append(next, target)
			}
		}
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("failed to read traversal results: %w", err)
		}
		frontier = next
	}

	return w.neighbors(), nil
}

// walk accumulates the best score per destination during frontier
// expansion. Destinations keep their first-reached order; the seed itself
// never appears in the output.
type walk struct {
	best  map[string]float64
	names map[string]string
	order []string
}

func newWalk(seedConceptID string) *walk {
	return &walk{
		best:  map[string]float64{seedConceptID: 0},
		names: map[string]string{},
	}
}

// observe records an edge and reports whether the target's score improved,
// which puts it in the next frontier.
func (w *walk) observe(source, target, name string, strength float64) bool {
	score := w.best[source] + strength
	prev, known := w.best[target]
	if known && prev >= score {
		return false
	}
	if !known {
		w.order = append(w.order, target)
	}
	w.best[target] = score
	w.names[target] = name
	return true
}

func (w *walk) neighbors() []graph.Neighbor {
	neighbors := make([]graph.Neighbor, 0, len(w.order))
	for _, id := range w.order {
		neighbors = append(neighbors, graph.Neighbor{ID: id, Name: w.names[id], Score: w.best[id]})
	}
	return neighbors
}
