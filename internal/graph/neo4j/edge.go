package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/knoguchi/graphrag/internal/graph"
)

// UpsertEdge creates or updates a concept-to-concept edge.
//
// Strength never decreases: re-assertion keeps max(existing, new).
// Description and method are replaced on every assertion. The relationship
// type is validated then interpolated — Cypher cannot parameterize it.
func (s *Store) UpsertEdge(ctx context.Context, rel *graph.Relationship) error {
	if !graph.ValidEdgeKind(rel.Kind) {
		return fmt.Errorf("invalid relationship kind %q", rel.Kind)
	}

	strength := rel.Strength
	if strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (s:Concept {id: $source_id})
		MATCH (t:Concept {id: $target_id})
		MERGE (s)-[r:%s]->(t)
		ON CREATE SET r.strength = $strength, r.description = $description,
		              r.method = $method, r.created_at = $now
		ON MATCH SET  r.strength = CASE WHEN r.strength >= $strength THEN r.strength ELSE $strength END,
		              r.description = $description, r.method = $method, r.updated_at = $now
		RETURN r.strength
	`, rel.Kind)

	params := map[string]any{
		"source_id":   rel.SourceID,
		"target_id":   rel.TargetID,
		"strength":    strength,
		"description": rel.Description,
		"method":      rel.Method,
		"now":         time.Now().UTC(),
	}

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return fmt.Errorf("failed to upsert edge %s-[%s]->%s: %w", rel.SourceID, rel.Kind, rel.TargetID, err)
	}
	if _, err := result.Single(ctx); err != nil {
		return fmt.Errorf("edge endpoints missing for %s-[%s]->%s: %w", rel.SourceID, rel.Kind, rel.TargetID, graph.ErrNotFound)
	}
	return nil
}
