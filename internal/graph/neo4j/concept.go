package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/knoguchi/graphrag/internal/graph"
)

// UpsertConcept merges a concept into the graph.
//
// Match order: id first, then normalized_name. A normalized-name match adopts
// the stored id, which is returned so callers rewrite their references. The
// MERGE on normalized_name combined with the uniqueness constraint serializes
// concurrent creations of the same concept: exactly one node is created, the
// loser of the race observes it on retry of the transaction.
func (s *Store) UpsertConcept(ctx context.Context, concept *graph.Concept) (string, error) {
	label := graph.SanitizeLabel(concept.Type)
	now := time.Now().UTC()

	session := s.session(ctx)
	defer session.Close(ctx)

	canonicalID, err := neo4j.ExecuteWrite(ctx, session, func(tx neo4j.ManagedTransaction) (string, error) {
		// Pass 1: match by id.
		byID := `
			MATCH (c:Concept {id: $id})
			SET c.name = $name,
			    c.normalized_name = $normalized_name,
			    c.description = CASE WHEN $description <> '' THEN $description ELSE c.description END,
			    c.abbreviation = CASE WHEN $abbreviation <> '' THEN $abbreviation ELSE c.abbreviation END,
			    c.updated_at = $now
			RETURN c.id AS id
		`
		params := map[string]any{
			"id":                concept.ID,
			"name":              concept.Name,
			"normalized_name":   concept.NormalizedName,
			"description":       concept.Description,
			"abbreviation":      concept.Abbreviation,
			"source":            concept.Source,
			"first_chunk_index": concept.FirstChunkIndex,
			"now":               now,
		}

		result, err := tx.Run(ctx, byID, params)
		if err != nil {
			return "", err
		}
		if result.Next(ctx) {
			id, _ := result.Record().Get("id")
			return id.(string), nil
		}

		// Pass 2: merge by normalized_name; adopt the stored id on match.
		// The extra label records the concept type; all concepts share :Concept.
		merge := fmt.Sprintf(`
			MERGE (c:Concept {normalized_name: $normalized_name})
			ON CREATE SET c.id = $id, c.name = $name, c.description = $description,
			              c.abbreviation = $abbreviation, c.source = $source,
			              c.first_chunk_index = $first_chunk_index,
			              c.created_at = $now, c.updated_at = $now
			ON MATCH SET  c.description = CASE WHEN c.description IS NULL OR c.description = '' THEN $description ELSE c.description END,
			              c.abbreviation = CASE WHEN c.abbreviation IS NULL OR c.abbreviation = '' THEN $abbreviation ELSE c.abbreviation END,
			              c.updated_at = $now
			SET c:%s
			RETURN c.id AS id
		`, label)

		result, err = tx.Run(ctx, merge, params)
		if err != nil {
			return "", err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return "", err
		}
		id, _ := record.Get("id")
		return id.(string), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to upsert concept %q: %w", concept.Name, err)
	}
	return canonicalID, nil
}

// GetConceptByName looks up a concept by normalized name.
func (s *Store) GetConceptByName(ctx context.Context, normalizedName string) (*graph.Concept, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (c:Concept {normalized_name: $name})
		RETURN properties(c) AS props, labels(c) AS labels
		LIMIT 1
	`
	result, err := session.Run(ctx, query, map[string]any{"name": normalizedName})
	if err != nil {
		return nil, fmt.Errorf("failed to query concept: %w", err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, fmt.Errorf("failed to read concept: %w", err)
		}
		return nil, graph.ErrNotFound
	}
	props, _ := result.Record().Get("props")
	labels, _ := result.Record().Get("labels")
	concept := conceptFromProps(props.(map[string]any))
	concept.Type = typeFromLabels(labels)
	return concept, nil
}

// ListConcepts lists concepts, deduplicated by id.
func (s *Store) ListConcepts(ctx context.Context, limit int) ([]*graph.Concept, error) {
	if limit <= 0 {
		limit = 100
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (c:Concept)
		WITH c.id AS id, head(collect(properties(c))) AS props, head(collect(labels(c))) AS labels
		RETURN props, labels
		ORDER BY props.name
		LIMIT $limit
	`
	result, err := session.Run(ctx, query, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list concepts: %w", err)
	}

	var concepts []*graph.Concept
	for result.Next(ctx) {
		props, ok := result.Record().Get("props")
		if !ok {
			continue
		}
		labels, _ := result.Record().Get("labels")
		concept := conceptFromProps(props.(map[string]any))
		concept.Type = typeFromLabels(labels)
		concepts = append(concepts, concept)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read concepts: %w", err)
	}
	return concepts, nil
}

func conceptFromProps(props map[string]any) *graph.Concept {
	c := &graph.Concept{
		ID:              stringProp(props, "id"),
		Name:            stringProp(props, "name"),
		NormalizedName:  stringProp(props, "normalized_name"),
		Abbreviation:    stringProp(props, "abbreviation"),
		Description:     stringProp(props, "description"),
		Source:          stringProp(props, "source"),
		FirstChunkIndex: intProp(props, "first_chunk_index"),
	}
	if t, ok := props["created_at"].(time.Time); ok {
		c.CreatedAt = t
	}
	if t, ok := props["updated_at"].(time.Time); ok {
		c.UpdatedAt = t
	}
	return c
}

// typeFromLabels recovers the concept type from node labels. The type lives
// as an extra label next to :Concept; a node carrying only :Concept reports
// that as its type.
func typeFromLabels(v any) string {
	labels, _ := v.([]any)
	for _, l := range labels {
		if s, ok := l.(string); ok && s != "Concept" {
			return s
		}
	}
	return "Concept"
}
