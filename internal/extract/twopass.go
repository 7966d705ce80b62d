package extract

import (
	"context"
	"fmt"
	"log/slog"
)

// ExtractTwoPass runs concept extraction per chunk, unions the results by
// normalized name, then runs relationship extraction once over the full
// text with the unioned concept set. Each concept records the index of
// the first chunk it appeared in.
//
// Chunking is the caller's concern; chunks must cover fullText.
func (e *Extractor) ExtractTwoPass(ctx context.Context, chunks []string, fullText string, metadata map[string]any) (*Result, error) {
	if len(chunks) == 0 {
		return e.Extract(ctx, fullText, metadata)
	}

	union := newConceptSet()
	var llmRels []Relationship
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extraction cancelled at chunk %d: %w", i, err)
		}
		concepts, rels := e.extractConcepts(ctx, chunk, metadata)
		if len(concepts) == 0 {
			slog.Debug("no concepts extracted from chunk", "chunk_index", i)
		}
		for _, c := range concepts {
			c.ChunkIndex = i
			union.addUnion(c)
		}
		llmRels = append(llmRels, rels...)
	}

	concepts := union.slice()
	rels := e.extractRelationships(fullText, concepts, llmRels)
	return &Result{Concepts: concepts, Relationships: rels}, nil
}

// addUnion merges a chunk-local concept into the cross-chunk union: the
// first occurrence keeps its identity and chunk index, the longer
// description wins, and related concepts accumulate.
func (s *conceptSet) addUnion(c Concept) {
	existing, ok := s.byKey[c.NormalizedName]
	if !ok {
		s.add(c)
		return
	}

	if len(c.Description) > len(existing.Description) {
		existing.Description = c.Description
	}
	if existing.Abbreviation == "" {
		existing.Abbreviation = c.Abbreviation
	}
	existing.RelatedConcepts = unionStrings(existing.RelatedConcepts, c.RelatedConcepts)
}
