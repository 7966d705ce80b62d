package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/knoguchi/graphrag/internal/graph"
)

// CreateDocument creates the Document node.
func (s *Store) CreateDocument(ctx context.Context, doc *graph.Document) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	query := `
		CREATE (d:Document {
			id: $id, title: $title, source: $source, document_type: $document_type,
			hash: $hash, word_count: $word_count, char_count: $char_count,
			author: $author, category: $category, publication_date: $publication_date,
			url: $url, filename: $filename, file_path: $file_path,
			created_at: $created_at, updated_at: $updated_at
		})
	`
	params := map[string]any{
		"id":               doc.ID,
		"title":            doc.Title,
		"source":           doc.Source,
		"document_type":    doc.DocumentType,
		"hash":             doc.ContentHash,
		"word_count":       doc.WordCount,
		"char_count":       doc.CharCount,
		"author":           doc.Author,
		"category":         doc.Category,
		"publication_date": doc.PublicationDate,
		"url":              doc.URL,
		"filename":         doc.Filename,
		"file_path":        doc.FilePath,
		"created_at":       doc.CreatedAt.UTC(),
		"updated_at":       doc.UpdatedAt.UTC(),
	}

	if _, err := session.Run(ctx, query, params); err != nil {
		return fmt.Errorf("failed to create document node: %w", err)
	}
	return nil
}

// CreateChunk creates a Chunk node and links it HAS_CHUNK from its document.
func (s *Store) CreateChunk(ctx context.Context, chunk *graph.Chunk) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (d:Document {id: $document_id})
		CREATE (c:Chunk {
			id: $id, document_id: $document_id, chunk_index: $chunk_index,
			text_hash: $text_hash, char_count: $char_count, word_count: $word_count,
			created_at: $created_at
		})
		CREATE (d)-[:HAS_CHUNK]->(c)
		RETURN c.id
	`
	params := map[string]any{
		"id":          chunk.ID,
		"document_id": chunk.DocumentID,
		"chunk_index": chunk.ChunkIndex,
		"text_hash":   chunk.TextHash,
		"char_count":  chunk.CharCount,
		"word_count":  chunk.WordCount,
		"created_at":  chunk.CreatedAt.UTC(),
	}

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return fmt.Errorf("failed to create chunk node: %w", err)
	}
	if _, err := result.Single(ctx); err != nil {
		return fmt.Errorf("chunk creation did not match document %s: %w", chunk.DocumentID, graph.ErrNotFound)
	}
	return nil
}

// LinkMentions creates a MENTIONS_CONCEPT edge from a document or chunk node.
func (s *Store) LinkMentions(ctx context.Context, sourceID, conceptID string) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (s {id: $source_id})
		WHERE s:Document OR s:Chunk
		MATCH (c:Concept {id: $concept_id})
		MERGE (s)-[:MENTIONS_CONCEPT]->(c)
	`
	params := map[string]any{"source_id": sourceID, "concept_id": conceptID}

	if _, err := session.Run(ctx, query, params); err != nil {
		return fmt.Errorf("failed to link mention %s -> %s: %w", sourceID, conceptID, err)
	}
	return nil
}

// DocumentsByConcept returns documents mentioning the concept with this
// normalized name, directly or through one of their chunks.
func (s *Store) DocumentsByConcept(ctx context.Context, normalizedName string, limit int) ([]*graph.Document, error) {
	if limit <= 0 {
		limit = 10
	}

	session := s.session(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (c:Concept {normalized_name: $name})
		MATCH (d:Document)
		WHERE (d)-[:MENTIONS_CONCEPT]->(c)
		   OR (d)-[:HAS_CHUNK]->(:Chunk)-[:MENTIONS_CONCEPT]->(c)
		RETURN DISTINCT properties(d) AS props
		ORDER BY props.created_at DESC
		LIMIT $limit
	`
	params := map[string]any{"name": normalizedName, "limit": limit}

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents by concept: %w", err)
	}

	var docs []*graph.Document
	for result.Next(ctx) {
		props, ok := result.Record().Get("props")
		if !ok {
			continue
		}
		docs = append(docs, documentFromProps(props.(map[string]any)))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents by concept: %w", err)
	}
	return docs, nil
}

func documentFromProps(props map[string]any) *graph.Document {
	doc := &graph.Document{
		ID:              stringProp(props, "id"),
		Title:           stringProp(props, "title"),
		Source:          stringProp(props, "source"),
		DocumentType:    stringProp(props, "document_type"),
		ContentHash:     stringProp(props, "hash"),
		WordCount:       intProp(props, "word_count"),
		CharCount:       intProp(props, "char_count"),
		Author:          stringProp(props, "author"),
		Category:        stringProp(props, "category"),
		PublicationDate: stringProp(props, "publication_date"),
		URL:             stringProp(props, "url"),
		Filename:        stringProp(props, "filename"),
		FilePath:        stringProp(props, "file_path"),
	}
	if t, ok := props["created_at"].(time.Time); ok {
		doc.CreatedAt = t
	}
	return doc
}
