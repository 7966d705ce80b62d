package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knoguchi/graphrag/internal/extract"
	"github.com/knoguchi/graphrag/internal/graph"
	"github.com/knoguchi/graphrag/internal/ids"
	"github.com/knoguchi/graphrag/internal/vectorstore"
)

// Ingestion report statuses.
const (
	StatusSuccess        = "success"
	StatusPartialFailure = "partial_failure"
	StatusDuplicate      = "duplicate"
	StatusFailure        = "failure"
)

// Options tunes one ingest call.
type Options struct {
	// UseChunkingForPDF enables the chunked path for PDF documents.
	UseChunkingForPDF bool
}

// Report is the outcome of one ingestion.
type Report struct {
	Status            string
	DocumentID        string
	Method            string // dedup method when Status is duplicate
	EntityCount       int
	RelationshipCount int
	Details           []string
}

// Embedder is the slice of the LLM gateway the ingestor needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Ingestor runs the full pipeline: dedup, document creation, per-unit
// extraction, concept and edge merge, and the vector-store write.
type Ingestor struct {
	graph     graph.Repo
	vectors   vectorstore.Store
	embedder  Embedder
	extractor *extract.Extractor
	detector  *Detector
	chunker   *Chunker
}

// NewIngestor wires the pipeline. embedder may be nil, in which case
// vector writes are skipped and recorded in the report details.
func NewIngestor(g graph.Repo, vectors vectorstore.Store, embedder Embedder, extractor *extract.Extractor, detector *Detector, chunker *Chunker) *Ingestor {
	return &Ingestor{
		graph:     g,
		vectors:   vectors,
		embedder:  embedder,
		extractor: extractor,
		detector:  detector,
		chunker:   chunker,
	}
}

// unit is one extraction and write unit: a chunk, or the whole document
// when chunking is off.
type unit struct {
	text       string
	chunkIndex int
	concepts   []string // normalized names extracted from this unit
	ok         bool
}

// Ingest processes one document end to end. Failures of individual units,
// concepts, edges, or vector writes are isolated and recorded; graph
// writes are never rolled back.
func (ing *Ingestor) Ingest(ctx context.Context, text string, metadata map[string]any, opts Options) *Report {
	if strings.TrimSpace(text) == "" {
		return &Report{Status: StatusFailure, Details: []string{"empty text"}}
	}

	if det := ing.detector.Classify(ctx, text, metadata); det.IsDuplicate {
		slog.Info("duplicate document", "existing_id", det.ExistingID, "method", det.Method)
		return &Report{Status: StatusDuplicate, DocumentID: det.ExistingID, Method: det.Method}
	}

	doc := documentFromMetadata(text, metadata)
	if err := ing.graph.CreateDocument(ctx, doc); err != nil {
		return &Report{Status: StatusFailure, Details: []string{fmt.Sprintf("creating document: %v", err)}}
	}

	report := &Report{DocumentID: doc.ID}
	chunked := doc.DocumentType == "pdf" && opts.UseChunkingForPDF

	units, acc := ing.extractUnits(ctx, text, metadata, chunked, report)

	conceptIDs := ing.mergeConcepts(ctx, acc, report)
	report.EntityCount = len(conceptIDs)
	report.RelationshipCount = ing.mergeRelationships(ctx, acc, conceptIDs, report)

	if chunked {
		ing.writeChunks(ctx, doc, units, conceptIDs, report)
	} else {
		ing.writeWholeDocument(ctx, doc, text, units, conceptIDs, report)
	}

	report.Status = overallStatus(units)
	slog.Info("document ingested",
		"document_id", doc.ID,
		"status", report.Status,
		"entities", report.EntityCount,
		"relationships", report.RelationshipCount,
		"chunks", len(units))
	return report
}

// extractUnits runs the extractor once per unit and accumulates the
// results into the per-ingestion concept and relationship maps.
func (ing *Ingestor) extractUnits(ctx context.Context, text string, metadata map[string]any, chunked bool, report *Report) ([]*unit, *extract.Accumulator) {
	var units []*unit
	if chunked {
		for _, c := range ing.chunker.Split(text) {
			units = append(units, &unit{text: c.Text, chunkIndex: c.Index})
		}
	}
	if len(units) == 0 {
		units = []*unit{{text: text, chunkIndex: 0}}
	}

	acc := extract.NewAccumulator()
	for _, u := range units {
		result, err := ing.extractor.Extract(ctx, u.text, metadata)
		if err != nil {
			report.Details = append(report.Details, fmt.Sprintf("chunk %d: extraction: %v", u.chunkIndex, err))
			continue
		}
		for _, c := range result.Concepts {
			u.concepts = append(u.concepts, c.NormalizedName)
		}
		acc.Add(result, u.chunkIndex)
		u.ok = true
	}
	return units, acc
}

func (ing *Ingestor) mergeConcepts(ctx context.Context, acc *extract.Accumulator, report *Report) map[string]string {
	conceptIDs := make(map[string]string)
	for _, c := range acc.Concepts() {
		canonical, err := ing.graph.UpsertConcept(ctx, &graph.Concept{
			ID:              c.ID,
			Name:            c.Name,
			NormalizedName:  c.NormalizedName,
			Type:            c.Type,
			Abbreviation:    c.Abbreviation,
			Description:     c.Description,
			Source:          c.Source,
			FirstChunkIndex: c.ChunkIndex,
		})
		if err != nil {
			report.Details = append(report.Details, fmt.Sprintf("concept %q: %v", c.Name, err))
			continue
		}
		conceptIDs[c.NormalizedName] = canonical
	}
	return conceptIDs
}

func (ing *Ingestor) mergeRelationships(ctx context.Context, acc *extract.Accumulator, conceptIDs map[string]string, report *Report) int {
	count := 0
	for _, r := range acc.Relationships() {
		sourceID, okS := conceptIDs[ids.NormalizeName(r.Source)]
		targetID, okT := conceptIDs[ids.NormalizeName(r.Target)]
		if !okS || !okT {
			continue
		}
		err := ing.graph.UpsertEdge(ctx, &graph.Relationship{
			SourceID:    sourceID,
			TargetID:    targetID,
			Kind:        r.Kind,
			Strength:    r.Strength,
			Description: r.Description,
			Method:      r.Method,
		})
		if err != nil {
			slog.Warn("skipping relationship", "source", r.Source, "target", r.Target, "kind", r.Kind, "error", err)
			report.Details = append(report.Details, fmt.Sprintf("edge %s-[%s]->%s: %v", r.Source, r.Kind, r.Target, err))
			continue
		}
		count++
	}
	return count
}

func (ing *Ingestor) writeChunks(ctx context.Context, doc *graph.Document, units []*unit, conceptIDs map[string]string, report *Report) {
	for _, u := range units {
		if !u.ok {
			continue
		}
		chunkID := ids.NewChunkID(doc.ID, u.chunkIndex)
		err := ing.graph.CreateChunk(ctx, &graph.Chunk{
			ID:         chunkID,
			DocumentID: doc.ID,
			ChunkIndex: u.chunkIndex,
			TextHash:   ContentHash(u.text),
			CharCount:  len(u.text),
			WordCount:  len(strings.Fields(u.text)),
		})
		if err != nil {
			u.ok = false
			report.Details = append(report.Details, fmt.Sprintf("chunk %d: %v", u.chunkIndex, err))
			continue
		}

		unitIDs := resolveConceptIDs(u.concepts, conceptIDs)
		for _, conceptID := range unitIDs {
			if err := ing.graph.LinkMentions(ctx, chunkID, conceptID); err != nil {
				report.Details = append(report.Details, fmt.Sprintf("chunk %d: linking %s: %v", u.chunkIndex, conceptID, err))
			}
		}

		record := vectorstore.Record{
			ID:       chunkID,
			Text:     u.text,
			Metadata: recordMetadata(doc, chunkID, u.chunkIndex, unitIDs),
		}
		if err := ing.upsertVector(ctx, record); err != nil {
			report.Details = append(report.Details, fmt.Sprintf("chunk %d: vector store: %v", u.chunkIndex, err))
		}
	}
}

func (ing *Ingestor) writeWholeDocument(ctx context.Context, doc *graph.Document, text string, units []*unit, conceptIDs map[string]string, report *Report) {
	if len(units) == 0 || !units[0].ok {
		return
	}

	allIDs := resolveConceptIDs(units[0].concepts, conceptIDs)
	for _, conceptID := range allIDs {
		if err := ing.graph.LinkMentions(ctx, doc.ID, conceptID); err != nil {
			report.Details = append(report.Details, fmt.Sprintf("linking %s: %v", conceptID, err))
		}
	}

	record := vectorstore.Record{
		ID:       doc.ID,
		Text:     text,
		Metadata: recordMetadata(doc, "", -1, allIDs),
	}
	if err := ing.upsertVector(ctx, record); err != nil {
		report.Details = append(report.Details, fmt.Sprintf("vector store: %v", err))
	}
}

func (ing *Ingestor) upsertVector(ctx context.Context, record vectorstore.Record) error {
	if ing.embedder == nil {
		return fmt.Errorf("no embedder configured")
	}
	vectors, err := ing.embedder.Embed(ctx, []string{record.Text})
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	record.Vector = vectors[0]
	if err := ing.vectors.Upsert(ctx, []vectorstore.Record{record}); err != nil {
		return fmt.Errorf("upserting: %w", err)
	}
	return nil
}

func resolveConceptIDs(normalizedNames []string, conceptIDs map[string]string) []string {
	out := make([]string, 0, len(normalizedNames))
	seen := make(map[string]bool, len(normalizedNames))
	for _, name := range normalizedNames {
		id, ok := conceptIDs[name]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func overallStatus(units []*unit) string {
	succeeded := 0
	for _, u := range units {
		if u.ok {
			succeeded++
		}
	}
	switch {
	case succeeded == 0:
		return StatusFailure
	case succeeded < len(units):
		return StatusPartialFailure
	default:
		return StatusSuccess
	}
}

// recordMetadata flattens document attributes and provenance into the
// scalar metadata the vector store holds.
func recordMetadata(doc *graph.Document, chunkID string, chunkIndex int, conceptIDs []string) map[string]string {
	md := map[string]string{
		"document_id":   doc.ID,
		"title":         doc.Title,
		"source":        doc.Source,
		"document_type": doc.DocumentType,
		"hash":          doc.ContentHash,
	}
	if doc.Author != "" {
		md["author"] = doc.Author
	}
	if doc.Category != "" {
		md["category"] = doc.Category
	}
	if doc.FilePath != "" {
		md["file_path"] = doc.FilePath
	}
	if doc.Filename != "" {
		md["filename"] = doc.Filename
	}
	if chunkID != "" {
		md["chunk_id"] = chunkID
		md["chunk_index"] = fmt.Sprintf("%d", chunkIndex)
	}
	if len(conceptIDs) > 0 {
		md["concept_ids"] = vectorstore.JoinList(conceptIDs)
	}
	return md
}

// documentFromMetadata builds the Document node attributes from request
// metadata, minting a fresh id.
func documentFromMetadata(text string, metadata map[string]any) *graph.Document {
	title := metaString(metadata, "title")
	if title == "" {
		title = metaString(metadata, "filename")
	}
	if title == "" {
		title = "Untitled"
	}
	docType := strings.ToLower(metaString(metadata, "document_type"))
	if docType == "" {
		docType = "text"
	}
	source := metaString(metadata, "source")
	if source == "" {
		source = "api"
	}

	now := time.Now().UTC()
	return &graph.Document{
		ID:              ids.NewDocumentID(),
		Title:           title,
		Source:          source,
		DocumentType:    docType,
		ContentHash:     ContentHash(text),
		WordCount:       len(strings.Fields(text)),
		CharCount:       len(text),
		Author:          metaString(metadata, "author"),
		Category:        metaString(metadata, "category"),
		PublicationDate: metaString(metadata, "publication_date"),
		URL:             metaString(metadata, "url"),
		Filename:        metaString(metadata, "filename"),
		FilePath:        metaString(metadata, "file_path"),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
