// Package extract turns document text into concepts and relationships.
//
// Concept extraction runs up to four passes (LLM, prompt-engineering
// keywords, domain keywords, caller metadata) and merges the results by
// normalized name. Relationship extraction runs the LLM strategy, a
// pattern strategy over natural-language cues, and a co-occurrence
// fallback, merged by method priority.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knoguchi/graphrag/internal/graph"
	"github.com/knoguchi/graphrag/internal/ids"
	"github.com/knoguchi/graphrag/internal/llm"
)

// Generator is the slice of the LLM gateway the extractor needs.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error)
}

// Concept is an extracted concept before it is merged into the graph.
// Source and Target in relationships reference concepts by Name.
type Concept struct {
	ID              string
	Name            string
	NormalizedName  string
	Type            string
	Description     string
	Abbreviation    string
	Source          string
	RelatedConcepts []string
	ChunkIndex      int
}

// Relationship is an extracted edge between two concepts, referenced by
// display name. The ingestor resolves names to canonical graph ids.
type Relationship struct {
	Source      string
	Target      string
	Kind        string
	Strength    float64
	Description string
	Method      string
}

// Result holds one extraction run's output.
type Result struct {
	Concepts      []Concept
	Relationships []Relationship
}

// Extractor implements the multi-pass concept and relationship pipeline.
// A nil generator disables the LLM passes; keyword and metadata passes
// still run.
type Extractor struct {
	gen     Generator
	domains []string
}

// New creates an extractor. domains selects optional per-domain keyword
// lexicons ("ai", "programming").
func New(gen Generator, domains ...string) *Extractor {
	return &Extractor{gen: gen, domains: domains}
}

// Extract runs all concept passes over text, then the relationship
// strategies over the merged concept set.
func (e *Extractor) Extract(ctx context.Context, text string, metadata map[string]any) (*Result, error) {
	concepts, llmRels := e.extractConcepts(ctx, text, metadata)
	rels := e.extractRelationships(text, concepts, llmRels)
	return &Result{Concepts: concepts, Relationships: rels}, nil
}

// extractConcepts runs the four passes in priority order and merges by
// normalized name. It also returns any relationships the LLM emitted in
// the same response, so the relationship stage does not re-prompt.
func (e *Extractor) extractConcepts(ctx context.Context, text string, metadata map[string]any) ([]Concept, []Relationship) {
	merged := newConceptSet()

	var llmRels []Relationship
	if e.gen != nil {
		llmConcepts, rels, err := e.llmPass(ctx, text)
		if err != nil {
			slog.Warn("LLM concept pass failed, continuing with keyword passes", "error", err)
		} else {
			llmRels = rels
			for _, c := range llmConcepts {
				merged.add(c)
			}
		}
	}

	for _, c := range e.promptEngineeringPass(text) {
		merged.add(c)
	}
	for _, c := range e.domainKeywordPass(text, metadata) {
		merged.add(c)
	}
	for _, c := range metadataPass(metadata) {
		merged.add(c)
	}

	return merged.slice(), llmRels
}

const llmExtractionPrompt = `Extract the key concepts and relationships from the text below.

Respond with a JSON object of this exact shape and nothing else:
{
  "concepts": [
    {"name": "...", "type": "...", "description": "...", "related_concepts": ["..."]}
  ],
  "relationships": [
    {"source": "...", "target": "...", "type": "IS_A", "strength": 0.9, "description": "..."}
  ]
}

Relationship types must be upper-case identifiers such as IS_A, HAS_PART,
USED_FOR, RELATED_TO. Strength is a number between 0 and 1.

Text:
%s`

type llmConceptPayload struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	Description     string   `json:"description"`
	RelatedConcepts []string `json:"related_concepts"`
}

type llmRelationshipPayload struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Type        string  `json:"type"`
	Strength    float64 `json:"strength"`
	Description string  `json:"description"`
}

type llmExtractionPayload struct {
	Concepts      []llmConceptPayload      `json:"concepts"`
	Relationships []llmRelationshipPayload `json:"relationships"`
}

func (e *Extractor) llmPass(ctx context.Context, text string) ([]Concept, []Relationship, error) {
	response, err := e.gen.Generate(ctx, fmt.Sprintf(llmExtractionPrompt, text), llm.GenerateOptions{
		SystemPrompt: "You are a precise information extraction engine. Output only JSON.",
		Temperature:  0.1,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("generating extraction: %w", err)
	}

	payload, err := parseExtractionResponse(response)
	if err != nil {
		return nil, nil, err
	}

	concepts := make([]Concept, 0, len(payload.Concepts))
	for _, c := range payload.Concepts {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		conceptType := c.Type
		if conceptType == "" {
			conceptType = "Concept"
		}
		concepts = append(concepts, Concept{
			ID:              ids.NewConceptID("llm", name),
			Name:            name,
			NormalizedName:  ids.NormalizeName(name),
			Type:            conceptType,
			Description:     strings.TrimSpace(c.Description),
			Source:          graph.SourceLLM,
			RelatedConcepts: c.RelatedConcepts,
		})
	}

	rels := make([]Relationship, 0, len(payload.Relationships))
	for _, r := range payload.Relationships {
		kind := normalizeEdgeKind(r.Type)
		if kind == "" || r.Source == "" || r.Target == "" {
			continue
		}
		rels = append(rels, Relationship{
			Source:      strings.TrimSpace(r.Source),
			Target:      strings.TrimSpace(r.Target),
			Kind:        kind,
			Strength:    clampStrength(r.Strength),
			Description: r.Description,
			Method:      graph.MethodLLM,
		})
	}
	return concepts, rels, nil
}

// parseExtractionResponse recovers the JSON payload from a response that
// may be wrapped in prose or markdown fences. It first tries the object
// form, then falls back to a bare concepts array delimited by the first
// '[' and last ']'.
func parseExtractionResponse(response string) (*llmExtractionPayload, error) {
	if start := strings.Index(response, "{"); start >= 0 {
		if end := strings.LastIndex(response, "}"); end > start {
			var payload llmExtractionPayload
			if err := json.Unmarshal([]byte(response[start:end+1]), &payload); err == nil {
				return &payload, nil
			}
		}
	}

	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON payload in response")
	}
	var concepts []llmConceptPayload
	if err := json.Unmarshal([]byte(response[start:end+1]), &concepts); err != nil {
		return nil, fmt.Errorf("parsing concepts array: %w", err)
	}
	return &llmExtractionPayload{Concepts: concepts}, nil
}

func (e *Extractor) promptEngineeringPass(text string) []Concept {
	textLower := strings.ToLower(text)
	var concepts []Concept
	for _, term := range promptEngineeringLexicon {
		if !strings.Contains(textLower, term) {
			continue
		}
		concepts = append(concepts, Concept{
			ID:             ids.NewConceptID("pe", term),
			Name:           term,
			NormalizedName: ids.NormalizeName(term),
			Type:           "PromptEngineeringConcept",
			Abbreviation:   peAbbreviations[term],
			Source:         graph.SourceKeywordPE,
		})
	}
	return concepts
}

func (e *Extractor) domainKeywordPass(text string, metadata map[string]any) []Concept {
	textLower := strings.ToLower(text)

	terms := make([]string, 0, len(commonLexicon))
	terms = append(terms, commonLexicon...)
	for _, domain := range e.activeDomains(metadata) {
		terms = append(terms, domainLexicons[domain]...)
	}

	var concepts []Concept
	seen := make(map[string]bool)
	for _, term := range terms {
		normalized := ids.NormalizeName(term)
		if seen[normalized] || !strings.Contains(textLower, term) {
			continue
		}
		seen[normalized] = true
		concepts = append(concepts, Concept{
			ID:             ids.NewConceptID("kw", term),
			Name:           term,
			NormalizedName: normalized,
			Type:           "Concept",
			Source:         graph.SourceKeywordText,
		})
	}
	return concepts
}

// activeDomains combines configured domains with a `domain` metadata
// attribute, keeping only domains a lexicon exists for.
func (e *Extractor) activeDomains(metadata map[string]any) []string {
	var domains []string
	seen := make(map[string]bool)
	for _, d := range e.domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if _, ok := domainLexicons[d]; ok && !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}
	if metadata != nil {
		if d, ok := metadata["domain"].(string); ok {
			d = strings.ToLower(strings.TrimSpace(d))
			if _, known := domainLexicons[d]; known && !seen[d] {
				domains = append(domains, d)
			}
		}
	}
	return domains
}

// metadataPass emits concepts named in metadata["concepts"], accepted as
// a comma-separated string or a list.
func metadataPass(metadata map[string]any) []Concept {
	if metadata == nil {
		return nil
	}

	var names []string
	switch v := metadata["concepts"].(type) {
	case string:
		for _, name := range strings.Split(v, ",") {
			names = append(names, name)
		}
	case []string:
		names = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
	}

	var concepts []Concept
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		concepts = append(concepts, Concept{
			ID:             ids.NewConceptID("meta", name),
			Name:           name,
			NormalizedName: ids.NormalizeName(name),
			Type:           "Concept",
			Source:         graph.SourceMetadata,
		})
	}
	return concepts
}

// conceptSet merges concepts by normalized name. The first pass to emit a
// name wins the concept identity; later passes only fill absent fields.
type conceptSet struct {
	order []string
	byKey map[string]*Concept
}

func newConceptSet() *conceptSet {
	return &conceptSet{byKey: make(map[string]*Concept)}
}

func (s *conceptSet) add(c Concept) {
	key := c.NormalizedName
	if key == "" {
		key = ids.NormalizeName(c.Name)
		c.NormalizedName = key
	}
	existing, ok := s.byKey[key]
	if !ok {
		copied := c
		s.byKey[key] = &copied
		s.order = append(s.order, key)
		return
	}

	if existing.Description == "" {
		existing.Description = c.Description
	}
	if existing.Abbreviation == "" {
		existing.Abbreviation = c.Abbreviation
	}
	existing.RelatedConcepts = unionStrings(existing.RelatedConcepts, c.RelatedConcepts)
}

func (s *conceptSet) slice() []Concept {
	out := make([]Concept, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, *s.byKey[key])
	}
	return out
}

func unionStrings(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[ids.NormalizeName(s)] = true
	}
	for _, s := range b {
		key := ids.NormalizeName(s)
		if !seen[key] {
			seen[key] = true
			a = append(a, s)
		}
	}
	return a
}

func clampStrength(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// normalizeEdgeKind upper-cases a relationship type and replaces spaces
// with underscores. Returns "" when the result is not a legal kind.
func normalizeEdgeKind(kind string) string {
	kind = strings.ToUpper(strings.TrimSpace(kind))
	kind = strings.ReplaceAll(kind, " ", "_")
	if !graph.ValidEdgeKind(kind) {
		return ""
	}
	return kind
}
