package extract

import (
	"strings"

	"github.com/knoguchi/graphrag/internal/graph"
)

const (
	patternStrength      = 0.8
	cooccurrenceStrength = 0.3
)

// cueTable maps relationship kinds to the natural-language cues the
// pattern strategy scans for. Cues carry their surrounding spaces so a
// cue never matches inside a word.
var cueTable = []struct {
	kind string
	cues []string
}{
	{graph.RelIsA, []string{" is a ", " is an ", " is type of ", " is kind of "}},
	{graph.RelHasPart, []string{" consists of ", " contains ", " includes ", " is composed of "}},
	{graph.RelUsedFor, []string{" is used for ", " is used to ", " is applied to ", " helps with "}},
	{graph.RelDefinesConcept, []string{" defines ", " is defined as ", " describes "}},
	{graph.RelImplementsMethod, []string{" implements ", " realizes "}},
	{graph.RelExampleOf, []string{" is an example of ", " exemplifies ", " such as "}},
	{graph.RelRequiresInput, []string{" requires ", " needs ", " depends on "}},
	{graph.RelStepInProcess, []string{" is a step in ", " is part of the process of ", " precedes "}},
	{graph.RelComparesWith, []string{" compared to ", " compared with ", " versus ", " is similar to "}},
	{graph.RelRelatedTo, []string{" relates to ", " is related to ", " is associated with "}},
}

// extractRelationships merges the LLM strategy's output with the pattern
// strategy and, only when both came up empty, the co-occurrence fallback.
func (e *Extractor) extractRelationships(text string, concepts []Concept, llmRels []Relationship) []Relationship {
	merged := newRelationshipSet()
	for _, r := range llmRels {
		merged.add(r)
	}

	for _, r := range patternPass(text, concepts) {
		merged.add(r)
	}

	if merged.empty() {
		for _, r := range cooccurrencePass(concepts) {
			merged.add(r)
		}
	}
	return merged.slice()
}

// patternPass scans the lowered text for "<source> <cue> <target>" for
// every ordered concept pair. The first matching cue wins for a pair.
func patternPass(text string, concepts []Concept) []Relationship {
	textLower := strings.ToLower(text)

	var rels []Relationship
	for _, src := range concepts {
		for _, dst := range concepts {
			if src.NormalizedName == dst.NormalizedName {
				continue
			}
			if r, ok := matchPair(textLower, src, dst); ok {
				rels = append(rels, r)
			}
		}
	}
	return rels
}

func matchPair(textLower string, src, dst Concept) (Relationship, bool) {
	srcLower := strings.ToLower(src.Name)
	dstLower := strings.ToLower(dst.Name)
	for _, entry := range cueTable {
		for _, cue := range entry.cues {
			if strings.Contains(textLower, srcLower+cue+dstLower) {
				return Relationship{
					Source:      src.Name,
					Target:      dst.Name,
					Kind:        entry.kind,
					Strength:    patternStrength,
					Description: strings.TrimSpace(cue),
					Method:      graph.MethodPattern,
				}, true
			}
		}
	}
	return Relationship{}, false
}

// cooccurrencePass links every unordered concept pair with a weak
// RELATED_TO edge. Used only when no other strategy produced edges.
func cooccurrencePass(concepts []Concept) []Relationship {
	var rels []Relationship
	for i := 0; i < len(concepts); i++ {
		for j := i + 1; j < len(concepts); j++ {
			rels = append(rels, Relationship{
				Source:   concepts[i].Name,
				Target:   concepts[j].Name,
				Kind:     graph.RelRelatedTo,
				Strength: cooccurrenceStrength,
				Method:   graph.MethodCooccurrence,
			})
		}
	}
	return rels
}

// methodPriority orders merge candidates; higher wins.
func methodPriority(method string) int {
	switch method {
	case graph.MethodLLM:
		return 3
	case graph.MethodPattern:
		return 2
	case graph.MethodCooccurrence:
		return 1
	default:
		return 0
	}
}

// relationshipSet merges edges keyed by (source, target, kind). A higher
// priority method replaces a lower one; within the same priority the
// higher strength wins.
type relationshipSet struct {
	order []string
	byKey map[string]Relationship
}

func newRelationshipSet() *relationshipSet {
	return &relationshipSet{byKey: make(map[string]Relationship)}
}

func relKey(r Relationship) string {
	return strings.ToLower(r.Source) + "|" + strings.ToLower(r.Target) + "|" + r.Kind
}

func (s *relationshipSet) add(r Relationship) {
	key := relKey(r)
	existing, ok := s.byKey[key]
	if !ok {
		s.byKey[key] = r
		s.order = append(s.order, key)
		return
	}

	newPriority, oldPriority := methodPriority(r.Method), methodPriority(existing.Method)
	if newPriority > oldPriority || (newPriority == oldPriority && r.Strength > existing.Strength) {
		s.byKey[key] = r
	}
}

func (s *relationshipSet) empty() bool {
	return len(s.order) == 0
}

func (s *relationshipSet) slice() []Relationship {
	out := make([]Relationship, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.byKey[key])
	}
	return out
}
