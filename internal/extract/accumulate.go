package extract

// Accumulator merges per-unit extraction results across one ingestion.
// Concepts union by normalized name (first occurrence keeps identity and
// chunk index, longer descriptions win); relationships merge by method
// priority and strength.
type Accumulator struct {
	concepts *conceptSet
	rels     *relationshipSet
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		concepts: newConceptSet(),
		rels:     newRelationshipSet(),
	}
}

// Add merges one unit's extraction result, stamping its concepts with the
// unit's chunk index.
func (a *Accumulator) Add(result *Result, chunkIndex int) {
	for _, c := range result.Concepts {
		c.ChunkIndex = chunkIndex
		a.concepts.addUnion(c)
	}
	for _, r := range result.Relationships {
		a.rels.add(r)
	}
}

// Concepts returns the merged concepts in first-seen order.
func (a *Accumulator) Concepts() []Concept {
	return a.concepts.slice()
}

// Relationships returns the merged relationships in first-seen order.
func (a *Accumulator) Relationships() []Relationship {
	return a.rels.slice()
}
