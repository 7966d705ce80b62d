package ids

import (
	"strings"
	"testing"
)

func TestNewDocumentID(t *testing.T) {
	id := NewDocumentID()
	if !strings.HasPrefix(id, "doc-") {
		t.Errorf("expected doc- prefix, got %s", id)
	}
	if id == NewDocumentID() {
		t.Error("two document ids should not collide")
	}
}

func TestNewChunkID(t *testing.T) {
	docID := "doc-123"
	id := NewChunkID(docID, 4)
	if !strings.HasPrefix(id, "chunk-doc-123-4-") {
		t.Errorf("unexpected chunk id %s", id)
	}
	suffix := id[strings.LastIndex(id, "-")+1:]
	if len(suffix) != 8 {
		t.Errorf("expected 8-hex suffix, got %q", suffix)
	}
}

func TestNewConceptID(t *testing.T) {
	id := NewConceptID("llm", "Chain of Thought")
	if !strings.HasPrefix(id, "concept-llm-chain-of-thought-") {
		t.Errorf("unexpected concept id %s", id)
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "GraphRAG", "graphrag"},
		{"spaces", "Chain of Thought", "chain-of-thought"},
		{"punctuation", "zero-shot (CoT)!", "zero-shot-cot"},
		{"collapsed runs", "a  --  b", "a-b"},
		{"leading trailing", "  hello  ", "hello"},
		{"empty", "", ""},
		{"only symbols", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slug(tt.in); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"GraphRAG", "graphrag"},
		{"  Chain of Thought ", "chain of thought"},
		{"already normal", "already normal"},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
