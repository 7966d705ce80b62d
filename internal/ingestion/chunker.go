// Package ingestion handles document processing: chunking, duplicate
// detection, folder scanning, and the ingest pipeline that writes into
// the graph and vector stores.
package ingestion

import (
	"fmt"
	"strings"
)

// Chunk is one piece of chunked content.
type Chunk struct {
	Text  string
	Index int
}

// Chunker splits text into sentence-aware chunks with overlap. Sizes are
// in characters over whitespace-normalized text.
type Chunker struct {
	chunkSize int
	overlap   int
}

// NewChunker creates a chunker. chunkSize must be positive and overlap
// must satisfy 0 <= overlap < chunkSize.
func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("overlap must be in [0, chunk size), got %d", overlap)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Split chunks text. Whitespace runs are collapsed, sentences accumulate
// into a buffer until the next sentence would exceed the chunk size, and
// each emitted chunk seeds the next with its trailing overlap. Sentences
// longer than the chunk size fall back to word-level splitting. The result
// is stable for the same input.
func (c *Chunker) Split(text string) []Chunk {
	text = NormalizeWhitespace(text)
	if text == "" {
		return nil
	}

	var chunks []Chunk
	var buffer string
	for _, sentence := range c.pieces(text) {
		if buffer == "" {
			buffer = sentence
			continue
		}
		if len(buffer)+1+len(sentence) > c.chunkSize {
			chunks = append(chunks, Chunk{Text: buffer, Index: len(chunks)})
			if seed := c.overlapSeed(buffer); seed != "" {
				buffer = seed + " " + sentence
			} else {
				buffer = sentence
			}
			continue
		}
		buffer += " " + sentence
	}
	if buffer != "" {
		chunks = append(chunks, Chunk{Text: buffer, Index: len(chunks)})
	}
	return chunks
}

// pieces returns the sentences of text, breaking any sentence longer
// than the chunk size into word runs that fit. A single word longer than
// the chunk size stays whole; splitting inside a word corrupts tokens.
func (c *Chunker) pieces(text string) []string {
	var out []string
	for _, sentence := range splitSentences(text) {
		if len(sentence) <= c.chunkSize {
			out = append(out, sentence)
			continue
		}
		var run string
		for _, word := range strings.Fields(sentence) {
			if run == "" {
				run = word
				continue
			}
			if len(run)+1+len(word) > c.chunkSize {
				out = append(out, run)
				run = word
				continue
			}
			run += " " + word
		}
		if run != "" {
			out = append(out, run)
		}
	}
	return out
}

// overlapSeed returns what the next buffer starts with after a chunk is
// emitted: the last complete sentence inside the trailing overlap
// characters, or that overlap verbatim when it holds no sentence
// boundary.
func (c *Chunker) overlapSeed(buffer string) string {
	if c.overlap <= 0 {
		return ""
	}
	runes := []rune(buffer)
	if len(runes) > c.overlap {
		runes = runes[len(runes)-c.overlap:]
	}
	tail := strings.TrimSpace(string(runes))
	if parts := splitSentences(tail); len(parts) >= 2 {
		return parts[len(parts)-1]
	}
	return tail
}

// splitSentences splits on sentence terminators followed by whitespace or
// end of text. Input is assumed whitespace-normalized.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 < len(text) && text[i+1] != ' ' {
				continue
			}
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// NormalizeWhitespace collapses whitespace runs to single spaces and
// trims the ends.
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
