// Package ids mints stable identifiers for documents, chunks, and concepts.
//
// Documents and chunks get opaque UUID-derived ids. Concepts get a
// human-readable slug with a short random suffix; the suffix only prevents
// collisions across independent runs — the graph layer's normalized-name
// merge decides the canonical id once a concept is stored.
package ids

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// NewDocumentID returns a new document identifier ("doc-" + UUIDv4).
func NewDocumentID() string {
	return "doc-" + uuid.NewString()
}

// NewChunkID returns a chunk identifier derived from its document and index.
func NewChunkID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("chunk-%s-%d-%s", documentID, chunkIndex, shortHex())
}

// NewConceptID returns a concept identifier carrying its source tag and slug.
func NewConceptID(sourceTag, name string) string {
	return fmt.Sprintf("concept-%s-%s-%s", sourceTag, Slug(name), shortHex())
}

// Slug lowercases a name and collapses runs of non-alphanumerics to a single dash.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// NormalizeName returns the deduplication key for a concept display name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// shortHex returns the first 8 hex characters of a fresh UUIDv4.
func shortHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
