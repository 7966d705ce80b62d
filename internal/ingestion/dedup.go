package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/knoguchi/graphrag/internal/vectorstore"
)

// Dedup method tags, reported so callers can see why a document was
// classified as a duplicate.
const (
	DedupByFilePath    = "file_path"
	DedupByMetadata    = "metadata"
	DedupByContentHash = "content_hash"
)

// DefaultFuzzyTitleThreshold is the similarity score (0-100) above which
// two titles are considered the same document.
const DefaultFuzzyTitleThreshold = 90

// payloadScanLimit bounds how many stored payloads one classification
// reads.
const payloadScanLimit = 10000

// Detection is the outcome of duplicate classification.
type Detection struct {
	IsDuplicate bool
	ExistingID  string
	Method      string
}

// Detector classifies incoming documents against what the vector store
// already holds. A store outage never fails ingestion; the detector
// reports non-duplicate and logs the error.
type Detector struct {
	store     vectorstore.Store
	threshold int
}

// NewDetector creates a detector. threshold is the fuzzy title score
// (0-100); values outside that range fall back to the default. 0 is a
// valid threshold: any stored title then matches.
func NewDetector(store vectorstore.Store, threshold int) *Detector {
	if threshold < 0 || threshold > 100 {
		threshold = DefaultFuzzyTitleThreshold
	}
	return &Detector{store: store, threshold: threshold}
}

// Classify checks file path, then title metadata, then content hash, and
// returns on the first hit.
func (d *Detector) Classify(ctx context.Context, text string, metadata map[string]any) Detection {
	payloads, err := d.store.ListPayloads(ctx, payloadScanLimit)
	if err != nil {
		slog.Warn("duplicate detection skipped, vector store unreachable", "error", err)
		return Detection{}
	}
	docs := documentPayloads(payloads)

	if det, ok := d.byFilePath(metaString(metadata, "file_path"), docs); ok {
		return det
	}
	if det, ok := d.byTitle(metaString(metadata, "title"), metaString(metadata, "author"), docs); ok {
		return det
	}
	if det, ok := d.byContentHash(text, docs); ok {
		return det
	}
	return Detection{}
}

func (d *Detector) byFilePath(path string, docs []map[string]string) (Detection, bool) {
	if path == "" {
		return Detection{}, false
	}
	path = filepath.Clean(path)

	for _, doc := range docs {
		if stored := doc["file_path"]; stored != "" && filepath.Clean(stored) == path {
			return Detection{IsDuplicate: true, ExistingID: doc["document_id"], Method: DedupByFilePath}, true
		}
	}
	// Case-insensitive filesystems store the same file under differing
	// capitalization.
	for _, doc := range docs {
		if stored := doc["file_path"]; stored != "" && strings.EqualFold(filepath.Clean(stored), path) {
			return Detection{IsDuplicate: true, ExistingID: doc["document_id"], Method: DedupByFilePath}, true
		}
	}
	return Detection{}, false
}

func (d *Detector) byTitle(title, author string, docs []map[string]string) (Detection, bool) {
	if title == "" {
		return Detection{}, false
	}

	if author != "" {
		for _, doc := range docs {
			if doc["title"] == title && doc["author"] == author {
				return Detection{IsDuplicate: true, ExistingID: doc["document_id"], Method: DedupByMetadata}, true
			}
		}
	}
	for _, doc := range docs {
		if doc["title"] == title {
			return Detection{IsDuplicate: true, ExistingID: doc["document_id"], Method: DedupByMetadata}, true
		}
	}

	titleLower := strings.ToLower(title)
	for _, doc := range docs {
		if strings.ToLower(doc["title"]) == titleLower {
			return Detection{IsDuplicate: true, ExistingID: doc["document_id"], Method: DedupByMetadata}, true
		}
	}

	for _, doc := range docs {
		stored := strings.ToLower(doc["title"])
		if stored == "" {
			continue
		}
		if titleSimilarity(titleLower, stored) >= d.threshold {
			return Detection{IsDuplicate: true, ExistingID: doc["document_id"], Method: DedupByMetadata}, true
		}
	}
	return Detection{}, false
}

func (d *Detector) byContentHash(text string, docs []map[string]string) (Detection, bool) {
	hash := ContentHash(text)
	for _, doc := range docs {
		if doc["hash"] == hash {
			return Detection{IsDuplicate: true, ExistingID: doc["document_id"], Method: DedupByContentHash}, true
		}
	}
	return Detection{}, false
}

// titleSimilarity scores two titles 0-100 by Levenshtein ratio.
func titleSimilarity(a, b string) int {
	return int(levenshtein.Similarity(a, b, levenshtein.NewParams()) * 100)
}

// ContentHash is the SHA-256 hex digest over whitespace-collapsed,
// lower-cased text. It identifies document content independently of
// formatting.
func ContentHash(text string) string {
	normalized := NormalizeWhitespace(strings.ToLower(text))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// documentPayloads keeps one payload per document id, so chunk payloads
// of the same document are not scanned repeatedly.
func documentPayloads(payloads []map[string]string) []map[string]string {
	seen := make(map[string]bool, len(payloads))
	docs := make([]map[string]string, 0, len(payloads))
	for _, p := range payloads {
		id := p["document_id"]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		docs = append(docs, p)
	}
	return docs
}

// metaString reads a string attribute from loosely typed metadata.
func metaString(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	if s, ok := metadata[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
