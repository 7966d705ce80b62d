package ingestion

import (
	"reflect"
	"strings"
	"testing"
)

func TestNewChunker_Validation(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
		wantErr   bool
	}{
		{"valid", 2000, 200, false},
		{"zero overlap", 100, 0, false},
		{"zero size", 0, 0, true},
		{"negative size", -1, 0, true},
		{"negative overlap", 100, -1, true},
		{"overlap equals size", 100, 100, true},
		{"overlap exceeds size", 100, 150, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.chunkSize, tt.overlap)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewChunker(%d, %d) error = %v, wantErr %v", tt.chunkSize, tt.overlap, err, tt.wantErr)
			}
		})
	}
}

func TestChunker_EmptyAndWhitespace(t *testing.T) {
	c, err := NewChunker(100, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Split(""); got != nil {
		t.Errorf("Split(\"\") = %v, want nil", got)
	}
	if got := c.Split("   \n\t  "); got != nil {
		t.Errorf("Split(whitespace) = %v, want nil", got)
	}
}

func TestChunker_SingleChunk(t *testing.T) {
	c, err := NewChunker(1000, 100)
	if err != nil {
		t.Fatal(err)
	}
	chunks := c.Split("One sentence. Another sentence.")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != "One sentence. Another sentence." {
		t.Errorf("text = %q", chunks[0].Text)
	}
	if chunks[0].Index != 0 {
		t.Errorf("index = %d, want 0", chunks[0].Index)
	}
}

func TestChunker_CollapsesWhitespace(t *testing.T) {
	c, err := NewChunker(1000, 0)
	if err != nil {
		t.Fatal(err)
	}
	chunks := c.Split("One   sentence.\n\nAnother\tsentence.")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != "One sentence. Another sentence." {
		t.Errorf("text = %q", chunks[0].Text)
	}
}

func TestChunker_SplitsOnSize(t *testing.T) {
	c, err := NewChunker(40, 0)
	if err != nil {
		t.Fatal(err)
	}
	chunks := c.Split("First sentence here. Second sentence here. Third sentence here.")
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several: %+v", len(chunks), chunks)
	}
	for i, chunk := range chunks {
		if chunk.Index != i {
			t.Errorf("chunk %d has index %d", i, chunk.Index)
		}
		if !strings.HasSuffix(chunk.Text, ".") {
			t.Errorf("chunk %d does not end on a sentence boundary: %q", i, chunk.Text)
		}
	}
}

func TestChunker_OverlapSeedsNextChunk(t *testing.T) {
	c, err := NewChunker(50, 25)
	if err != nil {
		t.Fatal(err)
	}
	chunks := c.Split("Alpha sentence one. Beta sentence two. Gamma sentence three. Delta sentence four.")
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	// Each chunk after the first starts with the trailing sentence of its
	// predecessor.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Text
		lastSentence := prev[strings.LastIndex(prev[:len(prev)-1], ". ")+2:]
		if len(lastSentence) <= 25 && !strings.HasPrefix(chunks[i].Text, lastSentence) {
			t.Errorf("chunk %d = %q does not start with overlap %q", i, chunks[i].Text, lastSentence)
		}
	}
}

func TestChunker_Deterministic(t *testing.T) {
	c, err := NewChunker(60, 20)
	if err != nil {
		t.Fatal(err)
	}
	text := "One two three. Four five six! Seven eight nine? Ten eleven twelve. Thirteen fourteen."
	first := c.Split(text)
	second := c.Split(text)
	if !reflect.DeepEqual(first, second) {
		t.Error("chunking is not reproducible for the same input")
	}
}

func TestChunker_NoTerminator(t *testing.T) {
	c, err := NewChunker(100, 10)
	if err != nil {
		t.Fatal(err)
	}
	chunks := c.Split("no terminator at all just words")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != "no terminator at all just words" {
		t.Errorf("text = %q", chunks[0].Text)
	}
}

func TestChunker_ChunkSizeOne_OneChunkPerToken(t *testing.T) {
	c, err := NewChunker(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	chunks := c.Split("Hello world. Bye now.")
	want := []string{"Hello", "world.", "Bye", "now."}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks %+v, want %d", len(chunks), chunks, len(want))
	}
	for i, chunk := range chunks {
		if chunk.Text != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunk.Text, want[i])
		}
	}
}

func TestChunker_LongSentenceFallsBackToWords(t *testing.T) {
	c, err := NewChunker(12, 0)
	if err != nil {
		t.Fatal(err)
	}
	chunks := c.Split("alpha beta gamma delta epsilon zeta")
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several: %+v", len(chunks), chunks)
	}
	var words []string
	for i, chunk := range chunks {
		if len(chunk.Text) > 12 {
			t.Errorf("chunk %d = %q exceeds the chunk size", i, chunk.Text)
		}
		words = append(words, strings.Fields(chunk.Text)...)
	}
	if got := strings.Join(words, " "); got != "alpha beta gamma delta epsilon zeta" {
		t.Errorf("words after splitting = %q", got)
	}
}

func TestChunker_OversizedWordStaysWhole(t *testing.T) {
	c, err := NewChunker(5, 0)
	if err != nil {
		t.Fatal(err)
	}
	chunks := c.Split("tiny incomprehensibilities end")
	found := false
	for _, chunk := range chunks {
		if chunk.Text == "incomprehensibilities" {
			found = true
		}
		if len(chunk.Text) > 5 && strings.Contains(chunk.Text, " ") {
			t.Errorf("multi-word chunk %q exceeds the chunk size", chunk.Text)
		}
	}
	if !found {
		t.Errorf("oversized word was split: %+v", chunks)
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"periods", "One. Two. Three.", []string{"One.", "Two.", "Three."}},
		{"mixed terminators", "Really! Is it? Yes.", []string{"Really!", "Is it?", "Yes."}},
		{"decimal not split", "Pi is 3.14 roughly. Next.", []string{"Pi is 3.14 roughly.", "Next."}},
		{"trailing fragment", "Done. and then", []string{"Done.", "and then"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitSentences(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	if got := NormalizeWhitespace("  a \n b\t\tc  "); got != "a b c" {
		t.Errorf("got %q", got)
	}
}
