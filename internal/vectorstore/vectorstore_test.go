package vectorstore

import (
	"reflect"
	"testing"
)

func TestJoinList(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want string
	}{
		{"empty", nil, ""},
		{"single", []string{"concept-a"}, "concept-a"},
		{"multiple", []string{"concept-a", "concept-b"}, "concept-a,concept-b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JoinList(tt.in); got != tt.want {
				t.Errorf("JoinList(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"single", "concept-a", []string{"concept-a"}},
		{"multiple", "concept-a,concept-b", []string{"concept-a", "concept-b"}},
		{"spaces", "concept-a, concept-b", []string{"concept-a", "concept-b"}},
		{"trailing comma", "concept-a,", []string{"concept-a"}},
		{"only commas", ",,", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitList(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitList(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestJoinSplitRoundTrip(t *testing.T) {
	ids := []string{"concept-llm-a-12345678", "concept-llm-b-87654321"}
	if got := SplitList(JoinList(ids)); !reflect.DeepEqual(got, ids) {
		t.Errorf("round trip = %v, want %v", got, ids)
	}
}
