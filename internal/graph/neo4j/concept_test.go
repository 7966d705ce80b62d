package neo4j

import "testing"

func TestTypeFromLabels(t *testing.T) {
	tests := []struct {
		name   string
		labels any
		want   string
	}{
		{"extra label carries the type", []any{"Concept", "Technology"}, "Technology"},
		{"label order does not matter", []any{"Algorithm", "Concept"}, "Algorithm"},
		{"only base label", []any{"Concept"}, "Concept"},
		{"no labels", []any{}, "Concept"},
		{"nil", nil, "Concept"},
		{"non-string entries skipped", []any{42, "Concept", "Person"}, "Person"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := typeFromLabels(tt.labels); got != tt.want {
				t.Errorf("typeFromLabels(%v) = %q, want %q", tt.labels, got, tt.want)
			}
		})
	}
}
