package neo4j

import (
	"testing"
)

func TestWalk_FirstReachedOrder(t *testing.T) {
	w := newWalk("seed")
	w.observe("seed", "b", "Beta", 0.25)
	w.observe("seed", "a", "Alpha", 0.5)
	w.observe("a", "c", "Gamma", 0.25)

	got := w.neighbors()
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("neighbors = %+v, want %d entries", got, len(want))
	}
	for i, n := range got {
		if n.ID != want[i] {
			t.Errorf("neighbor %d = %q, want %q", i, n.ID, want[i])
		}
	}
}

func TestWalk_BetterPathUpdatesScoreNotOrder(t *testing.T) {
	w := newWalk("seed")
	if !w.observe("seed", "a", "Alpha", 0.25) {
		t.Fatal("first sighting must enter the frontier")
	}
	w.observe("seed", "b", "Beta", 0.5)
	// seed -> b -> a scores 1.0, better than the direct 0.25.
	if !w.observe("b", "a", "Alpha", 0.5) {
		t.Error("improved path must re-enter the frontier")
	}

	got := w.neighbors()
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("neighbors = %+v, want a then b", got)
	}
	if got[0].Score != 1.0 {
		t.Errorf("score for a = %v, want 1.0", got[0].Score)
	}
}

func TestWalk_WeakerPathIgnored(t *testing.T) {
	w := newWalk("seed")
	w.observe("seed", "a", "Alpha", 0.5)
	if w.observe("seed", "a", "Alpha", 0.25) {
		t.Error("weaker path must not re-enter the frontier")
	}
	if got := w.neighbors(); len(got) != 1 || got[0].Score != 0.5 {
		t.Errorf("neighbors = %+v, want a with score 0.5", got)
	}
}

func TestWalk_SeedNeverReturned(t *testing.T) {
	w := newWalk("seed")
	w.observe("seed", "a", "Alpha", 0.5)
	w.observe("a", "seed", "Seed", 0.5)

	got := w.neighbors()
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("neighbors = %+v, want only a", got)
	}
}
