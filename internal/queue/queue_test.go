package queue

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/sigplay/sigplay/internal/library"
)

func tracks(n int) []library.Track {
	out := make([]library.Track, n)
	for i := range out {
		out[i] = library.Track{Title: string(rune('a' + i))}
	}
	return out
}

func TestAdvanceAndPrevious(t *testing.T) {
	q := New(tracks(3), 1)
	if cur, _ := q.Current(); cur.Title != "b" {
		t.Fatalf("expected start on b, got %q", cur.Title)
	}
	if !q.Advance() || q.CurrentIndex() != 2 {
		t.Fatalf("expected advance to index 2, got %d", q.CurrentIndex())
	}
	if q.Advance() {
		t.Fatal("expected advance at end to fail")
	}
	if !q.Previous() || !q.Previous() || q.Previous() {
		t.Fatal("expected two steps back then failure at start")
	}
}

func TestRepeatAllWraps(t *testing.T) {
	q := New(tracks(2), 1)
	if q.CycleRepeat() != RepeatOne || q.CycleRepeat() != RepeatAll {
		t.Fatal("expected repeat to cycle off → one → all")
	}
	if !q.Advance() || q.CurrentIndex() != 0 {
		t.Fatalf("expected wrap to start, got %d", q.CurrentIndex())
	}
	if !q.Previous() || q.CurrentIndex() != 1 {
		t.Fatalf("expected wrap to end, got %d", q.CurrentIndex())
	}
	if q.CycleRepeat() != RepeatOff {
		t.Fatal("expected repeat to cycle back to off")
	}
}

func TestShuffleKeepsCurrentFirst(t *testing.T) {
	q := New(tracks(10), 4)
	q.rng = rand.New(rand.NewPCG(1, 2))
	q.EnableShuffle()
	if q.CurrentIndex() != 4 {
		t.Fatalf("expected current track to stay 4, got %d", q.CurrentIndex())
	}
	seen := slices.Clone(q.order)
	slices.Sort(seen)
	for i, v := range seen {
		if v != i {
			t.Fatalf("expected shuffle order to be a permutation, got %v", q.order)
		}
	}
	if len(q.Peek(20)) != 9 {
		t.Fatalf("expected 9 upcoming tracks, got %d", len(q.Peek(20)))
	}

	q.Advance()
	cur := q.CurrentIndex()
	q.DisableShuffle()
	if q.CurrentIndex() != cur || q.IsShuffled() {
		t.Fatalf("expected disable to keep track %d, got %d", cur, q.CurrentIndex())
	}
}

func TestJumpAndEmpty(t *testing.T) {
	q := New(tracks(3), 0)
	if !q.Jump(2) || q.CurrentIndex() != 2 {
		t.Fatal("expected jump to index 2")
	}
	if q.Jump(7) {
		t.Fatal("expected jump out of range to fail")
	}

	empty := New(nil, 0)
	if _, ok := empty.Current(); ok || empty.Advance() || empty.Previous() {
		t.Fatal("expected empty queue to have nothing to play")
	}
	empty.EnableShuffle()
	if empty.IsShuffled() {
		t.Fatal("expected shuffle to be a no-op on an empty queue")
	}
}
