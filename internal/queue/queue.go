// Package queue holds the play order built from a library selection.
package queue

import (
	"math/rand/v2"

	"github.com/sigplay/sigplay/internal/library"
)

// RepeatMode controls what happens when a track ends.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatOne
	RepeatAll
)

// Next cycles off → one → all → off.
func (r RepeatMode) Next() RepeatMode {
	return (r + 1) % 3
}

func (r RepeatMode) String() string {
	switch r {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "off"
	}
}

// Icon is the status-line marker for the mode.
func (r RepeatMode) Icon() string {
	switch r {
	case RepeatOne:
		return "[repeat one]"
	case RepeatAll:
		return "[repeat]"
	default:
		return ""
	}
}

// Queue is an ordered list of tracks with an optional shuffled play order.
// It is only mutated from Bubbletea's single-threaded Update loop.
type Queue struct {
	tracks   []library.Track
	order    []int // play position → track index
	pos      int
	shuffled bool
	repeat   RepeatMode
	rng      *rand.Rand
}

// New creates a queue positioned on tracks[start].
func New(tracks []library.Track, start int) *Queue {
	q := &Queue{tracks: tracks}
	q.resetOrder()
	if start >= 0 && start < len(tracks) {
		q.pos = start
	}
	return q
}

func (q *Queue) resetOrder() {
	q.order = make([]int, len(q.tracks))
	for i := range q.order {
		q.order[i] = i
	}
}

// Len returns the number of tracks.
func (q *Queue) Len() int { return len(q.tracks) }

// Current returns the track at the play position.
func (q *Queue) Current() (library.Track, bool) {
	if q.pos < 0 || q.pos >= len(q.order) {
		return library.Track{}, false
	}
	return q.tracks[q.order[q.pos]], true
}

// CurrentIndex returns the index into the original track list.
func (q *Queue) CurrentIndex() int {
	if q.pos < 0 || q.pos >= len(q.order) {
		return -1
	}
	return q.order[q.pos]
}

// Jump makes tracks[i] current. In shuffle mode the order is unchanged.
func (q *Queue) Jump(i int) bool {
	for p, idx := range q.order {
		if idx == i {
			q.pos = p
			return true
		}
	}
	return false
}

// Advance moves to the next track after one finished or was skipped.
// RepeatAll wraps to the start. RepeatOne is handled by the caller
// restarting playback. Returns false at the end of the queue.
func (q *Queue) Advance() bool {
	if len(q.order) == 0 {
		return false
	}
	if q.pos+1 < len(q.order) {
		q.pos++
		return true
	}
	if q.repeat == RepeatAll {
		q.pos = 0
		return true
	}
	return false
}

// Previous moves back one track. Returns false at the start.
func (q *Queue) Previous() bool {
	if q.pos <= 0 {
		if q.repeat == RepeatAll && len(q.order) > 0 {
			q.pos = len(q.order) - 1
			return true
		}
		return false
	}
	q.pos--
	return true
}

// Peek returns up to n tracks that play after the current one.
func (q *Queue) Peek(n int) []library.Track {
	var out []library.Track
	for p := q.pos + 1; p < len(q.order) && len(out) < n; p++ {
		out = append(out, q.tracks[q.order[p]])
	}
	return out
}

// Repeat returns the repeat mode.
func (q *Queue) Repeat() RepeatMode { return q.repeat }

// CycleRepeat advances the repeat mode and returns it.
func (q *Queue) CycleRepeat() RepeatMode {
	q.repeat = q.repeat.Next()
	return q.repeat
}

// IsShuffled returns whether shuffle mode is active.
func (q *Queue) IsShuffled() bool { return q.shuffled }

// ToggleShuffle switches shuffle mode and reports the new state.
func (q *Queue) ToggleShuffle() bool {
	if q.shuffled {
		q.DisableShuffle()
	} else {
		q.EnableShuffle()
	}
	return q.shuffled
}

// EnableShuffle keeps the current track first and randomizes the rest with
// Fisher-Yates.
func (q *Queue) EnableShuffle() {
	if len(q.tracks) <= 1 {
		return
	}
	cur := q.CurrentIndex()
	rest := make([]int, 0, len(q.tracks)-1)
	for i := range q.tracks {
		if i != cur {
			rest = append(rest, i)
		}
	}
	for i := len(rest) - 1; i > 0; i-- {
		j := q.intn(i + 1)
		rest[i], rest[j] = rest[j], rest[i]
	}
	q.order = append([]int{cur}, rest...)
	q.pos = 0
	q.shuffled = true
}

// DisableShuffle restores list order, keeping the current track.
func (q *Queue) DisableShuffle() {
	cur := q.CurrentIndex()
	q.resetOrder()
	q.pos = max(cur, 0)
	q.shuffled = false
}

func (q *Queue) intn(n int) int {
	if q.rng != nil {
		return q.rng.IntN(n)
	}
	return rand.IntN(n)
}
