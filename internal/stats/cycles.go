package stats

import (
	"math"
	"sort"
)

// Window is the observed [Start, End] of one concurrency cycle.
type Window struct {
	Start float64
	End   float64
}

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t float64) bool {
	return w.Start <= t && t <= w.End
}

// CycleBoundaries records when each cycle was active so monitor samples can be
// attributed to the concurrency level(s) running at the time.
type CycleBoundaries struct {
	windows map[int]Window
}

// NewCycleBoundaries returns an empty tracker.
func NewCycleBoundaries() *CycleBoundaries {
	return &CycleBoundaries{windows: make(map[int]Window)}
}

// Add widens cycle's window to include [time, time+duration].
func (b *CycleBoundaries) Add(cycle int, time, duration float64) {
	w, ok := b.windows[cycle]
	if !ok {
		w = Window{Start: math.Inf(1), End: math.Inf(-1)}
	}
	w.Start = math.Min(w.Start, time)
	w.End = math.Max(w.End, time+duration)
	b.windows[cycle] = w
}

// Window returns the recorded window of a cycle.
func (b *CycleBoundaries) Window(cycle int) (Window, bool) {
	w, ok := b.windows[cycle]
	return w, ok
}

// Cycles returns every recorded cycle index in ascending order.
func (b *CycleBoundaries) Cycles() []int {
	out := make([]int, 0, len(b.windows))
	for c := range b.windows {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// ContainingCycles returns every cycle whose window contains t, ascending.
// Windows overlap during ramp-up, so more than one cycle may match.
func (b *CycleBoundaries) ContainingCycles(t float64) []int {
	var out []int
	for c, w := range b.windows {
		if w.Contains(t) {
			out = append(out, c)
		}
	}
	sort.Ints(out)
	return out
}
