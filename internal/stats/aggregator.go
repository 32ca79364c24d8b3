package stats

import (
	"container/heap"
	"iter"
	"math"
)

// Aggregator is a read-only composite over accumulators and other aggregators.
// It never mutates its children and caches nothing but computed percentiles,
// which are dropped as soon as the children's sample count moves.
type Aggregator struct {
	children []Provider
	points   percentileSet
	// pointsCount is Count() when points were last computed.
	pointsCount int
}

// NewAggregator returns an aggregator over children, in order.
func NewAggregator(children ...Provider) *Aggregator {
	return &Aggregator{children: children}
}

// Children returns the aggregated providers.
func (g *Aggregator) Children() []Provider {
	return append([]Provider(nil), g.children...)
}

// Count returns the number of samples across all children.
func (g *Aggregator) Count() int {
	n := 0
	for _, c := range g.children {
		n += c.Count()
	}
	return n
}

func (g *Aggregator) Successes() int {
	n := 0
	for _, c := range g.children {
		n += c.Successes()
	}
	return n
}

func (g *Aggregator) Errors() int {
	n := 0
	for _, c := range g.children {
		n += c.Errors()
	}
	return n
}

func (g *Aggregator) Total() float64 {
	total := 0.0
	for _, c := range g.children {
		total += c.Total()
	}
	return total
}

// Min returns the smallest duration of any non-empty child, or 0.
func (g *Aggregator) Min() float64 {
	best, seen := math.Inf(1), false
	for _, c := range g.children {
		if c.Count() == 0 {
			continue
		}
		best, seen = math.Min(best, c.Min()), true
	}
	if !seen {
		return 0
	}
	return best
}

// Max returns the largest duration of any non-empty child, or 0.
func (g *Aggregator) Max() float64 {
	best, seen := math.Inf(-1), false
	for _, c := range g.children {
		if c.Count() == 0 {
			continue
		}
		best, seen = math.Max(best, c.Max()), true
	}
	if !seen {
		return 0
	}
	return best
}

// Average returns Total / Count, or 0 with no samples.
func (g *Aggregator) Average() float64 {
	n := g.Count()
	if n == 0 {
		return 0
	}
	return g.Total() / float64(n)
}

// Duration is the first child's duration; children of one aggregate share the
// same measured period.
func (g *Aggregator) Duration() float64 {
	if len(g.children) == 0 {
		return 0
	}
	return g.children[0].Duration()
}

// RawApdex sums the children's raw apdex scores.
func (g *Aggregator) RawApdex() float64 {
	raw := 0.0
	for _, c := range g.children {
		raw += c.RawApdex()
	}
	return raw
}

// ApdexScore is the sum of the children's raw scores over the total count. This
// is a weighted composition of already-classified samples, not a
// reclassification of the merged durations.
func (g *Aggregator) ApdexScore() float64 {
	n := g.Count()
	if n == 0 {
		return 0
	}
	return g.RawApdex() / float64(n)
}

// PerSecond merges the children's per-second histograms.
func (g *Aggregator) PerSecond() map[int64]int {
	out := make(map[int64]int)
	for _, c := range g.children {
		for sec, n := range c.PerSecond() {
			out[sec] += n
		}
	}
	return out
}

// ErrorDetails merges the children's error tallies.
func (g *Aggregator) ErrorDetails() map[ErrorKey]int {
	out := make(map[ErrorKey]int)
	for _, c := range g.children {
		for k, n := range c.ErrorDetails() {
			out[k] += n
		}
	}
	return out
}

func (g *Aggregator) AvgPerSecond() float64 {
	return perSecondRate(g.Count(), g.Duration())
}

func (g *Aggregator) MaxPerSecond() float64 {
	return maxBucket(g.PerSecond())
}

func (g *Aggregator) MinPerSecond() float64 {
	if g.AvgPerSecond() < 1 {
		return 0
	}
	return minBucket(g.PerSecond())
}

// cursor is one child's position in the merge.
type cursor struct {
	value float64
	next  func() (float64, bool)
}

type cursorHeap []*cursor

func (h cursorHeap) Len() int           { return len(h) }
func (h cursorHeap) Less(i, j int) bool { return h[i].value < h[j].value }
func (h cursorHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x any)        { *h = append(*h, x.(*cursor)) }
func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}

// OrderedValues yields every child's durations in ascending order with a k-way
// merge: a min-heap holds each child's next unread value, the smallest is
// yielded and replaced by that child's following value. Children may themselves
// be aggregators.
func (g *Aggregator) OrderedValues() iter.Seq[float64] {
	return func(yield func(float64) bool) {
		h := make(cursorHeap, 0, len(g.children))
		stops := make([]func(), 0, len(g.children))
		defer func() {
			for _, stop := range stops {
				stop()
			}
		}()

		for _, c := range g.children {
			next, stop := iter.Pull(c.OrderedValues())
			stops = append(stops, stop)
			if v, ok := next(); ok {
				h = append(h, &cursor{value: v, next: next})
			}
		}
		heap.Init(&h)

		for h.Len() > 0 {
			top := h[0]
			if !yield(top.value) {
				return
			}
			if v, ok := top.next(); ok {
				top.value = v
				heap.Fix(&h, 0)
			} else {
				heap.Pop(&h)
			}
		}
	}
}

// ComputePercentiles resolves every step-th percentile point in a single pass
// over the merged stream, stopping at the highest index needed. With no samples
// every point is 0.
func (g *Aggregator) ComputePercentiles(step float64) error {
	points, err := percentilePoints(step)
	if err != nil {
		return err
	}
	n := g.Count()
	if g.points == nil || g.pointsCount != n {
		g.points = make(percentileSet, len(points))
		g.pointsCount = n
	}
	if n == 0 {
		for _, p := range points {
			g.points[p] = 0
		}
		return nil
	}

	wanted := make(map[int][]int, len(points))
	last := 0
	for _, p := range points {
		idx := percentileIndex(p, n)
		wanted[idx] = append(wanted[idx], p)
		last = max(last, idx)
	}

	idx := 0
	for v := range g.OrderedValues() {
		for _, p := range wanted[idx] {
			g.points[p] = v
		}
		if idx == last {
			break
		}
		idx++
	}
	return nil
}

// current returns the computed points, or nil once a child has taken new
// samples since they were computed.
func (g *Aggregator) current() percentileSet {
	if g.pointsCount != g.Count() {
		return nil
	}
	return g.points
}

// Percentile returns a computed percentile point. ok is false when the point has
// not been computed since the children last changed.
func (g *Aggregator) Percentile(p int) (value float64, ok bool) {
	return g.current().get(p)
}

// Percentiles returns every computed point.
func (g *Aggregator) Percentiles() map[int]float64 {
	return g.current().snapshot()
}

// Summary computes step-5 percentiles and returns the canonical summary row.
func (g *Aggregator) Summary() SummaryRow {
	return summarize(g)
}
