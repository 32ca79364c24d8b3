package results

import (
	"sort"

	"github.com/torosent/crankmeter/internal/stats"
)

type cycleStats map[int]*stats.Accumulator

// Tree maps group → value → cycle → accumulator. Accumulators are created on
// first reference; aggregates are derived on every call and reflect the
// accumulators' current contents.
type Tree struct {
	apdexT   float64
	duration float64
	groups   map[string]map[string]cycleStats
}

// NewTree returns an empty tree whose accumulators classify apdex with apdexT.
func NewTree(apdexT float64) *Tree {
	return &Tree{
		apdexT: apdexT,
		groups: make(map[string]map[string]cycleStats),
	}
}

// SetDuration sets the per-second divisor used by accumulators created from now on.
func (t *Tree) SetDuration(seconds float64) {
	t.duration = seconds
}

// Accumulator returns the accumulator of (group, value, cycle), creating it if needed.
func (t *Tree) Accumulator(group, value string, cycle int) *stats.Accumulator {
	values, ok := t.groups[group]
	if !ok {
		values = make(map[string]cycleStats)
		t.groups[group] = values
	}
	cycles, ok := values[value]
	if !ok {
		cycles = make(cycleStats)
		values[value] = cycles
	}
	acc, ok := cycles[cycle]
	if !ok {
		acc = stats.NewAccumulator(t.duration, t.apdexT)
		cycles[cycle] = acc
	}
	return acc
}

// Lookup returns an existing accumulator without creating one.
func (t *Tree) Lookup(group, value string, cycle int) (*stats.Accumulator, bool) {
	acc, ok := t.groups[group][value][cycle]
	return acc, ok
}

// Groups returns every group name, sorted.
func (t *Tree) Groups() []string {
	return sortedKeys(t.groups)
}

// Values returns the values recorded under group, sorted.
func (t *Tree) Values(group string) []string {
	return sortedKeys(t.groups[group])
}

// Cycles returns the cycles recorded for (group, value), ascending.
func (t *Tree) Cycles(group, value string) []int {
	cycles := t.groups[group][value]
	out := make([]int, 0, len(cycles))
	for c := range cycles {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// GroupCycles returns every cycle recorded under group, ascending.
func (t *Tree) GroupCycles(group string) []int {
	seen := make(map[int]struct{})
	for _, cycles := range t.groups[group] {
		for c := range cycles {
			seen[c] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// ValueAggregate merges one value's accumulators across cycles.
func (t *Tree) ValueAggregate(group, value string) *stats.Aggregator {
	cycles := t.groups[group][value]
	children := make([]stats.Provider, 0, len(cycles))
	for _, c := range t.Cycles(group, value) {
		children = append(children, cycles[c])
	}
	return stats.NewAggregator(children...)
}

// GroupAggregate merges every value of a group across every cycle.
func (t *Tree) GroupAggregate(group string) *stats.Aggregator {
	values := t.Values(group)
	children := make([]stats.Provider, 0, len(values))
	for _, v := range values {
		children = append(children, t.ValueAggregate(group, v))
	}
	return stats.NewAggregator(children...)
}

// CycleAggregate merges every value of a group within one cycle.
func (t *Tree) CycleAggregate(group string, cycle int) *stats.Aggregator {
	var children []stats.Provider
	for _, v := range t.Values(group) {
		if acc, ok := t.groups[group][v][cycle]; ok {
			children = append(children, acc)
		}
	}
	return stats.NewAggregator(children...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
