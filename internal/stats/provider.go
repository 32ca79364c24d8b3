package stats

import "iter"

// Provider is the surface an Aggregator reduces over. Both *Accumulator and
// *Aggregator implement it, so aggregators nest.
type Provider interface {
	Count() int
	Successes() int
	Errors() int
	Min() float64
	Max() float64
	Total() float64
	// Duration is the measured period in seconds used for per-second rates.
	Duration() float64
	// RawApdex is the un-normalised apdex score (satisfied + tolerating/2).
	RawApdex() float64
	PerSecond() map[int64]int
	ErrorDetails() map[ErrorKey]int
	// OrderedValues yields every recorded duration in ascending order.
	OrderedValues() iter.Seq[float64]
}

var (
	_ Provider = (*Accumulator)(nil)
	_ Provider = (*Aggregator)(nil)
)
