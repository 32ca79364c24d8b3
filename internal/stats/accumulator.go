package stats

import (
	"iter"
	"math"
	"sort"
)

// Accumulator collects the samples of one (group, value, cycle) bucket in the
// smallest form that still allows exact summary statistics.
type Accumulator struct {
	values     []float64
	sorted     bool
	min        float64
	max        float64
	total      float64
	successes  int
	errors     int
	duration   float64
	apdex      *Apdex
	perSecond  map[int64]int
	errorTally map[ErrorKey]int
	points     percentileSet
}

// NewAccumulator creates an empty accumulator. duration is the measured period in
// seconds used as the divisor for per-second rates; apdexT is the apdex threshold.
func NewAccumulator(duration, apdexT float64) *Accumulator {
	return &Accumulator{
		sorted:     true,
		min:        math.Inf(1),
		max:        math.Inf(-1),
		duration:   duration,
		apdex:      NewApdex(apdexT),
		perSecond:  make(map[int64]int),
		errorTally: make(map[ErrorKey]int),
	}
}

// AddRecord records one sample taken at time (unix seconds, fractional) that
// lasted duration seconds. A nil errKey marks a success.
func (a *Accumulator) AddRecord(time, duration float64, errKey *ErrorKey) {
	a.values = append(a.values, duration)
	a.sorted = false
	a.points = nil

	a.min = math.Min(a.min, duration)
	a.max = math.Max(a.max, duration)
	a.total += duration
	a.perSecond[int64(math.Floor(time))]++
	a.apdex.Add(duration)

	if errKey == nil {
		a.successes++
		return
	}
	a.errors++
	a.errorTally[*errKey]++
}

func (a *Accumulator) sort() {
	if !a.sorted {
		sort.Float64s(a.values)
		a.sorted = true
	}
}

// Count returns the number of recorded samples.
func (a *Accumulator) Count() int { return len(a.values) }

func (a *Accumulator) Successes() int { return a.successes }
func (a *Accumulator) Errors() int    { return a.errors }
func (a *Accumulator) Total() float64 { return a.total }

// Duration returns the per-second rate divisor.
func (a *Accumulator) Duration() float64 { return a.duration }

// Apdex exposes the apdex counters.
func (a *Accumulator) Apdex() *Apdex { return a.apdex }

// RawApdex returns the apdex raw score.
func (a *Accumulator) RawApdex() float64 { return a.apdex.RawScore() }

// ApdexScore returns the apdex score in [0, 1].
func (a *Accumulator) ApdexScore() float64 { return a.apdex.Score() }

// Min returns the smallest duration, or 0 when empty.
func (a *Accumulator) Min() float64 {
	if len(a.values) == 0 {
		return 0
	}
	return a.min
}

// Max returns the largest duration, or 0 when empty.
func (a *Accumulator) Max() float64 {
	if len(a.values) == 0 {
		return 0
	}
	return a.max
}

// Average returns the mean duration, or 0 when empty.
func (a *Accumulator) Average() float64 {
	if len(a.values) == 0 {
		return 0
	}
	return a.total / float64(len(a.values))
}

// PerSecond returns a copy of the second -> sample count histogram.
func (a *Accumulator) PerSecond() map[int64]int {
	out := make(map[int64]int, len(a.perSecond))
	for sec, n := range a.perSecond {
		out[sec] = n
	}
	return out
}

// ErrorDetails returns a copy of the error tally.
func (a *Accumulator) ErrorDetails() map[ErrorKey]int {
	out := make(map[ErrorKey]int, len(a.errorTally))
	for k, n := range a.errorTally {
		out[k] = n
	}
	return out
}

// AvgPerSecond returns count / duration, or 0 when no duration is known.
func (a *Accumulator) AvgPerSecond() float64 {
	return perSecondRate(len(a.values), a.duration)
}

// MaxPerSecond returns the busiest second's sample count.
func (a *Accumulator) MaxPerSecond() float64 {
	return maxBucket(a.perSecond)
}

// MinPerSecond returns the quietest second's sample count. A series averaging
// under one sample per second reports 0.
func (a *Accumulator) MinPerSecond() float64 {
	if a.AvgPerSecond() < 1 {
		return 0
	}
	return minBucket(a.perSecond)
}

// OrderedValues yields the recorded durations in ascending order, sorting in
// place first if an insert happened since the last sort.
func (a *Accumulator) OrderedValues() iter.Seq[float64] {
	return func(yield func(float64) bool) {
		a.sort()
		for _, v := range a.values {
			if !yield(v) {
				return
			}
		}
	}
}

// ComputePercentiles computes every step-th percentile point below 100. The
// step must be a whole number; anything else is rejected, never rounded.
func (a *Accumulator) ComputePercentiles(step float64) error {
	points, err := percentilePoints(step)
	if err != nil {
		return err
	}
	a.sort()
	if a.points == nil {
		a.points = make(percentileSet, len(points))
	}
	n := len(a.values)
	for _, p := range points {
		if n == 0 {
			a.points[p] = 0
			continue
		}
		a.points[p] = a.values[percentileIndex(p, n)]
	}
	return nil
}

// Percentile returns a computed percentile point. ok is false when the point has
// not been computed since the last insert.
func (a *Accumulator) Percentile(p int) (value float64, ok bool) {
	return a.points.get(p)
}

// Percentiles returns every computed point.
func (a *Accumulator) Percentiles() map[int]float64 {
	return a.points.snapshot()
}

// Summary computes step-5 percentiles and returns the canonical summary row.
func (a *Accumulator) Summary() SummaryRow {
	return summarize(a)
}

func perSecondRate(count int, duration float64) float64 {
	if duration <= 0 {
		return 0
	}
	return float64(count) / duration
}

func maxBucket(buckets map[int64]int) float64 {
	best := 0
	for _, n := range buckets {
		if n > best {
			best = n
		}
	}
	return float64(best)
}

func minBucket(buckets map[int64]int) float64 {
	if len(buckets) == 0 {
		return 0
	}
	best := math.MaxInt
	for _, n := range buckets {
		if n < best {
			best = n
		}
	}
	return float64(best)
}
