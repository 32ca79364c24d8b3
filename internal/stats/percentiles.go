package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidStep is returned when a percentile step is not a whole number
// dividing 100.
var ErrInvalidStep = errors.New("percentile step must be an integer dividing 100")

// percentilePoints validates step and returns 0, step, 2*step, ... below 100.
func percentilePoints(step float64) ([]int, error) {
	if math.IsNaN(step) || step != math.Trunc(step) || step < 1 || step > 100 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidStep, step)
	}
	s := int(step)
	if 100%s != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidStep, s)
	}
	points := make([]int, 0, 100/s)
	for p := 0; p < 100; p += s {
		points = append(points, p)
	}
	return points, nil
}

// percentileIndex maps a percentile point onto an index into n ascending values.
func percentileIndex(p, n int) int {
	idx := int(float64(p) / 100.0 * float64(n))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// percentileSet holds the points computed so far. Later computations with a
// different step add to it, overwriting only the points they share.
type percentileSet map[int]float64

func (s percentileSet) get(p int) (float64, bool) {
	v, ok := s[p]
	return v, ok
}

func (s percentileSet) snapshot() map[int]float64 {
	out := make(map[int]float64, len(s))
	for p, v := range s {
		out[p] = v
	}
	return out
}

// PercentileName returns the display name of a percentile point, e.g. "p95".
func PercentileName(p int) string {
	return fmt.Sprintf("p%d", p)
}

// SortedPoints returns the keys of a percentile map in ascending order.
func SortedPoints(points map[int]float64) []int {
	keys := make([]int, 0, len(points))
	for p := range points {
		keys = append(keys, p)
	}
	sort.Ints(keys)
	return keys
}
