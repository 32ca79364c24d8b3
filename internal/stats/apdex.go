package stats

// DefaultApdexT is the satisfied threshold, in seconds, used when none is configured.
const DefaultApdexT = 1.5

// Apdex counts samples against the satisfied (T) and tolerating (4T) thresholds.
type Apdex struct {
	t           float64
	satisfied   int
	tolerating  int
	frustrating int
}

// NewApdex returns an empty Apdex with satisfied threshold t.
func NewApdex(t float64) *Apdex {
	return &Apdex{t: t}
}

// Add classifies one duration.
func (a *Apdex) Add(duration float64) {
	switch {
	case duration < a.t:
		a.satisfied++
	case duration < 4*a.t:
		a.tolerating++
	default:
		a.frustrating++
	}
}

// T returns the satisfied threshold.
func (a *Apdex) T() float64 { return a.t }

func (a *Apdex) Satisfied() int   { return a.satisfied }
func (a *Apdex) Tolerating() int  { return a.tolerating }
func (a *Apdex) Frustrating() int { return a.frustrating }

// Count returns the number of classified samples.
func (a *Apdex) Count() int {
	return a.satisfied + a.tolerating + a.frustrating
}

// RawScore is satisfied + tolerating/2. Aggregators sum raw scores of their
// children rather than reclassifying merged durations.
func (a *Apdex) RawScore() float64 {
	return float64(a.satisfied) + float64(a.tolerating)/2
}

// Score returns RawScore normalised by the sample count, or 0 with no samples.
func (a *Apdex) Score() float64 {
	n := a.Count()
	if n == 0 {
		return 0
	}
	return a.RawScore() / float64(n)
}

// ApdexLabel returns the rating shown next to an apdex score.
func ApdexLabel(score float64) string {
	switch {
	case score < 0.5:
		return "UNACCEPTABLE"
	case score < 0.7:
		return "POOR"
	case score < 0.85:
		return "FAIR"
	case score < 0.94:
		return "Good"
	default:
		return "Excellent"
	}
}
