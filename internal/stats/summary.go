package stats

// CycleColumn heads the concurrency column renderers prepend to Columns.
const CycleColumn = "CUs"

// Columns is the header of a SummaryRow, in Values order.
var Columns = []string{
	"Apdex*", "Rating", "PS", "maxPS", "TOTAL", "SUCCESS",
	"ERROR", "MIN", "AVG", "MAX", "P10", "MED", "P90", "P95",
}

// SummaryRow is the fixed-order statistics row every report collaborator consumes.
type SummaryRow struct {
	ApdexScore   float64 `json:"apdex_score"`
	ApdexLabel   string  `json:"apdex_label"`
	AvgPerSecond float64 `json:"avg_per_second"`
	MaxPerSecond float64 `json:"max_per_second"`
	Count        int     `json:"count"`
	Successes    int     `json:"successes"`
	Errors       int     `json:"errors"`
	Min          float64 `json:"min"`
	Average      float64 `json:"average"`
	Max          float64 `json:"max"`
	P10          float64 `json:"p10"`
	P50          float64 `json:"p50"`
	P90          float64 `json:"p90"`
	P95          float64 `json:"p95"`
}

// Values returns the row in Columns order.
func (r SummaryRow) Values() []any {
	return []any{
		r.ApdexScore, r.ApdexLabel, r.AvgPerSecond, r.MaxPerSecond,
		r.Count, r.Successes, r.Errors, r.Min, r.Average, r.Max,
		r.P10, r.P50, r.P90, r.P95,
	}
}

// summaryStep is the percentile granularity used for summary rows.
const summaryStep = 5

type summarizable interface {
	Provider
	Average() float64
	AvgPerSecond() float64
	MaxPerSecond() float64
	ApdexScore() float64
	ComputePercentiles(step float64) error
	Percentile(p int) (float64, bool)
}

func summarize(s summarizable) SummaryRow {
	// summaryStep is a valid integer step, so this cannot fail.
	_ = s.ComputePercentiles(summaryStep)
	pct := func(p int) float64 {
		v, _ := s.Percentile(p)
		return v
	}
	score := s.ApdexScore()
	return SummaryRow{
		ApdexScore:   score,
		ApdexLabel:   ApdexLabel(score),
		AvgPerSecond: s.AvgPerSecond(),
		MaxPerSecond: s.MaxPerSecond(),
		Count:        s.Count(),
		Successes:    s.Successes(),
		Errors:       s.Errors(),
		Min:          s.Min(),
		Average:      s.Average(),
		Max:          s.Max(),
		P10:          pct(10),
		P50:          pct(50),
		P90:          pct(90),
		P95:          pct(95),
	}
}
