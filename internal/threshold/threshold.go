// Package threshold checks report summary rows against pass/fail assertions
// such as "Page:p95 < 2" or "Test:apdex >= 0.85".
package threshold

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/torosent/crankmeter/internal/stats"
)

// Threshold is one assertion on a group's whole-run summary.
type Threshold struct {
	Group     string  // statistics group, e.g. "Page", "Test", "Response by step"
	Aggregate string  // summary column, e.g. "p95", "avg", "apdex", "error_rate"
	Operator  string  // one of <, <=, >, >=, ==
	Value     float64
	Raw       string // as written, for display
}

// Result is the outcome of one Threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// epsilon absorbs float noise in the inclusive comparisons.
const epsilon = 1e-9

var operators = map[string]func(actual, want float64) bool{
	"<":  func(a, w float64) bool { return a < w },
	"<=": func(a, w float64) bool { return a <= w || math.Abs(a-w) < epsilon },
	">":  func(a, w float64) bool { return a > w },
	">=": func(a, w float64) bool { return a >= w || math.Abs(a-w) < epsilon },
	"==": func(a, w float64) bool { return math.Abs(a-w) < epsilon },
}

var aggregates = map[string]func(stats.SummaryRow) float64{
	"apdex":   func(r stats.SummaryRow) float64 { return r.ApdexScore },
	"ps":      func(r stats.SummaryRow) float64 { return r.AvgPerSecond },
	"maxps":   func(r stats.SummaryRow) float64 { return r.MaxPerSecond },
	"total":   func(r stats.SummaryRow) float64 { return float64(r.Count) },
	"success": func(r stats.SummaryRow) float64 { return float64(r.Successes) },
	"error":   func(r stats.SummaryRow) float64 { return float64(r.Errors) },
	"error_rate": func(r stats.SummaryRow) float64 {
		if r.Count == 0 {
			return 0
		}
		return float64(r.Errors) / float64(r.Count)
	},
	"min": func(r stats.SummaryRow) float64 { return r.Min },
	"avg": func(r stats.SummaryRow) float64 { return r.Average },
	"max": func(r stats.SummaryRow) float64 { return r.Max },
	"p10": func(r stats.SummaryRow) float64 { return r.P10 },
	"p50": func(r stats.SummaryRow) float64 { return r.P50 },
	"med": func(r stats.SummaryRow) float64 { return r.P50 },
	"p90": func(r stats.SummaryRow) float64 { return r.P90 },
	"p95": func(r stats.SummaryRow) float64 { return r.P95 },
}

var pattern = regexp.MustCompile(`^(.+):\s*([a-z0-9_]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// Parse reads "group:aggregate operator value". Group names may contain
// spaces; the last colon separates the aggregate.
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, errors.New("empty threshold")
	}
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold %q: want group:aggregate operator value, e.g. 'Page:p95 < 2'", s)
	}
	t := Threshold{
		Group:     strings.TrimSpace(m[1]),
		Aggregate: m[2],
		Operator:  m[3],
		Raw:       s,
	}
	if t.Group == "" {
		return Threshold{}, fmt.Errorf("threshold %q names no group", s)
	}
	if _, ok := aggregates[t.Aggregate]; !ok {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q (supported: %s)",
			t.Aggregate, strings.Join(slices.Sorted(maps.Keys(aggregates)), ", "))
	}
	if _, ok := operators[t.Operator]; !ok {
		return Threshold{}, fmt.Errorf("unsupported operator %q (supported: <, <=, >, >=, ==)", t.Operator)
	}
	v, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %w", m[4], err)
	}
	t.Value = v
	return t, nil
}

// ParseMultiple parses every entry and reports all bad ones at once.
func ParseMultiple(raw []string) ([]Threshold, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]Threshold, 0, len(raw))
	var errs []error
	for i, s := range raw {
		t, err := Parse(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("threshold[%d]: %w", i, err))
			continue
		}
		out = append(out, t)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Evaluator checks thresholds against per-group summary rows.
type Evaluator struct {
	thresholds []Threshold
}

func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Evaluate checks every threshold against rows, keyed by group name. A
// threshold naming a group absent from rows fails.
func (e *Evaluator) Evaluate(rows map[string]stats.SummaryRow) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}
	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, evaluate(t, rows))
	}
	return results
}

func evaluate(t Threshold, rows map[string]stats.SummaryRow) Result {
	row, ok := rows[t.Group]
	if !ok {
		return Result{Threshold: t, Message: fmt.Sprintf("✗ %s: no statistics for group %q", t.Raw, t.Group)}
	}
	actual, err := extractValue(t.Aggregate, row)
	if err != nil {
		return Result{Threshold: t, Message: "✗ " + err.Error()}
	}
	pass := compareValues(actual, t.Operator, t.Value)
	mark := "✓"
	if !pass {
		mark = "✗"
	}
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: %.3f %s %.3f", mark, t.Raw, actual, t.Operator, t.Value),
	}
}

// AllPass reports whether every result passed.
func AllPass(results []Result) bool {
	return !slices.ContainsFunc(results, func(r Result) bool { return !r.Pass })
}

func extractValue(aggregate string, row stats.SummaryRow) (float64, error) {
	get, ok := aggregates[aggregate]
	if !ok {
		return 0, fmt.Errorf("unsupported aggregate %q", aggregate)
	}
	return get(row), nil
}

func compareValues(actual float64, operator string, want float64) bool {
	cmp, ok := operators[operator]
	return ok && cmp(actual, want)
}
