// Package output renders parsed results and live monitor progress.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/torosent/crankmeter/internal/results"
	"github.com/torosent/crankmeter/internal/stats"
	"github.com/torosent/crankmeter/internal/threshold"
)

// Report is the presentation-neutral view both renderers share.
type Report struct {
	Config     map[string]string           `json:"config"`
	Groups     []GroupReport               `json:"groups"`
	Monitors   []HostReport                `json:"monitors,omitempty"`
	Thresholds []ThresholdReport           `json:"thresholds,omitempty"`
	Summary    map[string]stats.SummaryRow `json:"-"`
}

// GroupReport is one statistics group, whole-run and per cycle.
type GroupReport struct {
	Name        string                      `json:"name"`
	Summary     stats.SummaryRow            `json:"summary"`
	Percentiles map[string]float64          `json:"percentiles"`
	Cycles      []CycleReport               `json:"cycles"`
	Errors      []ErrorReport               `json:"errors,omitempty"`
	Values      map[string]stats.SummaryRow `json:"values"`
}

type CycleReport struct {
	Cycle   int              `json:"cycle"`
	CUs     int              `json:"cus"`
	Summary stats.SummaryRow `json:"summary"`
}

type ErrorReport struct {
	Result string `json:"result"`
	Code   int    `json:"code"`
	Count  int    `json:"count"`
}

// HostReport summarizes one monitored host.
type HostReport struct {
	Host    string   `json:"host"`
	Samples int      `json:"samples"`
	Keys    []string `json:"keys,omitempty"`
	Metrics []string `json:"metrics"`
}

type ThresholdReport struct {
	Threshold string  `json:"threshold"`
	Actual    float64 `json:"actual"`
	Pass      bool    `json:"pass"`
}

// BuildReport computes the statistics every renderer shows. step is the
// percentile granularity of the Percentiles maps.
func BuildReport(r *results.Result, step float64) (*Report, error) {
	rep := &Report{
		Config:  r.Config,
		Summary: make(map[string]stats.SummaryRow),
	}
	levels := r.Cycles()

	for _, group := range r.Stats.Groups() {
		agg := r.Stats.GroupAggregate(group)
		if err := agg.ComputePercentiles(step); err != nil {
			return nil, err
		}
		g := GroupReport{
			Name:        group,
			Percentiles: make(map[string]float64),
			Values:      make(map[string]stats.SummaryRow),
		}
		for p, v := range agg.Percentiles() {
			g.Percentiles[stats.PercentileName(p)] = v
		}
		g.Summary = agg.Summary()
		rep.Summary[group] = g.Summary

		for _, cycle := range r.Stats.GroupCycles(group) {
			cus := 0
			if cycle >= 0 && cycle < len(levels) {
				cus = levels[cycle]
			}
			g.Cycles = append(g.Cycles, CycleReport{
				Cycle:   cycle,
				CUs:     cus,
				Summary: r.Stats.CycleAggregate(group, cycle).Summary(),
			})
		}
		for _, value := range r.Stats.Values(group) {
			g.Values[value] = r.Stats.ValueAggregate(group, value).Summary()
		}
		g.Errors = errorReports(agg.ErrorDetails())
		rep.Groups = append(rep.Groups, g)
	}

	for _, host := range r.Hosts() {
		samples := r.Monitors[host]
		h := HostReport{Host: host, Samples: len(samples), Keys: r.MonitorKeys(host)}
		seen := make(map[string]bool)
		for _, s := range samples {
			for m := range s.Metrics {
				if !seen[m] {
					seen[m] = true
					h.Metrics = append(h.Metrics, m)
				}
			}
		}
		sort.Strings(h.Metrics)
		rep.Monitors = append(rep.Monitors, h)
	}
	return rep, nil
}

// errorReports folds error keys into one row per result and code, most
// frequent first.
func errorReports(details map[stats.ErrorKey]int) []ErrorReport {
	type rowKey struct {
		result string
		code   int
	}
	counts := make(map[rowKey]int, len(details))
	for key, n := range details {
		counts[rowKey{key.Result, key.Code}] += n
	}
	rows := make([]ErrorReport, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, ErrorReport{Result: k.result, Code: k.code, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		if rows[i].Result != rows[j].Result {
			return rows[i].Result < rows[j].Result
		}
		return rows[i].Code < rows[j].Code
	})
	return rows
}

// AddThresholds attaches evaluated thresholds.
func (rep *Report) AddThresholds(evaluated []threshold.Result) {
	for _, tr := range evaluated {
		rep.Thresholds = append(rep.Thresholds, ThresholdReport{
			Threshold: tr.Threshold.Raw,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
		})
	}
}

// TextRenderer prints tab-aligned summary tables.
type TextRenderer struct {
	Step       float64
	Thresholds []threshold.Result
}

var _ results.Renderer = TextRenderer{}

func (t TextRenderer) Render(w io.Writer, r *results.Result) error {
	rep, err := BuildReport(r, t.Step)
	if err != nil {
		return err
	}
	PrintReport(w, rep, t.Thresholds)
	return nil
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, rep *Report, thresholds []threshold.Result) {
	fmt.Fprintln(w, "--- Bench Results ---")
	if len(rep.Config) > 0 {
		keys := make([]string, 0, len(rep.Config))
		for k := range rep.Config {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%-20s %s\n", k+":", rep.Config[k])
		}
	}

	for _, g := range rep.Groups {
		fmt.Fprintf(w, "\n%s\n", g.Name)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintf(tw, "%s\t%s\t\n", stats.CycleColumn, strings.Join(stats.Columns, "\t"))
		for _, c := range g.Cycles {
			fmt.Fprintf(tw, "%d\t%s\t\n", c.CUs, formatRow(c.Summary))
		}
		fmt.Fprintf(tw, "all\t%s\t\n", formatRow(g.Summary))
		_ = tw.Flush()

		if len(g.Errors) > 0 {
			fmt.Fprintln(w, "  Errors:")
			for _, e := range g.Errors {
				fmt.Fprintf(w, "    %d x %s (code %d)\n", e.Count, e.Result, e.Code)
			}
		}
	}

	if len(rep.Monitors) > 0 {
		fmt.Fprintln(w, "\nMonitored hosts:")
		for _, h := range rep.Monitors {
			fmt.Fprintf(w, "  - %s: samples=%d, metrics=%s\n", h.Host, h.Samples, strings.Join(h.Metrics, ","))
		}
	}

	if len(thresholds) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, tr := range thresholds {
			fmt.Fprintf(w, "  %s\n", tr.Message)
		}
	}
}

func formatRow(row stats.SummaryRow) string {
	cells := make([]string, 0, len(stats.Columns))
	for _, v := range row.Values() {
		switch x := v.(type) {
		case float64:
			cells = append(cells, fmt.Sprintf("%.3f", x))
		default:
			cells = append(cells, fmt.Sprint(x))
		}
	}
	return strings.Join(cells, "\t")
}

// JSONRenderer encodes the Report as indented JSON.
type JSONRenderer struct {
	Step       float64
	Thresholds []threshold.Result
}

var _ results.Renderer = JSONRenderer{}

func (j JSONRenderer) Render(w io.Writer, r *results.Result) error {
	rep, err := BuildReport(r, j.Step)
	if err != nil {
		return err
	}
	rep.AddThresholds(j.Thresholds)
	return PrintJSONReport(w, rep)
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
