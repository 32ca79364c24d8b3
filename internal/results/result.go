package results

import (
	"io"
	"slices"
	"sort"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/torosent/crankmeter/internal/stats"
)

// Renderer presents a parsed result. Implementations own every layout
// decision; the result itself is read-only to them.
type Renderer interface {
	Render(w io.Writer, r *Result) error
}

// MonitorSample is one poll of one host.
type MonitorSample struct {
	Host    string
	Time    float64
	Key     string
	Metrics map[string]string

	// Set by Result.AnnotateMonitors.
	Cycles []int
	CUs    int
}

// Metric returns a metric parsed as a float.
func (s *MonitorSample) Metric(name string) (float64, bool) {
	raw, ok := s.Metrics[name]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Result is everything a result log holds.
type Result struct {
	Config        map[string]string
	Stats         *Tree
	Monitors      map[string][]*MonitorSample
	MonitorConfig map[string]map[string]string
	Boundaries    *stats.CycleBoundaries
}

func newResult(apdexT float64) *Result {
	return &Result{
		Config:        make(map[string]string),
		Stats:         NewTree(apdexT),
		Monitors:      make(map[string][]*MonitorSample),
		MonitorConfig: make(map[string]map[string]string),
		Boundaries:    stats.NewCycleBoundaries(),
	}
}

// Hosts returns the monitored hosts, sorted.
func (r *Result) Hosts() []string {
	hosts := make([]string, 0, len(r.Monitors))
	for h := range r.Monitors {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// Cycles returns the concurrency level of each cycle, decoded from the
// "cycles" config entry (e.g. "[1, 5, 10]"). It is nil when the entry is
// missing or not a list.
func (r *Result) Cycles() []int {
	raw, ok := r.Config["cycles"]
	if !ok {
		return nil
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsArray() {
		return nil
	}
	var levels []int
	for _, v := range parsed.Array() {
		levels = append(levels, int(v.Int()))
	}
	return levels
}

// AnnotateMonitors sets each monitor sample's active cycles and the
// concurrency level at its timestamp: the highest level among the cycles
// whose window contains it, or 0 outside every cycle.
func (r *Result) AnnotateMonitors() {
	levels := r.Cycles()
	for _, samples := range r.Monitors {
		for _, s := range samples {
			s.Cycles = r.Boundaries.ContainingCycles(s.Time)
			s.CUs = 0
			for _, c := range s.Cycles {
				if c >= 0 && c < len(levels) {
					s.CUs = max(s.CUs, levels[c])
				}
			}
		}
	}
}

// MonitorKeys returns the distinct monitor keys seen for a host, sorted. The
// empty key is included when untagged samples exist.
func (r *Result) MonitorKeys(host string) []string {
	var keys []string
	for _, s := range r.Monitors[host] {
		if !slices.Contains(keys, s.Key) {
			keys = append(keys, s.Key)
		}
	}
	sort.Strings(keys)
	return keys
}
