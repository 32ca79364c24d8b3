package metrics

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"google.golang.org/grpc/status"
)

// Latencies are tracked in microseconds from 1µs to one minute, well past any
// sane RPC timeout.
const (
	histMin     = 1
	histMax     = int64(time.Minute / time.Microsecond)
	histSigFigs = 3
)

// Collector records the latency and outcome of calls to one agent. It is
// safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	hist     *hdrhistogram.Histogram
	calls    int64
	failures int64
	min, max time.Duration
	sum      time.Duration
	errors   map[string]int
}

// Stats is a snapshot of a Collector.
type Stats struct {
	Calls    int64
	Failures int64
	Min      time.Duration
	Mean     time.Duration
	Max      time.Duration
	P50      time.Duration
	P90      time.Duration
	P99      time.Duration
	// Rate is calls per second over the elapsed time given to Stats.
	Rate float64
	// Errors counts failures by ErrorLabel.
	Errors map[string]int
}

func NewCollector() *Collector {
	return &Collector{
		hist:   hdrhistogram.New(histMin, histMax, histSigFigs),
		errors: make(map[string]int),
	}
}

// RecordCall records one call. Latencies outside the histogram range are
// clamped for percentiles but kept exact for min, max and mean.
func (c *Collector) RecordCall(latency time.Duration, err error) {
	us := min(max(latency.Microseconds(), histMin), histMax)

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.hist.RecordValue(us)
	c.calls++
	c.sum += latency
	if c.calls == 1 || latency < c.min {
		c.min = latency
	}
	c.max = max(c.max, latency)
	if err != nil {
		c.failures++
		c.errors[ErrorLabel(err)]++
	}
}

// ErrorLabel names the kind of a failed call: its gRPC status code when it has
// one, else a readable form of its Go type.
func ErrorLabel(err error) string {
	if s, ok := status.FromError(err); ok {
		return s.Code().String()
	}
	return errorKind(err)
}

// Stats returns a snapshot; elapsed is the wall time the calls spread over.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Calls: c.calls, Failures: c.failures, Min: c.min, Max: c.max}
	if c.calls == 0 {
		return s
	}
	s.Mean = c.sum / time.Duration(c.calls)
	quantile := func(q float64) time.Duration {
		return time.Duration(c.hist.ValueAtQuantile(q)) * time.Microsecond
	}
	s.P50, s.P90, s.P99 = quantile(50), quantile(90), quantile(99)
	if elapsed > 0 {
		s.Rate = float64(c.calls) / elapsed.Seconds()
	}
	if len(c.errors) > 0 {
		s.Errors = maps.Clone(c.errors)
	}
	return s
}

// Hosts holds one Collector per monitored host.
type Hosts struct {
	mu         sync.Mutex
	collectors map[string]*Collector
}

func NewHosts() *Hosts {
	return &Hosts{collectors: make(map[string]*Collector)}
}

// For returns the collector of host, creating it on first use.
func (h *Hosts) For(host string) *Collector {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.collectors[host]
	if !ok {
		c = NewCollector()
		h.collectors[host] = c
	}
	return c
}

// Names returns the hosts seen so far, sorted.
func (h *Hosts) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Sorted(maps.Keys(h.collectors))
}

// Stats returns every host's statistics.
func (h *Hosts) Stats(elapsed time.Duration) map[string]Stats {
	out := make(map[string]Stats)
	for _, name := range h.Names() {
		out[name] = h.For(name).Stats(elapsed)
	}
	return out
}

// ErrorBuckets returns the failures of every host as host → label → count.
func (h *Hosts) ErrorBuckets() map[string]map[string]int {
	out := make(map[string]map[string]int)
	for name, s := range h.Stats(0) {
		if len(s.Errors) > 0 {
			out[name] = s.Errors
		}
	}
	return out
}
