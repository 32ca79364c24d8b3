package output

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/torosent/crankmeter/internal/metrics"
)

// ProgressReporter redraws one status line with the poller's call counts
// while a monitor run is in progress.
type ProgressReporter struct {
	hosts    *metrics.Hosts
	interval time.Duration
	w        io.Writer
	start    time.Time

	started  atomic.Bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewProgressReporter(hosts *metrics.Hosts, interval time.Duration, w io.Writer) *ProgressReporter {
	if w == nil {
		w = io.Discard
	}
	return &ProgressReporter{
		hosts:    hosts,
		interval: interval,
		w:        w,
		start:    time.Now(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins redrawing in the background. Later calls do nothing.
func (p *ProgressReporter) Start() {
	if p.started.CompareAndSwap(false, true) {
		go p.run()
	}
}

// Stop prints a final line and waits for the reporter to exit. It is safe
// to call more than once, and before Start.
func (p *ProgressReporter) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	if p.started.Load() {
		<-p.done
	}
}

func (p *ProgressReporter) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.draw()
		case <-p.stop:
			p.draw()
			fmt.Fprintln(p.w)
			return
		}
	}
}

func (p *ProgressReporter) draw() {
	fmt.Fprint(p.w, ProgressLine(p.hosts.Stats(time.Since(p.start))))
}

// ProgressLine formats one carriage-return-prefixed status line.
func ProgressLine(perHost map[string]metrics.Stats) string {
	var calls, failures int64
	var rate float64
	for _, s := range perHost {
		calls += s.Calls
		failures += s.Failures
		rate += s.Rate
	}
	line := fmt.Sprintf("\rHosts: %d | Calls: %d | Failures: %d | Calls/s: %.1f",
		len(perHost), calls, failures, rate)
	if name, ok := slowestHost(perHost); ok {
		p99 := float64(perHost[name].P99) / float64(time.Millisecond)
		line += fmt.Sprintf(" | Slowest: %s (P99 %.1fms)", name, p99)
	}
	return line
}

// slowestHost returns the host with the highest P99, ties going to the
// first name in sort order.
func slowestHost(perHost map[string]metrics.Stats) (string, bool) {
	var slowest string
	found := false
	for _, name := range slices.Sorted(maps.Keys(perHost)) {
		if !found || perHost[name].P99 > perHost[slowest].P99 {
			slowest, found = name, true
		}
	}
	return slowest, found
}
