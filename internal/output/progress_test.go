package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/torosent/crankmeter/internal/metrics"
)

func TestProgressLine(t *testing.T) {
	hosts := metrics.NewHosts()
	for range 4 {
		hosts.For("db").RecordCall(2*time.Millisecond, nil)
	}
	hosts.For("web").RecordCall(40*time.Millisecond, nil)
	hosts.For("web").RecordCall(40*time.Millisecond, errors.New("boom"))

	line := ProgressLine(hosts.Stats(time.Second))

	assert.True(t, strings.HasPrefix(line, "\r"))
	for _, want := range []string{"Hosts: 2", "Calls: 6", "Failures: 1", "Calls/s: 6.0", "Slowest: web (P99 40.0ms)"} {
		assert.Contains(t, line, want)
	}
}

func TestProgressLineNoHosts(t *testing.T) {
	assert.Equal(t, "\rHosts: 0 | Calls: 0 | Failures: 0 | Calls/s: 0.0", ProgressLine(nil))
}

func TestSlowestHostTieBreak(t *testing.T) {
	name, ok := slowestHost(map[string]metrics.Stats{
		"web": {P99: time.Millisecond},
		"db":  {P99: time.Millisecond},
	})
	assert.True(t, ok)
	assert.Equal(t, "db", name)
}

func TestProgressReporterStopBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	r := NewProgressReporter(metrics.NewHosts(), time.Hour, &buf)
	r.Stop()
	r.Stop()
	assert.Empty(t, buf.String())
}

func TestProgressReporterRedraws(t *testing.T) {
	hosts := metrics.NewHosts()
	hosts.For("db").RecordCall(5*time.Millisecond, nil)

	var buf bytes.Buffer
	r := NewProgressReporter(hosts, 10*time.Millisecond, &buf)
	r.Start()
	r.Start()
	time.Sleep(50 * time.Millisecond)
	r.Stop()
	r.Stop()

	out := buf.String()
	assert.Contains(t, out, "Calls: 1")
	assert.True(t, strings.HasSuffix(out, "\n"), "final line is terminated")
	assert.Greater(t, strings.Count(out, "\r"), 1)
}
