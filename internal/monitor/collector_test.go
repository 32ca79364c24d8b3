package monitor_test

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/torosent/crankmeter/internal/agent"
	"github.com/torosent/crankmeter/internal/grpcclient"
	"github.com/torosent/crankmeter/internal/metrics"
	"github.com/torosent/crankmeter/internal/monitor"
	"github.com/torosent/crankmeter/internal/results"
)

// memorySink records what the writer hands it, optionally slowly.
type memorySink struct {
	mu      sync.Mutex
	delay   time.Duration
	header  map[string]string
	configs map[string]map[string]string
	samples []map[string]string
	ended   bool
	late    int
}

func newMemorySink(delay time.Duration) *memorySink {
	return &memorySink{
		delay:   delay,
		header:  make(map[string]string),
		configs: make(map[string]map[string]string),
	}
}

func (s *memorySink) Config(key, value, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header[key] = value
	return nil
}

func (s *memorySink) MonitorConfig(host, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		s.late++
	}
	if s.configs[host] == nil {
		s.configs[host] = make(map[string]string)
	}
	s.configs[host][key] = value
	return nil
}

func (s *memorySink) Monitor(data map[string]string) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		s.late++
	}
	s.samples = append(s.samples, data)
	return nil
}

func (s *memorySink) EndLog() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	return nil
}

func (s *memorySink) byHost(host string) []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []map[string]string
	for _, d := range s.samples {
		if d["host"] == host {
			out = append(out, d)
		}
	}
	return out
}

// fakeAgent answers like an agent, numbering its samples.
type fakeAgent struct {
	mu        sync.Mutex
	served    int
	configs   map[string]string
	configErr error
	// failAfter makes GetRecord fail once this many samples were served. Zero never fails.
	failAfter int
	closed    bool
}

func (f *fakeAgent) GetRecord(ctx context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	if f.failAfter > 0 && f.served >= f.failAfter {
		return nil, status.Error(codes.Unavailable, "connection reset")
	}
	f.served++
	return map[string]string{
		"time": strconv.Itoa(f.served),
		"seq":  strconv.Itoa(f.served),
		"host": "agent-reported",
	}, nil
}

func (f *fakeAgent) GetMonitorsConfig(context.Context) (map[string]string, error) {
	return f.configs, f.configErr
}

func (f *fakeAgent) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeAgent) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.served
}

func dialer(agents map[string]*fakeAgent) monitor.Dialer {
	return func(t monitor.Target) (monitor.Fetcher, error) {
		a, ok := agents[t.Name]
		if !ok {
			return nil, errors.New("no route to host")
		}
		return a, nil
	}
}

func targets(names ...string) []monitor.Target {
	out := make([]monitor.Target, len(names))
	for i, n := range names {
		out[i] = monitor.Target{Name: n, Address: n + ":8008"}
	}
	return out
}

func start(t *testing.T, opts monitor.Options) *monitor.Collector {
	t.Helper()
	opts.Logger = zaptest.NewLogger(t)
	if opts.Interval == 0 {
		opts.Interval = time.Millisecond
	}
	c, err := monitor.Start(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestStartWithoutHosts(t *testing.T) {
	_, err := monitor.Start(context.Background(), monitor.Options{Sink: newMemorySink(0)})
	assert.ErrorIs(t, err, monitor.ErrNoHosts)
}

func TestCloseWritesEveryQueuedSample(t *testing.T) {
	agents := map[string]*fakeAgent{"db": {}, "web": {}}
	sink := newMemorySink(2 * time.Millisecond)
	c := start(t, monitor.Options{Hosts: targets("db", "web"), Sink: sink, Dial: dialer(agents)})

	// The writer is slower than the pollers, so a backlog builds up.
	require.Eventually(t, func() bool {
		return agents["db"].count() >= 30 && agents["web"].count() >= 30
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, c.Close())

	assert.True(t, sink.ended)
	assert.Zero(t, sink.late, "records written after the log was finalised")
	for name, a := range agents {
		samples := sink.byHost(name)
		require.Len(t, samples, a.count(), "host %s lost samples", name)
		for i, s := range samples {
			assert.Equal(t, strconv.Itoa(i+1), s["seq"], "host %s out of order", name)
		}
		assert.True(t, a.closed)
	}
}

func TestSamplesAreTaggedWithConfiguredHost(t *testing.T) {
	agents := map[string]*fakeAgent{"db": {}}
	sink := newMemorySink(0)
	c := start(t, monitor.Options{Hosts: targets("db"), Sink: sink, Dial: dialer(agents)})

	require.Eventually(t, func() bool { return agents["db"].count() >= 1 }, 5*time.Second, time.Millisecond)
	require.NoError(t, c.Close())

	samples := sink.byHost("db")
	require.NotEmpty(t, samples)
	assert.Empty(t, sink.byHost("agent-reported"))
	assert.Equal(t, "1", samples[0]["time"])
	assert.NotContains(t, samples[0], "key")
}

func TestHeaderAndHandshakeConfig(t *testing.T) {
	agents := map[string]*fakeAgent{"db": {configs: map[string]string{
		"MonitorCPU":  "schema: plots.v1\n",
		"MonitorLoad": "schema: plots.v1\n",
	}}}
	sink := newMemorySink(0)
	c := start(t, monitor.Options{
		Hosts:    targets("db"),
		Sink:     sink,
		Dial:     dialer(agents),
		Interval: 250 * time.Millisecond,
		Config:   map[string]string{"cycles": "[1, 5]"},
	})
	require.NoError(t, c.Close())

	assert.Equal(t, map[string]string{
		"run_id":   c.RunID(),
		"interval": "0.25",
		"hosts":    "db",
		"cycles":   "[1, 5]",
	}, sink.header)
	assert.Len(t, c.RunID(), 26)
	assert.Equal(t, agents["db"].configs, sink.configs["db"])
}

func TestHandshakeUnimplementedIsNotFatal(t *testing.T) {
	agents := map[string]*fakeAgent{"db": {configErr: status.Error(codes.Unimplemented, "unknown method")}}
	sink := newMemorySink(0)
	c := start(t, monitor.Options{Hosts: targets("db"), Sink: sink, Dial: dialer(agents)})

	require.Eventually(t, func() bool { return agents["db"].count() >= 3 }, 5*time.Second, time.Millisecond)
	require.NoError(t, c.Close())

	assert.Empty(t, c.Excluded())
	assert.Empty(t, sink.configs)
	assert.NotEmpty(t, sink.byHost("db"))
}

func TestUnreachableHostsAreExcluded(t *testing.T) {
	reg := prometheus.NewRegistry()
	prom := metrics.NewPrometheus(reg)
	agents := map[string]*fakeAgent{
		"db":  {configErr: status.Error(codes.Unavailable, "connection refused")},
		"web": {},
	}
	sink := newMemorySink(0)
	c := start(t, monitor.Options{
		Hosts:   targets("db", "web", "cache"),
		Sink:    sink,
		Dial:    dialer(agents),
		Metrics: prom,
	})

	require.Eventually(t, func() bool { return len(c.Excluded()) == 2 }, 5*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return agents["web"].count() >= 3 }, 5*time.Second, time.Millisecond)
	require.NoError(t, c.Close())

	assert.Equal(t, map[string]string{
		"db":    monitor.StageHandshake,
		"cache": monitor.StageDial,
	}, c.Excluded())
	assert.Zero(t, agents["db"].count())
	assert.Empty(t, sink.byHost("db"))
	assert.Len(t, sink.byHost("web"), agents["web"].count())

	assert.Equal(t, 1.0, testutil.ToFloat64(prom.ExcludedHosts.WithLabelValues("db", monitor.StageHandshake)))
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.ExcludedHosts.WithLabelValues("cache", monitor.StageDial)))
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.PollErrors.WithLabelValues("db", codes.Unavailable.String())))
	assert.Equal(t, float64(agents["web"].count()), testutil.ToFloat64(prom.Written))
}

func TestMidRunFailureDropsOnlyThatHost(t *testing.T) {
	agents := map[string]*fakeAgent{"db": {failAfter: 3}, "web": {}}
	sink := newMemorySink(0)
	latency := metrics.NewHosts()
	c := start(t, monitor.Options{Hosts: targets("db", "web"), Sink: sink, Dial: dialer(agents), Latency: latency})

	require.Eventually(t, func() bool { return c.Excluded()["db"] == monitor.StagePoll }, 5*time.Second, time.Millisecond)
	// web keeps being polled after db is gone
	mark := agents["web"].count()
	require.Eventually(t, func() bool { return agents["web"].count() > mark+3 }, 5*time.Second, time.Millisecond)
	require.NoError(t, c.Close())

	assert.Len(t, sink.byHost("db"), 3)
	assert.Len(t, sink.byHost("web"), agents["web"].count())
	assert.NotContains(t, c.Excluded(), "web")

	dbStats := latency.For("db").Stats(time.Second)
	assert.Equal(t, int64(1), dbStats.Failures)
}

func TestSetMonitorKey(t *testing.T) {
	agents := map[string]*fakeAgent{"db": {}}
	sink := newMemorySink(0)
	c := start(t, monitor.Options{Hosts: targets("db"), Sink: sink, Dial: dialer(agents), Key: "warmup"})

	require.Eventually(t, func() bool { return len(sink.byHost("db")) >= 2 }, 5*time.Second, time.Millisecond)
	c.SetMonitorKey("bench")
	assert.Equal(t, "bench", c.MonitorKey())
	mark := agents["db"].count()
	require.Eventually(t, func() bool { return agents["db"].count() > mark+2 }, 5*time.Second, time.Millisecond)
	require.NoError(t, c.Close())

	samples := sink.byHost("db")
	assert.Equal(t, "warmup", samples[0]["key"])
	assert.Equal(t, "bench", samples[len(samples)-1]["key"])
	switched := false
	for _, s := range samples {
		if s["key"] == "bench" {
			switched = true
		}
		if switched {
			assert.Equal(t, "bench", s["key"], "key went back after SetMonitorKey")
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	agents := map[string]*fakeAgent{"db": {}}
	c := start(t, monitor.Options{Hosts: targets("db"), Sink: newMemorySink(0), Dial: dialer(agents)})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

type echoPlugin struct {
	*agent.Plots
}

func (echoPlugin) Name() string { return "MonitorEcho" }

func (echoPlugin) Stat(context.Context) (map[string]string, error) {
	return map[string]string{"ECHO": "42"}, nil
}

func TestMonitorLogEndToEnd(t *testing.T) {
	a, err := agent.New(agent.Options{
		Host:    "db",
		Plugins: []agent.Plugin{echoPlugin{agent.NewPlots(agent.Plot{Title: "echo", Lines: []agent.Line{{Key: "ECHO"}}})}},
	})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = agent.NewServer(a).Serve(ctx, lis) }()

	path := filepath.Join(t.TempDir(), "stats.xml")
	c := start(t, monitor.Options{
		Hosts:    []monitor.Target{{Name: "db", Address: "passthrough:///db"}},
		Path:     path,
		Interval: 5 * time.Millisecond,
		Client: grpcclient.Config{
			DialOptions: []grpc.DialOption{grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			})},
		},
	})
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, c.Close())

	res, err := results.ParseFile(path, results.Options{})
	require.NoError(t, err)
	assert.Equal(t, c.RunID(), res.Config["run_id"])
	require.NotEmpty(t, res.Monitors["db"])
	v, ok := res.Monitors["db"][0].Metric("ECHO")
	require.True(t, ok)
	assert.Equal(t, 42.0, v)
	assert.Contains(t, res.MonitorConfig["db"]["MonitorEcho"], agent.PlotSchema)
}
