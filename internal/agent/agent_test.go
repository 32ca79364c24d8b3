package agent_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/torosent/crankmeter/internal/agent"
	"github.com/torosent/crankmeter/internal/grpcclient"
	"github.com/torosent/crankmeter/internal/metrics"
)

type staticPlugin struct {
	name  string
	stats map[string]string
	err   error
}

func (p *staticPlugin) Name() string { return p.name }

func (p *staticPlugin) Stat(context.Context) (map[string]string, error) {
	return p.stats, p.err
}

type panickingPlugin struct{}

func (panickingPlugin) Name() string { return "panicky" }

func (panickingPlugin) Stat(context.Context) (map[string]string, error) {
	var counters map[string]int
	counters["reads"]++
	return nil, nil
}

type plottedPlugin struct {
	staticPlugin
	*agent.Plots
}

func newPlotted(name string) *plottedPlugin {
	return &plottedPlugin{
		staticPlugin: staticPlugin{name: name, stats: map[string]string{name + "_VALUE": "1"}},
		Plots:        agent.NewPlots(agent.Plot{Title: name, Lines: []agent.Line{{Key: name + "_VALUE"}}}),
	}
}

var fixedNow = func() time.Time { return time.Unix(1760000000, 250_000_000) }

func newAgent(t *testing.T, opts agent.Options) *agent.Agent {
	t.Helper()
	if opts.Host == "" {
		opts.Host = "db"
	}
	opts.Logger = zaptest.NewLogger(t)
	opts.Now = fixedNow
	a, err := agent.New(opts)
	require.NoError(t, err)
	return a
}

func TestGetRecordMergesPlugins(t *testing.T) {
	a := newAgent(t, agent.Options{Plugins: []agent.Plugin{
		&staticPlugin{name: "cpu", stats: map[string]string{"CPU_TOTAL": "12.5"}},
		&staticPlugin{name: "mem", stats: map[string]string{"MEM_FREE": "1024"}},
	}})

	assert.Equal(t, map[string]string{
		"time":      "1760000000.250000",
		"host":      "db",
		"CPU_TOTAL": "12.5",
		"MEM_FREE":  "1024",
	}, a.GetRecord(context.Background()))
}

func TestGetRecordIsolatesPluginFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	prom := metrics.NewPrometheus(reg)
	a := newAgent(t, agent.Options{
		Metrics: prom,
		Plugins: []agent.Plugin{
			&staticPlugin{name: "broken", err: errors.New("no /proc")},
			&staticPlugin{name: "mem", stats: map[string]string{"MEM_FREE": "1024"}},
		},
	})

	record := a.GetRecord(context.Background())
	assert.Equal(t, "1024", record["MEM_FREE"])
	assert.Len(t, record, 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.PluginErrors.WithLabelValues("broken")))
}

func TestGetRecordRecoversPluginPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	prom := metrics.NewPrometheus(reg)
	a := newAgent(t, agent.Options{
		Metrics: prom,
		Plugins: []agent.Plugin{
			panickingPlugin{},
			&staticPlugin{name: "mem", stats: map[string]string{"MEM_FREE": "1024"}},
		},
	})

	var record map[string]string
	require.NotPanics(t, func() { record = a.GetRecord(context.Background()) })
	assert.Equal(t, "1024", record["MEM_FREE"])
	assert.Len(t, record, 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.PluginErrors.WithLabelValues("panicky")))
}

func TestGetRecordTimeAndHostWin(t *testing.T) {
	a := newAgent(t, agent.Options{Plugins: []agent.Plugin{
		&staticPlugin{name: "rogue", stats: map[string]string{"host": "spoofed", "time": "0"}},
	}})

	record := a.GetRecord(context.Background())
	assert.Equal(t, "db", record["host"])
	assert.Equal(t, "1760000000.250000", record["time"])
}

func TestSelection(t *testing.T) {
	all := []agent.Plugin{newPlotted("A"), newPlotted("B"), newPlotted("C")}

	tests := []struct {
		name        string
		sel         agent.Selection
		want        []string
		wantUnknown []string
	}{
		{name: "all by default", want: []string{"A", "B", "C"}},
		{name: "enable list", sel: agent.Selection{Enabled: []string{"C", "A"}}, want: []string{"A", "C"}},
		{name: "disable list", sel: agent.Selection{Disabled: []string{"B"}}, want: []string{"A", "C"}},
		{name: "unknown names", sel: agent.Selection{Disabled: []string{"Z"}}, want: []string{"A", "B", "C"}, wantUnknown: []string{"Z"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, unknown, err := tt.sel.Apply(all)
			require.NoError(t, err)
			var names []string
			for _, p := range kept {
				names = append(names, p.Name())
			}
			assert.Equal(t, tt.want, names)
			assert.Equal(t, tt.wantUnknown, unknown)
		})
	}

	_, err := agent.New(agent.Options{
		Host:      "db",
		Plugins:   all,
		Selection: agent.Selection{Enabled: []string{"A"}, Disabled: []string{"B"}},
	})
	assert.ErrorIs(t, err, agent.ErrConflictingSelection)
}

func TestGetMonitorsConfigAndConfigure(t *testing.T) {
	a := newAgent(t, agent.Options{Plugins: []agent.Plugin{
		newPlotted("A"),
		&staticPlugin{name: "plain"},
	}})

	configs := a.GetMonitorsConfig(context.Background())
	require.Contains(t, configs, "A")
	assert.NotContains(t, configs, "plain")

	plots, err := agent.UnmarshalPlots([]byte(configs["A"]))
	require.NoError(t, err)
	assert.Equal(t, "A", plots[0].Title)

	replacement, err := agent.MarshalPlots([]agent.Plot{{Title: "custom", Lines: []agent.Line{{Key: "A_VALUE"}}}})
	require.NoError(t, err)
	require.NoError(t, a.Configure(map[string]string{"A": string(replacement), "missing": "ignored"}))

	plots, err = agent.UnmarshalPlots([]byte(a.GetMonitorsConfig(context.Background())["A"]))
	require.NoError(t, err)
	assert.Equal(t, "custom", plots[0].Title)

	err = a.Configure(map[string]string{"A": "schema: plots.v0\n"})
	assert.ErrorIs(t, err, agent.ErrUnknownSchema)
}

func TestServerOverGRPC(t *testing.T) {
	a := newAgent(t, agent.Options{Plugins: []agent.Plugin{newPlotted("A")}})
	lis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- agent.NewServer(a).Serve(ctx, lis) }()

	client, err := grpcclient.NewClient(grpcclient.Config{
		Target: "passthrough:///agent",
		DialOptions: []grpc.DialOption{grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		})},
	})
	require.NoError(t, err)
	defer client.Close()

	record, err := client.GetRecord(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "db", record["host"])
	assert.Equal(t, "1", record["A_VALUE"])

	configs, err := client.GetMonitorsConfig(context.Background())
	require.NoError(t, err)
	assert.Contains(t, configs["A"], agent.PlotSchema)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}
