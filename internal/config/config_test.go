package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/torosent/crankmeter/internal/config"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterCommonFlags(fs)
	config.RegisterMonitorFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.NewLoader().Load(newFlags(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Report.ApdexT != 1.5 {
		t.Errorf("ApdexT = %v, want 1.5", cfg.Report.ApdexT)
	}
	if cfg.Report.PercentileStep != 5 {
		t.Errorf("PercentileStep = %v, want 5", cfg.Report.PercentileStep)
	}
	if cfg.Monitor.Interval != 500*time.Millisecond {
		t.Errorf("Interval = %v, want 500ms", cfg.Monitor.Interval)
	}
	if cfg.Monitor.Output != "stats.xml" {
		t.Errorf("Output = %q, want stats.xml", cfg.Monitor.Output)
	}
	if len(cfg.Monitor.Hosts) != 0 {
		t.Errorf("Hosts = %v, want none", cfg.Monitor.Hosts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crankmeter.yaml")
	if err := os.WriteFile(path, []byte(`
report:
  apdex_t: 0.5
  thresholds:
    - "Page:p95 < 2"
monitor:
  hosts:
    - db:8008:database
  interval: 2s
  output: run-stats.xml
log:
  level: debug
tracing:
  endpoint: localhost:4317
  sample_rate: 0.5
`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.NewLoader().Load(newFlags(t, "--config", path, "--interval", "1s"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
	if cfg.Report.ApdexT != 0.5 {
		t.Errorf("ApdexT = %v, want 0.5", cfg.Report.ApdexT)
	}
	if len(cfg.Report.Thresholds) != 1 {
		t.Errorf("Thresholds = %v", cfg.Report.Thresholds)
	}
	want := config.HostSpec{Host: "db", Port: 8008, Description: "database"}
	if len(cfg.Monitor.Hosts) != 1 || cfg.Monitor.Hosts[0] != want {
		t.Errorf("Hosts = %+v, want [%+v]", cfg.Monitor.Hosts, want)
	}
	// flag wins over file
	if cfg.Monitor.Interval != time.Second {
		t.Errorf("Interval = %v, want 1s", cfg.Monitor.Interval)
	}
	if cfg.Monitor.Output != "run-stats.xml" {
		t.Errorf("Output = %q", cfg.Monitor.Output)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if !cfg.Tracing.Enabled() || cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crankmeter.json")
	if err := os.WriteFile(path, []byte(`{
		"agent": {"listen": "127.0.0.1:9000", "monitors_enabled": ["MonitorCPU", "MonitorLoad"]}
	}`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.NewLoader().Load(newFlags(t, "--config", path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Agent.Listen != "127.0.0.1:9000" {
		t.Errorf("Listen = %q", cfg.Agent.Listen)
	}
	if strings.Join(cfg.Agent.MonitorsEnabled, ",") != "MonitorCPU,MonitorLoad" {
		t.Errorf("MonitorsEnabled = %v", cfg.Agent.MonitorsEnabled)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := config.NewLoader().Load(newFlags(t, "--config", filepath.Join(t.TempDir(), "absent.yaml")))
	if err == nil {
		t.Fatal("Load() should fail for a missing config file")
	}
}

func TestParseHostSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    config.HostSpec
		wantErr bool
	}{
		{in: "db:8008", want: config.HostSpec{Host: "db", Port: 8008}},
		{in: "db:8008:main: replica", want: config.HostSpec{Host: "db", Port: 8008, Description: "main: replica"}},
		{in: "db", wantErr: true},
		{in: ":8008", wantErr: true},
		{in: "db:http", wantErr: true},
		{in: "db:70000", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := config.ParseHostSpec(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHostSpec(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseHostSpec(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
	if got := (config.HostSpec{Host: "db", Port: 8008}).Address(); got != "db:8008" {
		t.Errorf("Address() = %q", got)
	}
}

func TestConfigValidationErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Report.ApdexT = 0
	cfg.Report.PercentileStep = 3
	cfg.Report.Format = "html"
	cfg.Monitor.Interval = 0
	cfg.Monitor.Hosts = []config.HostSpec{{Host: "db", Port: 1}, {Host: "db", Port: 1}}
	cfg.Agent.MonitorsEnabled = []string{"MonitorCPU"}
	cfg.Agent.MonitorsDisabled = []string{"MonitorLoad"}
	cfg.Tracing.SampleRate = 2

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want ValidationError", err)
	}

	issues := verr.Issues()
	wantFragments := []string{
		"apdex_t",
		"percentile_step",
		"report.format",
		"monitor.interval",
		"twice",
		"mutually exclusive",
		"sample_rate",
	}
	if len(issues) != len(wantFragments) {
		t.Fatalf("got %d issues, want %d: %v", len(issues), len(wantFragments), issues)
	}
	for i, frag := range wantFragments {
		if !strings.Contains(issues[i], frag) {
			t.Errorf("issue %d = %q, want it to mention %q", i, issues[i], frag)
		}
	}
}

func TestTracingPropagation(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	off := false
	tests := []struct {
		name string
		cfg  config.TracingConfig
		want bool
	}{
		{"disabled", config.TracingConfig{}, false},
		{"enabled follows endpoint", config.TracingConfig{Endpoint: "localhost:4317"}, true},
		{"explicit override", config.TracingConfig{Endpoint: "localhost:4317", Propagate: &off}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ShouldPropagate(); got != tt.want {
				t.Errorf("ShouldPropagate() = %v, want %v", got, tt.want)
			}
		})
	}
}
