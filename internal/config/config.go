package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Output formats of the report command.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Defaults applied before the config file and flags.
const (
	DefaultApdexT         = 1.5
	DefaultPercentileStep = 5
	DefaultInterval       = 500 * time.Millisecond
	DefaultStatsPath      = "stats.xml"
	DefaultRPCTimeout     = 10 * time.Second
	DefaultAgentListen    = ":8008"
)

type Config struct {
	ConfigFile string        `mapstructure:"-"`
	Report     ReportConfig  `mapstructure:"report"`
	Monitor    MonitorConfig `mapstructure:"monitor"`
	Agent      AgentConfig   `mapstructure:"agent"`
	Log        LogConfig     `mapstructure:"log"`
	Tracing    TracingConfig `mapstructure:"tracing"`
}

// ReportConfig drives statistics over result logs.
type ReportConfig struct {
	ApdexT         float64  `mapstructure:"apdex_t"`
	PercentileStep float64  `mapstructure:"percentile_step"`
	Format         string   `mapstructure:"format"`
	Output         string   `mapstructure:"output"`
	Thresholds     []string `mapstructure:"thresholds"`
}

// MonitorConfig drives polling of monitor agents.
type MonitorConfig struct {
	Hosts    []HostSpec        `mapstructure:"hosts"`
	Interval time.Duration     `mapstructure:"interval"`
	Output   string            `mapstructure:"output"`
	Timeout  time.Duration     `mapstructure:"timeout"`
	Key      string            `mapstructure:"key"`
	Metadata map[string]string `mapstructure:"metadata"`
	TLS      bool              `mapstructure:"tls"`
	Insecure bool              `mapstructure:"insecure"` // Skip TLS verification
	// MetricsAddr serves Prometheus metrics when set.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// AgentConfig drives the monitor agent.
type AgentConfig struct {
	Listen           string   `mapstructure:"listen"`
	Host             string   `mapstructure:"host"`
	MonitorsEnabled  []string `mapstructure:"monitors_enabled"`
	MonitorsDisabled []string `mapstructure:"monitors_disabled"`
	Interface        string   `mapstructure:"interface"`
	CUsFile          string   `mapstructure:"cus_file"`
	MetricsAddr      string   `mapstructure:"metrics_addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	// Propagate overrides whether trace context is sent to agents. Nil follows Enabled.
	Propagate *bool `mapstructure:"propagate"`
}

// Enabled reports whether an exporter endpoint is configured, directly or
// through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// HostSpec is one monitored host, written "host:port[:description]".
type HostSpec struct {
	Host        string
	Port        int
	Description string
}

// ParseHostSpec parses "host:port[:description]".
func ParseHostSpec(s string) (HostSpec, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 3)
	if len(parts) < 2 || parts[0] == "" {
		return HostSpec{}, fmt.Errorf("host %q: want host:port[:description]", s)
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return HostSpec{}, fmt.Errorf("host %q: invalid port %q", s, parts[1])
	}
	spec := HostSpec{Host: parts[0], Port: port}
	if len(parts) == 3 {
		spec.Description = parts[2]
	}
	return spec, nil
}

// Address returns the dial target.
func (h HostSpec) Address() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

func (h HostSpec) String() string {
	if h.Description == "" {
		return h.Address()
	}
	return h.Address() + ":" + h.Description
}

// Default returns a Config holding every default.
func Default() *Config {
	return &Config{
		Report: ReportConfig{
			ApdexT:         DefaultApdexT,
			PercentileStep: DefaultPercentileStep,
			Format:         FormatText,
		},
		Monitor: MonitorConfig{
			Interval: DefaultInterval,
			Output:   DefaultStatsPath,
			Timeout:  DefaultRPCTimeout,
		},
		Agent:   AgentConfig{Listen: DefaultAgentListen},
		Log:     LogConfig{Level: "info", Format: "console"},
		Tracing: TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if c.Report.ApdexT <= 0 {
		issues = append(issues, "report.apdex_t must be greater than zero")
	}
	step := c.Report.PercentileStep
	if step < 1 || step > 100 || step != float64(int(step)) || 100%int(step) != 0 {
		issues = append(issues, fmt.Sprintf("report.percentile_step %g must be an integer divisor of 100", step))
	}
	switch c.Report.Format {
	case FormatText, FormatJSON:
	default:
		issues = append(issues, fmt.Sprintf("report.format %q must be %q or %q", c.Report.Format, FormatText, FormatJSON))
	}

	if c.Monitor.Interval <= 0 {
		issues = append(issues, "monitor.interval must be greater than zero")
	}
	if c.Monitor.Timeout < 0 {
		issues = append(issues, "monitor.timeout must not be negative")
	}
	if strings.TrimSpace(c.Monitor.Output) == "" {
		issues = append(issues, "monitor.output is required")
	}
	seen := make(map[string]bool, len(c.Monitor.Hosts))
	for _, h := range c.Monitor.Hosts {
		if seen[h.Address()] {
			issues = append(issues, fmt.Sprintf("monitor.hosts lists %s twice", h.Address()))
		}
		seen[h.Address()] = true
	}

	if len(c.Agent.MonitorsEnabled) > 0 && len(c.Agent.MonitorsDisabled) > 0 {
		issues = append(issues, "agent.monitors_enabled and agent.monitors_disabled are mutually exclusive")
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log.format %q must be console or json", c.Log.Format))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing.sample_rate must be between 0.0 and 1.0, got %g", c.Tracing.SampleRate))
	}
	switch strings.ToLower(c.Tracing.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol %q must be grpc or http", c.Tracing.Protocol))
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}
