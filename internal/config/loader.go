package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line flags.
type Loader struct{}

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load builds a Config from defaults, the file named by the "config" flag,
// and the flags changed on fs, in that order of precedence. fs must already
// be parsed.
func (Loader) Load(fs *pflag.FlagSet) (*Config, error) {
	var configPath string
	if f := fs.Lookup("config"); f != nil {
		configPath = strings.TrimSpace(f.Value.String())
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, fs); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]any) error {
	root, err := newSection(settings)
	if err != nil {
		return err
	}
	sections := []struct {
		name  string
		apply func(*section)
	}{
		{"report", func(s *section) { applyReport(&cfg.Report, s) }},
		{"monitor", func(s *section) { applyMonitor(&cfg.Monitor, s) }},
		{"agent", func(s *section) { applyAgent(&cfg.Agent, s) }},
		{"log", func(s *section) { applyLog(&cfg.Log, s) }},
		{"tracing", func(s *section) { applyTracing(&cfg.Tracing, s) }},
	}
	for _, sec := range sections {
		raw, ok := root.lookup(sec.name)
		if !ok {
			continue
		}
		s, err := newSection(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", sec.name, err)
		}
		sec.apply(s)
		if s.err != nil {
			return fmt.Errorf("%s.%w", sec.name, s.err)
		}
	}
	return nil
}

func applyReport(r *ReportConfig, s *section) {
	s.float(&r.ApdexT, "apdex_t", "apdext")
	s.float(&r.PercentileStep, "percentile_step")
	s.str(&r.Format, "format")
	r.Format = strings.ToLower(r.Format)
	s.str(&r.Output, "output")
	s.list(&r.Thresholds, "thresholds")
}

func applyMonitor(m *MonitorConfig, s *section) {
	var hosts []string
	s.list(&hosts, "hosts")
	if hosts != nil && s.err == nil {
		var err error
		m.Hosts, err = parseHosts(hosts)
		s.fail("hosts", err)
	}
	s.duration(&m.Interval, "interval")
	s.duration(&m.Timeout, "timeout", "rpc_timeout")
	s.str(&m.Output, "output")
	s.str(&m.Key, "key")
	s.stringMap(&m.Metadata, "metadata")
	s.boolean(&m.TLS, "tls")
	s.boolean(&m.Insecure, "insecure")
	s.str(&m.MetricsAddr, "metrics_addr")
}

func applyAgent(a *AgentConfig, s *section) {
	s.str(&a.Listen, "listen")
	s.str(&a.Host, "host", "hostname")
	s.str(&a.Interface, "interface")
	s.str(&a.CUsFile, "cus_file")
	s.str(&a.MetricsAddr, "metrics_addr")
	s.list(&a.MonitorsEnabled, "monitors_enabled")
	s.list(&a.MonitorsDisabled, "monitors_disabled")
}

func applyLog(l *LogConfig, s *section) {
	s.str(&l.Level, "level")
	s.str(&l.Format, "format")
}

func applyTracing(t *TracingConfig, s *section) {
	s.str(&t.Endpoint, "endpoint")
	s.str(&t.Protocol, "protocol")
	s.str(&t.ServiceName, "service_name")
	s.float(&t.SampleRate, "sample_rate")
	s.boolean(&t.Insecure, "insecure")
	if _, ok := s.lookup("propagate"); ok {
		var v bool
		s.boolean(&v, "propagate")
		t.Propagate = &v
	}
}

func parseHosts(raw []string) ([]HostSpec, error) {
	hosts := make([]HostSpec, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		h, err := ParseHostSpec(r)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}
