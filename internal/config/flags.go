package config

import (
	"github.com/spf13/pflag"
)

// RegisterCommonFlags registers flags shared by every command. Pass a
// command's persistent flag set so subcommands inherit them.
func RegisterCommonFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to configuration file (JSON or YAML)")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "console", "Log encoding: console or json")

	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.String("tracing-service-name", "", "Service name reported to the collector")
	flags.Float64("tracing-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")
	flags.Bool("tracing-insecure", false, "Disable TLS to the collector")
}

// RegisterReportFlags registers flags of the report command.
func RegisterReportFlags(flags *pflag.FlagSet) {
	flags.Float64("apdex-t", DefaultApdexT, "Apdex satisfaction threshold in seconds")
	flags.Float64("percentile-step", DefaultPercentileStep, "Percentile step; must divide 100")
	flags.String("format", FormatText, "Report format: text or json")
	flags.StringP("output", "o", "", "Write the report to this file instead of stdout")
	flags.StringSlice("threshold", nil, "Pass/fail threshold (repeatable, e.g. 'Page:p95 < 2')")
}

// RegisterMonitorFlags registers flags of the monitor command.
func RegisterMonitorFlags(flags *pflag.FlagSet) {
	flags.StringSlice("host", nil, "Agent to poll as host:port[:description] (repeatable)")
	flags.Duration("interval", DefaultInterval, "Delay between two samples of one host")
	flags.StringP("output", "o", DefaultStatsPath, "Monitor log path")
	flags.Duration("rpc-timeout", DefaultRPCTimeout, "Per-call timeout against agents")
	flags.String("key", "", "Monitor key tagged on every sample")
	flags.StringToString("metadata", nil, "gRPC metadata key=value pairs sent to agents")
	flags.Bool("tls", false, "Use TLS to reach agents")
	flags.Bool("insecure", false, "Skip TLS verification")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")
}

// RegisterAgentFlags registers flags of the agent command.
func RegisterAgentFlags(flags *pflag.FlagSet) {
	flags.String("listen", DefaultAgentListen, "Address the agent serves gRPC on")
	flags.String("hostname", "", "Host name stamped on samples (default: os hostname)")
	flags.StringSlice("monitors-enabled", nil, "Only run these monitors")
	flags.StringSlice("monitors-disabled", nil, "Run every monitor except these")
	flags.String("interface", "", "Network interface read by MonitorNetwork (default: all)")
	flags.String("cus-file", "", "File holding the current concurrency level")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")
}

func changed(fs *pflag.FlagSet, name string) bool {
	return fs.Lookup(name) != nil && fs.Changed(name)
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file. Flags absent from fs are skipped, so one
// function serves every command.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	str := func(name string, dst *string) {
		if err == nil && changed(fs, name) {
			*dst, err = fs.GetString(name)
		}
	}
	float := func(name string, dst *float64) {
		if err == nil && changed(fs, name) {
			*dst, err = fs.GetFloat64(name)
		}
	}
	slice := func(name string, dst *[]string) {
		if err == nil && changed(fs, name) {
			*dst, err = fs.GetStringSlice(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if err == nil && changed(fs, name) {
			*dst, err = fs.GetBool(name)
		}
	}

	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)
	str("tracing-endpoint", &cfg.Tracing.Endpoint)
	str("tracing-protocol", &cfg.Tracing.Protocol)
	str("tracing-service-name", &cfg.Tracing.ServiceName)
	float("tracing-sample-rate", &cfg.Tracing.SampleRate)
	boolean("tracing-insecure", &cfg.Tracing.Insecure)

	// report
	float("apdex-t", &cfg.Report.ApdexT)
	float("percentile-step", &cfg.Report.PercentileStep)
	str("format", &cfg.Report.Format)
	slice("threshold", &cfg.Report.Thresholds)

	// monitor
	str("key", &cfg.Monitor.Key)
	boolean("tls", &cfg.Monitor.TLS)
	boolean("insecure", &cfg.Monitor.Insecure)
	if err == nil && changed(fs, "interval") {
		cfg.Monitor.Interval, err = fs.GetDuration("interval")
	}
	if err == nil && changed(fs, "rpc-timeout") {
		cfg.Monitor.Timeout, err = fs.GetDuration("rpc-timeout")
	}
	if err == nil && changed(fs, "metadata") {
		cfg.Monitor.Metadata, err = fs.GetStringToString("metadata")
	}
	if err == nil && changed(fs, "host") {
		var raw []string
		if raw, err = fs.GetStringSlice("host"); err == nil {
			cfg.Monitor.Hosts, err = parseHosts(raw)
		}
	}

	// agent
	str("listen", &cfg.Agent.Listen)
	str("hostname", &cfg.Agent.Host)
	slice("monitors-enabled", &cfg.Agent.MonitorsEnabled)
	slice("monitors-disabled", &cfg.Agent.MonitorsDisabled)
	str("interface", &cfg.Agent.Interface)
	str("cus-file", &cfg.Agent.CUsFile)

	// "output" and "metrics-addr" exist on both report/monitor and
	// monitor/agent; the flag set tells which command is running.
	if fs.Lookup("host") != nil {
		str("output", &cfg.Monitor.Output)
		str("metrics-addr", &cfg.Monitor.MetricsAddr)
	} else {
		str("output", &cfg.Report.Output)
		str("metrics-addr", &cfg.Agent.MetricsAddr)
	}
	return err
}
