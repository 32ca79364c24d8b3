package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/crankmeter/internal/metrics"
)

// Keys every record carries besides plugin metrics.
const (
	KeyTime = "time"
	KeyHost = "host"
)

// Options configures an Agent.
type Options struct {
	// Host names this agent in records. Empty means os.Hostname.
	Host      string
	Plugins   []Plugin
	Selection Selection
	Logger    *zap.Logger
	// Metrics receives plugin failure counts. Nil disables them.
	Metrics *metrics.Prometheus
	// Now stamps records. Nil means time.Now.
	Now func() time.Time
}

func (o Options) normalize() (Options, error) {
	if o.Host == "" {
		host, err := os.Hostname()
		if err != nil {
			return o, fmt.Errorf("resolve host name: %w", err)
		}
		o.Host = host
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o, nil
}

// Agent answers monitor requests for one host.
type Agent struct {
	host    string
	plugins []Plugin
	logger  *zap.Logger
	metrics *metrics.Prometheus
	now     func() time.Time
}

// New builds an agent from the selected plugins.
func New(opts Options) (*Agent, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}
	plugins, unknown, err := opts.Selection.Apply(opts.Plugins)
	if err != nil {
		return nil, err
	}
	if len(unknown) > 0 {
		opts.Logger.Warn("selection names unknown monitors", zap.Strings("monitors", unknown))
	}

	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name()
	}
	opts.Logger.Info("monitor agent ready", zap.String("host", opts.Host), zap.Strings("monitors", names))

	return &Agent{
		host:    opts.Host,
		plugins: plugins,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
	}, nil
}

// Host returns the host name stamped on records.
func (a *Agent) Host() string { return a.host }

// Plugins returns the names of the active plugins, in registration order.
func (a *Agent) Plugins() []string {
	names := make([]string, len(a.plugins))
	for i, p := range a.plugins {
		names[i] = p.Name()
	}
	return names
}

// GetRecord reads every plugin once. A plugin that fails contributes nothing
// to this record; the rest are unaffected. time and host are set last and
// cannot be overridden by a plugin.
func (a *Agent) GetRecord(ctx context.Context) map[string]string {
	record := make(map[string]string)
	for _, p := range a.plugins {
		stats, err := stat(ctx, p)
		if err != nil {
			a.logger.Warn("monitor plugin failed", zap.String("plugin", p.Name()), zap.Error(err))
			if a.metrics != nil {
				a.metrics.PluginErrors.WithLabelValues(p.Name()).Inc()
			}
			continue
		}
		for k, v := range stats {
			record[k] = v
		}
	}
	record[KeyTime] = FormatTime(a.now())
	record[KeyHost] = a.host
	return record
}

// stat reads p, reporting a panic inside the plugin as an error.
func stat(ctx context.Context, p Plugin) (stats map[string]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			stats, err = nil, fmt.Errorf("plugin panic: %v", r)
		}
	}()
	return p.Stat(ctx)
}

// GetMonitorsConfig returns the serialized plot configuration of every plugin
// that has one.
func (a *Agent) GetMonitorsConfig(context.Context) map[string]string {
	configs := make(map[string]string)
	for _, p := range a.plugins {
		c, ok := p.(Configurable)
		if !ok {
			continue
		}
		data, err := c.Config()
		if err != nil {
			a.logger.Warn("encode monitor config", zap.String("plugin", p.Name()), zap.Error(err))
			continue
		}
		if len(data) > 0 {
			configs[p.Name()] = string(data)
		}
	}
	return configs
}

// Configure restores plot configuration keyed by plugin name. Entries for
// plugins that are not active are ignored.
func (a *Agent) Configure(configs map[string]string) error {
	var errs []error
	for _, p := range a.plugins {
		raw, ok := configs[p.Name()]
		if !ok {
			continue
		}
		c, ok := p.(Configurable)
		if !ok {
			continue
		}
		if err := c.SetConfig([]byte(raw)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// FormatTime renders t as fractional unix seconds, the form used in logs.
func FormatTime(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 6, 64)
}
