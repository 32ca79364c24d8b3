package monitor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/torosent/crankmeter/internal/grpcclient"
	"github.com/torosent/crankmeter/internal/metrics"
	"github.com/torosent/crankmeter/internal/xmllog"
)

// ErrNoHosts is returned by Start when there is nothing to poll.
var ErrNoHosts = errors.New("no monitor hosts configured")

// HeaderSink is a Sink that also takes run configuration entries.
type HeaderSink interface {
	Sink
	Config(key, value, ns string) error
}

// Options configures a Collector.
type Options struct {
	Hosts    []Target
	Interval time.Duration
	// Path is the monitor log, opened with xmllog.OpenStats. Ignored when Sink is set.
	Path string
	Sink HeaderSink
	// Client is the template for the default dialer; Target is set per host.
	Client grpcclient.Config
	Dial   Dialer
	// Key tags every sample until SetMonitorKey changes it.
	Key     string
	Version string
	// Config holds extra entries written to the log header.
	Config map[string]string

	Logger    *zap.Logger
	Metrics   *metrics.Prometheus
	Latency   *metrics.Hosts
	Tracer    trace.Tracer
	Propagate bool
	Now       func() time.Time
}

func (o Options) normalize() Options {
	if o.Interval <= 0 {
		o.Interval = 500 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("monitor")
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Dial == nil {
		tmpl := o.Client
		o.Dial = func(t Target) (Fetcher, error) {
			cfg := tmpl
			cfg.Target = t.Address
			return grpcclient.NewClient(cfg)
		}
	}
	return o
}

// Collector polls a set of agents and logs their samples until closed.
type Collector struct {
	opts   Options
	runID  string
	queue  *Queue[Record]
	writer *writer
	key    atomic.Pointer[string]
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	fetchers []Fetcher
	excluded map[string]string

	closeOnce sync.Once
	closeErr  error
}

// Start opens the log, writes its header and starts one poller per host. It
// returns once polling has begun; hosts that cannot be reached are excluded
// in the background.
func Start(ctx context.Context, opts Options) (*Collector, error) {
	if len(opts.Hosts) == 0 {
		return nil, ErrNoHosts
	}
	opts = opts.normalize()

	sink := opts.Sink
	if sink == nil {
		stats, err := xmllog.OpenStats(opts.Path, xmllog.Options{Version: opts.Version, LoadTime: opts.Now(), Now: opts.Now})
		if err != nil {
			return nil, fmt.Errorf("open monitor log: %w", err)
		}
		if err := stats.StartLog(nil); err != nil {
			return nil, errors.Join(fmt.Errorf("start monitor log: %w", err), stats.Close())
		}
		sink = stats
	}

	c := &Collector{
		opts:     opts,
		runID:    ulid.Make().String(),
		queue:    NewQueue[Record](),
		excluded: make(map[string]string),
	}
	c.key.Store(&opts.Key)

	if err := c.writeHeader(sink); err != nil {
		return nil, errors.Join(err, sink.EndLog())
	}

	c.writer = newWriter(c.queue, sink, opts.Logger, opts.Metrics)
	c.writer.start()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	for _, t := range opts.Hosts {
		c.wg.Add(1)
		go c.poll(runCtx, t)
	}
	opts.Logger.Info("monitoring started",
		zap.String("run_id", c.runID),
		zap.Int("hosts", len(opts.Hosts)),
		zap.Duration("interval", opts.Interval))
	return c, nil
}

func (c *Collector) writeHeader(sink HeaderSink) error {
	names := make([]string, len(c.opts.Hosts))
	for i, t := range c.opts.Hosts {
		names[i] = t.Name
	}
	header := map[string]string{
		"run_id":   c.runID,
		"interval": strconv.FormatFloat(c.opts.Interval.Seconds(), 'f', -1, 64),
		"hosts":    strings.Join(names, " "),
	}
	for k, v := range c.opts.Config {
		header[k] = v
	}
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := sink.Config(k, header[k], ""); err != nil {
			return fmt.Errorf("write monitor header: %w", err)
		}
	}
	return nil
}

func (c *Collector) poll(ctx context.Context, t Target) {
	defer c.wg.Done()
	logger := c.opts.Logger.With(zap.String("host", t.Name), zap.String("addr", t.Address))

	fetcher, err := c.opts.Dial(t)
	if err != nil {
		c.exclude(t, StageDial, err, logger)
		return
	}
	c.mu.Lock()
	c.fetchers = append(c.fetchers, fetcher)
	c.mu.Unlock()

	p := &poller{
		target:    t,
		fetcher:   fetcher,
		queue:     c.queue,
		interval:  c.opts.Interval,
		key:       c.MonitorKey,
		logger:    logger,
		metrics:   c.opts.Metrics,
		tracer:    c.opts.Tracer,
		propagate: c.opts.Propagate,
		now:       c.opts.Now,
	}
	if c.opts.Latency != nil {
		p.latency = c.opts.Latency.For(t.Name)
	}

	if err := p.handshake(ctx); err != nil {
		if ctx.Err() == nil {
			c.exclude(t, StageHandshake, err, logger)
		}
		return
	}
	logger.Debug("polling host")
	if err := p.run(ctx); err != nil {
		c.exclude(t, StagePoll, err, logger)
	}
}

func (c *Collector) exclude(t Target, stage string, err error, logger *zap.Logger) {
	logger.Warn("host excluded from monitoring", zap.String("stage", stage), zap.Error(err))
	c.mu.Lock()
	c.excluded[t.Name] = stage
	c.mu.Unlock()
	if c.opts.Metrics != nil {
		c.opts.Metrics.ExcludedHosts.WithLabelValues(t.Name, stage).Inc()
	}
}

// RunID identifies this run in the log header.
func (c *Collector) RunID() string { return c.runID }

// SetMonitorKey tags samples taken from now on with key. An empty key stops tagging.
func (c *Collector) SetMonitorKey(key string) {
	c.key.Store(&key)
}

func (c *Collector) MonitorKey() string {
	return *c.key.Load()
}

// Excluded returns the hosts no longer polled, mapped to the stage that
// dropped them.
func (c *Collector) Excluded() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.excluded))
	for k, v := range c.excluded {
		out[k] = v
	}
	return out
}

// Close stops every poller, waits until all queued records are written, and
// finalises the log. It is safe to call more than once.
func (c *Collector) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()
		c.queue.Join()
		werr := c.writer.shutdown()

		c.mu.Lock()
		fetchers := c.fetchers
		c.fetchers = nil
		c.mu.Unlock()
		errs := []error{werr}
		for _, f := range fetchers {
			if err := f.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		c.closeErr = errors.Join(errs...)
		c.opts.Logger.Info("monitoring stopped", zap.String("run_id", c.runID))
	})
	return c.closeErr
}
