package monitor

import (
	"context"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/torosent/crankmeter/internal/agent"
	"github.com/torosent/crankmeter/internal/metrics"
	"github.com/torosent/crankmeter/internal/monitorrpc"
	"github.com/torosent/crankmeter/internal/tracing"
)

// Stages at which a host can be excluded.
const (
	StageDial      = "dial"
	StageHandshake = "handshake"
	StagePoll      = "poll"
)

// Target is one agent to poll.
type Target struct {
	// Name labels the host in the log.
	Name    string
	Address string
}

// Fetcher is the client side of the monitor RPC. *grpcclient.Client implements it.
type Fetcher interface {
	GetRecord(ctx context.Context) (map[string]string, error)
	GetMonitorsConfig(ctx context.Context) (map[string]string, error)
	Close() error
}

// Dialer connects to one target.
type Dialer func(t Target) (Fetcher, error)

type poller struct {
	target    Target
	fetcher   Fetcher
	queue     *Queue[Record]
	interval  time.Duration
	key       func() string
	logger    *zap.Logger
	metrics   *metrics.Prometheus
	latency   *metrics.Collector
	tracer    trace.Tracer
	propagate bool
	now       func() time.Time
}

// handshake fetches plot configuration and queues it. An agent without the
// method is accepted with no configuration.
func (p *poller) handshake(ctx context.Context) error {
	configs, err := p.call(ctx, monitorrpc.MethodGetMonitorsConfig, p.fetcher.GetMonitorsConfig)
	if status.Code(err) == codes.Unimplemented {
		p.logger.Debug("agent has no monitor configuration", zap.String("host", p.target.Name))
		return nil
	}
	if err != nil {
		return err
	}

	plugins := make([]string, 0, len(configs))
	for name := range configs {
		plugins = append(plugins, name)
	}
	sort.Strings(plugins)
	for _, name := range plugins {
		p.queue.Put(Record{Kind: KindConfig, Host: p.target.Name, Plugin: name, Config: configs[name]})
	}
	return nil
}

// run samples the agent once per interval until ctx is cancelled. It returns
// the first RPC error that is not caused by cancellation.
func (p *poller) run(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Every(p.interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		data, err := p.call(ctx, monitorrpc.MethodGetRecord, p.fetcher.GetRecord)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		p.enqueue(data)
	}
}

func (p *poller) enqueue(data map[string]string) {
	if data == nil {
		data = make(map[string]string, 2)
	}
	data[agent.KeyHost] = p.target.Name
	if _, ok := data[agent.KeyTime]; !ok {
		data[agent.KeyTime] = agent.FormatTime(p.now())
	}
	if key := p.key(); key != "" {
		data["key"] = key
	}
	p.queue.Put(Record{Kind: KindSample, Host: p.target.Name, Data: data})
	if p.metrics != nil {
		p.metrics.Samples.WithLabelValues(p.target.Name).Inc()
		p.metrics.QueueDepth.Set(float64(p.queue.Len()))
	}
}

func (p *poller) call(ctx context.Context, method string, fn func(context.Context) (map[string]string, error)) (map[string]string, error) {
	ctx, span := tracing.StartCallSpan(ctx, p.tracer, p.target.Name, method)
	if p.propagate {
		ctx = tracing.OutgoingContext(ctx)
	}
	start := time.Now()
	data, err := fn(ctx)
	elapsed := time.Since(start)
	tracing.EndSpan(span, err)

	if p.latency != nil {
		p.latency.RecordCall(elapsed, err)
	}
	if err != nil && p.metrics != nil && ctx.Err() == nil {
		p.metrics.PollErrors.WithLabelValues(p.target.Name, status.Code(err).String()).Inc()
	}
	return data, err
}
