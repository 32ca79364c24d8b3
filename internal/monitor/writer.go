package monitor

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/crankmeter/internal/metrics"
)

// pollTimeout bounds each wait of the writer so it notices stop promptly.
const pollTimeout = 2 * time.Second

type writer struct {
	queue   *Queue[Record]
	sink    Sink
	logger  *zap.Logger
	metrics *metrics.Prometheus
	stop    chan struct{}
	done    chan error
}

func newWriter(q *Queue[Record], sink Sink, logger *zap.Logger, m *metrics.Prometheus) *writer {
	return &writer{
		queue:   q,
		sink:    sink,
		logger:  logger,
		metrics: m,
		stop:    make(chan struct{}),
		done:    make(chan error, 1),
	}
}

func (w *writer) start() {
	go func() { w.done <- w.run() }()
}

// run writes records until stop is closed and the queue is empty, then
// finalises the log.
func (w *writer) run() error {
	for {
		rec, ok := w.queue.Get(pollTimeout)
		if ok {
			w.write(rec)
			w.queue.Done()
			continue
		}
		select {
		case <-w.stop:
			if w.queue.Len() > 0 {
				continue
			}
			if err := w.sink.EndLog(); err != nil {
				return fmt.Errorf("finalise monitor log: %w", err)
			}
			return nil
		default:
		}
	}
}

func (w *writer) write(rec Record) {
	var err error
	switch rec.Kind {
	case KindConfig:
		err = w.sink.MonitorConfig(rec.Host, rec.Plugin, rec.Config)
	case KindSample:
		err = w.sink.Monitor(rec.Data)
	default:
		err = fmt.Errorf("unknown record kind %d", rec.Kind)
	}
	if err != nil {
		w.logger.Error("write monitor record", zap.String("host", rec.Host), zap.Stringer("kind", rec.Kind), zap.Error(err))
		return
	}
	if w.metrics != nil {
		w.metrics.Written.Inc()
		w.metrics.QueueDepth.Set(float64(w.queue.Len()))
	}
}

// shutdown stops the writer and waits for it to finalise the log.
func (w *writer) shutdown() error {
	close(w.stop)
	w.queue.Close()
	return <-w.done
}
