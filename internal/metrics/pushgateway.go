// Package metrics implements the fire-and-forget metric sink on a Prometheus
// Pushgateway. Push failures are logged and never surface to callers.
package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

const job = "smooth_trade"

// PushSink collects gauges named at runtime and pushes the whole set to a
// Pushgateway. PushMetric returns immediately; a background loop coalesces
// updates and pushes at a fixed interval so a burst of metric writes costs
// one HTTP request.
type PushSink struct {
	pusher   *push.Pusher
	registry *prometheus.Registry
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	gauges map[string]prometheus.Gauge
	dirty  chan struct{}
}

// NewPushSink creates a PushSink targeting the given Pushgateway URL.
func NewPushSink(url string, interval time.Duration, logger *slog.Logger) *PushSink {
	registry := prometheus.NewRegistry()
	return &PushSink{
		pusher:   push.New(url, job).Gatherer(registry),
		registry: registry,
		interval: interval,
		logger:   logger.With(slog.String("component", "metrics")),
		gauges:   make(map[string]prometheus.Gauge),
		dirty:    make(chan struct{}, 1),
	}
}

// PushMetric records the latest value for name. The gauge is created on first
// use; the push itself happens on the background loop.
func (s *PushSink) PushMetric(name string, value float64) {
	s.mu.Lock()
	g, ok := s.gauges[name]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{Name: name})
		if err := s.registry.Register(g); err != nil {
			s.mu.Unlock()
			s.logger.Warn("metric registration failed",
				slog.String("metric", name),
				slog.Any("error", err))
			return
		}
		s.gauges[name] = g
	}
	g.Set(value)
	s.mu.Unlock()

	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// Run pushes pending updates until ctx is cancelled, then makes a final push
// so the last values survive shutdown.
func (s *PushSink) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flush()
			return ctx.Err()
		case <-ticker.C:
		case <-s.dirty:
		}
		s.flush()
	}
}

func (s *PushSink) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.pusher.PushContext(ctx); err != nil {
		s.logger.Warn("metric push failed", slog.Any("error", err))
	}
}

// NopSink discards every metric. Used when no Pushgateway is configured.
type NopSink struct{}

func (NopSink) PushMetric(string, float64) {}

// Compile-time interface checks.
var (
	_ domain.MetricSink = (*PushSink)(nil)
	_ domain.MetricSink = NopSink{}
)
