package progress

import (
	"sync"

	"tradesim/internal/metrics"
)

// MetricsReporter feeds run events into the Prometheus collectors. Units
// canceled before they started are counted but never touch the in-flight
// gauge or the duration histogram.
type MetricsReporter struct {
	m *metrics.Metrics

	mu      sync.Mutex
	running map[string]bool
}

func NewMetricsReporter(m *metrics.Metrics) *MetricsReporter {
	return &MetricsReporter{m: m, running: make(map[string]bool)}
}

func (r *MetricsReporter) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.Status == StatusStarted {
		r.running[e.Key()] = true
		r.m.RunsInFlight.Inc()
		return
	}
	switch e.Status {
	case StatusFinished:
		r.m.RunsTotal.WithLabelValues(metrics.StatusOK).Inc()
		r.m.BarsProcessed.Add(float64(e.Bars))
		r.m.TradesTotal.Add(float64(e.Trades))
	case StatusCanceled:
		r.m.RunsTotal.WithLabelValues(metrics.StatusCanceled).Inc()
	default:
		r.m.RunsTotal.WithLabelValues(metrics.StatusFailed).Inc()
	}
	if !r.running[e.Key()] {
		return
	}
	delete(r.running, e.Key())
	r.m.RunsInFlight.Dec()
	r.m.RunDuration.Observe(e.Elapsed.Seconds())
}
