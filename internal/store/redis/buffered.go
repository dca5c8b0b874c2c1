package redis

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"tradesim/internal/strategy"
)

const defaultMaxPending = 1000

// ReportPublisher is satisfied by *Publisher.
type ReportPublisher interface {
	PublishReport(ctx context.Context, r *strategy.Report) error
}

// BufferedPublisher sends reports through a circuit breaker. Reports that
// fail or meet an open breaker are kept and retried on the next successful
// publish or an explicit Flush. When the buffer is full the oldest report is
// dropped.
type BufferedPublisher struct {
	pub ReportPublisher
	cb  *CircuitBreaker

	mu      sync.Mutex
	pending []*strategy.Report
	max     int
	dropped int
}

// NewBufferedPublisher wraps pub. maxPending <= 0 uses 1000.
func NewBufferedPublisher(pub ReportPublisher, cb *CircuitBreaker, maxPending int) *BufferedPublisher {
	if maxPending <= 0 {
		maxPending = defaultMaxPending
	}
	return &BufferedPublisher{pub: pub, cb: cb, max: maxPending}
}

// PublishReport publishes r, buffering it on failure. It returns nil when
// r was buffered; only context errors are returned.
func (bp *BufferedPublisher) PublishReport(ctx context.Context, r *strategy.Report) error {
	err := bp.cb.Execute(func() error { return bp.pub.PublishReport(ctx, r) })
	switch {
	case err == nil:
		bp.Flush(ctx)
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		bp.buffer(r)
		return err
	default:
		if !errors.Is(err, ErrCircuitOpen) {
			slog.Warn("redis report buffered", "asset", r.Asset, "error", err)
		}
		bp.buffer(r)
		return nil
	}
}

func (bp *BufferedPublisher) buffer(r *strategy.Report) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if len(bp.pending) >= bp.max {
		bp.pending = bp.pending[1:]
		bp.dropped++
	}
	bp.pending = append(bp.pending, r)
}

// Flush retries buffered reports in order, stopping at the first failure.
// It returns how many were published.
func (bp *BufferedPublisher) Flush(ctx context.Context) int {
	bp.mu.Lock()
	todo := bp.pending
	bp.pending = nil
	bp.mu.Unlock()

	sent := 0
	for i, r := range todo {
		if err := bp.cb.Execute(func() error { return bp.pub.PublishReport(ctx, r) }); err != nil {
			bp.mu.Lock()
			bp.pending = append(todo[i:len(todo):len(todo)], bp.pending...)
			bp.mu.Unlock()
			break
		}
		sent++
	}
	if sent > 0 {
		slog.Info("redis flushed buffered reports", "count", sent)
	}
	return sent
}

// Pending returns the number of buffered reports.
func (bp *BufferedPublisher) Pending() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return len(bp.pending)
}

// Dropped returns how many reports were discarded because the buffer was
// full.
func (bp *BufferedPublisher) Dropped() int {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.dropped
}
