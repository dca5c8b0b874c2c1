package progress

import (
	"log/slog"
)

// LogReporter writes one structured log line per event.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter logs through l, or the default logger when l is nil.
func NewLogReporter(l *slog.Logger) *LogReporter {
	if l == nil {
		l = slog.Default()
	}
	return &LogReporter{logger: l}
}

func (r *LogReporter) Report(e Event) {
	attrs := []any{
		slog.String("run_id", e.RunID),
		slog.String("asset", e.Asset),
		slog.Int("from", e.From),
		slog.Int("to", e.To),
		slog.Int("unit", e.Unit+1),
		slog.Int("units", e.Units),
	}
	switch e.Status {
	case StatusStarted:
		r.logger.Debug("run started", attrs...)
	case StatusFinished:
		attrs = append(attrs,
			slog.Int("bars", e.Bars),
			slog.Int("trades", e.Trades),
			slog.Duration("elapsed", e.Elapsed),
		)
		r.logger.Info("run finished", attrs...)
	default:
		attrs = append(attrs, slog.String("status", string(e.Status)), slog.String("err", e.Err))
		r.logger.Warn("run failed", attrs...)
	}
}
