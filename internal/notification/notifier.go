// Package notification delivers batch alerts to external channels.
package notification

import (
	"context"
	"fmt"
	"log/slog"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	RunID   string     `json:"run_id,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to a structured logger.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a log-based notifier. A nil logger uses slog.Default().
func NewLogNotifier(l *slog.Logger) *LogNotifier {
	if l == nil {
		l = slog.Default()
	}
	return &LogNotifier{log: l}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	lvl := slog.LevelInfo
	switch alert.Level {
	case AlertWarning:
		lvl = slog.LevelWarn
	case AlertCritical:
		lvl = slog.LevelError
	}
	n.log.Log(ctx, lvl, alert.Title, "message", alert.Message, "run_id", alert.RunID)
	return nil
}

// BatchStats summarizes a finished batch for BatchAlert.
type BatchStats struct {
	RunID     string
	Strategy  string
	Units     int
	Failed    int
	Trades    int
	NetProfit float64
}

// BatchAlert builds the completion alert of a batch. Any failed unit makes
// it a warning; a batch where every unit failed is critical.
func BatchAlert(s BatchStats) Alert {
	a := Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("backtest %s finished", s.Strategy),
		Message: fmt.Sprintf("%d/%d units ok, %d trades, net profit %.2f",
			s.Units-s.Failed, s.Units, s.Trades, s.NetProfit),
		RunID: s.RunID,
	}
	switch {
	case s.Units > 0 && s.Failed == s.Units:
		a.Level = AlertCritical
		a.Title = fmt.Sprintf("backtest %s failed", s.Strategy)
	case s.Failed > 0:
		a.Level = AlertWarning
	}
	return a
}

// Multi sends to every notifier and returns the first error.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var first error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil && first == nil {
			first = err
		}
	}
	return first
}
