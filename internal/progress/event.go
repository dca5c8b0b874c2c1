// Package progress carries per-run progress events from the strategy runner
// to observers: the structured log, Prometheus, and WebSocket clients.
package progress

import (
	"time"
)

// Status is the lifecycle stage an Event reports.
type Status string

const (
	StatusStarted  Status = "started"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Event describes one (asset, period) unit of a batch.
type Event struct {
	RunID   string        `json:"run_id"`
	Asset   string        `json:"asset"`
	From    int           `json:"from"`
	To      int           `json:"to"`
	Unit    int           `json:"unit"`  // 0-based position in the batch
	Units   int           `json:"units"` // batch size
	Status  Status        `json:"status"`
	Bars    int           `json:"bars,omitempty"`
	Trades  int           `json:"trades,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns,omitempty"`
	Err     string        `json:"error,omitempty"`
	Time    time.Time     `json:"time"`
}

// Key identifies the unit an event belongs to.
func (e Event) Key() string {
	return e.RunID + ":" + itoa(e.Unit)
}

// Done reports whether the event closes its unit.
func (e Event) Done() bool { return e.Status != StatusStarted }

// Reporter receives progress events. The runner calls it from a single
// goroutine.
type Reporter interface {
	Report(Event)
}

// Func adapts a function to Reporter.
type Func func(Event)

func (f Func) Report(e Event) { f(e) }

// Multi fans an event out to several reporters in order.
type Multi []Reporter

func (m Multi) Report(e Event) {
	for _, r := range m {
		if r != nil {
			r.Report(e)
		}
	}
}

// Discard drops every event.
var Discard Reporter = Func(func(Event) {})

// TradeCounter is implemented by run results that can report how many
// trades they closed.
type TradeCounter interface {
	TradeCount() int
}

// itoa converts int to string without importing strconv.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	buf := [20]byte{}
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
