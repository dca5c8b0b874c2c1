package progress

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"tradesim/internal/metrics"
)

func TestMulti_FansOut(t *testing.T) {
	var a, b []Status
	m := Multi{
		Func(func(e Event) { a = append(a, e.Status) }),
		nil,
		Func(func(e Event) { b = append(b, e.Status) }),
	}
	m.Report(Event{Status: StatusStarted})
	m.Report(Event{Status: StatusFinished})
	if len(a) != 2 || len(b) != 2 || a[1] != StatusFinished {
		t.Fatalf("a=%v b=%v", a, b)
	}
	Discard.Report(Event{})
}

func TestEvent_KeyAndDone(t *testing.T) {
	e := Event{RunID: "r1", Unit: 12, Status: StatusStarted}
	if e.Key() != "r1:12" || e.Done() {
		t.Fatalf("key=%q done=%v", e.Key(), e.Done())
	}
	e.Status = StatusFailed
	if !e.Done() {
		t.Fatal("failed should be done")
	}
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewLogReporter(l)
	r.Report(Event{RunID: "r", Asset: "AAA", Status: StatusFinished, Bars: 10, Trades: 2})
	r.Report(Event{RunID: "r", Asset: "BBB", Status: StatusFailed, Err: "boom"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %s", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["msg"] != "run finished" || rec["asset"] != "AAA" || rec["trades"] != float64(2) {
		t.Fatalf("record %v", rec)
	}
	if !strings.Contains(lines[1], `"err":"boom"`) {
		t.Fatalf("failure line %s", lines[1])
	}
}

func TestMetricsReporter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r := NewMetricsReporter(m)

	r.Report(Event{Status: StatusStarted})
	r.Report(Event{Status: StatusFinished, Bars: 100, Trades: 4, Elapsed: time.Millisecond})
	r.Report(Event{Status: StatusStarted})
	r.Report(Event{Status: StatusFailed})
	// canceled before dispatch: counted, never in flight
	r.Report(Event{Unit: 5, Status: StatusCanceled})

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	values := map[string]float64{}
	for _, mf := range families {
		for _, mm := range mf.GetMetric() {
			switch {
			case mm.GetCounter() != nil:
				values[mf.GetName()] += mm.GetCounter().GetValue()
			case mm.GetGauge() != nil:
				values[mf.GetName()] = mm.GetGauge().GetValue()
			}
		}
	}
	if values["tradesim_runs_total"] != 3 || values["tradesim_bars_processed_total"] != 100 ||
		values["tradesim_trades_total"] != 4 || values["tradesim_runs_in_flight"] != 0 {
		t.Fatalf("values %v", values)
	}
}

func TestHub_Overflow(t *testing.T) {
	h := NewHub(2)
	dropped := 0
	h.OnOverflow = func() { dropped++ }
	for i := 0; i < 3; i++ {
		h.Report(Event{Unit: i})
	}
	if dropped != 1 || h.Overflow() != 1 {
		t.Fatalf("dropped=%d overflow=%d", dropped, h.Overflow())
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var e Event
	if err := json.Unmarshal(msg, &e); err != nil {
		t.Fatalf("decode %s: %v", msg, err)
	}
	return e
}

func TestHub_BroadcastAndSnapshot(t *testing.T) {
	h := NewHub(64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// wait for registration before reporting
	deadline := time.Now().Add(3 * time.Second)
	for h.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	h.Report(Event{RunID: "r", Asset: "AAA", Unit: 0, Units: 1, Status: StatusStarted})
	h.Report(Event{RunID: "r", Asset: "AAA", Unit: 0, Units: 1, Status: StatusFinished, Bars: 5})

	if e := readEvent(t, conn); e.Status != StatusStarted || e.Asset != "AAA" {
		t.Fatalf("first event %+v", e)
	}
	if e := readEvent(t, conn); e.Status != StatusFinished || e.Bars != 5 {
		t.Fatalf("second event %+v", e)
	}

	// a late client gets the latest state of every unit
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer late.Close()
	if e := readEvent(t, late); e.Status != StatusFinished {
		t.Fatalf("snapshot %+v", e)
	}
}
