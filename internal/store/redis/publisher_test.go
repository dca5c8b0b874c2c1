package redis

import (
	"context"
	"testing"
	"time"

	"tradesim/internal/runner"
	"tradesim/internal/strategy"
)

// fakeSink fails while down is true.
type fakeSink struct {
	down bool
	got  []string
}

func (f *fakeSink) PublishReport(_ context.Context, r *strategy.Report) error {
	if f.down {
		return errFail
	}
	f.got = append(f.got, r.Asset)
	return nil
}

func report(asset string) *strategy.Report {
	return &strategy.Report{RunID: "r1", Asset: asset, Period: runner.Period{From: 0, To: 99}}
}

func TestKeys(t *testing.T) {
	if got := ReportKey("tradesim", report("ES")); got != "tradesim:report:r1:ES:0-99" {
		t.Errorf("ReportKey = %q", got)
	}
	if got := StreamKey("x"); got != "x:reports" {
		t.Errorf("StreamKey = %q", got)
	}
	if got := ProgressChannel("x"); got != "x:progress" {
		t.Errorf("ProgressChannel = %q", got)
	}
}

func TestBufferedPublisher_BuffersAndFlushes(t *testing.T) {
	sink := &fakeSink{down: true}
	cb, clk := newTestBreaker(2)
	bp := NewBufferedPublisher(sink, cb, 10)
	ctx := context.Background()

	for _, a := range []string{"A", "B", "C"} {
		if err := bp.PublishReport(ctx, report(a)); err != nil {
			t.Fatalf("PublishReport(%s): %v", a, err)
		}
	}
	if bp.Pending() != 3 {
		t.Fatalf("pending = %d, want 3", bp.Pending())
	}
	if cb.CurrentState() != StateOpen {
		t.Fatalf("breaker = %v, want open", cb.CurrentState())
	}

	sink.down = false
	clk.advance(2 * time.Second)
	if err := bp.PublishReport(ctx, report("D")); err != nil {
		t.Fatal(err)
	}
	if bp.Pending() != 0 {
		t.Fatalf("pending after recovery = %d", bp.Pending())
	}
	want := []string{"D", "A", "B", "C"}
	if len(sink.got) != len(want) {
		t.Fatalf("published = %v, want %v", sink.got, want)
	}
	for i := range want {
		if sink.got[i] != want[i] {
			t.Fatalf("published = %v, want %v", sink.got, want)
		}
	}
}

func TestBufferedPublisher_DropsOldest(t *testing.T) {
	sink := &fakeSink{down: true}
	cb, _ := newTestBreaker(1)
	bp := NewBufferedPublisher(sink, cb, 2)
	for _, a := range []string{"A", "B", "C"} {
		bp.PublishReport(context.Background(), report(a))
	}
	if bp.Pending() != 2 || bp.Dropped() != 1 {
		t.Fatalf("pending=%d dropped=%d", bp.Pending(), bp.Dropped())
	}
}
