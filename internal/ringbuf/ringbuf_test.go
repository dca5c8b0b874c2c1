package ringbuf

import (
	"sync"
	"testing"
	"time"
)

type item struct {
	Name  string
	Value int64
}

func TestRing_BasicPushPop(t *testing.T) {
	r := New[item](4) // rounds to 4

	c1 := item{Name: "A", Value: 100}
	c2 := item{Name: "B", Value: 200}

	if !r.Push(c1) {
		t.Fatal("push c1 should succeed")
	}
	if !r.Push(c2) {
		t.Fatal("push c2 should succeed")
	}

	if r.Len() != 2 {
		t.Fatalf("expected len=2, got %d", r.Len())
	}

	got, ok := r.Pop()
	if !ok || got.Name != "A" {
		t.Fatalf("expected A, got %v ok=%v", got.Name, ok)
	}

	got, ok = r.Pop()
	if !ok || got.Name != "B" {
		t.Fatalf("expected B, got %v ok=%v", got.Name, ok)
	}

	_, ok = r.Pop()
	if ok {
		t.Fatal("pop from empty should return false")
	}
}

func TestRing_Overflow(t *testing.T) {
	r := New[item](2) // capacity = 2

	r.Push(item{Name: "1"})
	r.Push(item{Name: "2"})

	// Buffer is full
	ok := r.Push(item{Name: "3"})
	if ok {
		t.Fatal("push to full buffer should return false")
	}
	if r.Overflow() != 1 {
		t.Fatalf("expected overflow=1, got %d", r.Overflow())
	}
}

func TestRing_Wraparound(t *testing.T) {
	r := New[item](4)

	// Fill and drain multiple times to test wraparound
	for round := 0; round < 5; round++ {
		for i := 0; i < 4; i++ {
			if !r.Push(item{Name: "X", Value: int64(round*10 + i)}) {
				t.Fatalf("round %d push %d failed", round, i)
			}
		}
		for i := 0; i < 4; i++ {
			c, ok := r.Pop()
			if !ok {
				t.Fatalf("round %d pop %d failed", round, i)
			}
			if c.Value != int64(round*10+i) {
				t.Fatalf("round %d pop %d: expected value=%d, got %d", round, i, round*10+i, c.Value)
			}
		}
	}
}

func TestRing_SPSC_Concurrent(t *testing.T) {
	const count = 100_000
	r := New[int64](1024)

	var wg sync.WaitGroup
	wg.Add(2)

	// Producer
	go func() {
		defer wg.Done()
		for i := 0; i < count; i++ {
			for !r.Push(int64(i)) {
				// spin-wait (busy loop for test only)
			}
		}
	}()

	// Consumer
	received := make([]int64, 0, count)
	go func() {
		defer wg.Done()
		for len(received) < count {
			v, ok := r.Pop()
			if ok {
				received = append(received, v)
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("SPSC test timed out")
	}

	// Verify ordering
	for i, v := range received {
		if v != int64(i) {
			t.Fatalf("at index %d: expected %d, got %d", i, i, v)
		}
	}
}

func TestRing_NextPow2(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {5, 8}, {7, 8}, {8, 8}, {9, 16}, {1023, 1024},
	}
	for _, tc := range cases {
		got := nextPow2(tc.in)
		if got != tc.want {
			t.Errorf("nextPow2(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestRing_DrainReleasesSlots(t *testing.T) {
	r := New[*item](4)
	r.Push(&item{Name: "a"})
	r.Push(&item{Name: "b"})

	var names []string
	if n := r.Drain(func(it *item) { names = append(names, it.Name) }); n != 2 {
		t.Fatalf("drained %d, want 2", n)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("order %v", names)
	}
	for i, slot := range r.buf {
		if slot != nil {
			t.Fatalf("slot %d still holds a reference", i)
		}
	}
	if r.Cap() != 4 || r.Len() != 0 {
		t.Fatalf("cap=%d len=%d", r.Cap(), r.Len())
	}
}
