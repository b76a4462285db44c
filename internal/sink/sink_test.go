package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"route-simulator/internal/geo"
)

// fanoutSink records deliveries per target and can be told to fail a
// target unconditionally.
type fanoutSink struct {
	mu      sync.Mutex
	got     map[string][]Position
	failing map[string]bool
}

func newFanoutSink(failing ...string) *fanoutSink {
	f := &fanoutSink{got: make(map[string][]Position), failing: make(map[string]bool)}
	for _, t := range failing {
		f.failing[t] = true
	}
	return f
}

func (f *fanoutSink) Deliver(_ context.Context, target string, pos Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[target] {
		return errors.New("target unreachable")
	}
	f.got[target] = append(f.got[target], pos)
	return nil
}

type countingMetrics struct {
	mu        sync.Mutex
	delivered int
	errs      int
}

func (c *countingMetrics) DeliveredInc() {
	c.mu.Lock()
	c.delivered++
	c.mu.Unlock()
}

func (c *countingMetrics) DeliveryErrInc() {
	c.mu.Lock()
	c.errs++
	c.mu.Unlock()
}

func (c *countingMetrics) DeliverObserve(time.Duration) {}
func (c *countingMetrics) SinkSetConnected(bool)        {}

func TestDispatcherFansOutInOrder(t *testing.T) {
	s := newFanoutSink()
	d := NewDispatcher(s, []string{"a", "b"}, nil)

	for i := 0; i < 5; i++ {
		d.Dispatch(geo.Point{Lat: float64(i)}, float64(i)/4, 10)
	}
	d.Close()

	for _, target := range []string{"a", "b"} {
		got := s.got[target]
		if len(got) != 5 {
			t.Fatalf("target %s received %d positions, want 5", target, len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i].Progress <= got[i-1].Progress {
				t.Fatalf("target %s deliveries out of order at %d", target, i)
			}
		}
		if got[0].Target != target {
			t.Fatalf("position carries target %q, want %q", got[0].Target, target)
		}
	}
}

func TestDispatcherIsolatesFailingTarget(t *testing.T) {
	s := newFanoutSink("bad")
	m := &countingMetrics{}
	d := NewDispatcher(s, []string{"good", "bad"}, m)

	for i := 0; i < 3; i++ {
		d.Dispatch(geo.Point{Lat: float64(i)}, float64(i)/2, 10)
	}
	d.Close()

	if len(s.got["good"]) != 3 {
		t.Fatalf("healthy target received %d positions, want 3", len(s.got["good"]))
	}
	if m.delivered != 3 {
		t.Fatalf("delivered count = %d, want 3", m.delivered)
	}
	if m.errs != 3 {
		t.Fatalf("error count = %d, want 3", m.errs)
	}
}

func TestDispatcherCloseIsIdempotent(t *testing.T) {
	d := NewDispatcher(newFanoutSink(), []string{"a"}, nil)
	d.Close()
	d.Close()
}

func TestDispatchAfterCloseIsNoOp(t *testing.T) {
	s := newFanoutSink()
	d := NewDispatcher(s, []string{"a"}, nil)
	d.Dispatch(geo.Point{}, 0, 10)
	d.Close()
	// Must neither panic nor enqueue once closed.
	d.Dispatch(geo.Point{Lat: 1}, 0.5, 10)
	if got := len(s.got["a"]); got != 1 {
		t.Fatalf("target received %d positions, want 1", got)
	}
}

func TestDispatchConcurrentWithClose(t *testing.T) {
	s := newFanoutSink()
	d := NewDispatcher(s, []string{"a"}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			d.Dispatch(geo.Point{}, float64(i)/99, 10)
		}
	}()
	d.Close()
	wg.Wait()
}
