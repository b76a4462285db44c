package sink

import (
	"context"
	"log"
	"sync"
	"time"

	"route-simulator/internal/geo"
)

// Position is one emitted playback sample.
type Position struct {
	Target    string    `json:"target"`
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Progress  float64   `json:"progress"`
	SpeedMps  float64   `json:"speedMps"`
}

// Sink receives positions for one target. Implementations must be safe
// for concurrent use.
type Sink interface {
	Deliver(ctx context.Context, target string, pos Position) error
}

// SinkMetrics decouples delivery instrumentation from concrete sinks.
type SinkMetrics interface {
	DeliveredInc()
	DeliveryErrInc()
	DeliverObserve(d time.Duration)
	SinkSetConnected(connected bool)
}

const targetQueueSize = 64

// Dispatcher fans positions out to every configured target. Each
// target gets its own worker goroutine and buffered queue, so
// deliveries stay in path order per target while a slow or failing
// target can never block the playback loop or the other targets.
type Dispatcher struct {
	sink    Sink
	metrics SinkMetrics
	queues  map[string]chan Position
	targets []string

	wg      sync.WaitGroup
	closeMu sync.RWMutex
	closed  bool
}

func NewDispatcher(s Sink, targets []string, m SinkMetrics) *Dispatcher {
	d := &Dispatcher{
		sink:    s,
		metrics: m,
		queues:  make(map[string]chan Position, len(targets)),
		targets: targets,
	}
	for _, target := range targets {
		ch := make(chan Position, targetQueueSize)
		d.queues[target] = ch
		d.wg.Add(1)
		go d.worker(target, ch)
	}
	return d
}

// Dispatch enqueues pos for all targets and returns immediately. When
// a target's queue is full the sample is dropped for that target;
// delivery is best-effort with no retry. Dispatch after Close is a
// no-op.
func (d *Dispatcher) Dispatch(pt geo.Point, progress, speedMps float64) {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		return
	}
	now := time.Now()
	for _, target := range d.targets {
		pos := Position{
			Target:    target,
			Timestamp: now,
			Lat:       pt.Lat,
			Lon:       pt.Lon,
			Progress:  progress,
			SpeedMps:  speedMps,
		}
		select {
		case d.queues[target] <- pos:
		default:
			log.Printf("delivery queue full for %s, dropping position", target)
		}
	}
}

func (d *Dispatcher) worker(target string, ch <-chan Position) {
	defer d.wg.Done()
	for pos := range ch {
		start := time.Now()
		err := d.sink.Deliver(context.Background(), target, pos)
		if d.metrics != nil {
			d.metrics.DeliverObserve(time.Since(start))
			if err != nil {
				d.metrics.DeliveryErrInc()
			} else {
				d.metrics.DeliveredInc()
			}
		}
		if err != nil {
			log.Printf("delivery to %s failed: %v", target, err)
		}
	}
}

// Close drains the target queues and joins the workers. Shutdown only;
// the playback loop never awaits deliveries.
func (d *Dispatcher) Close() {
	d.closeMu.Lock()
	if !d.closed {
		d.closed = true
		for _, ch := range d.queues {
			close(ch)
		}
	}
	d.closeMu.Unlock()
	d.wg.Wait()
}
