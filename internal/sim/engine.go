package sim

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"route-simulator/internal/geo"
	"route-simulator/internal/metrics"
	"route-simulator/internal/route"
	"route-simulator/internal/sink"
)

// DefaultMinStepDelay floors per-step waits so closely spaced or
// duplicate points never produce degenerate zero delays.
const DefaultMinStepDelay = 50 * time.Millisecond

// Engine owns one simulation session and drives it through time. The
// active scheduler goroutine is the single writer of index/position;
// lifecycle transitions (load/pause/stop/reset) always join the
// scheduler before mutating, so two writers never race.
type Engine struct {
	dispatcher   *sink.Dispatcher
	collector    *metrics.Collector
	speed        *atomic.Float64
	minStepDelay time.Duration

	mu     sync.Mutex
	sess   session
	cancel context.CancelFunc
	done   chan struct{}
}

func NewEngine(d *sink.Dispatcher, speedMps float64, minStepDelay time.Duration, col *metrics.Collector) *Engine {
	if speedMps <= 0 {
		speedMps = 1
	}
	if minStepDelay <= 0 {
		minStepDelay = DefaultMinStepDelay
	}
	return &Engine{
		dispatcher:   d,
		collector:    col,
		speed:        atomic.NewFloat64(speedMps),
		minStepDelay: minStepDelay,
	}
}

// Load installs a composed route and moves the session to Ready.
// Rejected while a scheduler is active (Running or Paused) and for
// paths shorter than two points; on rejection the session keeps
// whatever route it held before. The last known position survives a
// load; only Reset clears it.
func (e *Engine) Load(path []geo.Point, m route.Metrics) bool {
	if len(path) < 2 {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.sess.state {
	case Running, Paused:
		return false
	}
	p := make([]geo.Point, len(path))
	copy(p, path)
	e.sess.path = p
	e.sess.metrics = m
	e.sess.index = 0
	e.sess.state = Ready
	return true
}

// Start begins playback from index 0. A no-op unless the session is
// Ready, so starting twice never spawns a second scheduler.
func (e *Engine) Start(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.state != Ready {
		return false
	}
	e.startLocked(ctx, 0, true)
	return true
}

// Pause cancels the scheduler and freezes the session at the last
// committed step. Blocks until the scheduler has fully stopped
// touching shared state. Returns false if nothing was running (or the
// playback completed before the cancellation was observed).
func (e *Engine) Pause() bool {
	e.mu.Lock()
	if e.sess.state != Running {
		e.mu.Unlock()
		return false
	}
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	<-done

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.state != Running || e.done != done {
		// Either the run completed before the cancellation landed, or
		// a concurrent stop/load/start replaced the run that was
		// joined; marking the newer run paused without cancelling it
		// would leave a live scheduler behind a Paused state.
		return false
	}
	e.sess.state = Paused
	if e.collector != nil {
		e.collector.PlaybackActive.Set(0)
	}
	return true
}

// Resume continues playback from the frozen index. Legal only while
// Paused with distance left to play. The frozen point is not
// re-emitted: playback continues with the delay toward the next point.
func (e *Engine) Resume(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.state != Paused {
		return false
	}
	if e.sess.index >= len(e.sess.path)-1 {
		return false
	}
	e.startLocked(ctx, e.sess.index, false)
	return true
}

// Stop cancels any active scheduler and clears the route, returning
// the session to Idle. The last known position is preserved.
func (e *Engine) Stop() {
	e.joinScheduler()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.state = Idle
	e.sess.path = nil
	e.sess.metrics = route.Metrics{}
	e.sess.index = 0
	e.cancel = nil
	e.done = nil
	if e.collector != nil {
		e.collector.PlaybackActive.Set(0)
	}
}

// Reset is Stop plus clearing the last known position.
func (e *Engine) Reset() {
	e.Stop()
	e.mu.Lock()
	e.sess.lastKnown = nil
	e.mu.Unlock()
}

// SetSpeed updates the playback speed. Takes effect on the next delay
// computation; never blocks behind a running scheduler.
func (e *Engine) SetSpeed(mps float64) bool {
	if mps <= 0 {
		return false
	}
	e.speed.Store(mps)
	if e.collector != nil {
		e.collector.SpeedMps.Set(mps)
	}
	return true
}

func (e *Engine) Speed() float64 { return e.speed.Load() }

// Snapshot returns a consistent read view of the session.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.snapshot(e.speed.Load())
}

// startLocked spawns the scheduler goroutine. Caller holds the mutex
// and has verified the transition.
func (e *Engine) startLocked(parent context.Context, startIndex int, emitCurrent bool) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.sess.state = Running
	if e.collector != nil {
		e.collector.PlaybackStarts.Inc()
		e.collector.PlaybackActive.Set(1)
	}
	go e.run(ctx, done, e.sess.path, startIndex, emitCurrent)
}

// joinScheduler cancels the active scheduler, if any, and waits until
// it has exited.
func (e *Engine) joinScheduler() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// run walks the dense path from startIndex, committing and dispatching
// one position per step. When emitCurrent is false the point at
// startIndex was already emitted before a pause, so the loop goes
// straight to the delay toward the next point. Cancellation is checked
// at the top of each iteration and interrupts the delay wait promptly;
// on cancellation the loop exits without forcing a state transition —
// the caller that cancelled decides the resulting state.
func (e *Engine) run(ctx context.Context, done chan struct{}, path []geo.Point, startIndex int, emitCurrent bool) {
	defer close(done)
	n := len(path)
	i := startIndex
	for {
		if ctx.Err() != nil {
			return
		}
		if emitCurrent {
			progress := float64(i) / float64(n-1)
			e.commit(path[i], i)
			e.dispatcher.Dispatch(path[i], progress, e.speed.Load())
			if e.collector != nil {
				e.collector.StepsEmitted.Inc()
			}
		}
		emitCurrent = true

		if i >= n-1 {
			e.complete()
			return
		}

		// Speed is read fresh each step; a concurrent SetSpeed affects
		// the next delay, never one already in progress.
		delay := stepDelay(geo.Distance(path[i], path[i+1]), e.speed.Load(), e.minStepDelay)
		if e.collector != nil {
			e.collector.StepDelay.Observe(delay.Seconds())
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		i++
	}
}

// stepDelay converts the distance to the next dense point into a wait
// at the given speed, floored so duplicate or closely spaced points
// never produce a degenerate zero wait.
func stepDelay(distMeters, speedMps float64, floor time.Duration) time.Duration {
	delay := time.Duration(distMeters / speedMps * float64(time.Second))
	if delay < floor {
		delay = floor
	}
	return delay
}

// commit publishes the (position, index, progress) triple atomically;
// progress is derived from the index inside any snapshot taken under
// the same lock.
func (e *Engine) commit(p geo.Point, index int) {
	e.mu.Lock()
	pt := p
	e.sess.index = index
	e.sess.lastKnown = &pt
	e.mu.Unlock()
}

func (e *Engine) complete() {
	e.mu.Lock()
	if e.sess.state == Running {
		e.sess.state = Completed
	}
	e.mu.Unlock()
	if e.collector != nil {
		e.collector.PlaybackCompletions.Inc()
		e.collector.PlaybackActive.Set(0)
	}
}
