package sim

import (
	"route-simulator/internal/geo"
	"route-simulator/internal/route"
)

// State is the lifecycle state of a simulation session.
type State int

const (
	Idle State = iota
	Ready
	Running
	Paused
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	}
	return "unknown"
}

// Snapshot is an immutable read view of a session. Readers observe
// whole snapshots, never the live mutable state; the (position, index,
// progress) triple is always consistent within one snapshot.
type Snapshot struct {
	State    State
	Index    int
	Progress float64
	Position *geo.Point
	SpeedMps float64
	PathLen  int
	Metrics  route.Metrics
}

// session is the engine-owned mutable state. All fields are guarded by
// the engine mutex; the active scheduler is the single writer of
// index/position while Running.
type session struct {
	state     State
	path      []geo.Point
	metrics   route.Metrics
	index     int
	lastKnown *geo.Point
}

// progress derives fractional completion from the index. Never stored
// independently.
func (s *session) progress() float64 {
	if len(s.path) < 2 {
		return 0
	}
	return float64(s.index) / float64(len(s.path)-1)
}

func (s *session) snapshot(speedMps float64) Snapshot {
	return Snapshot{
		State:    s.state,
		Index:    s.index,
		Progress: s.progress(),
		Position: s.lastKnown,
		SpeedMps: speedMps,
		PathLen:  len(s.path),
		Metrics:  s.metrics,
	}
}
