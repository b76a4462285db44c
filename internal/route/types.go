package route

import "route-simulator/internal/geo"

// Stop is a named point in an itinerary: start, waypoint, or end.
// Order in the itinerary defines travel direction.
type Stop struct {
	Name  string
	Point geo.Point
}

// Metrics carries the aggregate distance and expected duration of a
// composed route. Purely descriptive; playback timing is recomputed
// from the dense path and the live speed setting.
type Metrics struct {
	DistanceMeters  float64
	DurationSeconds float64
}

// Leg is the directions result for travel between two consecutive
// stops: the provider's raw path plus per-leg metrics.
type Leg struct {
	Path            []geo.Point
	DistanceMeters  float64
	DurationSeconds float64
}
