package route

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"route-simulator/internal/geo"
)

// Directions is the external provider of a raw path and travel metrics
// between an ordered pair of points. One call per leg, fixed transport
// mode, no alternates.
type Directions interface {
	Route(ctx context.Context, from, to geo.Point) (Leg, error)
}

var (
	ErrTooFewStops = errors.New("route: itinerary needs at least two stops")
	ErrEmptyLeg    = errors.New("route: leg produced no usable path")
)

// Composer stitches one dense path out of per-leg directions results.
type Composer struct {
	directions Directions
}

func NewComposer(d Directions) *Composer {
	return &Composer{directions: d}
}

// Compose requests one leg per consecutive stop pair, densifies each
// leg independently, and stitches them in itinerary order. Legs are
// fetched concurrently but assembled by position, so response arrival
// order never affects the result. Composition is all-or-nothing: any
// leg failure fails the whole call and nothing is returned.
func (c *Composer) Compose(ctx context.Context, stops []Stop) ([]geo.Point, Metrics, error) {
	if len(stops) < 2 {
		return nil, Metrics{}, ErrTooFewStops
	}

	nLegs := len(stops) - 1
	legs := make([]Leg, nLegs)
	dense := make([][]geo.Point, nLegs)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < nLegs; i++ {
		g.Go(func() error {
			from, to := stops[i], stops[i+1]
			leg, err := c.directions.Route(gctx, from.Point, to.Point)
			if err != nil {
				return fmt.Errorf("leg %s -> %s: %w", from.Name, to.Name, err)
			}
			d := geo.Densify(leg.Path)
			if len(d) < 2 {
				return fmt.Errorf("leg %s -> %s: %w", from.Name, to.Name, ErrEmptyLeg)
			}
			legs[i] = leg
			dense[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Metrics{}, err
	}

	var m Metrics
	var path []geo.Point
	for i, d := range dense {
		if i > 0 {
			// The junction point is already present as the last point
			// of the previous leg.
			d = d[1:]
		}
		path = append(path, d...)
		m.DistanceMeters += legs[i].DistanceMeters
		m.DurationSeconds += legs[i].DurationSeconds
	}
	return path, m, nil
}
