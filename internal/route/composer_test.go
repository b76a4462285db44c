package route

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"route-simulator/internal/geo"
)

// fakeDirections resolves legs from a fixture table keyed by the leg's
// start point. An optional per-leg delay simulates out-of-order
// network responses.
type fakeDirections struct {
	legs   map[geo.Point]Leg
	delays map[geo.Point]time.Duration
	fail   map[geo.Point]bool
}

func (f *fakeDirections) Route(ctx context.Context, from, to geo.Point) (Leg, error) {
	if d, ok := f.delays[from]; ok {
		select {
		case <-ctx.Done():
			return Leg{}, ctx.Err()
		case <-time.After(d):
		}
	}
	if f.fail[from] {
		return Leg{}, errors.New("provider unavailable")
	}
	leg, ok := f.legs[from]
	if !ok {
		return Leg{}, fmt.Errorf("no fixture for leg starting at %v", from)
	}
	return leg, nil
}

func testStops() []Stop {
	return []Stop{
		{Name: "start", Point: geo.Point{Lat: 0, Lon: 0}},
		{Name: "mid", Point: geo.Point{Lat: 0, Lon: 0.001}},
		{Name: "end", Point: geo.Point{Lat: 0, Lon: 0.002}},
	}
}

func testLegs() map[geo.Point]Leg {
	return map[geo.Point]Leg{
		{Lat: 0, Lon: 0}: {
			Path:            []geo.Point{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.001}},
			DistanceMeters:  1000,
			DurationSeconds: 100,
		},
		{Lat: 0, Lon: 0.001}: {
			Path:            []geo.Point{{Lat: 0, Lon: 0.001}, {Lat: 0, Lon: 0.002}},
			DistanceMeters:  500,
			DurationSeconds: 50,
		},
	}
}

func TestComposeStitchesLegsAndSumsMetrics(t *testing.T) {
	c := NewComposer(&fakeDirections{legs: testLegs()})

	path, m, err := c.Compose(context.Background(), testStops())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.DistanceMeters != 1500 {
		t.Fatalf("distance = %v, want 1500", m.DistanceMeters)
	}
	if m.DurationSeconds != 150 {
		t.Fatalf("duration = %v, want 150", m.DurationSeconds)
	}

	legA := geo.Densify(testLegs()[geo.Point{Lat: 0, Lon: 0}].Path)
	legB := geo.Densify(testLegs()[geo.Point{Lat: 0, Lon: 0.001}].Path)
	// One junction point dropped for the second leg.
	want := len(legA) + len(legB) - 1
	if len(path) != want {
		t.Fatalf("path length = %d, want %d", len(path), want)
	}

	// The junction appears exactly once.
	junction := geo.Point{Lat: 0, Lon: 0.001}
	count := 0
	for _, p := range path {
		if p == junction {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("junction point appears %d times, want 1", count)
	}

	if path[0] != (geo.Point{Lat: 0, Lon: 0}) {
		t.Fatalf("path starts at %v", path[0])
	}
	if path[len(path)-1] != (geo.Point{Lat: 0, Lon: 0.002}) {
		t.Fatalf("path ends at %v", path[len(path)-1])
	}
}

func TestComposeOrdersLegsByItineraryNotArrival(t *testing.T) {
	// First leg responds last; stitching must still follow stop order.
	f := &fakeDirections{
		legs: testLegs(),
		delays: map[geo.Point]time.Duration{
			{Lat: 0, Lon: 0}: 30 * time.Millisecond,
		},
	}
	c := NewComposer(f)

	path, _, err := c.Compose(context.Background(), testStops())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path[0] != (geo.Point{Lat: 0, Lon: 0}) {
		t.Fatalf("path starts at %v, want itinerary start", path[0])
	}
	if path[len(path)-1] != (geo.Point{Lat: 0, Lon: 0.002}) {
		t.Fatalf("path ends at %v, want itinerary end", path[len(path)-1])
	}
	// Longitudes never decrease on this west-to-east itinerary.
	for i := 1; i < len(path); i++ {
		if path[i].Lon < path[i-1].Lon {
			t.Fatalf("path out of order at %d: %v after %v", i, path[i], path[i-1])
		}
	}
}

func TestComposeFailsWhenAnyLegFails(t *testing.T) {
	f := &fakeDirections{
		legs: testLegs(),
		fail: map[geo.Point]bool{{Lat: 0, Lon: 0.001}: true},
	}
	c := NewComposer(f)

	path, m, err := c.Compose(context.Background(), testStops())
	if err == nil {
		t.Fatal("expected composition error")
	}
	if path != nil {
		t.Fatalf("path = %v, want nil on failure", path)
	}
	if m != (Metrics{}) {
		t.Fatalf("metrics = %v, want zero on failure", m)
	}
}

func TestComposeRejectsShortItineraries(t *testing.T) {
	c := NewComposer(&fakeDirections{legs: testLegs()})
	_, _, err := c.Compose(context.Background(), testStops()[:1])
	if !errors.Is(err, ErrTooFewStops) {
		t.Fatalf("err = %v, want ErrTooFewStops", err)
	}
}

func TestComposeRejectsEmptyLegPaths(t *testing.T) {
	f := &fakeDirections{
		legs: map[geo.Point]Leg{
			{Lat: 0, Lon: 0}: {Path: []geo.Point{{Lat: 0, Lon: 0}}},
		},
	}
	c := NewComposer(f)
	_, _, err := c.Compose(context.Background(), testStops()[:2])
	if !errors.Is(err, ErrEmptyLeg) {
		t.Fatalf("err = %v, want ErrEmptyLeg", err)
	}
}

func TestComposeSingleLeg(t *testing.T) {
	c := NewComposer(&fakeDirections{legs: testLegs()})
	path, m, err := c.Compose(context.Background(), testStops()[:2])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := geo.Densify(testLegs()[geo.Point{Lat: 0, Lon: 0}].Path)
	if len(path) != len(want) {
		t.Fatalf("path length = %d, want %d", len(path), len(want))
	}
	if m.DistanceMeters != 1000 || m.DurationSeconds != 100 {
		t.Fatalf("metrics = %+v, want 1000m/100s", m)
	}
}
