package route

import (
	"fmt"
	"strconv"
	"strings"

	"route-simulator/internal/geo"
)

// ParseStops parses an inline itinerary of the form
// "Name@lat,lon;Name@lat,lon;...". The name part is optional
// ("lat,lon" alone is accepted); order defines travel direction.
func ParseStops(s string) ([]Stop, error) {
	var stops []Stop
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name := ""
		coords := part
		if at := strings.LastIndex(part, "@"); at >= 0 {
			name = strings.TrimSpace(part[:at])
			coords = part[at+1:]
		}
		lat, lon, err := parseLatLon(coords)
		if err != nil {
			return nil, fmt.Errorf("stop %q: %w", part, err)
		}
		if name == "" {
			name = fmt.Sprintf("stop-%d", len(stops)+1)
		}
		stops = append(stops, Stop{Name: name, Point: geo.Point{Lat: lat, Lon: lon}})
	}
	if len(stops) < 2 {
		return nil, ErrTooFewStops
	}
	return stops, nil
}

func parseLatLon(s string) (lat, lon float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected lat,lon, got %q", s)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q", parts[0])
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q", parts[1])
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("coordinate out of range: %s", s)
	}
	return lat, lon, nil
}
