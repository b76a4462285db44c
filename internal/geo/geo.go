package geo

import "math"

const earthRadiusMeters = 6371000.0

// Point is an immutable latitude/longitude pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Distance returns the great-circle (haversine) distance in meters.
func Distance(a, b Point) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// PathLength sums the great-circle distances over consecutive points.
func PathLength(pts []Point) float64 {
	sum := 0.0
	for i := 1; i < len(pts); i++ {
		sum += Distance(pts[i-1], pts[i])
	}
	return sum
}

// targetSpacingMeters is the spacing Densify aims for between
// consecutive output points.
const targetSpacingMeters = 10.0

// Densify expands a sparse provider path so consecutive points are
// roughly 10 meters apart. For each raw segment it emits
// max(1, floor(dist/10)) points by linear lat/lon interpolation
// (segments are short enough that geodesic correction is not needed)
// and appends the final raw point once. Inputs with fewer than two
// points yield an empty path; otherwise the result has length >= 2.
// Pure function, safe for concurrent use.
func Densify(raw []Point) []Point {
	if len(raw) < 2 {
		return nil
	}
	dense := make([]Point, 0, len(raw)*2)
	for i := 1; i < len(raw); i++ {
		p0 := raw[i-1]
		p1 := raw[i]
		steps := int(math.Floor(Distance(p0, p1) / targetSpacingMeters))
		if steps < 1 {
			steps = 1
		}
		for s := 0; s < steps; s++ {
			frac := float64(s) / float64(steps)
			dense = append(dense, Point{
				Lat: p0.Lat + (p1.Lat-p0.Lat)*frac,
				Lon: p0.Lon + (p1.Lon-p0.Lon)*frac,
			})
		}
	}
	return append(dense, raw[len(raw)-1])
}
