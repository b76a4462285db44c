// Package directions talks to an OpenRouteService-compatible
// directions endpoint: ordered point pair in, raw path plus distance
// and duration out. One request per leg, fixed profile, no alternates.
// The engine never retries a failed request; a failure here fails the
// whole composition.
package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"route-simulator/internal/geo"
	"route-simulator/internal/route"
)

type Client struct {
	session *http.Client
	apiKey  string
	baseURL string
	profile string
}

func NewClient(baseURL, apiKey, profile string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("directions api key is empty")
	}
	if baseURL == "" {
		baseURL = "https://api.openrouteservice.org"
	}
	if profile == "" {
		profile = "driving-car"
	}
	return &Client{
		session: &http.Client{Timeout: timeout},
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
	}, nil
}

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Summary struct {
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
			} `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
}

func (c *Client) Route(ctx context.Context, from, to geo.Point) (route.Leg, error) {
	endpoint := fmt.Sprintf("%s/v2/directions/%s/geojson", c.baseURL, c.profile)

	payload, err := json.Marshal(directionsRequest{
		// ORS expects [lon, lat] pairs.
		Coordinates: [][]float64{{from.Lon, from.Lat}, {to.Lon, to.Lat}},
	})
	if err != nil {
		return route.Leg{}, fmt.Errorf("marshal directions request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return route.Leg{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.session.Do(req)
	if err != nil {
		return route.Leg{}, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return route.Leg{}, &httpStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return route.Leg{}, fmt.Errorf("decode directions response: %w", err)
	}
	if len(dr.Features) == 0 {
		return route.Leg{}, errors.New("directions response contained no routes")
	}

	feat := dr.Features[0]
	path := make([]geo.Point, 0, len(feat.Geometry.Coordinates))
	for _, coord := range feat.Geometry.Coordinates {
		if len(coord) < 2 {
			return route.Leg{}, errors.New("directions response contained a malformed coordinate")
		}
		path = append(path, geo.Point{Lat: coord[1], Lon: coord[0]})
	}

	return route.Leg{
		Path:            path,
		DistanceMeters:  feat.Properties.Summary.Distance,
		DurationSeconds: feat.Properties.Summary.Duration,
	}, nil
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("directions status %d: %s", e.Code, e.Body)
}
