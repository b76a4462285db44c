package route

import (
	"errors"
	"testing"
)

func TestParseStops(t *testing.T) {
	stops, err := ParseStops("Home@52.23,21.01; Work@52.25,21.00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stops) != 2 {
		t.Fatalf("got %d stops, want 2", len(stops))
	}
	if stops[0].Name != "Home" || stops[0].Point.Lat != 52.23 || stops[0].Point.Lon != 21.01 {
		t.Fatalf("first stop = %+v", stops[0])
	}
	if stops[1].Name != "Work" {
		t.Fatalf("second stop name = %q", stops[1].Name)
	}
}

func TestParseStopsUnnamed(t *testing.T) {
	stops, err := ParseStops("52.23,21.01;52.25,21.00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stops[0].Name != "stop-1" || stops[1].Name != "stop-2" {
		t.Fatalf("generated names = %q, %q", stops[0].Name, stops[1].Name)
	}
}

func TestParseStopsErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"single", "52.23,21.01"},
		{"garbage", "abc;def"},
		{"out of range", "91.0,0;0,0"},
		{"missing lon", "52.23;52.25,21.00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseStops(tc.in); err == nil {
				t.Fatalf("ParseStops(%q): expected error", tc.in)
			}
		})
	}
}

func TestParseStopsTooFew(t *testing.T) {
	_, err := ParseStops("Home@52.23,21.01")
	if !errors.Is(err, ErrTooFewStops) {
		t.Fatalf("err = %v, want ErrTooFewStops", err)
	}
}
