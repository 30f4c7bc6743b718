package geo

import (
	"errors"
	"math"
	"testing"
)

func TestNewCoordinate_Ranges(t *testing.T) {
	if _, err := NewCoordinate(90, 180); err != nil {
		t.Fatalf("edge values must be valid: %v", err)
	}
	if _, err := NewCoordinate(-90, -180); err != nil {
		t.Fatalf("edge values must be valid: %v", err)
	}
	if _, err := NewCoordinate(90.0001, 0); !errors.Is(err, ErrInvalidLatitude) {
		t.Fatalf("got %v, want ErrInvalidLatitude", err)
	}
	if _, err := NewCoordinate(0, -180.0001); !errors.Is(err, ErrInvalidLongitude) {
		t.Fatalf("got %v, want ErrInvalidLongitude", err)
	}
}

func TestHaversineKM(t *testing.T) {
	// Astana <-> Almaty, roughly 970 km
	astana := Coordinate{Latitude: 51.1605, Longitude: 71.4704}
	almaty := Coordinate{Latitude: 43.2220, Longitude: 76.8512}

	d := HaversineKM(astana, almaty)
	if d < 950 || d > 990 {
		t.Fatalf("Astana-Almaty distance = %.1f km, want ~970", d)
	}

	// symmetric and zero for identical points
	if back := HaversineKM(almaty, astana); math.Abs(back-d) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", d, back)
	}
	if z := HaversineKM(astana, astana); z != 0 {
		t.Fatalf("zero distance = %v", z)
	}
}
