package domain

import (
	"math"
	"testing"
)

func TestGeoPointValidate(t *testing.T) {
	tests := []struct {
		name    string
		point   GeoPoint
		wantErr bool
	}{
		{"valid point", NewGeoPoint(52.5, 9.9), false},
		{"origin", NewGeoPoint(0, 0), false},
		{"max bounds", NewGeoPoint(90, 180), false},
		{"min bounds", NewGeoPoint(-90, -180), false},
		{"latitude too high", NewGeoPoint(91, 9.9), true},
		{"latitude too low", NewGeoPoint(-91, 9.9), true},
		{"longitude too high", NewGeoPoint(52.5, 181), true},
		{"longitude too low", NewGeoPoint(52.5, -181), true},
		{"NaN latitude", NewGeoPoint(math.NaN(), 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.point.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGeoPointString(t *testing.T) {
	tests := []struct {
		name  string
		point GeoPoint
		want  string
	}{
		{"2D point", NewGeoPoint(10, 20), "(10.000000, 20.000000)"},
		{"with altitude", GeoPoint{Lat: 10, Lon: 20, Alt: 5, Accuracy: 3}, "(10.000000, 20.000000, alt=5.00, acc=3.00)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.point.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGeoPointDistanceTo(t *testing.T) {
	a := NewGeoPoint(0, 0)
	b := NewGeoPoint(0, 1)

	// One degree of longitude at the equator is roughly 111.2 km.
	got := a.DistanceTo(b)
	if got < 110000 || got > 112500 {
		t.Errorf("DistanceTo() = %f, want ~111200", got)
	}
	if a.DistanceTo(a) != 0 {
		t.Errorf("DistanceTo(self) = %f, want 0", a.DistanceTo(a))
	}
}

func TestBoundsOf(t *testing.T) {
	b := BoundsOf([]GeoPoint{
		NewGeoPoint(10, 20),
		NewGeoPoint(-5, 30),
		NewGeoPoint(2, -4),
	})

	want := Bounds{South: -5, West: -4, North: 10, East: 30}
	if b != want {
		t.Errorf("BoundsOf() = %+v, want %+v", b, want)
	}

	if got := BoundsOf(nil); got != (Bounds{}) {
		t.Errorf("BoundsOf(nil) = %+v, want zero", got)
	}
}

func TestWrappedBoundsOf(t *testing.T) {
	tests := []struct {
		name   string
		points []GeoPoint
		want   Bounds
	}{
		{
			name:   "direct",
			points: []GeoPoint{NewGeoPoint(0, 0), NewGeoPoint(0, 10)},
			want:   Bounds{South: 0, West: 0, North: 0, East: 10},
		},
		{
			name:   "across antimeridian",
			points: []GeoPoint{NewGeoPoint(0, 179), NewGeoPoint(1, -179)},
			want:   Bounds{South: 0, West: 179, North: 1, East: 181},
		},
		{
			name:   "cluster across antimeridian",
			points: []GeoPoint{NewGeoPoint(-2, -177), NewGeoPoint(3, 178), NewGeoPoint(0, 179.5)},
			want:   Bounds{South: -2, West: 178, North: 3, East: 183},
		},
		{
			name:   "even spread keeps direct box",
			points: []GeoPoint{NewGeoPoint(0, -100), NewGeoPoint(0, 0), NewGeoPoint(0, 100)},
			want:   Bounds{South: 0, West: -100, North: 0, East: 100},
		},
		{
			name:   "single point",
			points: []GeoPoint{NewGeoPoint(5, 6)},
			want:   Bounds{South: 5, West: 6, North: 5, East: 6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WrappedBoundsOf(tt.points); got != tt.want {
				t.Errorf("WrappedBoundsOf() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBoundsSplit(t *testing.T) {
	tests := []struct {
		name string
		in   Bounds
		want []Bounds
	}{
		{
			name: "inside",
			in:   Bounds{South: 0, West: 10, North: 5, East: 20},
			want: []Bounds{{South: 0, West: 10, North: 5, East: 20}},
		},
		{
			name: "east past 180",
			in:   Bounds{South: 0, West: 170, North: 5, East: 190},
			want: []Bounds{
				{South: 0, West: 170, North: 5, East: 180},
				{South: 0, West: -180, North: 5, East: -170},
			},
		},
		{
			name: "east below west",
			in:   Bounds{South: 0, West: 170, North: 5, East: -170},
			want: []Bounds{
				{South: 0, West: 170, North: 5, East: 180},
				{South: 0, West: -180, North: 5, East: -170},
			},
		},
		{
			name: "west below -180",
			in:   Bounds{South: 0, West: -190, North: 5, East: -170},
			want: []Bounds{
				{South: 0, West: 170, North: 5, East: 180},
				{South: 0, West: -180, North: 5, East: -170},
			},
		},
		{
			name: "whole world",
			in:   Bounds{South: -10, West: -200, North: 10, East: 200},
			want: []Bounds{{South: -10, West: -180, North: 10, East: 180}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Split()
			if len(got) != len(tt.want) {
				t.Fatalf("Split() = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Split()[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBoundsDimensions(t *testing.T) {
	b := Bounds{South: 10, West: 20, North: 50, East: 80}

	if got := b.LatSpan(); got != 40 {
		t.Errorf("LatSpan() = %f, want 40", got)
	}
	if got := b.LonSpan(); got != 60 {
		t.Errorf("LonSpan() = %f, want 60", got)
	}
	if b.IsEmpty() {
		t.Error("IsEmpty() = true, want false")
	}
	if !(Bounds{South: 1, West: 1, North: 1, East: 5}).IsEmpty() {
		t.Error("zero-height box should be empty")
	}
}

func TestBoundsCenter(t *testing.T) {
	tests := []struct {
		name   string
		bounds Bounds
		want   GeoPoint
	}{
		{"regular box", Bounds{South: 0, West: 0, North: 10, East: 20}, NewGeoPoint(5, 10)},
		{"across antimeridian", Bounds{South: -10, West: 170, North: 10, East: 200}, NewGeoPoint(0, -175)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.bounds.Center(); got != tt.want {
				t.Errorf("Center() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBoundsContainsAndIntersects(t *testing.T) {
	b := Bounds{South: 0, West: 0, North: 10, East: 10}

	if !b.Contains(NewGeoPoint(5, 5)) {
		t.Error("Contains(inside) = false")
	}
	if b.Contains(NewGeoPoint(11, 5)) {
		t.Error("Contains(outside) = true")
	}
	if !b.Intersects(Bounds{South: 5, West: 5, North: 20, East: 20}) {
		t.Error("Intersects(overlapping) = false")
	}
	if b.Intersects(Bounds{South: 11, West: 11, North: 20, East: 20}) {
		t.Error("Intersects(disjoint) = true")
	}
}

func TestClosedPath(t *testing.T) {
	pts := []GeoPoint{NewGeoPoint(0, 0), NewGeoPoint(1, 1), NewGeoPoint(2, 0)}

	tests := []struct {
		name   string
		points []GeoPoint
		closed bool
		want   int
	}{
		{"closed appends first point", pts, true, 4},
		{"open unchanged", pts, false, 3},
		{"closed empty stays empty", nil, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClosedPath(tt.points, tt.closed)
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
			if tt.closed && len(got) > 0 && got[len(got)-1] != tt.points[0] {
				t.Errorf("last point = %v, want %v", got[len(got)-1], tt.points[0])
			}
		})
	}
}

func TestReferenceLayerIsRaster(t *testing.T) {
	tests := []struct {
		format string
		want   bool
	}{
		{"png", true},
		{"JPG", true},
		{"webp", true},
		{"pbf", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			l := ReferenceLayer{Format: tt.format}
			if got := l.IsRaster(); got != tt.want {
				t.Errorf("IsRaster() = %v, want %v", got, tt.want)
			}
		})
	}
}
