// Package domain contains the core map entities and value objects.
package domain

import (
	"fmt"
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// GeoPoint is a WGS84 position with optional altitude and accuracy.
type GeoPoint struct {
	Lat      float64 `json:"lat"`                // Latitude in degrees
	Lon      float64 `json:"lon"`                // Longitude in degrees
	Alt      float64 `json:"alt,omitempty"`      // Altitude in meters (optional)
	Accuracy float64 `json:"accuracy,omitempty"` // Standard deviation in meters (optional)
}

// NewGeoPoint creates a 2D point.
func NewGeoPoint(lat, lon float64) GeoPoint {
	return GeoPoint{Lat: lat, Lon: lon}
}

// Validate checks that the point lies within WGS84 bounds.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return &ValidationError{
			Field:      "latitude",
			Value:      p.Lat,
			Constraint: "[-90, 90]",
			Message:    "latitude must be between -90 and 90",
		}
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return &ValidationError{
			Field:      "longitude",
			Value:      p.Lon,
			Constraint: "[-180, 180]",
			Message:    "longitude must be between -180 and 180",
		}
	}
	return nil
}

// Orb returns the point as an orb.Point (lon, lat).
func (p GeoPoint) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromOrb converts an orb.Point to a 2D GeoPoint.
func FromOrb(p orb.Point) GeoPoint {
	return GeoPoint{Lat: p.Lat(), Lon: p.Lon()}
}

// DistanceTo returns the great-circle distance in meters.
func (p GeoPoint) DistanceTo(other GeoPoint) float64 {
	return geo.Distance(p.Orb(), other.Orb())
}

// Flat drops altitude and accuracy.
func (p GeoPoint) Flat() GeoPoint {
	return GeoPoint{Lat: p.Lat, Lon: p.Lon}
}

// String returns a string representation of the point.
func (p GeoPoint) String() string {
	if p.Alt != 0 || p.Accuracy != 0 {
		return fmt.Sprintf("(%f, %f, alt=%.2f, acc=%.2f)", p.Lat, p.Lon, p.Alt, p.Accuracy)
	}
	return fmt.Sprintf("(%f, %f)", p.Lat, p.Lon)
}

// Bounds is a lat/lon box. East may exceed 180 when the box crosses the antimeridian.
type Bounds struct {
	South float64
	West  float64
	North float64
	East  float64
}

// BoundsOf returns the minimal box enclosing the points.
func BoundsOf(points []GeoPoint) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	mp := make(orb.MultiPoint, len(points))
	for i, p := range points {
		mp[i] = p.Orb()
	}
	b := mp.Bound()
	return Bounds{
		South: b.Min.Lat(),
		West:  b.Min.Lon(),
		North: b.Max.Lat(),
		East:  b.Max.Lon(),
	}
}

// WrappedBoundsOf returns the narrowest box enclosing the points, which may cross
// the antimeridian. A crossing box has East past 180, e.g. West 179 and East 181
// for points at lon 179 and -179.
func WrappedBoundsOf(points []GeoPoint) Bounds {
	b := BoundsOf(points)
	if len(points) < 2 {
		return b
	}

	lons := make([]float64, len(points))
	for i, p := range points {
		lons[i] = wrapLon(p.Lon)
	}
	slices.Sort(lons)

	// The widest empty stretch of longitude is left outside the box. Without a
	// wrap that stretch runs from the eastmost point around to the westmost one.
	gap := lons[0] + 360 - lons[len(lons)-1]
	west, east := lons[0], lons[len(lons)-1]
	for i := 1; i < len(lons); i++ {
		if d := lons[i] - lons[i-1]; d > gap {
			gap = d
			west, east = lons[i], lons[i-1]+360
		}
	}
	b.West, b.East = west, east
	return b
}

// Split returns the parts of b that lie within [-180, 180] longitude. A box
// crossing the antimeridian, given either with East past 180 or with East < West,
// yields two parts. A box spanning 360 degrees or more yields the full range.
func (b Bounds) Split() []Bounds {
	span := b.normalizedSpan()
	if span >= 360 {
		return []Bounds{{South: b.South, West: -180, North: b.North, East: 180}}
	}

	west := wrapLon(b.West)
	east := west + span
	if east <= 180 {
		return []Bounds{{South: b.South, West: west, North: b.North, East: east}}
	}
	return []Bounds{
		{South: b.South, West: west, North: b.North, East: 180},
		{South: b.South, West: -180, North: b.North, East: east - 360},
	}
}

// normalizedSpan returns the longitude width of b, treating East < West as a wrap.
func (b Bounds) normalizedSpan() float64 {
	span := b.East - b.West
	if span < 0 {
		span += 360
	}
	return span
}

// wrapLon maps a longitude into [-180, 180).
func wrapLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// Center returns the center of the box.
func (b Bounds) Center() GeoPoint {
	lon := (b.West + b.East) / 2
	if lon > 180 {
		lon -= 360
	}
	return GeoPoint{Lat: (b.South + b.North) / 2, Lon: lon}
}

// LatSpan returns the height of the box in degrees.
func (b Bounds) LatSpan() float64 {
	return b.North - b.South
}

// LonSpan returns the width of the box in degrees.
func (b Bounds) LonSpan() float64 {
	return b.East - b.West
}

// IsEmpty reports whether the box has zero area.
func (b Bounds) IsEmpty() bool {
	return b.LatSpan() <= 0 || b.LonSpan() <= 0
}

// Intersects reports whether two boxes overlap.
func (b Bounds) Intersects(o Bounds) bool {
	return b.West <= o.East && o.West <= b.East && b.South <= o.North && o.South <= b.North
}

// Contains checks if a point is within the box.
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.South && p.Lat <= b.North && p.Lon >= b.West && p.Lon <= b.East
}

// CameraState is the viewport center and zoom.
type CameraState struct {
	Center GeoPoint `json:"center"`
	Zoom   float64  `json:"zoom"`
}
