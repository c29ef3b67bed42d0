package domain

import "time"

// FeatureID identifies a feature within one engine.
type FeatureID int

// NoFeature is returned when a native handle belongs to no feature.
const NoFeature FeatureID = -1

// FeatureKind is the variant of a feature.
type FeatureKind string

// Feature kinds.
const (
	KindMarker  FeatureKind = "marker"
	KindLine    FeatureKind = "line"
	KindPolygon FeatureKind = "polygon"
)

// IconDescription describes a marker icon. It is comparable and used as a cache key.
type IconDescription struct {
	Ref    string // Icon name or file reference
	Color  string // Tint color, e.g. "#ff0000"
	Symbol string // Optional text symbol drawn on the icon
}

// IsZero returns true if no icon is described.
func (d IconDescription) IsZero() bool {
	return d == IconDescription{}
}

// StrokeStyle describes how a line or outline is drawn.
type StrokeStyle struct {
	Color string
	Width float64
}

// FillStyle describes how a polygon interior is drawn.
type FillStyle struct {
	Color string
}

// MarkerDescriptor defines a marker to place on the map.
type MarkerDescriptor struct {
	Point     GeoPoint
	Draggable bool
	Icon      IconDescription
}

// LineDescriptor defines a polyline. Draggable lines get one marker per vertex.
type LineDescriptor struct {
	Points    []GeoPoint
	Closed    bool
	Draggable bool
	Stroke    StrokeStyle
}

// PolygonDescriptor defines a filled polygon.
type PolygonDescriptor struct {
	Points []GeoPoint
	Stroke StrokeStyle
	Fill   FillStyle
}

// LocationFix is the last known device position.
type LocationFix struct {
	Point    GeoPoint
	Provider string
	Time     time.Time
}

// ClosedPath returns points with the first point appended when closed and non-empty.
func ClosedPath(points []GeoPoint, closed bool) []GeoPoint {
	out := make([]GeoPoint, 0, len(points)+1)
	out = append(out, points...)
	if closed && len(points) > 0 {
		out = append(out, points[0])
	}
	return out
}
