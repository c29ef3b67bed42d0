package application

import (
	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

// StaticLineFeature is a non-interactive polyline with fixed points.
type StaticLineFeature struct {
	provider output.MapProvider
	points   []domain.GeoPoint
	closed   bool
	handle   output.Handle
	disposed bool
}

func newStaticLineFeature(provider output.MapProvider, d domain.LineDescriptor) *StaticLineFeature {
	l := &StaticLineFeature{
		provider: provider,
		points:   append([]domain.GeoPoint(nil), d.Points...),
		closed:   d.Closed,
	}
	if len(l.points) > 0 {
		l.handle = provider.AddPolyline(output.PolylineOptions{
			Points:    domain.ClosedPath(l.points, l.closed),
			Stroke:    d.Stroke,
			Clickable: true,
		})
	}
	return l
}

// Kind implements Feature.
func (l *StaticLineFeature) Kind() domain.FeatureKind { return domain.KindLine }

// Closed reports whether the last point connects back to the first.
func (l *StaticLineFeature) Closed() bool { return l.closed }

// OwnsHandle implements Feature.
func (l *StaticLineFeature) OwnsHandle(h output.Handle) bool {
	return !l.disposed && !l.handle.IsZero() && h == l.handle
}

// Points implements Feature.
func (l *StaticLineFeature) Points() []domain.GeoPoint {
	return append([]domain.GeoPoint(nil), l.points...)
}

// Update implements Feature.
func (l *StaticLineFeature) Update() {}

// Dispose implements Feature.
func (l *StaticLineFeature) Dispose() {
	if l.disposed {
		return
	}
	if !l.handle.IsZero() {
		l.provider.Remove(l.handle)
	}
	l.disposed = true
}

func (l *StaticLineFeature) sealed() {}

// DynamicLineFeature is a polyline drawn through one draggable marker per vertex.
type DynamicLineFeature struct {
	provider   output.MapProvider
	vertexIcon *output.Icon
	stroke     domain.StrokeStyle
	closed     bool
	markers    []output.Handle
	polyline   output.Handle
	disposed   bool
}

func newDynamicLineFeature(provider output.MapProvider, d domain.LineDescriptor, vertexIcon *output.Icon) *DynamicLineFeature {
	l := &DynamicLineFeature{
		provider:   provider,
		vertexIcon: vertexIcon,
		stroke:     d.Stroke,
		closed:     d.Closed,
	}
	for _, p := range d.Points {
		l.markers = append(l.markers, addMarker(provider, p, true, vertexIcon))
	}
	l.Update()
	return l
}

// Kind implements Feature.
func (l *DynamicLineFeature) Kind() domain.FeatureKind { return domain.KindLine }

// Closed reports whether the last point connects back to the first.
func (l *DynamicLineFeature) Closed() bool { return l.closed }

// OwnsHandle implements Feature.
func (l *DynamicLineFeature) OwnsHandle(h output.Handle) bool {
	if l.disposed {
		return false
	}
	if !l.polyline.IsZero() && h == l.polyline {
		return true
	}
	for _, m := range l.markers {
		if h == m {
			return true
		}
	}
	return false
}

// Points implements Feature. Positions reflect any vertex drags.
func (l *DynamicLineFeature) Points() []domain.GeoPoint {
	points := make([]domain.GeoPoint, 0, len(l.markers))
	for _, m := range l.markers {
		points = append(points, markerPoint(l.provider, m))
	}
	return points
}

// AddPoint appends a vertex.
func (l *DynamicLineFeature) AddPoint(p domain.GeoPoint) {
	if l.disposed {
		return
	}
	l.markers = append(l.markers, addMarker(l.provider, p, true, l.vertexIcon))
	l.Update()
}

// RemoveLastPoint removes the last vertex, if any.
func (l *DynamicLineFeature) RemoveLastPoint() {
	if l.disposed || len(l.markers) == 0 {
		return
	}
	last := len(l.markers) - 1
	l.provider.Remove(l.markers[last])
	l.markers = l.markers[:last]
	l.Update()
}

// Update redraws the polyline from the current vertex positions. The handle is
// removed when no vertices remain and otherwise updated in place.
func (l *DynamicLineFeature) Update() {
	if l.disposed {
		return
	}
	points := l.Points()
	if len(points) == 0 {
		if !l.polyline.IsZero() {
			l.provider.Remove(l.polyline)
			l.polyline = output.Handle{}
		}
		return
	}
	path := domain.ClosedPath(points, l.closed)
	if l.polyline.IsZero() {
		l.polyline = l.provider.AddPolyline(output.PolylineOptions{
			Points:    path,
			Stroke:    l.stroke,
			Clickable: true,
		})
		return
	}
	l.provider.SetPolylinePoints(l.polyline, path)
}

// Dispose implements Feature.
func (l *DynamicLineFeature) Dispose() {
	if l.disposed {
		return
	}
	for _, m := range l.markers {
		l.provider.Remove(m)
	}
	l.markers = nil
	if !l.polyline.IsZero() {
		l.provider.Remove(l.polyline)
		l.polyline = output.Handle{}
	}
	l.disposed = true
}

func (l *DynamicLineFeature) sealed() {}
