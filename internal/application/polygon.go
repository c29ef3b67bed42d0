package application

import (
	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

// PolygonFeature is an immutable filled polygon.
type PolygonFeature struct {
	provider output.MapProvider
	points   []domain.GeoPoint
	handle   output.Handle
	disposed bool
}

func newPolygonFeature(provider output.MapProvider, d domain.PolygonDescriptor) *PolygonFeature {
	points := append([]domain.GeoPoint(nil), d.Points...)
	return &PolygonFeature{
		provider: provider,
		points:   points,
		handle: provider.AddPolygon(output.PolygonOptions{
			Points:    points,
			Stroke:    d.Stroke,
			Fill:      d.Fill,
			Clickable: true,
		}),
	}
}

// Kind implements Feature.
func (p *PolygonFeature) Kind() domain.FeatureKind { return domain.KindPolygon }

// OwnsHandle implements Feature.
func (p *PolygonFeature) OwnsHandle(h output.Handle) bool {
	return !p.disposed && h == p.handle
}

// Points implements Feature.
func (p *PolygonFeature) Points() []domain.GeoPoint {
	return append([]domain.GeoPoint(nil), p.points...)
}

// Update implements Feature.
func (p *PolygonFeature) Update() {}

// Dispose implements Feature.
func (p *PolygonFeature) Dispose() {
	if p.disposed {
		return
	}
	p.provider.Remove(p.handle)
	p.disposed = true
}

func (p *PolygonFeature) sealed() {}
