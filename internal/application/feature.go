package application

import (
	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

// Feature is a marker, line or polygon drawn through the map provider.
// The set of variants is closed: *MarkerFeature, *StaticLineFeature,
// *DynamicLineFeature and *PolygonFeature.
type Feature interface {
	// Kind returns the feature variant.
	Kind() domain.FeatureKind

	// OwnsHandle reports whether h is one of the native handles of this feature.
	OwnsHandle(h output.Handle) bool

	// Points returns the current vertices of the feature.
	Points() []domain.GeoPoint

	// Update redraws geometry that depends on draggable handles.
	Update()

	// Dispose removes every native handle. Calling it again is a no-op.
	Dispose()

	sealed()
}
