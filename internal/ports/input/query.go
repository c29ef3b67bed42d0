package input

import (
	"context"

	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/mapkit/internal/domain"
)

// MapQuery defines the primary port for reading and steering the map from
// outside the main thread.
type MapQuery interface {
	// QueryFeatures returns the features intersecting bounds, or all features for nil bounds.
	QueryFeatures(ctx context.Context, bounds *domain.Bounds) (*geojson.FeatureCollection, error)

	// Status returns camera, location and overlay state.
	Status(ctx context.Context) (MapStatus, error)

	// SetOverlay shows the reference layer with the given ID, or removes the overlay for "".
	SetOverlay(ctx context.Context, layerID string) error
}

// MapStatus is a snapshot of the map state.
type MapStatus struct {
	Camera           domain.CameraState `json:"camera"`
	HasCenter        bool               `json:"has_center"`
	Features         int                `json:"features"`
	Location         *domain.GeoPoint   `json:"location,omitempty"`
	LocationProvider string             `json:"location_provider,omitempty"`
	LocationEnabled  bool               `json:"location_enabled"`
	Overlay          string             `json:"overlay,omitempty"`
}
