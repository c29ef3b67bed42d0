// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/jobrunner/mapkit/internal/domain"
)

// Listener types registered by the host.
type (
	PointListener   func(p domain.GeoPoint)
	FeatureListener func(id domain.FeatureID)
	ReadyListener   func()
)

// MapEngine defines the primary port the host screen drives. All methods run on the main thread.
type MapEngine interface {
	// Init attaches the engine to its map provider.
	Init()
	// Start resumes location updates paused by Stop.
	Start() error
	// Stop pauses location updates.
	Stop()
	// Teardown removes everything the engine drew and clears the icon cache.
	Teardown()

	AddMarker(d domain.MarkerDescriptor) domain.FeatureID
	AddPolyline(d domain.LineDescriptor) domain.FeatureID
	AddPolygon(d domain.PolygonDescriptor) domain.FeatureID
	RemoveFeature(id domain.FeatureID)
	ClearFeatures()
	FeatureIDs() []domain.FeatureID
	FeaturesWithin(b domain.Bounds) []domain.FeatureID

	SetMarkerIcon(id domain.FeatureID, icon domain.IconDescription)
	MarkerPoint(id domain.FeatureID) (domain.GeoPoint, bool)
	AppendPointToLine(id domain.FeatureID, p domain.GeoPoint)
	RemoveLastLinePoint(id domain.FeatureID)
	LinePoints(id domain.FeatureID) []domain.GeoPoint

	SetClickListener(l PointListener)
	SetLongPressListener(l PointListener)
	SetFeatureClickListener(l FeatureListener)
	SetDragEndListener(l FeatureListener)
	SetGpsLocationListener(l PointListener)

	SetCenter(p domain.GeoPoint, animate bool)
	ZoomToPoint(p domain.GeoPoint, zoom float64, animate bool)
	ZoomToBoundingBox(points []domain.GeoPoint, scaleFactor float64, animate bool)
	Center() domain.GeoPoint
	Zoom() float64
	HasCenter() bool

	SetGpsLocationEnabled(enabled bool) error
	RunOnGpsLocationReady(cb ReadyListener)
	GpsLocation() (domain.GeoPoint, bool)
	LocationProvider() string

	SetReferenceOverlay(path string) error
}

// LayerLibrary defines the primary port for reference layer management.
type LayerLibrary interface {
	// ListLayers returns all loaded reference layers.
	ListLayers(ctx context.Context) ([]domain.ReferenceLayer, error)

	// GetLayer returns a specific reference layer by ID.
	GetLayer(ctx context.Context, id string) (*domain.ReferenceLayer, error)

	// Tile returns the encoded tile of a layer.
	Tile(ctx context.Context, id string, z, x, y int) ([]byte, error)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy      bool              // Overall health status
	Ready        bool              // Ready to accept requests
	LayersLoaded int               // Number of loaded reference layers
	LayersReady  int               // Number of ready reference layers
	Features     int               // Number of features on the map
	Components   map[string]string // Component statuses
}
