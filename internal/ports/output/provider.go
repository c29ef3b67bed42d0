package output

import (
	"image"

	"github.com/jobrunner/mapkit/internal/domain"
)

// HandleKind is the kind of primitive a native handle refers to.
type HandleKind int

// Native handle kinds.
const (
	HandleMarker HandleKind = iota + 1
	HandlePolyline
	HandlePolygon
	HandleCircle
	HandleOverlay
)

// String returns the string representation of the handle kind.
func (k HandleKind) String() string {
	switch k {
	case HandleMarker:
		return "marker"
	case HandlePolyline:
		return "polyline"
	case HandlePolygon:
		return "polygon"
	case HandleCircle:
		return "circle"
	case HandleOverlay:
		return "overlay"
	default:
		return "unknown"
	}
}

// Handle is an opaque reference to a primitive drawn by the map provider.
type Handle struct {
	Kind HandleKind
	ID   uint64
}

// IsZero returns true if the handle refers to nothing.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

// Icon is a renderable marker image.
type Icon struct {
	Key     string      // Cache key the icon was resolved from
	Image   image.Image // Rendered bitmap
	AnchorX float64     // Horizontal anchor, 0..1
	AnchorY float64     // Vertical anchor, 0..1
}

// MarkerOptions describes a marker to draw.
type MarkerOptions struct {
	Position  domain.GeoPoint
	Draggable bool
	Icon      *Icon  // nil uses the provider default
	Metadata  string // Side-channel text stored with the marker
}

// PolylineOptions describes a polyline to draw.
type PolylineOptions struct {
	Points    []domain.GeoPoint
	Stroke    domain.StrokeStyle
	Clickable bool
}

// PolygonOptions describes a polygon to draw.
type PolygonOptions struct {
	Points    []domain.GeoPoint
	Stroke    domain.StrokeStyle
	Fill      domain.FillStyle
	Clickable bool
}

// CircleOptions describes a circle to draw. Radius is in meters.
type CircleOptions struct {
	Center domain.GeoPoint
	Radius float64
	Stroke domain.StrokeStyle
	Fill   domain.FillStyle
}

// MapProvider defines the secondary port for the map rendering SDK.
// All methods are called from the main thread.
type MapProvider interface {
	// SetEventSink registers the receiver of user interaction callbacks.
	SetEventSink(sink EventSink)

	// AddMarker draws a marker and returns its handle.
	AddMarker(opts MarkerOptions) Handle

	// MarkerPosition returns the current rendered position of a marker.
	MarkerPosition(h Handle) domain.GeoPoint

	// SetMarkerPosition moves a marker.
	SetMarkerPosition(h Handle, p domain.GeoPoint)

	// MarkerMetadata returns the side-channel text stored with a marker.
	MarkerMetadata(h Handle) string

	// SetMarkerMetadata replaces the side-channel text stored with a marker.
	SetMarkerMetadata(h Handle, metadata string)

	// SetMarkerIcon swaps the icon of an existing marker.
	SetMarkerIcon(h Handle, icon *Icon)

	// AddPolyline draws a polyline and returns its handle.
	AddPolyline(opts PolylineOptions) Handle

	// SetPolylinePoints replaces the points of an existing polyline.
	SetPolylinePoints(h Handle, points []domain.GeoPoint)

	// AddPolygon draws a polygon and returns its handle.
	AddPolygon(opts PolygonOptions) Handle

	// AddCircle draws a circle and returns its handle.
	AddCircle(opts CircleOptions) Handle

	// SetCircle moves and resizes an existing circle.
	SetCircle(h Handle, center domain.GeoPoint, radius float64)

	// AddTileOverlay draws a raster tile layer above the base map.
	AddTileOverlay(src TileSource) (Handle, error)

	// Remove removes any primitive from the map.
	Remove(h Handle)

	// SetLabelsVisible shows or hides base map labels.
	SetLabelsVisible(visible bool)

	// Camera returns the current camera center and zoom.
	Camera() domain.CameraState

	// MinZoom returns the minimum supported zoom level.
	MinZoom() float64

	// MoveCamera moves or animates the camera to a center and zoom.
	MoveCamera(center domain.GeoPoint, zoom float64, animate bool)

	// FitBounds moves or animates the camera to show the bounds.
	// It fails when the bounds are degenerate or the view has no size yet.
	FitBounds(b domain.Bounds, animate bool) error
}

// EventSink receives user interaction callbacks from the map provider.
type EventSink interface {
	OnMapClick(p domain.GeoPoint)
	OnMapLongClick(p domain.GeoPoint)
	OnHandleClick(h Handle)
	OnDragStart(h Handle)
	OnDrag(h Handle)
	OnDragEnd(h Handle)
}
