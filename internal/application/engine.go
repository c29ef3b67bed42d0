// Package application contains the map engine and the application services.
package application

import (
	"log/slog"
	"time"

	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/input"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

// EngineConfig holds map engine settings.
type EngineConfig struct {
	PointZoom      float64                // Zoom used to frame a single point
	FitDelay       time.Duration          // Delay before a bounding box fit is applied
	CrosshairIcon  domain.IconDescription // Icon of the location marker
	VertexIcon     domain.IconDescription // Icon of draggable line vertices
	AccuracyStroke domain.StrokeStyle     // Outline of the accuracy circle
	AccuracyFill   domain.FillStyle       // Fill of the accuracy circle
}

// MapEngine manages features, camera, location indicator and reference overlay
// on top of a map provider. It is not safe for concurrent use; every call,
// including provider and location callbacks, must happen on the main thread.
type MapEngine struct {
	provider output.MapProvider
	registry *FeatureRegistry
	camera   *CameraController
	location *LocationTracker
	overlay  *ReferenceOverlayManager
	icons    *IconCache
	metrics  output.MetricsCollector
	logger   *slog.Logger
	config   EngineConfig

	onClick        input.PointListener
	onLongPress    input.PointListener
	onFeatureClick input.FeatureListener
	onDragEnd      input.FeatureListener

	resumeLocation bool
}

var (
	_ input.MapEngine  = (*MapEngine)(nil)
	_ output.EventSink = (*MapEngine)(nil)
)

// NewMapEngine creates a map engine. location, icons and opener may be nil.
func NewMapEngine(
	provider output.MapProvider,
	location output.LocationProvider,
	icons output.IconResolver,
	scheduler output.Scheduler,
	opener output.TileSourceOpener,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg EngineConfig,
) *MapEngine {
	return &MapEngine{
		provider: provider,
		registry: NewFeatureRegistry(),
		camera:   NewCameraController(provider, scheduler, metrics, logger, cfg.PointZoom, cfg.FitDelay),
		location: NewLocationTracker(provider, location, metrics, logger, CrosshairStyle{
			AccuracyStroke: cfg.AccuracyStroke,
			AccuracyFill:   cfg.AccuracyFill,
		}),
		overlay: NewReferenceOverlayManager(provider, opener, logger),
		icons:   NewIconCache(icons, logger),
		metrics: metrics,
		logger:  logger,
		config:  cfg,
	}
}

// Init attaches the engine to the provider callbacks.
func (e *MapEngine) Init() {
	e.provider.SetEventSink(e)
	e.location.SetStyle(CrosshairStyle{
		Icon:           e.icons.Get(e.config.CrosshairIcon),
		AccuracyStroke: e.config.AccuracyStroke,
		AccuracyFill:   e.config.AccuracyFill,
	})
	e.logger.Debug("map engine initialized")
}

// Start resumes location updates that were running when Stop was called.
func (e *MapEngine) Start() error {
	if !e.resumeLocation {
		return nil
	}
	e.resumeLocation = false
	return e.location.SetEnabled(true)
}

// Stop pauses location updates.
func (e *MapEngine) Stop() {
	if e.location.Enabled() {
		e.resumeLocation = true
		_ = e.location.SetEnabled(false)
	}
}

// Teardown removes all features, the location indicator and the overlay, and clears the icon cache.
func (e *MapEngine) Teardown() {
	e.resumeLocation = false
	if e.location.Enabled() {
		_ = e.location.SetEnabled(false)
	}
	e.camera.cancelPendingFit()
	e.ClearFeatures()
	e.overlay.Close()
	e.icons.Clear()
	e.provider.SetEventSink(nil)
	e.logger.Debug("map engine torn down")
}

// AddMarker places a marker.
func (e *MapEngine) AddMarker(d domain.MarkerDescriptor) domain.FeatureID {
	f := newMarkerFeature(e.provider, d.Point, d.Draggable, e.icons.Get(d.Icon))
	return e.register(f)
}

// AddPolyline places a line. Draggable lines get one draggable marker per vertex.
func (e *MapEngine) AddPolyline(d domain.LineDescriptor) domain.FeatureID {
	if d.Draggable {
		return e.register(newDynamicLineFeature(e.provider, d, e.icons.Get(e.config.VertexIcon)))
	}
	return e.register(newStaticLineFeature(e.provider, d))
}

// AddPolygon places a polygon.
func (e *MapEngine) AddPolygon(d domain.PolygonDescriptor) domain.FeatureID {
	return e.register(newPolygonFeature(e.provider, d))
}

func (e *MapEngine) register(f Feature) domain.FeatureID {
	id := e.registry.Add(f)
	e.metrics.IncFeaturesAdded(string(f.Kind()))
	e.metrics.SetFeaturesActive(e.registry.Len())
	e.logger.Debug("feature added", "feature_id", id, "kind", f.Kind())
	return id
}

// RemoveFeature disposes one feature. Unknown ids are ignored.
func (e *MapEngine) RemoveFeature(id domain.FeatureID) {
	f, ok := e.registry.Remove(id)
	if !ok {
		e.logger.Debug("remove of unknown feature", "feature_id", id)
		return
	}
	e.metrics.IncFeaturesRemoved(string(f.Kind()))
	e.metrics.SetFeaturesActive(e.registry.Len())
}

// ClearFeatures disposes every feature and restarts ids at 1.
func (e *MapEngine) ClearFeatures() {
	for _, id := range e.registry.IDs() {
		if f, ok := e.registry.Get(id); ok {
			e.metrics.IncFeaturesRemoved(string(f.Kind()))
		}
	}
	e.registry.Clear()
	e.metrics.SetFeaturesActive(0)
}

// FeatureIDs returns the ids of all features in ascending order.
func (e *MapEngine) FeatureIDs() []domain.FeatureID {
	return e.registry.IDs()
}

// Feature returns the feature with the given id.
func (e *MapEngine) Feature(id domain.FeatureID) (Feature, bool) {
	return e.registry.Get(id)
}

// FeaturePoints returns the current vertices of any feature.
func (e *MapEngine) FeaturePoints(id domain.FeatureID) []domain.GeoPoint {
	f, ok := e.registry.Get(id)
	if !ok {
		return nil
	}
	return f.Points()
}

// SetMarkerIcon swaps the icon of a marker feature.
func (e *MapEngine) SetMarkerIcon(id domain.FeatureID, icon domain.IconDescription) {
	m, err := e.marker(id, "set icon")
	if err != nil {
		e.logger.Debug("ignoring marker icon change", "error", err)
		return
	}
	m.SetIcon(e.icons.Get(icon))
}

// MarkerPoint returns the current position of a marker feature.
func (e *MapEngine) MarkerPoint(id domain.FeatureID) (domain.GeoPoint, bool) {
	m, err := e.marker(id, "get point")
	if err != nil {
		return domain.GeoPoint{}, false
	}
	return m.Point(), true
}

// AppendPointToLine adds a vertex to a draggable line.
func (e *MapEngine) AppendPointToLine(id domain.FeatureID, p domain.GeoPoint) {
	l, err := e.dynamicLine(id, "append point")
	if err != nil {
		e.logger.Debug("ignoring point append", "error", err)
		return
	}
	l.AddPoint(p)
}

// RemoveLastLinePoint removes the last vertex of a draggable line.
func (e *MapEngine) RemoveLastLinePoint(id domain.FeatureID) {
	l, err := e.dynamicLine(id, "remove point")
	if err != nil {
		e.logger.Debug("ignoring point removal", "error", err)
		return
	}
	l.RemoveLastPoint()
}

// LinePoints returns the vertices of a line feature, or nil for other ids.
func (e *MapEngine) LinePoints(id domain.FeatureID) []domain.GeoPoint {
	f, ok := e.registry.Get(id)
	if !ok {
		return nil
	}
	switch l := f.(type) {
	case *StaticLineFeature:
		return l.Points()
	case *DynamicLineFeature:
		return l.Points()
	default:
		return nil
	}
}

func (e *MapEngine) marker(id domain.FeatureID, op string) (*MarkerFeature, error) {
	f, ok := e.registry.Get(id)
	if !ok {
		return nil, &domain.FeatureError{ID: id, Op: op, Err: domain.ErrFeatureNotFound}
	}
	m, ok := f.(*MarkerFeature)
	if !ok {
		return nil, &domain.FeatureError{ID: id, Op: op, Err: domain.ErrWrongFeatureKind}
	}
	return m, nil
}

func (e *MapEngine) dynamicLine(id domain.FeatureID, op string) (*DynamicLineFeature, error) {
	f, ok := e.registry.Get(id)
	if !ok {
		return nil, &domain.FeatureError{ID: id, Op: op, Err: domain.ErrFeatureNotFound}
	}
	l, ok := f.(*DynamicLineFeature)
	if !ok {
		return nil, &domain.FeatureError{ID: id, Op: op, Err: domain.ErrWrongFeatureKind}
	}
	return l, nil
}

// SetClickListener registers the map click callback.
func (e *MapEngine) SetClickListener(l input.PointListener) { e.onClick = l }

// SetLongPressListener registers the map long press callback.
func (e *MapEngine) SetLongPressListener(l input.PointListener) { e.onLongPress = l }

// SetFeatureClickListener registers the feature click callback.
func (e *MapEngine) SetFeatureClickListener(l input.FeatureListener) { e.onFeatureClick = l }

// SetDragEndListener registers the feature drag end callback.
func (e *MapEngine) SetDragEndListener(l input.FeatureListener) { e.onDragEnd = l }

// SetGpsLocationListener registers the callback for each location fix.
func (e *MapEngine) SetGpsLocationListener(l input.PointListener) {
	if l == nil {
		e.location.SetListener(nil)
		return
	}
	e.location.SetListener(func(p domain.GeoPoint) { l(p) })
}

// SetCenter moves the camera, keeping the zoom.
func (e *MapEngine) SetCenter(p domain.GeoPoint, animate bool) {
	e.camera.SetCenter(p, animate)
}

// ZoomToPoint moves the camera to a point and zoom.
func (e *MapEngine) ZoomToPoint(p domain.GeoPoint, zoom float64, animate bool) {
	e.camera.ZoomToPoint(p, zoom, animate)
}

// ZoomToBoundingBox frames a set of points.
func (e *MapEngine) ZoomToBoundingBox(points []domain.GeoPoint, scaleFactor float64, animate bool) {
	e.camera.ZoomToBoundingBox(points, scaleFactor, animate)
}

// Center returns the camera center.
func (e *MapEngine) Center() domain.GeoPoint { return e.camera.Center() }

// Zoom returns the camera zoom.
func (e *MapEngine) Zoom() float64 { return e.camera.Zoom() }

// HasCenter reports whether the camera was ever explicitly positioned.
func (e *MapEngine) HasCenter() bool { return e.camera.HasCenter() }

// CameraController returns the camera controller.
func (e *MapEngine) CameraController() *CameraController { return e.camera }

// SetGpsLocationEnabled starts or stops location updates.
func (e *MapEngine) SetGpsLocationEnabled(enabled bool) error {
	return e.location.SetEnabled(enabled)
}

// RunOnGpsLocationReady runs cb once a location fix is available.
func (e *MapEngine) RunOnGpsLocationReady(cb input.ReadyListener) {
	if cb == nil {
		return
	}
	e.location.RunOnReady(func() { cb() })
}

// GpsLocation returns the last known location.
func (e *MapEngine) GpsLocation() (domain.GeoPoint, bool) {
	fix, ok := e.location.LastFix()
	return fix.Point, ok
}

// LocationProvider returns the provider name of the last fix.
func (e *MapEngine) LocationProvider() string {
	return e.location.Provider()
}

// LocationTracker returns the location tracker.
func (e *MapEngine) LocationTracker() *LocationTracker { return e.location }

// SetReferenceOverlay shows the tile file at path, or removes the overlay for "".
func (e *MapEngine) SetReferenceOverlay(path string) error {
	return e.overlay.SetOverlayFile(path)
}

// ReferenceOverlay returns the overlay manager.
func (e *MapEngine) ReferenceOverlay() *ReferenceOverlayManager { return e.overlay }

// OnMapClick implements output.EventSink.
func (e *MapEngine) OnMapClick(p domain.GeoPoint) {
	if e.onClick != nil {
		e.onClick(p)
	}
}

// OnMapLongClick implements output.EventSink.
func (e *MapEngine) OnMapLongClick(p domain.GeoPoint) {
	if e.onLongPress != nil {
		e.onLongPress(p)
	}
}

// OnHandleClick implements output.EventSink. Without a feature click listener a
// marker click counts as a map click at the marker position.
func (e *MapEngine) OnHandleClick(h output.Handle) {
	if e.onFeatureClick != nil {
		if id := e.registry.FindByHandle(h); id != domain.NoFeature {
			e.onFeatureClick(id)
		}
		return
	}
	if h.Kind == output.HandleMarker {
		e.OnMapClick(e.provider.MarkerPosition(h))
	}
}

// OnDragStart implements output.EventSink.
func (e *MapEngine) OnDragStart(h output.Handle) {
	e.updateOwner(h)
}

// OnDrag implements output.EventSink.
func (e *MapEngine) OnDrag(h output.Handle) {
	e.updateOwner(h)
}

// OnDragEnd implements output.EventSink. A dragged marker no longer carries a
// measured altitude or accuracy, so both are reset to zero.
func (e *MapEngine) OnDragEnd(h output.Handle) {
	if h.Kind == output.HandleMarker {
		e.provider.SetMarkerMetadata(h, droppedMarkerMetadata)
	}
	id := e.updateOwner(h)
	if id != domain.NoFeature && e.onDragEnd != nil {
		e.onDragEnd(id)
	}
}

func (e *MapEngine) updateOwner(h output.Handle) domain.FeatureID {
	id := e.registry.FindByHandle(h)
	if f, ok := e.registry.Get(id); ok {
		f.Update()
	}
	return id
}
