package application

import (
	"log/slog"
	"math"
	"time"

	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

// Camera defaults.
const (
	DefaultPointZoom = 16.0
	DefaultFitDelay  = 100 * time.Millisecond
)

// maxLonRadius keeps an expanded box short of a full-globe (degenerate) width.
const maxLonRadius = 180 - 1e-6

// minFrameFactor is the smallest expansion applied when framing points, so they
// never sit flush with the viewport edge, even at a scale factor of 1.
const minFrameFactor = 1.05

// CameraController moves the provider camera.
type CameraController struct {
	provider  output.MapProvider
	scheduler output.Scheduler
	metrics   output.MetricsCollector
	logger    *slog.Logger
	pointZoom float64
	fitDelay  time.Duration
	hasCenter bool
	cancelFit func()
}

// NewCameraController creates a camera controller.
func NewCameraController(
	provider output.MapProvider,
	scheduler output.Scheduler,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	pointZoom float64,
	fitDelay time.Duration,
) *CameraController {
	if pointZoom <= 0 {
		pointZoom = DefaultPointZoom
	}
	if fitDelay < 0 {
		fitDelay = DefaultFitDelay
	}
	return &CameraController{
		provider:  provider,
		scheduler: scheduler,
		metrics:   metrics,
		logger:    logger,
		pointZoom: pointZoom,
		fitDelay:  fitDelay,
	}
}

// PointZoom returns the zoom used to frame a single point.
func (c *CameraController) PointZoom() float64 {
	return c.pointZoom
}

// SetCenter moves the camera to p, keeping the current zoom.
func (c *CameraController) SetCenter(p domain.GeoPoint, animate bool) {
	c.cancelPendingFit()
	c.provider.MoveCamera(p.Flat(), c.provider.Camera().Zoom, animate)
	c.hasCenter = true
}

// ZoomToPoint moves the camera to p at the given zoom.
func (c *CameraController) ZoomToPoint(p domain.GeoPoint, zoom float64, animate bool) {
	c.cancelPendingFit()
	c.provider.MoveCamera(p.Flat(), zoom, animate)
	c.hasCenter = true
}

// ZoomToBoundingBox frames all points. A single point is shown at the point zoom;
// several points are framed in their narrowest box, which may cross the
// antimeridian, expanded by 1/scaleFactor but at least by minFrameFactor, once
// the fit delay has passed. A newer camera command cancels a pending fit.
func (c *CameraController) ZoomToBoundingBox(points []domain.GeoPoint, scaleFactor float64, animate bool) {
	switch len(points) {
	case 0:
		return
	case 1:
		c.ZoomToPoint(points[0], c.pointZoom, animate)
		return
	}

	if scaleFactor <= 0 || math.IsNaN(scaleFactor) {
		scaleFactor = 1
	}
	bounds := ExpandBounds(domain.WrappedBoundsOf(points), math.Max(1/scaleFactor, minFrameFactor))

	c.cancelPendingFit()
	c.hasCenter = true
	c.cancelFit = c.scheduler.AfterFunc(c.fitDelay, func() {
		c.cancelFit = nil
		c.applyFit(bounds, animate)
	})
}

// applyFit moves the camera to the bounds, falling back to the box center at
// minimum zoom when the provider rejects them.
func (c *CameraController) applyFit(bounds domain.Bounds, animate bool) {
	err := c.provider.FitBounds(bounds, animate)
	if err == nil {
		c.metrics.IncCameraFits(false)
		return
	}
	c.logger.Debug("bounds rejected, zooming to center",
		"south", bounds.South, "west", bounds.West,
		"north", bounds.North, "east", bounds.East,
		"error", err,
	)
	c.metrics.IncCameraFits(true)
	c.provider.MoveCamera(bounds.Center(), c.provider.MinZoom(), false)
}

// FitPending reports whether a deferred bounding box fit has not run yet.
func (c *CameraController) FitPending() bool {
	return c.cancelFit != nil
}

func (c *CameraController) cancelPendingFit() {
	if c.cancelFit != nil {
		c.cancelFit()
		c.cancelFit = nil
	}
}

// Center returns the current camera center.
func (c *CameraController) Center() domain.GeoPoint {
	return c.provider.Camera().Center
}

// Zoom returns the current camera zoom.
func (c *CameraController) Zoom() float64 {
	return c.provider.Camera().Zoom
}

// HasCenter reports whether the camera was ever explicitly positioned.
func (c *CameraController) HasCenter() bool {
	return c.hasCenter
}

// ExpandBounds scales the latitude and longitude radius of b by factor.
// Latitudes are clamped to [-90, 90]. East is normalized to be >= west, so the
// result may extend past 180 when it crosses the antimeridian, and the longitude
// radius stays just under 180 degrees.
func ExpandBounds(b domain.Bounds, factor float64) domain.Bounds {
	latCenter := (b.North + b.South) / 2
	latRadius := (b.North - b.South) / 2 * factor
	north := math.Min(90, latCenter+latRadius)
	south := math.Max(-90, latCenter-latRadius)

	east, west := b.East, b.West
	for east < west {
		east += 360
	}
	lonCenter := (east + west) / 2
	lonRadius := math.Min(maxLonRadius, (east-west)/2*factor)

	return domain.Bounds{
		South: south,
		West:  lonCenter - lonRadius,
		North: north,
		East:  lonCenter + lonRadius,
	}
}
