package application

import (
	"log/slog"

	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

// CrosshairStyle describes the location indicator.
type CrosshairStyle struct {
	Icon           *output.Icon
	AccuracyStroke domain.StrokeStyle
	AccuracyFill   domain.FillStyle
}

// LocationTracker turns location fixes into a crosshair marker and accuracy circle.
type LocationTracker struct {
	provider output.MapProvider
	location output.LocationProvider
	metrics  output.MetricsCollector
	logger   *slog.Logger
	style    CrosshairStyle

	enabled  bool
	fix      *domain.LocationFix
	ready    []func()
	listener func(domain.GeoPoint)

	crosshair output.Handle
	circle    output.Handle
}

// NewLocationTracker creates a tracker. location may be nil when the host has no
// location source; enabling then fails with domain.ErrUnavailable.
func NewLocationTracker(
	provider output.MapProvider,
	location output.LocationProvider,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	style CrosshairStyle,
) *LocationTracker {
	return &LocationTracker{
		provider: provider,
		location: location,
		metrics:  metrics,
		logger:   logger,
		style:    style,
	}
}

// SetStyle replaces the crosshair style used for indicators created later.
func (t *LocationTracker) SetStyle(style CrosshairStyle) {
	t.style = style
}

// SetListener registers the callback invoked with each new position.
func (t *LocationTracker) SetListener(l func(domain.GeoPoint)) {
	t.listener = l
}

// SetEnabled starts or stops the location provider. Disabling removes the crosshair.
func (t *LocationTracker) SetEnabled(enabled bool) error {
	if enabled == t.enabled {
		return nil
	}
	if enabled {
		if t.location == nil {
			return domain.ErrUnavailable
		}
		if err := t.location.Start(t.OnFix); err != nil {
			t.logger.Error("failed to start location provider", "provider", t.location.Name(), "error", err)
			return err
		}
		t.enabled = true
		t.logger.Info("location updates enabled", "provider", t.location.Name())
		return nil
	}

	t.location.Stop()
	t.enabled = false
	t.removeIndicator()
	t.logger.Info("location updates disabled", "provider", t.location.Name())
	return nil
}

// Enabled reports whether location updates are on.
func (t *LocationTracker) Enabled() bool {
	return t.enabled
}

// OnFix handles a new fix from the location provider.
func (t *LocationTracker) OnFix(fix domain.LocationFix) {
	t.fix = &fix
	t.metrics.IncLocationFixes(fix.Provider)

	// Swap the queue out first so a callback that registers again runs immediately.
	pending := t.ready
	t.ready = nil
	for _, cb := range pending {
		cb()
	}

	if t.listener != nil {
		t.listener(fix.Point)
	}

	t.updateIndicator(fix.Point)
}

// RunOnReady invokes cb now if a fix exists, otherwise after the first fix.
func (t *LocationTracker) RunOnReady(cb func()) {
	if cb == nil {
		return
	}
	if t.fix != nil {
		cb()
		return
	}
	t.ready = append(t.ready, cb)
}

// PendingReady returns the number of callbacks waiting for a fix.
func (t *LocationTracker) PendingReady() int {
	return len(t.ready)
}

// LastFix returns the last received fix.
func (t *LocationTracker) LastFix() (domain.LocationFix, bool) {
	if t.fix == nil {
		return domain.LocationFix{}, false
	}
	return *t.fix, true
}

// Provider returns the provider name of the last fix.
func (t *LocationTracker) Provider() string {
	if t.fix == nil {
		return ""
	}
	return t.fix.Provider
}

// Handles returns the crosshair marker and accuracy circle handles, zero if not drawn.
func (t *LocationTracker) Handles() (crosshair, circle output.Handle) {
	return t.crosshair, t.circle
}

func (t *LocationTracker) updateIndicator(p domain.GeoPoint) {
	center := p.Flat()
	if t.crosshair.IsZero() {
		t.crosshair = t.provider.AddMarker(output.MarkerOptions{
			Position: center,
			Icon:     t.style.Icon,
		})
		t.circle = t.provider.AddCircle(output.CircleOptions{
			Center: center,
			Radius: p.Accuracy,
			Stroke: t.style.AccuracyStroke,
			Fill:   t.style.AccuracyFill,
		})
		return
	}
	t.provider.SetMarkerPosition(t.crosshair, center)
	t.provider.SetCircle(t.circle, center, p.Accuracy)
}

func (t *LocationTracker) removeIndicator() {
	if !t.crosshair.IsZero() {
		t.provider.Remove(t.crosshair)
		t.crosshair = output.Handle{}
	}
	if !t.circle.IsZero() {
		t.provider.Remove(t.circle)
		t.circle = output.Handle{}
	}
}
