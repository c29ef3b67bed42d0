package application

import (
	"strconv"
	"strings"

	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

// MarkerFeature is a single marker.
type MarkerFeature struct {
	provider output.MapProvider
	handle   output.Handle
	disposed bool
}

func newMarkerFeature(provider output.MapProvider, p domain.GeoPoint, draggable bool, icon *output.Icon) *MarkerFeature {
	return &MarkerFeature{
		provider: provider,
		handle:   addMarker(provider, p, draggable, icon),
	}
}

// Kind implements Feature.
func (m *MarkerFeature) Kind() domain.FeatureKind { return domain.KindMarker }

// OwnsHandle implements Feature.
func (m *MarkerFeature) OwnsHandle(h output.Handle) bool {
	return !m.disposed && h == m.handle
}

// Point returns the rendered position, which changes when the marker is dragged.
func (m *MarkerFeature) Point() domain.GeoPoint {
	return markerPoint(m.provider, m.handle)
}

// Points implements Feature.
func (m *MarkerFeature) Points() []domain.GeoPoint {
	if m.disposed {
		return nil
	}
	return []domain.GeoPoint{m.Point()}
}

// SetIcon swaps the icon without recreating the marker.
func (m *MarkerFeature) SetIcon(icon *output.Icon) {
	if m.disposed {
		return
	}
	m.provider.SetMarkerIcon(m.handle, icon)
}

// Update implements Feature.
func (m *MarkerFeature) Update() {}

// Dispose implements Feature.
func (m *MarkerFeature) Dispose() {
	if m.disposed {
		return
	}
	m.provider.Remove(m.handle)
	m.disposed = true
}

func (m *MarkerFeature) sealed() {}

// addMarker draws a marker carrying the altitude and accuracy of p as metadata.
func addMarker(provider output.MapProvider, p domain.GeoPoint, draggable bool, icon *output.Icon) output.Handle {
	return provider.AddMarker(output.MarkerOptions{
		Position:  p.Flat(),
		Draggable: draggable,
		Icon:      icon,
		Metadata:  formatMarkerMetadata(p.Alt, p.Accuracy),
	})
}

// markerPoint reads the rendered position of a marker together with its metadata.
func markerPoint(provider output.MapProvider, h output.Handle) domain.GeoPoint {
	pos := provider.MarkerPosition(h)
	alt, acc := parseMarkerMetadata(provider.MarkerMetadata(h))
	return domain.GeoPoint{Lat: pos.Lat, Lon: pos.Lon, Alt: alt, Accuracy: acc}
}

// droppedMarkerMetadata is stored on markers moved by hand.
const droppedMarkerMetadata = "0;0"

func formatMarkerMetadata(alt, accuracy float64) string {
	return strconv.FormatFloat(alt, 'g', -1, 64) + ";" + strconv.FormatFloat(accuracy, 'g', -1, 64)
}

// parseMarkerMetadata decodes "alt;accuracy". Anything malformed yields 0, 0.
func parseMarkerMetadata(s string) (alt, accuracy float64) {
	parts := strings.Split(s, ";")
	if len(parts) < 2 {
		return 0, 0
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0
	}
	sd, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0
	}
	return a, sd
}
