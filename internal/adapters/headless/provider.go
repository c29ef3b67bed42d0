// Package headless implements a map provider that keeps every primitive in
// memory and computes the camera with web mercator math.
package headless

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

const (
	earthRadius = 6378137.0
	maxLat      = 85.05112878
)

var _ output.MapProvider = (*Provider)(nil)

// Config holds the viewport of the headless map.
type Config struct {
	Width    int     // Viewport width in pixels
	Height   int     // Viewport height in pixels
	TileSize int     // Tile edge in pixels
	MinZoom  float64 // Lowest zoom level
	MaxZoom  float64 // Highest zoom level
	Padding  int     // Pixels kept free around fitted bounds
}

// DefaultConfig returns the viewport of a typical phone screen.
func DefaultConfig() Config {
	return Config{
		Width:    1080,
		Height:   1920,
		TileSize: 256,
		MinZoom:  2,
		MaxZoom:  21,
	}
}

// Marker is a marker kept by the provider.
type Marker struct {
	Position  domain.GeoPoint
	Draggable bool
	Icon      *output.Icon
	Metadata  string
}

// Polyline is a polyline kept by the provider.
type Polyline struct {
	Points    []domain.GeoPoint
	Stroke    domain.StrokeStyle
	Clickable bool
}

// Circle is a circle kept by the provider.
type Circle struct {
	Center domain.GeoPoint
	Radius float64
	Stroke domain.StrokeStyle
	Fill   domain.FillStyle
}

// Provider is an in-memory output.MapProvider. Like a real SDK it must only
// be used from the main thread.
type Provider struct {
	cfg    Config
	logger *slog.Logger
	sink   output.EventSink

	nextID    uint64
	markers   map[uint64]*Marker
	polylines map[uint64]*Polyline
	polygons  map[uint64]*output.PolygonOptions
	circles   map[uint64]*Circle
	overlays  map[uint64]output.TileSource

	labelsVisible bool
	camera        domain.CameraState
}

// New creates a headless provider showing the whole world.
func New(cfg Config, logger *slog.Logger) *Provider {
	def := DefaultConfig()
	if cfg.TileSize <= 0 {
		cfg.TileSize = def.TileSize
	}
	if cfg.MinZoom <= 0 {
		cfg.MinZoom = def.MinZoom
	}
	if cfg.MaxZoom <= 0 || cfg.MaxZoom < cfg.MinZoom {
		cfg.MaxZoom = def.MaxZoom
	}

	return &Provider{
		cfg:           cfg,
		logger:        logger,
		markers:       make(map[uint64]*Marker),
		polylines:     make(map[uint64]*Polyline),
		polygons:      make(map[uint64]*output.PolygonOptions),
		circles:       make(map[uint64]*Circle),
		overlays:      make(map[uint64]output.TileSource),
		labelsVisible: true,
		camera:        domain.CameraState{Zoom: cfg.MinZoom},
	}
}

func (p *Provider) handle(kind output.HandleKind) output.Handle {
	p.nextID++
	return output.Handle{Kind: kind, ID: p.nextID}
}

// SetEventSink implements output.MapProvider.
func (p *Provider) SetEventSink(sink output.EventSink) {
	p.sink = sink
}

// AddMarker implements output.MapProvider.
func (p *Provider) AddMarker(opts output.MarkerOptions) output.Handle {
	h := p.handle(output.HandleMarker)
	p.markers[h.ID] = &Marker{
		Position:  opts.Position.Flat(),
		Draggable: opts.Draggable,
		Icon:      opts.Icon,
		Metadata:  opts.Metadata,
	}
	return h
}

func (p *Provider) marker(h output.Handle) *Marker {
	if h.Kind != output.HandleMarker {
		return nil
	}
	return p.markers[h.ID]
}

// MarkerPosition implements output.MapProvider.
func (p *Provider) MarkerPosition(h output.Handle) domain.GeoPoint {
	if m := p.marker(h); m != nil {
		return m.Position
	}
	return domain.GeoPoint{}
}

// SetMarkerPosition implements output.MapProvider.
func (p *Provider) SetMarkerPosition(h output.Handle, pos domain.GeoPoint) {
	if m := p.marker(h); m != nil {
		m.Position = pos.Flat()
	}
}

// MarkerMetadata implements output.MapProvider.
func (p *Provider) MarkerMetadata(h output.Handle) string {
	if m := p.marker(h); m != nil {
		return m.Metadata
	}
	return ""
}

// SetMarkerMetadata implements output.MapProvider.
func (p *Provider) SetMarkerMetadata(h output.Handle, metadata string) {
	if m := p.marker(h); m != nil {
		m.Metadata = metadata
	}
}

// SetMarkerIcon implements output.MapProvider.
func (p *Provider) SetMarkerIcon(h output.Handle, icon *output.Icon) {
	if m := p.marker(h); m != nil {
		m.Icon = icon
	}
}

// AddPolyline implements output.MapProvider.
func (p *Provider) AddPolyline(opts output.PolylineOptions) output.Handle {
	h := p.handle(output.HandlePolyline)
	p.polylines[h.ID] = &Polyline{
		Points:    copyPoints(opts.Points),
		Stroke:    opts.Stroke,
		Clickable: opts.Clickable,
	}
	return h
}

// SetPolylinePoints implements output.MapProvider.
func (p *Provider) SetPolylinePoints(h output.Handle, points []domain.GeoPoint) {
	if h.Kind != output.HandlePolyline {
		return
	}
	if l, ok := p.polylines[h.ID]; ok {
		l.Points = copyPoints(points)
	}
}

// AddPolygon implements output.MapProvider.
func (p *Provider) AddPolygon(opts output.PolygonOptions) output.Handle {
	h := p.handle(output.HandlePolygon)
	opts.Points = copyPoints(opts.Points)
	p.polygons[h.ID] = &opts
	return h
}

// AddCircle implements output.MapProvider.
func (p *Provider) AddCircle(opts output.CircleOptions) output.Handle {
	h := p.handle(output.HandleCircle)
	p.circles[h.ID] = &Circle{
		Center: opts.Center.Flat(),
		Radius: opts.Radius,
		Stroke: opts.Stroke,
		Fill:   opts.Fill,
	}
	return h
}

// SetCircle implements output.MapProvider.
func (p *Provider) SetCircle(h output.Handle, center domain.GeoPoint, radius float64) {
	if h.Kind != output.HandleCircle {
		return
	}
	if c, ok := p.circles[h.ID]; ok {
		c.Center = center.Flat()
		c.Radius = radius
	}
}

// AddTileOverlay implements output.MapProvider.
func (p *Provider) AddTileOverlay(src output.TileSource) (output.Handle, error) {
	if src == nil {
		return output.Handle{}, fmt.Errorf("tile overlay: %w", domain.ErrInvalidInput)
	}
	h := p.handle(output.HandleOverlay)
	p.overlays[h.ID] = src
	return h, nil
}

// Remove implements output.MapProvider. Unknown handles are ignored.
func (p *Provider) Remove(h output.Handle) {
	switch h.Kind {
	case output.HandleMarker:
		delete(p.markers, h.ID)
	case output.HandlePolyline:
		delete(p.polylines, h.ID)
	case output.HandlePolygon:
		delete(p.polygons, h.ID)
	case output.HandleCircle:
		delete(p.circles, h.ID)
	case output.HandleOverlay:
		delete(p.overlays, h.ID)
	}
}

// SetLabelsVisible implements output.MapProvider.
func (p *Provider) SetLabelsVisible(visible bool) {
	p.labelsVisible = visible
}

// LabelsVisible reports whether base map labels are shown.
func (p *Provider) LabelsVisible() bool {
	return p.labelsVisible
}

// Camera implements output.MapProvider.
func (p *Provider) Camera() domain.CameraState {
	return p.camera
}

// MinZoom implements output.MapProvider.
func (p *Provider) MinZoom() float64 {
	return p.cfg.MinZoom
}

// MoveCamera implements output.MapProvider. Animation is not simulated.
func (p *Provider) MoveCamera(center domain.GeoPoint, zoom float64, _ bool) {
	p.camera = domain.CameraState{
		Center: normalize(center),
		Zoom:   p.clampZoom(zoom),
	}
}

// FitBounds implements output.MapProvider. The camera is centered on the
// mercator midpoint of b at the highest zoom that still shows all of b.
func (p *Provider) FitBounds(b domain.Bounds, _ bool) error {
	if p.cfg.Width <= 0 || p.cfg.Height <= 0 {
		return fmt.Errorf("viewport has no size: %w", domain.ErrNotReady)
	}
	if b.IsEmpty() || math.IsNaN(b.LatSpan()) || math.IsNaN(b.LonSpan()) {
		return domain.ErrInvalidBounds
	}

	sw := project.WGS84.ToMercator(orb.Point{b.West, clampLat(b.South)})
	ne := project.WGS84.ToMercator(orb.Point{b.East, clampLat(b.North)})

	width := float64(p.cfg.Width - 2*p.cfg.Padding)
	height := float64(p.cfg.Height - 2*p.cfg.Padding)
	if width <= 0 || height <= 0 {
		return fmt.Errorf("padding exceeds viewport: %w", domain.ErrNotReady)
	}

	zoom := math.Min(
		fitZoom(width, ne[0]-sw[0], p.cfg.TileSize),
		fitZoom(height, ne[1]-sw[1], p.cfg.TileSize),
	)
	center := project.Mercator.ToWGS84(orb.Point{(sw[0] + ne[0]) / 2, (sw[1] + ne[1]) / 2})

	p.MoveCamera(domain.FromOrb(center), zoom, false)
	return nil
}

// fitZoom returns the zoom at which meters of mercator extent fill pixels.
func fitZoom(pixels, meters float64, tileSize int) float64 {
	world := 2 * math.Pi * earthRadius
	return math.Log2(pixels * world / (meters * float64(tileSize)))
}

// VisibleBounds returns the box currently shown by the camera.
func (p *Provider) VisibleBounds() domain.Bounds {
	c := project.WGS84.ToMercator(p.camera.Center.Orb())
	metersPerPixel := 2 * math.Pi * earthRadius / (float64(p.cfg.TileSize) * math.Exp2(p.camera.Zoom))
	halfW := float64(p.cfg.Width) / 2 * metersPerPixel
	halfH := float64(p.cfg.Height) / 2 * metersPerPixel

	sw := project.Mercator.ToWGS84(orb.Point{c[0] - halfW, c[1] - halfH})
	ne := project.Mercator.ToWGS84(orb.Point{c[0] + halfW, c[1] + halfH})
	return domain.Bounds{South: sw.Lat(), West: sw.Lon(), North: ne.Lat(), East: ne.Lon()}
}

func (p *Provider) clampZoom(z float64) float64 {
	if math.IsNaN(z) {
		return p.cfg.MinZoom
	}
	return math.Max(p.cfg.MinZoom, math.Min(p.cfg.MaxZoom, z))
}

// Marker returns the marker behind h.
func (p *Provider) Marker(h output.Handle) (Marker, bool) {
	m := p.marker(h)
	if m == nil {
		return Marker{}, false
	}
	return *m, true
}

// Polyline returns the polyline behind h.
func (p *Provider) Polyline(h output.Handle) (Polyline, bool) {
	if h.Kind != output.HandlePolyline {
		return Polyline{}, false
	}
	l, ok := p.polylines[h.ID]
	if !ok {
		return Polyline{}, false
	}
	return *l, true
}

// Circle returns the circle behind h.
func (p *Provider) Circle(h output.Handle) (Circle, bool) {
	if h.Kind != output.HandleCircle {
		return Circle{}, false
	}
	c, ok := p.circles[h.ID]
	if !ok {
		return Circle{}, false
	}
	return *c, true
}

// Overlays returns the tile sources currently drawn.
func (p *Provider) Overlays() []output.TileSource {
	ids := make([]uint64, 0, len(p.overlays))
	for id := range p.overlays {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	srcs := make([]output.TileSource, len(ids))
	for i, id := range ids {
		srcs[i] = p.overlays[id]
	}
	return srcs
}

// Handles returns every live handle of a kind, in creation order.
func (p *Provider) Handles(kind output.HandleKind) []output.Handle {
	var ids []uint64
	switch kind {
	case output.HandleMarker:
		ids = keys(p.markers)
	case output.HandlePolyline:
		ids = keys(p.polylines)
	case output.HandlePolygon:
		ids = keys(p.polygons)
	case output.HandleCircle:
		ids = keys(p.circles)
	case output.HandleOverlay:
		ids = keys(p.overlays)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	handles := make([]output.Handle, len(ids))
	for i, id := range ids {
		handles[i] = output.Handle{Kind: kind, ID: id}
	}
	return handles
}

// Count returns the number of live primitives.
func (p *Provider) Count() int {
	return len(p.markers) + len(p.polylines) + len(p.polygons) + len(p.circles) + len(p.overlays)
}

func keys[V any](m map[uint64]V) []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return ids
}

func copyPoints(points []domain.GeoPoint) []domain.GeoPoint {
	out := make([]domain.GeoPoint, len(points))
	for i, pt := range points {
		out[i] = pt.Flat()
	}
	return out
}

func clampLat(lat float64) float64 {
	return math.Max(-maxLat, math.Min(maxLat, lat))
}

// normalize wraps the longitude into [-180, 180].
func normalize(p domain.GeoPoint) domain.GeoPoint {
	lon := math.Mod(p.Lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return domain.GeoPoint{Lat: clampLat(p.Lat), Lon: lon - 180}
}
