package application

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeObject is one primitive drawn by fakeProvider.
type fakeObject struct {
	Position  domain.GeoPoint
	Points    []domain.GeoPoint
	Metadata  string
	Icon      *output.Icon
	Draggable bool
	Radius    float64
	Source    output.TileSource
}

type cameraMove struct {
	Center  domain.GeoPoint
	Zoom    float64
	Animate bool
}

// fakeProvider implements output.MapProvider in memory.
type fakeProvider struct {
	nextID  uint64
	objects map[output.Handle]*fakeObject
	removed []output.Handle
	sink    output.EventSink

	labelsVisible bool
	camera        domain.CameraState
	minZoom       float64
	fitErr        error
	overlayErr    error
	moves         []cameraMove
	fits          []domain.Bounds
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		objects:       make(map[output.Handle]*fakeObject),
		labelsVisible: true,
		camera:        domain.CameraState{Zoom: 3},
		minZoom:       2,
	}
}

func (p *fakeProvider) add(kind output.HandleKind, obj *fakeObject) output.Handle {
	p.nextID++
	h := output.Handle{Kind: kind, ID: p.nextID}
	p.objects[h] = obj
	return h
}

func (p *fakeProvider) SetEventSink(sink output.EventSink) { p.sink = sink }

func (p *fakeProvider) AddMarker(opts output.MarkerOptions) output.Handle {
	return p.add(output.HandleMarker, &fakeObject{
		Position:  opts.Position,
		Metadata:  opts.Metadata,
		Icon:      opts.Icon,
		Draggable: opts.Draggable,
	})
}

func (p *fakeProvider) MarkerPosition(h output.Handle) domain.GeoPoint {
	if obj, ok := p.objects[h]; ok {
		return obj.Position
	}
	return domain.GeoPoint{}
}

func (p *fakeProvider) SetMarkerPosition(h output.Handle, pos domain.GeoPoint) {
	if obj, ok := p.objects[h]; ok {
		obj.Position = pos
	}
}

func (p *fakeProvider) MarkerMetadata(h output.Handle) string {
	if obj, ok := p.objects[h]; ok {
		return obj.Metadata
	}
	return ""
}

func (p *fakeProvider) SetMarkerMetadata(h output.Handle, metadata string) {
	if obj, ok := p.objects[h]; ok {
		obj.Metadata = metadata
	}
}

func (p *fakeProvider) SetMarkerIcon(h output.Handle, icon *output.Icon) {
	if obj, ok := p.objects[h]; ok {
		obj.Icon = icon
	}
}

func (p *fakeProvider) AddPolyline(opts output.PolylineOptions) output.Handle {
	return p.add(output.HandlePolyline, &fakeObject{Points: opts.Points})
}

func (p *fakeProvider) SetPolylinePoints(h output.Handle, points []domain.GeoPoint) {
	if obj, ok := p.objects[h]; ok {
		obj.Points = points
	}
}

func (p *fakeProvider) AddPolygon(opts output.PolygonOptions) output.Handle {
	return p.add(output.HandlePolygon, &fakeObject{Points: opts.Points})
}

func (p *fakeProvider) AddCircle(opts output.CircleOptions) output.Handle {
	return p.add(output.HandleCircle, &fakeObject{Position: opts.Center, Radius: opts.Radius})
}

func (p *fakeProvider) SetCircle(h output.Handle, center domain.GeoPoint, radius float64) {
	if obj, ok := p.objects[h]; ok {
		obj.Position = center
		obj.Radius = radius
	}
}

func (p *fakeProvider) AddTileOverlay(src output.TileSource) (output.Handle, error) {
	if p.overlayErr != nil {
		return output.Handle{}, p.overlayErr
	}
	return p.add(output.HandleOverlay, &fakeObject{Source: src}), nil
}

func (p *fakeProvider) Remove(h output.Handle) {
	p.removed = append(p.removed, h)
	delete(p.objects, h)
}

func (p *fakeProvider) SetLabelsVisible(visible bool) { p.labelsVisible = visible }

func (p *fakeProvider) Camera() domain.CameraState { return p.camera }

func (p *fakeProvider) MinZoom() float64 { return p.minZoom }

func (p *fakeProvider) MoveCamera(center domain.GeoPoint, zoom float64, animate bool) {
	p.moves = append(p.moves, cameraMove{Center: center, Zoom: zoom, Animate: animate})
	p.camera = domain.CameraState{Center: center, Zoom: zoom}
}

func (p *fakeProvider) FitBounds(b domain.Bounds, _ bool) error {
	p.fits = append(p.fits, b)
	if p.fitErr != nil {
		return p.fitErr
	}
	p.camera = domain.CameraState{Center: b.Center(), Zoom: 5}
	return nil
}

// count returns the number of live primitives of a kind.
func (p *fakeProvider) count(kind output.HandleKind) int {
	n := 0
	for h := range p.objects {
		if h.Kind == kind {
			n++
		}
	}
	return n
}

// handles returns the live handles of a kind in creation order.
func (p *fakeProvider) handles(kind output.HandleKind) []output.Handle {
	var hs []output.Handle
	for h := range p.objects {
		if h.Kind == kind {
			hs = append(hs, h)
		}
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i].ID < hs[j].ID })
	return hs
}

// drag moves a marker the way a user drag would.
func (p *fakeProvider) drag(h output.Handle, to domain.GeoPoint) {
	p.sink.OnDragStart(h)
	p.SetMarkerPosition(h, to)
	p.sink.OnDrag(h)
	p.sink.OnDragEnd(h)
}

// fakeScheduler implements output.Scheduler with a manual clock.
type fakeScheduler struct {
	now   time.Duration
	tasks []*fakeTask
}

type fakeTask struct {
	at        time.Duration
	fn        func()
	cancelled bool
	done      bool
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) func() {
	task := &fakeTask{at: s.now + d, fn: fn}
	s.tasks = append(s.tasks, task)
	return func() { task.cancelled = true }
}

// Advance moves the clock and runs due tasks in order.
func (s *fakeScheduler) Advance(d time.Duration) {
	s.now += d
	for _, task := range s.tasks {
		if task.at <= s.now && !task.cancelled && !task.done {
			task.done = true
			task.fn()
		}
	}
}

// Pending returns the number of tasks that have neither run nor been cancelled.
func (s *fakeScheduler) Pending() int {
	n := 0
	for _, task := range s.tasks {
		if !task.cancelled && !task.done {
			n++
		}
	}
	return n
}

// fakeLocation implements output.LocationProvider.
type fakeLocation struct {
	name     string
	onFix    func(domain.LocationFix)
	startErr error
	starts   int
	stops    int
}

func (l *fakeLocation) Name() string { return l.name }

func (l *fakeLocation) Start(onFix func(domain.LocationFix)) error {
	if l.startErr != nil {
		return l.startErr
	}
	l.starts++
	l.onFix = onFix
	return nil
}

func (l *fakeLocation) Stop() {
	l.stops++
	l.onFix = nil
}

// emit delivers a fix if the provider is running.
func (l *fakeLocation) emit(p domain.GeoPoint) {
	if l.onFix != nil {
		l.onFix(domain.LocationFix{Point: p, Provider: l.name, Time: time.Now()})
	}
}

// fakeIcons implements output.IconResolver.
type fakeIcons struct {
	calls int
	err   error
}

func (r *fakeIcons) Resolve(desc domain.IconDescription) (*output.Icon, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &output.Icon{Key: desc.Ref + desc.Color + desc.Symbol, AnchorX: 0.5, AnchorY: 1}, nil
}

// fakeTileSource implements output.TileSource.
type fakeTileSource struct {
	layer  domain.ReferenceLayer
	tiles  map[[3]int][]byte
	closed bool
}

func (s *fakeTileSource) Layer() domain.ReferenceLayer { return s.layer }

func (s *fakeTileSource) Tile(_ context.Context, z, x, y int) ([]byte, error) {
	if data, ok := s.tiles[[3]int{z, x, y}]; ok {
		return data, nil
	}
	return nil, domain.ErrTileNotFound
}

func (s *fakeTileSource) Close() error {
	s.closed = true
	return nil
}

// fakeOpener implements output.TileSourceOpener.
type fakeOpener struct {
	format  string
	openErr error
	opened  []*fakeTileSource
}

func (o *fakeOpener) Open(_ context.Context, path string) (output.TileSource, error) {
	if o.openErr != nil {
		return nil, o.openErr
	}
	format := o.format
	if format == "" {
		format = "png"
	}
	src := &fakeTileSource{
		layer: domain.ReferenceLayer{ID: deriveLayerID(path), Name: path, Format: format},
		tiles: map[[3]int][]byte{{0, 0, 0}: []byte("tile")},
	}
	o.opened = append(o.opened, src)
	return src, nil
}

// mockStorage implements output.LayerStorage for testing.
type mockStorage struct {
	objects     []output.StorageObject
	downloadErr error
	listErr     error
}

func (m *mockStorage) List(_ context.Context) ([]output.StorageObject, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.objects, nil
}

func (m *mockStorage) Download(_ context.Context, _, _ string) error {
	return m.downloadErr
}

func (m *mockStorage) GetReader(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, nil
}

func (m *mockStorage) Exists(_ context.Context, _ string) (bool, error) {
	return true, nil
}

// countingMetrics records engine metric calls.
type countingMetrics struct {
	output.NoOpMetrics
	added    map[string]int
	removed  map[string]int
	active   int
	fits     int
	fallback int
	fixes    int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{added: map[string]int{}, removed: map[string]int{}}
}

func (m *countingMetrics) IncFeaturesAdded(kind string)   { m.added[kind]++ }
func (m *countingMetrics) IncFeaturesRemoved(kind string) { m.removed[kind]++ }
func (m *countingMetrics) SetFeaturesActive(n int)        { m.active = n }
func (m *countingMetrics) IncLocationFixes(_ string)      { m.fixes++ }

func (m *countingMetrics) IncCameraFits(fallback bool) {
	if fallback {
		m.fallback++
		return
	}
	m.fits++
}

// testEngine bundles an engine with its fakes.
type testEngine struct {
	*MapEngine
	provider  *fakeProvider
	scheduler *fakeScheduler
	location  *fakeLocation
	icons     *fakeIcons
	opener    *fakeOpener
	metrics   *countingMetrics
}

func newTestEngine() *testEngine {
	te := &testEngine{
		provider:  newFakeProvider(),
		scheduler: &fakeScheduler{},
		location:  &fakeLocation{name: "gps"},
		icons:     &fakeIcons{},
		opener:    &fakeOpener{},
		metrics:   newCountingMetrics(),
	}
	te.MapEngine = NewMapEngine(te.provider, te.location, te.icons, te.scheduler, te.opener, te.metrics, testLogger(), EngineConfig{
		PointZoom:     DefaultPointZoom,
		FitDelay:      DefaultFitDelay,
		CrosshairIcon: domain.IconDescription{Ref: "crosshair"},
		VertexIcon:    domain.IconDescription{Ref: "vertex"},
	})
	te.Init()
	return te
}
