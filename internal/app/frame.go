package app

import (
	"errors"
	"log/slog"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/mapkit/internal/adapters/headless"
	"github.com/jobrunner/mapkit/internal/application"
	"github.com/jobrunner/mapkit/internal/config"
	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

// ErrNothingToFrame is returned when the imported features have no points.
var ErrNothingToFrame = errors.New("no points to frame")

// FrameResult is the camera a headless map ends up with after framing features.
type FrameResult struct {
	Camera   domain.CameraState `json:"camera"`
	Visible  [4]float64         `json:"visible_bbox"` // west, south, east, north
	Features int                `json:"features"`
	Points   int                `json:"points"`
}

// Frame imports fc into a headless map and fits the camera to all of its points.
// The call runs entirely on the calling goroutine.
func Frame(cfg config.MapConfig, fc *geojson.FeatureCollection, scale float64, logger *slog.Logger) (FrameResult, error) {
	provider := headless.New(viewport(cfg.Viewport), logger)
	sched := &stepScheduler{}
	engine := application.NewMapEngine(provider, nil, nil, sched, nil, &output.NoOpMetrics{}, logger, engineConfig(cfg))
	engine.Init()
	defer engine.Teardown()

	ids, err := application.ImportGeoJSON(engine, fc)
	if err != nil {
		return FrameResult{}, err
	}

	var points []domain.GeoPoint
	for _, id := range ids {
		points = append(points, engine.FeaturePoints(id)...)
	}
	if len(points) == 0 {
		return FrameResult{}, ErrNothingToFrame
	}

	engine.ZoomToBoundingBox(points, scale, false)
	sched.flush()

	b := provider.VisibleBounds()
	return FrameResult{
		Camera:   provider.Camera(),
		Visible:  [4]float64{b.West, b.South, b.East, b.North},
		Features: len(ids),
		Points:   len(points),
	}, nil
}

// stepScheduler holds deferred callbacks until flush runs them.
type stepScheduler struct {
	pending []*func()
}

func (s *stepScheduler) AfterFunc(_ time.Duration, fn func()) func() {
	p := &fn
	s.pending = append(s.pending, p)
	return func() { *p = nil }
}

// flush runs pending callbacks, including ones scheduled while flushing.
func (s *stepScheduler) flush() {
	for len(s.pending) > 0 {
		p := s.pending[0]
		s.pending = s.pending[1:]
		if fn := *p; fn != nil {
			*p = nil
			fn()
		}
	}
}
