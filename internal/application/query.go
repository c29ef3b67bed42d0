package application

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/input"
)

// Runner executes fn on the main thread and waits for it to finish.
type Runner interface {
	Call(ctx context.Context, fn func()) error
}

var _ input.MapQuery = (*QueryService)(nil)

// QueryService gives other goroutines access to the map engine by running
// every engine call on the main thread.
type QueryService struct {
	runner      Runner
	engine      *MapEngine
	library     *LayerLibrary
	logger      *slog.Logger
	maxFeatures int
}

// QueryServiceConfig holds configuration for the query service.
type QueryServiceConfig struct {
	MaxFeatures int
}

// NewQueryService creates a new query service.
func NewQueryService(
	runner Runner,
	engine *MapEngine,
	library *LayerLibrary,
	logger *slog.Logger,
	cfg QueryServiceConfig,
) *QueryService {
	if cfg.MaxFeatures == 0 {
		cfg.MaxFeatures = 1000
	}
	return &QueryService{
		runner:      runner,
		engine:      engine,
		library:     library,
		logger:      logger,
		maxFeatures: cfg.MaxFeatures,
	}
}

// QueryFeatures returns the features intersecting bounds as GeoJSON, at most
// maxFeatures of them in id order. nil bounds select all features.
func (s *QueryService) QueryFeatures(ctx context.Context, bounds *domain.Bounds) (*geojson.FeatureCollection, error) {
	if bounds != nil {
		if err := validateBounds(*bounds); err != nil {
			return nil, err
		}
	}

	var fc *geojson.FeatureCollection
	err := s.runner.Call(ctx, func() {
		var ids []domain.FeatureID
		if bounds == nil {
			ids = s.engine.FeatureIDs()
		} else {
			ids = s.engine.FeaturesWithin(*bounds)
		}
		if len(ids) > s.maxFeatures {
			s.logger.Debug("feature query truncated", "matched", len(ids), "max", s.maxFeatures)
			ids = ids[:s.maxFeatures]
		}
		fc = ExportFeatures(s.engine, ids)
	})
	if err != nil {
		return nil, err
	}
	return fc, nil
}

// Status returns a snapshot of camera, location and overlay state.
func (s *QueryService) Status(ctx context.Context) (input.MapStatus, error) {
	var status input.MapStatus
	err := s.runner.Call(ctx, func() {
		status = input.MapStatus{
			Camera:           domain.CameraState{Center: s.engine.Center(), Zoom: s.engine.Zoom()},
			HasCenter:        s.engine.HasCenter(),
			Features:         len(s.engine.FeatureIDs()),
			LocationProvider: s.engine.LocationProvider(),
			LocationEnabled:  s.engine.LocationTracker().Enabled(),
			Overlay:          s.engine.ReferenceOverlay().Current(),
		}
		if p, ok := s.engine.GpsLocation(); ok {
			status.Location = &p
		}
	})
	return status, err
}

// FeatureCount returns the number of features on the map.
func (s *QueryService) FeatureCount(ctx context.Context) (int, error) {
	n := 0
	err := s.runner.Call(ctx, func() {
		n = len(s.engine.FeatureIDs())
	})
	return n, err
}

// SetOverlay shows a loaded reference layer as the map overlay. An empty ID removes it.
func (s *QueryService) SetOverlay(ctx context.Context, layerID string) error {
	path := ""
	if layerID != "" {
		p, err := s.library.LayerPath(layerID)
		if err != nil {
			return err
		}
		path = p
	}

	var overlayErr error
	if err := s.runner.Call(ctx, func() {
		overlayErr = s.engine.SetReferenceOverlay(path)
	}); err != nil {
		return err
	}
	return overlayErr
}

func validateBounds(b domain.Bounds) error {
	for _, v := range []float64{b.South, b.West, b.North, b.East} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite coordinate: %w", domain.ErrInvalidBounds)
		}
	}
	if b.South > b.North {
		return fmt.Errorf("south %f above north %f: %w", b.South, b.North, domain.ErrInvalidBounds)
	}
	if b.South < -90 || b.North > 90 {
		return fmt.Errorf("latitude outside [-90, 90]: %w", domain.ErrInvalidBounds)
	}
	return nil
}
