package application

import (
	"context"

	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/input"
)

// FeatureCounter returns the number of features on the map. It is called from
// outside the main thread and must hand the read over to it.
type FeatureCounter func(ctx context.Context) (int, error)

// HealthService provides health check functionality.
type HealthService struct {
	library  *LayerLibrary
	features FeatureCounter
}

// NewHealthService creates a new health service. features may be nil.
func NewHealthService(library *LayerLibrary, features FeatureCounter) *HealthService {
	return &HealthService{
		library:  library,
		features: features,
	}
}

// IsHealthy returns true if the main thread responds.
func (s *HealthService) IsHealthy(ctx context.Context) bool {
	if s.features == nil {
		return true
	}
	_, err := s.features(ctx)
	return err == nil
}

// IsReady returns true if the service is ready to accept requests.
func (s *HealthService) IsReady(ctx context.Context) bool {
	layers, err := s.library.ListLayers(ctx)
	if err != nil {
		return false
	}

	for _, layer := range layers {
		if layer.IsReady() {
			return true
		}
	}

	// Also ready if no layers are configured
	return len(layers) == 0
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	layers, _ := s.library.ListLayers(ctx)

	ready := 0
	for _, layer := range layers {
		if layer.IsReady() {
			ready++
		}
	}

	components := map[string]string{
		"layers": "ok",
		"engine": "ok",
	}

	features := 0
	healthy := true
	if s.features != nil {
		n, err := s.features(ctx)
		if err != nil {
			components["engine"] = "unavailable"
			healthy = false
		}
		features = n
	}

	return input.HealthDetails{
		Healthy:      healthy,
		Ready:        s.IsReady(ctx),
		LayersLoaded: len(layers),
		LayersReady:  ready,
		Features:     features,
		Components:   components,
	}
}

// LayerHealth contains health info for a single layer.
type LayerHealth struct {
	ID     string
	Status domain.LayerStatus
	Ready  bool
}

// GetLayerHealth returns health info for all layers.
func (s *HealthService) GetLayerHealth(ctx context.Context) []LayerHealth {
	layers, _ := s.library.ListLayers(ctx)

	health := make([]LayerHealth, len(layers))
	for i, layer := range layers {
		health[i] = LayerHealth{
			ID:     layer.ID,
			Status: layer.Status,
			Ready:  layer.IsReady(),
		}
	}
	return health
}
