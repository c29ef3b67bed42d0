package application

import (
	"context"
	"errors"
	"testing"

	"github.com/jobrunner/mapkit/internal/domain"
)

func layerEntries(statuses map[string]domain.LayerStatus) map[string]*layerEntry {
	entries := make(map[string]*layerEntry, len(statuses))
	for id, status := range statuses {
		entries[id] = &layerEntry{
			Layer:  domain.ReferenceLayer{ID: id, Format: "png", Status: status},
			Source: &fakeTileSource{},
		}
	}
	return entries
}

func TestHealthServiceIsHealthy(t *testing.T) {
	library, _ := newTestLibrary(nil)

	tests := []struct {
		name     string
		features FeatureCounter
		want     bool
	}{
		{"no engine", nil, true},
		{"engine responds", func(context.Context) (int, error) { return 3, nil }, true},
		{"engine stopped", func(context.Context) (int, error) { return 0, errors.New("loop stopped") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewHealthService(library, tt.features)
			if got := service.IsHealthy(context.Background()); got != tt.want {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHealthServiceIsReady(t *testing.T) {
	library, _ := newTestLibrary(nil)
	service := NewHealthService(library, nil)

	tests := []struct {
		name   string
		layers map[string]domain.LayerStatus
		want   bool
	}{
		{
			name:   "empty library is ready",
			layers: map[string]domain.LayerStatus{},
			want:   true,
		},
		{
			name:   "ready layer",
			layers: map[string]domain.LayerStatus{"topo": domain.StatusReady},
			want:   true,
		},
		{
			name:   "no ready layers",
			layers: map[string]domain.LayerStatus{"topo": domain.StatusLoading},
			want:   false,
		},
		{
			name: "mixed layers - one ready",
			layers: map[string]domain.LayerStatus{
				"loading": domain.StatusLoading,
				"ready":   domain.StatusReady,
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			library.mu.Lock()
			library.layers = layerEntries(tt.layers)
			library.mu.Unlock()

			if got := service.IsReady(context.Background()); got != tt.want {
				t.Errorf("IsReady() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHealthServiceGetHealthDetails(t *testing.T) {
	library, _ := newTestLibrary(nil)
	service := NewHealthService(library, func(context.Context) (int, error) { return 5, nil })

	library.mu.Lock()
	library.layers = layerEntries(map[string]domain.LayerStatus{
		"ready1":  domain.StatusReady,
		"ready2":  domain.StatusReady,
		"loading": domain.StatusLoading,
	})
	library.mu.Unlock()

	details := service.GetHealthDetails(context.Background())

	if !details.Healthy {
		t.Error("Healthy should be true")
	}
	if !details.Ready {
		t.Error("Ready should be true")
	}
	if details.LayersLoaded != 3 {
		t.Errorf("LayersLoaded = %d, want 3", details.LayersLoaded)
	}
	if details.LayersReady != 2 {
		t.Errorf("LayersReady = %d, want 2", details.LayersReady)
	}
	if details.Features != 5 {
		t.Errorf("Features = %d, want 5", details.Features)
	}
	if details.Components["engine"] != "ok" {
		t.Errorf("Components[engine] = %q, want %q", details.Components["engine"], "ok")
	}
}

func TestHealthServiceEngineUnavailable(t *testing.T) {
	library, _ := newTestLibrary(nil)
	service := NewHealthService(library, func(context.Context) (int, error) {
		return 0, context.DeadlineExceeded
	})

	details := service.GetHealthDetails(context.Background())
	if details.Healthy {
		t.Error("Healthy should be false")
	}
	if details.Components["engine"] != "unavailable" {
		t.Errorf("Components[engine] = %q, want unavailable", details.Components["engine"])
	}
}

func TestHealthServiceGetLayerHealth(t *testing.T) {
	library, _ := newTestLibrary(nil)
	service := NewHealthService(library, nil)

	library.mu.Lock()
	library.layers = layerEntries(map[string]domain.LayerStatus{
		"topo":  domain.StatusReady,
		"ortho": domain.StatusLoading,
	})
	library.mu.Unlock()

	health := service.GetLayerHealth(context.Background())
	if len(health) != 2 {
		t.Fatalf("len(health) = %d, want 2", len(health))
	}

	// Layers are ordered by ID.
	if health[0].ID != "ortho" || health[0].Ready {
		t.Errorf("health[0] = %+v, want ortho not ready", health[0])
	}
	if health[1].ID != "topo" || health[1].Status != domain.StatusReady || !health[1].Ready {
		t.Errorf("health[1] = %+v, want topo ready", health[1])
	}
}
