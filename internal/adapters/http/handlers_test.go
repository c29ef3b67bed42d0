package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/mapkit/internal/application"
	"github.com/jobrunner/mapkit/internal/config"
	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/input"
)

type fakeQuery struct {
	bounds     *domain.Bounds
	overlay    string
	overlayErr error
	err        error
}

func (f *fakeQuery) QueryFeatures(_ context.Context, b *domain.Bounds) (*geojson.FeatureCollection, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bounds = b
	fc := geojson.NewFeatureCollection()
	feature := geojson.NewFeature(orb.Point{8.5, 47.3})
	feature.ID = 1
	feature.Properties["kind"] = "marker"
	fc.Append(feature)
	return fc, nil
}

func (f *fakeQuery) Status(_ context.Context) (input.MapStatus, error) {
	if f.err != nil {
		return input.MapStatus{}, f.err
	}
	return input.MapStatus{
		Camera:    domain.CameraState{Center: domain.NewGeoPoint(47.3, 8.5), Zoom: 12},
		HasCenter: true,
		Features:  1,
		Overlay:   f.overlay,
	}, nil
}

func (f *fakeQuery) SetOverlay(_ context.Context, layerID string) error {
	if f.overlayErr != nil {
		return f.overlayErr
	}
	f.overlay = layerID
	return nil
}

type fakeLayers struct {
	layers []domain.ReferenceLayer
	tiles  map[string][]byte
}

func (f *fakeLayers) ListLayers(_ context.Context) ([]domain.ReferenceLayer, error) {
	return f.layers, nil
}

func (f *fakeLayers) GetLayer(_ context.Context, id string) (*domain.ReferenceLayer, error) {
	for i := range f.layers {
		if f.layers[i].ID == id {
			return &f.layers[i], nil
		}
	}
	return nil, domain.ErrLayerNotFound
}

func (f *fakeLayers) Tile(_ context.Context, id string, z, x, y int) ([]byte, error) {
	data, ok := f.tiles[tileKey(id, z, x, y)]
	if !ok {
		return nil, domain.ErrTileNotFound
	}
	return data, nil
}

func tileKey(id string, z, x, y int) string {
	return fmt.Sprintf("%s/%d/%d/%d", id, z, x, y)
}

type fakeHealth struct {
	healthy bool
	ready   bool
}

func (f *fakeHealth) IsHealthy(_ context.Context) bool { return f.healthy }

func (f *fakeHealth) IsReady(_ context.Context) bool { return f.ready }

func (f *fakeHealth) GetHealthDetails(_ context.Context) input.HealthDetails {
	return input.HealthDetails{
		Healthy:      f.healthy,
		Ready:        f.ready,
		LayersLoaded: 1,
		LayersReady:  1,
		Features:     3,
		Components:   map[string]string{"layers": "ok"},
	}
}

type fakeSyncer struct {
	err error
}

func (f *fakeSyncer) TriggerSync(_ context.Context) (application.SyncResult, error) {
	if f.err != nil {
		return application.SyncResult{}, f.err
	}
	return application.SyncResult{LayersAdded: 2, LayersTotal: 2, SyncedAt: time.Now()}, nil
}

type testEnv struct {
	srv    *Server
	query  *fakeQuery
	health *fakeHealth
}

func newTestServer(syncer Syncer) *testEnv {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	query := &fakeQuery{}
	health := &fakeHealth{healthy: true, ready: true}
	layers := &fakeLayers{
		layers: []domain.ReferenceLayer{
			{
				ID:     "topo",
				Name:   "Topographic",
				Format: "png",
				Status: domain.StatusReady,
				Bounds: &domain.Bounds{West: 5, South: 45, East: 11, North: 48},
			},
			{ID: "roads", Name: "Roads", Format: "pbf", Status: domain.StatusReady},
		},
		tiles: map[string][]byte{
			tileKey("topo", 1, 1, 0):  []byte("png-bytes"),
			tileKey("roads", 0, 0, 0): []byte("gzip-bytes"),
		},
	}

	srv := NewServer(
		config.ServerConfig{
			Host:         "localhost",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		query,
		layers,
		health,
		syncer,
		logger,
	)
	return &testEnv{srv: srv, query: query, health: health}
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", rr.Body.String(), err)
	}
	return resp
}

func TestHandleHealth(t *testing.T) {
	env := newTestServer(nil)

	rr := env.do(http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decode(t, rr)
	if resp["status"] != "ok" || resp["features"] != float64(3) || resp["layers_loaded"] != float64(1) {
		t.Errorf("response = %v", resp)
	}

	env.health.healthy = false
	if rr := env.do(http.MethodGet, "/health", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestHandleProbes(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		healthy bool
		ready   bool
		want    int
	}{
		{"live", "/health/live", true, false, http.StatusOK},
		{"not live", "/health/live", false, false, http.StatusServiceUnavailable},
		{"ready", "/health/ready", true, true, http.StatusOK},
		{"not ready", "/health/ready", true, false, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestServer(nil)
			env.health.healthy = tt.healthy
			env.health.ready = tt.ready

			if rr := env.do(http.MethodGet, tt.path, ""); rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestHandleLayers(t *testing.T) {
	env := newTestServer(nil)

	rr := env.do(http.MethodGet, "/api/v1/layers", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp := decode(t, rr); resp["count"] != float64(2) {
		t.Errorf("count = %v, want 2", resp["count"])
	}

	rr = env.do(http.MethodGet, "/api/v1/layers/topo", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	resp := decode(t, rr)
	if resp["name"] != "Topographic" || resp["tiles"] != "/tiles/topo/{z}/{x}/{y}" {
		t.Errorf("layer = %v", resp)
	}
	if bounds, ok := resp["bounds"].([]interface{}); !ok || len(bounds) != 4 || bounds[0] != float64(5) {
		t.Errorf("bounds = %v", resp["bounds"])
	}

	if rr := env.do(http.MethodGet, "/api/v1/layers/missing", ""); rr.Code != http.StatusNotFound {
		t.Errorf("missing layer status = %d, want 404", rr.Code)
	}
}

func TestHandleTile(t *testing.T) {
	env := newTestServer(nil)

	tests := []struct {
		name         string
		path         string
		wantStatus   int
		wantType     string
		wantEncoding string
	}{
		{"png tile", "/tiles/topo/1/1/0", http.StatusOK, "image/png", ""},
		{"vector tile", "/tiles/roads/0/0/0", http.StatusOK, "application/x-protobuf", "gzip"},
		{"missing tile", "/tiles/topo/1/0/0", http.StatusNotFound, "", ""},
		{"unknown layer", "/tiles/nope/1/1/0", http.StatusNotFound, "", ""},
		{"x out of range", "/tiles/topo/1/2/0", http.StatusBadRequest, "", ""},
		{"zoom out of range", "/tiles/topo/31/0/0", http.StatusBadRequest, "", ""},
		{"not numeric", "/tiles/topo/a/0/0", http.StatusNotFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(http.MethodGet, tt.path, "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantType == "" {
				return
			}
			if got := rr.Header().Get("Content-Type"); got != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", got, tt.wantType)
			}
			if got := rr.Header().Get("Content-Encoding"); got != tt.wantEncoding {
				t.Errorf("Content-Encoding = %q, want %q", got, tt.wantEncoding)
			}
		})
	}
}

func TestHandleFeatures(t *testing.T) {
	env := newTestServer(nil)

	rr := env.do(http.MethodGet, "/api/v1/features?bbox=8,47,9,48", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "application/geo+json" {
		t.Errorf("Content-Type = %q", got)
	}
	want := domain.Bounds{West: 8, South: 47, East: 9, North: 48}
	if env.query.bounds == nil || *env.query.bounds != want {
		t.Errorf("bounds = %v, want %v", env.query.bounds, want)
	}

	fc, err := geojson.UnmarshalFeatureCollection(rr.Body.Bytes())
	if err != nil {
		t.Fatalf("invalid GeoJSON: %v", err)
	}
	if len(fc.Features) != 1 || fc.Features[0].Properties["kind"] != "marker" {
		t.Errorf("features = %+v", fc.Features)
	}

	env.do(http.MethodGet, "/api/v1/features", "")
	if env.query.bounds != nil {
		t.Errorf("bounds without bbox = %v, want nil", env.query.bounds)
	}
}

func TestHandleFeaturesErrors(t *testing.T) {
	tests := []struct {
		name string
		url  string
		err  error
		want int
	}{
		{"too few values", "/api/v1/features?bbox=1,2,3", nil, http.StatusBadRequest},
		{"not a number", "/api/v1/features?bbox=a,2,3,4", nil, http.StatusBadRequest},
		{"invalid bounds", "/api/v1/features?bbox=0,10,1,5", domain.ErrInvalidBounds, http.StatusBadRequest},
		{"engine stopped", "/api/v1/features", domain.ErrUnavailable, http.StatusServiceUnavailable},
		{"internal", "/api/v1/features", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestServer(nil)
			env.query.err = tt.err

			if rr := env.do(http.MethodGet, tt.url, ""); rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestHandleCamera(t *testing.T) {
	env := newTestServer(nil)

	rr := env.do(http.MethodGet, "/api/v1/camera", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var status input.MapStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Camera.Zoom != 12 || status.Camera.Center.Lat != 47.3 || !status.HasCenter {
		t.Errorf("status = %+v", status)
	}
}

func TestHandleOverlay(t *testing.T) {
	env := newTestServer(nil)

	rr := env.do(http.MethodPost, "/api/v1/overlay", `{"layer_id":"topo"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rr.Code, rr.Body.String())
	}
	if env.query.overlay != "topo" {
		t.Errorf("overlay = %q, want topo", env.query.overlay)
	}

	if rr := env.do(http.MethodPost, "/api/v1/overlay", ""); rr.Code != http.StatusOK {
		t.Errorf("clear status = %d", rr.Code)
	}
	if env.query.overlay != "" {
		t.Errorf("overlay = %q, want cleared", env.query.overlay)
	}

	if rr := env.do(http.MethodPost, "/api/v1/overlay", `{"layer_id":`); rr.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rr.Code)
	}

	env.query.overlayErr = domain.ErrLayerNotFound
	if rr := env.do(http.MethodPost, "/api/v1/overlay", `{"layer_id":"nope"}`); rr.Code != http.StatusNotFound {
		t.Errorf("unknown layer status = %d, want 404", rr.Code)
	}
}

func TestHandleSync(t *testing.T) {
	if rr := newTestServer(nil).do(http.MethodPost, "/api/v1/sync", ""); rr.Code != http.StatusMethodNotAllowed && rr.Code != http.StatusNotFound {
		t.Errorf("sync without syncer status = %d", rr.Code)
	}

	rr := newTestServer(&fakeSyncer{}).do(http.MethodPost, "/api/v1/sync", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp := decode(t, rr); resp["layers_added"] != float64(2) {
		t.Errorf("response = %v", resp)
	}

	rr = newTestServer(&fakeSyncer{err: application.ErrRateLimited}).do(http.MethodPost, "/api/v1/sync", "")
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "30" {
		t.Errorf("rate limited status = %d, Retry-After = %q", rr.Code, rr.Header().Get("Retry-After"))
	}
}

func TestHandleOpenAPI(t *testing.T) {
	rr := newTestServer(nil).do(http.MethodGet, "/openapi.json", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	resp := decode(t, rr)
	paths, ok := resp["paths"].(map[string]interface{})
	if !ok {
		t.Fatalf("paths missing: %v", resp)
	}
	for _, p := range []string{"/api/v1/features", "/tiles/{layerId}/{z}/{x}/{y}", "/api/v1/overlay"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("path %s missing", p)
		}
	}

	tile := paths["/tiles/{layerId}/{z}/{x}/{y}"].(map[string]interface{})["get"].(map[string]interface{})
	if _, ok := tile["responses"].(map[string]interface{})["200"]; !ok {
		t.Error("numeric response codes should become string keys")
	}
}

func TestParseBBox(t *testing.T) {
	b, err := parseBBox(" 8.5, 47.3 ,8.6,47.4")
	if err != nil {
		t.Fatal(err)
	}
	if b != (domain.Bounds{West: 8.5, South: 47.3, East: 8.6, North: 47.4}) {
		t.Errorf("bounds = %+v", b)
	}
}

func TestServerUseAndHandle(t *testing.T) {
	env := newTestServer(nil)

	env.srv.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Test", "1")
			next.ServeHTTP(w, r)
		})
	})
	env.srv.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("metrics"))
	}))

	rr := env.do(http.MethodGet, "/metrics", "")
	if rr.Body.String() != "metrics" || rr.Header().Get("X-Test") != "1" {
		t.Errorf("body = %q, X-Test = %q", rr.Body.String(), rr.Header().Get("X-Test"))
	}
}
