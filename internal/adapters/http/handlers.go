package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jobrunner/mapkit/internal/application"
	"github.com/jobrunner/mapkit/internal/domain"
)

// maxBodySize limits POST bodies.
const maxBodySize = 64 << 10

// OverlayRequest selects the reference overlay. An empty layer ID removes it.
type OverlayRequest struct {
	LayerID string `json:"layer_id"`
}

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":        boolToStatus(details.Healthy),
		"ready":         details.Ready,
		"layers_loaded": details.LayersLoaded,
		"layers_ready":  details.LayersReady,
		"features":      details.Features,
		"components":    details.Components,
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleListLayers returns all loaded reference layers.
func (s *Server) handleListLayers(w http.ResponseWriter, r *http.Request) {
	layers, err := s.layers.ListLayers(r.Context())
	if err != nil {
		s.handleError(w, "list layers", err)
		return
	}

	response := make([]map[string]interface{}, len(layers))
	for i := range layers {
		response[i] = formatLayer(&layers[i])
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"layers": response,
		"count":  len(layers),
	})
}

// handleGetLayer returns a specific reference layer.
func (s *Server) handleGetLayer(w http.ResponseWriter, r *http.Request) {
	layer, err := s.layers.GetLayer(r.Context(), mux.Vars(r)["layerId"])
	if err != nil {
		s.handleError(w, "get layer", err)
		return
	}

	s.writeJSON(w, http.StatusOK, formatLayer(layer))
}

// handleTile serves one encoded tile of a reference layer.
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	layerID := vars["layerId"]

	z, x, y, err := parseTileCoords(vars)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	layer, err := s.layers.GetLayer(r.Context(), layerID)
	if err != nil {
		s.handleError(w, "get layer", err)
		return
	}

	data, err := s.layers.Tile(r.Context(), layerID, z, x, y)
	if err != nil {
		s.handleError(w, "read tile", err)
		return
	}

	contentType, encoding := tileContentType(layer.Format)
	w.Header().Set("Content-Type", contentType)
	if encoding != "" {
		w.Header().Set("Content-Encoding", encoding)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleFeatures returns the map features as GeoJSON, optionally limited to a bbox.
func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	var bounds *domain.Bounds
	if raw := r.URL.Query().Get("bbox"); raw != "" {
		b, err := parseBBox(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		bounds = &b
	}

	fc, err := s.query.QueryFeatures(r.Context(), bounds)
	if err != nil {
		s.handleError(w, "query features", err)
		return
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		s.handleError(w, "encode features", err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleCamera returns camera, location and overlay state.
func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	status, err := s.query.Status(r.Context())
	if err != nil {
		s.handleError(w, "map status", err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

// handleOverlay replaces or removes the reference overlay.
func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	var req OverlayRequest
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.query.SetOverlay(r.Context(), req.LayerID); err != nil {
		s.handleError(w, "set overlay", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"overlay": req.LayerID})
}

// handleSync handles the sync trigger endpoint.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.syncer.TriggerSync(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			w.Header().Set("Retry-After", "30")
			s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again in 30 seconds.")
			return
		}
		s.logger.Error("sync failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Sync failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleOpenAPI returns the OpenAPI specification.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	doc, err := getOpenAPIJSON()
	if err != nil {
		s.logger.Error("failed to get OpenAPI document", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load OpenAPI document")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc)
}

// parseTileCoords parses and range checks z/x/y.
func parseTileCoords(vars map[string]string) (z, x, y int, err error) {
	if z, err = strconv.Atoi(vars["z"]); err != nil || z > 30 {
		return 0, 0, 0, errors.New("invalid z parameter")
	}
	limit := 1 << z
	if x, err = strconv.Atoi(vars["x"]); err != nil || x >= limit {
		return 0, 0, 0, errors.New("invalid x parameter")
	}
	if y, err = strconv.Atoi(vars["y"]); err != nil || y >= limit {
		return 0, 0, 0, errors.New("invalid y parameter")
	}
	return z, x, y, nil
}

// parseBBox parses "west,south,east,north" in degrees.
func parseBBox(raw string) (domain.Bounds, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return domain.Bounds{}, errors.New("bbox must be west,south,east,north")
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.Bounds{}, fmt.Errorf("invalid bbox value %q", p)
		}
		v[i] = f
	}
	return domain.Bounds{West: v[0], South: v[1], East: v[2], North: v[3]}, nil
}

// tileContentType returns the content type and encoding for a tile format.
// Vector tiles in MBTiles files are stored gzip compressed.
func tileContentType(format string) (contentType, encoding string) {
	switch strings.ToLower(format) {
	case "png":
		return "image/png", ""
	case "jpg", "jpeg":
		return "image/jpeg", ""
	case "webp":
		return "image/webp", ""
	case "pbf", "mvt":
		return "application/x-protobuf", "gzip"
	default:
		return "application/octet-stream", ""
	}
}

func formatLayer(l *domain.ReferenceLayer) map[string]interface{} {
	out := map[string]interface{}{
		"id":          l.ID,
		"name":        l.Name,
		"description": l.Description,
		"attribution": l.Attribution,
		"format":      l.Format,
		"size":        l.Size,
		"min_zoom":    l.MinZoom,
		"max_zoom":    l.MaxZoom,
		"status":      l.Status,
		"ready":       l.IsReady(),
		"loaded_at":   l.LoadedAt,
		"tiles":       fmt.Sprintf("/tiles/%s/{z}/{x}/{y}", l.ID),
	}
	if l.Bounds != nil {
		out["bounds"] = []float64{l.Bounds.West, l.Bounds.South, l.Bounds.East, l.Bounds.North}
	}
	return out
}

// handleError maps domain errors to HTTP status codes.
func (s *Server) handleError(w http.ResponseWriter, op string, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		s.writeError(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, domain.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrLayerNotFound):
		s.writeError(w, http.StatusNotFound, "Layer not found")
	case errors.Is(err, domain.ErrTileNotFound):
		s.writeError(w, http.StatusNotFound, "Tile not found")
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusServiceUnavailable, "Map engine unavailable")
	default:
		s.logger.Error(op+" failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
