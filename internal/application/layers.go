package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/input"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

var _ input.LayerLibrary = (*LayerLibrary)(nil)

// LayerLibrary manages the offline reference layers available for overlays and tile serving.
// Unlike the map engine it is safe for concurrent use.
type LayerLibrary struct {
	mu        sync.RWMutex
	layers    map[string]*layerEntry
	opener    output.TileSourceOpener
	storage   output.LayerStorage
	metrics   output.MetricsCollector
	logger    *slog.Logger
	localPath string
}

type layerEntry struct {
	Layer  domain.ReferenceLayer
	Source output.TileSource
}

// NewLayerLibrary creates a new layer library.
func NewLayerLibrary(
	opener output.TileSourceOpener,
	storage output.LayerStorage,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	localPath string,
) *LayerLibrary {
	return &LayerLibrary{
		layers:    make(map[string]*layerEntry),
		opener:    opener,
		storage:   storage,
		metrics:   metrics,
		logger:    logger,
		localPath: localPath,
	}
}

// LoadLayer opens the tile file at path and registers it. A layer with the same
// ID is replaced.
func (l *LayerLibrary) LoadLayer(ctx context.Context, path string) error {
	l.logger.Info("loading layer", "path", path)

	src, err := l.opener.Open(ctx, path)
	if err != nil {
		l.logger.Error("failed to open layer", "path", path, "error", err)
		return err
	}

	layer := src.Layer()
	if layer.ID == "" {
		layer.ID = deriveLayerID(path)
	}
	layer.Path = path
	layer.Status = domain.StatusReady
	layer.LoadedAt = time.Now()

	l.mu.Lock()
	old := l.layers[layer.ID]
	l.layers[layer.ID] = &layerEntry{Layer: layer, Source: src}
	l.mu.Unlock()

	if old != nil {
		if err := old.Source.Close(); err != nil {
			l.logger.Warn("failed to close replaced layer", "layer", layer.ID, "error", err)
		}
	}

	l.updateMetrics()
	l.logger.Info("layer loaded", "layer", layer.ID, "format", layer.Format,
		"min_zoom", layer.MinZoom, "max_zoom", layer.MaxZoom)
	return nil
}

// UnloadLayer closes and removes a layer. Unknown IDs are ignored.
func (l *LayerLibrary) UnloadLayer(_ context.Context, id string) error {
	l.mu.Lock()
	entry, ok := l.layers[id]
	if !ok {
		l.mu.Unlock()
		return nil
	}
	entry.Layer.Status = domain.StatusUnloading
	delete(l.layers, id)
	l.mu.Unlock()

	l.logger.Info("unloading layer", "layer", id)
	l.updateMetrics()

	if err := entry.Source.Close(); err != nil {
		l.logger.Error("failed to close layer", "layer", id, "error", err)
		return err
	}
	return nil
}

// ListLayers returns all loaded layers ordered by ID.
func (l *LayerLibrary) ListLayers(_ context.Context) ([]domain.ReferenceLayer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	layers := make([]domain.ReferenceLayer, 0, len(l.layers))
	for _, entry := range l.layers {
		layers = append(layers, entry.Layer)
	}
	sort.Slice(layers, func(i, j int) bool { return layers[i].ID < layers[j].ID })
	return layers, nil
}

// GetLayer returns a specific layer by ID.
func (l *LayerLibrary) GetLayer(_ context.Context, id string) (*domain.ReferenceLayer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.layers[id]
	if !ok {
		return nil, domain.ErrLayerNotFound
	}
	layer := entry.Layer
	return &layer, nil
}

// Tile returns the encoded tile z/x/y of a layer.
func (l *LayerLibrary) Tile(ctx context.Context, id string, z, x, y int) ([]byte, error) {
	start := time.Now()

	l.mu.RLock()
	entry, ok := l.layers[id]
	l.mu.RUnlock()
	if !ok {
		l.metrics.IncTileRequests(id, "not_found")
		return nil, domain.ErrLayerNotFound
	}

	data, err := entry.Source.Tile(ctx, z, x, y)
	l.metrics.ObserveTileDuration(id, time.Since(start))
	switch {
	case err == nil:
		l.metrics.IncTileRequests(id, "ok")
	case domain.IsNotFound(err):
		l.metrics.IncTileRequests(id, "not_found")
	default:
		l.metrics.IncTileRequests(id, "error")
		l.logger.Error("failed to read tile", "layer", id, "z", z, "x", x, "y", y, "error", err)
	}
	return data, err
}

// LayerPath returns the local file path of a layer.
func (l *LayerLibrary) LayerPath(id string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.layers[id]
	if !ok {
		return "", fmt.Errorf("layer %s: %w", id, domain.ErrLayerNotFound)
	}
	return entry.Layer.Path, nil
}

// IsLoaded returns true if a layer with the given ID is loaded.
func (l *LayerLibrary) IsLoaded(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.layers[id]
	return ok
}

// LayerCount returns the number of loaded layers.
func (l *LayerLibrary) LayerCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.layers)
}

// ReadyCount returns the number of layers that can serve tiles.
func (l *LayerLibrary) ReadyCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ready := 0
	for _, entry := range l.layers {
		if entry.Layer.IsReady() {
			ready++
		}
	}
	return ready
}

// Close unloads every layer.
func (l *LayerLibrary) Close() {
	l.mu.RLock()
	ids := make([]string, 0, len(l.layers))
	for id := range l.layers {
		ids = append(ids, id)
	}
	l.mu.RUnlock()

	for _, id := range ids {
		_ = l.UnloadLayer(context.Background(), id)
	}
}

func (l *LayerLibrary) updateMetrics() {
	l.metrics.SetLayersLoaded(l.LayerCount())
}

// LoadAll downloads and loads every layer file in storage.
func (l *LayerLibrary) LoadAll(ctx context.Context) error {
	l.logger.Info("loading all layers from storage")

	objects, err := l.storage.List(ctx)
	if err != nil {
		return err
	}

	for _, obj := range objects {
		localPath, err := l.download(ctx, obj.Key)
		if err != nil {
			continue
		}
		if err := l.LoadLayer(ctx, localPath); err != nil {
			l.logger.Error("failed to load layer", "path", localPath, "error", err)
		}
	}
	return nil
}

func (l *LayerLibrary) download(ctx context.Context, key string) (string, error) {
	localPath := filepath.Join(l.localPath, key)
	start := time.Now()
	err := l.storage.Download(ctx, key, localPath)
	l.metrics.ObserveStorageDuration("download", time.Since(start))
	l.metrics.IncStorageOperations("download", err == nil)
	if err != nil {
		l.logger.Error("failed to download layer", "key", key, "error", err)
		return "", err
	}
	return localPath, nil
}

// SyncStats contains statistics from a sync operation.
type SyncStats struct {
	Added   int
	Removed int
}

// Sync loads layers that are new in storage and unloads layers that were
// removed from it, deleting their local copies.
func (l *LayerLibrary) Sync(ctx context.Context) (SyncStats, error) {
	l.logger.Info("syncing layers from storage")

	start := time.Now()
	objects, err := l.storage.List(ctx)
	l.metrics.ObserveStorageDuration("list", time.Since(start))
	l.metrics.IncStorageOperations("list", err == nil)
	if err != nil {
		return SyncStats{}, err
	}

	remote := make(map[string]string, len(objects))
	for _, obj := range objects {
		remote[deriveLayerID(obj.Key)] = obj.Key
	}

	stats := SyncStats{}

	for id, key := range remote {
		if l.IsLoaded(id) {
			l.logger.Debug("layer already loaded, skipping", "layer", id)
			continue
		}
		localPath, err := l.download(ctx, key)
		if err != nil {
			continue
		}
		if err := l.LoadLayer(ctx, localPath); err != nil {
			l.logger.Error("failed to load layer", "path", localPath, "error", err)
			continue
		}
		stats.Added++
		l.logger.Info("new layer synced", "layer", id)
	}

	for _, id := range l.layersNotIn(remote) {
		l.logger.Info("removing layer not in storage", "layer", id)

		localPath, _ := l.LayerPath(id)
		if err := l.UnloadLayer(ctx, id); err != nil {
			l.logger.Error("failed to unload removed layer", "layer", id, "error", err)
			continue
		}
		if localPath != "" {
			if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
				l.logger.Warn("failed to delete local cache file", "path", localPath, "error", err)
			}
		}
		stats.Removed++
	}

	l.logger.Info("sync completed", "added", stats.Added, "removed", stats.Removed, "total", l.LayerCount())
	return stats, nil
}

func (l *LayerLibrary) layersNotIn(remote map[string]string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var ids []string
	for id := range l.layers {
		if _, ok := remote[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// deriveLayerID extracts a layer ID from a file path or object key.
func deriveLayerID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
