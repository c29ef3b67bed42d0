package domain

import (
	"strings"
	"time"
)

// ReferenceLayer is an offline tile file that can be shown as a map overlay.
type ReferenceLayer struct {
	ID          string      // Unique identifier (derived from filename)
	Name        string      // Display name from the file metadata
	Path        string      // Local file path
	Size        int64       // File size in bytes
	Format      string      // Tile format (png, jpg, webp, pbf)
	Description string      // Layer description
	Attribution string      // Attribution text to display
	Bounds      *Bounds     // Coverage (optional)
	MinZoom     int         // Minimum zoom level with tiles
	MaxZoom     int         // Maximum zoom level with tiles
	Status      LayerStatus // Load status
	LoadedAt    time.Time   // Load timestamp
}

// IsRaster returns true if tiles are images rather than vector data.
func (l *ReferenceLayer) IsRaster() bool {
	switch strings.ToLower(l.Format) {
	case "png", "jpg", "jpeg", "webp":
		return true
	}
	return false
}

// IsReady returns true if the layer can serve tiles.
func (l *ReferenceLayer) IsReady() bool {
	return l.Status == StatusReady
}

// LayerStatus represents the status of a reference layer.
type LayerStatus string

const (
	StatusLoading   LayerStatus = "loading"
	StatusReady     LayerStatus = "ready"
	StatusError     LayerStatus = "error"
	StatusUnloading LayerStatus = "unloading"
)
