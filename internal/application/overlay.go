package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

// ReferenceOverlayManager shows at most one offline tile layer above the base map.
// Base map labels are hidden while an overlay is shown.
type ReferenceOverlayManager struct {
	provider output.MapProvider
	opener   output.TileSourceOpener
	logger   *slog.Logger

	target string // last requested file, kept when it cannot be shown
	path   string
	source output.TileSource
	handle output.Handle
}

// NewReferenceOverlayManager creates an overlay manager.
func NewReferenceOverlayManager(provider output.MapProvider, opener output.TileSourceOpener, logger *slog.Logger) *ReferenceOverlayManager {
	return &ReferenceOverlayManager{
		provider: provider,
		opener:   opener,
		logger:   logger,
	}
}

// SetOverlayFile replaces the overlay with the tile file at path, or removes it
// when path is empty. If the file cannot be shown, no overlay remains and
// labels are visible, but path stays the target for Reload.
func (m *ReferenceOverlayManager) SetOverlayFile(path string) error {
	m.remove()
	m.target = path
	if path == "" {
		m.provider.SetLabelsVisible(true)
		return nil
	}

	if err := m.show(path); err != nil {
		m.provider.SetLabelsVisible(true)
		m.logger.Warn("failed to show reference overlay", "path", path, "error", err)
		return err
	}
	m.provider.SetLabelsVisible(false)
	m.logger.Info("reference overlay shown", "path", path, "layer", m.source.Layer().ID)
	return nil
}

// Reload re-opens the target overlay file, e.g. after it changed on disk or
// was recreated after a failed load.
func (m *ReferenceOverlayManager) Reload() error {
	if m.target == "" {
		return nil
	}
	return m.SetOverlayFile(m.target)
}

// Target returns the last requested overlay path, shown or not, or "".
func (m *ReferenceOverlayManager) Target() string {
	return m.target
}

// Current returns the path of the shown overlay, or "".
func (m *ReferenceOverlayManager) Current() string {
	return m.path
}

// Close removes the overlay and shows labels again.
func (m *ReferenceOverlayManager) Close() {
	m.target = ""
	if m.path == "" && m.handle.IsZero() {
		return
	}
	m.remove()
	m.provider.SetLabelsVisible(true)
}

func (m *ReferenceOverlayManager) show(path string) error {
	if m.opener == nil {
		return fmt.Errorf("opening %s: %w", path, domain.ErrUnsupported)
	}
	src, err := m.opener.Open(context.Background(), path)
	if err != nil {
		return err
	}
	layer := src.Layer()
	if !layer.IsRaster() {
		_ = src.Close()
		return &domain.LayerError{LayerID: layer.ID, Path: path, Err: domain.ErrUnsupportedLayer}
	}
	h, err := m.provider.AddTileOverlay(src)
	if err != nil {
		_ = src.Close()
		return &domain.LayerError{LayerID: layer.ID, Path: path, Err: err}
	}
	m.path = path
	m.source = src
	m.handle = h
	return nil
}

func (m *ReferenceOverlayManager) remove() {
	if !m.handle.IsZero() {
		m.provider.Remove(m.handle)
		m.handle = output.Handle{}
	}
	if m.source != nil {
		if err := m.source.Close(); err != nil {
			m.logger.Warn("failed to close reference overlay", "path", m.path, "error", err)
		}
		m.source = nil
	}
	m.path = ""
}
