// Package mbtiles reads offline tile layers stored in MBTiles (SQLite) files.
package mbtiles

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
	"github.com/paulmach/orb/maptile"

	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

var (
	_ output.TileSource       = (*Source)(nil)
	_ output.TileSourceOpener = (*Opener)(nil)
)

// Opener opens MBTiles files read-only.
type Opener struct{}

// NewOpener creates an MBTiles opener.
func NewOpener() *Opener {
	return &Opener{}
}

// Open implements output.TileSourceOpener.
func (o *Opener) Open(ctx context.Context, path string) (output.TileSource, error) {
	return Open(ctx, path)
}

// Source serves tiles from one MBTiles file.
type Source struct {
	db    *sql.DB
	layer domain.ReferenceLayer
}

// Open opens the MBTiles file at path and reads its metadata.
func Open(ctx context.Context, path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &domain.LayerError{Path: path, Err: err}
	}

	db, err := openDB(ctx, path)
	if err != nil {
		return nil, &domain.LayerError{Path: path, Err: err}
	}

	layer, err := readLayer(ctx, db, path)
	if err != nil {
		_ = db.Close()
		return nil, &domain.LayerError{LayerID: layer.ID, Path: path, Err: err}
	}
	layer.Size = info.Size()

	return &Source{db: db, layer: layer}, nil
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&immutable=1", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Layer implements output.TileSource.
func (s *Source) Layer() domain.ReferenceLayer {
	return s.layer
}

// Tile implements output.TileSource. Rows are stored in the TMS scheme, so
// the XYZ row is flipped before the lookup.
func (s *Source) Tile(ctx context.Context, z, x, y int) ([]byte, error) {
	if z < 0 || z > 30 || x < 0 || y < 0 {
		return nil, domain.ErrTileNotFound
	}
	tile := maptile.New(uint32(x), uint32(y), maptile.Zoom(z))
	if !tile.Valid() {
		return nil, domain.ErrTileNotFound
	}
	if !s.covers(tile) {
		return nil, domain.ErrTileNotFound
	}

	row := (1 << uint(z)) - 1 - y
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?",
		z, x, row,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTileNotFound
	}
	if err != nil {
		return nil, &domain.LayerError{LayerID: s.layer.ID, Path: s.layer.Path, Err: err}
	}
	return data, nil
}

// covers reports whether the tile can hold data according to the metadata.
func (s *Source) covers(tile maptile.Tile) bool {
	z := int(tile.Z)
	if s.layer.MaxZoom > 0 && (z < s.layer.MinZoom || z > s.layer.MaxZoom) {
		return false
	}
	if s.layer.Bounds == nil {
		return true
	}
	b := tile.Bound()
	return s.layer.Bounds.Intersects(domain.Bounds{
		South: b.Min.Lat(), West: b.Min.Lon(),
		North: b.Max.Lat(), East: b.Max.Lon(),
	})
}

// Close implements output.TileSource.
func (s *Source) Close() error {
	return s.db.Close()
}

// readLayer builds the layer description from the metadata table.
func readLayer(ctx context.Context, db *sql.DB, path string) (domain.ReferenceLayer, error) {
	layer := domain.ReferenceLayer{
		ID:   DeriveLayerID(path),
		Path: path,
	}
	layer.Name = layer.ID

	meta, err := readMetadata(ctx, db)
	if err != nil {
		return layer, err
	}

	if v := meta["name"]; v != "" {
		layer.Name = v
	}
	layer.Description = meta["description"]
	layer.Attribution = meta["attribution"]
	layer.Format = strings.ToLower(meta["format"])
	layer.Bounds = parseBounds(meta["bounds"])
	layer.MinZoom, _ = strconv.Atoi(meta["minzoom"])
	layer.MaxZoom, _ = strconv.Atoi(meta["maxzoom"])

	if meta["minzoom"] == "" || meta["maxzoom"] == "" {
		if err := readZoomRange(ctx, db, &layer); err != nil {
			return layer, err
		}
	}
	if layer.Format == "" {
		layer.Format = sniffFormat(ctx, db)
	}

	if layer.Format == "" {
		return layer, domain.ErrUnsupportedLayer
	}
	return layer, nil
}

func readMetadata(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name, value FROM metadata")
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	meta := make(map[string]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scanning metadata: %w", err)
		}
		meta[strings.ToLower(name)] = strings.TrimSpace(value.String)
	}
	return meta, rows.Err()
}

func readZoomRange(ctx context.Context, db *sql.DB, layer *domain.ReferenceLayer) error {
	var minZoom, maxZoom sql.NullInt64
	err := db.QueryRowContext(ctx, "SELECT MIN(zoom_level), MAX(zoom_level) FROM tiles").Scan(&minZoom, &maxZoom)
	if err != nil {
		return fmt.Errorf("reading zoom range: %w", err)
	}
	layer.MinZoom = int(minZoom.Int64)
	layer.MaxZoom = int(maxZoom.Int64)
	return nil
}

// sniffFormat guesses the tile format from the first stored tile.
func sniffFormat(ctx context.Context, db *sql.DB) string {
	var data []byte
	if err := db.QueryRowContext(ctx, "SELECT tile_data FROM tiles LIMIT 1").Scan(&data); err != nil {
		return ""
	}

	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return "png"
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "jpg"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "webp"
	case bytes.HasPrefix(data, []byte{0x1F, 0x8B}):
		return "pbf"
	}
	return ""
}

// parseBounds parses "west,south,east,north".
func parseBounds(s string) *domain.Bounds {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil
		}
		v[i] = f
	}

	b := &domain.Bounds{West: v[0], South: v[1], East: v[2], North: v[3]}
	if b.IsEmpty() {
		return nil
	}
	return b
}

// DeriveLayerID derives a layer ID from the file path.
func DeriveLayerID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
