package output

import (
	"context"

	"github.com/jobrunner/mapkit/internal/domain"
)

// TileSource serves tiles from an offline tile file.
type TileSource interface {
	// Layer returns the metadata of the underlying file.
	Layer() domain.ReferenceLayer

	// Tile returns the encoded tile at z/x/y in the XYZ scheme.
	Tile(ctx context.Context, z, x, y int) ([]byte, error)

	// Close releases the file.
	Close() error
}

// TileSourceOpener opens offline tile files.
type TileSourceOpener interface {
	// Open opens the tile file at path.
	Open(ctx context.Context, path string) (TileSource, error)
}
