// Package storage provides reference layer storage adapters.
package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

// isLayerFile reports whether an object key names a reference layer file.
func isLayerFile(key string) bool {
	return strings.EqualFold(path.Ext(key), output.LayerFileExt)
}

// cleanKey rejects keys that are absolute or point outside the storage root.
func cleanKey(key string) (string, error) {
	k := filepath.ToSlash(key)
	if k == "" || path.IsAbs(k) || k != path.Clean(k) || k == ".." || strings.HasPrefix(k, "../") {
		return "", &domain.StorageError{Operation: "resolve", Key: key, Err: domain.ErrInvalidInput}
	}
	return k, nil
}

// relativeKey strips the storage prefix from a full object key.
func relativeKey(prefix, key string) string {
	rel := strings.TrimPrefix(key, prefix)
	return strings.TrimPrefix(rel, "/")
}

// joinKey adds the storage prefix to a relative key.
func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, "/") + "/" + key
}

// writeFile streams r into dest. The data is written to a temporary file next
// to dest and renamed, so readers never see a partial layer file.
func writeFile(dest string, r io.Reader) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
