package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
)

// Specific errors.
var (
	ErrFeatureNotFound    = fmt.Errorf("feature: %w", ErrNotFound)
	ErrWrongFeatureKind   = fmt.Errorf("feature kind: %w", ErrInvalidInput)
	ErrLayerNotFound      = fmt.Errorf("reference layer: %w", ErrNotFound)
	ErrUnsupportedLayer   = fmt.Errorf("reference layer format: %w", ErrUnsupported)
	ErrInvalidBounds      = fmt.Errorf("bounds: %w", ErrInvalidInput)
	ErrTileNotFound       = fmt.Errorf("tile: %w", ErrNotFound)
	ErrNotReady           = fmt.Errorf("service not ready: %w", ErrUnavailable)
	ErrStorageUnavailable = fmt.Errorf("storage: %w", ErrUnavailable)
)

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// FeatureError ties an error to a feature id.
type FeatureError struct {
	ID  FeatureID // Feature identifier
	Op  string    // Operation that failed
	Err error     // Underlying error
}

// Error implements the error interface.
func (e *FeatureError) Error() string {
	return fmt.Sprintf("%s on feature %d: %v", e.Op, e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *FeatureError) Unwrap() error {
	return e.Err
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (download, list, etc.)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// LayerError represents an error while reading a reference layer.
type LayerError struct {
	LayerID string // Layer identifier
	Path    string // File path
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *LayerError) Error() string {
	if e.LayerID != "" {
		return fmt.Sprintf("layer error for %s (%s): %v", e.LayerID, e.Path, e.Err)
	}
	return fmt.Sprintf("layer error for %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *LayerError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
