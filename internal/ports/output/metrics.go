package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncFeaturesAdded increments the added feature counter.
	IncFeaturesAdded(kind string)

	// IncFeaturesRemoved increments the removed feature counter.
	IncFeaturesRemoved(kind string)

	// SetFeaturesActive sets the number of features on the map.
	SetFeaturesActive(count int)

	// IncLocationFixes increments the location fix counter.
	IncLocationFixes(provider string)

	// IncCameraFits increments the bounding box fit counter.
	IncCameraFits(fallback bool)

	// IncTileRequests increments the tile request counter.
	IncTileRequests(layerID string, status string)

	// ObserveTileDuration records tile read duration.
	ObserveTileDuration(layerID string, duration time.Duration)

	// SetLayersLoaded sets the number of loaded reference layers.
	SetLayersLoaded(count int)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncFeaturesAdded implements MetricsCollector.
func (n *NoOpMetrics) IncFeaturesAdded(_ string) {}

// IncFeaturesRemoved implements MetricsCollector.
func (n *NoOpMetrics) IncFeaturesRemoved(_ string) {}

// SetFeaturesActive implements MetricsCollector.
func (n *NoOpMetrics) SetFeaturesActive(_ int) {}

// IncLocationFixes implements MetricsCollector.
func (n *NoOpMetrics) IncLocationFixes(_ string) {}

// IncCameraFits implements MetricsCollector.
func (n *NoOpMetrics) IncCameraFits(_ bool) {}

// IncTileRequests implements MetricsCollector.
func (n *NoOpMetrics) IncTileRequests(_ string, _ string) {}

// ObserveTileDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveTileDuration(_ string, _ time.Duration) {}

// SetLayersLoaded implements MetricsCollector.
func (n *NoOpMetrics) SetLayersLoaded(_ int) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
