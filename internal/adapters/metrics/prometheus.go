// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jobrunner/mapkit/internal/ports/output"
)

var _ output.MetricsCollector = (*Collector)(nil)

// Collector implements the MetricsCollector port using Prometheus.
type Collector struct {
	gatherer prometheus.Gatherer

	featuresAdded   *prometheus.CounterVec
	featuresRemoved *prometheus.CounterVec
	featuresActive  prometheus.Gauge
	locationFixes   *prometheus.CounterVec
	cameraFits      *prometheus.CounterVec

	tileRequests      *prometheus.CounterVec
	tileDuration      *prometheus.HistogramVec
	layersLoaded      prometheus.Gauge
	storageOperations *prometheus.CounterVec
	storageDuration   *prometheus.HistogramVec

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a collector registered with the default registry.
func NewCollector(namespace string) *Collector {
	return NewCollectorWith(namespace, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewCollectorWith creates a collector registered with reg and served from g.
func NewCollectorWith(namespace string, reg prometheus.Registerer, g prometheus.Gatherer) *Collector {
	if namespace == "" {
		namespace = "mapkit"
	}
	f := promauto.With(reg)

	return &Collector{
		gatherer: g,

		featuresAdded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_added_total",
			Help:      "Total number of features added to the map",
		}, []string{"kind"}),

		featuresRemoved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_removed_total",
			Help:      "Total number of features removed from the map",
		}, []string{"kind"}),

		featuresActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "features_active",
			Help:      "Number of features on the map",
		}),

		locationFixes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_fixes_total",
			Help:      "Total number of location fixes received",
		}, []string{"provider"}),

		cameraFits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "camera_fits_total",
			Help:      "Total number of bounding box fits",
		}, []string{"result"}),

		tileRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_requests_total",
			Help:      "Total number of tile requests",
		}, []string{"layer_id", "status"}),

		tileDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tile_duration_seconds",
			Help:      "Tile read duration in seconds",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"layer_id"}),

		layersLoaded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "layers_loaded",
			Help:      "Number of loaded reference layers",
		}),

		storageOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Total number of storage operations",
		}, []string{"operation", "status"}),

		storageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_duration_seconds",
			Help:      "Storage operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// IncFeaturesAdded implements output.MetricsCollector.
func (c *Collector) IncFeaturesAdded(kind string) {
	c.featuresAdded.WithLabelValues(kind).Inc()
}

// IncFeaturesRemoved implements output.MetricsCollector.
func (c *Collector) IncFeaturesRemoved(kind string) {
	c.featuresRemoved.WithLabelValues(kind).Inc()
}

// SetFeaturesActive implements output.MetricsCollector.
func (c *Collector) SetFeaturesActive(count int) {
	c.featuresActive.Set(float64(count))
}

// IncLocationFixes implements output.MetricsCollector.
func (c *Collector) IncLocationFixes(provider string) {
	c.locationFixes.WithLabelValues(provider).Inc()
}

// IncCameraFits implements output.MetricsCollector.
func (c *Collector) IncCameraFits(fallback bool) {
	result := "fitted"
	if fallback {
		result = "fallback"
	}
	c.cameraFits.WithLabelValues(result).Inc()
}

// IncTileRequests implements output.MetricsCollector.
func (c *Collector) IncTileRequests(layerID, status string) {
	c.tileRequests.WithLabelValues(layerID, status).Inc()
}

// ObserveTileDuration implements output.MetricsCollector.
func (c *Collector) ObserveTileDuration(layerID string, duration time.Duration) {
	c.tileDuration.WithLabelValues(layerID).Observe(duration.Seconds())
}

// SetLayersLoaded implements output.MetricsCollector.
func (c *Collector) SetLayersLoaded(count int) {
	c.layersLoaded.Set(float64(count))
}

// IncStorageOperations implements output.MetricsCollector.
func (c *Collector) IncStorageOperations(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.storageOperations.WithLabelValues(operation, status).Inc()
}

// ObserveStorageDuration implements output.MetricsCollector.
func (c *Collector) ObserveStorageDuration(operation string, duration time.Duration) {
	c.storageDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Handler returns the HTTP handler exposing the collected metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations per route template.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		route := routeTemplate(r)
		c.httpRequestsTotal.WithLabelValues(r.Method, route, statusClass(wrapped.statusCode)).Inc()
		c.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// routeTemplate returns the matched mux route template, so that tile
// coordinates and layer ids do not end up as label values.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// statusClass converts an HTTP status code to its class, e.g. "2xx".
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
