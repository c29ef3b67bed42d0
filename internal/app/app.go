// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/jobrunner/mapkit/internal/adapters/headless"
	httpAdapter "github.com/jobrunner/mapkit/internal/adapters/http"
	"github.com/jobrunner/mapkit/internal/adapters/icons"
	"github.com/jobrunner/mapkit/internal/adapters/location"
	"github.com/jobrunner/mapkit/internal/adapters/loop"
	"github.com/jobrunner/mapkit/internal/adapters/mbtiles"
	"github.com/jobrunner/mapkit/internal/adapters/metrics"
	"github.com/jobrunner/mapkit/internal/adapters/storage"
	tlsAdapter "github.com/jobrunner/mapkit/internal/adapters/tls"
	"github.com/jobrunner/mapkit/internal/adapters/watcher"
	"github.com/jobrunner/mapkit/internal/application"
	"github.com/jobrunner/mapkit/internal/config"
	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Loop          *loop.Loop
	Provider      *headless.Provider
	Engine        *application.MapEngine
	Storage       output.LayerStorage
	Library       *application.LayerLibrary
	SyncService   *application.SyncService
	QueryService  *application.QueryService
	HealthService *application.HealthService
	HTTPServer    *httpAdapter.Server
	TLSServer     *tlsAdapter.Server
	Watcher       *watcher.Watcher
	Metrics       *metrics.Collector
	MetricsServer *metrics.Server
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	var metricsCollector output.MetricsCollector = &output.NoOpMetrics{}
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector(cfg.Metrics.Namespace)
		metricsCollector = app.Metrics
	}

	store, err := initStorage(ctx, cfg.Layers)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.Storage = store

	app.Loop = loop.New(logger.With("component", "loop"), 0)
	app.Provider = headless.New(viewport(cfg.Map.Viewport), logger.With("component", "provider"))

	// Optional ports stay untyped nil when not configured.
	var locationProvider output.LocationProvider
	if cfg.Location.Provider == "replay" {
		points, err := location.LoadTrack(cfg.Location.ReplayFile)
		if err != nil {
			return nil, fmt.Errorf("loading replay track: %w", err)
		}
		locationProvider = location.NewReplay(points, app.Loop, location.ReplayConfig{
			Interval: cfg.Location.Interval,
			Loop:     cfg.Location.Loop,
		}, logger)
	}

	opener := mbtiles.NewOpener()
	app.Engine = application.NewMapEngine(
		app.Provider,
		locationProvider,
		icons.NewResolver(icons.Config{Dir: cfg.Icons.Dir, Size: cfg.Icons.Size}, logger),
		app.Loop,
		opener,
		metricsCollector,
		logger,
		engineConfig(cfg.Map),
	)

	app.Library = application.NewLayerLibrary(opener, app.Storage, metricsCollector, logger, cfg.Layers.LocalPath)
	app.SyncService = application.NewSyncService(app.Library, cfg.Layers.SyncInterval, logger)

	app.QueryService = application.NewQueryService(
		app.Loop,
		app.Engine,
		app.Library,
		logger,
		application.QueryServiceConfig{MaxFeatures: cfg.Map.MaxFeatures},
	)
	app.HealthService = application.NewHealthService(app.Library, app.QueryService.FeatureCount)

	app.HTTPServer = httpAdapter.NewServer(
		cfg.Server,
		app.QueryService,
		app.Library,
		app.HealthService,
		app.SyncService,
		logger,
	)

	if app.Metrics != nil {
		app.HTTPServer.Use(app.Metrics.Middleware)
		if addr := cfg.MetricsAddress(); addr != "" {
			app.MetricsServer = metrics.NewServer(addr, cfg.Metrics.Path, app.Metrics.Handler(), logger)
		} else {
			app.HTTPServer.Handle(cfg.Metrics.Path, app.Metrics.Handler())
		}
	}

	if cfg.TLS.Enabled {
		tlsServer, err := tlsAdapter.NewServer(
			tlsAdapter.Config{
				Domains:  cfg.TLS.Domains,
				Email:    cfg.TLS.Email,
				CacheDir: cfg.TLS.CacheDir,
				Staging:  cfg.TLS.Staging,
				DNS: tlsAdapter.DNSConfig{
					SubscriptionID:    cfg.TLS.AzureDNS.SubscriptionID,
					ResourceGroupName: cfg.TLS.AzureDNS.ResourceGroupName,
					ClientID:          cfg.TLS.AzureDNS.ClientID,
				},
			},
			cfg.Server.Address(),
			app.HTTPServer.Router(),
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("initializing TLS: %w", err)
		}
		app.TLSServer = tlsServer
	}

	if paths := app.watchPaths(); len(paths) > 0 {
		w, err := watcher.New(watcher.Config{Paths: paths}, app.handleFileEvent, logger)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	return app, nil
}

// Start starts all application components and serves HTTP until shutdown.
func (a *App) Start(ctx context.Context) error {
	a.Loop.Start(ctx)

	if err := a.Library.LoadAll(ctx); err != nil {
		a.Logger.Warn("failed to load layers", "error", err)
	}

	if err := a.initEngine(ctx); err != nil {
		return err
	}

	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start file watcher", "error", err)
		}
	}

	a.SyncService.Start(ctx)

	if a.MetricsServer != nil {
		go func() {
			if err := a.MetricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.Logger.Error("metrics server error", "error", err)
			}
		}()
	}

	if a.TLSServer != nil {
		if err := a.TLSServer.ManageCertificates(ctx); err != nil {
			return fmt.Errorf("obtaining certificates: %w", err)
		}
		return a.TLSServer.Start()
	}
	return a.HTTPServer.Start()
}

// initEngine attaches the engine and applies the configured overlay and location state.
func (a *App) initEngine(ctx context.Context) error {
	var overlayErr, locationErr error
	err := a.Loop.Call(ctx, func() {
		a.Engine.Init()
		if a.Config.Overlay.File != "" {
			overlayErr = a.Engine.SetReferenceOverlay(a.Config.Overlay.File)
		}
		if a.Config.Location.Enabled {
			locationErr = a.Engine.SetGpsLocationEnabled(true)
		}
	})
	if err != nil {
		return fmt.Errorf("initializing map engine: %w", err)
	}
	if overlayErr != nil {
		a.Logger.Warn("failed to show reference overlay", "path", a.Config.Overlay.File, "error", overlayErr)
	}
	if locationErr != nil {
		a.Logger.Warn("failed to enable location", "error", locationErr)
	}
	return nil
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}
	a.SyncService.Stop()

	if a.MetricsServer != nil {
		if err := a.MetricsServer.Shutdown(ctx); err != nil {
			a.Logger.Error("metrics server shutdown error", "error", err)
		}
	}

	if a.TLSServer != nil {
		if err := a.TLSServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTPS server shutdown error", "error", err)
		}
	} else if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := a.Loop.Call(ctx, a.Engine.Teardown); err != nil {
		a.Logger.Warn("map engine teardown skipped", "error", err)
	}
	a.Loop.Stop()
	a.Loop.Wait()

	a.Library.Close()
	return nil
}

// watchPaths returns the overlay file and the local layer directory when watching is enabled.
func (a *App) watchPaths() []string {
	var paths []string
	if a.Config.Overlay.File != "" && a.Config.Overlay.Watch {
		paths = append(paths, a.Config.Overlay.File)
	}
	if a.Config.Layers.Type == string(output.StorageTypeLocal) && a.Config.Layers.Watch {
		paths = append(paths, a.Config.Layers.LocalPath)
	}
	return paths
}

// handleFileEvent reloads the overlay and the layer library on file changes.
func (a *App) handleFileEvent(ctx context.Context, event watcher.Event) error {
	a.Logger.Info("file event", "path", event.Path, "operation", event.Operation.String())

	// The overlay target can change through the API, so it is read on the loop.
	posted := a.Loop.Post(func() {
		overlay := a.Engine.ReferenceOverlay()
		if !samePath(overlay.Target(), event.Path) {
			return
		}
		if err := overlay.Reload(); err != nil {
			a.Logger.Warn("failed to reload reference overlay", "path", event.Path, "error", err)
		}
	})
	if !posted {
		return loop.ErrStopped
	}

	if !a.inLayerDir(event.Path) {
		return nil
	}
	switch event.Operation {
	case watcher.OpCreate, watcher.OpModify:
		return a.Library.LoadLayer(ctx, event.Path)
	case watcher.OpDelete:
		layerID := mbtiles.DeriveLayerID(event.Path)
		if err := a.Library.UnloadLayer(ctx, layerID); err != nil && !domain.IsNotFound(err) {
			a.Logger.Warn("failed to unload deleted layer", "layer", layerID, "error", err)
		}
	}
	return nil
}

// samePath reports whether target is set and names the same file as path.
func samePath(target, path string) bool {
	return target != "" && absPath(target) == absPath(path)
}

func (a *App) inLayerDir(path string) bool {
	if a.Config.Layers.Type != string(output.StorageTypeLocal) {
		return false
	}
	rel, err := filepath.Rel(absPath(a.Config.Layers.LocalPath), absPath(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// absPath returns the cleaned absolute form of path, or path itself if that fails.
func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}

// initStorage initializes the appropriate storage adapter.
func initStorage(ctx context.Context, cfg config.LayersConfig) (output.LayerStorage, error) {
	switch output.StorageType(cfg.Type) {
	case output.StorageTypeLocal:
		return storage.NewLocalStorage(cfg.LocalPath), nil

	case output.StorageTypeS3:
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case output.StorageTypeAzure:
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case output.StorageTypeHTTP:
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

func viewport(cfg config.ViewportConfig) headless.Config {
	return headless.Config{
		Width:    cfg.Width,
		Height:   cfg.Height,
		TileSize: cfg.TileSize,
		MinZoom:  cfg.MinZoom,
		MaxZoom:  cfg.MaxZoom,
		Padding:  cfg.Padding,
	}
}

func engineConfig(cfg config.MapConfig) application.EngineConfig {
	return application.EngineConfig{
		PointZoom:      cfg.PointZoom,
		FitDelay:       cfg.FitDelay,
		CrosshairIcon:  domain.IconDescription{Ref: cfg.CrosshairIcon},
		VertexIcon:     domain.IconDescription{Ref: cfg.VertexIcon},
		AccuracyStroke: domain.StrokeStyle{Color: cfg.AccuracyColor, Width: 2},
		AccuracyFill:   domain.FillStyle{Color: cfg.AccuracyFill},
	}
}
