// Package main provides the entry point for the mapkit map engine service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobrunner/mapkit/internal/app"
	"github.com/jobrunner/mapkit/internal/config"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var cfgFile string

// serveFlagKeys maps config keys to the command line flags that override them.
var serveFlagKeys = map[string]string{
	"logging.level":               "log-level",
	"logging.format":              "log-format",
	"server.host":                 "host",
	"server.port":                 "port",
	"server.cors.allowed_origins": "cors",
	"tls.enabled":                 "tls",
	"tls.domains":                 "tls-domains",
	"tls.email":                   "tls-email",
	"layers.type":                 "layers-type",
	"layers.local_path":           "layers-path",
	"overlay.file":                "overlay",
	"location.replay_file":        "replay-file",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mapkit",
	Short: "mapkit - headless map feature and camera engine",
	Long: `mapkit keeps a registry of map features (markers, lines, polygons),
drives a camera that frames them, follows a location source and shows a
reference overlay from MBTiles layers.

Features:
  - Marker, static line, editable line and polygon features
  - Deferred camera fitting to bounding boxes
  - Location tracking with accuracy circle
  - MBTiles reference overlays and tile serving
  - Multiple layer storage backends (local, AWS S3, Azure, HTTP)
  - Hot-reload of layers and overlay
  - TLS with automatic certificate management
  - Prometheus metrics`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("mapkit %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

var frameCmd = &cobra.Command{
	Use:   "frame <file.geojson>",
	Short: "Import a GeoJSON file and print the camera that frames it",
	Args:  cobra.ExactArgs(1),
	RunE:  runFrame,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")

	// Server flags
	rootCmd.Flags().String("host", "0.0.0.0", "server host")
	rootCmd.Flags().Int("port", 8080, "server port")
	rootCmd.Flags().Bool("tls", false, "enable TLS")
	rootCmd.Flags().StringSlice("tls-domains", nil, "TLS domains")
	rootCmd.Flags().String("tls-email", "", "TLS email for Let's Encrypt")

	// Layer flags
	rootCmd.Flags().String("layers-type", "local", "layer storage type (local, s3, azure, http)")
	rootCmd.Flags().String("layers-path", "./data", "local layer directory")
	rootCmd.Flags().String("overlay", "", "MBTiles file shown as reference overlay")

	// Location flags
	rootCmd.Flags().String("replay-file", "", "CSV or GeoJSON track replayed as location source")

	// CORS flags
	rootCmd.Flags().StringSlice("cors", nil, "allowed CORS origins (e.g., https://example.com,*.sub.domain.tld)")

	// Frame flags
	frameCmd.Flags().Float64("scale", 0, "share of the viewport the features may cover (default: map.scale_factor)")

	for key, name := range serveFlagKeys {
		flag := rootCmd.Flags().Lookup(name)
		if flag == nil {
			flag = rootCmd.PersistentFlags().Lookup(name)
		}
		_ = viper.BindPFlag(key, flag)
	}

	rootCmd.AddCommand(versionCmd, frameCmd)
}

func initConfig() {
	config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("replay-file") {
		viper.Set("location.provider", "replay")
		viper.Set("location.enabled", true)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting mapkit",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"layers_type", cfg.Layers.Type,
		"location_provider", cfg.Location.Provider,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", cfg.Server.Address())
		if err := application.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	logger.Info("shutting down server")
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

func runFrame(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr so stdout carries only the result.
	logger := setupLogger(cfg.Logging, os.Stderr)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}

	scale, _ := cmd.Flags().GetFloat64("scale")
	if scale == 0 {
		scale = cfg.Map.ScaleFactor
	}

	result, err := app.Frame(cfg.Map, fc, scale, logger)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// setupLogger builds a JSON or text logger writing to w. Unknown levels fall back to info.
func setupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
