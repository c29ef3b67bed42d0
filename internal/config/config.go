// Package config provides configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Map      MapConfig      `mapstructure:"map"`
	Location LocationConfig `mapstructure:"location"`
	Overlay  OverlayConfig  `mapstructure:"overlay"`
	Icons    IconsConfig    `mapstructure:"icons"`
	Layers   LayersConfig   `mapstructure:"layers"`
	Server   ServerConfig   `mapstructure:"server"`
	TLS      TLSConfig      `mapstructure:"tls"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// MapConfig holds map engine and viewport configuration.
type MapConfig struct {
	PointZoom     float64        `mapstructure:"point_zoom"`
	FitDelay      time.Duration  `mapstructure:"fit_delay"`
	ScaleFactor   float64        `mapstructure:"scale_factor"` // Default bounding box scale for frame
	Viewport      ViewportConfig `mapstructure:"viewport"`
	CrosshairIcon string         `mapstructure:"crosshair_icon"`
	VertexIcon    string         `mapstructure:"vertex_icon"`
	AccuracyColor string         `mapstructure:"accuracy_color"`
	AccuracyFill  string         `mapstructure:"accuracy_fill"`
	MaxFeatures   int            `mapstructure:"max_features"` // Feature query limit
}

// ViewportConfig holds the size and zoom range of the headless map view.
type ViewportConfig struct {
	Width    int     `mapstructure:"width"`
	Height   int     `mapstructure:"height"`
	TileSize int     `mapstructure:"tile_size"`
	MinZoom  float64 `mapstructure:"min_zoom"`
	MaxZoom  float64 `mapstructure:"max_zoom"`
	Padding  int     `mapstructure:"padding"`
}

// LocationConfig holds device location configuration.
type LocationConfig struct {
	Provider   string        `mapstructure:"provider"` // replay, none
	ReplayFile string        `mapstructure:"replay_file"`
	Interval   time.Duration `mapstructure:"interval"`
	Loop       bool          `mapstructure:"loop"`
	Enabled    bool          `mapstructure:"enabled"` // Enable location on startup
}

// OverlayConfig holds reference overlay configuration.
type OverlayConfig struct {
	File  string `mapstructure:"file"`
	Watch bool   `mapstructure:"watch"`
}

// IconsConfig holds icon resolver configuration.
type IconsConfig struct {
	Dir  string `mapstructure:"dir"`
	Size int    `mapstructure:"size"`
}

// LayersConfig holds reference layer storage configuration.
type LayersConfig struct {
	Type         string        `mapstructure:"type"` // s3, azure, http, local
	LocalPath    string        `mapstructure:"local_path"`
	SyncInterval time.Duration `mapstructure:"sync_interval"` // 0 disables periodic sync
	Watch        bool          `mapstructure:"watch"`
	S3           S3Config      `mapstructure:"s3"`
	Azure        AzureConfig   `mapstructure:"azure"`
	HTTP         HTTPConfig    `mapstructure:"http"`
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// HTTPConfig holds HTTP download configuration.
type HTTPConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	IndexFile string        `mapstructure:"index_file"` // default: index.txt
	Timeout   time.Duration `mapstructure:"timeout"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"` // e.g., ["https://example.com", "*.sub.domain.tld"]
}

// Enabled returns true if CORS is configured with at least one allowed origin.
func (c *CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// TLSConfig holds TLS/CertMagic configuration.
type TLSConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Domains  []string       `mapstructure:"domains"`
	Email    string         `mapstructure:"email"`
	CacheDir string         `mapstructure:"cache_dir"`
	Staging  bool           `mapstructure:"staging"` // Use Let's Encrypt staging
	AzureDNS AzureDNSConfig `mapstructure:"azure_dns"`
}

// AzureDNSConfig holds the Azure DNS zone used for DNS-01 challenges.
type AzureDNSConfig struct {
	SubscriptionID    string `mapstructure:"subscription_id"`
	ResourceGroupName string `mapstructure:"resource_group_name"`
	ClientID          string `mapstructure:"client_id"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Port      int    `mapstructure:"port"` // 0 serves metrics on the API server
	Namespace string `mapstructure:"namespace"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Defaults sets the default configuration values.
func Defaults() {
	// Map defaults
	viper.SetDefault("map.point_zoom", 16.0)
	viper.SetDefault("map.fit_delay", 100*time.Millisecond)
	viper.SetDefault("map.scale_factor", 0.8)
	viper.SetDefault("map.viewport.width", 1080)
	viper.SetDefault("map.viewport.height", 1920)
	viper.SetDefault("map.viewport.tile_size", 256)
	viper.SetDefault("map.viewport.min_zoom", 2.0)
	viper.SetDefault("map.viewport.max_zoom", 21.0)
	viper.SetDefault("map.viewport.padding", 0)
	viper.SetDefault("map.crosshair_icon", "")
	viper.SetDefault("map.vertex_icon", "")
	viper.SetDefault("map.accuracy_color", "#4285f4")
	viper.SetDefault("map.accuracy_fill", "#4285f433")
	viper.SetDefault("map.max_features", 1000)

	// Location defaults
	viper.SetDefault("location.provider", "none")
	viper.SetDefault("location.interval", time.Second)
	viper.SetDefault("location.loop", false)
	viper.SetDefault("location.enabled", false)

	// Overlay defaults
	viper.SetDefault("overlay.watch", true)

	// Icon defaults
	viper.SetDefault("icons.dir", "./icons")
	viper.SetDefault("icons.size", 48)

	// Layer defaults
	viper.SetDefault("layers.type", "local")
	viper.SetDefault("layers.local_path", "./data")
	viper.SetDefault("layers.sync_interval", time.Duration(0))
	viper.SetDefault("layers.watch", true)
	viper.SetDefault("layers.http.index_file", "index.txt")
	viper.SetDefault("layers.http.timeout", 5*time.Minute)

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.cors.allowed_origins", []string{})

	// TLS defaults
	viper.SetDefault("tls.enabled", false)
	viper.SetDefault("tls.cache_dir", "./.certmagic")
	viper.SetDefault("tls.staging", false)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.port", 0)
	viper.SetDefault("metrics.namespace", "mapkit")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	// Environment variable binding
	viper.SetEnvPrefix("MAPKIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/mapkit")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
	}

	if err := c.Map.validate(); err != nil {
		return err
	}

	switch c.Location.Provider {
	case "none", "":
	case "replay":
		if c.Location.ReplayFile == "" {
			return fmt.Errorf("replay location provider requires a replay file")
		}
		if c.Location.Interval <= 0 {
			return fmt.Errorf("invalid location interval: %s", c.Location.Interval)
		}
	default:
		return fmt.Errorf("unknown location provider: %s", c.Location.Provider)
	}

	if c.TLS.Enabled {
		if len(c.TLS.Domains) == 0 {
			return fmt.Errorf("TLS enabled but no domains specified")
		}
		if c.TLS.Email == "" {
			return fmt.Errorf("TLS enabled but no email specified")
		}
	}

	switch c.Layers.Type {
	case "local":
		if c.Layers.LocalPath == "" {
			return fmt.Errorf("local layer path is required")
		}
	case "s3":
		if c.Layers.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required")
		}
		if c.Layers.S3.Region == "" {
			return fmt.Errorf("S3 region is required")
		}
	case "azure":
		if c.Layers.Azure.Container == "" {
			return fmt.Errorf("azure container is required")
		}
		if c.Layers.Azure.AccountName == "" && c.Layers.Azure.ConnectionString == "" {
			return fmt.Errorf("azure account name or connection string is required")
		}
	case "http":
		if c.Layers.HTTP.BaseURL == "" {
			return fmt.Errorf("HTTP base URL is required")
		}
	default:
		return fmt.Errorf("unknown layer storage type: %s", c.Layers.Type)
	}

	if c.Layers.SyncInterval < 0 {
		return fmt.Errorf("invalid layer sync interval: %s", c.Layers.SyncInterval)
	}

	return nil
}

func (m *MapConfig) validate() error {
	v := m.Viewport
	if v.Width < 0 || v.Height < 0 {
		return fmt.Errorf("invalid viewport size: %dx%d", v.Width, v.Height)
	}
	if v.MinZoom < 0 || v.MaxZoom < v.MinZoom {
		return fmt.Errorf("invalid zoom range: %g-%g", v.MinZoom, v.MaxZoom)
	}
	if m.PointZoom < v.MinZoom || m.PointZoom > v.MaxZoom {
		return fmt.Errorf("point zoom %g outside zoom range %g-%g", m.PointZoom, v.MinZoom, v.MaxZoom)
	}
	if m.ScaleFactor <= 0 || m.ScaleFactor > 1 {
		return fmt.Errorf("scale factor must be in (0, 1]: %g", m.ScaleFactor)
	}
	if m.FitDelay < 0 {
		return fmt.Errorf("invalid fit delay: %s", m.FitDelay)
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsAddress returns the address of the separate metrics listener, or ""
// when metrics are served on the API server.
func (c *Config) MetricsAddress() string {
	if c.Metrics.Port == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Metrics.Port)
}
