package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jobrunner/mapkit/internal/config"
)

func TestServeFlagsExist(t *testing.T) {
	for key, name := range serveFlagKeys {
		if rootCmd.Flags().Lookup(name) == nil && rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("flag %q for %s is not defined", name, key)
		}
	}
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		debug   bool
		warn    bool
		jsonOut bool
	}{
		{"debug", "json", true, true, true},
		{"info", "text", false, true, false},
		{"error", "json", false, false, true},
		{"bogus", "json", false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := setupLogger(config.LoggingConfig{Level: tt.level, Format: tt.format}, &buf)

			ctx := context.Background()
			if got := logger.Enabled(ctx, slog.LevelDebug); got != tt.debug {
				t.Errorf("debug enabled = %v, want %v", got, tt.debug)
			}
			if got := logger.Enabled(ctx, slog.LevelWarn); got != tt.warn {
				t.Errorf("warn enabled = %v, want %v", got, tt.warn)
			}

			logger.Error("boom")
			if got := json.Valid(bytes.TrimSpace(buf.Bytes())); got != tt.jsonOut {
				t.Errorf("json output = %v, want %v: %s", got, tt.jsonOut, buf.String())
			}
			if !strings.Contains(buf.String(), "Z") {
				t.Errorf("timestamp should be UTC: %s", buf.String())
			}
		})
	}
}

func TestFrameCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "points.geojson")
	data := `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[11.5,48.1]},"properties":{}}
	]}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	frameCmd.SetOut(&out)
	defer frameCmd.SetOut(nil)
	if err := frameCmd.RunE(frameCmd, []string{path}); err != nil {
		t.Fatalf("frame error = %v", err)
	}

	var result struct {
		Camera struct {
			Zoom float64 `json:"zoom"`
		} `json:"camera"`
		Points int `json:"points"`
	}
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, out.String())
	}
	if result.Points != 1 || result.Camera.Zoom != 16 {
		t.Errorf("result = %+v, want 1 point at zoom 16", result)
	}
}
