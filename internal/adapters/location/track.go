// Package location provides location providers that replay recorded tracks.
package location

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/mapkit/internal/domain"
)

// LoadTrack reads a recorded track. Files ending in .csv hold
// "lat,lon[,alt[,accuracy]]" rows; everything else is read as GeoJSON.
func LoadTrack(path string) ([]domain.GeoPoint, error) {
	f, err := os.Open(path) //#nosec G304 -- track path comes from configuration
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var points []domain.GeoPoint
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		points, err = readCSV(f)
	} else {
		points, err = readGeoJSON(f)
	}
	if err != nil {
		return nil, fmt.Errorf("reading track %s: %w", path, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("track %s has no points: %w", path, domain.ErrInvalidInput)
	}
	return points, nil
}

func readCSV(r io.Reader) ([]domain.GeoPoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var points []domain.GeoPoint
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return points, nil
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: want at least lat,lon: %w", line, domain.ErrInvalidInput)
		}

		var v [4]float64
		header := false
		for i := 0; i < len(rec) && i < 4; i++ {
			f, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				if line == 1 {
					header = true
					break
				}
				return nil, fmt.Errorf("line %d column %d: %w", line, i+1, domain.ErrInvalidInput)
			}
			v[i] = f
		}
		if header {
			continue
		}

		p := domain.GeoPoint{Lat: v[0], Lon: v[1], Alt: v[2], Accuracy: v[3]}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		points = append(points, p)
	}
}

func readGeoJSON(r io.Reader) ([]domain.GeoPoint, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}

	var points []domain.GeoPoint
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case nil:
			continue
		case orb.Point:
			p := domain.FromOrb(g)
			p.Alt = f.Properties.MustFloat64("alt", 0)
			p.Accuracy = f.Properties.MustFloat64("accuracy", 0)
			points = append(points, p)
		case orb.MultiPoint:
			for _, pt := range g {
				points = append(points, domain.FromOrb(pt))
			}
		case orb.LineString:
			for _, pt := range g {
				points = append(points, domain.FromOrb(pt))
			}
		default:
			return nil, fmt.Errorf("track geometry %s: %w", f.Geometry.GeoJSONType(), domain.ErrUnsupported)
		}
	}
	return points, nil
}
