package application

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/mapkit/internal/domain"
)

// GeoJSON property keys.
const (
	propID        = "id"
	propKind      = "kind"
	propAlt       = "alt"
	propAccuracy  = "accuracy"
	propClosed    = "closed"
	propDraggable = "draggable"
)

// ExportGeoJSON returns all features of the engine as a feature collection.
// Open lines become LineStrings, closed lines and polygons become Polygons.
func ExportGeoJSON(e *MapEngine) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, id := range e.FeatureIDs() {
		f, ok := e.Feature(id)
		if !ok {
			continue
		}
		if gf := exportFeature(id, f); gf != nil {
			fc.Append(gf)
		}
	}
	return fc
}

// ExportFeatures returns the features with the given ids as a feature collection.
func ExportFeatures(e *MapEngine, ids []domain.FeatureID) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, id := range ids {
		f, ok := e.Feature(id)
		if !ok {
			continue
		}
		if gf := exportFeature(id, f); gf != nil {
			fc.Append(gf)
		}
	}
	return fc
}

func exportFeature(id domain.FeatureID, f Feature) *geojson.Feature {
	var gf *geojson.Feature
	switch v := f.(type) {
	case *MarkerFeature:
		p := v.Point()
		gf = geojson.NewFeature(p.Orb())
		gf.Properties[propAlt] = p.Alt
		gf.Properties[propAccuracy] = p.Accuracy
	case *StaticLineFeature:
		gf = lineFeature(v.Points(), v.Closed())
	case *DynamicLineFeature:
		gf = lineFeature(v.Points(), v.Closed())
		if gf != nil {
			gf.Properties[propDraggable] = true
		}
	case *PolygonFeature:
		if len(v.Points()) == 0 {
			return nil
		}
		gf = geojson.NewFeature(orb.Polygon{ring(v.Points())})
	}
	if gf == nil {
		return nil
	}
	gf.ID = int(id)
	gf.Properties[propID] = int(id)
	gf.Properties[propKind] = string(f.Kind())
	return gf
}

func lineFeature(points []domain.GeoPoint, closed bool) *geojson.Feature {
	if len(points) == 0 {
		return nil
	}
	if closed {
		gf := geojson.NewFeature(orb.Polygon{ring(points)})
		gf.Properties[propClosed] = true
		return gf
	}
	ls := make(orb.LineString, 0, len(points))
	for _, p := range points {
		ls = append(ls, p.Orb())
	}
	return geojson.NewFeature(ls)
}

func ring(points []domain.GeoPoint) orb.Ring {
	path := domain.ClosedPath(points, true)
	r := make(orb.Ring, 0, len(path))
	for _, p := range path {
		r = append(r, p.Orb())
	}
	return r
}

// ImportGeoJSON adds the features of fc to the engine and returns the new ids.
// Points and MultiPoints become markers, LineStrings become lines, Polygons become
// polygons, or closed lines when their kind property is "line". Nothing is added
// if any feature has an unsupported geometry.
func ImportGeoJSON(e *MapEngine, fc *geojson.FeatureCollection) ([]domain.FeatureID, error) {
	if fc == nil {
		return nil, nil
	}

	var adds []func() domain.FeatureID
	for i, f := range fc.Features {
		fns, err := importFeature(e, f)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		adds = append(adds, fns...)
	}

	ids := make([]domain.FeatureID, 0, len(adds))
	for _, add := range adds {
		ids = append(ids, add())
	}
	return ids, nil
}

func importFeature(e *MapEngine, f *geojson.Feature) ([]func() domain.FeatureID, error) {
	if f == nil || f.Geometry == nil {
		return nil, &domain.ValidationError{Field: "geometry", Message: "feature has no geometry"}
	}
	draggable := f.Properties.MustBool(propDraggable, false)

	switch g := f.Geometry.(type) {
	case orb.Point:
		p := domain.FromOrb(g)
		p.Alt = f.Properties.MustFloat64(propAlt, 0)
		p.Accuracy = f.Properties.MustFloat64(propAccuracy, 0)
		return []func() domain.FeatureID{func() domain.FeatureID {
			return e.AddMarker(domain.MarkerDescriptor{Point: p, Draggable: draggable})
		}}, nil

	case orb.MultiPoint:
		fns := make([]func() domain.FeatureID, 0, len(g))
		for _, op := range g {
			p := domain.FromOrb(op)
			fns = append(fns, func() domain.FeatureID {
				return e.AddMarker(domain.MarkerDescriptor{Point: p, Draggable: draggable})
			})
		}
		return fns, nil

	case orb.LineString:
		points := fromOrbPoints(g)
		return []func() domain.FeatureID{func() domain.FeatureID {
			return e.AddPolyline(domain.LineDescriptor{Points: points, Draggable: draggable})
		}}, nil

	case orb.Polygon:
		if len(g) == 0 {
			return nil, &domain.ValidationError{Field: "geometry", Message: "polygon has no rings"}
		}
		points := openRing(g[0])
		if f.Properties.MustString(propKind, "") == string(domain.KindLine) {
			return []func() domain.FeatureID{func() domain.FeatureID {
				return e.AddPolyline(domain.LineDescriptor{Points: points, Closed: true, Draggable: draggable})
			}}, nil
		}
		return []func() domain.FeatureID{func() domain.FeatureID {
			return e.AddPolygon(domain.PolygonDescriptor{Points: points})
		}}, nil

	default:
		return nil, fmt.Errorf("geometry %s: %w", f.Geometry.GeoJSONType(), domain.ErrUnsupported)
	}
}

func fromOrbPoints(ps []orb.Point) []domain.GeoPoint {
	out := make([]domain.GeoPoint, 0, len(ps))
	for _, p := range ps {
		out = append(out, domain.FromOrb(p))
	}
	return out
}

// openRing drops the closing point of a ring.
func openRing(r orb.Ring) []domain.GeoPoint {
	if len(r) > 1 && r.Closed() {
		r = r[:len(r)-1]
	}
	return fromOrbPoints(r)
}
