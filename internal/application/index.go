package application

import (
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/jobrunner/mapkit/internal/domain"
)

// minRectLength gives point features a non-zero extent (~11 m at the equator).
const minRectLength = 0.0001

// indexedFeature wraps a feature for R-tree storage.
type indexedFeature struct {
	id     domain.FeatureID
	bounds domain.Bounds
}

// Bounds implements rtreego.Spatial.
func (f *indexedFeature) Bounds() rtreego.Rect {
	return boundsRect(f.bounds)
}

func boundsRect(b domain.Bounds) rtreego.Rect {
	lonLength := b.East - b.West
	latLength := b.North - b.South
	if lonLength < minRectLength {
		lonLength = minRectLength
	}
	if latLength < minRectLength {
		latLength = minRectLength
	}
	rect, _ := rtreego.NewRect(rtreego.Point{b.West, b.South}, []float64{lonLength, latLength})
	return rect
}

// FeaturesWithin returns the ids of features whose extent intersects bounds, ascending.
// A box crossing the antimeridian, with East past 180 or East < West, is queried
// on both sides. Features without points are never returned.
func (e *MapEngine) FeaturesWithin(bounds domain.Bounds) []domain.FeatureID {
	ids := e.registry.IDs()
	if len(ids) == 0 {
		return nil
	}

	rtree := rtreego.NewTree(2, 25, 50)
	for _, id := range ids {
		f, _ := e.registry.Get(id)
		points := f.Points()
		if len(points) == 0 {
			continue
		}
		rtree.Insert(&indexedFeature{id: id, bounds: domain.BoundsOf(points)})
	}

	seen := make(map[domain.FeatureID]bool)
	result := make([]domain.FeatureID, 0)
	for _, part := range bounds.Split() {
		for _, s := range rtree.SearchIntersect(boundsRect(part)) {
			id := s.(*indexedFeature).id
			if !seen[id] {
				seen[id] = true
				result = append(result, id)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
