package application

import (
	"sort"

	"github.com/jobrunner/mapkit/internal/domain"
	"github.com/jobrunner/mapkit/internal/ports/output"
)

// FeatureRegistry owns the id to feature mapping.
type FeatureRegistry struct {
	features map[domain.FeatureID]Feature
	nextID   domain.FeatureID
}

// NewFeatureRegistry creates an empty registry whose first id is 1.
func NewFeatureRegistry() *FeatureRegistry {
	return &FeatureRegistry{
		features: make(map[domain.FeatureID]Feature),
		nextID:   1,
	}
}

// Add stores the feature under the next id.
func (r *FeatureRegistry) Add(f Feature) domain.FeatureID {
	id := r.nextID
	r.nextID++
	r.features[id] = f
	return id
}

// Get returns the feature with the given id.
func (r *FeatureRegistry) Get(id domain.FeatureID) (Feature, bool) {
	f, ok := r.features[id]
	return f, ok
}

// FindByHandle returns the id of the feature owning h, or domain.NoFeature.
func (r *FeatureRegistry) FindByHandle(h output.Handle) domain.FeatureID {
	for id, f := range r.features {
		if f.OwnsHandle(h) {
			return id
		}
	}
	return domain.NoFeature
}

// Remove disposes and forgets one feature. Ids are not reused.
func (r *FeatureRegistry) Remove(id domain.FeatureID) (Feature, bool) {
	f, ok := r.features[id]
	if !ok {
		return nil, false
	}
	f.Dispose()
	delete(r.features, id)
	return f, true
}

// Clear disposes every feature, then empties the registry and restarts ids at 1.
func (r *FeatureRegistry) Clear() {
	for _, f := range r.features {
		f.Dispose()
	}
	r.features = make(map[domain.FeatureID]Feature)
	r.nextID = 1
}

// IDs returns the ids of all features in ascending order.
func (r *FeatureRegistry) IDs() []domain.FeatureID {
	ids := make([]domain.FeatureID, 0, len(r.features))
	for id := range r.features {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of features.
func (r *FeatureRegistry) Len() int {
	return len(r.features)
}
