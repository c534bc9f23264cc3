package artifact

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"energy_forecast/internal/model"
	"energy_forecast/internal/predictor"
)

// DefaultCacheSize bounds how many artifacts stay decoded in memory.
const DefaultCacheSize = 256

// Registry is the single point through which artifacts are published and
// read. A published artifact is persisted first and then swapped into the
// in-memory slot, so a Get never observes a partially written model.
type Registry struct {
	store Store
	cache *lru.Cache[string, *predictor.Artifact]

	mu       sync.Mutex
	training map[string]struct{}
}

func NewRegistry(store Store, cacheSize int) (*Registry, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *predictor.Artifact](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Registry{
		store:    store,
		cache:    cache,
		training: make(map[string]struct{}),
	}, nil
}

// Publish persists a and makes it the current artifact for its building.
// On a store error the previous artifact stays current.
func (r *Registry) Publish(ctx context.Context, a *predictor.Artifact) error {
	if a == nil || a.Regressor == nil {
		return fmt.Errorf("publish: artifact has no regressor")
	}
	if err := r.store.Save(ctx, a); err != nil {
		return err
	}
	r.cache.Add(a.BuildingID, a)
	return nil
}

// Get returns the current artifact, loading it from the store on a cache miss.
func (r *Registry) Get(ctx context.Context, buildingID string) (*predictor.Artifact, error) {
	if a, ok := r.cache.Get(buildingID); ok {
		return a, nil
	}
	a, err := r.store.Load(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	// A Publish may have raced this load; keep whatever it installed.
	if found, _ := r.cache.ContainsOrAdd(buildingID, a); found {
		if cur, ok := r.cache.Get(buildingID); ok {
			return cur, nil
		}
	}
	return a, nil
}

// BeginTraining reserves the building's training slot. The returned release
// func must be called when training ends, whether it succeeded or not.
func (r *Registry) BeginTraining(buildingID string) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.training[buildingID]; busy {
		return nil, fmt.Errorf("building %s: %w", buildingID, model.ErrTrainingInProgress)
	}
	r.training[buildingID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.training, buildingID)
			r.mu.Unlock()
		})
	}, nil
}

// Cached reports how many artifacts are held in memory.
func (r *Registry) Cached() int {
	return r.cache.Len()
}

// Snapshot returns the cached artifacts, least recently used first.
func (r *Registry) Snapshot() []*predictor.Artifact {
	return r.cache.Values()
}
