package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"energy_forecast/internal/model"
)

// Store persists hourly measurements keyed by (building, timestamp).
type Store interface {
	// Upsert inserts or replaces measurements and returns how many it wrote.
	Upsert(ctx context.Context, ms []model.Measurement) (int, error)
	// Since returns a building's measurements at or after since, ascending.
	Since(ctx context.Context, buildingID string, since time.Time) ([]model.Measurement, error)
	// Tail returns a building's newest n measurements, ascending.
	Tail(ctx context.Context, buildingID string, n int) ([]model.Measurement, error)
	// Count returns the number of stored measurements over all buildings.
	Count(ctx context.Context) (int, error)
}

// MemoryStore holds measurements in memory, indexed by building ID.
type MemoryStore struct {
	mu       sync.RWMutex
	readings map[string][]model.Measurement // keyed by building ID, sorted by timestamp
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		readings: make(map[string][]model.Measurement),
	}
}

// Upsert adds measurements, replacing any with the same building and hour.
func (s *MemoryStore) Upsert(_ context.Context, ms []model.Measurement) (int, error) {
	if len(ms) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range ms {
		all := s.readings[m.BuildingID]
		idx := sort.Search(len(all), func(i int) bool {
			return !all[i].Timestamp.Before(m.Timestamp)
		})
		if idx < len(all) && all[idx].Timestamp.Equal(m.Timestamp) {
			all[idx] = m
			continue
		}
		all = append(all, model.Measurement{})
		copy(all[idx+1:], all[idx:])
		all[idx] = m
		s.readings[m.BuildingID] = all
	}
	return len(ms), nil
}

func (s *MemoryStore) Since(_ context.Context, buildingID string, since time.Time) ([]model.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.readings[buildingID]
	startIdx := sort.Search(len(all), func(i int) bool {
		return !all[i].Timestamp.Before(since)
	})
	if startIdx >= len(all) {
		return nil, nil
	}

	result := make([]model.Measurement, len(all)-startIdx)
	copy(result, all[startIdx:])
	return result, nil
}

func (s *MemoryStore) Tail(_ context.Context, buildingID string, n int) ([]model.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.readings[buildingID]
	if n <= 0 || len(all) == 0 {
		return nil, nil
	}
	startIdx := max(len(all)-n, 0)
	result := make([]model.Measurement, len(all)-startIdx)
	copy(result, all[startIdx:])
	return result, nil
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, all := range s.readings {
		n += len(all)
	}
	return n, nil
}
