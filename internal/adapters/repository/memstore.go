package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/macrofeed/macrofeed/internal/domain/model"
)

// MemStore implements RecordStore with in-process maps. It backs tests
// and local dry runs; the Postgres store is the production path.
type MemStore struct {
	mu         sync.RWMutex
	indicators map[string]model.Indicator // (name|country) -> indicator
	releases   map[model.ReleaseKey]model.Release
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		indicators: make(map[string]model.Indicator),
		releases:   make(map[model.ReleaseKey]model.Release),
	}
}

func indicatorKey(name, countryCode string) string {
	return name + "|" + countryCode
}

// GetIndicator looks up an indicator by (name, countryCode).
func (s *MemStore) GetIndicator(_ context.Context, name, countryCode string) (model.Indicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ind, ok := s.indicators[indicatorKey(name, countryCode)]
	if !ok {
		return model.Indicator{}, ErrNotFound
	}
	return ind, nil
}

// CreateIndicator persists a new indicator, assigning an ID when absent.
func (s *MemStore) CreateIndicator(_ context.Context, ind model.Indicator) (model.Indicator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ind.ID == "" {
		ind.ID = uuid.NewString()
	}
	s.indicators[indicatorKey(ind.Name, ind.CountryCode)] = ind
	return ind, nil
}

// FindReleases resolves a chunk of identity keys.
func (s *MemStore) FindReleases(_ context.Context, keys []model.ReleaseKey) ([]model.Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make([]model.Release, 0, len(keys))
	for _, key := range keys {
		if rel, ok := s.releases[normalizeKey(key)]; ok {
			found = append(found, rel)
		}
	}
	return found, nil
}

// FindReleasesByDay returns releases for an indicator on one calendar day.
func (s *MemStore) FindReleasesByDay(_ context.Context, indicatorID string, day time.Time, periodLabel string) ([]model.Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	y, m, d := day.UTC().Date()
	var found []model.Release
	for _, rel := range s.releases {
		if rel.IndicatorID != indicatorID || rel.Period != periodLabel {
			continue
		}
		ry, rm, rd := rel.ReleaseAt.UTC().Date()
		if ry == y && rm == m && rd == d {
			found = append(found, rel)
		}
	}
	return found, nil
}

// InsertReleases persists a batch of new releases.
func (s *MemStore) InsertReleases(_ context.Context, releases []model.Release) error {
	if len(releases) == 0 {
		return ErrEmptyBatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rel := range releases {
		if rel.ID == "" {
			rel.ID = uuid.NewString()
		}
		s.releases[normalizeKey(rel.Key())] = rel
	}
	return nil
}

// UpdateRelease mutates the stored release matching key.
func (s *MemStore) UpdateRelease(_ context.Context, key model.ReleaseKey, fields ReleaseFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nk := normalizeKey(key)
	rel, ok := s.releases[nk]
	if !ok {
		return ErrNotFound
	}

	if fields.Actual != nil {
		rel.Actual = *fields.Actual
	}
	if fields.Forecast != nil {
		rel.Forecast = *fields.Forecast
	}
	if fields.Previous != nil {
		rel.Previous = *fields.Previous
	}
	if fields.Unit != nil {
		rel.Unit = *fields.Unit
	}
	if fields.Notes != nil {
		rel.Notes = *fields.Notes
	}
	if fields.ReleaseAt != nil {
		delete(s.releases, nk)
		rel.ReleaseAt = fields.ReleaseAt.UTC()
		s.releases[normalizeKey(rel.Key())] = rel
		return nil
	}

	s.releases[nk] = rel
	return nil
}

// ReleaseCount reports the number of stored releases. Test helper.
func (s *MemStore) ReleaseCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.releases)
}

// normalizeKey pins timestamps to UTC so the same instant always maps to
// the same map key.
func normalizeKey(key model.ReleaseKey) model.ReleaseKey {
	key.ReleaseAt = key.ReleaseAt.UTC()
	return key
}
