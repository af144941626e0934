package driver

import (
	"context"
	"sort"
	"sync"
	"time"

	"tripnow/internal/types"
)

// MemoryStore is the in-process Store used when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	drivers map[types.ID]*Driver
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drivers: make(map[types.ID]*Driver)}
}

// Put inserts or replaces a driver record.
func (s *MemoryStore) Put(d Driver) {
	if d.TotalEarnings.Currency == "" {
		d.TotalEarnings.Currency = types.DefaultCurrency
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[d.ID] = cloneDriver(&d)
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (*Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDriver(d), nil
}

func (s *MemoryStore) ListEligible(_ context.Context) ([]Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Driver, 0, len(s.drivers))
	for _, d := range s.drivers {
		if d.Eligible() {
			out = append(out, *cloneDriver(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateLocation(_ context.Context, id types.ID, p types.Point, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return ErrNotFound
	}
	d.Location = &p
	d.LocationAt = &at
	return nil
}

func (s *MemoryStore) RecordCompletion(_ context.Context, id types.ID, fare types.Money, distanceKm float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return ErrNotFound
	}
	d.TotalRides++
	d.TotalEarnings.Amount += fare.Amount
	d.TotalDistanceKm += distanceKm
	return nil
}

func cloneDriver(d *Driver) *Driver {
	c := *d
	if d.Location != nil {
		p := *d.Location
		c.Location = &p
	}
	if d.LocationAt != nil {
		t := *d.LocationAt
		c.LocationAt = &t
	}
	return &c
}
