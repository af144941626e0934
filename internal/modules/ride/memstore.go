package ride

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"tripnow/internal/types"
)

// MemoryStore keeps rides in process. Transition holds the write lock for
// the whole check-and-set, which gives it the same guarantees as the
// conditional UPDATE in PostgresStore.
type MemoryStore struct {
	mu     sync.RWMutex
	rides  map[types.ID]*Ride
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rides: make(map[types.ID]*Ride)}
}

func (s *MemoryStore) Create(_ context.Context, r *Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rides[r.ID]; exists {
		return errors.New("ride already exists")
	}
	s.rides[r.ID] = cloneRide(r)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id types.ID, withPasscode bool) (*Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneRide(r)
	if !withPasscode {
		c.Passcode = ""
	}
	return c, nil
}

func (s *MemoryStore) Transition(_ context.Context, id types.ID, t Transition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[id]
	if !ok {
		return false, nil
	}
	if !containsStatus(t.From, r.Status) {
		return false, nil
	}
	if t.RequireDriver != nil && !r.AssignedTo(*t.RequireDriver) {
		return false, nil
	}

	r.Status = t.To
	at := t.At
	switch t.To {
	case StatusAccepted:
		r.AcceptedAt = &at
	case StatusInProgress:
		r.StartedAt = &at
	case StatusCompleted:
		r.CompletedAt = &at
	case StatusCancelled:
		r.CancelledAt = &at
	}
	if t.DriverID != nil {
		d := *t.DriverID
		r.DriverID = &d
	}
	if t.Fare != nil {
		r.Fare.Amount = t.Fare.Amount
	}
	if t.DistanceKm != nil {
		v := *t.DistanceKm
		r.DistanceKm = &v
	}
	if t.DurationMin != nil {
		v := *t.DurationMin
		r.DurationMin = &v
	}
	if t.CancelReason != nil {
		v := *t.CancelReason
		r.CancelReason = &v
	}
	return true, nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := *e
	ev.ID = int64(len(s.events) + 1)
	s.events = append(s.events, ev)
	return nil
}

// Events returns the state events recorded for a ride, oldest first.
func (s *MemoryStore) Events(rideID types.ID) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.RideID == rideID {
			out = append(out, e)
		}
	}
	return out
}

func (s *MemoryStore) ListByRider(_ context.Context, riderID types.ID, limit int) ([]Ride, error) {
	return s.list(func(r *Ride) bool { return r.RiderID == riderID }, limit), nil
}

func (s *MemoryStore) ListByDriver(_ context.Context, driverID types.ID, limit int) ([]Ride, error) {
	return s.list(func(r *Ride) bool { return r.AssignedTo(driverID) }, limit), nil
}

func (s *MemoryStore) list(match func(*Ride) bool, limit int) []Ride {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Ride
	for _, r := range s.rides {
		if match(r) {
			c := cloneRide(r)
			c.Passcode = ""
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func containsStatus(set []Status, s Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func cloneRide(r *Ride) *Ride {
	c := *r
	if r.DriverID != nil {
		d := *r.DriverID
		c.DriverID = &d
	}
	if r.DistanceKm != nil {
		v := *r.DistanceKm
		c.DistanceKm = &v
	}
	if r.DurationMin != nil {
		v := *r.DurationMin
		c.DurationMin = &v
	}
	c.AcceptedAt = copyTime(r.AcceptedAt)
	c.StartedAt = copyTime(r.StartedAt)
	c.CompletedAt = copyTime(r.CompletedAt)
	c.CancelledAt = copyTime(r.CancelledAt)
	if r.CancelReason != nil {
		v := *r.CancelReason
		c.CancelReason = &v
	}
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
