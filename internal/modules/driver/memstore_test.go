package driver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripnow/internal/types"
)

func TestMemoryStore_ListEligible(t *testing.T) {
	s := NewMemoryStore()
	loc := &types.Point{Lat: 28.6, Lng: 77.2}
	s.Put(Driver{ID: "d1", Status: StatusActive, Location: loc})
	s.Put(Driver{ID: "d2", Status: StatusInactive, Location: loc})
	s.Put(Driver{ID: "d3", Status: StatusActive})
	s.Put(Driver{ID: "d4", Status: StatusBanned, Location: loc})

	got, err := s.ListEligible(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, types.ID("d1"), got[0].ID)
}

func TestMemoryStore_RecordCompletionConcurrent(t *testing.T) {
	s := NewMemoryStore()
	s.Put(Driver{ID: "d1", Status: StatusActive})

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.RecordCompletion(context.Background(), "d1", types.Money{Amount: 12050}, 2.5)
		}()
	}
	wg.Wait()

	d, err := s.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, int64(n), d.TotalRides)
	assert.Equal(t, int64(n*12050), d.TotalEarnings.Amount)
	assert.InDelta(t, n*2.5, d.TotalDistanceKm, 1e-9)
}

func TestMemoryStore_UnknownDriver(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.UpdateLocation(context.Background(), "nope", types.Point{}, time.Now()), ErrNotFound)
	assert.ErrorIs(t, s.RecordCompletion(context.Background(), "nope", types.Money{}, 0), ErrNotFound)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	s.Put(Driver{ID: "d1", Status: StatusActive, Location: &types.Point{Lat: 1, Lng: 1}})

	d, err := s.Get(context.Background(), "d1")
	require.NoError(t, err)
	d.Location.Lat = 50

	again, err := s.Get(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, again.Location.Lat)
}
