// README: Location service answers radius queries over eligible drivers and ingests driver positions.
package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tripnow/internal/modules/driver"
	"tripnow/internal/types"
)

type Service struct {
	drivers driver.Store
	store   *Store
	live    LiveMirror
	log     logrus.FieldLogger
}

func NewService(drivers driver.Store, store *Store, log logrus.FieldLogger) *Service {
	return &Service{drivers: drivers, store: store, log: log.WithField("component", "location")}
}

// SetLiveMirror enables publishing of every accepted position update.
func (s *Service) SetLiveMirror(m LiveMirror) {
	s.live = m
}

// FindInRadius returns active drivers with a known location within radiusKm
// of center, closest first. No match yields an empty slice and nil error.
func (s *Service) FindInRadius(ctx context.Context, center types.Point, radiusKm float64) ([]NearbyDriver, error) {
	if !center.Valid() {
		return nil, ErrInvalidPosition
	}
	if radiusKm <= 0 {
		return []NearbyDriver{}, nil
	}

	if s.store.HasGeo() {
		out, err := s.findViaGeo(ctx, center, radiusKm)
		if err == nil {
			return out, nil
		}
		s.log.WithError(err).Warn("redis geo search failed, scanning driver store")
	}

	drivers, err := s.drivers.ListEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("list eligible drivers: %w", err)
	}
	return withinRadius(drivers, center, radiusKm), nil
}

// findViaGeo narrows candidates with GEOSEARCH, then re-checks each one
// against the driver record so the result matches the linear scan.
func (s *Service) findViaGeo(ctx context.Context, center types.Point, radiusKm float64) ([]NearbyDriver, error) {
	ids, err := s.store.NearbyIDs(ctx, center, radiusKm)
	if err != nil {
		return nil, err
	}
	candidates := make([]driver.Driver, 0, len(ids))
	for _, id := range ids {
		d, err := s.drivers.Get(ctx, id)
		if errors.Is(err, driver.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, *d)
	}
	return withinRadius(candidates, center, radiusKm), nil
}

func withinRadius(drivers []driver.Driver, center types.Point, radiusKm float64) []NearbyDriver {
	out := make([]NearbyDriver, 0, len(drivers))
	for _, d := range drivers {
		if !d.Eligible() {
			continue
		}
		dist := DistanceKm(center, *d.Location)
		if dist <= radiusKm {
			out = append(out, NearbyDriver{Driver: d, DistanceKm: dist})
		}
	}
	sortByDistance(out, func(n NearbyDriver) float64 { return n.DistanceKm })
	return out
}

// UpdateDriverLocation records the driver's latest position.
func (s *Service) UpdateDriverLocation(ctx context.Context, u DriverLocationUpdate) error {
	if u.DriverID == "" || !u.Position.Valid() {
		return ErrInvalidPosition
	}
	if u.RecordedAt.IsZero() {
		u.RecordedAt = time.Now()
	}
	if err := s.drivers.UpdateLocation(ctx, u.DriverID, u.Position, u.RecordedAt); err != nil {
		return err
	}

	if s.store.HasGeo() || s.live != nil {
		if err := s.mirror(ctx, u); err != nil {
			s.log.WithError(err).WithField("driver_id", u.DriverID).Warn("location mirror update failed")
		}
	}
	if err := s.store.AppendSnapshot(ctx, Snapshot{
		DriverID:   u.DriverID,
		Position:   u.Position,
		RecordedAt: u.RecordedAt,
	}); err != nil {
		s.log.WithError(err).WithField("driver_id", u.DriverID).Warn("location snapshot failed")
	}
	return nil
}

func (s *Service) mirror(ctx context.Context, u DriverLocationUpdate) error {
	d, err := s.drivers.Get(ctx, u.DriverID)
	if err != nil {
		return err
	}
	if s.live != nil {
		if err := s.live.Publish(ctx, u.DriverID, newLiveEntry(u.Position, d.Status, u.RecordedAt)); err != nil {
			return fmt.Errorf("live mirror: %w", err)
		}
	}
	if !s.store.HasGeo() {
		return nil
	}
	if d.Status != driver.StatusActive {
		return s.store.RemoveGeo(ctx, u.DriverID)
	}
	return s.store.SetGeo(ctx, u.DriverID, u.Position)
}
