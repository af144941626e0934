// README: Location store backed by Redis GEO and Postgres snapshots.
package location

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"tripnow/internal/types"
)

const driverGeoKey = "geo:drivers:active"

// Store mirrors active driver positions into Redis and appends location
// history to Postgres. Either backend may be nil.
type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, redis *redis.Client) *Store {
	return &Store{db: db, redis: redis}
}

func (s *Store) HasGeo() bool {
	return s != nil && s.redis != nil
}

func (s *Store) SetGeo(ctx context.Context, id types.ID, pos types.Point) error {
	return s.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
}

func (s *Store) RemoveGeo(ctx context.Context, id types.ID) error {
	return s.redis.ZRem(ctx, driverGeoKey, string(id)).Err()
}

// NearbyIDs returns mirrored driver ids within radiusKm, closest first.
func (s *Store) NearbyIDs(ctx context.Context, center types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, driverGeoKey, &redis.GeoSearchQuery{
		Longitude:  center.Lng,
		Latitude:   center.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

func (s *Store) AppendSnapshot(ctx context.Context, snap Snapshot) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO driver_location_snapshots (driver_id, lat, lng, recorded_at)
		VALUES ($1, $2, $3, $4)`,
		string(snap.DriverID), snap.Position.Lat, snap.Position.Lng, snap.RecordedAt,
	)
	return err
}
