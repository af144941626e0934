// README: Offer log backed by Redis strings and sets.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tripnow/internal/types"
)

const (
	dispatchedAtKeyFmt = "dispatch:ride:%s:dispatched_at"
	offeredKeyFmt      = "dispatch:ride:%s:offered"
	// rides resolve well within a day; the log is only kept for support lookups
	keyTTL = 24 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) enabled() bool {
	return s != nil && s.redis != nil
}

// RecordOffers stores when a ride was dispatched and which drivers saw it.
func (s *Store) RecordOffers(ctx context.Context, rideID types.ID, driverIDs []types.ID) error {
	if !s.enabled() {
		return nil
	}
	pipe := s.redis.Pipeline()
	pipe.SetNX(ctx, fmt.Sprintf(dispatchedAtKeyFmt, rideID), time.Now().UTC().Format(time.RFC3339), keyTTL)
	if len(driverIDs) > 0 {
		members := make([]interface{}, len(driverIDs))
		for i, d := range driverIDs {
			members[i] = string(d)
		}
		key := fmt.Sprintf(offeredKeyFmt, rideID)
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, keyTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// OfferedTo lists the drivers a ride was offered to.
func (s *Store) OfferedTo(ctx context.Context, rideID types.ID) ([]types.ID, error) {
	if !s.enabled() {
		return nil, nil
	}
	members, err := s.redis.SMembers(ctx, fmt.Sprintf(offeredKeyFmt, rideID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]types.ID, len(members))
	for i, m := range members {
		out[i] = types.ID(m)
	}
	return out, nil
}

// DispatchedAt returns when the ride was first dispatched, and whether it has been.
func (s *Store) DispatchedAt(ctx context.Context, rideID types.ID) (time.Time, bool, error) {
	if !s.enabled() {
		return time.Time{}, false, nil
	}
	val, err := s.redis.Get(ctx, fmt.Sprintf(dispatchedAtKeyFmt, rideID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}
