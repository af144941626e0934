// README: Optional Firebase Realtime Database mirror of live driver positions for client maps.
package location

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"

	"tripnow/internal/modules/driver"
	"tripnow/internal/types"
)

const liveDriversNode = "driver_locations"

// LiveMirror publishes the latest known position of each driver to a store
// that client apps can subscribe to directly.
type LiveMirror interface {
	Publish(ctx context.Context, id types.ID, entry LiveEntry) error
	Remove(ctx context.Context, id types.ID) error
}

// LiveEntry is the record stored under driver_locations/{driverId}.
type LiveEntry struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Status    string  `json:"status"`
	Timestamp int64   `json:"timestamp"`
}

func newLiveEntry(pos types.Point, status driver.Status, at time.Time) LiveEntry {
	st := "offline"
	if status == driver.StatusActive {
		st = "online"
	}
	return LiveEntry{Lat: pos.Lat, Lng: pos.Lng, Status: st, Timestamp: at.UnixMilli()}
}

type RTDBMirror struct {
	client *db.Client
}

func NewRTDBMirror(ctx context.Context, databaseURL, credentialsFile string) (*RTDBMirror, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: databaseURL}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase RTDB client: %w", err)
	}
	return &RTDBMirror{client: client}, nil
}

func (m *RTDBMirror) Publish(ctx context.Context, id types.ID, entry LiveEntry) error {
	return m.client.NewRef(liveDriversNode).Child(string(id)).Set(ctx, entry)
}

func (m *RTDBMirror) Remove(ctx context.Context, id types.ID) error {
	return m.client.NewRef(liveDriversNode).Child(string(id)).Delete(ctx)
}

// LiveDrivers reads the online drivers currently mirrored within radiusKm of
// center, closest first.
func (m *RTDBMirror) LiveDrivers(ctx context.Context, center types.Point, radiusKm float64) ([]types.ID, error) {
	var data map[string]LiveEntry
	if err := m.client.NewRef(liveDriversNode).OrderByChild("status").EqualTo("online").Get(ctx, &data); err != nil {
		return nil, fmt.Errorf("querying live drivers: %w", err)
	}
	return liveWithin(data, center, radiusKm), nil
}

func liveWithin(data map[string]LiveEntry, center types.Point, radiusKm float64) []types.ID {
	type hit struct {
		id   types.ID
		dist float64
	}
	var hits []hit
	for id, e := range data {
		if d := haversineKm(center.Lat, center.Lng, e.Lat, e.Lng); d <= radiusKm {
			hits = append(hits, hit{id: types.ID(id), dist: d})
		}
	}
	sortByDistance(hits, func(h hit) float64 { return h.dist })
	out := make([]types.ID, len(hits))
	for i, h := range hits {
		out[i] = h.id
	}
	return out
}
