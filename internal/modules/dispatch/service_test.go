package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripnow/internal/maps"
	"tripnow/internal/modules/driver"
	"tripnow/internal/modules/location"
	"tripnow/internal/modules/ride"
	"tripnow/internal/modules/rider"
	"tripnow/internal/realtime"
	"tripnow/internal/types"
)

var pickup = types.Point{Lat: 28.6139, Lng: 77.2090}

type stubGeo struct {
	p   types.Point
	err error
}

func (g stubGeo) Geocode(context.Context, string) (types.Point, error) { return g.p, g.err }

type stubRouter struct {
	est maps.RouteEstimate
	err error
}

func (r stubRouter) Route(context.Context, maps.Location, maps.Location) (maps.RouteEstimate, error) {
	return r.est, r.err
}

type captureConn struct {
	mu   sync.Mutex
	msgs []realtime.Message
}

func (c *captureConn) Send(msg realtime.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *captureConn) received() []realtime.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]realtime.Message(nil), c.msgs...)
}

type fixture struct {
	svc      *Service
	pool     *Pool
	registry *realtime.Registry
	drivers  *driver.MemoryStore
	riders   *rider.MemoryStore
}

func newFixture(t *testing.T, geo Geocoder, router Router) fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	drivers := driver.NewMemoryStore()
	riders := rider.NewMemoryStore()
	registry := realtime.NewRegistry()
	pool := NewPool(2, 8, log)
	svc := NewService(pool, geo, router, location.NewService(drivers, nil, log), riders, registry, nil,
		Options{RadiusKm: 10, Fallback: types.Point{Lat: 28.7041, Lng: 77.1025}}, log)
	return fixture{svc: svc, pool: pool, registry: registry, drivers: drivers, riders: riders}
}

func (f fixture) onlineDriver(id types.ID, p types.Point) *captureConn {
	f.drivers.Put(driver.Driver{ID: id, Name: "Ravi", Status: driver.StatusActive, Location: &p})
	conn := &captureConn{}
	f.registry.Connect(id, realtime.RoleDriver, conn)
	return conn
}

func pendingRide() ride.Ride {
	return ride.Ride{
		ID:            "r1",
		RiderID:       "u1",
		Pickup:        "Connaught Place",
		Dropoff:       "India Gate",
		VehicleClass:  "car",
		Fare:          types.Money{Amount: 18250, Currency: "INR"},
		Status:        ride.StatusPending,
		PaymentMethod: ride.PaymentCash,
	}
}

func decode[T any](t *testing.T, v any) T {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestOffer_SendsToConnectedDriversInRadius(t *testing.T) {
	f := newFixture(t, stubGeo{p: pickup}, stubRouter{est: maps.RouteEstimate{DistanceKm: 4.1, DurationMin: 12}})
	f.riders.Put(rider.Rider{ID: "u1", Name: "Asha", Rating: 4.9})

	near := f.onlineDriver("near", types.Point{Lat: pickup.Lat + 0.01, Lng: pickup.Lng})
	far := f.onlineDriver("far", types.Point{Lat: pickup.Lat + 1, Lng: pickup.Lng})
	// in radius but not connected
	offline := types.Point{Lat: pickup.Lat + 0.02, Lng: pickup.Lng}
	f.drivers.Put(driver.Driver{ID: "offline", Status: driver.StatusActive, Location: &offline})

	sent := f.svc.Offer(context.Background(), pendingRide())
	assert.Equal(t, 1, sent)
	assert.Empty(t, far.received())

	msgs := near.received()
	require.Len(t, msgs, 1)
	assert.Equal(t, EventRideRequest, msgs[0].Event)

	req := decode[RideRequest](t, msgs[0].Data)
	assert.Equal(t, "newRide", req.Type)
	assert.Equal(t, types.ID("r1"), req.Ride.RideID)
	assert.Equal(t, types.ID("near"), req.Ride.DriverID)
	assert.Equal(t, 182.5, req.Ride.Fare)
	assert.Equal(t, 4.1, req.Ride.DistanceKm)
	assert.Equal(t, 12, req.Ride.DurationMin)
	assert.Equal(t, "Asha", req.User.Name)
	assert.Equal(t, 4.9, req.User.Rating)
	assert.Equal(t, defaultPhoto, req.User.Photo)
}

func TestOffer_Fallbacks(t *testing.T) {
	f := newFixture(t, stubGeo{err: maps.ErrProviderUnavailable}, stubRouter{err: maps.ErrRouteNotFound})
	fallback := types.Point{Lat: 28.7041, Lng: 77.1025}
	conn := f.onlineDriver("d1", types.Point{Lat: fallback.Lat + 0.01, Lng: fallback.Lng})

	require.Equal(t, 1, f.svc.Offer(context.Background(), pendingRide()))
	req := decode[RideRequest](t, conn.received()[0].Data)
	assert.Equal(t, fallback, req.Ride.PickupCoordinates)
	assert.Equal(t, fallbackDistanceKm, req.Ride.DistanceKm)
	assert.Equal(t, fallbackDurationMin, req.Ride.DurationMin)
	assert.Equal(t, defaultRiderName, req.User.Name)
	assert.Equal(t, defaultRiderRating, req.User.Rating)
}

func TestOffer_NoDriversLeavesRideUntouched(t *testing.T) {
	f := newFixture(t, stubGeo{p: pickup}, stubRouter{})
	r := pendingRide()
	assert.NotPanics(t, func() {
		assert.Equal(t, 0, f.svc.Offer(context.Background(), r))
	})
	assert.Equal(t, ride.StatusPending, r.Status)
}

func TestOfferRide_RunsOnPool(t *testing.T) {
	f := newFixture(t, stubGeo{p: pickup}, stubRouter{})
	conn := f.onlineDriver("d1", pickup)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = f.pool.Run(ctx)
		close(done)
	}()

	f.svc.OfferRide(pendingRide())
	assert.Eventually(t, func() bool { return len(conn.received()) == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}
}

func TestPool_SubmitNeverBlocks(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	p := NewPool(1, 2, log)

	assert.True(t, p.Submit(func(context.Context) {}))
	assert.True(t, p.Submit(func(context.Context) {}))
	// workers are not running, so the queue is full
	assert.False(t, p.Submit(func(context.Context) {}))
}

func TestPool_RecoversFromPanic(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	p := NewPool(1, 4, log)

	ran := make(chan struct{})
	p.Submit(func(context.Context) { panic("boom") })
	p.Submit(func(context.Context) { close(ran) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after panic")
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	p := NewPool(2, 8, log)

	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	release := make(chan struct{})
	var finished sync.WaitGroup
	for i := 0; i < 6; i++ {
		finished.Add(1)
		require.True(t, p.Submit(func(context.Context) {
			defer finished.Done()
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()
			<-release
			mu.Lock()
			inFlight--
			mu.Unlock()
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return inFlight == 2
	}, 2*time.Second, 10*time.Millisecond)
	close(release)
	finished.Wait()

	mu.Lock()
	assert.Equal(t, 2, peak)
	mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}
}

func TestNotifyRider(t *testing.T) {
	f := newFixture(t, stubGeo{}, stubRouter{})
	r := pendingRide()
	r.Passcode = "4821"

	// not connected: silently dropped
	assert.NotPanics(t, func() { f.svc.RideCompleted(context.Background(), r) })

	conn := &captureConn{}
	f.registry.Connect("u1", realtime.RoleRider, conn)

	f.svc.RideAccepted(context.Background(), r, driver.Driver{ID: "d1", Vehicle: driver.Vehicle{Type: "car", Plate: "DL01AB1234"}})
	f.svc.RideCompleted(context.Background(), r)

	msgs := conn.received()
	require.Len(t, msgs, 2)
	assert.Equal(t, EventRideAccepted, msgs[0].Event)
	accepted := decode[RideAcceptedPayload](t, msgs[0].Data)
	assert.Equal(t, "4821", accepted.Passcode)
	assert.Equal(t, defaultDriverName, accepted.Captain.Name)
	assert.Equal(t, "DL01AB1234", accepted.Captain.Vehicle.Plate)

	assert.Equal(t, EventRideCompleted, msgs[1].Event)
	completed := decode[RideCompletedPayload](t, msgs[1].Data)
	assert.Equal(t, "cash", completed.PaymentMethod)
	assert.Equal(t, 182.5, completed.Amount)
}
