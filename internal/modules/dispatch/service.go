// README: Dispatch service offers new rides to nearby drivers and notifies riders.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"tripnow/internal/maps"
	"tripnow/internal/modules/driver"
	"tripnow/internal/modules/location"
	"tripnow/internal/modules/ride"
	"tripnow/internal/modules/rider"
	"tripnow/internal/observability"
	"tripnow/internal/realtime"
	"tripnow/internal/types"
)

type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

type Router interface {
	Route(ctx context.Context, origin, destination maps.Location) (maps.RouteEstimate, error)
}

type Locator interface {
	FindInRadius(ctx context.Context, center types.Point, radiusKm float64) ([]location.NearbyDriver, error)
}

type Pusher interface {
	Send(accountID types.ID, event string, payload any) error
	IsOnline(accountID types.ID) bool
}

type Service struct {
	pool    *Pool
	geo     Geocoder
	router  Router
	locator Locator
	riders  rider.Store
	push    Pusher
	offers  *Store
	opts    Options
	log     logrus.FieldLogger
}

func NewService(pool *Pool, geo Geocoder, router Router, locator Locator, riders rider.Store, push Pusher, offers *Store, opts Options, log logrus.FieldLogger) *Service {
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = defaultJobTimeout
	}
	return &Service{
		pool:    pool,
		geo:     geo,
		router:  router,
		locator: locator,
		riders:  riders,
		push:    push,
		offers:  offers,
		opts:    opts,
		log:     log.WithField("component", "dispatch"),
	}
}

// OfferRide queues the ride for offering and returns immediately.
func (s *Service) OfferRide(r ride.Ride) {
	ok := s.pool.Submit(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, s.opts.JobTimeout)
		defer cancel()
		s.Offer(ctx, r)
	})
	if !ok {
		s.log.WithField("ride_id", r.ID).Warn("dispatch queue full, ride not offered")
	}
}

// Offer pushes a ride-request to every reachable driver near the pickup
// and returns how many were sent. The ride itself is never modified.
func (s *Service) Offer(ctx context.Context, r ride.Ride) int {
	start := time.Now()
	log := s.log.WithField("ride_id", r.ID)

	pickup := s.pickupPoint(ctx, r, log)
	distance, duration := s.routeOrDefault(ctx, r, log)

	candidates, err := s.locator.FindInRadius(ctx, pickup, s.opts.RadiusKm)
	if err != nil {
		log.WithError(err).Error("driver lookup failed")
		return 0
	}
	if len(candidates) == 0 {
		observability.DispatchNoCandidates.Inc()
		log.Info("no drivers within radius")
		return 0
	}

	user := s.riderSnippet(ctx, r.RiderID, log)
	offer := RideOffer{
		RideID:            r.ID,
		Pickup:            r.Pickup,
		Dropoff:           r.Dropoff,
		PickupCoordinates: pickup,
		Fare:              r.Fare.Major(),
		Currency:          r.Fare.Currency,
		VehicleType:       r.VehicleClass,
		PaymentMethod:     string(r.PaymentMethod),
		DistanceKm:        distance,
		DurationMin:       duration,
	}

	var offered []types.ID
	for _, c := range candidates {
		if !s.push.IsOnline(c.Driver.ID) {
			continue
		}
		o := offer
		o.DriverID = c.Driver.ID
		o.DistanceToPickupKm = c.DistanceKm
		if err := s.push.Send(c.Driver.ID, EventRideRequest, RideRequest{Type: rideRequestType, Ride: o, User: user}); err != nil {
			log.WithError(err).WithField("driver_id", c.Driver.ID).Warn("ride offer not delivered")
			continue
		}
		offered = append(offered, c.Driver.ID)
		observability.DispatchOffersSent.Inc()
	}

	if len(offered) == 0 {
		observability.DispatchNoCandidates.Inc()
		log.WithField("candidates", len(candidates)).Info("no connected drivers within radius")
	}
	if err := s.offers.RecordOffers(ctx, r.ID, offered); err != nil {
		log.WithError(err).Warn("failed to record offers")
	}
	observability.DispatchLatency.Observe(time.Since(start).Seconds())
	log.WithFields(logrus.Fields{"candidates": len(candidates), "offered": len(offered)}).Info("ride offered")
	return len(offered)
}

func (s *Service) pickupPoint(ctx context.Context, r ride.Ride, log logrus.FieldLogger) types.Point {
	p, err := s.geo.Geocode(ctx, r.Pickup)
	if err != nil {
		log.WithError(err).Warn("pickup geocoding failed, using fallback coordinate")
		return s.opts.Fallback
	}
	return p
}

func (s *Service) routeOrDefault(ctx context.Context, r ride.Ride, log logrus.FieldLogger) (float64, int) {
	est, err := s.router.Route(ctx, maps.ParseLocation(r.Pickup), maps.ParseLocation(r.Dropoff))
	if err != nil {
		log.WithError(err).Warn("route estimate failed, using defaults")
		return fallbackDistanceKm, fallbackDurationMin
	}
	return est.DistanceKm, est.DurationMin
}

func (s *Service) riderSnippet(ctx context.Context, riderID types.ID, log logrus.FieldLogger) RiderSnippet {
	out := RiderSnippet{ID: riderID, Name: defaultRiderName, Rating: defaultRiderRating, Photo: defaultPhoto}
	u, err := s.riders.Get(ctx, riderID)
	if err != nil {
		if !errors.Is(err, rider.ErrNotFound) {
			log.WithError(err).Warn("rider lookup failed")
		}
		return out
	}
	if u.Name != "" {
		out.Name = u.Name
	}
	if u.Rating > 0 {
		out.Rating = u.Rating
	}
	if u.Photo != "" {
		out.Photo = u.Photo
	}
	return out
}

// NotifyRider pushes one event to the rider if they are connected. Delivery
// failures are logged and dropped.
func (s *Service) NotifyRider(ctx context.Context, riderID types.ID, event string, payload any) {
	err := s.push.Send(riderID, event, payload)
	if err == nil {
		return
	}
	log := s.log.WithError(err).WithFields(logrus.Fields{"rider_id": riderID, "event": event})
	if errors.Is(err, realtime.ErrNotConnected) {
		log.Debug("rider not connected")
		return
	}
	log.Warn("rider notification failed")
}

func (s *Service) RideAccepted(ctx context.Context, r ride.Ride, d driver.Driver) {
	captain := DriverSnippet{ID: d.ID, Name: d.Name, Photo: d.Photo, Vehicle: d.Vehicle}
	if captain.Name == "" {
		captain.Name = defaultDriverName
	}
	if captain.Photo == "" {
		captain.Photo = defaultPhoto
	}
	s.NotifyRider(ctx, r.RiderID, EventRideAccepted, RideAcceptedPayload{
		RideID:   r.ID,
		Passcode: r.Passcode,
		Captain:  captain,
		Message:  "Driver found! Your ride has been accepted.",
	})
}

func (s *Service) RideCompleted(ctx context.Context, r ride.Ride) {
	s.NotifyRider(ctx, r.RiderID, EventRideCompleted, RideCompletedPayload{
		RideID:        r.ID,
		PaymentMethod: string(r.PaymentMethod),
		Amount:        r.Fare.Major(),
		Currency:      r.Fare.Currency,
		Message:       "Your ride has been completed",
	})
}
