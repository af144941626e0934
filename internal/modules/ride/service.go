// README: Ride service implements the lifecycle transitions and persistence.
package ride

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tripnow/internal/maps"
	"tripnow/internal/modules/driver"
	"tripnow/internal/modules/pricing"
	"tripnow/internal/observability"
	"tripnow/internal/types"
)

type Pricer interface {
	Quote(ctx context.Context, pickup, dropoff maps.Location, class string) (pricing.Quote, error)
	NormalizeClass(class string) string
}

// Dispatcher hands a new ride to the offer pipeline. OfferRide must return
// without waiting for the offers to go out.
type Dispatcher interface {
	OfferRide(r Ride)
}

type Notifier interface {
	RideAccepted(ctx context.Context, r Ride, d driver.Driver)
	RideCompleted(ctx context.Context, r Ride)
}

type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

type Service struct {
	store      Store
	drivers    driver.Store
	pricer     Pricer
	dispatcher Dispatcher
	notifier   Notifier
	publisher  EventPublisher
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewService(store Store, drivers driver.Store, pricer Pricer, log logrus.FieldLogger) *Service {
	return &Service{
		store:      store,
		drivers:    drivers,
		pricer:     pricer,
		dispatcher: noopDispatcher{},
		notifier:   noopNotifier{},
		publisher:  noopPublisher{},
		log:        log.WithField("component", "ride"),
		now:        time.Now,
	}
}

func (s *Service) SetDispatcher(d Dispatcher) {
	if d != nil {
		s.dispatcher = d
	}
}

func (s *Service) SetNotifier(n Notifier) {
	if n != nil {
		s.notifier = n
	}
}

func (s *Service) SetPublisher(p EventPublisher) {
	if p != nil {
		s.publisher = p
	}
}

type CreateCommand struct {
	RiderID       types.ID
	Pickup        string
	Dropoff       string
	VehicleClass  string
	PaymentMethod string
	// Fare, when set, is stored as given instead of being quoted.
	Fare *types.Money
}

type AcceptCommand struct {
	RideID   types.ID
	DriverID types.ID
}

type StartCommand struct {
	RideID   types.ID
	DriverID types.ID
	Passcode string
}

type CompleteCommand struct {
	RideID      types.ID
	DriverID    types.ID
	Fare        *types.Money
	DistanceKm  *float64
	DurationMin *int
}

type CancelCommand struct {
	RideID  types.ID
	RiderID types.ID
	Reason  string
}

// Create persists a pending ride and hands it to dispatch. The returned
// ride carries the passcode for the rider.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Ride, error) {
	pickup := strings.TrimSpace(cmd.Pickup)
	dropoff := strings.TrimSpace(cmd.Dropoff)
	switch {
	case cmd.RiderID == "":
		return nil, invalid("riderId", "required")
	case pickup == "":
		return nil, invalid("pickup", "required")
	case dropoff == "":
		return nil, invalid("destination", "required")
	}
	method, ok := ParsePaymentMethod(cmd.PaymentMethod)
	if !ok {
		return nil, invalid("paymentMethod", "must be cash or electronic")
	}
	if cmd.Fare != nil && cmd.Fare.Amount < 0 {
		return nil, invalid("fare", "must not be negative")
	}

	class := s.pricer.NormalizeClass(cmd.VehicleClass)
	fare := types.Money{Currency: types.DefaultCurrency}
	if cmd.Fare != nil {
		fare = *cmd.Fare
		if fare.Currency == "" {
			fare.Currency = types.DefaultCurrency
		}
	} else {
		q, err := s.pricer.Quote(ctx, maps.ParseLocation(pickup), maps.ParseLocation(dropoff), class)
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"rider_id": cmd.RiderID,
				"class":    class,
			}).Warn("fare quote failed, creating ride with zero fare")
		} else {
			fare = q.Fare
		}
	}

	code, err := newPasscode()
	if err != nil {
		return nil, err
	}

	r := &Ride{
		ID:            types.NewID(),
		RiderID:       cmd.RiderID,
		Pickup:        pickup,
		Dropoff:       dropoff,
		VehicleClass:  class,
		Fare:          fare,
		Status:        StatusPending,
		Passcode:      code,
		PaymentMethod: method,
		CreatedAt:     s.now(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create ride: %w", err)
	}
	riderID := cmd.RiderID
	s.record(ctx, r.ID, StatusNone, StatusPending, "rider", &riderID, r.CreatedAt)

	s.dispatcher.OfferRide(r.WithoutPasscode())
	return r, nil
}

// Accept assigns the ride to the driver. Exactly one of several concurrent
// accepts wins; the rest get a conflict.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*Ride, error) {
	if cmd.DriverID == "" {
		return nil, invalid("driverId", "required")
	}
	d, err := s.drivers.Get(ctx, cmd.DriverID)
	if errors.Is(err, driver.ErrNotFound) {
		return nil, ErrDriverNotFound
	}
	if err != nil {
		return nil, err
	}
	if d.Status == driver.StatusBanned {
		return nil, ErrForbidden
	}

	r, err := s.store.Get(ctx, cmd.RideID, true)
	if err != nil {
		return nil, err
	}
	if !CanTransition(r.Status, StatusAccepted) {
		s.rejected(StatusAccepted)
		return nil, &StateError{Op: "accept", Current: r.Status}
	}

	now := s.now()
	driverID := cmd.DriverID
	ok, err := s.store.Transition(ctx, r.ID, Transition{
		From:     []Status{StatusPending},
		To:       StatusAccepted,
		At:       now,
		DriverID: &driverID,
	})
	if err != nil {
		return nil, fmt.Errorf("accept ride: %w", err)
	}
	if !ok {
		return nil, s.conflict(ctx, r.ID, "accept", StatusAccepted)
	}

	r.Status = StatusAccepted
	r.DriverID = &driverID
	r.AcceptedAt = &now
	s.record(ctx, r.ID, StatusPending, StatusAccepted, "driver", &driverID, now)
	s.notifier.RideAccepted(ctx, *r, *d)
	return r, nil
}

// Start moves an accepted ride in progress once the rider's passcode matches.
func (s *Service) Start(ctx context.Context, cmd StartCommand) (*Ride, error) {
	r, err := s.store.Get(ctx, cmd.RideID, true)
	if err != nil {
		return nil, err
	}
	if !r.AssignedTo(cmd.DriverID) {
		return nil, ErrForbidden
	}
	if r.Status != StatusAccepted {
		s.rejected(StatusInProgress)
		return nil, &StateError{Op: "start", Current: r.Status}
	}
	if !passcodeMatches(r.Passcode, cmd.Passcode) {
		s.rejected(StatusInProgress)
		return nil, ErrInvalidPasscode
	}

	now := s.now()
	driverID := cmd.DriverID
	ok, err := s.store.Transition(ctx, r.ID, Transition{
		From:          []Status{StatusAccepted},
		To:            StatusInProgress,
		At:            now,
		RequireDriver: &driverID,
	})
	if err != nil {
		return nil, fmt.Errorf("start ride: %w", err)
	}
	if !ok {
		return nil, s.conflict(ctx, r.ID, "start", StatusInProgress)
	}

	r.Status = StatusInProgress
	r.StartedAt = &now
	s.record(ctx, r.ID, StatusAccepted, StatusInProgress, "driver", &driverID, now)
	return r, nil
}

// Complete finishes the ride and credits the driver's counters.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Ride, error) {
	if cmd.Fare != nil && cmd.Fare.Amount < 0 {
		return nil, invalid("fare", "must not be negative")
	}
	if cmd.DistanceKm != nil && *cmd.DistanceKm < 0 {
		return nil, invalid("distance", "must not be negative")
	}
	if cmd.DurationMin != nil && *cmd.DurationMin < 0 {
		return nil, invalid("duration", "must not be negative")
	}

	r, err := s.store.Get(ctx, cmd.RideID, false)
	if err != nil {
		return nil, err
	}
	if !r.AssignedTo(cmd.DriverID) {
		return nil, ErrForbidden
	}
	if !CanTransition(r.Status, StatusCompleted) {
		s.rejected(StatusCompleted)
		return nil, &StateError{Op: "complete", Current: r.Status}
	}

	now := s.now()
	driverID := cmd.DriverID
	from := r.Status
	t := Transition{
		From:          sourcesOf(StatusCompleted),
		To:            StatusCompleted,
		At:            now,
		RequireDriver: &driverID,
		DistanceKm:    cmd.DistanceKm,
		DurationMin:   cmd.DurationMin,
	}
	if cmd.Fare != nil {
		fare := types.Money{Amount: cmd.Fare.Amount, Currency: r.Fare.Currency}
		t.Fare = &fare
	}
	ok, err := s.store.Transition(ctx, r.ID, t)
	if err != nil {
		return nil, fmt.Errorf("complete ride: %w", err)
	}
	if !ok {
		return nil, s.conflict(ctx, r.ID, "complete", StatusCompleted)
	}

	r.Status = StatusCompleted
	r.CompletedAt = &now
	if t.Fare != nil {
		r.Fare = *t.Fare
	}
	if cmd.DistanceKm != nil {
		r.DistanceKm = cmd.DistanceKm
	}
	if cmd.DurationMin != nil {
		r.DurationMin = cmd.DurationMin
	}

	var distance float64
	if r.DistanceKm != nil {
		distance = *r.DistanceKm
	}
	if err := s.drivers.RecordCompletion(ctx, driverID, r.Fare, distance); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"ride_id":   r.ID,
			"driver_id": driverID,
		}).Error("failed to credit driver counters")
	}

	s.record(ctx, r.ID, from, StatusCompleted, "driver", &driverID, now)
	s.notifier.RideCompleted(ctx, *r)
	return r, nil
}

// Cancel lets the rider withdraw a ride that has not started.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Ride, error) {
	r, err := s.store.Get(ctx, cmd.RideID, false)
	if err != nil {
		return nil, err
	}
	if r.RiderID != cmd.RiderID {
		return nil, ErrForbidden
	}
	if !CanTransition(r.Status, StatusCancelled) {
		s.rejected(StatusCancelled)
		return nil, &StateError{Op: "cancel", Current: r.Status}
	}

	now := s.now()
	from := r.Status
	t := Transition{
		From: sourcesOf(StatusCancelled),
		To:   StatusCancelled,
		At:   now,
	}
	if reason := strings.TrimSpace(cmd.Reason); reason != "" {
		t.CancelReason = &reason
	}
	ok, err := s.store.Transition(ctx, r.ID, t)
	if err != nil {
		return nil, fmt.Errorf("cancel ride: %w", err)
	}
	if !ok {
		return nil, s.conflict(ctx, r.ID, "cancel", StatusCancelled)
	}

	r.Status = StatusCancelled
	r.CancelledAt = &now
	r.CancelReason = t.CancelReason
	riderID := cmd.RiderID
	s.record(ctx, r.ID, from, StatusCancelled, "rider", &riderID, now)
	return r, nil
}

// Get returns the ride without its passcode.
func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.Get(ctx, id, false)
}

// GetForRider returns the rider's own ride, passcode included.
func (s *Service) GetForRider(ctx context.Context, id, riderID types.ID) (*Ride, error) {
	r, err := s.store.Get(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if r.RiderID != riderID {
		return nil, ErrForbidden
	}
	return r, nil
}

const maxListLimit = 100

func (s *Service) ListByRider(ctx context.Context, riderID types.ID, limit int) ([]Ride, error) {
	return s.store.ListByRider(ctx, riderID, clampLimit(limit))
}

func (s *Service) ListByDriver(ctx context.Context, driverID types.ID, limit int) ([]Ride, error) {
	return s.store.ListByDriver(ctx, driverID, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// conflict re-reads the ride after a lost CAS so the caller learns the
// status that beat it.
func (s *Service) conflict(ctx context.Context, id types.ID, op string, to Status) error {
	s.rejected(to)
	current, err := s.store.Get(ctx, id, false)
	if err != nil {
		return &StateError{Op: op, Current: StatusNone}
	}
	return &StateError{Op: op, Current: current.Status}
}

func (s *Service) rejected(to Status) {
	observability.RideTransitionsTotal.WithLabelValues(string(to), "rejected").Inc()
}

func (s *Service) record(ctx context.Context, rideID types.ID, from, to Status, actorType string, actorID *types.ID, at time.Time) {
	observability.RideTransitionsTotal.WithLabelValues(string(to), "applied").Inc()
	e := Event{
		RideID:     rideID,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  at,
	}
	if err := s.store.AppendEvent(ctx, &e); err != nil {
		s.log.WithError(err).WithField("ride_id", rideID).Warn("failed to append ride event")
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.WithError(err).WithField("ride_id", rideID).Warn("failed to publish ride event")
	}
	s.log.WithFields(logrus.Fields{
		"ride_id": rideID,
		"from":    from,
		"to":      to,
	}).Info("ride transition")
}

// passcodeMatches compares the submitted code byte for byte; whitespace is
// not stripped.
func passcodeMatches(want, got string) bool {
	if len(want) != passcodeLength || len(got) != passcodeLength {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

type noopDispatcher struct{}

func (noopDispatcher) OfferRide(Ride) {}

type noopNotifier struct{}

func (noopNotifier) RideAccepted(context.Context, Ride, driver.Driver) {}
func (noopNotifier) RideCompleted(context.Context, Ride)               {}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error { return nil }
