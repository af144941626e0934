// README: Ride aggregate, status definitions and the transition table.
package ride

import (
	"strings"
	"time"

	"tripnow/internal/types"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "cash"
	PaymentElectronic PaymentMethod = "electronic"
)

// ParsePaymentMethod accepts the client spellings; empty means cash.
func ParsePaymentMethod(v string) (PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "cash":
		return PaymentCash, true
	case "electronic", "upi", "card", "online":
		return PaymentElectronic, true
	}
	return "", false
}

type Ride struct {
	ID            types.ID
	RiderID       types.ID
	DriverID      *types.ID
	Pickup        string
	Dropoff       string
	VehicleClass  string
	Fare          types.Money
	Status        Status
	Passcode      string // only populated by reads that ask for it
	PaymentMethod PaymentMethod
	DistanceKm    *float64
	DurationMin   *int
	CreatedAt     time.Time
	AcceptedAt    *time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
	CancelReason  *string
}

// AssignedTo reports whether driverID is the ride's driver.
func (r *Ride) AssignedTo(driverID types.ID) bool {
	return r.DriverID != nil && *r.DriverID == driverID
}

// WithoutPasscode returns a copy safe to hand to anyone but the rider.
func (r Ride) WithoutPasscode() Ride {
	r.Passcode = ""
	return r
}

type Event struct {
	ID         int64
	RideID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the ride state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusNone:       {StatusPending},
	StatusPending:    {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// sourcesOf lists every status that may move to `to`.
func sourcesOf(to Status) []Status {
	var out []Status
	for _, from := range []Status{StatusPending, StatusAccepted, StatusInProgress} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// Transition is a conditional update: it applies only while the ride is in
// one of From and, when RequireDriver is set, assigned to that driver.
type Transition struct {
	From          []Status
	To            Status
	At            time.Time
	DriverID      *types.ID
	RequireDriver *types.ID
	Fare          *types.Money
	DistanceKm    *float64
	DurationMin   *int
	CancelReason  *string
}
