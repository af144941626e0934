// README: Push payloads for ride offers and rider notifications.
package dispatch

import (
	"time"

	"tripnow/internal/modules/driver"
	"tripnow/internal/types"
)

const (
	EventRideRequest   = "ride-request"
	EventRideAccepted  = "ride-accepted"
	EventRideCompleted = "ride-completed"

	rideRequestType = "newRide"

	defaultRiderName   = "Unknown User"
	defaultRiderRating = 4.5
	defaultDriverName  = "Driver"
	defaultPhoto       = "https://randomuser.me/api/portraits/lego/1.jpg"

	// used when the routing provider cannot answer
	fallbackDistanceKm  = 5.2
	fallbackDurationMin = 15

	defaultJobTimeout = 20 * time.Second
)

// Options tunes the offer pipeline.
type Options struct {
	RadiusKm   float64
	Fallback   types.Point
	JobTimeout time.Duration
}

type RiderSnippet struct {
	ID     types.ID `json:"id"`
	Name   string   `json:"name"`
	Rating float64  `json:"rating"`
	Photo  string   `json:"photo"`
}

type RideOffer struct {
	RideID             types.ID    `json:"rideId"`
	Pickup             string      `json:"pickup"`
	Dropoff            string      `json:"destination"`
	PickupCoordinates  types.Point `json:"pickupCoordinates"`
	Fare               float64     `json:"fare"`
	Currency           string      `json:"currency"`
	VehicleType        string      `json:"vehicleType"`
	PaymentMethod      string      `json:"paymentMethod"`
	DistanceKm         float64     `json:"distance"`
	DurationMin        int         `json:"duration"`
	DistanceToPickupKm float64     `json:"distanceToPickup"`
	DriverID           types.ID    `json:"captainId"`
}

type RideRequest struct {
	Type string       `json:"type"`
	Ride RideOffer    `json:"ride"`
	User RiderSnippet `json:"user"`
}

type DriverSnippet struct {
	ID      types.ID       `json:"id"`
	Name    string         `json:"name"`
	Photo   string         `json:"photo"`
	Vehicle driver.Vehicle `json:"vehicle"`
}

type RideAcceptedPayload struct {
	RideID   types.ID      `json:"rideId"`
	Passcode string        `json:"otp"`
	Captain  DriverSnippet `json:"captain"`
	Message  string        `json:"message"`
}

type RideCompletedPayload struct {
	RideID        types.ID `json:"rideId"`
	PaymentMethod string   `json:"paymentMethod"`
	Amount        float64  `json:"amount"`
	Currency      string   `json:"currency"`
	Message       string   `json:"message"`
}
