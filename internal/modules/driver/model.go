// README: Driver entity subset used by dispatch and the ride lifecycle.
package driver

import (
	"errors"
	"time"

	"tripnow/internal/types"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBanned   Status = "banned"
)

var ErrNotFound = errors.New("driver not found")

type Vehicle struct {
	Type     string `json:"type"`
	Color    string `json:"color"`
	Plate    string `json:"plate"`
	Capacity int    `json:"capacity"`
}

type Driver struct {
	ID              types.ID
	Name            string
	Photo           string
	Status          Status
	Vehicle         Vehicle
	Location        *types.Point
	LocationAt      *time.Time
	TotalRides      int64
	TotalEarnings   types.Money
	TotalDistanceKm float64
	CreatedAt       time.Time
}

// Eligible reports whether the driver may receive ride offers.
func (d Driver) Eligible() bool {
	return d.Status == StatusActive && d.Location != nil
}

type Stats struct {
	TotalRides      int64       `json:"totalRides"`
	TotalEarnings   types.Money `json:"-"`
	TotalDistanceKm float64     `json:"totalDistance"`
}

func (d Driver) Stats() Stats {
	return Stats{TotalRides: d.TotalRides, TotalEarnings: d.TotalEarnings, TotalDistanceKm: d.TotalDistanceKm}
}
