// README: Location snapshot and nearby-driver result types.
package location

import (
	"errors"
	"time"

	"tripnow/internal/modules/driver"
	"tripnow/internal/types"
)

var ErrInvalidPosition = errors.New("invalid position")

type Snapshot struct {
	ID         int64
	DriverID   types.ID
	Position   types.Point
	RecordedAt time.Time
}

type DriverLocationUpdate struct {
	DriverID   types.ID
	Position   types.Point
	RecordedAt time.Time
}

// NearbyDriver is an eligible driver and its great-circle distance from the
// queried center.
type NearbyDriver struct {
	Driver     driver.Driver
	DistanceKm float64
}
