// README: Base handler utilities (JSON helpers, error mapping, response shapes).
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tripnow/internal/maps"
	"tripnow/internal/modules/ride"
	"tripnow/internal/types"
)

type errorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Status string `json:"status,omitempty"`
}

// isValidID ensures IDs are short alphanumeric tokens.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeRideError(c *gin.Context, err error) {
	var verr *ride.ValidationError
	var serr *ride.StateError
	switch {
	case errors.As(err, &verr):
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: verr.Error(), Field: verr.Field})
	case errors.Is(err, ride.ErrInvalidPasscode):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ride.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ride.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.As(err, &serr):
		writeJSON(c, http.StatusConflict, errorResponse{Error: serr.Error(), Status: string(serr.Current)})
	case errors.Is(err, ride.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeMapsError(c, err)
	}
}

func writeMapsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, maps.ErrInvalidLocation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, maps.ErrRouteNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, maps.ErrProviderUnavailable):
		writeError(c, http.StatusServiceUnavailable, "routing provider unavailable")
	case errors.Is(err, maps.ErrProviderError):
		writeError(c, http.StatusBadGateway, "routing provider error")
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func queryLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || n <= 0 {
		return 20
	}
	return n
}

type rideResponse struct {
	ID            types.ID   `json:"id"`
	RiderID       types.ID   `json:"riderId"`
	DriverID      *types.ID  `json:"driverId,omitempty"`
	Pickup        string     `json:"pickup"`
	Dropoff       string     `json:"destination"`
	VehicleType   string     `json:"vehicleType"`
	Fare          float64    `json:"fare"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	Passcode      string     `json:"otp,omitempty"`
	PaymentMethod string     `json:"paymentMethod"`
	DistanceKm    *float64   `json:"distance,omitempty"`
	DurationMin   *int       `json:"duration,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	AcceptedAt    *time.Time `json:"acceptedAt,omitempty"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	CancelledAt   *time.Time `json:"cancelledAt,omitempty"`
	CancelReason  *string    `json:"cancelReason,omitempty"`
}

func toRideResponse(r *ride.Ride) rideResponse {
	return rideResponse{
		ID:            r.ID,
		RiderID:       r.RiderID,
		DriverID:      r.DriverID,
		Pickup:        r.Pickup,
		Dropoff:       r.Dropoff,
		VehicleType:   r.VehicleClass,
		Fare:          r.Fare.Major(),
		Currency:      r.Fare.Currency,
		Status:        string(r.Status),
		Passcode:      r.Passcode,
		PaymentMethod: string(r.PaymentMethod),
		DistanceKm:    r.DistanceKm,
		DurationMin:   r.DurationMin,
		CreatedAt:     r.CreatedAt,
		AcceptedAt:    r.AcceptedAt,
		StartedAt:     r.StartedAt,
		CompletedAt:   r.CompletedAt,
		CancelledAt:   r.CancelledAt,
		CancelReason:  r.CancelReason,
	}
}

func toRideList(in []ride.Ride) []rideResponse {
	out := make([]rideResponse, 0, len(in))
	for i := range in {
		out = append(out, toRideResponse(&in[i]))
	}
	return out
}
