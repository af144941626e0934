// README: Location handler for driver position updates over HTTP.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tripnow/internal/http/middleware"
	"tripnow/internal/modules/driver"
	"tripnow/internal/modules/location"
	"tripnow/internal/types"
)

type LocationHandler struct {
	location *location.Service
}

func NewLocationHandler(svc *location.Service) *LocationHandler {
	return &LocationHandler{location: svc}
}

type updateLocationReq struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// Update records the calling driver's own position.
func (h *LocationHandler) Update(c *gin.Context) {
	var req updateLocationReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Lat == nil || req.Lng == nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	err := h.location.UpdateDriverLocation(c.Request.Context(), location.DriverLocationUpdate{
		DriverID:   types.ID(middleware.CallerUID(c)),
		Position:   types.Point{Lat: *req.Lat, Lng: *req.Lng},
		RecordedAt: time.Now(),
	})
	switch {
	case errors.Is(err, location.ErrInvalidPosition):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, driver.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case err != nil:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
