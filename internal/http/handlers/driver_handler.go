// README: Driver handlers for accept, start, complete, stats and history.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"tripnow/internal/http/middleware"
	"tripnow/internal/modules/driver"
	"tripnow/internal/modules/ride"
	"tripnow/internal/types"
)

type DriverHandler struct {
	ride    *ride.Service
	drivers driver.Store
}

func NewDriverHandler(rideSvc *ride.Service, drivers driver.Store) *DriverHandler {
	return &DriverHandler{ride: rideSvc, drivers: drivers}
}

func (h *DriverHandler) Accept(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	r, err := h.ride.Accept(c.Request.Context(), ride.AcceptCommand{
		RideID:   types.ID(id),
		DriverID: types.ID(middleware.CallerUID(c)),
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	// the passcode belongs to the rider; the driver gets it from them at pickup
	writeJSON(c, http.StatusOK, toRideResponse(ptr(r.WithoutPasscode())))
}

type startRideReq struct {
	OTP string `json:"otp"`
}

func (h *DriverHandler) Start(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	var req startRideReq
	if err := c.ShouldBindJSON(&req); err != nil || req.OTP == "" {
		writeJSON(c, http.StatusBadRequest, errorResponse{Error: "otp: required", Field: "otp"})
		return
	}
	r, err := h.ride.Start(c.Request.Context(), ride.StartCommand{
		RideID:   types.ID(id),
		DriverID: types.ID(middleware.CallerUID(c)),
		Passcode: req.OTP,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRideResponse(ptr(r.WithoutPasscode())))
}

type completeRideReq struct {
	Fare     *float64 `json:"fare"`
	Distance *float64 `json:"distance"`
	Duration *int     `json:"duration"`
}

func (h *DriverHandler) Complete(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	var req completeRideReq
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := ride.CompleteCommand{
		RideID:      types.ID(id),
		DriverID:    types.ID(middleware.CallerUID(c)),
		DistanceKm:  req.Distance,
		DurationMin: req.Duration,
	}
	if req.Fare != nil {
		if *req.Fare < 0 {
			writeJSON(c, http.StatusBadRequest, errorResponse{Error: "fare: must not be negative", Field: "fare"})
			return
		}
		m := types.MoneyFromMajor(*req.Fare, types.DefaultCurrency)
		cmd.Fare = &m
	}

	r, err := h.ride.Complete(c.Request.Context(), cmd)
	if err != nil {
		writeRideError(c, err)
		return
	}
	resp := gin.H{"ride": toRideResponse(r)}
	if d, err := h.drivers.Get(c.Request.Context(), cmd.DriverID); err == nil {
		resp["captain"] = statsResponse(d.Stats())
	}
	writeJSON(c, http.StatusOK, resp)
}

func (h *DriverHandler) Stats(c *gin.Context) {
	d, err := h.drivers.Get(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if errors.Is(err, driver.ErrNotFound) {
		writeError(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, statsResponse(d.Stats()))
}

func (h *DriverHandler) History(c *gin.Context) {
	rides, err := h.ride.ListByDriver(c.Request.Context(), types.ID(middleware.CallerUID(c)), queryLimit(c))
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": toRideList(rides)})
}

func statsResponse(s driver.Stats) gin.H {
	return gin.H{
		"totalRides":    s.TotalRides,
		"totalEarnings": s.TotalEarnings.Major(),
		"currency":      s.TotalEarnings.Currency,
		"totalDistance": s.TotalDistanceKm,
	}
}

func ptr[T any](v T) *T { return &v }
