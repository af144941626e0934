// README: Rider-facing ride handlers: fare preview, create, view, cancel, history.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tripnow/internal/http/middleware"
	"tripnow/internal/maps"
	"tripnow/internal/modules/pricing"
	"tripnow/internal/modules/ride"
	"tripnow/internal/types"
)

type RideHandler struct {
	ride    *ride.Service
	pricing *pricing.Service
}

func NewRideHandler(rideSvc *ride.Service, pricingSvc *pricing.Service) *RideHandler {
	return &RideHandler{ride: rideSvc, pricing: pricingSvc}
}

type quoteResponse struct {
	VehicleType  string  `json:"vehicleType"`
	Fare         float64 `json:"fare"`
	Currency     string  `json:"currency"`
	Distance     float64 `json:"distance"`
	Duration     int     `json:"duration"`
	DistanceText string  `json:"distanceText"`
	DurationText string  `json:"durationText"`
}

func toQuoteResponse(q pricing.Quote) quoteResponse {
	return quoteResponse{
		VehicleType:  q.VehicleClass,
		Fare:         q.Fare.Major(),
		Currency:     q.Fare.Currency,
		Distance:     q.DistanceKm,
		Duration:     q.DurationMin,
		DistanceText: q.DistanceLabel,
		DurationText: q.DurationLabel,
	}
}

func routeQuery(c *gin.Context) (maps.Location, maps.Location, bool) {
	pickup := strings.TrimSpace(c.Query("pickup"))
	dropoff := strings.TrimSpace(c.Query("destination"))
	if dropoff == "" {
		dropoff = strings.TrimSpace(c.Query("dropoff"))
	}
	if pickup == "" || dropoff == "" {
		writeError(c, http.StatusBadRequest, "pickup and destination are required")
		return maps.Location{}, maps.Location{}, false
	}
	return maps.ParseLocation(pickup), maps.ParseLocation(dropoff), true
}

// Fare previews the fare for one vehicle class.
func (h *RideHandler) Fare(c *gin.Context) {
	pickup, dropoff, ok := routeQuery(c)
	if !ok {
		return
	}
	q, err := h.pricing.Quote(c.Request.Context(), pickup, dropoff, c.Query("vehicleType"))
	if err != nil {
		writeMapsError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toQuoteResponse(q))
}

// Fares previews the fare for every vehicle class over one route.
func (h *RideHandler) Fares(c *gin.Context) {
	pickup, dropoff, ok := routeQuery(c)
	if !ok {
		return
	}
	quotes, err := h.pricing.QuoteAll(c.Request.Context(), pickup, dropoff)
	if err != nil {
		writeMapsError(c, err)
		return
	}
	fares := make(map[string]float64, len(quotes))
	out := make([]quoteResponse, 0, len(quotes))
	for _, q := range quotes {
		fares[q.VehicleClass] = q.Fare.Major()
		out = append(out, toQuoteResponse(q))
	}
	resp := gin.H{"fares": fares, "quotes": out}
	if len(quotes) > 0 {
		resp["distance"] = quotes[0].DistanceKm
		resp["duration"] = quotes[0].DurationMin
	}
	writeJSON(c, http.StatusOK, resp)
}

type createRideReq struct {
	Pickup        string   `json:"pickup"`
	Destination   string   `json:"destination"`
	Dropoff       string   `json:"dropoff"`
	VehicleType   string   `json:"vehicleType"`
	PaymentMethod string   `json:"paymentMethod"`
	Fare          *float64 `json:"fare"`
}

func (h *RideHandler) Create(c *gin.Context) {
	var req createRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	dropoff := req.Destination
	if dropoff == "" {
		dropoff = req.Dropoff
	}
	cmd := ride.CreateCommand{
		RiderID:       types.ID(middleware.CallerUID(c)),
		Pickup:        req.Pickup,
		Dropoff:       dropoff,
		VehicleClass:  req.VehicleType,
		PaymentMethod: req.PaymentMethod,
	}
	if req.Fare != nil {
		if *req.Fare < 0 {
			writeJSON(c, http.StatusBadRequest, errorResponse{Error: "fare: must not be negative", Field: "fare"})
			return
		}
		m := types.MoneyFromMajor(*req.Fare, types.DefaultCurrency)
		cmd.Fare = &m
	}

	r, err := h.ride.Create(c.Request.Context(), cmd)
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toRideResponse(r))
}

// Get returns the caller's own ride, passcode included.
func (h *RideHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	r, err := h.ride.GetForRider(c.Request.Context(), types.ID(id), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRideResponse(r))
}

type cancelRideReq struct {
	Reason string `json:"reason"`
}

func (h *RideHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	var req cancelRideReq
	// the body is optional
	_ = c.ShouldBindJSON(&req)

	r, err := h.ride.Cancel(c.Request.Context(), ride.CancelCommand{
		RideID:  types.ID(id),
		RiderID: types.ID(middleware.CallerUID(c)),
		Reason:  req.Reason,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toRideResponse(r))
}

func (h *RideHandler) History(c *gin.Context) {
	rides, err := h.ride.ListByRider(c.Request.Context(), types.ID(middleware.CallerUID(c)), queryLimit(c))
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": toRideList(rides)})
}
