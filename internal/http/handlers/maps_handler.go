// README: Maps handlers exposing geocoding, route estimates and autocomplete.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tripnow/internal/maps"
)

type MapsHandler struct {
	routes *maps.RouteService
	places *maps.PlacesService
}

func NewMapsHandler(routes *maps.RouteService, places *maps.PlacesService) *MapsHandler {
	return &MapsHandler{routes: routes, places: places}
}

func (h *MapsHandler) Coordinates(c *gin.Context) {
	address := strings.TrimSpace(c.Query("address"))
	if len(address) < 3 {
		writeError(c, http.StatusBadRequest, "address must be at least 3 characters")
		return
	}
	p, err := h.routes.Geocode(c.Request.Context(), address)
	if err != nil {
		writeMapsError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ltd": p.Lat, "lng": p.Lng})
}

func (h *MapsHandler) DistanceTime(c *gin.Context) {
	origin := strings.TrimSpace(c.Query("origin"))
	destination := strings.TrimSpace(c.Query("destination"))
	if len(origin) < 3 || len(destination) < 3 {
		writeError(c, http.StatusBadRequest, "origin and destination must be at least 3 characters")
		return
	}
	est, err := h.routes.Route(c.Request.Context(), maps.ParseLocation(origin), maps.ParseLocation(destination))
	if err != nil {
		writeMapsError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, est)
}

func (h *MapsHandler) Suggestions(c *gin.Context) {
	out, err := h.places.Suggestions(c.Request.Context(), c.Query("input"))
	if err != nil {
		writeMapsError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"suggestions": out})
}
