// README: HTTP router registration.
package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"tripnow/internal/http/handlers"
	"tripnow/internal/http/middleware"
	"tripnow/internal/infra"
	"tripnow/internal/maps"
	"tripnow/internal/modules/driver"
	"tripnow/internal/modules/location"
	"tripnow/internal/modules/pricing"
	"tripnow/internal/modules/ride"
	"tripnow/internal/realtime"
)

type RouterDeps struct {
	Ride        *ride.Service
	Pricing     *pricing.Service
	Location    *location.Service
	Drivers     driver.Store
	Routes      *maps.RouteService
	Places      *maps.PlacesService
	Realtime    *realtime.Handler
	Verifier    infra.TokenVerifier
	CORSOrigins []string
	Log         logrus.FieldLogger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Recovery(deps.Log),
		middleware.Logging(deps.Log),
		middleware.Metrics(),
		cors.New(corsConfig(deps.CORSOrigins)),
	)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if deps.Realtime != nil {
		r.GET("/ws", deps.Realtime.ServeWS)
	}

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	rideHandler := handlers.NewRideHandler(deps.Ride, deps.Pricing)
	riders := api.Group("", middleware.RequireRole(middleware.RoleRider))
	riders.GET("/rides/fare", rideHandler.Fare)
	riders.GET("/rides/fares", rideHandler.Fares)
	riders.POST("/rides", rideHandler.Create)
	riders.GET("/rides/:id", rideHandler.Get)
	riders.POST("/rides/:id/cancel", rideHandler.Cancel)
	riders.GET("/riders/me/rides", rideHandler.History)

	driverHandler := handlers.NewDriverHandler(deps.Ride, deps.Drivers)
	locationHandler := handlers.NewLocationHandler(deps.Location)
	drivers := api.Group("/drivers", middleware.RequireRole(middleware.RoleDriver))
	drivers.POST("/rides/:id/accept", driverHandler.Accept)
	drivers.POST("/rides/:id/start", driverHandler.Start)
	drivers.POST("/rides/:id/complete", driverHandler.Complete)
	drivers.GET("/me/stats", driverHandler.Stats)
	drivers.GET("/me/rides", driverHandler.History)
	drivers.PUT("/me/location", locationHandler.Update)

	mapsHandler := handlers.NewMapsHandler(deps.Routes, deps.Places)
	api.GET("/maps/coordinates", mapsHandler.Coordinates)
	api.GET("/maps/distance-time", mapsHandler.DistanceTime)
	api.GET("/maps/suggestions", mapsHandler.Suggestions)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
