// README: Entry point; loads config, wires stores and services, runs the HTTP server and dispatch workers.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tripnow/internal/config"
	"tripnow/internal/events"
	httptransport "tripnow/internal/http"
	"tripnow/internal/infra"
	"tripnow/internal/maps"
	"tripnow/internal/modules/dispatch"
	"tripnow/internal/modules/driver"
	"tripnow/internal/modules/location"
	"tripnow/internal/modules/pricing"
	"tripnow/internal/modules/ride"
	"tripnow/internal/modules/rider"
	"tripnow/internal/realtime"
	"tripnow/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := infra.NewLogger(cfg.Log.Level, cfg.Log.File)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("tripnow-api exited")
	}
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	var dbPool *pgxpool.Pool
	if cfg.DB.DSN != "" {
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		dbPool = pool
	} else {
		logger.Warn("TRIPNOW_DB_DSN not set, using in-memory stores")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		client, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer client.Close()
		redisClient = client
	}

	var (
		rideStore   ride.Store
		driverStore driver.Store
		riderStore  rider.Store
		rateStore   *pricing.Store
	)
	if dbPool != nil {
		rideStore = ride.NewPostgresStore(dbPool)
		driverStore = driver.NewPostgresStore(dbPool)
		riderStore = rider.NewPostgresStore(dbPool)
		rateStore = pricing.NewStore(dbPool)
	} else {
		rideStore = ride.NewMemoryStore()
		driverStore = driver.NewMemoryStore()
		riderStore = rider.NewMemoryStore()
	}

	mapsOpts := maps.Options{
		APIKey:   cfg.Maps.APIKey,
		Timeout:  cfg.Maps.Timeout,
		Language: cfg.Maps.Language,
		Region:   cfg.Maps.Region,
	}
	routes, err := maps.NewRouteService(mapsOpts)
	if err != nil {
		return err
	}
	places, err := maps.NewPlacesService(mapsOpts)
	if err != nil {
		return err
	}

	pricingSvc := pricing.NewService(rateStore, routes)
	if err := pricingSvc.LoadRates(ctx); err != nil {
		return err
	}

	locationSvc := location.NewService(driverStore, location.NewStore(dbPool, redisClient), logger)
	if cfg.Firebase.DatabaseURL != "" {
		mirror, err := location.NewRTDBMirror(ctx, cfg.Firebase.DatabaseURL, cfg.Firebase.CredentialsFile)
		if err != nil {
			return err
		}
		locationSvc.SetLiveMirror(mirror)
	}

	registry := realtime.NewRegistry()

	pool := dispatch.NewPool(cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, logger)
	dispatchSvc := dispatch.NewService(
		pool,
		routes,
		routes,
		locationSvc,
		riderStore,
		registry,
		dispatch.NewStore(redisClient),
		dispatch.Options{
			RadiusKm: cfg.Dispatch.RadiusKm,
			Fallback: types.Point{Lat: cfg.Dispatch.FallbackLat, Lng: cfg.Dispatch.FallbackLng},
		},
		logger,
	)

	rideSvc := ride.NewService(rideStore, driverStore, pricingSvc, logger)
	rideSvc.SetDispatcher(dispatchSvc)
	rideSvc.SetNotifier(dispatchSvc)
	if len(cfg.Kafka.Brokers) > 0 {
		writer := infra.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer writer.Close()
		rideSvc.SetPublisher(events.NewRidePublisher(writer))
	}

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Ride:        rideSvc,
		Pricing:     pricingSvc,
		Location:    locationSvc,
		Drivers:     driverStore,
		Routes:      routes,
		Places:      places,
		Realtime:    realtime.NewHandler(registry, riderStore, driverStore, locationSvc, cfg.HTTP.CORSOrigins, logger),
		Verifier:    verifier,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Log:         logger,
	})
	server := httptransport.NewServer(httptransport.ServerConfig{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}, router, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })
	return g.Wait()
}

func newVerifier(ctx context.Context, cfg config.Config) (infra.TokenVerifier, error) {
	if cfg.Auth.Mode == "firebase" {
		v, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	return infra.NewJWTVerifier(cfg.Auth.JWTSecret), nil
}
