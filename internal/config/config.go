// README: Config loader with env defaults for HTTP, storage, maps, auth and dispatch settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DispatchConfig struct {
	RadiusKm    float64
	Workers     int
	QueueSize   int
	FallbackLat float64
	FallbackLng float64
}

type MapsConfig struct {
	APIKey   string
	Timeout  time.Duration
	Region   string
	Language string
}

type AuthConfig struct {
	// Mode is "firebase" or "jwt".
	Mode      string
	JWTSecret string
}

type Config struct {
	HTTP struct {
		Addr            string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		CORSOrigins     []string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr string
	}
	Kafka struct {
		Brokers []string
		Topic   string
	}
	Firebase struct {
		ProjectID       string
		CredentialsFile string
		// DatabaseURL enables the live driver-position mirror when set.
		DatabaseURL string
	}
	Log struct {
		Level string
		File  string
	}
	Auth     AuthConfig
	Maps     MapsConfig
	Dispatch DispatchConfig
}

// Load reads .env (when present) and the process environment. Empty DB,
// Redis or Kafka settings disable the corresponding backend.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	var errs []error

	cfg.HTTP.Addr = envOrDefault("TRIPNOW_HTTP_ADDR", ":8080")
	cfg.HTTP.ReadTimeout = envOrDefaultDuration("TRIPNOW_HTTP_READ_TIMEOUT", 10*time.Second, &errs)
	cfg.HTTP.WriteTimeout = envOrDefaultDuration("TRIPNOW_HTTP_WRITE_TIMEOUT", 15*time.Second, &errs)
	cfg.HTTP.ShutdownTimeout = envOrDefaultDuration("TRIPNOW_HTTP_SHUTDOWN_TIMEOUT", 10*time.Second, &errs)
	cfg.HTTP.CORSOrigins = splitAndTrim(envOrDefault("TRIPNOW_CORS_ORIGINS", "http://localhost:5173"))

	cfg.DB.DSN = os.Getenv("TRIPNOW_DB_DSN")
	cfg.Redis.Addr = os.Getenv("TRIPNOW_REDIS_ADDR")
	cfg.Kafka.Brokers = splitAndTrim(os.Getenv("TRIPNOW_KAFKA_BROKERS"))
	cfg.Kafka.Topic = envOrDefault("TRIPNOW_KAFKA_TOPIC", "ride-events")

	cfg.Firebase.ProjectID = os.Getenv("TRIPNOW_FIREBASE_PROJECT_ID")
	cfg.Firebase.CredentialsFile = os.Getenv("TRIPNOW_FIREBASE_CREDENTIALS_FILE")
	cfg.Firebase.DatabaseURL = os.Getenv("TRIPNOW_FIREBASE_DATABASE_URL")

	cfg.Log.Level = envOrDefault("TRIPNOW_LOG_LEVEL", "info")
	cfg.Log.File = os.Getenv("TRIPNOW_LOG_FILE")

	cfg.Auth.Mode = strings.ToLower(envOrDefault("TRIPNOW_AUTH_MODE", "jwt"))
	cfg.Auth.JWTSecret = os.Getenv("TRIPNOW_JWT_SECRET")

	cfg.Maps.APIKey = os.Getenv("GOOGLE_MAPS_API_KEY")
	cfg.Maps.Timeout = envOrDefaultDuration("TRIPNOW_MAPS_TIMEOUT", 5*time.Second, &errs)
	cfg.Maps.Region = envOrDefault("TRIPNOW_MAPS_REGION", "in")
	cfg.Maps.Language = envOrDefault("TRIPNOW_MAPS_LANGUAGE", "en")

	cfg.Dispatch.RadiusKm = envOrDefaultFloat("TRIPNOW_DISPATCH_RADIUS_KM", 10, &errs)
	cfg.Dispatch.Workers = envOrDefaultInt("TRIPNOW_DISPATCH_WORKERS", 4, &errs)
	cfg.Dispatch.QueueSize = envOrDefaultInt("TRIPNOW_DISPATCH_QUEUE", 256, &errs)
	cfg.Dispatch.FallbackLat = envOrDefaultFloat("TRIPNOW_DISPATCH_FALLBACK_LAT", 28.7041, &errs)
	cfg.Dispatch.FallbackLng = envOrDefaultFloat("TRIPNOW_DISPATCH_FALLBACK_LNG", 77.1025, &errs)

	switch cfg.Auth.Mode {
	case "jwt":
		if cfg.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("TRIPNOW_JWT_SECRET is required when TRIPNOW_AUTH_MODE=jwt"))
		}
	case "firebase":
		if cfg.Firebase.ProjectID == "" {
			errs = append(errs, errors.New("TRIPNOW_FIREBASE_PROJECT_ID is required when TRIPNOW_AUTH_MODE=firebase"))
		}
	default:
		errs = append(errs, fmt.Errorf("TRIPNOW_AUTH_MODE: unknown mode %q", cfg.Auth.Mode))
	}
	if cfg.Dispatch.RadiusKm <= 0 {
		errs = append(errs, errors.New("TRIPNOW_DISPATCH_RADIUS_KM must be positive"))
	}
	if cfg.Dispatch.Workers < 1 {
		errs = append(errs, errors.New("TRIPNOW_DISPATCH_WORKERS must be at least 1"))
	}

	return cfg, errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func envOrDefaultFloat(key string, def float64, errs *[]error) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func envOrDefaultDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func splitAndTrim(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
