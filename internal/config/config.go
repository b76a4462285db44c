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

type Config struct {
	DatabaseURL string
	NATSURL     string

	DirectionsURL     string
	DirectionsAPIKey  string
	DirectionsProfile string
	DirectionsTimeout time.Duration

	SpeedMps     float64
	MinStepDelay time.Duration

	RouteName string
	Stops     string
	Targets   []string
	AutoStart bool

	LogSinkSubjects bool
	MetricsAddr     string
	ControlAddr     string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.RouteName = strings.TrimSpace(os.Getenv("ROUTE_NAME"))
	cfg.Stops = strings.TrimSpace(os.Getenv("STOPS"))
	if cfg.RouteName == "" && cfg.Stops == "" {
		return nil, errors.New("ROUTE_NAME or STOPS must be set")
	}

	// Database DSN: prefer DATABASE_URL / PG_DSN, else build from PG* vars.
	// Only required when an itinerary is loaded by name.
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" && cfg.RouteName != "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		if db == "" {
			return nil, errors.New("PGDATABASE or DATABASE_URL must be set when ROUTE_NAME is used")
		}
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			dsn = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	}
	cfg.DatabaseURL = dsn

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")

	cfg.DirectionsURL = getenvDefault("DIRECTIONS_URL", "https://api.openrouteservice.org")
	cfg.DirectionsAPIKey = os.Getenv("DIRECTIONS_API_KEY")
	if cfg.DirectionsAPIKey == "" {
		return nil, errors.New("DIRECTIONS_API_KEY must be set")
	}
	cfg.DirectionsProfile = getenvDefault("DIRECTIONS_PROFILE", "driving-car")

	// Timeout on a single directions request; 0 disables it.
	if v := os.Getenv("DIRECTIONS_TIMEOUT_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("invalid DIRECTIONS_TIMEOUT_MS: %q", v)
		}
		cfg.DirectionsTimeout = time.Duration(ms) * time.Millisecond
	} else {
		cfg.DirectionsTimeout = 10 * time.Second
	}

	// Playback speed in meters per second
	if v := os.Getenv("SPEED_MPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid SPEED_MPS: %q", v)
		}
		cfg.SpeedMps = f
	} else {
		cfg.SpeedMps = 10.0
	}

	// Floor for the per-step playback delay
	if v := os.Getenv("MIN_STEP_DELAY_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid MIN_STEP_DELAY_MS: %q", v)
		}
		cfg.MinStepDelay = time.Duration(ms) * time.Millisecond
	} else {
		cfg.MinStepDelay = 50 * time.Millisecond
	}

	// Delivery targets (opaque device identifiers)
	targets := getenvDefault("TARGETS", "sim")
	for _, t := range strings.Split(targets, ",") {
		if t = strings.TrimSpace(t); t != "" {
			cfg.Targets = append(cfg.Targets, t)
		}
	}
	if len(cfg.Targets) == 0 {
		return nil, errors.New("TARGETS must name at least one delivery target")
	}

	cfg.AutoStart = boolEnv("AUTO_START", true)
	cfg.LogSinkSubjects = boolEnv("LOG_SINK_SUBJECTS", false)

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.ControlAddr = getenvDefault("CONTROL_ADDR", ":8080")

	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func boolEnv(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
