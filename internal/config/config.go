// Package config loads runtime settings from the environment.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// RateLimit holds the token-bucket settings for the HTTP surface.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Config holds runtime configuration values for the Pagesmith server.
type Config struct {
	DBPath           string
	ServerPort       int
	LogLevel         string
	Environment      string
	SentryDSN        string
	RevalidateURL    string
	RevalidateSecret string
	ReservedSlugs    []string
	RateLimit        RateLimit
	ShutdownGrace    time.Duration
}

const (
	defaultDBPath        = "./data/pagesmith.db"
	defaultServerPort    = 8080
	defaultLogLevel      = "info"
	defaultEnvironment   = "development"
	defaultShutdownGrace = 10 * time.Second

	defaultRateLimitRPS   = 10.0
	defaultRateLimitBurst = 20
	defaultRateLimitTTL   = 5 * time.Minute
)

// Load reads configuration values from environment variables, applying
// defaults where necessary.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:           getEnv("DB_PATH", defaultDBPath),
		LogLevel:         getEnv("LOG_LEVEL", defaultLogLevel),
		Environment:      getEnv("ENV", defaultEnvironment),
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		RevalidateURL:    os.Getenv("REVALIDATE_URL"),
		RevalidateSecret: os.Getenv("REVALIDATE_SECRET"),
		ShutdownGrace:    defaultShutdownGrace,
	}

	if slugsJSON := os.Getenv("RESERVED_SLUGS"); slugsJSON != "" {
		slugs, err := parseReservedSlugs(slugsJSON)
		if err != nil {
			return nil, eris.Wrap(err, "parsing RESERVED_SLUGS")
		}
		cfg.ReservedSlugs = slugs
	}

	port, err := intEnv("SERVER_PORT", defaultServerPort)
	if err != nil {
		return nil, err
	}
	cfg.ServerPort = port

	rps, err := floatEnv("RATE_LIMIT_RPS", defaultRateLimitRPS)
	if err != nil {
		return nil, err
	}
	burst, err := intEnv("RATE_LIMIT_BURST", defaultRateLimitBurst)
	if err != nil {
		return nil, err
	}
	ttl, err := durationEnv("RATE_LIMIT_CLIENT_TTL", defaultRateLimitTTL)
	if err != nil {
		return nil, err
	}
	cfg.RateLimit = RateLimit{RequestsPerSecond: rps, Burst: burst, ClientTTL: ttl}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, value)
	}
	return parsed, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, value)
	}
	return parsed, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid %s value: %s", key, value)
	}
	return parsed, nil
}

func parseReservedSlugs(raw string) ([]string, error) {
	// Accept either a JSON array of strings or an object with a `slugs` field.
	var arrayInput []string
	if err := json.Unmarshal([]byte(raw), &arrayInput); err == nil {
		return arrayInput, nil
	}

	var objectInput struct {
		Slugs []string `json:"slugs"`
	}
	if err := json.Unmarshal([]byte(raw), &objectInput); err != nil {
		return nil, eris.Wrap(err, "decoding JSON")
	}

	if len(objectInput.Slugs) == 0 {
		return nil, eris.New("slugs list is empty")
	}

	return objectInput.Slugs, nil
}
