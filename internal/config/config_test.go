package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_PATH", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("ENV", "")
	t.Setenv("SENTRY_DSN", "")
	t.Setenv("REVALIDATE_URL", "")
	t.Setenv("REVALIDATE_SECRET", "")
	t.Setenv("RESERVED_SLUGS", "")
	t.Setenv("RATE_LIMIT_RPS", "")
	t.Setenv("RATE_LIMIT_BURST", "")
	t.Setenv("RATE_LIMIT_CLIENT_TTL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.DBPath != defaultDBPath {
		t.Errorf("expected default DB path %q, got %q", defaultDBPath, cfg.DBPath)
	}

	if cfg.ServerPort != defaultServerPort {
		t.Errorf("expected default server port %d, got %d", defaultServerPort, cfg.ServerPort)
	}

	if cfg.LogLevel != defaultLogLevel {
		t.Errorf("expected default log level %q, got %q", defaultLogLevel, cfg.LogLevel)
	}

	if cfg.Environment != defaultEnvironment {
		t.Errorf("expected default environment %q, got %q", defaultEnvironment, cfg.Environment)
	}

	if cfg.ShutdownGrace != defaultShutdownGrace {
		t.Errorf("expected shutdown grace %s, got %s", defaultShutdownGrace, cfg.ShutdownGrace)
	}

	if cfg.SentryDSN != "" {
		t.Errorf("expected empty Sentry DSN, got %q", cfg.SentryDSN)
	}

	if cfg.RevalidateURL != "" {
		t.Errorf("expected empty revalidate URL, got %q", cfg.RevalidateURL)
	}

	if cfg.ReservedSlugs != nil {
		t.Errorf("expected nil reserved slugs, got %v", cfg.ReservedSlugs)
	}

	if cfg.RateLimit.RequestsPerSecond != defaultRateLimitRPS {
		t.Errorf("expected default rps %v, got %v", defaultRateLimitRPS, cfg.RateLimit.RequestsPerSecond)
	}

	if cfg.RateLimit.Burst != defaultRateLimitBurst {
		t.Errorf("expected default burst %d, got %d", defaultRateLimitBurst, cfg.RateLimit.Burst)
	}

	if cfg.RateLimit.ClientTTL != defaultRateLimitTTL {
		t.Errorf("expected default client TTL %s, got %s", defaultRateLimitTTL, cfg.RateLimit.ClientTTL)
	}
}

func TestLoadWithExplicitValues(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/pagesmith.db")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ENV", "production")
	t.Setenv("SENTRY_DSN", "dsn")
	t.Setenv("REVALIDATE_URL", "https://storefront.example/api/revalidate")
	t.Setenv("REVALIDATE_SECRET", "shared")
	t.Setenv("RESERVED_SLUGS", `["cart","checkout"]`)
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("RATE_LIMIT_CLIENT_TTL", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.DBPath != "/tmp/pagesmith.db" {
		t.Errorf("expected DB path %q, got %q", "/tmp/pagesmith.db", cfg.DBPath)
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("expected server port 9090, got %d", cfg.ServerPort)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %q", cfg.LogLevel)
	}

	if cfg.Environment != "production" {
		t.Errorf("expected environment production, got %q", cfg.Environment)
	}

	if cfg.SentryDSN != "dsn" {
		t.Errorf("expected Sentry DSN dsn, got %q", cfg.SentryDSN)
	}

	if cfg.RevalidateURL != "https://storefront.example/api/revalidate" {
		t.Errorf("unexpected revalidate URL %q", cfg.RevalidateURL)
	}

	if cfg.RevalidateSecret != "shared" {
		t.Errorf("expected revalidate secret shared, got %q", cfg.RevalidateSecret)
	}

	expectedSlugs := []string{"cart", "checkout"}
	if len(cfg.ReservedSlugs) != len(expectedSlugs) {
		t.Fatalf("expected %d reserved slugs, got %d", len(expectedSlugs), len(cfg.ReservedSlugs))
	}
	for i, slug := range cfg.ReservedSlugs {
		if slug != expectedSlugs[i] {
			t.Errorf("expected reserved slug %q at index %d, got %q", expectedSlugs[i], i, slug)
		}
	}

	if cfg.RateLimit.RequestsPerSecond != 2.5 {
		t.Errorf("expected rps 2.5, got %v", cfg.RateLimit.RequestsPerSecond)
	}

	if cfg.RateLimit.Burst != 7 {
		t.Errorf("expected burst 7, got %d", cfg.RateLimit.Burst)
	}

	if cfg.RateLimit.ClientTTL != 90*time.Second {
		t.Errorf("expected client TTL 90s, got %s", cfg.RateLimit.ClientTTL)
	}
}

func TestLoadWithReservedSlugObject(t *testing.T) {
	t.Setenv("RESERVED_SLUGS", `{"slugs":["cart","account"]}`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	expected := []string{"cart", "account"}
	if len(cfg.ReservedSlugs) != len(expected) {
		t.Fatalf("expected %d reserved slugs, got %d", len(expected), len(cfg.ReservedSlugs))
	}
	for i, slug := range cfg.ReservedSlugs {
		if slug != expected[i] {
			t.Errorf("expected reserved slug %q at index %d, got %q", expected[i], i, slug)
		}
	}
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "invalid")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for invalid port, got nil")
	}

	if !strings.Contains(err.Error(), "invalid SERVER_PORT value") {
		t.Fatalf("expected error to mention invalid SERVER_PORT value, got %v", err)
	}
}

func TestLoadInvalidRateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "fast")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error for invalid rate limit, got nil")
	}

	if !strings.Contains(err.Error(), "invalid RATE_LIMIT_RPS value") {
		t.Fatalf("expected error to mention invalid RATE_LIMIT_RPS value, got %v", err)
	}
}

func TestLoadInvalidReservedSlugs(t *testing.T) {
	t.Setenv("RESERVED_SLUGS", `{"slugs":null}`)

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error when reserved slugs JSON is invalid, got nil")
	}

	if !strings.Contains(err.Error(), "parsing RESERVED_SLUGS") {
		t.Fatalf("expected error to mention parsing RESERVED_SLUGS, got %v", err)
	}
}
