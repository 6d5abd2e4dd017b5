package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultAllowedOrigins are the embedding origins allowed when
// CORS_ALLOWED_ORIGINS is unset: local development plus Webflow's designer
// and published-site domains.
var DefaultAllowedOrigins = []string{
	"http://localhost:4321",
	"http://localhost:3000",
	"https://webflow.com",
	"https://*.webflow.com",
	"https://*.design.webflow.com",
	"https://*.webflow.io",
	"null",
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Capability tokens.
	TokenSecret    string
	TokenTTL       time.Duration
	OperatorAPIKey string

	// Routing. APIBasePath prefixes every /api route, e.g. "/map".
	APIBasePath    string
	AllowedOrigins []string

	// Mapbox.
	MapboxTimeout        time.Duration
	MapboxTileCacheSize  int
	MapboxTileCacheBytes int // summed size of cached tile images
	GeocodeConcurrency   int

	// Cache tiers.
	RedisURL          string
	LocationsCacheTTL time.Duration
	GeocodeCacheTTL   time.Duration

	// Upstream content and configuration.
	SitesFile      string
	WebflowBaseURL string
	WebflowTimeout time.Duration

	// Geocode event stream, disabled when KafkaBrokers is empty.
	KafkaBrokers      []string
	KafkaGeocodeTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	var (
		tokenTTL, mapboxTimeout, webflowTimeout time.Duration
		locationsTTL, geocodeTTL                time.Duration
	)
	for key, opt := range map[string]struct {
		def string
		dst *time.Duration
	}{
		"TOKEN_TTL":           {"8760h", &tokenTTL},
		"MAPBOX_TIMEOUT":      {"5s", &mapboxTimeout},
		"WEBFLOW_TIMEOUT":     {"10s", &webflowTimeout},
		"LOCATIONS_CACHE_TTL": {"1h", &locationsTTL},
		"GEOCODE_CACHE_TTL":   {"720h", &geocodeTTL},
	} {
		d, err := parsePositiveDuration(key, opt.def)
		if err != nil {
			return nil, err
		}
		*opt.dst = d
	}

	tileCacheSize, err := parsePositiveInt("MAPBOX_TILE_CACHE_SIZE", 2000)
	if err != nil {
		return nil, err
	}
	tileCacheBytes, err := parsePositiveInt("MAPBOX_TILE_CACHE_BYTES", 256<<20)
	if err != nil {
		return nil, err
	}
	concurrency, err := parsePositiveInt("GEOCODE_CONCURRENCY", 8)
	if err != nil {
		return nil, err
	}

	origins := DefaultAllowedOrigins
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins = splitList(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		TokenSecret:    os.Getenv("TOKEN_SECRET"),
		TokenTTL:       tokenTTL,
		OperatorAPIKey: os.Getenv("OPERATOR_API_KEY"),

		APIBasePath:    strings.TrimRight(os.Getenv("API_BASE_PATH"), "/"),
		AllowedOrigins: origins,

		MapboxTimeout:        mapboxTimeout,
		MapboxTileCacheSize:  tileCacheSize,
		MapboxTileCacheBytes: tileCacheBytes,
		GeocodeConcurrency:   concurrency,

		RedisURL:          os.Getenv("REDIS_URL"),
		LocationsCacheTTL: locationsTTL,
		GeocodeCacheTTL:   geocodeTTL,

		SitesFile:      sharedcfg.EnvOrDefault("SITES_FILE", "sites.yaml"),
		WebflowBaseURL: sharedcfg.EnvOrDefault("WEBFLOW_BASE_URL", "https://api.webflow.com/v2"),
		WebflowTimeout: webflowTimeout,

		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaGeocodeTopic: sharedcfg.EnvOrDefault("KAFKA_GEOCODE_TOPIC", "location-geocodes"),
	}

	if cfg.TokenSecret == "" {
		return nil, errors.New("TOKEN_SECRET is required")
	}
	if cfg.OperatorAPIKey == "" {
		return nil, errors.New("OPERATOR_API_KEY is required")
	}
	if cfg.APIBasePath != "" && !strings.HasPrefix(cfg.APIBasePath, "/") {
		return nil, errors.New("API_BASE_PATH must start with /")
	}

	return cfg, nil
}

// GeocodeEventsEnabled reports whether a Kafka broker list was configured.
func (c *Config) GeocodeEventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
