package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Ledger backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Ledger   Ledger
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Site      Site
	LogLevel  string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// Ledger selects and configures the attendance store.
type Ledger struct {
	Backend        string
	DatabaseURL    string
	DatabaseDriver string
	TxTimeout      time.Duration
}

// RedisConfig configures the go-redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the outbox relay. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers        []string
	Topic          string
	RelayInterval  time.Duration
	RelayBatchSize int
}

// AuthConfig configures admin token validation.
type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
}

// RateLimitConfig bounds mark submissions per client IP. A zero limit
// disables the limiter.
type RateLimitConfig struct {
	PerWindow int
	Window    time.Duration
}

// Site is the geofence and eligibility window for the attendance location.
type Site struct {
	Name        string  `yaml:"name"`
	Latitude    float64 `yaml:"latitude"`
	Longitude   float64 `yaml:"longitude"`
	Radius      float64 `yaml:"radius"`
	WindowStart string  `yaml:"window_start"`
	WindowEnd   string  `yaml:"window_end"`
	Timezone    string  `yaml:"timezone"`
}

type siteFile struct {
	Site Site `yaml:"site"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Location resolves the site timezone.
func (s Site) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// DefaultSite is the stock deployment: a prayer hall geofence with a
// 10:15-23:35 window.
func DefaultSite() Site {
	return Site{
		Name:        "prayer-hall",
		Latitude:    23.110917,
		Longitude:   72.526056,
		Radius:      0.0015,
		WindowStart: "10:15",
		WindowEnd:   "23:35",
		Timezone:    "Local",
	}
}

// Load reads .env (if present), then an optional YAML site file, then
// environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: Server{
			Addr:            getEnv("ATTENDANCE_ADDR", ":5000"),
			Environment:     getEnv("ATTENDANCE_ENV", "development"),
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		Ledger: Ledger{
			Backend:        getEnv("LEDGER_BACKEND", BackendMemory),
			DatabaseURL:    os.Getenv("DATABASE_URL"),
			DatabaseDriver: getEnv("DATABASE_DRIVER", "pgx"),
			TxTimeout:      5 * time.Second,
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:        splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:          getEnv("KAFKA_TOPIC", "attendance.recorded"),
			RelayInterval:  2 * time.Second,
			RelayBatchSize: 100,
		},
		Auth: AuthConfig{
			JWTSigningKey: os.Getenv("ADMIN_JWT_SIGNING_KEY"),
			Issuer:        getEnv("ADMIN_JWT_ISSUER", "attendance"),
			Audience:      getEnv("ADMIN_JWT_AUDIENCE", "attendance-admin"),
		},
		Site:     DefaultSite(),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	perMinute, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "30"))
	if err != nil || perMinute < 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE %q", os.Getenv("RATE_LIMIT_PER_MINUTE"))
	}
	cfg.RateLimit = RateLimitConfig{PerWindow: perMinute, Window: time.Minute}

	if path := os.Getenv("ATTENDANCE_SITE_FILE"); path != "" {
		site, err := loadSiteFile(path, cfg.Site)
		if err != nil {
			return nil, err
		}
		cfg.Site = site
	}

	if err := applySiteEnv(&cfg.Site); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSiteFile(path string, defaults Site) (Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Site{}, fmt.Errorf("read site file: %w", err)
	}
	parsed := siteFile{Site: defaults}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return Site{}, fmt.Errorf("parse site file: %w", err)
	}
	return parsed.Site, nil
}

func applySiteEnv(site *Site) error {
	floats := []struct {
		key string
		dst *float64
	}{
		{"SITE_LAT", &site.Latitude},
		{"SITE_LONG", &site.Longitude},
		{"SITE_RADIUS", &site.Radius},
	}
	for _, f := range floats {
		raw := os.Getenv(f.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", f.key, err)
		}
		*f.dst = v
	}
	if v := os.Getenv("WINDOW_START"); v != "" {
		site.WindowStart = v
	}
	if v := os.Getenv("WINDOW_END"); v != "" {
		site.WindowEnd = v
	}
	if v := os.Getenv("ATTENDANCE_TIMEZONE"); v != "" {
		site.Timezone = v
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Ledger.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Ledger.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres ledger")
		}
		if c.Ledger.DatabaseDriver != "pgx" && c.Ledger.DatabaseDriver != "postgres" {
			return fmt.Errorf("DATABASE_DRIVER must be pgx or postgres, got %q", c.Ledger.DatabaseDriver)
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis ledger")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", c.Ledger.Backend)
	}

	if c.Site.Radius <= 0 {
		return fmt.Errorf("site radius must be positive")
	}
	if _, err := parseClock(c.Site.WindowStart); err != nil {
		return fmt.Errorf("invalid window start: %w", err)
	}
	if _, err := parseClock(c.Site.WindowEnd); err != nil {
		return fmt.Errorf("invalid window end: %w", err)
	}
	if _, err := c.Site.Location(); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}
	if c.IsProduction() && c.Auth.JWTSigningKey == "" {
		return fmt.Errorf("ADMIN_JWT_SIGNING_KEY is required in production")
	}
	if c.Auth.JWTSigningKey == "" {
		// Development default; the read endpoints stay reachable for local testing.
		c.Auth.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return nil
}

func parseClock(v string) (time.Time, error) {
	if t, err := time.Parse("15:04:05", v); err == nil {
		return t, nil
	}
	return time.Parse("15:04", v)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
