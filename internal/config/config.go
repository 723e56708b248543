package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the verification service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Session  SessionConfig
	Token    TokenConfig
	GeoIP    GeoIPConfig
	Audit    AuditConfig
	App      AppConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	Username string
	DB       int
}

type CacheConfig struct {
	// AccessTTL bounds staleness for access-relevant lookups (resources,
	// rules, sessions, header-auth credentials).
	AccessTTL time.Duration
	// GeoTTL bounds staleness for geolocation/ASN lookups, which change
	// rarely.
	GeoTTL time.Duration
	// SweepInterval is a cron spec for evicting expired entries.
	SweepInterval string
}

type SessionConfig struct {
	// CookieName is the logical resource-session cookie name. TLS-published
	// resources use the "_s" suffixed variant.
	CookieName string
	// RequireEmailVerification gates SSO-derived access on a verified email.
	RequireEmailVerification bool
}

type TokenConfig struct {
	IDHeader     string
	SecretHeader string
	QueryParam   string
}

type GeoIPConfig struct {
	CountryDBPath string
	ASNDBPath     string
}

type AuditConfig struct {
	QueueSize   int
	FloodWindow time.Duration
	FloodMax    int
}

type AppConfig struct {
	Version string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvAsInt("SERVER_PORT", 3003),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Name:     getEnv("POSTGRES_DB", "gatecheck"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     fmt.Sprintf("%s:%d", getEnv("REDIS_HOST", "localhost"), getEnvAsInt("REDIS_PORT", 6379)),
			Password: getEnv("REDIS_PASSWORD", ""),
			Username: getEnv("REDIS_USERNAME", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			AccessTTL:     getEnvAsDuration("CACHE_ACCESS_TTL", 5*time.Second),
			GeoTTL:        getEnvAsDuration("CACHE_GEO_TTL", 300*time.Second),
			SweepInterval: getEnv("CACHE_SWEEP_INTERVAL", "@every 1m"),
		},
		Session: SessionConfig{
			CookieName:               getEnv("SESSION_COOKIE_NAME", "p_session"),
			RequireEmailVerification: getEnvAsBool("REQUIRE_EMAIL_VERIFICATION", false),
		},
		Token: TokenConfig{
			IDHeader:     getEnv("ACCESS_TOKEN_ID_HEADER", "P-Access-Token-Id"),
			SecretHeader: getEnv("ACCESS_TOKEN_HEADER", "P-Access-Token"),
			QueryParam:   getEnv("ACCESS_TOKEN_QUERY_PARAM", "p_token"),
		},
		GeoIP: GeoIPConfig{
			CountryDBPath: getEnv("GEOIP_COUNTRY_DB", ""),
			ASNDBPath:     getEnv("GEOIP_ASN_DB", ""),
		},
		Audit: AuditConfig{
			QueueSize:   getEnvAsInt("AUDIT_QUEUE_SIZE", 1024),
			FloodWindow: getEnvAsDuration("AUDIT_FLOOD_WINDOW", time.Minute),
			FloodMax:    getEnvAsInt("AUDIT_FLOOD_MAX", 6000),
		},
		App: AppConfig{
			Version: getEnv("APP_VERSION", "1.0.0"),
		},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
