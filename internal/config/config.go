// internal/config/config.go

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	NATS        NATSConfig
	Geo         GeoConfig
	Tiles       TilesConfig
	Telemetry   TelemetryConfig
	Classifier  ClassifierConfig
	Prefetch    PrefetchConfig
	Session     SessionConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds the optional PostGIS boundary store
// configuration. An empty host disables the store and boundary layers
// are fetched over HTTP instead.
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// NATSConfig holds NATS configuration. An empty URL disables the event
// bus; telemetry then flows only through polling and websocket feeds.
type NATSConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// GeoConfig holds boundary layer source configuration
type GeoConfig struct {
	BaseURL    string
	CampaignID string
	Timeout    time.Duration
}

// TilesConfig holds tile server configuration. An empty base URL
// disables tile probing; navigations then commit as soon as geometry is
// loaded.
type TilesConfig struct {
	BaseURL string
	Version string
	Timeout time.Duration
}

// TelemetryConfig holds telemetry feed configuration
type TelemetryConfig struct {
	BaseURL         string
	PollInterval    time.Duration
	IncludePrevious bool
	WebsocketURL    string
	ReconnectWait   time.Duration
	PublishSubject  string
}

// ClassifierConfig holds presence and motion thresholds
type ClassifierConfig struct {
	PresenceThreshold time.Duration
	MovementMeters    float64
}

// PrefetchConfig holds layer navigation tuning
type PrefetchConfig struct {
	Timeout   time.Duration
	IdleDelay time.Duration
}

// SessionConfig holds dashboard session lifecycle configuration
type SessionConfig struct {
	TTL             time.Duration
	JanitorInterval time.Duration
}

// Load loads configuration from environment variables
func Load() (Config, error) {
	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", ""),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "mapnav"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", ""),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Geo: GeoConfig{
			BaseURL:    getEnv("GEO_BASE_URL", "http://localhost:9000"),
			CampaignID: getEnv("GEO_CAMPAIGN_ID", ""),
			Timeout:    getEnvAsDuration("GEO_TIMEOUT", 30*time.Second),
		},
		Tiles: TilesConfig{
			BaseURL: getEnv("TILES_BASE_URL", ""),
			Version: getEnv("TILES_VERSION", ""),
			Timeout: getEnvAsDuration("TILES_TIMEOUT", 5*time.Second),
		},
		Telemetry: TelemetryConfig{
			BaseURL:         getEnv("TELEMETRY_BASE_URL", "http://localhost:9000"),
			PollInterval:    getEnvAsDuration("TELEMETRY_POLL_INTERVAL", 30*time.Second),
			IncludePrevious: getEnvAsBool("TELEMETRY_INCLUDE_PREVIOUS", true),
			WebsocketURL:    getEnv("TELEMETRY_WS_URL", ""),
			ReconnectWait:   getEnvAsDuration("TELEMETRY_WS_RECONNECT_WAIT", 5*time.Second),
			PublishSubject:  getEnv("TELEMETRY_PUBLISH_SUBJECT", "telemetry.records"),
		},
		Classifier: ClassifierConfig{
			PresenceThreshold: getEnvAsDuration("CLASSIFIER_PRESENCE_THRESHOLD", 15*time.Second),
			MovementMeters:    getEnvAsFloat("CLASSIFIER_MOVEMENT_METERS", 10.0),
		},
		Prefetch: PrefetchConfig{
			Timeout:   getEnvAsDuration("PREFETCH_TIMEOUT", 4*time.Second),
			IdleDelay: getEnvAsDuration("PREFETCH_IDLE_DELAY", 1500*time.Millisecond),
		},
		Session: SessionConfig{
			TTL:             getEnvAsDuration("SESSION_TTL", 30*time.Minute),
			JanitorInterval: getEnvAsDuration("SESSION_JANITOR_INTERVAL", 1*time.Minute),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	if config.Geo.BaseURL == "" && config.Database.Host == "" {
		return fmt.Errorf("either GEO_BASE_URL or DB_HOST must be set to load boundary layers")
	}
	if config.Prefetch.Timeout <= 0 {
		return fmt.Errorf("PREFETCH_TIMEOUT must be positive")
	}
	if config.Classifier.MovementMeters < 0 {
		return fmt.Errorf("CLASSIFIER_MOVEMENT_METERS must not be negative")
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
