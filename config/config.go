package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Meeting  MeetingConfig
	Client   ClientConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all (e.g. http://localhost:3000,http://localhost:3001)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/engagement?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds session token signing settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// MeetingConfig holds slot and aggregation geometry.
type MeetingConfig struct {
	SlotMinutes          int
	BucketMinutes        int
	WindowMinutes        int
	BroadcastIntervalSec int
	SnapshotTTLSec       int
	Smoothing            string
}

// ClientConfig tunes the dashboard-side transport.
type ClientConfig struct {
	ServerURL         string
	WSURL             string
	PingIntervalSec   int
	JoinTimeoutSec    int
	ReconnectBaseMS   int
	ReconnectMaxMS    int
	ReconnectJitterMS int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/engagement?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "engagement"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Meeting: MeetingConfig{
			SlotMinutes:          getEnvInt("MEETING_SLOT_MINUTES", 60),
			BucketMinutes:        getEnvInt("MEETING_BUCKET_MINUTES", 1),
			WindowMinutes:        getEnvInt("MEETING_WINDOW_MINUTES", 5),
			BroadcastIntervalSec: getEnvInt("MEETING_BROADCAST_INTERVAL_SEC", 15),
			SnapshotTTLSec:       getEnvInt("MEETING_SNAPSHOT_TTL_SEC", 30),
			Smoothing:            getEnv("MEETING_SMOOTHING", "kalman"),
		},
		Client: ClientConfig{
			ServerURL:         getEnv("SERVER_URL", "http://localhost:8080"),
			WSURL:             getEnv("WS_URL", "ws://localhost:8080"),
			PingIntervalSec:   getEnvInt("CLIENT_PING_INTERVAL_SEC", 30),
			JoinTimeoutSec:    getEnvInt("CLIENT_JOIN_TIMEOUT_SEC", 10),
			ReconnectBaseMS:   getEnvInt("CLIENT_RECONNECT_BASE_MS", 3000),
			ReconnectMaxMS:    getEnvInt("CLIENT_RECONNECT_MAX_MS", 30000),
			ReconnectJitterMS: getEnvInt("CLIENT_RECONNECT_JITTER_MS", 500),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
