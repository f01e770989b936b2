package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// ErrMissingDatabase is returned when no database configuration is available.
// The server reports this as a configuration error instead of crashing.
var ErrMissingDatabase = errors.New("database configuration missing: set DATABASE_URL or DB_* variables")

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Session  SessionConfig
	Storage  StorageConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds PostgreSQL connection configuration.
// URL takes precedence over the discrete fields when set.
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// SessionConfig holds session token configuration
type SessionConfig struct {
	// TTL is the absolute session lifetime. Expiry is not refreshed on use.
	TTL time.Duration
}

// StorageConfig holds S3/MinIO configuration for material photo storage
type StorageConfig struct {
	Endpoint           string
	Region             string
	AccessKeyID        string
	SecretAccessKey    string
	Bucket             string
	UseSSL             bool
	PresignedURLExpiry time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "photo_review"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Session: SessionConfig{
			TTL: getDurationEnv("SESSION_TTL", 7*24*time.Hour),
		},
		Storage: StorageConfig{
			Endpoint:           getEnv("S3_ENDPOINT", ""),
			Region:             getEnv("S3_REGION", "us-east-1"),
			AccessKeyID:        getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey:    getEnv("S3_SECRET_ACCESS_KEY", ""),
			Bucket:             getEnv("S3_BUCKET", "violation-photos"),
			UseSSL:             getBoolEnv("S3_USE_SSL", false),
			PresignedURLExpiry: getDurationEnv("S3_PRESIGN_EXPIRY", 15*time.Minute),
		},
	}
}

// Validate checks that enough configuration is present to reach the database.
func (c *Config) Validate() error {
	if c.Database.URL == "" && c.Database.Host == "" {
		return ErrMissingDatabase
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return "host=" + d.Host +
		" port=" + d.Port +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.DBName +
		" sslmode=" + d.SSLMode
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv returns a duration from an environment variable or default.
// Accepts Go duration syntax ("168h") or a plain number of hours.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if hours, err := strconv.Atoi(value); err == nil {
		return time.Duration(hours) * time.Hour
	}
	return defaultValue
}

// getBoolEnv returns boolean from environment variable or default
func getBoolEnv(key string, defaultValue bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}
