// Package config loads application configuration from environment
// variables.  A .env file, when present, is read first and never overrides
// variables already set in the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env      string // APP_ENV: dev, test, prod
	Port     string // APP_PORT: HTTP port to listen on
	LogLevel string // LOG_LEVEL: logrus level name

	DBUser           string        // DB_USER
	DBPass           string        // DB_PASS (optional)
	DBHost           string        // DB_HOST
	DBPort           string        // DB_PORT
	DBName           string        // DB_NAME
	DBMaxOpenConns   int           // DB_MAX_OPEN_CONNS
	DBConnMaxLife    time.Duration // DB_CONN_MAX_LIFETIME
	DBMigrateOnStart bool          // DB_MIGRATE

	JWTSecret    string // JWT_SECRET: HS256 signing secret shared with the identity provider
	AccessTTLMin int    // ACCESS_TOKEN_TTL_MIN: lifetime of dev tokens

	AMQPURL string // RABBITMQ_URL (or AMQP_URL)

	Booking BookingConfig
}

// BookingConfig holds the booking policy knobs.
type BookingConfig struct {
	RequireHostApproval bool          // REQUIRE_HOST_APPROVAL: new bookings start pending
	CancellationWindow  time.Duration // CANCELLATION_WINDOW
	SweepInterval       time.Duration // COMPLETION_SWEEP_INTERVAL
	ServiceFeePercent   int64         // SERVICE_FEE_PERCENT
	TaxPercent          int64         // TAX_PERCENT
	NotifyWorkers       int           // NOTIFY_WORKERS
	NotifyBuffer        int           // NOTIFY_BUFFER
	NotifyLogDir        string        // NOTIFY_LOG_DIR
}

// LoadDotEnv reads the given files (default ".env") into the environment.
// Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration values from environment variables.  Required
// variables are enforced by must(); a missing value stops the process.
func Load() Config {
	amqpURL := envStr("RABBITMQ_URL", os.Getenv("AMQP_URL"))
	return Config{
		Env:      must("APP_ENV"),
		Port:     must("APP_PORT"),
		LogLevel: envStr("LOG_LEVEL", "info"),

		DBUser:           must("DB_USER"),
		DBPass:           os.Getenv("DB_PASS"),
		DBHost:           must("DB_HOST"),
		DBPort:           must("DB_PORT"),
		DBName:           must("DB_NAME"),
		DBMaxOpenConns:   envInt("DB_MAX_OPEN_CONNS", 25),
		DBConnMaxLife:    envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		DBMigrateOnStart: envBool("DB_MIGRATE", true),

		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),

		AMQPURL: amqpURL,

		Booking: LoadBookingConfig(),
	}
}

// LoadBookingConfig reads the booking policy with platform defaults.
func LoadBookingConfig() BookingConfig {
	c := BookingConfig{
		RequireHostApproval: envBool("REQUIRE_HOST_APPROVAL", false),
		CancellationWindow:  envDur("CANCELLATION_WINDOW", 48*time.Hour),
		SweepInterval:       envDur("COMPLETION_SWEEP_INTERVAL", time.Hour),
		ServiceFeePercent:   int64(envInt("SERVICE_FEE_PERCENT", 12)),
		TaxPercent:          int64(envInt("TAX_PERCENT", 5)),
		NotifyWorkers:       envInt("NOTIFY_WORKERS", 2),
		NotifyBuffer:        envInt("NOTIFY_BUFFER", 256),
		NotifyLogDir:        envStr("NOTIFY_LOG_DIR", "logs"),
	}
	if c.CancellationWindow <= 0 {
		c.CancellationWindow = 48 * time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Hour
	}
	if c.NotifyWorkers < 1 {
		c.NotifyWorkers = 1
	}
	if c.NotifyBuffer < 0 {
		c.NotifyBuffer = 0
	}
	return c
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty the process logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logrus.Fatalf("missing required env var: %s", key)
	}
	return v
}
