package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Write-back API
	WritebackURL         string
	WritebackToken       string
	WritebackTimeout     time.Duration
	WritebackWarmup      time.Duration   // short delay before the first attempt only
	WritebackRetryDelays []time.Duration // index 0 = delay before attempt 2, etc.

	// Failure notifier (disabled when the URL is empty)
	NotifyWebhookURL string
	NotifyTimeout    time.Duration

	// Box assignment
	DefaultUnitSize int    // substituted for unknown SKUs
	SingleBoxName   string // box class renamed before write-back
	SingleBoxAlias  string // label it is renamed to

	// Dispatcher
	DispatchInterval  time.Duration
	DispatchBatchSize int
	ItemDelay         time.Duration // pacing between items within one tick
	MaxAttempts       int
	RetryDelay        time.Duration // gate before a failed item can be re-claimed

	// Reference cache
	RefreshInterval time.Duration
	CacheMaxAge     time.Duration // staleness threshold checked at dispatch time

	// Recovery scanner
	RecoveryInterval time.Duration
	StuckTimeout     time.Duration
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		WritebackURL:     getEnv("WRITEBACK_URL", ""),
		WritebackToken:   getEnv("WRITEBACK_TOKEN", ""),
		WritebackTimeout: getDuration("WRITEBACK_TIMEOUT", 10*time.Second),
		WritebackWarmup:  getDuration("WRITEBACK_WARMUP", 100*time.Millisecond),
		WritebackRetryDelays: []time.Duration{
			getDuration("WRITEBACK_RETRY_1", 15*time.Second),
			getDuration("WRITEBACK_RETRY_2", 30*time.Second),
			getDuration("WRITEBACK_RETRY_3", 60*time.Second),
		},

		NotifyWebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		NotifyTimeout:    getDuration("NOTIFY_TIMEOUT", 5*time.Second),

		DefaultUnitSize: getInt("DEFAULT_UNIT_SIZE", 1),
		SingleBoxName:   getEnv("SINGLE_BOX_NAME", "Single"),
		SingleBoxAlias:  getEnv("SINGLE_BOX_ALIAS", "Parcel"),

		DispatchInterval:  getDuration("DISPATCH_INTERVAL", 15*time.Second),
		DispatchBatchSize: getInt("DISPATCH_BATCH_SIZE", 5),
		ItemDelay:         getDuration("ITEM_DELAY", time.Second),
		MaxAttempts:       getInt("MAX_ATTEMPTS", 3),
		RetryDelay:        getDuration("RETRY_DELAY", 60*time.Second),

		RefreshInterval: getDuration("REFRESH_INTERVAL", 10*time.Minute),
		CacheMaxAge:     getDuration("CACHE_MAX_AGE", 10*time.Minute),

		RecoveryInterval: getDuration("RECOVERY_INTERVAL", 10*time.Minute),
		StuckTimeout:     getDuration("STUCK_TIMEOUT", 10*time.Minute),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
