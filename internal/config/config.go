// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration knobs for the HTTP server, the distributor feed,
// the storefront API, write pacing, and notifications.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	FeedURL      string
	FeedUser     string
	FeedPassword string
	FeedTimeout  time.Duration

	CatalogBaseURL  string
	CatalogToken    string
	CatalogPageSize int
	CatalogTimeout  time.Duration

	// Write pacing and retry policy for the executor. WriteInterval is the
	// minimum spacing between successive intent completions; the storefront
	// write API enforces a hard 2 calls/second ceiling.
	WriteInterval time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	MailTo       string

	RunLogSize int
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT", 15),

		FeedURL:      getenv("FEED_URL", ""),
		FeedUser:     getenv("FEED_USER", ""),
		FeedPassword: getenv("FEED_PASSWORD", ""),
		FeedTimeout:  durenvs("FEED_TIMEOUT", 60),

		CatalogBaseURL:  getenv("CATALOG_BASE_URL", ""),
		CatalogToken:    getenv("CATALOG_TOKEN", ""),
		CatalogPageSize: atoienv("CATALOG_PAGE_SIZE", 100),
		CatalogTimeout:  durenvs("CATALOG_TIMEOUT", 30),

		WriteInterval: durenvms("WRITE_INTERVAL_MS", 550),
		RetryAttempts: atoienv("RETRY_ATTEMPTS", 3),
		RetryBackoff:  durenvms("RETRY_BACKOFF_MS", 2000),

		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     atoienv("SMTP_PORT", 587),
		SMTPUser:     getenv("SMTP_USER", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		MailFrom:     getenv("MAIL_FROM", ""),
		MailTo:       getenv("MAIL_TO", ""),

		RunLogSize: atoienv("RUN_LOG_SIZE", 30),
	}
}
