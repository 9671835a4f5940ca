package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Census API
	DatasetURL       string
	AppToken         string
	PageSize         int
	FetchTimeout     time.Duration
	FetchConcurrency int
	StrictCategories bool

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string
	SnapshotKeep int

	// AMQP
	AMQPURL      string
	AMQPExchange string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleHealthSheet        string
	GoogleStewardSheet       string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Figure cache
	CacheSize int
	CacheTTL  time.Duration

	// API rate limiting
	RateLimitPerMinute int

	// Worker
	SyncInterval time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8050"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatasetURL:       getEnv("CENSUS_DATASET_URL", "https://data.cityofnewyork.us/resource/uvpi-gqnh.json"),
		AppToken:         getEnv("CENSUS_APP_TOKEN", ""),
		PageSize:         getEnvInt("CENSUS_PAGE_SIZE", 1000),
		FetchTimeout:     getEnvDuration("CENSUS_FETCH_TIMEOUT", 30*time.Second),
		FetchConcurrency: getEnvInt("CENSUS_FETCH_CONCURRENCY", 1),
		StrictCategories: getEnvBool("CENSUS_STRICT_CATEGORIES", false),

		DataBackend: getEnv("DATA_BACKEND", "remote"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/treecensus.db"),
		SnapshotKeep: getEnvInt("SNAPSHOT_KEEP", 3),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "treecensus"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleHealthSheet:        getEnv("GOOGLE_HEALTH_SHEET", "Health"),
		GoogleStewardSheet:       getEnv("GOOGLE_STEWARD_SHEET", "Stewards"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		CacheSize: getEnvInt("CACHE_SIZE", 256),
		CacheTTL:  getEnvDuration("CACHE_TTL", 10*time.Minute),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		SyncInterval: getEnvDuration("SYNC_INTERVAL", 0),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate dataset URL
	if parsedURL, err := url.Parse(c.DatasetURL); err != nil || c.DatasetURL == "" {
		errors = append(errors, fmt.Sprintf("invalid dataset URL '%s'", c.DatasetURL))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid dataset URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	if c.PageSize < 1 || c.PageSize > 50000 {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be between 1 and 50000", c.PageSize))
	}
	if c.FetchTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be at least 1 second", c.FetchTimeout))
	}
	if c.FetchConcurrency < 1 || c.FetchConcurrency > 5 {
		errors = append(errors, fmt.Sprintf("invalid fetch concurrency %d: must be between 1 and 5", c.FetchConcurrency))
	}

	// Validate data backend
	validBackends := []string{"remote", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}
	if c.SnapshotKeep < 1 {
		errors = append(errors, fmt.Sprintf("invalid snapshot keep %d: must be at least 1", c.SnapshotKeep))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate Google Sheets export if a spreadsheet is configured
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleHealthSheet == "" || c.GoogleStewardSheet == "" {
			errors = append(errors, "Google health and steward sheet names are required when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleHealthSheet != "" && c.GoogleHealthSheet == c.GoogleStewardSheet {
			errors = append(errors, "Google health and steward sheet names must differ")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}

	if c.SyncInterval != 0 && c.SyncInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be 0 or at least 1 minute", c.SyncInterval))
	} else if c.SyncInterval > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 7 days", c.SyncInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
