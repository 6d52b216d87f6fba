package config

import (
	"net/url"
	"os"
	"strconv"
	"time"

	"sjsage522/inventoryscraper/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Inventory source
	InventoryURL   string
	MaxPages       int
	PageDelay      time.Duration
	RequestTimeout time.Duration
	FetchAttempts  int

	// Outputs
	OutputPath    string
	DebugHTMLPath string
	SQLitePath    string

	// Lookup tables override (JSON5 file); empty uses the embedded tables
	TablesPath string

	// Memcache configuration
	MemcacheAddr string
	BlockTime    time.Duration

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Worker / server
	CrawlInterval time.Duration
	ListenAddr    string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		InventoryURL:         getEnv("INVENTORY_URL", "https://www.reddeertoyota.com/inventory/used/"),
		MaxPages:             getEnvInt("MAX_PAGES", 10),
		PageDelay:            time.Duration(getEnvInt("PAGE_DELAY_MS", 500)) * time.Millisecond,
		RequestTimeout:       time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		FetchAttempts:        getEnvInt("FETCH_ATTEMPTS", 3),
		OutputPath:           getEnv("OUTPUT_PATH", "public/data/inventory.csv"),
		DebugHTMLPath:        os.Getenv("DEBUG_HTML_PATH"),
		SQLitePath:           os.Getenv("SQLITE_PATH"),
		TablesPath:           os.Getenv("TABLES_PATH"),
		MemcacheAddr:         os.Getenv("MEMCACHE_ADDR"),
		BlockTime:            time.Duration(getEnvInt("RATE_LIMIT_BLOCK_SECONDS", 300)) * time.Second,
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "inventory"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),
		CrawlInterval:        time.Duration(getEnvInt("CRAWL_INTERVAL_SECONDS", 3600)) * time.Second,
		ListenAddr:           getEnv("LISTEN_ADDR", ":8080"),
		Environment:          getEnv("INVENTORY_ENVIRONMENT", "development"),
	}
}

// Validate checks that the configuration can drive a scrape
func (c *Config) Validate() error {
	u, err := url.Parse(c.InventoryURL)
	if err != nil {
		return errors.NewConfiguration("invalid INVENTORY_URL", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.NewConfiguration("INVENTORY_URL must be an absolute http(s) URL", nil)
	}
	if c.MaxPages < 1 || c.MaxPages > 50 {
		return errors.NewConfiguration("MAX_PAGES must be between 1 and 50", nil)
	}
	if c.FetchAttempts < 1 || c.FetchAttempts > 10 {
		return errors.NewConfiguration("FETCH_ATTEMPTS must be between 1 and 10", nil)
	}
	if c.PageDelay < 0 {
		return errors.NewConfiguration("PAGE_DELAY_MS must not be negative", nil)
	}
	if c.RequestTimeout <= 0 {
		return errors.NewConfiguration("REQUEST_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.OutputPath == "" {
		return errors.NewConfiguration("OUTPUT_PATH must not be empty", nil)
	}
	if c.RedisAddr != "" && c.RedisStreamCount < 1 {
		return errors.NewConfiguration("REDIS_STREAM_COUNT must be at least 1", nil)
	}
	if c.CrawlInterval <= 0 {
		return errors.NewConfiguration("CRAWL_INTERVAL_SECONDS must be positive", nil)
	}
	return nil
}

// IsProduction reports whether the app runs in the production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}
