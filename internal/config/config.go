package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the service settings. It is read from the environment once at
// startup and treated as immutable afterwards.
type Config struct {
	// Server
	Port             string
	CORSOrigins      []string
	FrontendDistPath string
	ShareBaseURL     string

	// Storage
	DBPath          string
	ImageStorageDir string

	// Logging
	LogLevel string

	// Sale data
	SalesSource        string
	SalesAPIURL        string
	SalesAPIKey        string
	SalesRSSURL        string
	SalesRatePerMinute int
	SalesCacheTTL      time.Duration
	AnalysisCacheSize  int

	// Display cases
	DisplayCaseTTL time.Duration

	// Price worker
	PriceUpdateInterval time.Duration
	PriceBatchSize      int

	// Forecasting
	ForecastTimeout time.Duration
	ForecastSeed    uint64
	PlayerStatsFile string
}

// Load reads Config from the environment. Missing or unparsable values fall
// back to their defaults; nothing is required.
func Load() *Config {
	return &Config{
		Port:             getEnvString("PORT", "8080"),
		CORSOrigins:      getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		FrontendDistPath: getEnvString("FRONTEND_DIST_PATH", ""),
		ShareBaseURL:     getEnvString("SHARE_BASE_URL", "http://localhost:8080"),

		DBPath:          getEnvString("DB_PATH", "./card_vault.db"),
		ImageStorageDir: getEnvString("IMAGE_STORAGE_DIR", ""),

		LogLevel: strings.ToLower(getEnvString("LOG_LEVEL", "info")),

		SalesSource:        strings.ToLower(getEnvString("SALES_SOURCE", "api")),
		SalesAPIURL:        getEnvString("SALES_API_URL", ""),
		SalesAPIKey:        getEnvString("SALES_API_KEY", ""),
		SalesRSSURL:        getEnvString("SALES_RSS_URL", ""),
		SalesRatePerMinute: getEnvInt("SALES_RATE_PER_MINUTE", 30),
		SalesCacheTTL:      getEnvDuration("SALES_CACHE_TTL", 6*time.Hour),
		AnalysisCacheSize:  getEnvInt("ANALYSIS_CACHE_SIZE", 128),

		DisplayCaseTTL: getEnvDuration("DISPLAY_CASE_TTL", 24*time.Hour),

		PriceUpdateInterval: getEnvDuration("PRICE_UPDATE_INTERVAL", 30*time.Minute),
		PriceBatchSize:      getEnvInt("PRICE_BATCH_SIZE", 25),

		ForecastTimeout: getEnvDuration("FORECAST_TIMEOUT", 10*time.Second),
		ForecastSeed:    getEnvUint64("FORECAST_SEED", 0),
		PlayerStatsFile: getEnvString("PLAYER_STATS_FILE", ""),
	}
}

// SalesConfigured reports whether a sale data source can be built
func (c *Config) SalesConfigured() bool {
	if c.SalesSource == "rss" {
		return c.SalesRSSURL != ""
	}
	return c.SalesAPIURL != ""
}

func getEnvString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvUint64(key string, defaultVal uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
