package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoad_DefaultValues(t *testing.T) {
	for _, key := range []string{"PORT", "DB_PATH", "CORS_ALLOWED_ORIGINS", "SALES_SOURCE", "SALES_RATE_PER_MINUTE", "DISPLAY_CASE_TTL", "FORECAST_SEED", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.DBPath != "./card_vault.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./card_vault.db")
	}
	if want := []string{"http://localhost:5173", "http://localhost:3000"}; !reflect.DeepEqual(cfg.CORSOrigins, want) {
		t.Errorf("CORSOrigins = %v, want %v", cfg.CORSOrigins, want)
	}
	if cfg.SalesSource != "api" {
		t.Errorf("SalesSource = %q, want %q", cfg.SalesSource, "api")
	}
	if cfg.SalesRatePerMinute != 30 {
		t.Errorf("SalesRatePerMinute = %d, want %d", cfg.SalesRatePerMinute, 30)
	}
	if cfg.DisplayCaseTTL != 24*time.Hour {
		t.Errorf("DisplayCaseTTL = %v, want %v", cfg.DisplayCaseTTL, 24*time.Hour)
	}
	if cfg.ForecastSeed != 0 {
		t.Errorf("ForecastSeed = %d, want 0", cfg.ForecastSeed)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("SALES_SOURCE", "RSS")
	t.Setenv("SALES_RSS_URL", "https://feeds.example/sold")
	t.Setenv("PRICE_UPDATE_INTERVAL", "5m")
	t.Setenv("PRICE_BATCH_SIZE", "50")
	t.Setenv("FORECAST_SEED", "42")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want %q", cfg.Port, "9090")
	}
	if want := []string{"https://a.example", "https://b.example"}; !reflect.DeepEqual(cfg.CORSOrigins, want) {
		t.Errorf("CORSOrigins = %v, want %v", cfg.CORSOrigins, want)
	}
	if cfg.SalesSource != "rss" || !cfg.SalesConfigured() {
		t.Errorf("SalesSource = %q, configured = %v, want rss and true", cfg.SalesSource, cfg.SalesConfigured())
	}
	if cfg.PriceUpdateInterval != 5*time.Minute {
		t.Errorf("PriceUpdateInterval = %v, want %v", cfg.PriceUpdateInterval, 5*time.Minute)
	}
	if cfg.PriceBatchSize != 50 {
		t.Errorf("PriceBatchSize = %d, want %d", cfg.PriceBatchSize, 50)
	}
	if cfg.ForecastSeed != 42 {
		t.Errorf("ForecastSeed = %d, want %d", cfg.ForecastSeed, 42)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	tests := []struct {
		key   string
		value string
		check func(*Config) bool
	}{
		{"SALES_RATE_PER_MINUTE", "fast", func(c *Config) bool { return c.SalesRatePerMinute == 30 }},
		{"SALES_RATE_PER_MINUTE", "-5", func(c *Config) bool { return c.SalesRatePerMinute == 30 }},
		{"SALES_CACHE_TTL", "forever", func(c *Config) bool { return c.SalesCacheTTL == 6*time.Hour }},
		{"DISPLAY_CASE_TTL", "-1h", func(c *Config) bool { return c.DisplayCaseTTL == 24*time.Hour }},
		{"FORECAST_SEED", "-3", func(c *Config) bool { return c.ForecastSeed == 0 }},
		{"ANALYSIS_CACHE_SIZE", "0", func(c *Config) bool { return c.AnalysisCacheSize == 128 }},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if cfg := Load(); !tt.check(cfg) {
				t.Errorf("Load() with %s=%q did not fall back to the default", tt.key, tt.value)
			}
		})
	}
}

func TestSalesConfigured(t *testing.T) {
	tests := []struct {
		cfg  Config
		want bool
	}{
		{Config{SalesSource: "api"}, false},
		{Config{SalesSource: "api", SalesAPIURL: "http://x"}, true},
		{Config{SalesSource: "rss", SalesAPIURL: "http://x"}, false},
		{Config{SalesSource: "rss", SalesRSSURL: "http://x"}, true},
	}
	for _, tt := range tests {
		if got := tt.cfg.SalesConfigured(); got != tt.want {
			t.Errorf("SalesConfigured(%+v) = %v, want %v", tt.cfg, got, tt.want)
		}
	}
}
