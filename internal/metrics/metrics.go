// Package metrics provides Prometheus metrics for the card vault service.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvault_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardvault_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Price Worker Metrics
	PriceUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardvault_price_updates_total",
			Help: "Total number of card values updated from sale data",
		},
	)

	PriceUpdatesToday = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardvault_price_updates_today",
			Help: "Number of card values updated today (resets at midnight)",
		},
	)

	PriceQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardvault_price_queue_size",
			Help: "Number of cards waiting in the priority refresh queue",
		},
	)

	PriceBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardvault_price_batch_duration_seconds",
			Help:    "Time taken to process a price update batch",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// Sale Source Metrics
	SaleSearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvault_sale_search_requests_total",
			Help: "Sold listing searches by source and result",
		},
		[]string{"source", "result"}, // result: "ok", "empty", "error"
	)

	SaleSearchCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardvault_sale_search_cache_hits_total",
			Help: "Sold listing searches served from cache",
		},
	)

	SaleSearchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardvault_sale_search_latency_seconds",
			Help:    "Sale source request latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	// Analysis Metrics
	MarketAnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvault_market_analyses_total",
			Help: "Market analyses by source",
		},
		[]string{"source"}, // "cache", "computed", "no_data"
	)

	ForecastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvault_forecasts_total",
			Help: "Price forecasts by path",
		},
		[]string{"path"}, // "rich", "fallback"
	)

	ForecastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardvault_forecast_duration_seconds",
			Help:    "Time taken to fit models and produce a forecast",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// Display Case Metrics
	DisplayCaseOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardvault_display_case_operations_total",
			Help: "Display case operations by type",
		},
		[]string{"operation"}, // "create", "create_simple", "refresh", "update", "delete"
	)

	// Collection Metrics
	CollectionCardsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardvault_collection_cards_total",
			Help: "Total number of cards across all collections",
		},
	)

	CollectionValueUSD = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardvault_collection_value_usd",
			Help: "Total current value of all collections in USD",
		},
	)

	CollectionCardsByCondition = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cardvault_collection_cards_by_condition",
			Help: "Number of cards by grading condition",
		},
		[]string{"condition"},
	)
)
