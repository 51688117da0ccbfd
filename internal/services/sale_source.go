package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/codyseavey/card-vault/internal/metrics"
	"github.com/codyseavey/card-vault/internal/models"
)

const (
	defaultSalesTimeout  = 20 * time.Second
	defaultSalesCacheTTL = 6 * time.Hour
	defaultRatePerMinute = 30
	maxFeedResponseBytes = 5 << 20
	soldListingsPath     = "/sold"
	saleSourceAPI        = "api"
	saleSourceRSS        = "rss"
)

// SaleSource searches sold listings. No results is an empty slice, not an error.
type SaleSource interface {
	Search(ctx context.Context, q models.SaleQuery) ([]models.SaleRecord, error)
}

// SaleSourceConfig configures either sale source
type SaleSourceConfig struct {
	BaseURL       string
	APIKey        string
	RatePerMinute int
	CacheTTL      time.Duration
	Timeout       time.Duration
	// HTTPClient overrides the SSRF-guarded client used for feeds
	HTTPClient *http.Client
}

func (c SaleSourceConfig) withDefaults() SaleSourceConfig {
	if c.RatePerMinute <= 0 {
		c.RatePerMinute = defaultRatePerMinute
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultSalesCacheTTL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultSalesTimeout
	}
	return c
}

// searchCache memoizes search results per query
type searchCache struct {
	cache *cache.Cache
}

func newSearchCache(ttl time.Duration) *searchCache {
	return &searchCache{cache: cache.New(ttl, 2*ttl)}
}

func (c *searchCache) get(q models.SaleQuery) ([]models.SaleRecord, bool) {
	v, found := c.cache.Get(q.CacheKey())
	if !found {
		return nil, false
	}
	metrics.SaleSearchCacheHits.Inc()
	return v.([]models.SaleRecord), true
}

func (c *searchCache) set(q models.SaleQuery, records []models.SaleRecord) {
	c.cache.Set(q.CacheKey(), records, cache.DefaultExpiration)
}

// SoldListingsClient queries a JSON sold-listings API
type SoldListingsClient struct {
	client  *resty.Client
	apiKey  string
	limiter *rate.Limiter
	cache   *searchCache
}

type soldListingsResponse struct {
	Results []models.SaleRecord `json:"results"`
}

// NewSoldListingsClient creates a rate limited, caching API client
func NewSoldListingsClient(cfg SaleSourceConfig) *SoldListingsClient {
	cfg = cfg.withDefaults()
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))

	return &SoldListingsClient{
		client:  client,
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60), 1),
		cache:   newSearchCache(cfg.CacheTTL),
	}
}

// Search implements SaleSource
func (c *SoldListingsClient) Search(ctx context.Context, q models.SaleQuery) ([]models.SaleRecord, error) {
	if q.IsEmpty() {
		return []models.SaleRecord{}, nil
	}
	if records, ok := c.cache.get(q); ok {
		return records, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("sale search rate limit: %w", err)
	}

	start := time.Now()
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("q", q.Keywords())
	if len(q.ExcludeKeywords) > 0 {
		req.SetQueryParam("exclude", strings.Join(q.ExcludeKeywords, ","))
	}
	if c.apiKey != "" {
		req.SetHeader("X-API-Key", c.apiKey)
	}
	resp, err := req.Get(soldListingsPath)
	metrics.SaleSearchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SaleSearchRequestsTotal.WithLabelValues(saleSourceAPI, "error").Inc()
		return nil, fmt.Errorf("sold listings request failed: %w", err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		metrics.SaleSearchRequestsTotal.WithLabelValues(saleSourceAPI, "empty").Inc()
		c.cache.set(q, []models.SaleRecord{})
		return []models.SaleRecord{}, nil
	}
	if resp.IsError() {
		metrics.SaleSearchRequestsTotal.WithLabelValues(saleSourceAPI, "error").Inc()
		return nil, fmt.Errorf("sold listings returned status %d", resp.StatusCode())
	}

	var body soldListingsResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		metrics.SaleSearchRequestsTotal.WithLabelValues(saleSourceAPI, "error").Inc()
		return nil, fmt.Errorf("failed to decode sold listings: %w", err)
	}

	records := excludeListings(body.Results, q.ExcludeKeywords)
	result := "ok"
	if len(records) == 0 {
		result = "empty"
	}
	metrics.SaleSearchRequestsTotal.WithLabelValues(saleSourceAPI, result).Inc()
	c.cache.set(q, records)
	return records, nil
}

// RSSSaleSource reads sold listings from a saved-search RSS feed
type RSSSaleSource struct {
	feedURL   string
	client    *http.Client
	limiter   *rate.Limiter
	cache     *searchCache
	sanitizer *TextSanitizer
}

// NewRSSSaleSource creates a feed source. feedURL receives the keywords as
// its q query parameter.
func NewRSSSaleSource(feedURL string, cfg SaleSourceConfig, sanitizer *TextSanitizer) *RSSSaleSource {
	cfg = cfg.withDefaults()
	client := cfg.HTTPClient
	if client == nil {
		config := safeurl.GetConfigBuilder().
			SetTimeout(cfg.Timeout).
			SetAllowedSchemes("http", "https").
			SetAllowedPorts(80, 443).
			Build()
		client = safeurl.Client(config).Client
	}
	return &RSSSaleSource{
		feedURL:   feedURL,
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60), 1),
		cache:     newSearchCache(cfg.CacheTTL),
		sanitizer: sanitizer,
	}
}

// Search implements SaleSource
func (s *RSSSaleSource) Search(ctx context.Context, q models.SaleQuery) ([]models.SaleRecord, error) {
	if q.IsEmpty() {
		return []models.SaleRecord{}, nil
	}
	if records, ok := s.cache.get(q); ok {
		return records, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("sale feed rate limit: %w", err)
	}

	u, err := url.Parse(s.feedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sale feed url: %w", err)
	}
	params := u.Query()
	params.Set("q", q.Keywords())
	u.RawQuery = params.Encode()

	start := time.Now()
	body, err := s.fetch(ctx, u.String())
	metrics.SaleSearchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SaleSearchRequestsTotal.WithLabelValues(saleSourceRSS, "error").Inc()
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		metrics.SaleSearchRequestsTotal.WithLabelValues(saleSourceRSS, "error").Inc()
		return nil, fmt.Errorf("failed to parse sale feed: %w", err)
	}

	records := make([]models.SaleRecord, 0, len(feed.Items))
	for _, item := range feed.Items {
		if r, ok := s.itemToRecord(item); ok {
			records = append(records, r)
		}
	}
	records = excludeListings(records, q.ExcludeKeywords)

	result := "ok"
	if len(records) == 0 {
		result = "empty"
	}
	metrics.SaleSearchRequestsTotal.WithLabelValues(saleSourceRSS, result).Inc()
	s.cache.set(q, records)
	return records, nil
}

func (s *RSSSaleSource) fetch(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sale feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sale feed returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read sale feed: %w", err)
	}
	return body, nil
}

var pricePattern = regexp.MustCompile(`\$\s?([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)

// itemToRecord pulls the sold price from the title or description. Items
// without a price or publish date are skipped.
func (s *RSSSaleSource) itemToRecord(item *gofeed.Item) (models.SaleRecord, bool) {
	if item == nil || item.PublishedParsed == nil {
		return models.SaleRecord{}, false
	}
	title := s.sanitizer.Clean(item.Title)
	price := pricePattern.FindStringSubmatch(title)
	if price == nil {
		price = pricePattern.FindStringSubmatch(s.sanitizer.Clean(item.Description))
	}
	if price == nil {
		log.Printf("Sale feed: no price in item %q", title)
		return models.SaleRecord{}, false
	}

	r := models.SaleRecord{
		Title: title,
		Price: price[1],
		Date:  item.PublishedParsed.UTC(),
	}
	if item.Image != nil {
		r.ImageURL = item.Image.URL
	}
	return r, true
}

// excludeListings drops listings whose title mentions an excluded keyword
func excludeListings(records []models.SaleRecord, exclude []string) []models.SaleRecord {
	out := make([]models.SaleRecord, 0, len(records))
	for _, r := range records {
		title := strings.ToLower(r.Title)
		excluded := false
		for _, kw := range exclude {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(title, kw) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, r)
		}
	}
	return out
}

// NewSaleSource picks the configured source. kind is "api" or "rss".
func NewSaleSource(kind, apiURL, rssURL string, cfg SaleSourceConfig, sanitizer *TextSanitizer) (SaleSource, error) {
	switch strings.ToLower(kind) {
	case "", saleSourceAPI:
		if apiURL == "" {
			return nil, fmt.Errorf("SALES_API_URL is required for the api sale source")
		}
		cfg.BaseURL = apiURL
		return NewSoldListingsClient(cfg), nil
	case saleSourceRSS:
		if rssURL == "" {
			return nil, fmt.Errorf("SALES_RSS_URL is required for the rss sale source")
		}
		return NewRSSSaleSource(rssURL, cfg, sanitizer), nil
	default:
		return nil, fmt.Errorf("unknown sale source %q", kind)
	}
}
