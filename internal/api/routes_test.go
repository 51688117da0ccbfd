package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/logger"

	"github.com/codyseavey/card-vault/internal/config"
	"github.com/codyseavey/card-vault/internal/database"
	"github.com/codyseavey/card-vault/internal/forecast"
	"github.com/codyseavey/card-vault/internal/services"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open("file:"+t.Name()+"?mode=memory&cache=shared", logger.Silent)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cards := database.NewCardRepository(db)
	sanitizer := services.NewTextSanitizer()
	images := services.NewImageStorageService(t.TempDir())
	cases := services.NewDisplayCaseService(cards, database.NewDisplayCaseRepository(db), sanitizer, time.Hour, "https://vault.example.com")

	return SetupRouter(&config.Config{}, Services{
		Collection:   services.NewCollectionService(cards, cases, images, sanitizer),
		DisplayCases: cases,
		Market:       services.NewMarketService(nil, forecast.New(forecast.Options{Seed: 1}), 0, 0),
		Snapshots:    services.NewSnapshotService(database.NewSnapshotRepository(db), cards, cards, cases),
		Images:       images,
	})
}

func doRequest(t *testing.T, router *gin.Engine, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
}

func addCard(t *testing.T, router *gin.Engine, user, player string, value float64, tags ...string) string {
	t.Helper()
	w := doRequest(t, router, http.MethodPost, "/api/collection", user, map[string]interface{}{
		"player_name":   player,
		"current_value": value,
		"tags":          tags,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/collection = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var card struct {
		ID string `json:"id"`
	}
	decode(t, w, &card)
	return card.ID
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	if w := doRequest(t, router, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want %d", w.Code, http.StatusOK)
	}
	w := doRequest(t, router, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "cardvault_http_requests_total") {
		t.Error("metrics output is missing the request counter")
	}
}

func TestCollectionRoutes(t *testing.T) {
	router := newTestRouter(t)
	id := addCard(t, router, "u1", "Josh Allen", 120, "rookie", "bills")
	addCard(t, router, "u1", "Joe Burrow", 80, "bengals")

	var all []map[string]interface{}
	decode(t, doRequest(t, router, http.MethodGet, "/api/collection", "u1", nil), &all)
	if len(all) != 2 {
		t.Errorf("GET /api/collection returned %d cards, want 2", len(all))
	}

	var filtered []map[string]interface{}
	decode(t, doRequest(t, router, http.MethodGet, "/api/collection?tag=rookie", "u1", nil), &filtered)
	if len(filtered) != 1 {
		t.Errorf("GET /api/collection?tag=rookie returned %d cards, want 1", len(filtered))
	}

	var other []map[string]interface{}
	decode(t, doRequest(t, router, http.MethodGet, "/api/collection", "", nil), &other)
	if len(other) != 0 {
		t.Errorf("default user sees %d cards, want 0", len(other))
	}

	tests := []struct {
		method string
		path   string
		user   string
		body   interface{}
		want   int
	}{
		{http.MethodGet, "/api/collection/" + id, "u1", nil, http.StatusOK},
		{http.MethodGet, "/api/collection/" + id, "u2", nil, http.StatusNotFound},
		{http.MethodGet, "/api/collection/missing", "u1", nil, http.StatusNotFound},
		{http.MethodPost, "/api/collection", "u1", map[string]interface{}{"year": "2018"}, http.StatusBadRequest},
		{http.MethodPut, "/api/collection/" + id, "u1", map[string]interface{}{"notes": "sharp corners"}, http.StatusOK},
		{http.MethodGet, "/api/collection/stats", "u1", nil, http.StatusOK},
		{http.MethodGet, "/api/collection/history?period=week", "u1", nil, http.StatusOK},
		{http.MethodPost, "/api/collection/" + id + "/photo", "u1", nil, http.StatusBadRequest},
		{http.MethodDelete, "/api/collection/missing", "u1", nil, http.StatusNotFound},
		{http.MethodDelete, "/api/collection/" + id, "u1", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if w := doRequest(t, router, tt.method, tt.path, tt.user, tt.body); w.Code != tt.want {
				t.Errorf("%s %s = %d, want %d: %s", tt.method, tt.path, w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestExportRoute(t *testing.T) {
	router := newTestRouter(t)
	addCard(t, router, "u1", "Josh Allen", 120, "rookie")

	w := doRequest(t, router, http.MethodGet, "/api/collection/export", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/collection/export = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Content-Type"); !strings.Contains(got, "spreadsheetml") {
		t.Errorf("Content-Type = %q, want an xlsx type", got)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Error("export body is not a zip container")
	}
}

func TestDisplayCaseRoutes(t *testing.T) {
	router := newTestRouter(t)
	addCard(t, router, "u1", "Josh Allen", 120, "rookie", "bills")
	addCard(t, router, "u1", "Joe Burrow", 80, "rookie", "bengals")

	w := doRequest(t, router, http.MethodPost, "/api/display-cases", "u1", map[string]interface{}{"name": "Nobody", "tags": "lakers"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("create without matches = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = doRequest(t, router, http.MethodPost, "/api/display-cases", "u1", map[string]interface{}{"name": "Rookies", "tags": "rookie, !bengals"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var dc struct {
		Name       string                   `json:"name"`
		Cards      []map[string]interface{} `json:"cards"`
		TotalValue float64                  `json:"total_value"`
	}
	decode(t, w, &dc)
	if len(dc.Cards) != 1 || dc.TotalValue != 120 {
		t.Errorf("created case has %d cards worth %v, want 1 worth 120", len(dc.Cards), dc.TotalValue)
	}

	if w := doRequest(t, router, http.MethodGet, "/api/display-cases/Rookies", "u1", nil); w.Code != http.StatusOK {
		t.Errorf("GET case = %d, want %d", w.Code, http.StatusOK)
	}
	if w := doRequest(t, router, http.MethodGet, "/api/display-cases/Rookies", "u2", nil); w.Code != http.StatusNotFound {
		t.Errorf("GET case as another user = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = doRequest(t, router, http.MethodPut, "/api/display-cases/Rookies", "u1", map[string]interface{}{"name": "All Rookies", "tags": []string{"rookie"}})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT case = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	decode(t, w, &dc)
	if dc.Name != "All Rookies" || len(dc.Cards) != 2 {
		t.Errorf("updated case = %q with %d cards, want %q with 2", dc.Name, len(dc.Cards), "All Rookies")
	}

	w = doRequest(t, router, http.MethodGet, "/api/display-cases/All%20Rookies/share", "u1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("share = %d, want %d", w.Code, http.StatusOK)
	}
	var share struct {
		URL string `json:"url"`
	}
	decode(t, w, &share)
	token := share.URL[strings.LastIndex(share.URL, "/")+1:]
	if w := doRequest(t, router, http.MethodGet, "/api/share/"+token, "", nil); w.Code != http.StatusOK {
		t.Errorf("GET shared case = %d, want %d", w.Code, http.StatusOK)
	}

	w = doRequest(t, router, http.MethodPost, "/api/display-cases/simple", "u1", map[string]interface{}{"name": "Bills", "tag": "bills"})
	if w.Code != http.StatusCreated {
		t.Errorf("simple create = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	w = doRequest(t, router, http.MethodPut, "/api/display-cases/Bills", "u1", map[string]interface{}{"name": "All Rookies", "tags": []string{"bills"}})
	if w.Code != http.StatusConflict {
		t.Errorf("rename onto existing case = %d, want %d", w.Code, http.StatusConflict)
	}

	var preview struct {
		Count int `json:"count"`
	}
	decode(t, doRequest(t, router, http.MethodPost, "/api/display-cases/preview", "u1", map[string]interface{}{"tags": "rookie"}), &preview)
	if preview.Count != 2 {
		t.Errorf("preview count = %d, want 2", preview.Count)
	}

	var list []map[string]interface{}
	decode(t, doRequest(t, router, http.MethodGet, "/api/display-cases", "u1", nil), &list)
	if len(list) != 2 {
		t.Errorf("list returned %d cases, want 2", len(list))
	}

	var suggest struct {
		Suggestions []string `json:"suggestions"`
	}
	decode(t, doRequest(t, router, http.MethodGet, "/api/tags/suggest?q=ben", "u1", nil), &suggest)
	if len(suggest.Suggestions) == 0 || suggest.Suggestions[0] != "bengals" {
		t.Errorf("suggestions = %v, want bengals first", suggest.Suggestions)
	}

	if w := doRequest(t, router, http.MethodDelete, "/api/display-cases/Bills", "u1", nil); w.Code != http.StatusOK {
		t.Errorf("DELETE case = %d, want %d", w.Code, http.StatusOK)
	}
	if w := doRequest(t, router, http.MethodPost, "/api/display-cases/Bills/refresh", "u1", nil); w.Code != http.StatusNotFound {
		t.Errorf("refresh deleted case = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestMarketRoutes(t *testing.T) {
	router := newTestRouter(t)
	now := time.Now()
	sales := []map[string]interface{}{
		{"title": "Allen PSA 10", "price": 100, "date": now.AddDate(0, 0, -20).Format(time.RFC3339)},
		{"title": "Allen PSA 10", "price": "$110.00", "date": now.AddDate(0, 0, -10).Format(time.RFC3339)},
		{"title": "Allen PSA 10", "price": 120, "date": now.AddDate(0, 0, -1).Format(time.RFC3339)},
	}

	w := doRequest(t, router, http.MethodPost, "/api/market/analyze", "", map[string]interface{}{"sales": sales})
	if w.Code != http.StatusOK {
		t.Fatalf("analyze = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var analysis struct {
		SalesCount int `json:"sales_count"`
	}
	decode(t, w, &analysis)
	if analysis.SalesCount != 3 {
		t.Errorf("sales_count = %d, want 3", analysis.SalesCount)
	}

	w = doRequest(t, router, http.MethodPost, "/api/market/forecast", "", map[string]interface{}{"sales": sales, "days_ahead": 10})
	if w.Code != http.StatusOK {
		t.Fatalf("forecast = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var result forecast.Result
	decode(t, w, &result)
	if len(result.PredictedPrices) != 10 {
		t.Errorf("forecast has %d points, want 10", len(result.PredictedPrices))
	}

	tests := []struct {
		name string
		path string
		body interface{}
		want int
	}{
		{"analyze without input", "/api/market/analyze", map[string]interface{}{}, http.StatusBadRequest},
		{"analyze unparseable sales", "/api/market/analyze", map[string]interface{}{"sales": []map[string]interface{}{{"price": "n/a"}}}, http.StatusNotFound},
		{"forecast empty query", "/api/market/forecast", map[string]interface{}{"query": map[string]interface{}{}}, http.StatusBadRequest},
		{"trade without cards", "/api/trades/analyze", map[string]interface{}{}, http.StatusBadRequest},
		{"trade", "/api/trades/analyze", map[string]interface{}{
			"giving":    []map[string]interface{}{{"name": "A", "market_value": 100, "market_trend": "stable"}},
			"receiving": []map[string]interface{}{{"name": "B", "market_value": 110, "market_trend": "hot"}},
		}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doRequest(t, router, http.MethodPost, tt.path, "", tt.body); w.Code != tt.want {
				t.Errorf("POST %s = %d, want %d: %s", tt.path, w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestPriceRoutesWithoutWorker(t *testing.T) {
	router := newTestRouter(t)

	if w := doRequest(t, router, http.MethodGet, "/api/prices/status", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("GET /api/prices/status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if w := doRequest(t, router, http.MethodPost, "/api/prices/refresh/abc", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("POST /api/prices/refresh = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}
