package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/card-vault/internal/models"
	"github.com/codyseavey/card-vault/internal/services"
	"github.com/codyseavey/card-vault/internal/trade"
)

// MarketRequest analyzes either a sale search or caller-supplied sales.
// Sales win when both are present.
type MarketRequest struct {
	Query      *models.SaleQuery   `json:"query"`
	Sales      []models.SaleRecord `json:"sales"`
	PlayerName string              `json:"player_name"`
	DaysAhead  int                 `json:"days_ahead"`
}

type TradeRequest struct {
	Giving    []trade.Card `json:"giving"`
	Receiving []trade.Card `json:"receiving"`
}

type MarketHandler struct {
	marketService *services.MarketService
}

func NewMarketHandler(market *services.MarketService) *MarketHandler {
	return &MarketHandler{marketService: market}
}

// SearchSales returns raw sold listings for the query parameters
func (h *MarketHandler) SearchSales(c *gin.Context) {
	var q models.SaleQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := h.marketService.Search(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": records, "count": len(records)})
}

func (h *MarketHandler) AnalyzeMarket(c *gin.Context) {
	var req MarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(req.Sales) > 0 {
		analysis := h.marketService.AnalyzeRecords(req.Sales)
		if analysis.SalesCount == 0 {
			respondError(c, services.ErrNoSalesData)
			return
		}
		c.JSON(http.StatusOK, analysis)
		return
	}
	if req.Query == nil {
		respondError(c, services.ErrInvalidQuery)
		return
	}

	analysis, err := h.marketService.Analyze(c.Request.Context(), *req.Query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// ForecastPrice projects prices days_ahead days past the latest sale.
// A missing or non-positive days_ahead means 90.
func (h *MarketHandler) ForecastPrice(c *gin.Context) {
	var req MarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(req.Sales) > 0 {
		player := req.PlayerName
		if player == "" && req.Query != nil {
			player = req.Query.PlayerName
		}
		c.JSON(http.StatusOK, h.marketService.ForecastRecords(c.Request.Context(), player, req.Sales, req.DaysAhead))
		return
	}
	if req.Query == nil {
		respondError(c, services.ErrInvalidQuery)
		return
	}

	result, err := h.marketService.Forecast(c.Request.Context(), *req.Query, req.DaysAhead)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AnalyzeTrade scores a proposed trade. Cards carrying a query get their
// market inputs looked up first.
func (h *MarketHandler) AnalyzeTrade(c *gin.Context) {
	var req TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Giving) == 0 && len(req.Receiving) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "giving or receiving cards are required"})
		return
	}

	c.JSON(http.StatusOK, h.marketService.AnalyzeTrade(c.Request.Context(), req.Giving, req.Receiving))
}
