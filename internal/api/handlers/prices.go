package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/card-vault/internal/services"
)

type PriceHandler struct {
	priceWorker       *services.PriceWorker
	collectionService *services.CollectionService
}

// NewPriceHandler creates a PriceHandler. priceWorker is nil when no sale source is configured.
func NewPriceHandler(priceWorker *services.PriceWorker, collection *services.CollectionService) *PriceHandler {
	return &PriceHandler{
		priceWorker:       priceWorker,
		collectionService: collection,
	}
}

// GetPriceStatus returns the price worker's progress and unpriced cards
func (h *PriceHandler) GetPriceStatus(c *gin.Context) {
	if h.priceWorker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "price updates are disabled: no sale source configured"})
		return
	}
	c.JSON(http.StatusOK, h.priceWorker.GetStatus())
}

// RefreshCardPrice queues a card ahead of the regular price batches
func (h *PriceHandler) RefreshCardPrice(c *gin.Context) {
	if h.priceWorker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "price updates are disabled: no sale source configured"})
		return
	}

	card, err := h.collectionService.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	position := h.priceWorker.QueueRefresh(card.ID)
	c.JSON(http.StatusAccepted, gin.H{
		"card_id":        card.ID,
		"queue_position": position,
	})
}
