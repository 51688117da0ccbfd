package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/card-vault/internal/models"
	"github.com/codyseavey/card-vault/internal/services"
)

// Uploads past this are rejected by image storage; read one byte more so it can tell
const maxUploadBytes = 10<<20 + 1

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type CollectionHandler struct {
	collectionService  *services.CollectionService
	displayCaseService *services.DisplayCaseService
	snapshotService    *services.SnapshotService
}

func NewCollectionHandler(collection *services.CollectionService, displayCases *services.DisplayCaseService, snapshot *services.SnapshotService) *CollectionHandler {
	return &CollectionHandler{
		collectionService:  collection,
		displayCaseService: displayCases,
		snapshotService:    snapshot,
	}
}

// GetCollection lists the caller's cards. ?tag narrows the list and may be repeated.
func (h *CollectionHandler) GetCollection(c *gin.Context) {
	var filter interface{}
	if tagFilter := c.QueryArray("tag"); len(tagFilter) > 0 {
		filter = tagFilter
	}

	cards, err := h.collectionService.List(c.Request.Context(), userID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cards)
}

func (h *CollectionHandler) AddToCollection(c *gin.Context) {
	var req models.AddCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	card, err := h.collectionService.Add(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

func (h *CollectionHandler) GetCollectionItem(c *gin.Context) {
	card, err := h.collectionService.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *CollectionHandler) UpdateCollectionItem(c *gin.Context) {
	var req models.UpdateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	card, err := h.collectionService.Update(c.Request.Context(), userID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *CollectionHandler) DeleteCollectionItem(c *gin.Context) {
	if err := h.collectionService.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// UploadPhoto accepts a multipart "photo" file or the raw image as the request body
func (h *CollectionHandler) UploadPhoto(c *gin.Context) {
	var reader io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile("photo")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
			return
		}
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo upload"})
			return
		}
		defer f.Close()
		reader = f
	}

	data, err := io.ReadAll(io.LimitReader(reader, maxUploadBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read photo"})
		return
	}

	card, err := h.collectionService.SetPhoto(c.Request.Context(), userID(c), c.Param("id"), data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *CollectionHandler) GetStats(c *gin.Context) {
	stats, err := h.collectionService.Stats(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetValueHistory returns recorded collection values for ?period
// (week, month, 3month, year, all)
func (h *CollectionHandler) GetValueHistory(c *gin.Context) {
	if h.snapshotService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "value history is not available"})
		return
	}

	history, err := h.snapshotService.GetHistory(c.Request.Context(), userID(c), c.DefaultQuery("period", "month"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// ExportCollection downloads the collection and display cases as an xlsx workbook
func (h *CollectionHandler) ExportCollection(c *gin.Context) {
	ctx := c.Request.Context()
	user := userID(c)

	cards, err := h.collectionService.List(ctx, user, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	cases, err := h.displayCaseService.List(ctx, user)
	if err != nil {
		respondError(c, err)
		return
	}

	buf, err := services.ExportWorkbook(cards, cases)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("collection-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
