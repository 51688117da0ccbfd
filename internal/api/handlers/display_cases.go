package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/card-vault/internal/models"
	"github.com/codyseavey/card-vault/internal/services"
	"github.com/codyseavey/card-vault/internal/tags"
)

const defaultSuggestLimit = 10

type DisplayCaseHandler struct {
	displayCaseService *services.DisplayCaseService
}

func NewDisplayCaseHandler(displayCases *services.DisplayCaseService) *DisplayCaseHandler {
	return &DisplayCaseHandler{displayCaseService: displayCases}
}

func (h *DisplayCaseHandler) ListDisplayCases(c *gin.Context) {
	cases, err := h.displayCaseService.List(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cases)
}

func (h *DisplayCaseHandler) CreateDisplayCase(c *gin.Context) {
	var req models.CreateDisplayCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dc, err := h.displayCaseService.Create(c.Request.Context(), userID(c), req.Name, req.Description, req.Tags)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dc)
}

// CreateSimpleDisplayCase builds a case from one tag matched literally
func (h *DisplayCaseHandler) CreateSimpleDisplayCase(c *gin.Context) {
	var req models.CreateSimpleDisplayCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dc, err := h.displayCaseService.CreateFromSingleTag(c.Request.Context(), userID(c), req.Name, req.Tag)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dc)
}

func (h *DisplayCaseHandler) PreviewDisplayCase(c *gin.Context) {
	var req models.PreviewDisplayCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cards, err := h.displayCaseService.Preview(c.Request.Context(), userID(c), req.Tags)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": cards, "count": len(cards)})
}

func (h *DisplayCaseHandler) GetDisplayCase(c *gin.Context) {
	dc, err := h.displayCaseService.Get(c.Request.Context(), userID(c), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dc)
}

// UpdateDisplayCase renames or re-describes a case. New tags re-run the
// filter so the stored cards match them.
func (h *DisplayCaseHandler) UpdateDisplayCase(c *gin.Context) {
	var req models.UpdateDisplayCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	user := userID(c)
	name := c.Param("name")

	existing, err := h.displayCaseService.Get(ctx, user, name)
	if err != nil {
		respondError(c, err)
		return
	}

	updated := *existing
	if req.Name != nil {
		updated.Name = *req.Name
	}
	if req.Description != nil {
		updated.Description = *req.Description
	}
	if req.Tags != nil {
		updated.Tags = tags.Normalize(req.Tags)
	}

	dc, err := h.displayCaseService.Update(ctx, user, name, updated)
	if err != nil {
		respondError(c, err)
		return
	}
	if req.Tags != nil {
		if dc, err = h.displayCaseService.Refresh(ctx, user, dc.Name); err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, dc)
}

func (h *DisplayCaseHandler) DeleteDisplayCase(c *gin.Context) {
	if err := h.displayCaseService.Delete(c.Request.Context(), userID(c), c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (h *DisplayCaseHandler) RefreshDisplayCase(c *gin.Context) {
	dc, err := h.displayCaseService.Refresh(c.Request.Context(), userID(c), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dc)
}

func (h *DisplayCaseHandler) ShareDisplayCase(c *gin.Context) {
	url, err := h.displayCaseService.ShareURL(c.Request.Context(), userID(c), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// GetSharedDisplayCase serves a case by its public token without user scoping
func (h *DisplayCaseHandler) GetSharedDisplayCase(c *gin.Context) {
	dc, err := h.displayCaseService.GetShared(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dc)
}

func (h *DisplayCaseHandler) ListTags(c *gin.Context) {
	all, err := h.displayCaseService.ListAllTags(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": all})
}

func (h *DisplayCaseHandler) SuggestTags(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultSuggestLimit)))
	if err != nil || limit <= 0 {
		limit = defaultSuggestLimit
	}

	suggestions, err := h.displayCaseService.SuggestTags(c.Request.Context(), userID(c), c.Query("q"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}
