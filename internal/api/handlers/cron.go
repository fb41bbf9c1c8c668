package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/brewstop/brewstop/internal/models"
	"github.com/brewstop/brewstop/internal/service"
)

// TriggerSync 触发注册表同步
// POST /api/cron/sync?state=OK&offset=0&full_seed=false
func (h *Handler) TriggerSync(c *gin.Context) {
	stateCode := c.Query("state")
	if stateCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state query parameter is required"})
		return
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	fullSeed, _ := strconv.ParseBool(c.DefaultQuery("full_seed", "false"))

	summary, err := h.syncService.Sync(c.Request.Context(), service.SyncOptions{
		State:       stateCode,
		StartOffset: offset,
		FullSeed:    fullSeed,
	})
	if err != nil {
		h.logger.Error("Registry sync failed", zap.String("state", stateCode), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "summary": summary})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// seedRequest 品牌播种请求，省略 body 时走默认品牌清单
type seedRequest struct {
	Brand      string `json:"brand"`
	WikidataID string `json:"wikidata_id"`
	Category   string `json:"category"`
}

// TriggerSeedAmenities 触发便利设施播种
// POST /api/cron/seed-amenities
func (h *Handler) TriggerSeedAmenities(c *gin.Context) {
	var req seedRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid seed payload"})
		return
	}

	brands := service.DefaultBrands
	if req.WikidataID != "" {
		category := req.Category
		if category == "" {
			category = models.CategoryRetail
		}
		brands = []service.Brand{{Name: req.Brand, WikidataID: req.WikidataID, Category: category}}
	}

	// 单品牌失败计入汇总并继续，只有请求被取消才算失败
	summary, err := h.seeder.SeedBrands(c.Request.Context(), brands)
	if err != nil {
		h.logger.Error("Amenity seeding aborted", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "summary": summary})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

// TriggerRefreshScores 触发评分刷新
// POST /api/cron/refresh-scores
func (h *Handler) TriggerRefreshScores(c *gin.Context) {
	summary, err := h.refresher.Refresh(c.Request.Context())
	if err != nil {
		h.logger.Error("Score refresh failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "summary": summary})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}
