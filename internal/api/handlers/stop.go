package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/brewstop/brewstop/internal/geo"
	"github.com/brewstop/brewstop/internal/models"
)

// DefaultCorridorMiles 路线走廊的默认半宽
const DefaultCorridorMiles = 2.0

// ListStops 按地理包围盒查询站点
// GET /api/stops?north=&south=&east=&west=
func (h *Handler) ListStops(c *gin.Context) {
	box, ok := parseBoundingBox(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bounding box"})
		return
	}

	stops, err := h.stopRepo.ListByBoundingBox(c.Request.Context(), box)
	if err != nil {
		h.logger.Error("Failed to list stops", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list stops"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stops})
}

// GetStop 获取站点详情
func (h *Handler) GetStop(c *gin.Context) {
	stop, err := h.stopRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stop not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stop})
}

// GetStopAmenities 获取站点的便利设施（按步行距离排序）
func (h *Handler) GetStopAmenities(c *gin.Context) {
	amenities, err := h.amenityRepo.ListByStop(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to list amenities", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list amenities"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": amenities})
}

// routeSearchRequest 路线走廊查询请求。coordinates 为 [lng, lat] 对，
// 与路线服务返回的折线格式一致。
type routeSearchRequest struct {
	Coordinates   [][2]float64 `json:"coordinates" binding:"required"`
	CorridorMiles float64      `json:"corridor_miles"`
}

// routeStop 走廊内的站点及其到路线的偏离
type routeStop struct {
	models.Stop
	DetourMiles float64 `json:"detour_miles"`
}

// SearchRoute 查询路线走廊内的站点：先用折线包围盒粗筛，
// 再按到折线的最短距离精筛
// POST /api/stops/route
func (h *Handler) SearchRoute(c *gin.Context) {
	var req routeSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route payload"})
		return
	}
	corridor := req.CorridorMiles
	if corridor <= 0 {
		corridor = DefaultCorridorMiles
	}

	box, err := geo.PolylineBoundingBox(req.Coordinates, corridor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Route needs at least two coordinates"})
		return
	}

	stops, err := h.stopRepo.ListByBoundingBox(c.Request.Context(), box)
	if err != nil {
		h.logger.Error("Failed to list stops for route", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list stops"})
		return
	}

	matches := make([]routeStop, 0, len(stops))
	for _, stop := range stops {
		miles, err := geo.MinDistanceToPolylineMiles(geo.Point{Lat: stop.Lat, Lng: stop.Lng}, req.Coordinates)
		if err != nil {
			continue
		}
		if miles <= corridor {
			matches = append(matches, routeStop{Stop: stop, DetourMiles: miles})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": matches,
		"meta": gin.H{
			"candidates":     len(stops),
			"corridor_miles": corridor,
		},
	})
}

func parseBoundingBox(c *gin.Context) (geo.BoundingBox, bool) {
	north, err1 := strconv.ParseFloat(c.Query("north"), 64)
	south, err2 := strconv.ParseFloat(c.Query("south"), 64)
	east, err3 := strconv.ParseFloat(c.Query("east"), 64)
	west, err4 := strconv.ParseFloat(c.Query("west"), 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || north < south {
		return geo.BoundingBox{}, false
	}
	return geo.BoundingBox{North: north, South: south, East: east, West: west}, true
}
