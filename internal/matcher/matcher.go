package matcher

import (
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brewstop/brewstop/internal/geo"
	"github.com/brewstop/brewstop/internal/models"
)

// 匹配默认参数
const (
	DefaultRadiusMeters   = 400.0
	WalkSpeedMetersPerMin = 80.0
)

// POI 外部数据源的兴趣点记录
type POI struct {
	SourceID string  // 数据源的外部标识
	Name     string
	Brand    string
	Category string // 源分类（Overture 或 OSM 标签）
	Lat      float64
	Lng      float64
	Hours    *string
}

// Matcher 把 POI 匹配到半径内的全部站点并归一化为内部便利设施记录
type Matcher struct {
	logger *zap.Logger
	grid   *geo.Grid
	radius float64
}

// New 创建匹配器。grid 为站点空间索引，radiusMeters ≤ 0 时使用默认半径。
func New(logger *zap.Logger, grid *geo.Grid, radiusMeters float64) *Matcher {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	return &Matcher{
		logger: logger,
		grid:   grid,
		radius: radiusMeters,
	}
}

// WalkMinutes 步行时间（分钟），向下不低于 1
func WalkMinutes(meters float64) int {
	minutes := int(math.Round(meters / WalkSpeedMetersPerMin))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// Match 为单个 POI 生成候选关联，半径内每个站点一条。
// 索引只做预筛选，这里用精确距离复核。
func (m *Matcher) Match(poi POI) []models.Amenity {
	candidates := m.grid.Nearby(poi.Lat, poi.Lng, m.radius)
	if len(candidates) == 0 {
		return nil
	}

	category := models.NormalizeCategory(poi.Category)
	now := time.Now()

	amenities := make([]models.Amenity, 0, len(candidates))
	for _, c := range candidates {
		name := poi.Name
		if name == "" {
			name = "Unknown"
		}
		brand := poi.Brand
		if brand == "" {
			brand = name
		}
		amenities = append(amenities, models.Amenity{
			ID:          uuid.NewString(),
			StopID:      c.Point.ID,
			SourcePoiID: poi.SourceID,
			Name:        name,
			Brand:       brand,
			Category:    category,
			Lat:         poi.Lat,
			Lng:         poi.Lng,
			WalkMeters:  int(math.Round(c.Meters)),
			WalkMinutes: WalkMinutes(c.Meters),
			Hours:       poi.Hours,
			Rating:      0, // 评分由后续的增强流程补充
			IsIndoor:    category == models.CategoryRetail || category == models.CategoryGrocery,
			HasWifi:     category == models.CategoryCoffee,
			HasFreeRestroom: category == models.CategoryGrocery ||
				category == models.CategoryRetail,
			HoursUpdatedAt: now,
		})
	}
	return amenities
}

// MatchAll 为一批 POI 生成全部候选关联
func (m *Matcher) MatchAll(pois []POI) []models.Amenity {
	var all []models.Amenity
	for _, poi := range pois {
		all = append(all, m.Match(poi)...)
	}
	m.logger.Debug("Matched POIs against stop grid",
		zap.Int("pois", len(pois)),
		zap.Int("pairs", len(all)),
	)
	return all
}
