package models

import "time"

// 内部便利设施分类常量
const (
	CategoryCoffee   = "coffee"
	CategoryFood     = "food"
	CategoryGrocery  = "grocery"
	CategoryRetail   = "retail"
	CategoryGas      = "gas"
	CategoryRestroom = "restroom"
)

// Overture 源分类 → 内部分类映射表
var categoryMap = map[string]string{
	"coffee_shop":       CategoryCoffee,
	"cafe":              CategoryCoffee,
	"fast_food":         CategoryFood,
	"restaurant":        CategoryFood,
	"grocery":           CategoryGrocery,
	"supermarket":       CategoryGrocery,
	"department_store":  CategoryRetail,
	"shopping_mall":     CategoryRetail,
	"convenience_store": CategoryRetail,
	"gas_station":       CategoryGas,
}

// NormalizeCategory 将源分类映射为内部分类，未知分类兜底为 retail
func NormalizeCategory(source string) string {
	if category, ok := categoryMap[source]; ok {
		return category
	}
	return CategoryRetail
}

// Amenity 站点周边的便利设施（与站点按 (stop_id, source_poi_id) 唯一关联）
type Amenity struct {
	ID              string    `json:"id" db:"id"`
	StopID          string    `json:"stop_id" db:"stop_id"`
	SourcePoiID     string    `json:"source_poi_id" db:"source_poi_id"`
	Name            string    `json:"name" db:"name"`
	Brand           string    `json:"brand" db:"brand"`
	Category        string    `json:"category" db:"category"`
	Lat             float64   `json:"lat" db:"lat"`
	Lng             float64   `json:"lng" db:"lng"`
	WalkMeters      int       `json:"walk_meters" db:"walk_meters"`
	WalkMinutes     int       `json:"walk_minutes" db:"walk_minutes"`
	Hours           *string   `json:"hours" db:"hours"`
	Rating          float64   `json:"rating" db:"rating"` // 0 表示无评分数据
	IsIndoor        bool      `json:"is_indoor" db:"is_indoor"`
	HasWifi         bool      `json:"has_wifi" db:"has_wifi"`
	HasFreeRestroom bool      `json:"has_free_restroom" db:"has_free_restroom"`
	HoursUpdatedAt  time.Time `json:"hours_updated_at" db:"hours_updated_at"`
}
