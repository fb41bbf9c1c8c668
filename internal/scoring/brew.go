package scoring

import (
	"math"
	"strings"

	"github.com/brewstop/brewstop/internal/models"
)

// 便利设施评分权重（合计必须恰为 1.0）
const (
	weightFoodOptions    = 0.30
	weightRestroomAccess = 0.20
	weightRetailQuality  = 0.15
	weightVenueQuality   = 0.15
	weightEnvironment    = 0.10
	weightHoursCoverage  = 0.10
)

// 无评分数据时的中性默认值（缺增强数据不扣分）
const neutralVenueRating = 2.5

// CalculateBrewScore 根据站点关联的便利设施计算综合评分
func CalculateBrewScore(amenities []models.Amenity) models.BrewScore {
	var food, restrooms, retail, rated []models.Amenity
	for _, a := range amenities {
		switch a.Category {
		case models.CategoryCoffee, models.CategoryFood:
			food = append(food, a)
		case models.CategoryRetail, models.CategoryGrocery:
			retail = append(retail, a)
		}
		if a.Category == models.CategoryRestroom || a.HasFreeRestroom {
			restrooms = append(restrooms, a)
		}
		if a.Rating > 0 {
			rated = append(rated, a)
		}
	}

	// 餐饮：按步行时间分档加权求和
	foodScore := 0.0
	for _, a := range food {
		switch {
		case a.WalkMinutes <= 2:
			foodScore += 1.5
		case a.WalkMinutes <= 5:
			foodScore += 1.0
		default:
			foodScore += 0.5
		}
	}
	foodScore = math.Min(5, foodScore)

	// 卫生间可达性
	restroomScore := 0.0
	switch {
	case len(restrooms) >= 2:
		restroomScore = 5.0
	case len(restrooms) == 1:
		restroomScore = 3.5
	}

	// 零售
	retailScore := math.Min(5, float64(len(retail))*1.5)

	// 商家质量：有评分的取平均，否则中性默认
	venueScore := neutralVenueRating
	if len(rated) > 0 {
		sum := 0.0
		for _, a := range rated {
			sum += a.Rating
		}
		venueScore = sum / float64(len(rated))
	}

	// 环境：室内占比 + 有无 WiFi
	environmentScore := 0.0
	if len(amenities) > 0 {
		indoorCount := 0
		hasWifi := false
		for _, a := range amenities {
			if a.IsIndoor {
				indoorCount++
			}
			if a.HasWifi {
				hasWifi = true
			}
		}
		environmentScore = float64(indoorCount) / float64(len(amenities)) * 5
		if hasWifi {
			environmentScore++
		}
		environmentScore = math.Min(5, environmentScore)
	}

	// 营业时间覆盖：充电时段（8am-8pm）内营业的比例
	hoursScore := 0.0
	if len(amenities) > 0 {
		openCount := 0
		for _, a := range amenities {
			if likelyOpenDuringChargeWindow(a.Hours) {
				openCount++
			}
		}
		hoursScore = float64(openCount) / float64(len(amenities)) * 5
	}

	overall := foodScore*weightFoodOptions +
		restroomScore*weightRestroomAccess +
		retailScore*weightRetailQuality +
		venueScore*weightVenueQuality +
		environmentScore*weightEnvironment +
		hoursScore*weightHoursCoverage

	return models.BrewScore{
		Overall:        round1(overall),
		FoodOptions:    round1(foodScore),
		RestroomAccess: round1(restroomScore),
		RetailQuality:  round1(retailScore),
		VenueQuality:   round1(venueScore),
		Environment:    round1(environmentScore),
		HoursCoverage:  round1(hoursScore),
	}
}

// likelyOpenDuringChargeWindow 粗略判断充电时段内是否营业。
// 无营业时间数据按营业处理：已知的偏高近似，避免惩罚大多数没有
// 时间数据的 POI。含 ":" 且不含 "closed" 的时间串视为营业。
func likelyOpenDuringChargeWindow(hours *string) bool {
	if hours == nil || *hours == "" {
		return true
	}
	return strings.Contains(*hours, ":") &&
		!strings.Contains(strings.ToLower(*hours), "closed")
}
