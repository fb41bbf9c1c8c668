package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brewstop/brewstop/internal/models"
)

func strPtr(s string) *string { return &s }

func TestBrewWeightsSumToOne(t *testing.T) {
	sum := weightFoodOptions + weightRestroomAccess + weightRetailQuality +
		weightVenueQuality + weightEnvironment + weightHoursCoverage
	assert.Equal(t, 1.0, sum)
}

func TestBrewScoreCoffeeAndRestroom(t *testing.T) {
	amenities := []models.Amenity{
		{Category: models.CategoryCoffee, WalkMinutes: 2, Rating: 0},
		{Category: models.CategoryRestroom, Rating: 0},
	}
	score := CalculateBrewScore(amenities)

	assert.Equal(t, 1.5, score.FoodOptions)
	assert.Equal(t, 3.5, score.RestroomAccess)
	// 无任何已评分设施 → 中性默认
	assert.Equal(t, 2.5, score.VenueQuality)
}

func TestFoodOptionsProximityTiers(t *testing.T) {
	amenities := []models.Amenity{
		{Category: models.CategoryCoffee, WalkMinutes: 1}, // 1.5
		{Category: models.CategoryFood, WalkMinutes: 4},   // 1.0
		{Category: models.CategoryFood, WalkMinutes: 9},   // 0.5
	}
	score := CalculateBrewScore(amenities)
	assert.Equal(t, 3.0, score.FoodOptions)
}

func TestFoodOptionsCappedAtFive(t *testing.T) {
	var amenities []models.Amenity
	for i := 0; i < 10; i++ {
		amenities = append(amenities, models.Amenity{Category: models.CategoryFood, WalkMinutes: 1})
	}
	score := CalculateBrewScore(amenities)
	assert.Equal(t, 5.0, score.FoodOptions)
}

func TestRestroomAccess(t *testing.T) {
	t.Run("two or more qualifying", func(t *testing.T) {
		score := CalculateBrewScore([]models.Amenity{
			{Category: models.CategoryRestroom},
			{Category: models.CategoryGrocery, HasFreeRestroom: true},
		})
		assert.Equal(t, 5.0, score.RestroomAccess)
	})

	t.Run("none", func(t *testing.T) {
		score := CalculateBrewScore([]models.Amenity{
			{Category: models.CategoryCoffee},
		})
		assert.Equal(t, 0.0, score.RestroomAccess)
	})
}

func TestRetailQuality(t *testing.T) {
	score := CalculateBrewScore([]models.Amenity{
		{Category: models.CategoryRetail},
		{Category: models.CategoryGrocery},
	})
	assert.Equal(t, 3.0, score.RetailQuality)
}

func TestVenueQualityAveragesRatedOnly(t *testing.T) {
	score := CalculateBrewScore([]models.Amenity{
		{Category: models.CategoryCoffee, Rating: 4.0},
		{Category: models.CategoryFood, Rating: 3.0},
		{Category: models.CategoryFood, Rating: 0}, // 无数据，不参与均值
	})
	assert.Equal(t, 3.5, score.VenueQuality)
}

func TestEnvironment(t *testing.T) {
	t.Run("no amenities scores zero", func(t *testing.T) {
		score := CalculateBrewScore(nil)
		assert.Equal(t, 0.0, score.Environment)
	})

	t.Run("indoor ratio plus wifi bonus", func(t *testing.T) {
		score := CalculateBrewScore([]models.Amenity{
			{Category: models.CategoryRetail, IsIndoor: true},
			{Category: models.CategoryCoffee, HasWifi: true},
		})
		// 1/2 * 5 + 1 = 3.5
		assert.Equal(t, 3.5, score.Environment)
	})

	t.Run("capped at five", func(t *testing.T) {
		score := CalculateBrewScore([]models.Amenity{
			{Category: models.CategoryRetail, IsIndoor: true, HasWifi: true},
		})
		assert.Equal(t, 5.0, score.Environment)
	})
}

func TestHoursCoverage(t *testing.T) {
	t.Run("missing hours treated as open", func(t *testing.T) {
		score := CalculateBrewScore([]models.Amenity{
			{Category: models.CategoryCoffee, Hours: nil},
			{Category: models.CategoryFood, Hours: strPtr("")},
		})
		assert.Equal(t, 5.0, score.HoursCoverage)
	})

	t.Run("closed string counts as closed", func(t *testing.T) {
		score := CalculateBrewScore([]models.Amenity{
			{Category: models.CategoryCoffee, Hours: strPtr("Mo-Fr 08:00-20:00")},
			{Category: models.CategoryFood, Hours: strPtr("closed")},
		})
		assert.Equal(t, 2.5, score.HoursCoverage)
	})
}

func TestBrewScoreEmptyAmenities(t *testing.T) {
	score := CalculateBrewScore(nil)

	assert.Equal(t, 0.0, score.FoodOptions)
	assert.Equal(t, 0.0, score.RestroomAccess)
	assert.Equal(t, 0.0, score.RetailQuality)
	assert.Equal(t, 2.5, score.VenueQuality)
	assert.Equal(t, 0.0, score.HoursCoverage)
	// overall = venue 中性默认 2.5 * 0.15
	assert.Equal(t, 0.4, score.Overall)
}

func TestBrewScoreOverallWeighting(t *testing.T) {
	amenities := []models.Amenity{
		{Category: models.CategoryCoffee, WalkMinutes: 2, Rating: 4.0, HasWifi: true},
		{Category: models.CategoryGrocery, WalkMinutes: 3, IsIndoor: true, HasFreeRestroom: true},
	}
	score := CalculateBrewScore(amenities)

	// food 1.5*0.30 + restroom 3.5*0.20 + retail 1.5*0.15 + venue 4.0*0.15 +
	// environment 3.5*0.10 + hours 5.0*0.10 = 0.45+0.70+0.225+0.60+0.35+0.50
	assert.Equal(t, 2.8, score.Overall)
}
