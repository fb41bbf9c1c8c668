package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brewstop/brewstop/internal/geo"
	"github.com/brewstop/brewstop/internal/models"
)

// 以 37.0, -122.0 为原点布置站点：0.001 度纬度 ≈ 111m
func testGrid() *geo.Grid {
	return geo.NewGrid([]geo.GridPoint{
		{ID: "stop-a", Lat: 37.0000, Lng: -122.0},
		{ID: "stop-b", Lat: 37.0010, Lng: -122.0},
		{ID: "stop-c", Lat: 37.0020, Lng: -122.0},
		{ID: "stop-far", Lat: 37.2000, Lng: -122.0},
	}, geo.DefaultCellDegrees)
}

func TestMatchAllStopsWithinRadius(t *testing.T) {
	m := New(zap.NewNop(), testGrid(), DefaultRadiusMeters)

	// POI 距 a/b/c 均在 400m 内，距 stop-far 超过 20km
	got := m.Match(POI{SourceID: "poi-1", Name: "Blue Bottle", Category: "coffee_shop", Lat: 37.0010, Lng: -122.0})

	require.Len(t, got, 3)
	stops := map[string]bool{}
	for _, a := range got {
		stops[a.StopID] = true
		assert.Equal(t, "poi-1", a.SourcePoiID)
		assert.Equal(t, models.CategoryCoffee, a.Category)
		assert.LessOrEqual(t, a.WalkMeters, 400)
	}
	assert.Equal(t, map[string]bool{"stop-a": true, "stop-b": true, "stop-c": true}, stops)
}

func TestMatchOutsideRadius(t *testing.T) {
	m := New(zap.NewNop(), testGrid(), DefaultRadiusMeters)
	got := m.Match(POI{SourceID: "poi-2", Name: "Remote Cafe", Category: "coffee_shop", Lat: 37.1, Lng: -122.0})
	assert.Empty(t, got)
}

func TestMatchUnknownCategoryFallsBack(t *testing.T) {
	m := New(zap.NewNop(), testGrid(), DefaultRadiusMeters)
	got := m.Match(POI{SourceID: "poi-3", Name: "Mystery Spot", Category: "tattoo_parlor", Lat: 37.0, Lng: -122.0})

	require.NotEmpty(t, got)
	// 未知源分类兜底为 retail，绝不报错
	assert.Equal(t, models.CategoryRetail, got[0].Category)
}

func TestMatchCoercesMissingFields(t *testing.T) {
	m := New(zap.NewNop(), testGrid(), DefaultRadiusMeters)
	got := m.Match(POI{SourceID: "poi-4", Lat: 37.0, Lng: -122.0})

	require.NotEmpty(t, got)
	assert.Equal(t, "Unknown", got[0].Name)
	assert.Equal(t, "Unknown", got[0].Brand)
	assert.Nil(t, got[0].Hours)
}

func TestWalkMinutes(t *testing.T) {
	tests := []struct {
		name    string
		meters  float64
		minutes int
	}{
		{"zero distance floors at one", 0, 1},
		{"forty meters floors at one", 40, 1},
		{"one hundred sixty meters", 160, 2},
		{"four hundred meters", 400, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.minutes, WalkMinutes(tt.meters))
		})
	}
}

func TestMatchAllEmitsOnePairPerQualifyingStop(t *testing.T) {
	m := New(zap.NewNop(), testGrid(), DefaultRadiusMeters)
	pois := []POI{
		{SourceID: "poi-1", Name: "A", Category: "coffee_shop", Lat: 37.0010, Lng: -122.0}, // 3 站
		{SourceID: "poi-2", Name: "B", Category: "restaurant", Lat: 37.2000, Lng: -122.0},  // 1 站
	}
	got := m.MatchAll(pois)
	assert.Len(t, got, 4)
}
