package geo

import (
	"fmt"
	"math"
)

// 地球半径常量（球面近似）
const (
	EarthRadiusMeters = 6371000.0
	EarthRadiusMiles  = 3958.8
)

// 每度纬度对应的距离（全球近似恒定）
const (
	milesPerDegreeLat  = 69.0
	metersPerDegreeLat = 111320.0
)

// Point 经纬度坐标点
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BoundingBox 经纬度包围盒
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Contains 检查坐标是否在包围盒内
func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.South && lat <= b.North && lng >= b.West && lng <= b.East
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// haversine 求两点间大圆弧的弦心角所对弧长系数
func haversine(aLat, aLng, bLat, bLng float64) float64 {
	dLat := toRad(bLat - aLat)
	dLng := toRad(bLng - aLng)
	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	chord := sinLat*sinLat + math.Cos(toRad(aLat))*math.Cos(toRad(bLat))*sinLng*sinLng
	return 2 * math.Atan2(math.Sqrt(chord), math.Sqrt(1-chord))
}

// HaversineMeters 计算两点间大圆距离（米）
func HaversineMeters(aLat, aLng, bLat, bLng float64) float64 {
	return EarthRadiusMeters * haversine(aLat, aLng, bLat, bLng)
}

// HaversineMiles 计算两点间大圆距离（英里）
func HaversineMiles(a, b Point) float64 {
	return EarthRadiusMiles * haversine(a.Lat, a.Lng, b.Lat, b.Lng)
}

// PointToSegmentMiles 计算点到线段 a→b 的最短距离（英里）。
// 在局部平面近似下把 p 投影到线段上，投影参数截断到 [0,1]，再用大圆距离。
// a == b 退化为点到点距离。
func PointToSegmentMiles(p, a, b Point) float64 {
	dx := b.Lng - a.Lng
	dy := b.Lat - a.Lat
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return HaversineMiles(p, a)
	}
	t := ((p.Lng-a.Lng)*dx + (p.Lat-a.Lat)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return HaversineMiles(p, Point{Lat: a.Lat + t*dy, Lng: a.Lng + t*dx})
}

// MinDistanceToPolylineMiles 计算点到折线的最短距离（英里）。
// coords 为 [lng, lat] 顺序的坐标序列（GeoJSON 约定），长度必须 ≥ 2。
func MinDistanceToPolylineMiles(p Point, coords [][2]float64) (float64, error) {
	if len(coords) < 2 {
		return 0, fmt.Errorf("polyline needs at least 2 coordinates, got %d", len(coords))
	}
	minDist := math.Inf(1)
	for i := 0; i < len(coords)-1; i++ {
		a := Point{Lat: coords[i][1], Lng: coords[i][0]}
		b := Point{Lat: coords[i+1][1], Lng: coords[i+1][0]}
		if d := PointToSegmentMiles(p, a, b); d < minDist {
			minDist = d
		}
	}
	return minDist, nil
}

// RadiusBoundingBox 以 center 为中心、radiusMiles 为半径的包围盒。
// 经度跨度需除以 cos(纬度) 修正子午线收敛，否则高纬度下覆盖不足。
func RadiusBoundingBox(center Point, radiusMiles float64) BoundingBox {
	latDelta := radiusMiles / milesPerDegreeLat
	lngDelta := radiusMiles / (milesPerDegreeLat * math.Cos(toRad(center.Lat)))
	return BoundingBox{
		North: center.Lat + latDelta,
		South: center.Lat - latDelta,
		East:  center.Lng + lngDelta,
		West:  center.Lng - lngDelta,
	}
}

// PolylineBoundingBox 覆盖整条折线并向四周外扩 paddingMiles 的包围盒。
// coords 为 [lng, lat] 顺序，长度必须 ≥ 2。
func PolylineBoundingBox(coords [][2]float64, paddingMiles float64) (BoundingBox, error) {
	if len(coords) < 2 {
		return BoundingBox{}, fmt.Errorf("polyline needs at least 2 coordinates, got %d", len(coords))
	}
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLng, maxLng := math.Inf(1), math.Inf(-1)
	for _, c := range coords {
		minLat = math.Min(minLat, c[1])
		maxLat = math.Max(maxLat, c[1])
		minLng = math.Min(minLng, c[0])
		maxLng = math.Max(maxLng, c[0])
	}
	centerLat := (minLat + maxLat) / 2
	padLat := paddingMiles / milesPerDegreeLat
	padLng := paddingMiles / (milesPerDegreeLat * math.Cos(toRad(centerLat)))
	return BoundingBox{
		North: maxLat + padLat,
		South: minLat - padLat,
		East:  maxLng + padLng,
		West:  minLng - padLng,
	}, nil
}

// LatDeltaDegrees 米 → 纬度跨度（度）
func LatDeltaDegrees(meters float64) float64 {
	return meters / metersPerDegreeLat
}

// LngDeltaDegrees 米 → 经度跨度（度），随纬度升高而放大
func LngDeltaDegrees(meters, lat float64) float64 {
	return meters / (metersPerDegreeLat * math.Cos(toRad(lat)))
}

// MeterBoundingBox 以米为单位外扩的包围盒（用于 POI 库的预筛选查询）
func MeterBoundingBox(lat, lng, radiusMeters float64) BoundingBox {
	latDelta := LatDeltaDegrees(radiusMeters)
	lngDelta := LngDeltaDegrees(radiusMeters, lat)
	return BoundingBox{
		North: lat + latDelta,
		South: lat - latDelta,
		East:  lng + lngDelta,
		West:  lng - lngDelta,
	}
}
