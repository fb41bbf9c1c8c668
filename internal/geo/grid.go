package geo

import "fmt"

// DefaultCellDegrees 默认网格边长（约 8-11km），必须 ≥ 最大查询半径，
// 否则 3×3 邻域扫描会漏掉半径内的点
const DefaultCellDegrees = 0.1

// GridPoint 网格中的一个点
type GridPoint struct {
	ID  string
	Lat float64
	Lng float64
}

// Grid 经纬度均匀网格空间索引。构建完成后只读，可被多个 worker 并发查询。
type Grid struct {
	cellDeg float64
	cells   map[string][]GridPoint
}

// NewGrid 用给定点集构建网格索引，cellDeg ≤ 0 时使用默认边长
func NewGrid(points []GridPoint, cellDeg float64) *Grid {
	if cellDeg <= 0 {
		cellDeg = DefaultCellDegrees
	}
	g := &Grid{
		cellDeg: cellDeg,
		cells:   make(map[string][]GridPoint),
	}
	for _, p := range points {
		key := g.key(p.Lat, p.Lng)
		g.cells[key] = append(g.cells[key], p)
	}
	return g
}

func (g *Grid) key(lat, lng float64) string {
	return fmt.Sprintf("%d,%d", cellIndex(lat, g.cellDeg), cellIndex(lng, g.cellDeg))
}

// cellIndex 向负无穷取整，保证负坐标落入正确的格子
func cellIndex(deg, cellDeg float64) int {
	idx := int(deg / cellDeg)
	if deg < 0 && deg != float64(idx)*cellDeg {
		idx--
	}
	return idx
}

// Candidate 半径查询命中的点及精确距离
type Candidate struct {
	Point  GridPoint
	Meters float64
}

// Nearby 返回以 (lat, lng) 为中心、radiusMeters 半径内的全部点。
// 扫描中心格及 8 个邻格做预筛选，再用精确大圆距离过滤。
func (g *Grid) Nearby(lat, lng, radiusMeters float64) []Candidate {
	cLat := cellIndex(lat, g.cellDeg)
	cLng := cellIndex(lng, g.cellDeg)

	var results []Candidate
	for dLat := -1; dLat <= 1; dLat++ {
		for dLng := -1; dLng <= 1; dLng++ {
			key := fmt.Sprintf("%d,%d", cLat+dLat, cLng+dLng)
			for _, p := range g.cells[key] {
				meters := HaversineMeters(lat, lng, p.Lat, p.Lng)
				if meters <= radiusMeters {
					results = append(results, Candidate{Point: p, Meters: meters})
				}
			}
		}
	}
	return results
}

// Size 索引中的点总数
func (g *Grid) Size() int {
	total := 0
	for _, points := range g.cells {
		total += len(points)
	}
	return total
}
