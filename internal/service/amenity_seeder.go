package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/brewstop/brewstop/internal/api/overpass"
	"github.com/brewstop/brewstop/internal/geo"
	"github.com/brewstop/brewstop/internal/matcher"
	"github.com/brewstop/brewstop/internal/models"
	"github.com/brewstop/brewstop/internal/pipeline"
	"github.com/brewstop/brewstop/internal/state"
	"github.com/brewstop/brewstop/pkg/ws"
)

// TaskSeedAmenities 便利设施播种任务名
const TaskSeedAmenities = "seed-amenities"

// StopLister 播种时加载站点锚点集的能力
type StopLister interface {
	ListAll(ctx context.Context) ([]models.Stop, error)
}

// AmenityStore 播种服务依赖的便利设施存储能力
type AmenityStore interface {
	ExistingPairs(ctx context.Context) (map[pipeline.PairKey]struct{}, error)
	InsertBatch(ctx context.Context, amenities []models.Amenity) error
}

// Brand 品牌播种目标
type Brand struct {
	Name       string
	WikidataID string
	Category   string // 内部分类
}

// AmenitySeeder 便利设施播种服务：把外部 POI 匹配到站点并
// 幂等写入关联
type AmenitySeeder struct {
	logger         *zap.Logger
	overpassClient *overpass.Client
	stops          StopLister
	amenities      AmenityStore
	runs           *state.Manager
	wsHub          *ws.Hub

	radiusMeters float64
	writerOpts   pipeline.WriterOptions
}

// NewAmenitySeeder 创建播种服务
func NewAmenitySeeder(
	logger *zap.Logger,
	overpassClient *overpass.Client,
	stops StopLister,
	amenities AmenityStore,
	runs *state.Manager,
	radiusMeters float64,
) *AmenitySeeder {
	if radiusMeters <= 0 {
		radiusMeters = matcher.DefaultRadiusMeters
	}
	return &AmenitySeeder{
		logger:         logger,
		overpassClient: overpassClient,
		stops:          stops,
		amenities:      amenities,
		runs:           runs,
		radiusMeters:   radiusMeters,
		writerOpts:     pipeline.DefaultWriterOptions(),
	}
}

// SetWsHub 挂接进度广播（可选）
func (s *AmenitySeeder) SetWsHub(hub *ws.Hub) {
	s.wsHub = hub
}

// SeedSummary 一次播种运行的汇总
type SeedSummary struct {
	Pois             int `json:"pois"`
	Pairs            int `json:"pairs"`
	SkippedDuplicate int `json:"skipped_duplicate"`
	Written          int `json:"written"`
	Failed           int `json:"failed"`
	FailedBrands     int `json:"failed_brands"`
}

// SeedBrand 按品牌播种：从 Overpass 按 brand:wikidata 抓取全美门店
// 节点，匹配到站点栅格后幂等写入
func (s *AmenitySeeder) SeedBrand(ctx context.Context, brand Brand) (*SeedSummary, error) {
	machine := s.runs.Start(TaskSeedAmenities)

	if err := machine.Trigger(state.EventStartFetch); err != nil {
		return nil, fmt.Errorf("advance run phase: %w", err)
	}
	s.logger.Info("Fetching brand locations from Overpass",
		zap.String("brand", brand.Name),
		zap.String("wikidata_id", brand.WikidataID))

	var nodes []overpass.Node
	_, err := s.writerOpts.Retry.Do(ctx, func(ctx context.Context) error {
		var queryErr error
		nodes, queryErr = s.overpassClient.Query(ctx, overpass.BrandQuery(brand.WikidataID))
		return queryErr
	})
	if err != nil {
		s.failRun(machine, err)
		return nil, fmt.Errorf("fetch brand %s: %w", brand.Name, err)
	}

	pois := make([]matcher.POI, 0, len(nodes))
	for _, node := range nodes {
		poi := matcher.POI{
			SourceID: "osm:" + strconv.FormatInt(node.ID, 10),
			Name:     node.Tag("name"),
			Brand:    brand.Name,
			Category: brand.Category,
			Lat:      node.Lat,
			Lng:      node.Lon,
		}
		if poi.Name == "" {
			poi.Name = brand.Name
		}
		if hours := node.Tag("opening_hours"); hours != "" {
			poi.Hours = &hours
		}
		pois = append(pois, poi)
	}

	return s.seed(ctx, machine, pois)
}

// SeedBrands 按清单逐品牌播种，单品牌失败只计数不阻断后续品牌
func (s *AmenitySeeder) SeedBrands(ctx context.Context, brands []Brand) (*SeedSummary, error) {
	total := &SeedSummary{}

	for _, brand := range brands {
		summary, err := s.SeedBrand(ctx, brand)
		if summary != nil {
			total.Pois += summary.Pois
			total.Pairs += summary.Pairs
			total.SkippedDuplicate += summary.SkippedDuplicate
			total.Written += summary.Written
			total.Failed += summary.Failed
		}
		if err != nil {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			total.FailedBrands++
			s.logger.Error("Brand seeding failed, continuing", zap.String("brand", brand.Name), zap.Error(err))
		}
	}

	return total, nil
}

// SeedPOIs 播种任意 POI 批（Overture 等离线数据源经解析后走这里）
func (s *AmenitySeeder) SeedPOIs(ctx context.Context, pois []matcher.POI) (*SeedSummary, error) {
	machine := s.runs.Start(TaskSeedAmenities)

	if err := machine.Trigger(state.EventStartFetch); err != nil {
		return nil, fmt.Errorf("advance run phase: %w", err)
	}

	return s.seed(ctx, machine, pois)
}

// seed 匹配并写入。进入时运行处于 fetching 阶段。
func (s *AmenitySeeder) seed(ctx context.Context, machine *state.Machine, pois []matcher.POI) (*SeedSummary, error) {
	summary := &SeedSummary{Pois: len(pois)}

	if len(pois) == 0 {
		if err := machine.Trigger(state.EventFinish); err != nil {
			s.logger.Warn("Failed to finalize run phase", zap.Error(err))
		}
		s.logger.Info("No POIs to seed")
		return summary, nil
	}

	if err := machine.Trigger(state.EventReconcile); err != nil {
		s.failRun(machine, err)
		return summary, fmt.Errorf("advance run phase: %w", err)
	}

	// 站点锚点集一次性装入内存栅格
	stops, err := s.stops.ListAll(ctx)
	if err != nil {
		s.failRun(machine, err)
		return summary, fmt.Errorf("load stops: %w", err)
	}

	points := make([]geo.GridPoint, 0, len(stops))
	for _, stop := range stops {
		if !stop.IsActive {
			continue
		}
		points = append(points, geo.GridPoint{ID: stop.ID, Lat: stop.Lat, Lng: stop.Lng})
	}
	grid := geo.NewGrid(points, geo.DefaultCellDegrees)

	m := matcher.New(s.logger, grid, s.radiusMeters)
	candidates := m.MatchAll(pois)
	summary.Pairs = len(candidates)

	// 启动时一次性加载已持久化键集，之后全程内存过滤
	existing, err := s.amenities.ExistingPairs(ctx)
	if err != nil {
		s.failRun(machine, err)
		return summary, fmt.Errorf("load existing amenity pairs: %w", err)
	}

	if err := machine.Trigger(state.EventWrite); err != nil {
		s.failRun(machine, err)
		return summary, fmt.Errorf("advance run phase: %w", err)
	}

	writer := pipeline.NewWriter[models.Amenity](s.logger, s.writerOpts,
		func(a models.Amenity) pipeline.PairKey {
			return pipeline.PairKey{StopID: a.StopID, SourcePoiID: a.SourcePoiID}
		},
		func(ctx context.Context, batch []models.Amenity) error {
			return s.amenities.InsertBatch(ctx, batch)
		})

	result := writer.Write(ctx, candidates, existing)
	summary.SkippedDuplicate = result.SkippedDuplicate
	summary.Written = result.Written
	summary.Failed = result.Failed

	machine.UpdateState(func(rs *state.RunState) {
		rs.Fetched = summary.Pois
		rs.Written = summary.Written
		rs.Skipped = summary.SkippedDuplicate
		rs.Failed = summary.Failed
	})

	if err := machine.Trigger(state.EventAdvance); err != nil {
		s.logger.Warn("Failed to advance run phase", zap.Error(err))
	} else if err := machine.Trigger(state.EventFinish); err != nil {
		s.logger.Warn("Failed to finalize run phase", zap.Error(err))
	}
	s.broadcastRun(machine)

	s.logger.Info("Amenity seeding complete",
		zap.Int("pois", summary.Pois),
		zap.Int("pairs", summary.Pairs),
		zap.Int("skipped_duplicate", summary.SkippedDuplicate),
		zap.Int("written", summary.Written),
		zap.Int("failed", summary.Failed))

	return summary, nil
}

func (s *AmenitySeeder) failRun(machine *state.Machine, cause error) {
	machine.UpdateState(func(rs *state.RunState) {
		rs.LastError = cause.Error()
	})
	if machine.CanTransition(state.EventFail) {
		if err := machine.Trigger(state.EventFail); err != nil {
			s.logger.Warn("Failed to mark run as failed", zap.Error(err))
		}
	}
	s.broadcastRun(machine)
}

func (s *AmenitySeeder) broadcastRun(machine *state.Machine) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.BroadcastRunUpdate(machine.GetState())
}

// DefaultBrands 初始播种的品牌清单
var DefaultBrands = []Brand{
	{Name: "Starbucks", WikidataID: "Q37158", Category: models.CategoryCoffee},
	{Name: "Target", WikidataID: "Q1046951", Category: models.CategoryRetail},
}
