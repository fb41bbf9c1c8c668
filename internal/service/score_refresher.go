package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/brewstop/brewstop/internal/api/geoapify"
	"github.com/brewstop/brewstop/internal/matcher"
	"github.com/brewstop/brewstop/internal/models"
	"github.com/brewstop/brewstop/internal/scoring"
	"github.com/brewstop/brewstop/internal/state"
	"github.com/brewstop/brewstop/internal/status"
	"github.com/brewstop/brewstop/pkg/ws"
)

// TaskRefreshScores 评分刷新任务名
const TaskRefreshScores = "refresh-scores"

// 评分刷新默认参数
const (
	DefaultScoreStaleness    = 7 * 24 * time.Hour
	DefaultScoreRefreshLimit = 500

	// 增强结果按坐标近邻回配到既有设施的容差（约 22 米）
	enrichmentMatchDegrees = 0.0002
)

// ScoreStopStore 评分刷新依赖的站点存储能力
type ScoreStopStore interface {
	ListStale(ctx context.Context, threshold time.Time, limit int) ([]models.Stop, error)
	UpdateScores(ctx context.Context, stopID string, charge models.ChargeScore, brew models.BrewScore, computedAt time.Time) error
}

// ScoreAmenityStore 评分刷新依赖的便利设施存储能力
type ScoreAmenityStore interface {
	ListByStop(ctx context.Context, stopID string) ([]models.Amenity, error)
	UpdateEnrichment(ctx context.Context, amenityID string, rating float64, hasWifi, hasFreeRestroom bool) error
}

// ScoreRefresher 评分刷新服务：挑选过期站点，先用 Geoapify
// 补充评分与访问标签，再计算两类评分并持久化
type ScoreRefresher struct {
	logger         *zap.Logger
	geoapifyClient *geoapify.Client
	stops          ScoreStopStore
	amenities      ScoreAmenityStore
	statusProvider status.Provider
	runs           *state.Manager
	wsHub          *ws.Hub

	staleness    time.Duration
	limit        int
	radiusMeters float64
}

// NewScoreRefresher 创建评分刷新服务
func NewScoreRefresher(
	logger *zap.Logger,
	geoapifyClient *geoapify.Client,
	stops ScoreStopStore,
	amenities ScoreAmenityStore,
	statusProvider status.Provider,
	runs *state.Manager,
) *ScoreRefresher {
	return &ScoreRefresher{
		logger:         logger,
		geoapifyClient: geoapifyClient,
		stops:          stops,
		amenities:      amenities,
		statusProvider: statusProvider,
		runs:           runs,
		staleness:      DefaultScoreStaleness,
		limit:          DefaultScoreRefreshLimit,
		radiusMeters:   matcher.DefaultRadiusMeters,
	}
}

// SetWsHub 挂接进度广播（可选）
func (s *ScoreRefresher) SetWsHub(hub *ws.Hub) {
	s.wsHub = hub
}

// SetStaleness 覆盖过期阈值与单轮上限
func (s *ScoreRefresher) SetStaleness(staleness time.Duration, limit int) {
	if staleness > 0 {
		s.staleness = staleness
	}
	if limit > 0 {
		s.limit = limit
	}
}

// RefreshSummary 一次刷新运行的汇总
type RefreshSummary struct {
	Selected int `json:"selected"`
	Scored   int `json:"scored"`
	Enriched int `json:"enriched"`
	Failed   int `json:"failed"`
}

// Refresh 执行一次评分刷新。单站失败只计数，不终止其余站点。
func (s *ScoreRefresher) Refresh(ctx context.Context) (*RefreshSummary, error) {
	machine := s.runs.Start(TaskRefreshScores)
	summary := &RefreshSummary{}
	now := time.Now()

	if err := machine.Trigger(state.EventStartFetch); err != nil {
		return summary, fmt.Errorf("advance run phase: %w", err)
	}

	threshold := now.Add(-s.staleness)
	stops, err := s.stops.ListStale(ctx, threshold, s.limit)
	if err != nil {
		s.failRun(machine, err)
		return summary, fmt.Errorf("list stale stops: %w", err)
	}
	summary.Selected = len(stops)

	if len(stops) == 0 {
		if err := machine.Trigger(state.EventFinish); err != nil {
			s.logger.Warn("Failed to finalize run phase", zap.Error(err))
		}
		s.logger.Info("No stale stops to score")
		return summary, nil
	}

	if err := machine.Trigger(state.EventReconcile); err != nil {
		s.failRun(machine, err)
		return summary, fmt.Errorf("advance run phase: %w", err)
	}
	if err := machine.Trigger(state.EventWrite); err != nil {
		s.failRun(machine, err)
		return summary, fmt.Errorf("advance run phase: %w", err)
	}

	for _, stop := range stops {
		if ctx.Err() != nil {
			s.failRun(machine, ctx.Err())
			return summary, ctx.Err()
		}

		enriched, err := s.refreshStop(ctx, stop, now)
		if err != nil {
			summary.Failed++
			s.logger.Error("Failed to refresh stop score",
				zap.String("stop_id", stop.ID),
				zap.String("name", stop.Name),
				zap.Error(err))
			continue
		}
		summary.Scored++
		summary.Enriched += enriched

		machine.UpdateState(func(rs *state.RunState) {
			rs.Written = summary.Scored
			rs.Failed = summary.Failed
		})
	}

	if err := machine.Trigger(state.EventAdvance); err != nil {
		s.logger.Warn("Failed to advance run phase", zap.Error(err))
	} else if err := machine.Trigger(state.EventFinish); err != nil {
		s.logger.Warn("Failed to finalize run phase", zap.Error(err))
	}
	s.broadcastRun(machine)

	s.logger.Info("Score refresh complete",
		zap.Int("selected", summary.Selected),
		zap.Int("scored", summary.Scored),
		zap.Int("enriched", summary.Enriched),
		zap.Int("failed", summary.Failed))

	return summary, nil
}

// refreshStop 刷新单个站点：增强 → 充电评分 → 设施评分 → 持久化
func (s *ScoreRefresher) refreshStop(ctx context.Context, stop models.Stop, now time.Time) (int, error) {
	amenities, err := s.amenities.ListByStop(ctx, stop.ID)
	if err != nil {
		return 0, fmt.Errorf("list amenities: %w", err)
	}

	enriched := 0
	if s.geoapifyClient != nil && s.geoapifyClient.Enabled() && len(amenities) > 0 {
		n, err := s.enrichAmenities(ctx, stop, amenities)
		if err != nil {
			// 增强失败退回中性默认值，评分照常进行
			s.logger.Warn("Amenity enrichment failed, scoring with defaults",
				zap.String("stop_id", stop.ID),
				zap.Error(err))
		} else {
			enriched = n
		}
	}

	input := scoring.ChargeInput{
		Network:           stop.Network,
		TotalStalls:       stop.TotalStalls,
		AvailableStalls:   stop.AvailableStalls,
		LastCheckInAt:     stop.LastCheckInAt,
		NrelLastConfirmed: stop.NrelLastConfirmed,
	}
	if s.statusProvider != nil {
		if st, err := s.statusProvider.FetchStatus(ctx, stop.ID, stop.TotalStalls); err == nil {
			input.AvailableStalls = st.AvailableStalls
		}
	}

	charge := scoring.CalculateChargeScore(input, now)
	brew := scoring.CalculateBrewScore(amenities)

	if err := s.stops.UpdateScores(ctx, stop.ID, charge, brew, now); err != nil {
		return enriched, fmt.Errorf("persist scores: %w", err)
	}
	return enriched, nil
}

// enrichAmenities 拉取站点周边的 Geoapify 地点并按坐标近邻回配，
// 返回实际更新的设施条数
func (s *ScoreRefresher) enrichAmenities(ctx context.Context, stop models.Stop, amenities []models.Amenity) (int, error) {
	places, err := s.geoapifyClient.FetchNearby(ctx, stop.Lat, stop.Lng, s.radiusMeters)
	if err != nil {
		return 0, fmt.Errorf("fetch nearby places: %w", err)
	}

	updated := 0
	for _, place := range places {
		match := findAmenityByProximity(amenities, place.Properties.Lat, place.Properties.Lon)
		if match == nil {
			continue
		}

		rating := place.Rating()
		hasWifi := place.HasWifi()
		hasRestroom := place.HasFreeRestroom()
		if rating == 0 && !hasWifi && !hasRestroom {
			continue
		}
		if rating == 0 {
			rating = match.Rating
		}

		if err := s.amenities.UpdateEnrichment(ctx, match.ID, rating, hasWifi, hasRestroom); err != nil {
			s.logger.Warn("Failed to persist amenity enrichment",
				zap.String("amenity_id", match.ID),
				zap.Error(err))
			continue
		}

		// 同步内存副本，本轮评分直接受益
		match.Rating = rating
		match.HasWifi = match.HasWifi || hasWifi
		match.HasFreeRestroom = match.HasFreeRestroom || hasRestroom
		updated++
	}
	return updated, nil
}

// findAmenityByProximity 按坐标容差找既有设施，命中多个时取最近的
func findAmenityByProximity(amenities []models.Amenity, lat, lng float64) *models.Amenity {
	var best *models.Amenity
	bestDelta := math.MaxFloat64

	for i := range amenities {
		a := &amenities[i]
		dLat := math.Abs(a.Lat - lat)
		dLng := math.Abs(a.Lng - lng)
		if dLat > enrichmentMatchDegrees || dLng > enrichmentMatchDegrees {
			continue
		}
		delta := dLat + dLng
		if delta < bestDelta {
			best = a
			bestDelta = delta
		}
	}
	return best
}

func (s *ScoreRefresher) failRun(machine *state.Machine, cause error) {
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

func (s *ScoreRefresher) broadcastRun(machine *state.Machine) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.BroadcastRunUpdate(machine.GetState())
}
