package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ReportStopStore 播种报告依赖的站点计数能力
type ReportStopStore interface {
	CountByState(ctx context.Context) (map[string]int, error)
}

// ReportAmenityStore 播种报告依赖的便利设施计数能力
type ReportAmenityStore interface {
	Count(ctx context.Context) (int64, error)
}

// SeedingReport 播种覆盖情况
type SeedingReport struct {
	TotalStops     int            `json:"total_stops"`
	StopsByState   map[string]int `json:"stops_by_state"`
	TotalAmenities int64          `json:"total_amenities"`
}

// ReportService 播种状态报告
type ReportService struct {
	logger    *zap.Logger
	stops     ReportStopStore
	amenities ReportAmenityStore
}

// NewReportService 创建报告服务
func NewReportService(logger *zap.Logger, stops ReportStopStore, amenities ReportAmenityStore) *ReportService {
	return &ReportService{
		logger:    logger,
		stops:     stops,
		amenities: amenities,
	}
}

// SeedingStatus 汇总当前的站点与设施覆盖
func (s *ReportService) SeedingStatus(ctx context.Context) (*SeedingReport, error) {
	byState, err := s.stops.CountByState(ctx)
	if err != nil {
		return nil, fmt.Errorf("count stops by state: %w", err)
	}

	total := 0
	for _, n := range byState {
		total += n
	}

	amenityCount, err := s.amenities.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count amenities: %w", err)
	}

	return &SeedingReport{
		TotalStops:     total,
		StopsByState:   byState,
		TotalAmenities: amenityCount,
	}, nil
}
