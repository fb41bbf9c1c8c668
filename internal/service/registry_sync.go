package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brewstop/brewstop/internal/api/nrel"
	"github.com/brewstop/brewstop/internal/models"
	"github.com/brewstop/brewstop/internal/pipeline"
	"github.com/brewstop/brewstop/internal/state"
	"github.com/brewstop/brewstop/pkg/ws"
)

// TaskRegistrySync 注册表同步任务名
const TaskRegistrySync = "registry-sync"

// DefaultLookbackDays 增量同步回看天数（7 天节奏 + 1 天时钟偏差余量）
const DefaultLookbackDays = 8

// maxConsecutivePageFailures 连续整页失败达到该值时判定数据源不可用，提前收敛
const maxConsecutivePageFailures = 3

// StopStore 同步服务依赖的站点存储能力
type StopStore interface {
	IDsByNrelID(ctx context.Context) (map[string]string, error)
	UpsertBatch(ctx context.Context, stops []models.Stop) error
}

// RegistrySyncService 站点注册表同步服务：从 NREL 逐页拉取
// 公共快充站并合并进本地站点表
type RegistrySyncService struct {
	logger     *zap.Logger
	nrelClient *nrel.Client
	stopStore  StopStore
	runs       *state.Manager
	wsHub      *ws.Hub

	lookbackDays int
	pageDelay    time.Duration
	writerOpts   pipeline.WriterOptions
}

// NewRegistrySyncService 创建注册表同步服务
func NewRegistrySyncService(
	logger *zap.Logger,
	nrelClient *nrel.Client,
	stopStore StopStore,
	runs *state.Manager,
	wsHub *ws.Hub,
) *RegistrySyncService {
	return &RegistrySyncService{
		logger:       logger,
		nrelClient:   nrelClient,
		stopStore:    stopStore,
		runs:         runs,
		wsHub:        wsHub,
		lookbackDays: DefaultLookbackDays,
		pageDelay:    pipeline.DefaultWindowDelay,
		writerOpts:   pipeline.DefaultWriterOptions(),
	}
}

// SetWsHub 挂接进度广播（可选）
func (s *RegistrySyncService) SetWsHub(hub *ws.Hub) {
	s.wsHub = hub
}

// SetLookback 配置增量同步回看天数，非正值保持默认
func (s *RegistrySyncService) SetLookback(days int) {
	if days > 0 {
		s.lookbackDays = days
	}
}

// SetPageDelay 配置页间限速间隔，负值保持默认
func (s *RegistrySyncService) SetPageDelay(d time.Duration) {
	if d >= 0 {
		s.pageDelay = d
	}
}

// SyncOptions 一次同步运行的参数
type SyncOptions struct {
	State       string // 两字母州码
	StartOffset int    // 断点续跑的起始偏移
	MaxPages    int    // 0 表示直到 total 耗尽
	FullSeed    bool   // true 时不带 modified_since，全量播种
}

// SyncSummary 同步运行汇总
type SyncSummary struct {
	State       string `json:"state"`
	Pages       int    `json:"pages"`
	FailedPages int    `json:"failed_pages"`
	Fetched     int    `json:"fetched"`
	Created     int    `json:"created"`
	Updated     int    `json:"updated"`
	Written     int    `json:"written"`
	Failed      int    `json:"failed"`
}

// Sync 执行一次同步运行。逐页经过 fetch → reconcile → write → advance
// 四个阶段。单页拉取或批写失败计入汇总并跳过该页，不终止运行；
// 只有启动期失败（参数缺失、id 映射加载失败）才返回错误。
func (s *RegistrySyncService) Sync(ctx context.Context, opts SyncOptions) (*SyncSummary, error) {
	if opts.State == "" {
		return nil, fmt.Errorf("sync requires a state code")
	}
	stateCode := strings.ToUpper(opts.State)

	machine := s.runs.Start(TaskRegistrySync)
	summary := &SyncSummary{State: stateCode}

	modifiedSince := ""
	if !opts.FullSeed {
		modifiedSince = time.Now().AddDate(0, 0, -s.lookbackDays).Format("2006-01-02")
	}

	s.logger.Info("Starting registry sync",
		zap.String("state", stateCode),
		zap.Int("start_offset", opts.StartOffset),
		zap.String("modified_since", modifiedSince),
		zap.Bool("full_seed", opts.FullSeed))

	// 启动时一次性加载 nrel_id → 内部 id 映射，页处理期间不做单条回查
	knownIDs, err := s.stopStore.IDsByNrelID(ctx)
	if err != nil {
		s.failRun(machine, err)
		return summary, fmt.Errorf("load known stop ids: %w", err)
	}

	writer := pipeline.NewWriter[models.Stop](s.logger, s.writerOpts, nil,
		func(ctx context.Context, batch []models.Stop) error {
			return s.stopStore.UpsertBatch(ctx, batch)
		})

	offset := opts.StartOffset
	total := -1 // 首个成功页之前未知
	consecutiveFailures := 0
	for {
		if opts.MaxPages > 0 && summary.Pages >= opts.MaxPages {
			break
		}

		if err := machine.Trigger(state.EventStartFetch); err != nil {
			s.failRun(machine, err)
			return summary, fmt.Errorf("advance run phase: %w", err)
		}

		var page *nrel.Page
		_, err := s.writerOpts.Retry.Do(ctx, func(ctx context.Context) error {
			var fetchErr error
			page, fetchErr = s.nrelClient.FetchPage(ctx, nrel.PageQuery{
				State:         stateCode,
				Offset:        offset,
				Limit:         nrel.DefaultPageSize,
				ModifiedSince: modifiedSince,
			})
			return fetchErr
		})
		if err != nil {
			if ctx.Err() != nil {
				s.failRun(machine, ctx.Err())
				return summary, ctx.Err()
			}

			// 重试耗尽的页记失败并跳过，按页大小推进偏移继续后面的页
			summary.FailedPages++
			consecutiveFailures++
			s.logger.Error("Page fetch failed, skipping page",
				zap.String("state", stateCode),
				zap.Int("offset", offset),
				zap.Error(err))
			machine.UpdateState(func(rs *state.RunState) {
				rs.LastError = err.Error()
			})
			if err := machine.Trigger(state.EventAdvance); err != nil {
				s.logger.Warn("Failed to advance run phase", zap.Error(err))
			}
			s.broadcastRun(machine)

			if consecutiveFailures >= maxConsecutivePageFailures {
				s.logger.Error("Too many consecutive page failures, stopping early",
					zap.String("state", stateCode),
					zap.Int("failures", consecutiveFailures))
				break
			}
			offset += nrel.DefaultPageSize
			if total >= 0 && offset >= total {
				break
			}

			select {
			case <-time.After(s.pageDelay):
			case <-ctx.Done():
				s.failRun(machine, ctx.Err())
				return summary, ctx.Err()
			}
			continue
		}
		consecutiveFailures = 0
		total = page.Total

		if len(page.Stations) == 0 {
			break
		}

		if err := machine.Trigger(state.EventReconcile); err != nil {
			s.failRun(machine, err)
			return summary, fmt.Errorf("advance run phase: %w", err)
		}

		// 已知外部 id 复用内部 id，未知分配新 uuid
		stops := make([]models.Stop, 0, len(page.Stations))
		for _, station := range page.Stations {
			stop := stationToStop(station)
			if id, ok := knownIDs[stop.NrelID]; ok {
				stop.ID = id
				summary.Updated++
			} else {
				stop.ID = uuid.NewString()
				knownIDs[stop.NrelID] = stop.ID
				summary.Created++
			}
			stops = append(stops, stop)
		}
		summary.Fetched += len(stops)

		if err := machine.Trigger(state.EventWrite); err != nil {
			s.failRun(machine, err)
			return summary, fmt.Errorf("advance run phase: %w", err)
		}

		writeResult := writer.Write(ctx, stops, nil)
		summary.Written += writeResult.Written
		summary.Failed += writeResult.Failed

		if err := machine.Trigger(state.EventAdvance); err != nil {
			s.failRun(machine, err)
			return summary, fmt.Errorf("advance run phase: %w", err)
		}

		summary.Pages++
		offset += len(page.Stations)

		machine.UpdateState(func(rs *state.RunState) {
			rs.Pages = summary.Pages
			rs.Fetched = summary.Fetched
			rs.Written = summary.Written
			rs.Failed = summary.Failed
		})
		s.broadcastRun(machine)

		s.logger.Info("Synced registry page",
			zap.String("state", stateCode),
			zap.Int("page", summary.Pages),
			zap.Int("offset", offset),
			zap.Int("total", total),
			zap.Int("written", writeResult.Written),
			zap.Int("failed", writeResult.Failed))

		if offset >= total {
			break
		}

		// 页间限速
		select {
		case <-time.After(s.pageDelay):
		case <-ctx.Done():
			s.failRun(machine, ctx.Err())
			return summary, ctx.Err()
		}
	}

	if err := machine.Trigger(state.EventFinish); err != nil {
		s.logger.Warn("Failed to finalize run phase", zap.Error(err))
	}
	s.broadcastRun(machine)

	s.logger.Info("Registry sync complete",
		zap.String("state", stateCode),
		zap.Int("pages", summary.Pages),
		zap.Int("failed_pages", summary.FailedPages),
		zap.Int("fetched", summary.Fetched),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("failed", summary.Failed))

	return summary, nil
}

// SyncAll 全量播种：按州逐个全量同步，单州失败不阻断后续州
func (s *RegistrySyncService) SyncAll(ctx context.Context, states []string) (*SyncSummary, error) {
	total := &SyncSummary{State: "ALL"}

	for _, st := range states {
		summary, err := s.Sync(ctx, SyncOptions{State: st, FullSeed: true})
		if summary != nil {
			total.Pages += summary.Pages
			total.FailedPages += summary.FailedPages
			total.Fetched += summary.Fetched
			total.Created += summary.Created
			total.Updated += summary.Updated
			total.Written += summary.Written
			total.Failed += summary.Failed
		}
		if err != nil {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			s.logger.Error("State seed failed, continuing", zap.String("state", st), zap.Error(err))
		}
	}

	return total, nil
}

func (s *RegistrySyncService) failRun(machine *state.Machine, cause error) {
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

func (s *RegistrySyncService) broadcastRun(machine *state.Machine) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.BroadcastRunUpdate(machine.GetState())
}

// stationToStop 将 NREL 站点记录映射为本地站点。缺失字段一律
// 兜底为安全默认值，单条数据不合法不会让整页失败。
func stationToStop(station nrel.Station) models.Stop {
	connectors := models.ConnectorList(station.Connectors())

	dcFast := station.DcFastCount()
	totalStalls := dcFast + station.Level2Count()

	stop := models.Stop{
		NrelID:      strconv.FormatInt(station.ID, 10),
		Name:        station.StationName,
		Address:     station.StreetAddress,
		City:        station.City,
		State:       station.State,
		Zip:         station.Zip,
		Lat:         station.Latitude,
		Lng:         station.Longitude,
		Network:     models.NormalizeNetwork(station.Network()),
		Connectors:  connectors,
		HasCcs:      connectors.Contains("J1772COMBO"),
		HasNacs:     connectors.Contains("TESLA"),
		HasChademo:  connectors.Contains("CHADEMO"),
		TotalStalls: totalStalls,
		IsActive:    station.StatusCode == "E",
	}

	if stop.Name == "" {
		stop.Name = "Unknown Station"
	}

	// DC 快充按典型功率档位估算，只有二级桩时按 19kW
	switch {
	case dcFast > 0 && stop.Network == models.NetworkTeslaSupercharger:
		stop.MaxPowerKw = 250
	case dcFast > 0:
		stop.MaxPowerKw = 150
	case totalStalls > 0:
		stop.MaxPowerKw = 19
	}

	if station.DateLastConfirmed != nil {
		if t, err := time.Parse("2006-01-02", *station.DateLastConfirmed); err == nil {
			stop.NrelLastConfirmed = &t
		}
	}

	return stop
}
