package scoring

import (
	"math"
	"time"

	"github.com/brewstop/brewstop/internal/models"
)

// 可靠性评分权重（合计必须恰为 1.0）
const (
	weightUptimeHistory         = 0.35
	weightRealTimeAvailability  = 0.30
	weightCommunityVerification = 0.20
	weightNetworkBenchmark      = 0.15
)

// 无实时数据时假定 70% 可用率
const assumedAvailableRatio = 0.7

// ChargeInput 可靠性评分输入
type ChargeInput struct {
	Network           string
	TotalStalls       int
	AvailableStalls   int
	LastCheckInAt     *time.Time // nil 表示从未有人签到
	NrelLastConfirmed *time.Time // nil 表示 NREL 无确认日期
}

// round1 四舍五入保留一位小数
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// CalculateChargeScore 计算站点可靠性评分。
// 缺失信号走文档化的中性默认值，永不报错。
func CalculateChargeScore(input ChargeInput, now time.Time) models.ChargeScore {
	benchmark := NetworkBenchmark(input.Network)

	// 正常运行历史：基准分按 NREL 最近确认时间衰减
	daysSinceConfirmed := 365.0
	if input.NrelLastConfirmed != nil {
		daysSinceConfirmed = now.Sub(*input.NrelLastConfirmed).Hours() / 24
	}
	penalty := 0.0
	switch {
	case daysSinceConfirmed > 180:
		penalty = 1.0
	case daysSinceConfirmed > 90:
		penalty = 0.5
	}
	uptime := math.Max(0, benchmark-penalty)

	// 实时可用性：无总桩数数据时用假定可用率
	ratio := assumedAvailableRatio
	if input.TotalStalls > 0 {
		ratio = float64(input.AvailableStalls) / float64(input.TotalStalls)
	}
	availability := math.Min(5, ratio*5)

	community := communityScore(input.LastCheckInAt, now)

	overall := uptime*weightUptimeHistory +
		availability*weightRealTimeAvailability +
		community*weightCommunityVerification +
		benchmark*weightNetworkBenchmark

	return models.ChargeScore{
		Overall:               round1(overall),
		UptimeHistory:         round1(uptime),
		RealTimeAvailability:  round1(availability),
		CommunityVerification: round1(community),
		NetworkBenchmark:      round1(benchmark),
	}
}

// communityScore 按最近签到时间分档
func communityScore(lastCheckInAt *time.Time, now time.Time) float64 {
	if lastCheckInAt == nil {
		return 0.5
	}
	hoursAgo := now.Sub(*lastCheckInAt).Hours()
	switch {
	case hoursAgo < 1:
		return 5.0
	case hoursAgo < 6:
		return 4.0
	case hoursAgo < 24:
		return 3.0
	case hoursAgo < 72:
		return 2.0
	case hoursAgo < 168:
		return 1.0
	default:
		return 0.5
	}
}
