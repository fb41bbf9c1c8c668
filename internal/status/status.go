package status

import (
	"context"
	"hash/fnv"
)

// StallStatus 站点的实时车位状态
type StallStatus struct {
	StopID          string `json:"stop_id"`
	TotalStalls     int    `json:"total_stalls"`
	AvailableStalls int    `json:"available_stalls"`
}

// Provider 实时车位状态来源。评分服务只依赖这个接口，
// 接入真实网关时替换实现即可。
type Provider interface {
	FetchStatus(ctx context.Context, stopID string, totalStalls int) (*StallStatus, error)
}

// MockProvider 确定性的占位实现：没有真实遥测接入前，
// 按站点 ID 散列出稳定的可用比例，保证重复评分不抖动
type MockProvider struct{}

// NewMockProvider 创建占位状态源
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// FetchStatus 返回稳定的伪可用数。比例落在 40%-100% 区间，
// 与真实超充站的典型负载一致。
func (p *MockProvider) FetchStatus(_ context.Context, stopID string, totalStalls int) (*StallStatus, error) {
	if totalStalls <= 0 {
		return &StallStatus{StopID: stopID}, nil
	}

	h := fnv.New32a()
	h.Write([]byte(stopID))
	ratio := 0.4 + float64(h.Sum32()%61)/100.0

	available := int(float64(totalStalls) * ratio)
	if available > totalStalls {
		available = totalStalls
	}
	return &StallStatus{
		StopID:          stopID,
		TotalStalls:     totalStalls,
		AvailableStalls: available,
	}, nil
}
