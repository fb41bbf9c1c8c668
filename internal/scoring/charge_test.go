package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/brewstop/brewstop/internal/models"
)

func TestChargeWeightsSumToOne(t *testing.T) {
	sum := weightUptimeHistory + weightRealTimeAvailability +
		weightCommunityVerification + weightNetworkBenchmark
	assert.Equal(t, 1.0, sum)
}

func TestRealTimeAvailability(t *testing.T) {
	now := time.Now()

	t.Run("zero total stalls assumes 70 percent", func(t *testing.T) {
		score := CalculateChargeScore(ChargeInput{Network: models.NetworkUnknown, TotalStalls: 0}, now)
		assert.Equal(t, 3.5, score.RealTimeAvailability)
	})

	t.Run("three of ten available", func(t *testing.T) {
		score := CalculateChargeScore(ChargeInput{
			Network: models.NetworkUnknown, TotalStalls: 10, AvailableStalls: 3,
		}, now)
		assert.Equal(t, 1.5, score.RealTimeAvailability)
	})

	t.Run("capped at five", func(t *testing.T) {
		score := CalculateChargeScore(ChargeInput{
			Network: models.NetworkUnknown, TotalStalls: 2, AvailableStalls: 4,
		}, now)
		assert.Equal(t, 5.0, score.RealTimeAvailability)
	})
}

func TestUptimeHistoryPenalty(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	daysAgo := func(d int) *time.Time {
		ts := now.AddDate(0, 0, -d)
		return &ts
	}

	tests := []struct {
		name      string
		confirmed *time.Time
		expected  float64
	}{
		{"confirmed recently, no penalty", daysAgo(30), 4.6},
		{"confirmed 120 days ago, half point", daysAgo(120), 4.1},
		{"confirmed 200 days ago, full point", daysAgo(200), 3.6},
		{"never confirmed counts as a year", nil, 3.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := CalculateChargeScore(ChargeInput{
				Network:           models.NetworkTeslaSupercharger,
				NrelLastConfirmed: tt.confirmed,
			}, now)
			assert.Equal(t, tt.expected, score.UptimeHistory)
		})
	}
}

func TestUptimeHistoryFloorsAtZero(t *testing.T) {
	now := time.Now()
	old := now.AddDate(-1, 0, 0)
	score := CalculateChargeScore(ChargeInput{
		Network:           "No Name Charging Co", // 未知运营商 → 3.0 基准
		NrelLastConfirmed: &old,
	}, now)
	assert.GreaterOrEqual(t, score.UptimeHistory, 0.0)
}

func TestCommunityVerificationTiers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hoursAgo := func(h float64) *time.Time {
		ts := now.Add(-time.Duration(h * float64(time.Hour)))
		return &ts
	}

	tests := []struct {
		name     string
		checkIn  *time.Time
		expected float64
	}{
		{"under one hour", hoursAgo(0.5), 5.0},
		{"under six hours", hoursAgo(3), 4.0},
		{"under a day", hoursAgo(12), 3.0},
		{"under three days", hoursAgo(48), 2.0},
		{"under a week", hoursAgo(100), 1.0},
		{"over a week", hoursAgo(200), 0.5},
		{"never checked in", nil, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := CalculateChargeScore(ChargeInput{
				Network:       models.NetworkUnknown,
				LastCheckInAt: tt.checkIn,
			}, now)
			assert.Equal(t, tt.expected, score.CommunityVerification)
		})
	}
}

func TestNetworkBenchmarkFallback(t *testing.T) {
	assert.Equal(t, 4.6, NetworkBenchmark(models.NetworkTeslaSupercharger))
	assert.Equal(t, 3.0, NetworkBenchmark("Totally New Operator"))
}

func TestChargeScoreRounding(t *testing.T) {
	now := time.Now()
	score := CalculateChargeScore(ChargeInput{
		Network: models.NetworkEVgo, TotalStalls: 3, AvailableStalls: 1,
	}, now)

	for _, v := range []float64{
		score.Overall, score.UptimeHistory, score.RealTimeAvailability,
		score.CommunityVerification, score.NetworkBenchmark,
	} {
		assert.Equal(t, round1(v), v)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 5.0)
	}
}
