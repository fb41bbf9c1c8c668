package models

import (
	"database/sql/driver"
	"encoding/json"
)

// ChargeScore 可靠性评分（含各子项，均为 0-5 保留一位小数）
type ChargeScore struct {
	Overall               float64 `json:"overall"`
	UptimeHistory         float64 `json:"uptime_history"`
	RealTimeAvailability  float64 `json:"real_time_availability"`
	CommunityVerification float64 `json:"community_verification"`
	NetworkBenchmark      float64 `json:"network_benchmark"`
}

// BrewScore 便利设施评分（含各子项，均为 0-5 保留一位小数）
type BrewScore struct {
	Overall        float64 `json:"overall"`
	FoodOptions    float64 `json:"food_options"`
	RestroomAccess float64 `json:"restroom_access"`
	RetailQuality  float64 `json:"retail_quality"`
	VenueQuality   float64 `json:"venue_quality"`
	Environment    float64 `json:"environment"`
	HoursCoverage  float64 `json:"hours_coverage"`
}

// Value 实现 driver.Valuer 接口，用于存储到数据库
func (s ChargeScore) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan 实现 sql.Scanner 接口，用于从数据库读取
func (s *ChargeScore) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return nil
}

// Value 实现 driver.Valuer 接口，用于存储到数据库
func (s BrewScore) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan 实现 sql.Scanner 接口，用于从数据库读取
func (s *BrewScore) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return nil
}
