package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"
)

// 规范化运营商名称常量
const (
	NetworkTeslaSupercharger = "Tesla Supercharger"
	NetworkElectrifyAmerica  = "Electrify America"
	NetworkChargePoint       = "ChargePoint"
	NetworkEVgo              = "EVgo"
	NetworkBlink             = "Blink"
	NetworkFrancisEnergy     = "Francis Energy"
	NetworkVolta             = "Volta"
	NetworkUnknown           = "Unknown"
)

// ConnectorList 充电接口类型列表（数据库中存储为 JSON 文本）
type ConnectorList []string

// Value 实现 driver.Valuer 接口，用于存储到数据库
func (c ConnectorList) Value() (driver.Value, error) {
	if c == nil {
		c = ConnectorList{}
	}
	return json.Marshal(c)
}

// Scan 实现 sql.Scanner 接口，用于从数据库读取
func (c *ConnectorList) Scan(value interface{}) error {
	if value == nil {
		*c = ConnectorList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	}
	return nil
}

// Contains 检查列表是否包含指定接口类型
func (c ConnectorList) Contains(connector string) bool {
	for _, v := range c {
		if v == connector {
			return true
		}
	}
	return false
}

// Stop 充电站点
type Stop struct {
	ID                  string        `json:"id" db:"id"`
	NrelID              string        `json:"nrel_id" db:"nrel_id"`
	Name                string        `json:"name" db:"name"`
	Address             string        `json:"address" db:"address"`
	City                string        `json:"city" db:"city"`
	State               string        `json:"state" db:"state"`
	Zip                 string        `json:"zip" db:"zip"`
	Lat                 float64       `json:"lat" db:"lat"`
	Lng                 float64       `json:"lng" db:"lng"`
	Network             string        `json:"network" db:"network"`
	MaxPowerKw          float64       `json:"max_power_kw" db:"max_power_kw"`
	Connectors          ConnectorList `json:"connectors" db:"connectors"`
	HasCcs              bool          `json:"has_ccs" db:"has_ccs"`
	HasNacs             bool          `json:"has_nacs" db:"has_nacs"`
	HasChademo          bool          `json:"has_chademo" db:"has_chademo"`
	TotalStalls         int           `json:"total_stalls" db:"total_stalls"`
	AvailableStalls     int           `json:"available_stalls" db:"available_stalls"`
	CcScore             float64       `json:"cc_score" db:"cc_score"`
	ChargeScoreValue    float64       `json:"charge_score" db:"charge_score"`
	BrewScoreValue      float64       `json:"brew_score" db:"brew_score"`
	ChargeScore         *ChargeScore  `json:"charge_score_detail" db:"charge_score_json"`
	BrewScore           *BrewScore    `json:"brew_score_detail" db:"brew_score_json"`
	BrewScoreComputedAt *time.Time    `json:"brew_score_computed_at" db:"brew_score_computed_at"`
	LastCheckInAt       *time.Time    `json:"last_check_in_at" db:"last_check_in_at"`
	NrelLastConfirmed   *time.Time    `json:"nrel_last_confirmed" db:"nrel_last_confirmed"`
	LastVerifiedAt      time.Time     `json:"last_verified_at" db:"last_verified_at"`
	IsActive            bool          `json:"is_active" db:"is_active"`
	CreatedAt           time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at" db:"updated_at"`
}

// networkRule 运营商名称匹配规则（按声明顺序评估）
type networkRule struct {
	tokens  []string // 全部命中才匹配
	network string
}

// 多词规则必须排在同族单词规则之前，例如 tesla+supercharger 在 tesla 之前
var networkRules = []networkRule{
	{[]string{"tesla", "supercharger"}, NetworkTeslaSupercharger},
	{[]string{"tesla"}, NetworkTeslaSupercharger},
	{[]string{"electrify america"}, NetworkElectrifyAmerica},
	{[]string{"chargepoint"}, NetworkChargePoint},
	{[]string{"evgo"}, NetworkEVgo},
	{[]string{"blink"}, NetworkBlink},
	{[]string{"francis energy"}, NetworkFrancisEnergy},
	{[]string{"volta"}, NetworkVolta},
}

// NormalizeNetwork 将数据源运营商名称规范化为固定枚举，无法识别时返回 Unknown
func NormalizeNetwork(raw string) string {
	n := strings.ToLower(raw)
	for _, rule := range networkRules {
		matched := true
		for _, token := range rule.tokens {
			if !strings.Contains(n, token) {
				matched = false
				break
			}
		}
		if matched {
			return rule.network
		}
	}
	return NetworkUnknown
}
