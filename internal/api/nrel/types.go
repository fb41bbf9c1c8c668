package nrel

// Station NREL 充电站记录（缺失字段一律在消费侧兜底，不报错）
type Station struct {
	ID                int64    `json:"id"`
	StationName       string   `json:"station_name"`
	StreetAddress     string   `json:"street_address"`
	City              string   `json:"city"`
	State             string   `json:"state"`
	Zip               string   `json:"zip"`
	Latitude          float64  `json:"latitude"`
	Longitude         float64  `json:"longitude"`
	EvNetwork         *string  `json:"ev_network"`
	EvConnectorTypes  []string `json:"ev_connector_types"`
	EvDcFastNum       *int     `json:"ev_dc_fast_num"`
	EvLevel2EvseNum   *int     `json:"ev_level2_evse_num"`
	StatusCode        string   `json:"status_code"`
	DateLastConfirmed *string  `json:"date_last_confirmed"` // ISO 日期
}

// Page 单页响应，total_results 用于分页控制
type Page struct {
	Stations []Station `json:"fuel_stations"`
	Total    int       `json:"total_results"`
}

// DcFastCount 直流快充桩数，缺失按 0
func (s Station) DcFastCount() int {
	if s.EvDcFastNum == nil {
		return 0
	}
	return *s.EvDcFastNum
}

// Level2Count 二级充电桩数，缺失按 0
func (s Station) Level2Count() int {
	if s.EvLevel2EvseNum == nil {
		return 0
	}
	return *s.EvLevel2EvseNum
}

// Network 原始运营商名称，缺失返回空串
func (s Station) Network() string {
	if s.EvNetwork == nil {
		return ""
	}
	return *s.EvNetwork
}

// Connectors 接口类型列表，缺失返回空列表
func (s Station) Connectors() []string {
	if s.EvConnectorTypes == nil {
		return []string{}
	}
	return s.EvConnectorTypes
}
