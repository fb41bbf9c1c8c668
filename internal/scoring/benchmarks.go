package scoring

import "github.com/brewstop/brewstop/internal/models"

// networkBenchmarks 各运营商可靠性基准分（0-5），来源为公开的正常运行率数据
var networkBenchmarks = map[string]float64{
	models.NetworkTeslaSupercharger: 4.6,
	models.NetworkElectrifyAmerica:  3.8,
	models.NetworkChargePoint:       3.9,
	models.NetworkEVgo:              3.5,
	models.NetworkBlink:             2.8,
	models.NetworkFrancisEnergy:     4.0,
	models.NetworkVolta:             3.6,
	models.NetworkUnknown:           3.0, // 中位数兜底
}

// NetworkBenchmark 返回运营商基准分，未知运营商回落到中位数
func NetworkBenchmark(network string) float64 {
	if v, ok := networkBenchmarks[network]; ok {
		return v
	}
	return networkBenchmarks[models.NetworkUnknown]
}
