package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeNetwork(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"tesla with supercharger", "Tesla Supercharger Network", NetworkTeslaSupercharger},
		{"bare tesla", "Tesla Destination", NetworkTeslaSupercharger},
		{"multi-token rule wins before single-token", "TESLA supercharger v3", NetworkTeslaSupercharger},
		{"electrify america", "Electrify America LLC", NetworkElectrifyAmerica},
		{"chargepoint", "ChargePoint Network", NetworkChargePoint},
		{"evgo", "eVgo Network", NetworkEVgo},
		{"blink", "Blink Network", NetworkBlink},
		{"unrecognized", "Bob's Backyard Chargers", NetworkUnknown},
		{"empty string", "", NetworkUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeNetwork(tt.raw))
		})
	}
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, CategoryCoffee, NormalizeCategory("coffee_shop"))
	assert.Equal(t, CategoryFood, NormalizeCategory("restaurant"))
	assert.Equal(t, CategoryGas, NormalizeCategory("gas_station"))
	// 表中不存在的源分类兜底为 retail
	assert.Equal(t, CategoryRetail, NormalizeCategory("laser_tag"))
	assert.Equal(t, CategoryRetail, NormalizeCategory(""))
}

func TestConnectorListRoundTrip(t *testing.T) {
	list := ConnectorList{"J1772COMBO", "NACS"}

	value, err := list.Value()
	require.NoError(t, err)

	var decoded ConnectorList
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, list, decoded)
	assert.True(t, decoded.Contains("NACS"))
	assert.False(t, decoded.Contains("CHADEMO"))
}

func TestConnectorListScanNil(t *testing.T) {
	var decoded ConnectorList
	require.NoError(t, decoded.Scan(nil))
	assert.Empty(t, decoded)
}
