package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptionType(t *testing.T) {
	tests := []struct {
		input    string
		expected OptionType
		wantErr  bool
	}{
		{input: "call", expected: OptionTypeCall},
		{input: "CALL", expected: OptionTypeCall},
		{input: "Put", expected: OptionTypePut},
		{input: "straddle", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			parsed, err := ParseOptionType(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, parsed)
		})
	}
}

func TestIntrinsicValue(t *testing.T) {
	call, err := NewMarketSnapshot(110, 100, 1, 0.05, 0.2, OptionTypeCall)
	require.NoError(t, err)
	assert.Equal(t, 10.0, call.IntrinsicValue())

	put, err := NewMarketSnapshot(110, 100, 1, 0.05, 0.2, OptionTypePut)
	require.NoError(t, err)
	assert.Equal(t, 0.0, put.IntrinsicValue())
}

func TestVolatilityRegimeJSONRoundTrip(t *testing.T) {
	for _, regime := range []VolatilityRegime{RegimeFair, RegimeOverpriced, RegimeUnderpriced} {
		data, err := json.Marshal(regime)
		require.NoError(t, err)

		var decoded VolatilityRegime
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, regime, decoded)
	}

	var decoded VolatilityRegime
	require.Error(t, json.Unmarshal([]byte(`"SIDEWAYS"`), &decoded))
}

func TestSignalEventJSONRoundTrip(t *testing.T) {
	event := SignalEvent{
		Symbol:           "TEST260619C00100000",
		UnderlyingSymbol: "TEST",
		Signal: MispricingSignal{
			Report: VolatilityReport{
				HistoricalVol: 0.18,
				ImpliedVol:    0.31,
				Spread:        0.13,
				Regime:        RegimeOverpriced,
			},
			ModelPrice:      6.2,
			MarketPrice:     6.8,
			PriceDivergence: -0.0882,
			GeneratedAt:     time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
		},
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded SignalEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, event, decoded)
}

func TestPriceUpdatePoint(t *testing.T) {
	update := PriceUpdate{
		Symbol: "TEST",
		Date:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Close:  101.25,
	}

	point := update.Point()
	assert.Equal(t, update.Date, point.Date)
	assert.Equal(t, update.Close, point.Close)
}
