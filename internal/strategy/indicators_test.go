package strategy_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LautaroIbanez/warren/internal/strategy"
)

func TestComputeIndicators_WarmupIsNaN(t *testing.T) {
	series := trendingUp(60)
	ind := strategy.ComputeIndicators(series)

	// SMA 20: NaN hasta la posición 19
	assert.True(t, math.IsNaN(ind.SMA20[18]))
	assert.False(t, math.IsNaN(ind.SMA20[19]))

	// RSI 14: NaN hasta la posición 14
	assert.True(t, math.IsNaN(ind.RSI[13]))
	assert.False(t, math.IsNaN(ind.RSI[14]))

	// Momentum 10: NaN hasta la posición 10
	assert.True(t, math.IsNaN(ind.Momentum[9]))
	assert.False(t, math.IsNaN(ind.Momentum[10]))
}

func TestComputeIndicators_SMAValue(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	ind := strategy.ComputeIndicators(seriesFromCloses(closes))

	// SMA 20 en la posición 19: promedio de 1..20
	assert.InDelta(t, 10.5, ind.SMA20[19], 1e-9)
	// En la posición 24: promedio de 6..25
	assert.InDelta(t, 15.5, ind.SMA20[24], 1e-9)
}

func TestComputeIndicators_RSIExtremes(t *testing.T) {
	up := trendingUp(40)
	ind := strategy.ComputeIndicators(up)
	// Solo ganancias en la ventana → RSI 100
	assert.InDelta(t, 100, ind.RSI[len(up)-1], 1e-9)

	down := trendingDown(40)
	ind = strategy.ComputeIndicators(down)
	// Solo pérdidas → RSI 0
	assert.InDelta(t, 0, ind.RSI[len(down)-1], 1e-9)
}

func TestComputeIndicators_MACDIsEMADifference(t *testing.T) {
	series := trendingUp(60)
	ind := strategy.ComputeIndicators(series)

	for i := range series {
		require.InDelta(t, ind.EMA12[i]-ind.EMA26[i], ind.MACD[i], 1e-9)
	}
}

// Cada indicador depende solo del pasado: evaluar la última posición sobre
// la serie completa equivale a evaluarla sobre cualquier prefijo que la
// contenga.
func TestComputeIndicators_PrefixConsistency(t *testing.T) {
	series := trendingUp(80)
	full := strategy.ComputeIndicators(series)
	prefix := strategy.ComputeIndicators(series[:60])

	i := 59
	assert.Equal(t, full.EMA12[i], prefix.EMA12[i])
	assert.Equal(t, full.EMA26[i], prefix.EMA26[i])
	assert.Equal(t, full.SMA20[i], prefix.SMA20[i])
	assert.Equal(t, full.RSI[i], prefix.RSI[i])
	assert.Equal(t, full.ATR[i], prefix.ATR[i])
	assert.Equal(t, full.Momentum[i], prefix.Momentum[i])
	assert.Equal(t, full.MACDSignal[i], prefix.MACDSignal[i])
}
