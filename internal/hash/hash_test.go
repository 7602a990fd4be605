package hash_test

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LautaroIbanez/warren/internal/domain"
	"github.com/LautaroIbanez/warren/internal/hash"
)

func makeSeries(n int) domain.CandleSeries {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make(domain.CandleSeries, n)
	for i := range series {
		close := 100 + float64(i)
		series[i] = domain.Candle{
			Timestamp: base.AddDate(0, 0, i),
			Open:      close - 1,
			High:      close + 2,
			Low:       close - 2,
			Close:     close,
			Volume:    1000 + float64(i),
		}
	}
	return series
}

func TestCandles_Deterministic(t *testing.T) {
	series := makeSeries(50)

	h1, err := hash.Candles(series)
	require.NoError(t, err)
	h2, err := hash.Candles(series)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, string(h1), 64) // hex de SHA-256
}

func TestCandles_ShuffleInvariant(t *testing.T) {
	series := makeSeries(50)
	want, err := hash.Candles(series)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 5; trial++ {
		shuffled := make(domain.CandleSeries, len(series))
		copy(shuffled, series)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		got, err := hash.Candles(shuffled)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestCandles_PerturbationChangesDigest(t *testing.T) {
	series := makeSeries(50)
	base, err := hash.Candles(series)
	require.NoError(t, err)

	perturbed := make(domain.CandleSeries, len(series))
	copy(perturbed, series)
	perturbed[25].Close += 0.00000001

	got, err := hash.Candles(perturbed)
	require.NoError(t, err)
	assert.NotEqual(t, base, got)
}

func TestCandles_DuplicatesCollapse(t *testing.T) {
	series := makeSeries(10)
	withDup := append(domain.CandleSeries{}, series...)
	withDup = append(withDup, series[3])

	a, err := hash.Candles(series)
	require.NoError(t, err)
	b, err := hash.Candles(withDup)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCandles_RejectsNaN(t *testing.T) {
	series := makeSeries(10)
	series[4].High = math.NaN()

	_, err := hash.Candles(series)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBacktest_ComposesCandlesHash(t *testing.T) {
	series := makeSeries(10)
	h1, err := hash.Candles(series)
	require.NoError(t, err)

	series[9].Close += 1
	h2, err := hash.Candles(series)
	require.NoError(t, err)

	exitTime := series[5].Timestamp
	pnl := 12.5
	exitPrice := 112.5
	trades := []domain.Trade{{
		EntryTime:  series[2].Timestamp,
		EntryPrice: 100,
		ExitTime:   &exitTime,
		ExitPrice:  &exitPrice,
		StopLoss:   95,
		TakeProfit: 115,
		Signal:     domain.SignalBuy,
		PnL:        &pnl,
		ExitReason: domain.ExitTakeProfit,
	}}
	equity := []domain.EquityPoint{
		{Timestamp: series[0].Timestamp, Equity: 10000},
		{Timestamp: series[9].Timestamp, Equity: 10012.5},
	}

	// Mismos trades, velas distintas → digest distinto
	assert.NotEqual(t, hash.Backtest(h1, trades, equity), hash.Backtest(h2, trades, equity))

	// Mismas velas, trades distintos → digest distinto
	altered := make([]domain.Trade, len(trades))
	copy(altered, trades)
	altered[0].EntryPrice = 101
	assert.NotEqual(t, hash.Backtest(h1, trades, equity), hash.Backtest(h1, altered, equity))

	// Determinista
	assert.Equal(t, hash.Backtest(h1, trades, equity), hash.Backtest(h1, trades, equity))
}
