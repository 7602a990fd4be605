package backtest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LautaroIbanez/warren/internal/backtest"
	"github.com/LautaroIbanez/warren/internal/domain"
)

// scriptedSignals devuelve señales precargadas por longitud de prefijo.
type scriptedSignals struct {
	byLen map[int]domain.Recommendation
}

func (s *scriptedSignals) Generate(_ context.Context, _, _ string, candles domain.CandleSeries) (domain.Recommendation, error) {
	if rec, ok := s.byLen[len(candles)]; ok {
		return rec, nil
	}
	return domain.Recommendation{Signal: domain.SignalHold}, nil
}

func flatSeries(n int, close float64) domain.CandleSeries {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(domain.CandleSeries, n)
	for i := range out {
		out[i] = domain.Candle{
			Timestamp: base.AddDate(0, 0, i),
			Open:      close,
			High:      close + 1,
			Low:       close - 1,
			Close:     close,
			Volume:    100,
		}
	}
	return out
}

func buyRec(entry, sl, tp float64) domain.Recommendation {
	return domain.Recommendation{
		Signal:     domain.SignalBuy,
		Confidence: 0.8,
		EntryPrice: &entry,
		StopLoss:   &sl,
		TakeProfit: &tp,
	}
}

func TestRun_BelowWarmupReturnsEmptyResult(t *testing.T) {
	engine := backtest.NewEngine(&scriptedSignals{})

	result, err := engine.Run(context.Background(), "BTCUSDT", "1d", flatSeries(30, 100))
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	assert.Empty(t, result.EquityCurve)
	assert.Equal(t, 0, result.Metrics.TotalTrades)
	assert.Contains(t, result.Metrics.Reason, "30")
	assert.Contains(t, result.Metrics.Reason, "50")
}

func TestRun_TakeProfitExit(t *testing.T) {
	series := flatSeries(60, 100)
	// La vela 55 toca el take profit
	series[55].High = 111

	signals := &scriptedSignals{byLen: map[int]domain.Recommendation{
		51: buyRec(100, 95, 110),
	}}
	engine := backtest.NewEngine(signals)

	result, err := engine.Run(context.Background(), "BTCUSDT", "1d", series)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, domain.ExitTakeProfit, trade.ExitReason)
	require.NotNil(t, trade.ExitPrice)
	assert.Equal(t, 110.0, *trade.ExitPrice)
	require.NotNil(t, trade.PnL)
	assert.Equal(t, 10.0, *trade.PnL)
	require.NotNil(t, trade.PnLPct)
	assert.Equal(t, 10.0, *trade.PnLPct)
}

func TestRun_StopLossCheckedBeforeTakeProfit(t *testing.T) {
	series := flatSeries(60, 100)
	// La vela 55 toca ambos niveles: el stop gana
	series[55].Low = 90
	series[55].High = 115

	signals := &scriptedSignals{byLen: map[int]domain.Recommendation{
		51: buyRec(100, 95, 110),
	}}
	engine := backtest.NewEngine(signals)

	result, err := engine.Run(context.Background(), "BTCUSDT", "1d", series)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, domain.ExitStopLoss, result.Trades[0].ExitReason)
	assert.Equal(t, 95.0, *result.Trades[0].ExitPrice)
	assert.Equal(t, -5.0, *result.Trades[0].PnL)
}

func TestRun_OpenTradeForcedClosedAtEnd(t *testing.T) {
	series := flatSeries(60, 100)
	series[59].Close = 104

	signals := &scriptedSignals{byLen: map[int]domain.Recommendation{
		51: buyRec(100, 50, 200), // niveles inalcanzables
	}}
	engine := backtest.NewEngine(signals)

	result, err := engine.Run(context.Background(), "BTCUSDT", "1d", series)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, domain.ExitEndOfData, trade.ExitReason)
	assert.Equal(t, 104.0, *trade.ExitPrice)
	assert.Equal(t, 4.0, *trade.PnL)
	require.NotNil(t, trade.ExitTime)
	assert.Equal(t, series[59].Timestamp, *trade.ExitTime)
}

func TestRun_OneTradeAtATime(t *testing.T) {
	series := flatSeries(70, 100)
	series[60].High = 111 // cierra el primero

	signals := &scriptedSignals{byLen: map[int]domain.Recommendation{
		51: buyRec(100, 95, 110),
		55: buyRec(100, 95, 110), // se ignora: ya hay un trade abierto
		62: buyRec(100, 50, 200), // segundo trade tras el cierre
	}}
	engine := backtest.NewEngine(signals)

	result, err := engine.Run(context.Background(), "BTCUSDT", "1d", series)
	require.NoError(t, err)
	require.Len(t, result.Trades, 2)
	assert.Equal(t, domain.ExitTakeProfit, result.Trades[0].ExitReason)
	assert.Equal(t, domain.ExitEndOfData, result.Trades[1].ExitReason)
}

func TestRun_SellTradeExits(t *testing.T) {
	series := flatSeries(60, 100)
	series[55].High = 106 // SELL: stop por encima

	entry, sl, tp := 100.0, 105.0, 90.0
	signals := &scriptedSignals{byLen: map[int]domain.Recommendation{
		51: {
			Signal:     domain.SignalSell,
			Confidence: 0.7,
			EntryPrice: &entry,
			StopLoss:   &sl,
			TakeProfit: &tp,
		},
	}}
	engine := backtest.NewEngine(signals)

	result, err := engine.Run(context.Background(), "BTCUSDT", "1d", series)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, domain.ExitStopLoss, result.Trades[0].ExitReason)
	// SELL: pérdida cuando el precio sube hasta el stop
	assert.Equal(t, -5.0, *result.Trades[0].PnL)
}

func TestRun_EquityCurveTracksCapital(t *testing.T) {
	series := flatSeries(60, 100)
	series[55].High = 111

	signals := &scriptedSignals{byLen: map[int]domain.Recommendation{
		51: buyRec(100, 95, 110),
	}}
	engine := backtest.NewEngine(signals)

	result, err := engine.Run(context.Background(), "BTCUSDT", "1d", series)
	require.NoError(t, err)

	require.NotEmpty(t, result.EquityCurve)
	assert.Equal(t, 10000.0, result.EquityCurve[0].Equity)
	assert.Equal(t, 10010.0, result.EquityCurve[len(result.EquityCurve)-1].Equity)
}

func TestRun_HoldWithoutLevelsNeverOpens(t *testing.T) {
	engine := backtest.NewEngine(&scriptedSignals{})

	result, err := engine.Run(context.Background(), "BTCUSDT", "1d", flatSeries(60, 100))
	require.NoError(t, err)
	assert.Empty(t, result.Trades)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := backtest.NewEngine(&scriptedSignals{})
	_, err := engine.Run(ctx, "BTCUSDT", "1d", flatSeries(60, 100))
	assert.ErrorIs(t, err, context.Canceled)
}

// Capital inicial y warmup son configurables: con warmup corto una serie que
// el motor por defecto rechazaría corre igual, y la curva arranca en el
// capital configurado.
func TestRun_ConfiguredCapitalAndWarmup(t *testing.T) {
	series := flatSeries(20, 100)
	series[15].High = 111

	signals := &scriptedSignals{byLen: map[int]domain.Recommendation{
		11: buyRec(100, 95, 110),
	}}
	engine := backtest.NewEngineWithCapital(signals, 5000, 10)

	result, err := engine.Run(context.Background(), "BTCUSDT", "1d", series)
	require.NoError(t, err)

	require.NotEmpty(t, result.EquityCurve)
	assert.Equal(t, 5000.0, result.EquityCurve[0].Equity)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, 5010.0, result.EquityCurve[len(result.EquityCurve)-1].Equity)
}

// Valores no positivos caen a los defaults del motor.
func TestNewEngineWithCapital_NonPositiveFallsBackToDefaults(t *testing.T) {
	engine := backtest.NewEngineWithCapital(&scriptedSignals{}, 0, 0)

	result, err := engine.Run(context.Background(), "BTCUSDT", "1d", flatSeries(30, 100))
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	assert.Contains(t, result.Metrics.Reason, "50")
}
