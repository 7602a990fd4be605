package policy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LautaroIbanez/warren/internal/domain"
	"github.com/LautaroIbanez/warren/internal/policy"
	"github.com/LautaroIbanez/warren/internal/risk"
)

var asOf = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func buyCandidate() domain.Recommendation {
	entry, sl, tp := 100.0, 95.0, 110.0
	return domain.Recommendation{
		Signal:     domain.SignalBuy,
		Confidence: 0.85,
		EntryPrice: &entry,
		StopLoss:   &sl,
		TakeProfit: &tp,
		Rationale:  "EMA 12 > EMA 26 (uptrend); Positive momentum",
	}
}

func baseInput() policy.Input {
	return policy.Input{
		Symbol:       "BTCUSDT",
		Interval:     "1d",
		Candidate:    buyCandidate(),
		Window:       domain.DataWindow{WindowDays: 800, Rows: 800},
		LatestCandle: asOf.Add(-2 * time.Hour),
		AsOf:         asOf,
		CandlesHash:  "abc123",
	}
}

func TestApply_CleanSignalPassesThrough(t *testing.T) {
	snap := policy.Apply(baseInput(), policy.DefaultConfig())

	assert.Equal(t, domain.SignalBuy, snap.Signal)
	assert.Equal(t, 0.85, snap.Confidence)
	require.NotNil(t, snap.EntryPrice)
	assert.Equal(t, 100.0, *snap.EntryPrice)
	assert.False(t, snap.IsBlocked)
	assert.False(t, snap.IsStaleSignal)
	assert.Empty(t, snap.Advisories)
	assert.Equal(t, domain.ContentHash("abc123"), snap.CandlesHash)
}

func TestApply_ViolationsBlockSignal(t *testing.T) {
	m := domain.BacktestMetrics{
		TotalTrades:  25,
		ProfitFactor: domain.FiniteProfitFactor(0.8),
		TotalReturn:  domain.ComputedMetric(5.0),
		MaxDrawdown:  domain.ComputedMetric(10.0),
	}
	_, violations := risk.Validate(m, 25, 365, risk.DefaultThresholds())
	require.Len(t, violations, 2)

	in := baseInput()
	in.Violations = violations
	snap := policy.Apply(in, policy.DefaultConfig())

	assert.True(t, snap.IsBlocked)
	assert.Equal(t, domain.SignalHold, snap.Signal)
	assert.Equal(t, 0.0, snap.Confidence)
	assert.Nil(t, snap.EntryPrice)
	assert.Nil(t, snap.StopLoss)
	assert.Nil(t, snap.TakeProfit)

	// block_reasons preserva el orden de evaluación del validador
	require.Len(t, snap.BlockReasons, 2)
	assert.Contains(t, snap.BlockReasons[0], "trades")
	assert.Contains(t, snap.BlockReasons[1], "Profit factor")
	assert.Equal(t, snap.BlockReasons[0], snap.BlockReason)
}

func TestApply_StaleCandleMarksSignal(t *testing.T) {
	in := baseInput()
	in.LatestCandle = asOf.Add(-time.Duration(25.5 * float64(time.Hour)))

	snap := policy.Apply(in, policy.DefaultConfig())

	assert.True(t, snap.IsStaleSignal)
	assert.Contains(t, snap.StaleReason, "25.5")
	assert.Contains(t, snap.StaleReason, "24")

	// Obsoleta pero no bloqueada: los precios se retienen
	assert.False(t, snap.IsBlocked)
	assert.Equal(t, domain.SignalBuy, snap.Signal)
	assert.NotNil(t, snap.EntryPrice)
}

func TestApply_ExactlyAtThresholdNotStale(t *testing.T) {
	in := baseInput()
	in.LatestCandle = asOf.Add(-24 * time.Hour)

	snap := policy.Apply(in, policy.DefaultConfig())
	assert.False(t, snap.IsStaleSignal)
}

func TestApply_BlockedAndStaleAreIndependent(t *testing.T) {
	in := baseInput()
	in.LatestCandle = asOf.Add(-30 * time.Hour)
	in.Violations = []domain.PolicyViolation{{
		Type:    "insufficient_trades",
		Message: "Solo 5 trades (se necesitan 30+)",
	}}

	snap := policy.Apply(in, policy.DefaultConfig())

	assert.True(t, snap.IsBlocked)
	assert.True(t, snap.IsStaleSignal)
	assert.Equal(t, domain.SignalHold, snap.Signal)
}

func TestApply_ShortWindowIsAdvisoryNotBlocking(t *testing.T) {
	in := baseInput()
	in.Window = domain.DataWindow{WindowDays: 400, Rows: 400}

	snap := policy.Apply(in, policy.DefaultConfig())

	// 400 < 730: advisory, la señal se sirve igual
	assert.False(t, snap.IsBlocked)
	assert.Equal(t, domain.SignalBuy, snap.Signal)
	require.Len(t, snap.Advisories, 1)
	assert.Contains(t, snap.Advisories[0], "400")
	assert.Contains(t, snap.Advisories[0], "730")
}

func TestApply_SignalTimestampFromLatestCandle(t *testing.T) {
	in := baseInput()
	snap := policy.Apply(in, policy.DefaultConfig())

	require.NotNil(t, snap.SignalTimestamp)
	assert.Equal(t, in.LatestCandle, *snap.SignalTimestamp)
	assert.Equal(t, asOf, snap.AsOf)
}
