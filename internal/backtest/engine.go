// Package backtest simula trades históricos usando las señales del motor de
// estrategia. Es el colaborador runBacktest del motor de consistencia: sus
// trades y su curva de equity alimentan al Metrics Engine.
package backtest

import (
	"context"
	"fmt"
	"math"

	"github.com/LautaroIbanez/warren/internal/domain"
	"github.com/LautaroIbanez/warren/internal/ports"
	"github.com/LautaroIbanez/warren/internal/risk"
)

const (
	defaultInitialCapital = 10000.0
	defaultWarmupCandles  = 50
)

// Engine implementa ports.BacktestRunner.
type Engine struct {
	signals        ports.SignalGenerator
	initialCapital float64
	warmup         int
}

// NewEngine crea un Engine con el generador de señales dado.
func NewEngine(signals ports.SignalGenerator) *Engine {
	return &Engine{
		signals:        signals,
		initialCapital: defaultInitialCapital,
		warmup:         defaultWarmupCandles,
	}
}

// NewEngineWithCapital permite ajustar capital inicial y warmup desde config.
func NewEngineWithCapital(signals ports.SignalGenerator, capital float64, warmup int) *Engine {
	e := NewEngine(signals)
	if capital > 0 {
		e.initialCapital = capital
	}
	if warmup > 0 {
		e.warmup = warmup
	}
	return e
}

// Run simula un trade abierto a la vez sobre la serie: abre con señales
// BUY/SELL que traigan SL/TP válidos, cierra por stop loss o take profit
// intrabar (el stop se verifica primero) y fuerza el cierre al agotar los
// datos. Con menos velas que el warmup devuelve un resultado vacío, sin
// error.
func (e *Engine) Run(ctx context.Context, symbol, interval string, candles domain.CandleSeries) (domain.BacktestResult, error) {
	canon := candles.Canonical()
	if err := canon.Validate(); err != nil {
		return domain.BacktestResult{}, fmt.Errorf("backtest.Run: %w", err)
	}
	if len(canon) < e.warmup {
		return e.emptyResult(fmt.Sprintf("Insufficient candles for backtest: %d (need %d)", len(canon), e.warmup)), nil
	}

	var trades []domain.Trade
	equity := e.initialCapital
	curve := []domain.EquityPoint{{Timestamp: canon[0].Timestamp, Equity: equity}}

	var open *domain.Trade
	for i := e.warmup; i < len(canon); i++ {
		if err := ctx.Err(); err != nil {
			return domain.BacktestResult{}, fmt.Errorf("backtest.Run: %w", err)
		}
		candle := canon[i]

		if open == nil {
			rec, err := e.signals.Generate(ctx, symbol, interval, canon[:i+1])
			if err != nil {
				return domain.BacktestResult{}, fmt.Errorf("backtest.Run: generate signal: %w", err)
			}
			if (rec.Signal == domain.SignalBuy || rec.Signal == domain.SignalSell) &&
				rec.StopLoss != nil && rec.TakeProfit != nil {
				entry := candle.Close
				if rec.EntryPrice != nil {
					entry = *rec.EntryPrice
				}
				open = &domain.Trade{
					EntryTime:  candle.Timestamp,
					EntryPrice: entry,
					StopLoss:   *rec.StopLoss,
					TakeProfit: *rec.TakeProfit,
					Signal:     rec.Signal,
					Confidence: rec.Confidence,
				}
			}
		}

		if open != nil {
			if exitPrice, reason, ok := checkExit(*open, candle); ok {
				closeTrade(open, candle, exitPrice, reason)
				equity += *open.PnL
				trades = append(trades, *open)
				open = nil
			}
		}

		curve = append(curve, domain.EquityPoint{
			Timestamp: candle.Timestamp,
			Equity:    round2(equity),
		})
	}

	// Trade abierto al final: cerrar al último cierre disponible
	if open != nil {
		last := canon[len(canon)-1]
		closeTrade(open, last, last.Close, domain.ExitEndOfData)
		equity += *open.PnL
		trades = append(trades, *open)
		curve[len(curve)-1] = domain.EquityPoint{Timestamp: last.Timestamp, Equity: round2(equity)}
	}

	metrics := risk.ComputeMetrics(trades, curve)
	return domain.BacktestResult{
		Trades:      trades,
		EquityCurve: curve,
		Metrics:     metrics,
	}, nil
}

// checkExit evalúa si la vela toca el stop loss o el take profit del trade.
func checkExit(t domain.Trade, c domain.Candle) (price float64, reason string, ok bool) {
	if t.Signal == domain.SignalBuy {
		if c.Low <= t.StopLoss {
			return t.StopLoss, domain.ExitStopLoss, true
		}
		if c.High >= t.TakeProfit {
			return t.TakeProfit, domain.ExitTakeProfit, true
		}
		return 0, "", false
	}
	// SELL: el stop queda por encima del precio de entrada
	if c.High >= t.StopLoss {
		return t.StopLoss, domain.ExitStopLoss, true
	}
	if c.Low <= t.TakeProfit {
		return t.TakeProfit, domain.ExitTakeProfit, true
	}
	return 0, "", false
}

// closeTrade sella el trade con su salida y PnL realizado.
func closeTrade(t *domain.Trade, c domain.Candle, exitPrice float64, reason string) {
	exitTime := c.Timestamp
	t.ExitTime = &exitTime
	t.ExitPrice = &exitPrice
	t.ExitReason = reason

	var pnl float64
	if t.Signal == domain.SignalBuy {
		pnl = exitPrice - t.EntryPrice
	} else {
		pnl = t.EntryPrice - exitPrice
	}
	pnlPct := pnl / t.EntryPrice * 100

	pnl = round2(pnl)
	pnlPct = round2(pnlPct)
	t.PnL = &pnl
	t.PnLPct = &pnlPct
}

func (e *Engine) emptyResult(reason string) domain.BacktestResult {
	metrics := risk.ComputeMetrics(nil, nil)
	metrics.Reason = reason
	return domain.BacktestResult{Metrics: metrics}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
