package domain

import "time"

// ExitReason describe por qué se cerró un trade simulado.
const (
	ExitStopLoss   = "Stop Loss"
	ExitTakeProfit = "Take Profit"
	ExitEndOfData  = "End of data"
)

// Trade es un trade simulado por el runner de backtest. De solo lectura para
// el motor de riesgo: PnL es nil mientras el trade está abierto.
type Trade struct {
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   *time.Time `json:"exit_time"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  *float64   `json:"exit_price"`
	StopLoss   float64    `json:"stop_loss"`
	TakeProfit float64    `json:"take_profit"`
	Signal     Signal     `json:"signal"`
	Confidence float64    `json:"confidence"`
	PnL        *float64   `json:"pnl"`
	PnLPct     *float64   `json:"pnl_pct"`
	ExitReason string     `json:"exit_reason,omitempty"`
}

// Closed devuelve true si el trade ya tiene PnL realizado.
func (t Trade) Closed() bool { return t.PnL != nil }

// EquityPoint es un punto de la curva de equity.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// BacktestResult agrupa el ledger de trades, la curva de equity y las
// métricas calculadas de una corrida de backtest.
type BacktestResult struct {
	Trades      []Trade         `json:"trades"`
	EquityCurve []EquityPoint   `json:"equity_curve"`
	Metrics     BacktestMetrics `json:"metrics"`
}
