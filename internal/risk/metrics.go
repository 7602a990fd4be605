// Package risk calcula métricas de backtest y valida su confiabilidad contra
// los umbrales de política. Ambas operaciones son funciones puras: mismo
// ledger de trades y misma curva de equity producen bit a bit las mismas
// métricas.
package risk

import (
	"math"

	"github.com/LautaroIbanez/warren/internal/domain"
)

const daysPerYear = 365.0

// ComputeMetrics deriva un BacktestMetrics del ledger de trades (posiblemente
// vacío) y la curva de equity ordenada. Nunca devuelve error: un ledger vacío
// produce total_trades = 0 con los campos no calculables en null, jamás en 0,
// para que el validador no confunda "sin datos" con "datos buenos".
func ComputeMetrics(trades []domain.Trade, equity []domain.EquityPoint) domain.BacktestMetrics {
	m := domain.BacktestMetrics{
		TotalTrades:  len(trades),
		WinRate:      domain.NotComputable(),
		ProfitFactor: domain.UndefinedProfitFactor(),
		Expectancy:   domain.NotComputable(),
		CAGR:         domain.NotComputable(),
		SharpeRatio:  domain.NotComputable(),
		MaxDrawdown:  domain.NotComputable(),
		TotalReturn:  domain.NotComputable(),
		PeriodYears:  domain.NotComputable(),
	}

	if len(trades) > 0 {
		var winners int
		var grossProfit, grossLoss, sumPnL float64
		for _, t := range trades {
			pnl := 0.0
			if t.PnL != nil {
				pnl = *t.PnL
			}
			sumPnL += pnl
			switch {
			case pnl > 0:
				winners++
				grossProfit += pnl
			case pnl < 0:
				grossLoss += -pnl
			}
			// Breakeven (pnl == 0) cuenta en el total pero no como winner
		}

		m.WinRate = domain.ComputedMetric(100 * float64(winners) / float64(len(trades)))
		m.Expectancy = domain.ComputedMetric(sumPnL / float64(len(trades)))

		switch {
		case grossLoss == 0 && grossProfit > 0:
			m.ProfitFactor = domain.UnboundedProfitFactor()
		case grossLoss == 0:
			m.ProfitFactor = domain.FiniteProfitFactor(0)
		default:
			m.ProfitFactor = domain.FiniteProfitFactor(grossProfit / grossLoss)
		}
	}

	computeEquityMetrics(&m, equity)
	return m
}

// computeEquityMetrics completa las métricas derivadas de la curva de equity.
func computeEquityMetrics(m *domain.BacktestMetrics, equity []domain.EquityPoint) {
	if len(equity) < 2 {
		return
	}

	start := equity[0].Equity
	end := equity[len(equity)-1].Equity
	daysElapsed := equity[len(equity)-1].Timestamp.Sub(equity[0].Timestamp).Hours() / 24

	if daysElapsed > 0 {
		m.PeriodYears = domain.ComputedMetric(daysElapsed / daysPerYear)
	}

	if start > 0 {
		m.TotalReturn = domain.ComputedMetric((end/start - 1) * 100)
	}

	// CAGR indefinido con menos de un año de datos o equity inicial inválida
	if daysElapsed >= daysPerYear && start > 0 && end > 0 {
		m.CAGR = domain.ComputedMetric(math.Pow(end/start, daysPerYear/daysElapsed) - 1)
	}

	m.MaxDrawdown = domain.ComputedMetric(maxDrawdownPct(equity))

	if sharpe, ok := sharpeRatio(equity); ok {
		m.SharpeRatio = domain.ComputedMetric(sharpe)
	}
}

// maxDrawdownPct devuelve el drawdown máximo sobre picos acumulados, en
// porcentaje. 0 si la curva es monótona no decreciente.
func maxDrawdownPct(equity []domain.EquityPoint) float64 {
	peak := equity[0].Equity
	var maxDD float64
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - p.Equity) / peak * 100
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// sharpeRatio calcula mean/stdev de los retornos por período de la curva de
// equity, sin factor de escala. Indefinido con menos de 2 retornos o con
// desviación cero.
func sharpeRatio(equity []domain.EquityPoint) (float64, bool) {
	var returns []float64
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, equity[i].Equity/prev-1)
	}
	if len(returns) < 2 {
		return 0, false
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	stdev := math.Sqrt(sq / float64(len(returns)-1))
	if stdev == 0 {
		return 0, false
	}
	return mean / stdev, true
}
