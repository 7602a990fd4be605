// Package notify presenta el resultado de un refresh en consola.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/LautaroIbanez/warren/internal/domain"
)

// Console implementa ports.Notifier escribiendo un resumen tabular.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// ReportRefresh imprime la recomendación del día, las métricas de riesgo y
// los errores por dominio de un ciclo de refresh.
func (c *Console) ReportRefresh(_ context.Context, bundle domain.SnapshotBundle) error {
	now := time.Now().Format("15:04:05")

	if bundle.Recommendation == nil {
		fmt.Fprintf(c.out, "[%s] refresh sin recomendación\n", now)
		c.printErrors(bundle.Errors)
		return nil
	}

	rec := bundle.Recommendation
	fmt.Fprintf(c.out, "\n[%s] %s %s — señal: %s (confianza %.2f)\n",
		now, rec.Symbol, rec.Interval, rec.Signal, rec.Confidence)

	c.printRecommendation(rec)
	if bundle.Risk != nil {
		c.printRisk(bundle.Risk)
	}
	if len(rec.Advisories) > 0 {
		fmt.Fprintf(c.out, "Avisos: %s\n", strings.Join(rec.Advisories, "; "))
	}
	c.printErrors(bundle.Errors)
	return nil
}

func (c *Console) printRecommendation(rec *domain.RecommendationSnapshot) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Campo", "Valor")

	table.Append("Señal", string(rec.Signal))
	table.Append("Confianza", fmt.Sprintf("%.2f", rec.Confidence))
	table.Append("Entrada", priceLabel(rec.EntryPrice))
	table.Append("Stop Loss", priceLabel(rec.StopLoss))
	table.Append("Take Profit", priceLabel(rec.TakeProfit))
	table.Append("Rationale", rec.Rationale)
	table.Append("Hash velas", rec.CandlesHash.Short())
	table.Append("Ventana", fmt.Sprintf("%d días", rec.DataWindow.WindowDays))

	if rec.IsBlocked {
		table.Append("BLOQUEADA", rec.BlockReason)
	}
	if rec.IsStaleSignal {
		table.Append("OBSOLETA", rec.StaleReason)
	}

	table.Render()
}

func (c *Console) printRisk(risk *domain.RiskSnapshot) {
	m := risk.Metrics

	table := tablewriter.NewWriter(c.out)
	table.Header("Métrica", "Valor")

	table.Append("Trades", fmt.Sprintf("%d", m.TotalTrades))
	table.Append("Win rate", metricLabel(m.WinRate, "%.1f%%"))
	table.Append("Profit factor", profitFactorLabel(m.ProfitFactor))
	table.Append("Expectancy", metricLabel(m.Expectancy, "$%.2f"))
	table.Append("Retorno total", metricLabel(m.TotalReturn, "%.2f%%"))
	table.Append("Max drawdown", metricLabel(m.MaxDrawdown, "%.2f%%"))
	table.Append("Sharpe", metricLabel(m.SharpeRatio, "%.2f"))
	table.Append("Confiable", reliableLabel(m.IsReliable, m.Reason))
	table.Append("Cache", cacheLabel(risk.CacheInfo))

	table.Render()
}

func (c *Console) printErrors(errs map[string]string) {
	if len(errs) == 0 {
		return
	}
	for _, key := range []string{"ingestion", "candles", "backtest", "risk", "recommendation"} {
		if msg, ok := errs[key]; ok {
			fmt.Fprintf(c.out, "ERROR %s: %s\n", key, msg)
		}
	}
}

func priceLabel(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *p)
}

func metricLabel(m domain.Metric, format string) string {
	v, ok := m.Value()
	if !ok {
		return "N/A"
	}
	return fmt.Sprintf(format, v)
}

func profitFactorLabel(pf domain.ProfitFactor) string {
	switch pf.Kind() {
	case domain.ProfitFactorUnbounded:
		return "INF"
	case domain.ProfitFactorFinite:
		v, _ := pf.Finite()
		return fmt.Sprintf("%.2f", v)
	default:
		return "N/A"
	}
}

func reliableLabel(reliable bool, reason string) string {
	if reliable {
		return "sí"
	}
	if reason == "" {
		return "no"
	}
	return "no: " + reason
}

func cacheLabel(info domain.CacheInfo) string {
	switch {
	case info.WasRecomputed:
		return "recomputado"
	case info.Cached:
		return "hit"
	default:
		return "miss"
	}
}
