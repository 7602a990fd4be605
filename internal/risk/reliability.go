package risk

import (
	"fmt"
	"strings"

	"github.com/LautaroIbanez/warren/internal/domain"
)

// Thresholds son los umbrales de política reconocidos por el validador.
// MinWindowDays es la ventana mínima de confiabilidad de riesgo (90 días por
// defecto), NO la ventana de suficiencia de datos de la recomendación (730
// días): son dos umbrales independientes que viven en capas distintas.
type Thresholds struct {
	MinTrades         int
	MinWindowDays     int
	MinProfitFactor   float64
	MinTotalReturnPct float64
	MaxDrawdownPct    float64
}

// DefaultThresholds devuelve los umbrales de producción.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinTrades:         30,
		MinWindowDays:     90,
		MinProfitFactor:   1.0,
		MinTotalReturnPct: 0.0,
		MaxDrawdownPct:    50,
	}
}

// Validate evalúa TODOS los umbrales en orden fijo (trades → profit_factor →
// total_return → drawdown → ventana), sin cortocircuito, de modo que el
// reason pueda reportar varias violaciones simultáneas. is_reliable es true
// solo si todos pasan.
func Validate(m domain.BacktestMetrics, tradeCount, windowDays int, th Thresholds) (domain.ReliabilityValidation, []domain.PolicyViolation) {
	var violations []domain.PolicyViolation

	if v := checkTrades(tradeCount, th.MinTrades); v != nil {
		violations = append(violations, *v)
	}
	if v := checkProfitFactor(m.ProfitFactor, th.MinProfitFactor); v != nil {
		violations = append(violations, *v)
	}
	if v := checkTotalReturn(m.TotalReturn, th.MinTotalReturnPct); v != nil {
		violations = append(violations, *v)
	}
	if v := checkMaxDrawdown(m.MaxDrawdown, th.MaxDrawdownPct); v != nil {
		violations = append(violations, *v)
	}
	if v := checkWindowDays(windowDays, th.MinWindowDays); v != nil {
		violations = append(violations, *v)
	}

	validation := domain.ReliabilityValidation{
		TradeCount:        tradeCount,
		WindowDays:        windowDays,
		MinTradesRequired: th.MinTrades,
		MinWindowDays:     th.MinWindowDays,
		IsReliable:        len(violations) == 0,
		Reason:            JoinMessages(violations),
	}
	return validation, violations
}

// JoinMessages concatena los mensajes de violación en orden de evaluación.
func JoinMessages(violations []domain.PolicyViolation) string {
	if len(violations) == 0 {
		return ""
	}
	msgs := make([]string, len(violations))
	for i, v := range violations {
		msgs[i] = v.Message
	}
	return strings.Join(msgs, "; ")
}

func checkTrades(total, min int) *domain.PolicyViolation {
	if total >= min {
		return nil
	}
	actual := float64(total)
	return &domain.PolicyViolation{
		Type:      "insufficient_trades",
		Message:   fmt.Sprintf("Solo %d trades (se necesitan %d+)", total, min),
		Actual:    &actual,
		Threshold: float64(min),
		Metric:    "total_trades",
	}
}

func checkProfitFactor(pf domain.ProfitFactor, min float64) *domain.PolicyViolation {
	switch pf.Kind() {
	case domain.ProfitFactorUnbounded:
		// Sin cota superior siempre es aceptable
		return nil
	case domain.ProfitFactorUndefined:
		return &domain.PolicyViolation{
			Type:      "low_profit_factor",
			Message:   "Profit factor no disponible",
			Threshold: min,
			Metric:    "profit_factor",
		}
	}
	v, _ := pf.Finite()
	if v >= min {
		return nil
	}
	return &domain.PolicyViolation{
		Type:      "low_profit_factor",
		Message:   fmt.Sprintf("Profit factor insuficiente: %.2f < %.2f mínimo requerido", v, min),
		Actual:    &v,
		Threshold: min,
		Metric:    "profit_factor",
	}
}

func checkTotalReturn(tr domain.Metric, min float64) *domain.PolicyViolation {
	v, ok := tr.Value()
	if !ok {
		return &domain.PolicyViolation{
			Type:      "negative_return",
			Message:   "Retorno total no disponible",
			Threshold: min,
			Metric:    "total_return",
		}
	}
	if v > min {
		return nil
	}
	return &domain.PolicyViolation{
		Type:      "negative_return",
		Message:   fmt.Sprintf("Retorno total insuficiente: %.2f%% <= %.2f%% mínimo requerido", v, min),
		Actual:    &v,
		Threshold: min,
		Metric:    "total_return",
	}
}

func checkMaxDrawdown(dd domain.Metric, max float64) *domain.PolicyViolation {
	v, ok := dd.Value()
	if !ok {
		return &domain.PolicyViolation{
			Type:      "high_drawdown",
			Message:   "Drawdown máximo no disponible",
			Threshold: max,
			Metric:    "max_drawdown",
		}
	}
	if v <= max {
		return nil
	}
	return &domain.PolicyViolation{
		Type:      "high_drawdown",
		Message:   fmt.Sprintf("Drawdown máximo excedido: %.2f%% > %.2f%% máximo permitido", v, max),
		Actual:    &v,
		Threshold: max,
		Metric:    "max_drawdown",
	}
}

func checkWindowDays(days, min int) *domain.PolicyViolation {
	if days >= min {
		return nil
	}
	actual := float64(days)
	return &domain.PolicyViolation{
		Type:      "insufficient_window",
		Message:   fmt.Sprintf("Ventana de datos insuficiente: %d días < %d mínimo requerido", days, min),
		Actual:    &actual,
		Threshold: float64(min),
		Metric:    "window_days",
	}
}
