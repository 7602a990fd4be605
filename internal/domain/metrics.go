package domain

import (
	"encoding/json"
	"fmt"
)

// MetricState distingue los tres estados de un valor métrico. Un 0.0 real y
// "sin datos" nunca se confunden: los consumidores deben preguntar por el
// estado antes de leer el valor.
type MetricState int

const (
	// MetricNotYetComputed es el zero value: la métrica aún no se calculó.
	MetricNotYetComputed MetricState = iota
	// MetricComputed indica un valor numérico válido.
	MetricComputed
	// MetricNotComputable indica que la métrica no está definida para los
	// inputs dados (ej: sharpe con menos de 2 retornos).
	MetricNotComputable
)

// Metric es un valor numérico de tres estados. Se serializa como número JSON
// cuando está calculado y como null en caso contrario.
type Metric struct {
	state MetricState
	value float64
}

// ComputedMetric crea una métrica calculada con el valor dado.
func ComputedMetric(v float64) Metric {
	return Metric{state: MetricComputed, value: v}
}

// NotComputable crea una métrica marcada como no calculable.
func NotComputable() Metric {
	return Metric{state: MetricNotComputable}
}

// Value devuelve el valor y true solo si la métrica está calculada.
func (m Metric) Value() (float64, bool) {
	return m.value, m.state == MetricComputed
}

// IsComputed devuelve true si la métrica tiene un valor numérico válido.
func (m Metric) IsComputed() bool { return m.state == MetricComputed }

// State devuelve el estado de la métrica.
func (m Metric) State() MetricState { return m.state }

// MarshalJSON serializa como número o null.
func (m Metric) MarshalJSON() ([]byte, error) {
	if m.state != MetricComputed {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

// UnmarshalJSON acepta número o null.
func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = NotComputable()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = ComputedMetric(v)
	return nil
}

// ProfitFactorKind es la variante etiquetada del profit factor.
type ProfitFactorKind int

const (
	// ProfitFactorUndefined: sin trades, el ratio no existe.
	ProfitFactorUndefined ProfitFactorKind = iota
	// ProfitFactorFinite: ratio numérico normal.
	ProfitFactorFinite
	// ProfitFactorUnbounded: gross_loss == 0 con gross_profit > 0. No se
	// representa como +Inf flotante para mantener serialización y
	// comparaciones bien definidas.
	ProfitFactorUnbounded
)

// ProfitFactor es el ratio gross_profit / |gross_loss| como variante
// etiquetada Finite | Unbounded | Undefined.
type ProfitFactor struct {
	kind  ProfitFactorKind
	value float64
}

// FiniteProfitFactor crea un profit factor numérico.
func FiniteProfitFactor(v float64) ProfitFactor {
	return ProfitFactor{kind: ProfitFactorFinite, value: v}
}

// UnboundedProfitFactor crea el profit factor "sin cota superior".
func UnboundedProfitFactor() ProfitFactor {
	return ProfitFactor{kind: ProfitFactorUnbounded}
}

// UndefinedProfitFactor crea el profit factor indefinido (0 trades).
func UndefinedProfitFactor() ProfitFactor {
	return ProfitFactor{kind: ProfitFactorUndefined}
}

// Kind devuelve la variante.
func (p ProfitFactor) Kind() ProfitFactorKind { return p.kind }

// Finite devuelve el valor y true solo para la variante finita.
func (p ProfitFactor) Finite() (float64, bool) {
	return p.value, p.kind == ProfitFactorFinite
}

// MarshalJSON serializa como número (finito), "inf" (sin cota) o null
// (indefinido).
func (p ProfitFactor) MarshalJSON() ([]byte, error) {
	switch p.kind {
	case ProfitFactorFinite:
		return json.Marshal(p.value)
	case ProfitFactorUnbounded:
		return json.Marshal("inf")
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON acepta número, "inf" o null.
func (p *ProfitFactor) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "null":
		*p = UndefinedProfitFactor()
		return nil
	case `"inf"`:
		*p = UnboundedProfitFactor()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("profit factor: %w", err)
	}
	*p = FiniteProfitFactor(v)
	return nil
}

// BacktestMetrics es el registro de métricas derivado de un ledger de trades
// y su curva de equity. Se recalcula cuando el ledger cambia, nunca se muta.
type BacktestMetrics struct {
	TotalTrades  int          `json:"total_trades"`
	WinRate      Metric       `json:"win_rate"`
	ProfitFactor ProfitFactor `json:"profit_factor"`
	Expectancy   Metric       `json:"expectancy"`
	CAGR         Metric       `json:"cagr"`
	SharpeRatio  Metric       `json:"sharpe_ratio"`
	MaxDrawdown  Metric       `json:"max_drawdown"`
	TotalReturn  Metric       `json:"total_return"`
	PeriodYears  Metric       `json:"period_years"`
	IsReliable   bool         `json:"is_reliable"`
	Reason       string       `json:"reason,omitempty"`
}

// ReliabilityValidation es el veredicto de confiabilidad adjunto a cada
// cálculo de métricas. Inmutable.
type ReliabilityValidation struct {
	TradeCount        int    `json:"trade_count"`
	WindowDays        int    `json:"window_days"`
	MinTradesRequired int    `json:"min_trades_required"`
	MinWindowDays     int    `json:"min_window_days"`
	IsReliable        bool   `json:"is_reliable"`
	Reason            string `json:"reason,omitempty"`
}

// PolicyViolation describe un umbral de política incumplido.
type PolicyViolation struct {
	Type      string   `json:"type"`
	Message   string   `json:"message"`
	Actual    *float64 `json:"actual_value,omitempty"`
	Threshold float64  `json:"threshold_value"`
	Metric    string   `json:"metric_name"`
}
