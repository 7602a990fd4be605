package domain

import "time"

// Signal es la señal de trading diaria.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	// SignalHold es el estado seguro/neutral al que se fuerza una señal
	// bloqueada.
	SignalHold Signal = "HOLD"
)

// Recommendation es la recomendación cruda generada por la estrategia,
// antes de pasar por el motor de política.
type Recommendation struct {
	Signal     Signal   `json:"signal"`
	Confidence float64  `json:"confidence"`
	EntryPrice *float64 `json:"entry_price"`
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
	Rationale  string   `json:"rationale"`
}

// RecommendationSnapshot es la recomendación final de un ciclo de refresh,
// con flags de bloqueo y staleness. Se produce una vez por ciclo y se
// consume de solo lectura.
//
// IsBlocked e IsStaleSignal son booleanos independientes, no un enum: un
// consumidor puede detectar "bloqueada Y obsoleta" como hechos distintos.
// En presentación el bloqueo tiene precedencia.
type RecommendationSnapshot struct {
	Symbol          string      `json:"symbol"`
	Interval        string      `json:"interval"`
	Signal          Signal      `json:"signal"`
	Confidence      float64     `json:"confidence"`
	EntryPrice      *float64    `json:"entry_price"`
	StopLoss        *float64    `json:"stop_loss"`
	TakeProfit      *float64    `json:"take_profit"`
	Rationale       string      `json:"rationale"`
	AsOf            time.Time   `json:"as_of"`
	SignalTimestamp *time.Time  `json:"signal_timestamp"`
	CandlesHash     ContentHash `json:"candles_hash"`
	IsStaleSignal   bool        `json:"is_stale_signal"`
	StaleReason     string      `json:"stale_reason,omitempty"`
	IsBlocked       bool        `json:"is_blocked"`
	BlockReason     string      `json:"block_reason,omitempty"`
	BlockReasons    []string    `json:"block_reasons,omitempty"`
	Advisories      []string    `json:"advisories,omitempty"`
	DataWindow      DataWindow  `json:"data_window"`
}
