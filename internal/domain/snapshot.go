package domain

import "time"

// CandleMetadata acompaña a un snapshot de velas.
type CandleMetadata struct {
	CandlesHash           ContentHash `json:"candles_hash"`
	LatestCandleTimestamp *time.Time  `json:"latest_candle_timestamp"`
	AsOf                  *time.Time  `json:"as_of"`
	Rows                  int         `json:"rows"`
	Freshness             *Freshness  `json:"freshness,omitempty"`
}

// Freshness describe qué tan viejos son los datos frente al umbral de
// staleness configurado.
type Freshness struct {
	AsOf     *time.Time `json:"as_of"`
	IsStale  bool       `json:"is_stale"`
	HoursOld float64    `json:"hours_old"`
	Reason   string     `json:"reason"`
}

// CandleSnapshot es la respuesta del dominio de mercado.
type CandleSnapshot struct {
	Candles  CandleSeries   `json:"candles"`
	Metadata CandleMetadata `json:"metadata"`
	Warnings []string       `json:"warnings,omitempty"`
}

// BacktestSnapshot es la respuesta del dominio de backtest.
type BacktestSnapshot struct {
	Cached      bool            `json:"cached"`
	Trades      []Trade         `json:"trades"`
	EquityCurve []EquityPoint   `json:"equity_curve"`
	Metrics     BacktestMetrics `json:"metrics"`
	Metadata    BacktestMeta    `json:"metadata"`
	Warning     string          `json:"warning,omitempty"`
}

// BacktestMeta identifica las velas sobre las que corrió el backtest.
type BacktestMeta struct {
	Symbol       string      `json:"symbol"`
	Interval     string      `json:"interval"`
	CandlesHash  ContentHash `json:"candles_hash"`
	BacktestHash ContentHash `json:"backtest_hash"`
	CandlesAsOf  *time.Time  `json:"candles_as_of"`
	SavedAt      time.Time   `json:"saved_at"`
}

// CacheValidation es el resultado de validar una entrada de caché contra el
// hash actual de sus inputs. Se calcula fresco en cada lectura, nunca se
// persiste.
type CacheValidation struct {
	IsStale        bool        `json:"is_stale"`
	IsInconsistent bool        `json:"is_inconsistent"`
	Reason         string      `json:"reason,omitempty"`
	CachedHash     ContentHash `json:"cached_hash"`
	CurrentHash    ContentHash `json:"current_hash"`
}

// CacheInfo resume el comportamiento de la caché durante una lectura de
// riesgo.
type CacheInfo struct {
	Cached                  bool             `json:"cached"`
	WasRecomputed           bool             `json:"was_recomputed"`
	ComputedAt              time.Time        `json:"computed_at"`
	CacheValidation         *CacheValidation `json:"cache_validation,omitempty"`
	PreviousCacheValidation *CacheValidation `json:"previous_cache_validation,omitempty"`
}

// RiskStatus es el estado del dominio de riesgo.
type RiskStatus string

const (
	RiskStatusOK       RiskStatus = "ok"
	RiskStatusDegraded RiskStatus = "degraded"
)

// RiskSnapshot es la respuesta del dominio de riesgo.
type RiskSnapshot struct {
	Metrics    BacktestMetrics       `json:"metrics"`
	Validation ReliabilityValidation `json:"validation"`
	CacheInfo  CacheInfo             `json:"cache_info"`
	Status     RiskStatus            `json:"status"`
	Reason     string                `json:"reason,omitempty"`
}

// SnapshotBundle agrupa los cuatro snapshots de dominio de un refresh más el
// mapa de errores por dominio. Es la unidad que devuelve un refresh; el
// orquestador no la retiene después de la respuesta.
type SnapshotBundle struct {
	Recommendation *RecommendationSnapshot `json:"recommendation"`
	Candles        *CandleSnapshot         `json:"candles"`
	Backtest       *BacktestSnapshot       `json:"backtest"`
	Risk           *RiskSnapshot           `json:"risk"`
	Errors         map[string]string       `json:"errors,omitempty"`
}
