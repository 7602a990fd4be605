// Package policy decide si la señal del día se muestra, se marca como
// obsoleta o se bloquea, combinando el veredicto de confiabilidad, la
// frescura de las velas y la suficiencia de la ventana de datos.
package policy

import (
	"fmt"
	"time"

	"github.com/LautaroIbanez/warren/internal/domain"
)

// Config son los umbrales de la capa de recomendación. MinDataWindowDays
// (730) es independiente de la ventana de confiabilidad de riesgo (90) del
// validador: el primero juzga si hay historia suficiente para confiar en la
// señal, el segundo si las métricas son estadísticamente confiables.
type Config struct {
	StaleCandleHours  float64
	MinDataWindowDays int
}

// DefaultConfig devuelve los umbrales de producción.
func DefaultConfig() Config {
	return Config{
		StaleCandleHours:  24,
		MinDataWindowDays: 730,
	}
}

// Input es todo lo que el motor necesita para decidir.
type Input struct {
	Symbol       string
	Interval     string
	Candidate    domain.Recommendation
	Violations   []domain.PolicyViolation
	Window       domain.DataWindow
	LatestCandle time.Time
	AsOf         time.Time
	CandlesHash  domain.ContentHash
}

// Apply construye el snapshot final aplicando el orden de decisión:
//
//  1. ventana de datos insuficiente → advisory no bloqueante (la señal se
//     muestra igual, pero marcada);
//  2. violaciones de confiabilidad → bloqueada: señal forzada a HOLD,
//     confianza 0, todas las razones en orden de evaluación;
//  3. última vela más vieja que el umbral → señal marcada como obsoleta,
//     precios retenidos.
//
// Bloqueo y staleness son booleanos independientes: en presentación el
// bloqueo tiene precedencia, pero un consumidor puede ver ambos hechos.
func Apply(in Input, cfg Config) domain.RecommendationSnapshot {
	snap := domain.RecommendationSnapshot{
		Symbol:      in.Symbol,
		Interval:    in.Interval,
		Signal:      in.Candidate.Signal,
		Confidence:  in.Candidate.Confidence,
		EntryPrice:  in.Candidate.EntryPrice,
		StopLoss:    in.Candidate.StopLoss,
		TakeProfit:  in.Candidate.TakeProfit,
		Rationale:   in.Candidate.Rationale,
		AsOf:        in.AsOf,
		CandlesHash: in.CandlesHash,
		DataWindow:  in.Window,
	}
	if !in.LatestCandle.IsZero() {
		ts := in.LatestCandle
		snap.SignalTimestamp = &ts
	}

	if in.Window.WindowDays < cfg.MinDataWindowDays {
		snap.Advisories = append(snap.Advisories, fmt.Sprintf(
			"Ventana de datos insuficiente: %d días < %d mínimo requerido",
			in.Window.WindowDays, cfg.MinDataWindowDays))
	}

	if len(in.Violations) > 0 {
		snap.IsBlocked = true
		snap.BlockReason = in.Violations[0].Message
		snap.BlockReasons = make([]string, len(in.Violations))
		for i, v := range in.Violations {
			snap.BlockReasons[i] = v.Message
		}
		snap.Signal = domain.SignalHold
		snap.Confidence = 0
		snap.EntryPrice = nil
		snap.StopLoss = nil
		snap.TakeProfit = nil
	}

	if !in.LatestCandle.IsZero() {
		hours := in.AsOf.Sub(in.LatestCandle).Hours()
		if hours > cfg.StaleCandleHours {
			snap.IsStaleSignal = true
			snap.StaleReason = fmt.Sprintf(
				"Señal basada en datos con %.1f horas de antigüedad (máximo: %.0fh)",
				hours, cfg.StaleCandleHours)
		}
	}

	return snap
}
