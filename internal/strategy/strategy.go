// Package strategy genera la recomendación diaria combinando momentum y
// alineación de tendencia sobre indicadores técnicos. Es el colaborador
// generateSignal del motor de consistencia: nunca devuelve error por falta
// de datos, degrada a HOLD con el motivo en el rationale.
package strategy

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/LautaroIbanez/warren/internal/domain"
)

const (
	minCandlesRequired  = 50
	confidenceThreshold = 0.5
	maxConfidence       = 0.95

	atrMultiplierSL = 2.0
	atrMultiplierTP = 3.0
)

// Engine implementa ports.SignalGenerator.
type Engine struct{}

// NewEngine crea el motor de estrategia.
func NewEngine() *Engine { return &Engine{} }

// Generate produce la recomendación para la última vela de la serie.
//
// BUY cuando la tendencia (EMA 12 > EMA 26), el MACD, el RSI neutro-alcista,
// el precio sobre la SMA 20 y el momentum positivo acumulan score >= 0.5;
// SELL con el espejo bajista; HOLD si no hay convicción suficiente.
func (e *Engine) Generate(_ context.Context, _ string, _ string, candles domain.CandleSeries) (domain.Recommendation, error) {
	canon := candles.Canonical()
	if len(canon) < minCandlesRequired {
		return domain.Recommendation{
			Signal:     domain.SignalHold,
			Confidence: 0,
			Rationale:  fmt.Sprintf("Insufficient data: %d candles (need %d)", len(canon), minCandlesRequired),
		}, nil
	}

	ind := ComputeIndicators(canon)
	i := len(canon) - 1

	// Indicadores críticos sin valor → no hay señal confiable
	critical := []float64{ind.RSI[i], ind.MACD[i], ind.EMA12[i], ind.EMA26[i], ind.SMA20[i], ind.ATR[i]}
	for _, v := range critical {
		if math.IsNaN(v) {
			return domain.Recommendation{
				Signal:     domain.SignalHold,
				Confidence: 0,
				Rationale:  "Insufficient data for indicator calculation (NaN values)",
			}, nil
		}
	}

	signal, confidence, rationale := evaluate(ind, canon[i].Close, i)

	entry := canon[i].Close
	atrValue := ind.ATR[i]
	if math.IsNaN(atrValue) {
		atrValue = entry * 0.02
	}

	rec := domain.Recommendation{
		Signal:     signal,
		Confidence: confidence,
		Rationale:  rationale,
	}
	if signal != domain.SignalHold {
		sl, tp := stopLossTakeProfit(signal, entry, atrValue)
		rec.EntryPrice = &entry
		rec.StopLoss = &sl
		rec.TakeProfit = &tp
	} else {
		rec.EntryPrice = &entry
	}
	return rec, nil
}

// evaluate aplica el scoring de momentum + tendencia en la posición i.
func evaluate(ind Indicators, close float64, i int) (domain.Signal, float64, string) {
	var reasons []string
	var buyScore, sellScore float64

	if !math.IsNaN(ind.EMA12[i]) && !math.IsNaN(ind.EMA26[i]) {
		if ind.EMA12[i] > ind.EMA26[i] {
			buyScore += 0.25
			reasons = append(reasons, "EMA 12 > EMA 26 (uptrend)")
		} else {
			sellScore += 0.25
			reasons = append(reasons, "EMA 12 < EMA 26 (downtrend)")
		}
	}

	if !math.IsNaN(ind.MACD[i]) && !math.IsNaN(ind.MACDSignal[i]) {
		switch {
		case ind.MACD[i] > ind.MACDSignal[i] && ind.MACD[i] > 0:
			buyScore += 0.25
			reasons = append(reasons, "MACD bullish")
		case ind.MACD[i] < ind.MACDSignal[i] && ind.MACD[i] < 0:
			sellScore += 0.25
			reasons = append(reasons, "MACD bearish")
		}
	}

	if rsi := ind.RSI[i]; !math.IsNaN(rsi) {
		switch {
		case rsi >= 40 && rsi <= 70:
			buyScore += 0.20
			reasons = append(reasons, fmt.Sprintf("RSI neutral-bullish (%.1f)", rsi))
		case rsi >= 30 && rsi <= 60:
			sellScore += 0.20
			reasons = append(reasons, fmt.Sprintf("RSI neutral-bearish (%.1f)", rsi))
		case rsi > 70:
			reasons = append(reasons, fmt.Sprintf("RSI overbought (%.1f)", rsi))
		case rsi < 30:
			reasons = append(reasons, fmt.Sprintf("RSI oversold (%.1f)", rsi))
		}
	}

	if !math.IsNaN(ind.SMA20[i]) {
		if close > ind.SMA20[i] {
			buyScore += 0.15
			reasons = append(reasons, "Price > SMA 20")
		} else {
			sellScore += 0.15
			reasons = append(reasons, "Price < SMA 20")
		}
	}

	if mom := ind.Momentum[i]; !math.IsNaN(mom) {
		if mom > 0 {
			buyScore += 0.15
			reasons = append(reasons, "Positive momentum")
		} else {
			sellScore += 0.15
			reasons = append(reasons, "Negative momentum")
		}
	}

	rationale := strings.Join(reasons, "; ")
	switch {
	case buyScore >= confidenceThreshold && buyScore > sellScore:
		return domain.SignalBuy, math.Min(buyScore, maxConfidence), rationale
	case sellScore >= confidenceThreshold && sellScore > buyScore:
		return domain.SignalSell, math.Min(sellScore, maxConfidence), rationale
	}

	confidence := math.Max(buyScore, sellScore)
	if rationale == "" {
		rationale = "No clear signal"
	}
	return domain.SignalHold, confidence, rationale
}

// stopLossTakeProfit calcula SL/TP basados en ATR: 2×ATR de stop y 3×ATR de
// target (riesgo:recompensa 1:1.5), redondeados a 2 decimales.
func stopLossTakeProfit(signal domain.Signal, entry, atr float64) (sl, tp float64) {
	if signal == domain.SignalBuy {
		sl = entry - atrMultiplierSL*atr
		tp = entry + atrMultiplierTP*atr
	} else {
		sl = entry + atrMultiplierSL*atr
		tp = entry - atrMultiplierTP*atr
	}
	return round2(sl), round2(tp)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
