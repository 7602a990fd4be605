package strategy

import (
	"math"

	"github.com/LautaroIbanez/warren/internal/domain"
)

// Indicators contiene las series de indicadores técnicos alineadas con las
// velas de entrada. Las posiciones de warmup valen NaN.
type Indicators struct {
	EMA12      []float64
	EMA26      []float64
	SMA20      []float64
	MACD       []float64
	MACDSignal []float64
	RSI        []float64
	ATR        []float64
	Momentum   []float64
}

// ComputeIndicators calcula todos los indicadores que usa la estrategia.
// Cada serie depende solo del pasado, así que evaluar la posición i sobre la
// serie completa equivale a evaluarla sobre el prefijo [0..i].
func ComputeIndicators(candles domain.CandleSeries) Indicators {
	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	ind := Indicators{
		EMA12:    ema(closes, 12),
		EMA26:    ema(closes, 26),
		SMA20:    sma(closes, 20),
		RSI:      rsi(closes, 14),
		ATR:      atr(highs, lows, closes, 14),
		Momentum: momentum(closes, 10),
	}
	ind.MACD = sub(ind.EMA12, ind.EMA26)
	ind.MACDSignal = ema(ind.MACD, 9)
	return ind
}

// ema es la media móvil exponencial recursiva: alpha = 2/(period+1).
func ema(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = alpha*xs[i] + (1-alpha)*out[i-1]
	}
	return out
}

// sma es la media móvil simple; NaN hasta completar la ventana.
func sma(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	var sum float64
	for i, x := range xs {
		sum += x
		if i >= period {
			sum -= xs[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// rsi usa medias simples de ganancias y pérdidas sobre la ventana.
func rsi(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(xs) <= period {
		return out
	}

	gains := make([]float64, len(xs))
	losses := make([]float64, len(xs))
	for i := 1; i < len(xs); i++ {
		delta := xs[i] - xs[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	for i := period; i < len(xs); i++ {
		var g, l float64
		for j := i - period + 1; j <= i; j++ {
			g += gains[j]
			l += losses[j]
		}
		avgGain := g / float64(period)
		avgLoss := l / float64(period)
		switch {
		case avgLoss == 0 && avgGain == 0:
			out[i] = math.NaN()
		case avgLoss == 0:
			out[i] = 100
		default:
			rs := avgGain / avgLoss
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}

// atr promedia el true range sobre la ventana; NaN hasta completarla.
func atr(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	tr := make([]float64, n)
	for i := 0; i < n; i++ {
		hl := highs[i] - lows[i]
		if i == 0 {
			tr[i] = hl
			continue
		}
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return sma(tr, period)
}

// momentum es la diferencia contra el cierre de hace period velas.
func momentum(xs []float64, period int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if i < period {
			out[i] = math.NaN()
			continue
		}
		out[i] = xs[i] - xs[i-period]
	}
	return out
}

func sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}
