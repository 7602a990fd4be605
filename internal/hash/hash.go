// Package hash calcula direcciones de contenido deterministas para series de
// velas y resultados de backtest. El hash es a la vez la clave de caché y el
// token de consistencia entre snapshots: dos series con las mismas tuplas
// (timestamp, OHLCV) en el mismo orden canónico siempre producen el mismo
// digest, sin importar el orden de ingestión.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/LautaroIbanez/warren/internal/domain"
)

// Candles devuelve el ContentHash de la serie. Canonicaliza (ordena por
// timestamp, deduplica) antes de hashear; rechaza velas malformadas (NaN,
// timestamps no monotónicos tras el sort) con domain.ErrInvalidInput.
func Candles(series domain.CandleSeries) (domain.ContentHash, error) {
	canon := series.Canonical()
	if err := canon.Validate(); err != nil {
		return "", fmt.Errorf("hash.Candles: %w", err)
	}

	h := sha256.New()
	for _, c := range canon {
		writeRow(h, c.Timestamp.UnixMilli(),
			c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	return domain.ContentHash(hex.EncodeToString(h.Sum(nil))), nil
}

// Backtest compone el hash de las velas de entrada con el contenido del
// ledger de trades y la curva de equity: el digest cambia si cambian las
// velas O los trades.
func Backtest(candlesHash domain.ContentHash, trades []domain.Trade, equity []domain.EquityPoint) domain.ContentHash {
	h := sha256.New()
	h.Write([]byte(candlesHash))
	h.Write([]byte{'\n'})

	for _, t := range trades {
		var exitMs int64
		if t.ExitTime != nil {
			exitMs = t.ExitTime.UnixMilli()
		}
		pnl := 0.0
		if t.PnL != nil {
			pnl = *t.PnL
		}
		exitPrice := 0.0
		if t.ExitPrice != nil {
			exitPrice = *t.ExitPrice
		}
		writeRow(h, t.EntryTime.UnixMilli(), t.EntryPrice, exitPrice, t.StopLoss, t.TakeProfit, pnl)
		writeRow(h, exitMs)
		h.Write([]byte(t.Signal))
		h.Write([]byte{'|'})
		h.Write([]byte(t.ExitReason))
		h.Write([]byte{'\n'})
	}

	for _, p := range equity {
		writeRow(h, p.Timestamp.UnixMilli(), p.Equity)
	}
	return domain.ContentHash(hex.EncodeToString(h.Sum(nil)))
}

// writeRow escribe una fila con formato fijo: enteros en base 10 y flotantes
// en su representación más corta que ida-y-vuelta ('g', -1, 64), separados
// por '|' y terminados en '\n'.
func writeRow(h interface{ Write([]byte) (int, error) }, ms int64, vals ...float64) {
	buf := strconv.AppendInt(nil, ms, 10)
	for _, v := range vals {
		buf = append(buf, '|')
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
	}
	buf = append(buf, '\n')
	h.Write(buf)
}
