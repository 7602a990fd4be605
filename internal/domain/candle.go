package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Candle es una vela OHLCV. Inmutable una vez ingestada.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// HasNaN devuelve true si algún valor OHLCV no es un número finito.
func (c Candle) HasNaN() bool {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// CandleSeries es una secuencia de velas. El invariante de la serie canónica
// es timestamps estrictamente crecientes sin duplicados.
type CandleSeries []Candle

// Canonical devuelve una copia ordenada por timestamp y sin duplicados.
// La serie original no se modifica: el orden de ingestión nunca afecta
// el resultado.
func (s CandleSeries) Canonical() CandleSeries {
	out := make(CandleSeries, len(s))
	copy(out, s)
	// Orden estable: entre velas con el mismo timestamp debe sobrevivir la
	// última insertada, no una arbitraria.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	dedup := out[:0]
	for _, c := range out {
		if len(dedup) > 0 && c.Timestamp.Equal(dedup[len(dedup)-1].Timestamp) {
			// Última vela vista gana (mismo criterio que el merge incremental)
			dedup[len(dedup)-1] = c
			continue
		}
		dedup = append(dedup, c)
	}
	return dedup
}

// Validate verifica que la serie sea apta para hashing y cálculo:
// sin NaN/Inf y con timestamps estrictamente crecientes.
func (s CandleSeries) Validate() error {
	for i, c := range s {
		if c.HasNaN() {
			return fmt.Errorf("%w: vela %d contiene NaN/Inf", ErrInvalidInput, i)
		}
		if c.Timestamp.IsZero() {
			return fmt.Errorf("%w: vela %d sin timestamp", ErrInvalidInput, i)
		}
		if i > 0 && !s[i-1].Timestamp.Before(c.Timestamp) {
			return fmt.Errorf("%w: timestamps no crecientes en posición %d", ErrInvalidInput, i)
		}
	}
	return nil
}

// Latest devuelve la vela más reciente de la serie canónica.
func (s CandleSeries) Latest() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	latest := s[0]
	for _, c := range s[1:] {
		if c.Timestamp.After(latest.Timestamp) {
			latest = c
		}
	}
	return latest, true
}

// WindowDays devuelve los días entre la primera y la última vela.
func (s CandleSeries) WindowDays() int {
	if len(s) < 2 {
		return 0
	}
	canon := s.Canonical()
	span := canon[len(canon)-1].Timestamp.Sub(canon[0].Timestamp)
	return int(span.Hours() / 24)
}

// DataWindow describe la ventana temporal que cubre una serie.
type DataWindow struct {
	FromDate   time.Time `json:"from_date"`
	ToDate     time.Time `json:"to_date"`
	WindowDays int       `json:"window_days"`
	Rows       int       `json:"rows"`
}

// Window devuelve la ventana de datos de la serie canónica.
func (s CandleSeries) Window() DataWindow {
	if len(s) == 0 {
		return DataWindow{}
	}
	canon := s.Canonical()
	return DataWindow{
		FromDate:   canon[0].Timestamp,
		ToDate:     canon[len(canon)-1].Timestamp,
		WindowDays: s.WindowDays(),
		Rows:       len(canon),
	}
}
