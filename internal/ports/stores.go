package ports

import (
	"context"
	"time"

	"github.com/LautaroIbanez/warren/internal/domain"
)

// CandleStore persiste series de velas por símbolo+intervalo. La escritura
// es append-only por timestamp: una vela existente con el mismo timestamp se
// reemplaza, nunca se borra historia.
type CandleStore interface {
	// Upsert integra velas al store y devuelve cuántas filas nuevas agregó.
	Upsert(ctx context.Context, symbol, interval string, candles domain.CandleSeries) (int, error)

	// Load devuelve la serie completa ordenada por timestamp.
	// Devuelve domain.ErrNoData si no hay velas para la clave.
	Load(ctx context.Context, symbol, interval string) (domain.CandleSeries, error)

	// Close cierra la conexión limpiamente.
	Close() error
}

// StoredBacktest es un resultado de backtest persistido con su metadata.
type StoredBacktest struct {
	Result       domain.BacktestResult
	CandlesHash  domain.ContentHash
	BacktestHash domain.ContentHash
	CandlesAsOf  *time.Time
	SavedAt      time.Time
}

// BacktestStore persiste el último resultado de backtest por clave.
type BacktestStore interface {
	SaveBacktest(ctx context.Context, symbol, interval string, stored StoredBacktest) error

	// LoadBacktest devuelve domain.ErrNoData si no hay resultado guardado.
	LoadBacktest(ctx context.Context, symbol, interval string) (StoredBacktest, error)
}

// StoredRisk es el último resultado de riesgo persistido por clave, la
// versión durable de la entrada en memoria del cache manager.
type StoredRisk struct {
	Metrics    domain.BacktestMetrics
	Validation domain.ReliabilityValidation
	Hash       domain.ContentHash
	SavedAt    time.Time
}

// RiskStore persiste resultados de riesgo entre reinicios.
type RiskStore interface {
	SaveRisk(ctx context.Context, symbol, interval string, stored StoredRisk) error

	// LoadRisk devuelve domain.ErrNoData si no hay resultado guardado.
	LoadRisk(ctx context.Context, symbol, interval string) (StoredRisk, error)
}
