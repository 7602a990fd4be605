package ports

import (
	"context"

	"github.com/LautaroIbanez/warren/internal/domain"
)

// BacktestRunner simula trades sobre una serie de velas y devuelve el ledger
// con su curva de equity. Es el colaborador runBacktest del orquestador.
type BacktestRunner interface {
	Run(ctx context.Context, symbol, interval string, candles domain.CandleSeries) (domain.BacktestResult, error)
}

// SignalGenerator produce la recomendación cruda del día. Nunca falla por
// datos insuficientes: degrada a HOLD con el motivo en el rationale.
type SignalGenerator interface {
	Generate(ctx context.Context, symbol, interval string, candles domain.CandleSeries) (domain.Recommendation, error)
}

// Notifier presenta el resultado de un refresh al usuario.
type Notifier interface {
	ReportRefresh(ctx context.Context, bundle domain.SnapshotBundle) error
}
