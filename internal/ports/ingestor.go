package ports

import (
	"context"

	"github.com/LautaroIbanez/warren/internal/domain"
)

// IngestReport es el resultado de un ciclo de ingestión.
type IngestReport struct {
	Success   bool
	Symbol    string
	Interval  string
	RowsAdded int
	TotalRows int
	Warnings  []string
	Error     string
}

// Ingestor descarga velas nuevas y las integra al store de forma
// append-only. Es el colaborador ingest(symbol, interval) del orquestador.
type Ingestor interface {
	Refresh(ctx context.Context, symbol, interval string) (IngestReport, error)
}

// KlineProvider obtiene velas crudas de la API del exchange, paginando hasta
// cubrir el rango pedido.
type KlineProvider interface {
	FetchKlines(ctx context.Context, symbol, interval string, start, end int64, limit int) (domain.CandleSeries, error)
}
