// Package ingest descarga velas del exchange y las integra al store de forma
// incremental y append-only.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LautaroIbanez/warren/internal/domain"
	"github.com/LautaroIbanez/warren/internal/ports"
)

const (
	// targetWindowDays es la historia objetivo: 730 días de ventana mínima
	// más margen para warmup de indicadores.
	targetWindowDays = 760

	// defaultMaxGap es el hueco tolerable entre velas consecutivas antes
	// de emitir un warning de calidad.
	defaultMaxGap = 7 * 24 * time.Hour

	pageLimit = 1000
)

// Worker implementa ports.Ingestor: descarga paginada, merge incremental y
// validación de calidad de datos.
type Worker struct {
	provider ports.KlineProvider
	store    ports.CandleStore
	maxGap   time.Duration
	now      func() time.Time
}

// NewWorker crea un Worker con el proveedor y store dados.
func NewWorker(provider ports.KlineProvider, store ports.CandleStore) *Worker {
	return &Worker{provider: provider, store: store, maxGap: defaultMaxGap, now: time.Now}
}

// NewWorkerWithMaxGap permite ajustar desde config el hueco tolerable entre
// velas consecutivas antes de reportar un warning de calidad.
func NewWorkerWithMaxGap(provider ports.KlineProvider, store ports.CandleStore, maxGapDays int) *Worker {
	w := NewWorker(provider, store)
	if maxGapDays > 0 {
		w.maxGap = time.Duration(maxGapDays) * 24 * time.Hour
	}
	return w
}

// Refresh descarga las velas que faltan y las integra al store. Con historia
// previa arranca desde la última vela conocida (menos dos intervalos, por si
// la última estaba incompleta); sin historia descarga la ventana objetivo
// completa.
func (w *Worker) Refresh(ctx context.Context, symbol, interval string) (ports.IngestReport, error) {
	report := ports.IngestReport{Symbol: symbol, Interval: interval}

	step, err := intervalDuration(interval)
	if err != nil {
		report.Error = err.Error()
		return report, fmt.Errorf("ingest.Refresh: %w", err)
	}

	now := w.now().UTC()
	start := now.Add(-time.Duration(targetWindowDays) * 24 * time.Hour)

	existing, err := w.store.Load(ctx, symbol, interval)
	switch {
	case err == nil:
		if latest, ok := existing.Latest(); ok {
			incremental := latest.Timestamp.Add(-2 * step)
			if incremental.After(start) {
				start = incremental
			}
		}
	case errors.Is(err, domain.ErrNoData):
		// Primera ingestión: ventana completa
	default:
		report.Error = err.Error()
		return report, fmt.Errorf("ingest.Refresh: load existing: %w", err)
	}

	fetched, err := w.fetchRange(ctx, symbol, interval, start, now, step)
	if err != nil {
		report.Error = err.Error()
		return report, fmt.Errorf("ingest.Refresh: %w: %v", domain.ErrIngestion, err)
	}

	if len(fetched) > 0 {
		added, err := w.store.Upsert(ctx, symbol, interval, fetched)
		if err != nil {
			report.Error = err.Error()
			return report, fmt.Errorf("ingest.Refresh: upsert: %w", err)
		}
		report.RowsAdded = added
	}

	merged, err := w.store.Load(ctx, symbol, interval)
	if err != nil {
		report.Error = err.Error()
		return report, fmt.Errorf("ingest.Refresh: reload: %w", err)
	}

	report.Success = true
	report.TotalRows = len(merged)
	report.Warnings = w.qualityWarnings(merged, step)

	slog.Info("ingestión completada",
		"symbol", symbol, "interval", interval,
		"added", report.RowsAdded, "total", report.TotalRows,
		"warnings", len(report.Warnings))
	return report, nil
}

// fetchRange pagina la descarga avanzando el cursor hasta cubrir el rango o
// hasta que el exchange devuelva una página vacía.
func (w *Worker) fetchRange(ctx context.Context, symbol, interval string, start, end time.Time, step time.Duration) (domain.CandleSeries, error) {
	var all domain.CandleSeries
	cursor := start.UnixMilli()
	endMs := end.UnixMilli()

	for cursor < endMs {
		page, err := w.provider.FetchKlines(ctx, symbol, interval, cursor, endMs, pageLimit)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		all = append(all, page...)

		last := page[len(page)-1].Timestamp.UnixMilli()
		next := last + step.Milliseconds()
		if next <= cursor {
			// El exchange no avanzó el cursor: cortamos para no loopear
			break
		}
		cursor = next

		if len(page) < pageLimit {
			break
		}
	}

	return all.Canonical(), nil
}

// qualityWarnings revisa la serie integrada y reporta problemas que no
// bloquean la ingestión: ventana corta, huecos grandes, timestamps futuros.
func (w *Worker) qualityWarnings(series domain.CandleSeries, step time.Duration) []string {
	var warnings []string

	canon := series.Canonical()
	if days := canon.WindowDays(); days < 730 {
		warnings = append(warnings,
			fmt.Sprintf("ventana de datos de %d días, por debajo de los 730 recomendados", days))
	}

	for i := 1; i < len(canon); i++ {
		gap := canon[i].Timestamp.Sub(canon[i-1].Timestamp)
		if gap > w.maxGap {
			warnings = append(warnings,
				fmt.Sprintf("hueco de %.1f días entre %s y %s",
					gap.Hours()/24,
					canon[i-1].Timestamp.Format("2006-01-02"),
					canon[i].Timestamp.Format("2006-01-02")))
		}
	}

	if len(canon) != len(series) {
		warnings = append(warnings,
			fmt.Sprintf("%d velas duplicadas colapsadas", len(series)-len(canon)))
	}

	return warnings
}

// intervalDuration mapea los intervalos soportados del exchange a duración.
func intervalDuration(interval string) (time.Duration, error) {
	switch interval {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	case "1w":
		return 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: intervalo no soportado %q", domain.ErrInvalidInput, interval)
	}
}
