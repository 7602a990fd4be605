// Package refresh orquesta los cuatro dominios del servicio: ingestión de
// velas, backtest, riesgo y recomendación. Es la única pieza que conoce el
// orden de dependencias entre ellos.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LautaroIbanez/warren/internal/cache"
	"github.com/LautaroIbanez/warren/internal/domain"
	"github.com/LautaroIbanez/warren/internal/hash"
	"github.com/LautaroIbanez/warren/internal/policy"
	"github.com/LautaroIbanez/warren/internal/ports"
	"github.com/LautaroIbanez/warren/internal/risk"
)

// Options configura el servicio para una clave símbolo+intervalo.
type Options struct {
	Symbol   string
	Interval string
	// StageTimeout acota cada llamada a un colaborador externo (ingestión,
	// backtest runner). Cero o negativo deshabilita el límite.
	StageTimeout time.Duration
	Thresholds   risk.Thresholds
	Policy       policy.Config
}

// Report es el resultado de un ciclo de refresh completo. Success refleja
// solo la ingestión: los fallos de los dominios derivados quedan en
// Bundle.Errors sin tumbar el ciclo.
type Report struct {
	RunID     string                `json:"run_id"`
	Success   bool                  `json:"success"`
	StartedAt time.Time             `json:"started_at"`
	Duration  time.Duration         `json:"duration"`
	Ingestion ports.IngestReport    `json:"ingestion"`
	Bundle    domain.SnapshotBundle `json:"bundle"`
}

// Service expone las operaciones de lectura por dominio y el ciclo de
// refresh completo. Las lecturas son idempotentes: leer no muta estado
// observable salvo la recomputación de caché que dispara un hash desalineado.
type Service struct {
	opts      Options
	ingestor  ports.Ingestor
	candles   ports.CandleStore
	backtests ports.BacktestStore
	risks     ports.RiskStore
	runner    ports.BacktestRunner
	signals   ports.SignalGenerator
	riskCache *cache.Manager
	notifier  ports.Notifier
	now       func() time.Time
}

// NewService arma el servicio con sus colaboradores.
func NewService(
	opts Options,
	ingestor ports.Ingestor,
	candles ports.CandleStore,
	backtests ports.BacktestStore,
	risks ports.RiskStore,
	runner ports.BacktestRunner,
	signals ports.SignalGenerator,
	riskCache *cache.Manager,
	notifier ports.Notifier,
) *Service {
	return &Service{
		opts:      opts,
		ingestor:  ingestor,
		candles:   candles,
		backtests: backtests,
		risks:     risks,
		runner:    runner,
		signals:   signals,
		riskCache: riskCache,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Candles devuelve la serie canónica con su hash, ventana y frescura.
func (s *Service) Candles(ctx context.Context) (domain.CandleSnapshot, error) {
	series, candlesHash, err := s.loadCandles(ctx)
	if err != nil {
		return domain.CandleSnapshot{}, err
	}

	snap := domain.CandleSnapshot{
		Candles: series,
		Metadata: domain.CandleMetadata{
			CandlesHash: candlesHash,
			Rows:        len(series),
		},
	}

	if latest, ok := series.Latest(); ok {
		ts := latest.Timestamp
		snap.Metadata.LatestCandleTimestamp = &ts
		snap.Metadata.AsOf = &ts
		snap.Metadata.Freshness = s.freshness(ts)
	}
	return snap, nil
}

// Backtest devuelve el último backtest para la clave, recomputando cuando el
// hash de velas cambió o cuando force es true.
func (s *Service) Backtest(ctx context.Context, force bool) (domain.BacktestSnapshot, error) {
	series, candlesHash, err := s.loadCandles(ctx)
	if err != nil {
		return domain.BacktestSnapshot{}, err
	}

	stored, loadErr := s.backtests.LoadBacktest(ctx, s.opts.Symbol, s.opts.Interval)
	if loadErr == nil && !force && stored.CandlesHash == candlesHash {
		return s.backtestSnapshot(stored, true, ""), nil
	}
	if loadErr != nil && !errors.Is(loadErr, domain.ErrNoData) {
		return domain.BacktestSnapshot{}, fmt.Errorf("refresh.Backtest: load stored: %w", loadErr)
	}

	warning := ""
	if loadErr == nil && stored.CandlesHash != candlesHash {
		warning = fmt.Sprintf(
			"backtest guardado sobre hash %s, velas actuales %s; recomputado",
			stored.CandlesHash.Short(), candlesHash.Short())
	}

	runCtx, cancel := s.stageCtx(ctx)
	result, err := s.runner.Run(runCtx, s.opts.Symbol, s.opts.Interval, series)
	cancel()
	if err != nil {
		return domain.BacktestSnapshot{}, fmt.Errorf("refresh.Backtest: run: %w", err)
	}

	fresh := ports.StoredBacktest{
		Result:       result,
		CandlesHash:  candlesHash,
		BacktestHash: hash.Backtest(candlesHash, result.Trades, result.EquityCurve),
		SavedAt:      s.now().UTC(),
	}
	if latest, ok := series.Latest(); ok {
		ts := latest.Timestamp
		fresh.CandlesAsOf = &ts
	}

	if err := s.backtests.SaveBacktest(ctx, s.opts.Symbol, s.opts.Interval, fresh); err != nil {
		return domain.BacktestSnapshot{}, fmt.Errorf("refresh.Backtest: save: %w", err)
	}

	return s.backtestSnapshot(fresh, false, warning), nil
}

// Risk devuelve las métricas de riesgo vigentes. La lectura pasa por el
// cache manager: con el hash de velas alineado sirve la entrada cacheada,
// con hash desalineado recomputa y persiste el resultado nuevo.
func (s *Service) Risk(ctx context.Context) (domain.RiskSnapshot, error) {
	series, candlesHash, err := s.loadCandles(ctx)
	if err != nil {
		return domain.RiskSnapshot{}, err
	}

	key := cache.Key{Symbol: s.opts.Symbol, Interval: s.opts.Interval}
	res, err := s.riskCache.Get(ctx, key, candlesHash, func(ctx context.Context) (domain.BacktestMetrics, domain.ReliabilityValidation, error) {
		return s.computeRisk(ctx, series, candlesHash)
	})
	if err != nil {
		return domain.RiskSnapshot{}, fmt.Errorf("refresh.Risk: %w", err)
	}

	snap := domain.RiskSnapshot{
		Metrics:    res.Entry.Metrics,
		Validation: res.Entry.Validation,
		CacheInfo: domain.CacheInfo{
			Cached:                  res.Cached,
			WasRecomputed:           res.WasRecomputed,
			ComputedAt:              res.Entry.ComputedAt,
			CacheValidation:         res.CacheValidation,
			PreviousCacheValidation: res.PreviousCacheValidation,
		},
		Status: domain.RiskStatusOK,
	}

	if !res.Entry.Validation.IsReliable {
		snap.Status = domain.RiskStatusDegraded
		snap.Reason = res.Entry.Validation.Reason
	}
	if res.PreviousCacheValidation != nil {
		snap.Status = domain.RiskStatusDegraded
		if snap.Reason == "" {
			snap.Reason = res.PreviousCacheValidation.Reason
		}
	}
	return snap, nil
}

// Recommendation produce el snapshot final del día: señal cruda de la
// estrategia pasada por el motor de política con las violaciones vigentes.
func (s *Service) Recommendation(ctx context.Context) (domain.RecommendationSnapshot, error) {
	series, candlesHash, err := s.loadCandles(ctx)
	if err != nil {
		return domain.RecommendationSnapshot{}, err
	}

	candidate, err := s.signals.Generate(ctx, s.opts.Symbol, s.opts.Interval, series)
	if err != nil {
		return domain.RecommendationSnapshot{}, fmt.Errorf("refresh.Recommendation: generate: %w", err)
	}

	riskSnap, err := s.Risk(ctx)
	if err != nil {
		return domain.RecommendationSnapshot{}, fmt.Errorf("refresh.Recommendation: risk: %w", err)
	}
	_, violations := risk.Validate(riskSnap.Metrics, riskSnap.Metrics.TotalTrades, series.WindowDays(), s.opts.Thresholds)

	latest, _ := series.Latest()
	in := policy.Input{
		Symbol:       s.opts.Symbol,
		Interval:     s.opts.Interval,
		Candidate:    candidate,
		Violations:   violations,
		Window:       series.Window(),
		LatestCandle: latest.Timestamp,
		AsOf:         s.now().UTC(),
		CandlesHash:  candlesHash,
	}
	return policy.Apply(in, s.opts.Policy), nil
}

// Refresh corre el ciclo completo: ingestión, backtest, velas, riesgo y
// recomendación. Un fallo en un dominio derivado se anota en Bundle.Errors y
// el ciclo sigue; solo un fallo de ingestión marca Success false.
func (s *Service) Refresh(ctx context.Context) Report {
	started := s.now().UTC()
	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: started,
		Bundle:    domain.SnapshotBundle{Errors: map[string]string{}},
	}
	log := slog.With("run_id", report.RunID, "symbol", s.opts.Symbol, "interval", s.opts.Interval)
	log.Info("refresh iniciado")

	ingestCtx, cancel := s.stageCtx(ctx)
	ingestReport, err := s.ingestor.Refresh(ingestCtx, s.opts.Symbol, s.opts.Interval)
	cancel()
	report.Ingestion = ingestReport
	if err != nil {
		report.Bundle.Errors["ingestion"] = err.Error()
		log.Error("ingestión falló", "error", err)
	}
	report.Success = ingestReport.Success

	if snap, err := s.Backtest(ctx, false); err != nil {
		report.Bundle.Errors["backtest"] = err.Error()
		log.Warn("backtest falló", "error", err)
	} else {
		report.Bundle.Backtest = &snap
	}

	if snap, err := s.Candles(ctx); err != nil {
		report.Bundle.Errors["candles"] = err.Error()
		log.Warn("snapshot de velas falló", "error", err)
	} else {
		snap.Warnings = append(snap.Warnings, ingestReport.Warnings...)
		report.Bundle.Candles = &snap
	}

	if snap, err := s.Risk(ctx); err != nil {
		report.Bundle.Errors["risk"] = err.Error()
		log.Warn("riesgo falló", "error", err)
	} else {
		report.Bundle.Risk = &snap
	}

	if snap, err := s.Recommendation(ctx); err != nil {
		report.Bundle.Errors["recommendation"] = err.Error()
		log.Warn("recomendación falló", "error", err)
	} else {
		s.checkAlignment(&snap, report.Bundle.Candles, report.Bundle.Backtest)
		report.Bundle.Recommendation = &snap
	}

	if len(report.Bundle.Errors) == 0 {
		report.Bundle.Errors = nil
	}
	report.Duration = s.now().UTC().Sub(started)

	if s.notifier != nil {
		if err := s.notifier.ReportRefresh(ctx, report.Bundle); err != nil {
			log.Warn("notificación falló", "error", err)
		}
	}

	log.Info("refresh terminado",
		"success", report.Success,
		"duration", report.Duration.Round(time.Millisecond),
		"errors", len(report.Bundle.Errors))
	return report
}

// computeRisk es el ComputeFunc del cache manager. El orden de consulta va
// de lo más barato a lo más caro: primero el resultado de riesgo persistido
// (rehidrata la entrada tras un reinicio), después el backtest persistido, y
// recién al final un backtest nuevo. Todo condicionado al hash de velas.
func (s *Service) computeRisk(ctx context.Context, series domain.CandleSeries, candlesHash domain.ContentHash) (domain.BacktestMetrics, domain.ReliabilityValidation, error) {
	if persisted, err := s.risks.LoadRisk(ctx, s.opts.Symbol, s.opts.Interval); err == nil && persisted.Hash == candlesHash {
		return persisted.Metrics, persisted.Validation, nil
	} else if err != nil && !errors.Is(err, domain.ErrNoData) {
		slog.Warn("no se pudo leer resultado de riesgo persistido", "error", err)
	}

	var result domain.BacktestResult

	stored, err := s.backtests.LoadBacktest(ctx, s.opts.Symbol, s.opts.Interval)
	switch {
	case err == nil && stored.CandlesHash == candlesHash:
		result = stored.Result
	case err == nil || errors.Is(err, domain.ErrNoData):
		runCtx, cancel := s.stageCtx(ctx)
		result, err = s.runner.Run(runCtx, s.opts.Symbol, s.opts.Interval, series)
		cancel()
		if err != nil {
			return domain.BacktestMetrics{}, domain.ReliabilityValidation{}, fmt.Errorf("run backtest: %w", err)
		}
	default:
		return domain.BacktestMetrics{}, domain.ReliabilityValidation{}, fmt.Errorf("load backtest: %w", err)
	}

	metrics := risk.ComputeMetrics(result.Trades, result.EquityCurve)
	validation, violations := risk.Validate(metrics, metrics.TotalTrades, series.WindowDays(), s.opts.Thresholds)
	metrics.IsReliable = validation.IsReliable
	metrics.Reason = risk.JoinMessages(violations)

	if err := s.risks.SaveRisk(ctx, s.opts.Symbol, s.opts.Interval, ports.StoredRisk{
		Metrics:    metrics,
		Validation: validation,
		Hash:       candlesHash,
		SavedAt:    s.now().UTC(),
	}); err != nil {
		slog.Warn("no se pudo persistir resultado de riesgo", "error", err)
	}

	return metrics, validation, nil
}

// checkAlignment agrega un advisory cuando la recomendación no se calculó
// sobre el mismo hash de velas que el snapshot de velas del ciclo. Cada
// dominio carga la serie por su cuenta, así que un upsert a mitad del ciclo
// puede desalinearlos. El contraste contra el backtest vigente es adicional.
func (s *Service) checkAlignment(rec *domain.RecommendationSnapshot, candles *domain.CandleSnapshot, bt *domain.BacktestSnapshot) {
	if candles != nil && rec.CandlesHash != candles.Metadata.CandlesHash {
		rec.Advisories = append(rec.Advisories, fmt.Sprintf(
			"hashes desalineados: recomendación sobre %s, velas sobre %s",
			rec.CandlesHash.Short(), candles.Metadata.CandlesHash.Short()))
	}
	if bt != nil && rec.CandlesHash != bt.Metadata.CandlesHash {
		rec.Advisories = append(rec.Advisories, fmt.Sprintf(
			"hashes desalineados: recomendación sobre %s, backtest sobre %s",
			rec.CandlesHash.Short(), bt.Metadata.CandlesHash.Short()))
	}
}

// stageCtx deriva el contexto acotado para una llamada externa. Un timeout
// se trata igual que cualquier otro fallo de la etapa.
func (s *Service) stageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.StageTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.StageTimeout)
}

// loadCandles carga la serie canónica y su hash de contenido.
func (s *Service) loadCandles(ctx context.Context) (domain.CandleSeries, domain.ContentHash, error) {
	series, err := s.candles.Load(ctx, s.opts.Symbol, s.opts.Interval)
	if err != nil {
		return nil, "", fmt.Errorf("refresh: load candles %s %s: %w", s.opts.Symbol, s.opts.Interval, err)
	}
	canon := series.Canonical()
	h, err := hash.Candles(canon)
	if err != nil {
		return nil, "", fmt.Errorf("refresh: hash candles: %w", err)
	}
	return canon, h, nil
}

func (s *Service) backtestSnapshot(stored ports.StoredBacktest, cached bool, warning string) domain.BacktestSnapshot {
	return domain.BacktestSnapshot{
		Cached:      cached,
		Warning:     warning,
		Trades:      stored.Result.Trades,
		EquityCurve: stored.Result.EquityCurve,
		Metrics:     stored.Result.Metrics,
		Metadata: domain.BacktestMeta{
			Symbol:       s.opts.Symbol,
			Interval:     s.opts.Interval,
			CandlesHash:  stored.CandlesHash,
			BacktestHash: stored.BacktestHash,
			CandlesAsOf:  stored.CandlesAsOf,
			SavedAt:      stored.SavedAt,
		},
	}
}

// freshness evalúa la edad de la última vela contra el umbral de staleness.
func (s *Service) freshness(latest time.Time) *domain.Freshness {
	hoursOld := s.now().UTC().Sub(latest).Hours()
	f := &domain.Freshness{
		AsOf:     &latest,
		HoursOld: hoursOld,
	}
	if hoursOld > s.opts.Policy.StaleCandleHours {
		f.IsStale = true
		f.Reason = fmt.Sprintf("datos con %.1f horas de antigüedad (máximo: %.0fh)",
			hoursOld, s.opts.Policy.StaleCandleHours)
	}
	return f
}
