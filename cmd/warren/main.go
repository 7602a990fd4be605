package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LautaroIbanez/warren/config"
	"github.com/LautaroIbanez/warren/internal/adapters/binance"
	"github.com/LautaroIbanez/warren/internal/adapters/notify"
	"github.com/LautaroIbanez/warren/internal/adapters/rediscache"
	"github.com/LautaroIbanez/warren/internal/adapters/storage"
	"github.com/LautaroIbanez/warren/internal/backtest"
	"github.com/LautaroIbanez/warren/internal/cache"
	"github.com/LautaroIbanez/warren/internal/ingest"
	"github.com/LautaroIbanez/warren/internal/policy"
	"github.com/LautaroIbanez/warren/internal/ports"
	"github.com/LautaroIbanez/warren/internal/refresh"
	"github.com/LautaroIbanez/warren/internal/risk"
	"github.com/LautaroIbanez/warren/internal/strategy"
	transport "github.com/LautaroIbanez/warren/internal/transport/http"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one refresh cycle and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("warren starting",
		"config", *configPath,
		"symbol", cfg.Market.Symbol,
		"interval", cfg.Market.Interval,
		"once", *once,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sqlite, err := storage.NewSQLiteStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}

	var candleStore ports.CandleStore = sqlite
	if cfg.Redis.Addr != "" {
		rdb, err := rediscache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			slog.Warn("Redis no disponible, sirviendo sin cache de lecturas", "err", err)
		} else {
			candleStore = rediscache.NewCandleCache(rdb, cfg.RedisTTL(), sqlite)
		}
	}
	defer candleStore.Close()

	client := binance.NewClient(cfg.API.BinanceBase, cfg.APITimeout())
	ingestor := ingest.NewWorkerWithMaxGap(client, candleStore, cfg.Ingest.MaxGapDays)

	signals := strategy.NewEngine()
	runner := backtest.NewEngineWithCapital(signals, cfg.Backtest.InitialCapital, cfg.Backtest.WarmupCandles)

	riskCache := cache.NewManager(cfg.RiskCacheTTL())

	svc := refresh.NewService(
		refresh.Options{
			Symbol:       cfg.Market.Symbol,
			Interval:     cfg.Market.Interval,
			StageTimeout: cfg.StageTimeout(),
			Thresholds: risk.Thresholds{
				MinTrades:         cfg.Risk.MinTrades,
				MinWindowDays:     cfg.Risk.MinWindowDays,
				MinProfitFactor:   cfg.Risk.MinProfitFactor,
				MinTotalReturnPct: cfg.Risk.MinTotalReturnPct,
				MaxDrawdownPct:    cfg.Risk.MaxDrawdownPct,
			},
			Policy: policy.Config{
				StaleCandleHours:  cfg.Policy.StaleCandleHours,
				MinDataWindowDays: cfg.Policy.MinDataWindowDays,
			},
		},
		ingestor, candleStore, sqlite, sqlite, runner, signals, riskCache,
		notify.NewConsole(),
	)

	if *once {
		report := svc.Refresh(ctx)
		if !report.Success {
			slog.Error("refresh failed", "run_id", report.RunID)
			os.Exit(1)
		}
		slog.Info("refresh complete", "run_id", report.RunID)
		return
	}

	server := transport.NewServer(svc)
	httpSrv := &nethttp.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Router(),
	}

	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			slog.Error("HTTP server exited", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown incompleto", "err", err)
	}

	slog.Info("warren stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
