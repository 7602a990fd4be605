package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del servicio.
type Config struct {
	Market   MarketConfig   `yaml:"market"`
	Risk     RiskConfig     `yaml:"risk"`
	Policy   PolicyConfig   `yaml:"policy"`
	Backtest BacktestConfig `yaml:"backtest"`
	Ingest   IngestConfig   `yaml:"ingest"`
	API      APIConfig      `yaml:"api"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

// MarketConfig define la clave símbolo+intervalo que sirve el servicio.
type MarketConfig struct {
	Symbol   string `yaml:"symbol"`
	Interval string `yaml:"interval"`
}

// RiskConfig son los umbrales de confiabilidad de métricas y el TTL de la
// caché de resultados de riesgo.
type RiskConfig struct {
	MinTrades         int     `yaml:"min_trades"`
	MinWindowDays     int     `yaml:"min_window_days"`
	MinProfitFactor   float64 `yaml:"min_profit_factor"`
	MinTotalReturnPct float64 `yaml:"min_total_return_pct"`
	MaxDrawdownPct    float64 `yaml:"max_drawdown_pct"`
	RiskCacheTTLHours float64 `yaml:"risk_cache_ttl_hours"`
}

// PolicyConfig son los umbrales de la capa de recomendación. La ventana
// mínima de datos (730) es independiente de la ventana de confiabilidad de
// riesgo (90): miden cosas distintas.
type PolicyConfig struct {
	StaleCandleHours  float64 `yaml:"stale_candle_hours"`
	MinDataWindowDays int     `yaml:"min_data_window_days"`
}

// BacktestConfig ajusta el motor de backtest.
type BacktestConfig struct {
	InitialCapital float64 `yaml:"initial_capital"`
	WarmupCandles  int     `yaml:"warmup_candles"`
}

// IngestConfig ajusta la validación de calidad de la ingestión.
type IngestConfig struct {
	MaxGapDays int `yaml:"max_gap_days"`
}

// APIConfig contiene el base URL y timeout del exchange.
type APIConfig struct {
	BinanceBase    string `yaml:"binance_base"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RefreshConfig acota cada llamada a un colaborador externo dentro del
// ciclo de refresh. Un timeout cuenta como fallo de la etapa.
type RefreshConfig struct {
	StageTimeoutSeconds int `yaml:"stage_timeout_seconds"`
}

// ServerConfig controla el listener HTTP.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// RedisConfig es la cache de lecturas opcional. Con Addr vacío se
// deshabilita y todo va directo a SQLite.
type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// APITimeout devuelve el timeout del cliente HTTP como time.Duration.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// RedisTTL devuelve el TTL de la cache de lecturas como time.Duration.
func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}

// RiskCacheTTL devuelve la ventana de frescura de la caché de riesgo.
func (c *Config) RiskCacheTTL() time.Duration {
	return time.Duration(c.Risk.RiskCacheTTLHours * float64(time.Hour))
}

// StageTimeout devuelve el timeout por etapa del ciclo de refresh.
func (c *Config) StageTimeout() time.Duration {
	return time.Duration(c.Refresh.StageTimeoutSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SYMBOL"); v != "" {
		cfg.Market.Symbol = v
	}
	if v := os.Getenv("INTERVAL"); v != "" {
		cfg.Market.Interval = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Market.Symbol == "" {
		cfg.Market.Symbol = "BTCUSDT"
	}
	if cfg.Market.Interval == "" {
		cfg.Market.Interval = "1d"
	}
	if cfg.Risk.MinTrades <= 0 {
		cfg.Risk.MinTrades = 30
	}
	if cfg.Risk.MinWindowDays <= 0 {
		cfg.Risk.MinWindowDays = 90
	}
	if cfg.Risk.MinProfitFactor <= 0 {
		cfg.Risk.MinProfitFactor = 1.0
	}
	if cfg.Risk.MaxDrawdownPct <= 0 {
		cfg.Risk.MaxDrawdownPct = 50
	}
	if cfg.Risk.RiskCacheTTLHours <= 0 {
		cfg.Risk.RiskCacheTTLHours = 24
	}
	if cfg.Backtest.InitialCapital <= 0 {
		cfg.Backtest.InitialCapital = 10000
	}
	if cfg.Backtest.WarmupCandles <= 0 {
		cfg.Backtest.WarmupCandles = 50
	}
	if cfg.Ingest.MaxGapDays <= 0 {
		cfg.Ingest.MaxGapDays = 7
	}
	if cfg.Policy.StaleCandleHours <= 0 {
		cfg.Policy.StaleCandleHours = 24
	}
	if cfg.Policy.MinDataWindowDays <= 0 {
		cfg.Policy.MinDataWindowDays = 730
	}
	if cfg.API.BinanceBase == "" {
		cfg.API.BinanceBase = "https://api.binance.com/api/v3"
	}
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = 10
	}
	if cfg.Refresh.StageTimeoutSeconds <= 0 {
		cfg.Refresh.StageTimeoutSeconds = 120
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "warren.db"
	}
	if cfg.Redis.TTLSeconds <= 0 {
		cfg.Redis.TTLSeconds = 300
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
