// Package storage persiste velas y resultados en SQLite.
//
// Estrategia:
//   - `candles`: una fila por vela, UPSERT por (symbol, interval, ts).
//     La historia nunca se borra, solo se reemplaza la fila exacta.
//   - `backtests` y `risk_results`: UNA fila por (symbol, interval) con el
//     último resultado serializado como JSON. El histórico fino no aporta:
//     lo que importa es el resultado vigente y su hash de contenido.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LautaroIbanez/warren/internal/domain"
	"github.com/LautaroIbanez/warren/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS candles (
    symbol   TEXT    NOT NULL,
    interval TEXT    NOT NULL,
    ts       INTEGER NOT NULL,
    open     REAL    NOT NULL,
    high     REAL    NOT NULL,
    low      REAL    NOT NULL,
    close    REAL    NOT NULL,
    volume   REAL    NOT NULL,
    PRIMARY KEY (symbol, interval, ts)
);

CREATE TABLE IF NOT EXISTS backtests (
    symbol        TEXT NOT NULL,
    interval      TEXT NOT NULL,
    payload       TEXT NOT NULL,
    candles_hash  TEXT NOT NULL,
    backtest_hash TEXT NOT NULL,
    candles_as_of DATETIME,
    saved_at      DATETIME NOT NULL,
    PRIMARY KEY (symbol, interval)
);

CREATE TABLE IF NOT EXISTS risk_results (
    symbol       TEXT NOT NULL,
    interval     TEXT NOT NULL,
    payload      TEXT NOT NULL,
    candles_hash TEXT NOT NULL,
    saved_at     DATETIME NOT NULL,
    PRIMARY KEY (symbol, interval)
);

CREATE INDEX IF NOT EXISTS idx_candles_key_ts ON candles(symbol, interval, ts);
`

// SQLiteStore implementa ports.CandleStore, ports.BacktestStore y
// ports.RiskStore sobre una única base SQLite (pure Go, sin CGo).
type SQLiteStore struct {
	db *sql.DB
}

// riskPayload es la forma JSON de StoredRisk en la columna payload.
type riskPayload struct {
	Metrics    domain.BacktestMetrics       `json:"metrics"`
	Validation domain.ReliabilityValidation `json:"validation"`
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada y aplica el
// schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Upsert integra velas al store. Devuelve cuántos timestamps nuevos agregó;
// las filas con timestamp existente se reescriben pero no cuentan.
func (s *SQLiteStore) Upsert(ctx context.Context, symbol, interval string, candles domain.CandleSeries) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	before, err := s.countRows(ctx, symbol, interval)
	if err != nil {
		return 0, fmt.Errorf("storage.Upsert: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage.Upsert: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, interval, ts) DO UPDATE SET
			open   = excluded.open,
			high   = excluded.high,
			low    = excluded.low,
			close  = excluded.close,
			volume = excluded.volume
	`)
	if err != nil {
		return 0, fmt.Errorf("storage.Upsert: prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx,
			symbol, interval, c.Timestamp.UTC().UnixMilli(),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		); err != nil {
			return 0, fmt.Errorf("storage.Upsert: fila %s: %w", c.Timestamp.UTC().Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage.Upsert: commit: %w", err)
	}

	after, err := s.countRows(ctx, symbol, interval)
	if err != nil {
		return 0, fmt.Errorf("storage.Upsert: %w", err)
	}
	return after - before, nil
}

// Load devuelve la serie completa ordenada por timestamp ascendente.
func (s *SQLiteStore) Load(ctx context.Context, symbol, interval string) (domain.CandleSeries, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND interval = ?
		ORDER BY ts ASC
	`, symbol, interval)
	if err != nil {
		return nil, fmt.Errorf("storage.Load: query: %w", err)
	}
	defer rows.Close()

	var series domain.CandleSeries
	for rows.Next() {
		var ts int64
		var c domain.Candle
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("storage.Load: scan: %w", err)
		}
		c.Timestamp = time.UnixMilli(ts).UTC()
		series = append(series, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.Load: rows: %w", err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("storage.Load: %s %s: %w", symbol, interval, domain.ErrNoData)
	}
	return series, nil
}

// SaveBacktest reemplaza el último resultado de backtest para la clave.
func (s *SQLiteStore) SaveBacktest(ctx context.Context, symbol, interval string, stored ports.StoredBacktest) error {
	payload, err := json.Marshal(stored.Result)
	if err != nil {
		return fmt.Errorf("storage.SaveBacktest: marshal: %w", err)
	}

	var asOf *time.Time
	if stored.CandlesAsOf != nil {
		t := stored.CandlesAsOf.UTC()
		asOf = &t
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO backtests (symbol, interval, payload, candles_hash, backtest_hash, candles_as_of, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, interval) DO UPDATE SET
			payload       = excluded.payload,
			candles_hash  = excluded.candles_hash,
			backtest_hash = excluded.backtest_hash,
			candles_as_of = excluded.candles_as_of,
			saved_at      = excluded.saved_at
	`, symbol, interval, string(payload),
		string(stored.CandlesHash), string(stored.BacktestHash),
		asOf, stored.SavedAt.UTC(),
	); err != nil {
		return fmt.Errorf("storage.SaveBacktest: upsert: %w", err)
	}
	return nil
}

// LoadBacktest devuelve el último resultado guardado para la clave.
func (s *SQLiteStore) LoadBacktest(ctx context.Context, symbol, interval string) (ports.StoredBacktest, error) {
	var (
		payload                 string
		candlesHash, resultHash string
		asOf                    sql.NullTime
		savedAt                 time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT payload, candles_hash, backtest_hash, candles_as_of, saved_at
		FROM backtests
		WHERE symbol = ? AND interval = ?
	`, symbol, interval).Scan(&payload, &candlesHash, &resultHash, &asOf, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.StoredBacktest{}, fmt.Errorf("storage.LoadBacktest: %s %s: %w", symbol, interval, domain.ErrNoData)
	}
	if err != nil {
		return ports.StoredBacktest{}, fmt.Errorf("storage.LoadBacktest: query: %w", err)
	}

	stored := ports.StoredBacktest{
		CandlesHash:  domain.ContentHash(candlesHash),
		BacktestHash: domain.ContentHash(resultHash),
		SavedAt:      savedAt.UTC(),
	}
	if asOf.Valid {
		t := asOf.Time.UTC()
		stored.CandlesAsOf = &t
	}
	if err := json.Unmarshal([]byte(payload), &stored.Result); err != nil {
		return ports.StoredBacktest{}, fmt.Errorf("storage.LoadBacktest: unmarshal: %w", err)
	}
	return stored, nil
}

// SaveRisk reemplaza el último resultado de riesgo para la clave.
func (s *SQLiteStore) SaveRisk(ctx context.Context, symbol, interval string, stored ports.StoredRisk) error {
	payload, err := json.Marshal(riskPayload{
		Metrics:    stored.Metrics,
		Validation: stored.Validation,
	})
	if err != nil {
		return fmt.Errorf("storage.SaveRisk: marshal: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_results (symbol, interval, payload, candles_hash, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol, interval) DO UPDATE SET
			payload      = excluded.payload,
			candles_hash = excluded.candles_hash,
			saved_at     = excluded.saved_at
	`, symbol, interval, string(payload), string(stored.Hash), stored.SavedAt.UTC(),
	); err != nil {
		return fmt.Errorf("storage.SaveRisk: upsert: %w", err)
	}
	return nil
}

// LoadRisk devuelve el último resultado de riesgo guardado para la clave.
func (s *SQLiteStore) LoadRisk(ctx context.Context, symbol, interval string) (ports.StoredRisk, error) {
	var (
		payload string
		hash    string
		savedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT payload, candles_hash, saved_at
		FROM risk_results
		WHERE symbol = ? AND interval = ?
	`, symbol, interval).Scan(&payload, &hash, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.StoredRisk{}, fmt.Errorf("storage.LoadRisk: %s %s: %w", symbol, interval, domain.ErrNoData)
	}
	if err != nil {
		return ports.StoredRisk{}, fmt.Errorf("storage.LoadRisk: query: %w", err)
	}

	var p riskPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return ports.StoredRisk{}, fmt.Errorf("storage.LoadRisk: unmarshal: %w", err)
	}
	return ports.StoredRisk{
		Metrics:    p.Metrics,
		Validation: p.Validation,
		Hash:       domain.ContentHash(hash),
		SavedAt:    savedAt.UTC(),
	}, nil
}

// countRows cuenta las velas de una clave.
func (s *SQLiteStore) countRows(ctx context.Context, symbol, interval string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM candles WHERE symbol = ? AND interval = ?`,
		symbol, interval,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count candles: %w", err)
	}
	return n, nil
}

// Close cierra la conexión.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
