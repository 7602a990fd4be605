// Package rediscache decora un CandleStore con cache en Redis. Es opcional:
// con cliente nil el decorador es transparente y todo va directo a SQLite.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LautaroIbanez/warren/internal/domain"
	"github.com/LautaroIbanez/warren/internal/ports"
)

const defaultTTL = 5 * time.Minute

// CandleCache implementa ports.CandleStore delegando en un store interno y
// cacheando las lecturas completas de cada clave en Redis.
type CandleCache struct {
	inner     ports.CandleStore
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

// NewCandleCache decora el store dado. Con rdb nil la cache queda
// deshabilitada y las llamadas pasan directo al store interno.
func NewCandleCache(rdb *redis.Client, ttl time.Duration, inner ports.CandleStore) *CandleCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CandleCache{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: "candles",
	}
}

// NewRedisClient conecta a Redis y verifica la conexión con un ping.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("rediscache.NewRedisClient: ping %s: %w", addr, err)
	}
	slog.Info("conectado a Redis", "addr", addr)
	return rdb, nil
}

// Upsert escribe en el store interno e invalida la entrada cacheada de la
// clave. La invalidación es best effort: un fallo de Redis no rompe el write.
func (c *CandleCache) Upsert(ctx context.Context, symbol, interval string, candles domain.CandleSeries) (int, error) {
	added, err := c.inner.Upsert(ctx, symbol, interval, candles)
	if err != nil {
		return added, err
	}
	if c.rdb == nil || len(candles) == 0 {
		return added, nil
	}
	if err := c.rdb.Del(ctx, c.key(symbol, interval)).Err(); err != nil {
		slog.Warn("no se pudo invalidar cache de velas", "symbol", symbol, "interval", interval, "error", err)
	}
	return added, nil
}

// Load lee primero de Redis y cae al store interno en miss. Las entradas
// corruptas se borran y se repueblan.
func (c *CandleCache) Load(ctx context.Context, symbol, interval string) (domain.CandleSeries, error) {
	if c.rdb == nil {
		return c.inner.Load(ctx, symbol, interval)
	}

	key := c.key(symbol, interval)
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var series domain.CandleSeries
		if err := json.Unmarshal(b, &series); err == nil && len(series) > 0 {
			return series, nil
		}
		_ = c.rdb.Del(ctx, key).Err()
	}

	series, err := c.inner.Load(ctx, symbol, interval)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(series); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			slog.Warn("no se pudo poblar cache de velas", "symbol", symbol, "interval", interval, "error", err)
		}
	}
	return series, nil
}

// Close cierra el cliente Redis (si existe) y el store interno.
func (c *CandleCache) Close() error {
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
	return c.inner.Close()
}

func (c *CandleCache) key(symbol, interval string) string {
	return fmt.Sprintf("%s:%s:%s", c.namespace, safe(symbol), safe(interval))
}

// safe escapa caracteres problemáticos en keys de Redis.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
