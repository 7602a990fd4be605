package rediscache_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LautaroIbanez/warren/internal/adapters/rediscache"
	"github.com/LautaroIbanez/warren/internal/domain"
)

// mockStore es un CandleStore en memoria que cuenta llamadas.
type mockStore struct {
	series    domain.CandleSeries
	loadCalls int
	upserted  int
	loadErr   error
}

func (m *mockStore) Upsert(_ context.Context, _, _ string, candles domain.CandleSeries) (int, error) {
	m.upserted += len(candles)
	m.series = append(m.series, candles...)
	return len(candles), nil
}

func (m *mockStore) Load(_ context.Context, _, _ string) (domain.CandleSeries, error) {
	m.loadCalls++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.series, nil
}

func (m *mockStore) Close() error { return nil }

func sampleSeries() domain.CandleSeries {
	return domain.CandleSeries{{
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Open:      99, High: 102, Low: 98, Close: 100, Volume: 1000,
	}}
}

func TestLoad_CacheHitSkipsStore(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cached, err := json.Marshal(sampleSeries())
	require.NoError(t, err)
	mock.ExpectGet("candles:BTCUSDT:1d").SetVal(string(cached))

	inner := &mockStore{}
	cache := rediscache.NewCandleCache(rdb, time.Minute, inner)

	series, err := cache.Load(context.Background(), "BTCUSDT", "1d")
	require.NoError(t, err)
	assert.Len(t, series, 1)
	assert.Equal(t, 100.0, series[0].Close)
	assert.Zero(t, inner.loadCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_CacheMissFallsBackAndPopulates(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	inner := &mockStore{series: sampleSeries()}

	expected, err := json.Marshal(inner.series)
	require.NoError(t, err)
	mock.ExpectGet("candles:BTCUSDT:1d").RedisNil()
	mock.ExpectSet("candles:BTCUSDT:1d", expected, time.Minute).SetVal("OK")

	cache := rediscache.NewCandleCache(rdb, time.Minute, inner)

	series, err := cache.Load(context.Background(), "BTCUSDT", "1d")
	require.NoError(t, err)
	assert.Len(t, series, 1)
	assert.Equal(t, 1, inner.loadCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad_CorruptedEntryIsDeleted(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	inner := &mockStore{series: sampleSeries()}

	expected, err := json.Marshal(inner.series)
	require.NoError(t, err)
	mock.ExpectGet("candles:BTCUSDT:1d").SetVal("json inválido")
	mock.ExpectDel("candles:BTCUSDT:1d").SetVal(1)
	mock.ExpectSet("candles:BTCUSDT:1d", expected, time.Minute).SetVal("OK")

	cache := rediscache.NewCandleCache(rdb, time.Minute, inner)

	series, err := cache.Load(context.Background(), "BTCUSDT", "1d")
	require.NoError(t, err)
	assert.Len(t, series, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_InvalidatesCachedKey(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectDel("candles:BTCUSDT:1d").SetVal(1)

	inner := &mockStore{}
	cache := rediscache.NewCandleCache(rdb, time.Minute, inner)

	added, err := cache.Upsert(context.Background(), "BTCUSDT", "1d", sampleSeries())
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, inner.upserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilClient_Passthrough(t *testing.T) {
	inner := &mockStore{series: sampleSeries()}
	cache := rediscache.NewCandleCache(nil, time.Minute, inner)

	series, err := cache.Load(context.Background(), "BTCUSDT", "1d")
	require.NoError(t, err)
	assert.Len(t, series, 1)
	assert.Equal(t, 1, inner.loadCalls)

	_, err = cache.Upsert(context.Background(), "BTCUSDT", "1d", sampleSeries())
	require.NoError(t, err)
}

func TestLoad_InnerErrorPropagates(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet("candles:ETHUSDT:1d").RedisNil()

	inner := &mockStore{loadErr: domain.ErrNoData}
	cache := rediscache.NewCandleCache(rdb, time.Minute, inner)

	_, err := cache.Load(context.Background(), "ETHUSDT", "1d")
	assert.ErrorIs(t, err, domain.ErrNoData)
}
