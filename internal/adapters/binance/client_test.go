package binance_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LautaroIbanez/warren/internal/adapters/binance"
)

func klineRow(ts time.Time, o, h, l, c, v string) []any {
	return []any{
		float64(ts.UnixMilli()), o, h, l, c, v,
		float64(ts.Add(24 * time.Hour).UnixMilli()),
	}
}

func TestFetchKlines_ParsesRows(t *testing.T) {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))

		rows := [][]any{
			klineRow(base.AddDate(0, 0, 1), "101", "103", "99", "102", "2000"),
			klineRow(base, "100", "102", "98", "101", "1000"),
		}
		json.NewEncoder(w).Encode(rows)
	}))
	defer srv.Close()

	client := binance.NewClient(srv.URL, 5*time.Second)
	series, err := client.FetchKlines(context.Background(), "BTCUSDT", "1d", 0, 0, 500)
	require.NoError(t, err)

	// La respuesta llega canónica: ordenada por timestamp
	require.Len(t, series, 2)
	assert.Equal(t, base, series[0].Timestamp)
	assert.Equal(t, 100.0, series[0].Open)
	assert.Equal(t, 101.0, series[0].Close)
	assert.Equal(t, 1000.0, series[0].Volume)
	assert.Equal(t, 102.0, series[1].Close)
}

func TestFetchKlines_SendsRangeParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1700000000000", r.URL.Query().Get("startTime"))
		assert.Equal(t, "1700086400000", r.URL.Query().Get("endTime"))
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode([][]any{})
	}))
	defer srv.Close()

	client := binance.NewClient(srv.URL, 5*time.Second)
	series, err := client.FetchKlines(context.Background(), "BTCUSDT", "1d", 1700000000000, 1700086400000, 0)
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestFetchKlines_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode([][]any{})
	}))
	defer srv.Close()

	client := binance.NewClient(srv.URL, 5*time.Second)
	_, err := client.FetchKlines(context.Background(), "BTCUSDT", "1d", 0, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetchKlines_ClientErrorDoesNotRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	client := binance.NewClient(srv.URL, 5*time.Second)
	_, err := client.FetchKlines(context.Background(), "NOPE", "1d", 0, 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid symbol")
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchKlines_MalformedRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([][]any{{float64(1700000000000), "100"}})
	}))
	defer srv.Close()

	client := binance.NewClient(srv.URL, 5*time.Second)
	_, err := client.FetchKlines(context.Background(), "BTCUSDT", "1d", 0, 0, 10)
	require.Error(t, err)
}
