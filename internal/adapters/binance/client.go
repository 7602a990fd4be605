// Package binance implementa el cliente HTTP de klines con rate limiting y
// retries. Es el único punto de contacto con la API del exchange.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/LautaroIbanez/warren/internal/domain"
)

const (
	defaultBaseURL = "https://api.binance.com/api/v3"

	// Binance permite 1200 weight/min; klines pesa 1-2. Nos quedamos muy
	// por debajo para convivir con otros consumidores de la misma IP.
	klinesRatePerSec = 5

	maxKlinesPerRequest = 1000
	maxRetries          = 3
	baseRetryWait       = 500 * time.Millisecond
)

// Client implementa ports.KlineProvider contra la API REST de Binance.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient crea un Client. Con baseURL vacío usa la API de producción.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: rate.NewLimiter(klinesRatePerSec, 5),
	}
}

// FetchKlines descarga una página de velas (máximo 1000). start y end son
// timestamps Unix en milisegundos; 0 significa sin límite en ese extremo.
func (c *Client) FetchKlines(ctx context.Context, symbol, interval string, start, end int64, limit int) (domain.CandleSeries, error) {
	if limit <= 0 || limit > maxKlinesPerRequest {
		limit = maxKlinesPerRequest
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	if start > 0 {
		q.Set("startTime", strconv.FormatInt(start, 10))
	}
	if end > 0 {
		q.Set("endTime", strconv.FormatInt(end, 10))
	}

	var raw [][]any
	if err := c.get(ctx, c.baseURL+"/klines?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("binance.FetchKlines: %s %s: %w", symbol, interval, err)
	}

	candles := make(domain.CandleSeries, 0, len(raw))
	for i, row := range raw {
		candle, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("binance.FetchKlines: fila %d: %w", i, err)
		}
		candles = append(candles, candle)
	}
	return candles.Canonical(), nil
}

// parseKline convierte una fila de la API: [openTime, "o", "h", "l", "c",
// "v", closeTime, ...]. Los precios llegan como strings.
func parseKline(row []any) (domain.Candle, error) {
	if len(row) < 6 {
		return domain.Candle{}, fmt.Errorf("%w: kline con %d columnas", domain.ErrInvalidInput, len(row))
	}

	openTime, ok := row[0].(float64)
	if !ok {
		return domain.Candle{}, fmt.Errorf("%w: open_time no numérico", domain.ErrInvalidInput)
	}

	vals := make([]float64, 5)
	for i := 0; i < 5; i++ {
		s, ok := row[i+1].(string)
		if !ok {
			return domain.Candle{}, fmt.Errorf("%w: columna %d no es string", domain.ErrInvalidInput, i+1)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("%w: columna %d: %v", domain.ErrInvalidInput, i+1, err)
		}
		vals[i] = v
	}

	return domain.Candle{
		Timestamp: time.UnixMilli(int64(openTime)).UTC(),
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}

// get hace un GET con rate limiting y backoff exponencial con retries.
func (c *Client) get(ctx context.Context, url string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot {
			resp.Body.Close()
			slog.Warn("rate limited by Binance", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
