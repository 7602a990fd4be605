// Package http expone el servicio por HTTP con gin. La interfaz del
// servicio se define del lado del consumidor.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LautaroIbanez/warren/internal/domain"
	"github.com/LautaroIbanez/warren/internal/refresh"
)

// RefreshService es lo que el transporte necesita del orquestador.
type RefreshService interface {
	Candles(ctx context.Context) (domain.CandleSnapshot, error)
	Backtest(ctx context.Context, force bool) (domain.BacktestSnapshot, error)
	Risk(ctx context.Context) (domain.RiskSnapshot, error)
	Recommendation(ctx context.Context) (domain.RecommendationSnapshot, error)
	Refresh(ctx context.Context) refresh.Report
}

// ErrorResponse es el cuerpo JSON de toda respuesta de error.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server enruta las peticiones HTTP al servicio.
type Server struct {
	svc RefreshService
}

// NewServer crea el servidor HTTP sobre el servicio dado.
func NewServer(svc RefreshService) *Server {
	return &Server{svc: svc}
}

// Router arma el router gin con todos los endpoints.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.health)
	r.GET("/recommendation/today", s.recommendationToday)
	r.GET("/market/candles", s.marketCandles)
	r.GET("/backtest/latest", s.backtestLatest)
	r.GET("/risk/metrics", s.riskMetrics)
	r.POST("/refresh", s.triggerRefresh)

	return r
}

// health resume la disponibilidad de datos: hay velas o no, cuántas y qué tan
// frescas. Siempre responde 200; sin velas el servicio está degradado, no caído.
func (s *Server) health(c *gin.Context) {
	resp := gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	snap, err := s.svc.Candles(c.Request.Context())
	if err != nil {
		resp["status"] = "degraded"
		resp["candles_available"] = false
	} else {
		resp["candles_available"] = true
		resp["rows"] = snap.Metadata.Rows
		if snap.Metadata.Freshness != nil {
			resp["freshness"] = snap.Metadata.Freshness
		}
	}
	c.JSON(http.StatusOK, resp)
}

// recommendationToday devuelve el snapshot de recomendación vigente.
// 503 solo cuando no hay velas en absoluto: sin datos no hay señal posible.
func (s *Server) recommendationToday(c *gin.Context) {
	snap, err := s.svc.Recommendation(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) marketCandles(c *gin.Context) {
	snap, err := s.svc.Candles(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) backtestLatest(c *gin.Context) {
	force := c.Query("force") == "true"
	snap, err := s.svc.Backtest(c.Request.Context(), force)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) riskMetrics(c *gin.Context) {
	snap, err := s.svc.Risk(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// triggerRefresh dispara un ciclo completo y devuelve el reporte. El ciclo
// es parcial-tolerante: los errores por dominio van dentro del reporte con
// status 200, no como error HTTP.
func (s *Server) triggerRefresh(c *gin.Context) {
	report := s.svc.Refresh(c.Request.Context())
	c.JSON(http.StatusOK, report)
}

// writeError mapea errores de dominio a status HTTP: sin datos es 503 (el
// servicio aún no tiene con qué responder), input inválido es 422, el resto
// es 500.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNoData):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}
