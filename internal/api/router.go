// Package api exposes the analysis service over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"stockpulse/internal/logger"
	"stockpulse/internal/metrics"
	"stockpulse/internal/model"
)

// TraceHeader carries the request trace id in both directions.
const TraceHeader = "X-Trace-Id"

// AnalysisService is the orchestrator surface the API needs.
type AnalysisService interface {
	Analyze(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisResult, error)
	TopMovers(ctx context.Context, limit int) ([]model.TopMover, error)
	Stock(ctx context.Context, ticker string) (*model.StockState, error)
	Runs(ctx context.Context, ticker string, limit int) ([]model.AnalysisRun, error)
}

// Options configures the router. WS and Health are optional.
type Options struct {
	Service AnalysisService
	WS      http.HandlerFunc
	Health  *metrics.HealthStatus
	Debug   bool
}

type handlers struct {
	svc AnalysisService
	log zerolog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts Options, log zerolog.Logger) *gin.Engine {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	h := &handlers{svc: opts.Service, log: log.With().Str("component", "api").Logger()}

	r := gin.New()
	r.Use(gin.Recovery(), h.trace, cors)

	api := r.Group("/api")
	api.POST("/analyze", h.analyze)
	api.GET("/top-movers", h.topMovers)
	api.GET("/stocks/:ticker", h.stock)
	api.GET("/stocks/:ticker/runs", h.runs)
	api.GET("/health", func(c *gin.Context) {
		if opts.Health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		rep, code := opts.Health.Snapshot()
		c.JSON(code, rep)
	})

	if opts.WS != nil {
		r.GET("/ws", gin.WrapF(opts.WS))
	}
	return r
}

// trace assigns a trace id, echoes it back and logs the request.
func (h *handlers) trace(c *gin.Context) {
	tid := c.GetHeader(TraceHeader)
	if tid == "" {
		tid = logger.GenerateTraceID("http", time.Now())
	}
	c.Request = c.Request.WithContext(logger.WithTraceID(c.Request.Context(), tid))
	c.Header(TraceHeader, tid)

	start := time.Now()
	c.Next()

	h.log.Debug().
		Str("trace_id", tid).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Int("status", c.Writer.Status()).
		Dur("elapsed", time.Since(start)).
		Msg("http request")
}

func cors(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+TraceHeader)
	c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

func (h *handlers) analyze(c *gin.Context) {
	var req model.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, errors.Join(err, model.ErrInvalidRequest))
		return
	}
	res, err := h.svc.Analyze(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) topMovers(c *gin.Context) {
	limit, ok := h.limit(c, 4)
	if !ok {
		return
	}
	movers, err := h.svc.TopMovers(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, movers)
}

func (h *handlers) stock(c *gin.Context) {
	st, err := h.svc.Stock(c.Request.Context(), c.Param("ticker"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) runs(c *gin.Context) {
	limit, ok := h.limit(c, 20)
	if !ok {
		return
	}
	runs, err := h.svc.Runs(c.Request.Context(), c.Param("ticker"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if runs == nil {
		runs = []model.AnalysisRun{}
	}
	c.JSON(http.StatusOK, runs)
}

func (h *handlers) limit(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 100 {
		h.fail(c, errors.Join(errors.New("limit must be 1..100"), model.ErrInvalidRequest))
		return 0, false
	}
	return n, true
}

func (h *handlers) fail(c *gin.Context, err error) {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		l := logger.FromContext(c.Request.Context(), h.log)
		l.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrDataUnavailable):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInsufficientHistory):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrAnalysisFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
