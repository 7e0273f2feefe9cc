package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	models "QuantPull/internal/domain/models"
	"QuantPull/internal/registry"
	icache "QuantPull/internal/service/cache"
	"QuantPull/internal/service/metrics"
	"QuantPull/internal/service/ratelimit"
	"QuantPull/internal/usecase"
	xhttp "QuantPull/pkg/http"
	xlogger "QuantPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// MarketEchoHandler implements the market data and analysis HTTP API.
type MarketEchoHandler struct {
	logger *xlogger.Logger
	market *usecase.MarketData
	quant  *usecase.Quant
	reg    *registry.Registry
	cache  icache.BytesCache
	rl     *ratelimit.Limiter
}

func NewMarketEchoHandler(logger *xlogger.Logger, market *usecase.MarketData, quant *usecase.Quant, reg *registry.Registry) *MarketEchoHandler {
	metrics.Register()
	return &MarketEchoHandler{
		logger: logger,
		market: market,
		quant:  quant,
		reg:    reg,
		rl:     ratelimit.New(),
	}
}

// SetCache injects a response cache for the analysis endpoint.
func (h *MarketEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *MarketEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/market-data", h.MarketData)
	g.POST("/analyze", h.Analyze)
	g.POST("/price", h.UpdatePrice)
	g.GET("/tiers", h.Tiers)
}

type marketDataResponse struct {
	Ticker     string       `json:"ticker"`
	AssetClass string       `json:"asset_class"`
	Interval   string       `json:"interval"`
	Count      int          `json:"count"`
	Bars       []models.Bar `json:"bars"`
}

func (h *MarketEchoHandler) MarketData(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.EndpointLatency.WithLabelValues("market_data").Observe(time.Since(start).Seconds())
	}()

	req := &models.MarketDataRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":market-data", 10, 5) {
		return echo.NewHTTPError(429, "rate limited")
	}

	// "from" overrides lookback_days when it parses
	if from, ok := xhttp.ParseTime(c.QueryParam("from")); ok {
		if days := int(time.Since(from).Hours() / 24); days > 0 {
			req.LookbackDays = days
		}
	}

	bars, class, err := h.market.GetBars(c.Request().Context(), req.Ticker, req.AssetClass, req.Interval, req.LookbackDays, req.ForceRefresh)
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidTicker) {
			return xhttp.BadRequestResponse(c, err.Error())
		}
		metrics.EndpointErrors.WithLabelValues("market_data").Inc()
		h.logger.Error("market data usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if bars == nil {
		bars = []models.Bar{}
	}
	return xhttp.SuccessResponse(c, &marketDataResponse{
		Ticker:     req.Ticker,
		AssetClass: string(class),
		Interval:   req.Interval,
		Count:      len(bars),
		Bars:       bars,
	})
}

func (h *MarketEchoHandler) Analyze(c echo.Context) error {
	start := time.Now()
	defer func() {
		metrics.EndpointLatency.WithLabelValues("analyze").Observe(time.Since(start).Seconds())
	}()

	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cacheKey := analyzeCacheKey(req)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
			h.logger.Warn("analyze cache get error", xlogger.Error(err))
		} else if ok {
			var cached models.AnalysisResponse
			if err := json.Unmarshal(b, &cached); err == nil {
				return xhttp.SuccessResponse(c, &cached)
			}
		}
	}

	ta, err := h.quant.AnalyzeSeries(req.Ticker, req.Prices, req.Highs, req.Lows)
	if err != nil {
		metrics.EndpointErrors.WithLabelValues("analyze").Inc()
		h.logger.Error("analyze usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	resp := ta.ToResponse()

	if h.cache != nil {
		if b, err := json.Marshal(resp); err == nil {
			if err := h.cache.SetBytes(cacheKey, b, 30*time.Second); err != nil {
				h.logger.Warn("analyze cache set error", xlogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, resp)
}

func (h *MarketEchoHandler) UpdatePrice(c echo.Context) error {
	req := &models.UpdatePriceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	snap := h.quant.UpdatePrice(req.Ticker, req.Price)
	if h.reg != nil {
		h.reg.RecordAccess(req.Ticker)
	}
	return xhttp.SuccessResponse(c, snap.ToResponse())
}

type tiersResponse struct {
	Tier    string   `json:"tier"`
	Count   int      `json:"count"`
	Tickers []string `json:"tickers"`
}

func (h *MarketEchoHandler) Tiers(c echo.Context) error {
	req := &models.TiersRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	tickers := h.reg.ListTickers(models.Tier(req.Tier))
	if tickers == nil {
		tickers = []string{}
	}
	return xhttp.SuccessResponse(c, &tiersResponse{
		Tier:    req.Tier,
		Count:   len(tickers),
		Tickers: tickers,
	})
}

// analyzeCacheKey keys on ticker, series length, and the last price so a
// fresh tail invalidates the cached response.
func analyzeCacheKey(req *models.AnalyzeRequest) string {
	last := req.Prices[len(req.Prices)-1]
	return fmt.Sprintf("analyze:%s:%d:%g", req.Ticker, len(req.Prices), last)
}
