package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"QuantPull/internal/registry"
	icache "QuantPull/internal/service/cache"
	"QuantPull/internal/usecase"
	applogger "QuantPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

func testHandler(t *testing.T) (*MarketEchoHandler, *registry.Registry, *echo.Echo) {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	reg := registry.New(nil, l)
	quant := usecase.NewQuant(nil, nil, l)
	h := NewMarketEchoHandler(l, nil, quant, reg)
	h.SetCache(icache.NewTTLCache())

	e := echo.New()
	h.RegisterRoutes(e)
	return h, reg, e
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, e *echo.Echo, method, target, body string) envelope {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	return env
}

func TestAnalyzeEndpoint(t *testing.T) {
	_, _, e := testHandler(t)

	var sb strings.Builder
	sb.WriteString(`{"ticker":"AAPL","prices":[`)
	for i := 0; i < 40; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("100")
	}
	sb.WriteString("]}")

	env := doJSON(t, e, http.MethodPost, "/api/analyze", sb.String())
	if env.Status != 200 {
		t.Fatalf("status = %d, body %s", env.Status, env.Data)
	}
	var resp struct {
		Ticker string   `json:"ticker"`
		RSI14  *float64 `json:"rsi_14"`
		EMA20  *float64 `json:"ema_20"`
		EMA50  *float64 `json:"ema_50"`
	}
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if resp.Ticker != "AAPL" {
		t.Fatalf("ticker = %q", resp.Ticker)
	}
	// 40 flat prices: ema20 defined, ema50 still warming up
	if resp.EMA20 == nil || *resp.EMA20 != 100 {
		t.Fatalf("ema_20 = %v, want 100", resp.EMA20)
	}
	if resp.EMA50 != nil {
		t.Fatalf("ema_50 = %v, want null inside warm-up", *resp.EMA50)
	}
}

func TestAnalyzeValidation(t *testing.T) {
	_, _, e := testHandler(t)

	env := doJSON(t, e, http.MethodPost, "/api/analyze", `{"prices":[1,2,3]}`)
	if env.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", env.Status)
	}

	env = doJSON(t, e, http.MethodPost, "/api/analyze", `{"ticker":"AAPL","prices":[1]}`)
	if env.Status != http.StatusBadRequest {
		t.Fatalf("single price: status = %d, want 400", env.Status)
	}
}

func TestUpdatePriceEndpoint(t *testing.T) {
	_, reg, e := testHandler(t)

	env := doJSON(t, e, http.MethodPost, "/api/price", `{"ticker":"MSFT","price":310.5}`)
	if env.Status != 200 {
		t.Fatalf("status = %d", env.Status)
	}
	var resp struct {
		Ticker string   `json:"ticker"`
		EMA20  *float64 `json:"ema_20"`
	}
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if resp.Ticker != "MSFT" || resp.EMA20 != nil {
		t.Fatalf("unexpected snapshot: %+v", resp)
	}
	found := false
	for _, rec := range reg.Snapshot() {
		if rec.Ticker == "MSFT" {
			found = true
		}
	}
	if !found {
		t.Fatalf("access not recorded")
	}

	env = doJSON(t, e, http.MethodPost, "/api/price", `{"ticker":"MSFT","price":-3}`)
	if env.Status != http.StatusBadRequest {
		t.Fatalf("negative price: status = %d, want 400", env.Status)
	}
}

func TestTiersEndpoint(t *testing.T) {
	_, reg, e := testHandler(t)

	env := doJSON(t, e, http.MethodGet, "/api/tiers?tier=hot", "")
	if env.Status != 200 {
		t.Fatalf("status = %d", env.Status)
	}
	var resp struct {
		Tier    string   `json:"tier"`
		Count   int      `json:"count"`
		Tickers []string `json:"tickers"`
	}
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if resp.Tier != "hot" || resp.Count != 0 {
		t.Fatalf("unexpected empty-tier response: %+v", resp)
	}

	for i := 0; i < 60; i++ {
		reg.RecordAccess("NVDA")
	}
	env = doJSON(t, e, http.MethodGet, "/api/tiers?tier=hot", "")
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if resp.Count != 1 || resp.Tickers[0] != "NVDA" {
		t.Fatalf("hot tier = %+v, want NVDA", resp)
	}

	env = doJSON(t, e, http.MethodGet, "/api/tiers?tier=boiling", "")
	if env.Status != http.StatusBadRequest {
		t.Fatalf("invalid tier: status = %d, want 400", env.Status)
	}
}
