package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alimda/cryptofolio/internal/domain"
	"github.com/alimda/cryptofolio/internal/realtime"
	"github.com/alimda/cryptofolio/internal/usecase/alerts"
	"github.com/alimda/cryptofolio/internal/usecase/ledger"
	"github.com/alimda/cryptofolio/internal/usecase/reporting"
)

// memoryGateway is a map-backed gateway for handler tests.
type memoryGateway struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryGateway() *memoryGateway {
	return &memoryGateway{data: make(map[string][]byte)}
}

func (g *memoryGateway) Load(ctx context.Context, key string, out any) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	raw, ok := g.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (g *memoryGateway) Save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.data[key] = raw
	g.mu.Unlock()
	return nil
}

type fixedMarket struct {
	snap *domain.MarketSnapshot
}

func (m *fixedMarket) Latest() (*domain.MarketSnapshot, bool) {
	if m.snap == nil {
		return nil, false
	}
	return m.snap, true
}

func newTestServer(t *testing.T, token string, market MarketSource) *Server {
	t.Helper()
	ctx := context.Background()
	gateway := newMemoryGateway()
	log := zerolog.Nop()

	ledgerSvc := ledger.NewService(ctx, gateway, log)
	alertStore := alerts.NewStore(ctx, gateway, log)

	return New(Config{
		Port:      0,
		APIToken:  token,
		Log:       log,
		Ledger:    ledgerSvc,
		Alerts:    alertStore,
		Market:    market,
		Reporting: reporting.NewService(ledgerSvc),
		Hub:       realtime.NewHub(log),
	})
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestBuySellValuationFlow(t *testing.T) {
	market := &fixedMarket{snap: &domain.MarketSnapshot{
		Quotes: []domain.AssetQuote{{
			AssetID:   "bitcoin",
			Symbol:    "btc",
			Name:      "Bitcoin",
			Price:     decimal.NewFromInt(60000),
			Volume24h: 1e9,
		}},
		At: time.Now().UTC(),
	}}
	srv := newTestServer(t, "", market)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/portfolio/buy", tradeRequest{
		AssetID:  "Bitcoin",
		Quantity: decimal.NewFromInt(2),
		Price:    decimal.NewFromInt(50000),
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var tx domain.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx))
	assert.Equal(t, "bitcoin", tx.AssetID)
	assert.Equal(t, domain.TransactionBuy, tx.Kind)

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/portfolio/sell", tradeRequest{
		AssetID:  "bitcoin",
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(55000),
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/portfolio/valuation", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var valuation domain.ValuationSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &valuation))
	require.Len(t, valuation.Positions, 1)
	assert.True(t, valuation.Positions[0].CurrentValue.Equal(decimal.NewFromInt(60000)))
	assert.Equal(t, 1, valuation.ClosedSells)
}

func TestSellMoreThanHeldReturns422(t *testing.T) {
	srv := newTestServer(t, "", &fixedMarket{})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/portfolio/sell", tradeRequest{
		AssetID:  "bitcoin",
		Quantity: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(50000),
	}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestInvalidTradeReturns400(t *testing.T) {
	srv := newTestServer(t, "", &fixedMarket{})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/portfolio/buy", tradeRequest{
		AssetID:  "bitcoin",
		Quantity: decimal.NewFromInt(-1),
		Price:    decimal.NewFromInt(50000),
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlertLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, "", &fixedMarket{})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/alerts/", createAlertRequest{
		AssetID:   "bitcoin",
		Condition: "above",
		Threshold: decimal.NewFromInt(70000),
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var rule domain.AlertRule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rule))
	assert.True(t, rule.Active)

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/alerts/"+rule.ID.String()+"/deactivate", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/alerts/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rules []domain.AlertRule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
	require.Len(t, rules, 1)
	assert.False(t, rules[0].Active)

	rec = doJSON(t, srv.Handler(), http.MethodDelete, "/api/alerts/"+rule.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownAlertConditionReturns400(t *testing.T) {
	srv := newTestServer(t, "", &fixedMarket{})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/alerts/", createAlertRequest{
		AssetID:   "bitcoin",
		Condition: "crosses_sma",
		Threshold: decimal.NewFromInt(1),
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownAlertIDReturns404(t *testing.T) {
	srv := newTestServer(t, "", &fixedMarket{})

	rec := doJSON(t, srv.Handler(), http.MethodPost,
		"/api/alerts/0b828f8a-68a4-4bc9-8f9c-3d16bbd2a31c/deactivate", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBearerTokenEnforced(t *testing.T) {
	srv := newTestServer(t, "s3cret", &fixedMarket{})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/portfolio/transactions", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/portfolio/transactions", nil, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/portfolio/transactions", nil, "s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open.
	rec = doJSON(t, srv.Handler(), http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMarketEndpointsWithoutDataReturn503(t *testing.T) {
	srv := newTestServer(t, "", &fixedMarket{})

	for _, path := range []string{"/api/market/analysis", "/api/reports/daily", "/api/reports/portfolio"} {
		rec := doJSON(t, srv.Handler(), http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestExportImportRoundTripOverHTTP(t *testing.T) {
	srv := newTestServer(t, "", &fixedMarket{})

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/portfolio/buy", tradeRequest{
		AssetID:  "ethereum",
		Quantity: decimal.NewFromInt(10),
		Price:    decimal.NewFromInt(3000),
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/portfolio/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc ledger.ExportDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))

	fresh := newTestServer(t, "", &fixedMarket{})
	rec = doJSON(t, fresh.Handler(), http.MethodPost, "/api/portfolio/import", doc, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, fresh.Handler(), http.MethodGet, "/api/portfolio/transactions", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var txs []domain.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	assert.Len(t, txs, 1)
}
