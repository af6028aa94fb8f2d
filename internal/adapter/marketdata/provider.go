// Package marketdata fetches market snapshots from the CoinGecko public API
// and caches the latest one for the rest of the application.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/alimda/cryptofolio/internal/domain"
)

var (
	metricRefreshTotal  = prometheus.NewCounter(prometheus.CounterOpts{Name: "market_refresh_total", Help: "Market snapshot refresh attempts"})
	metricRefreshFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "market_refresh_failed_total", Help: "Market snapshot refreshes that failed"})
	metricTrackedAssets = prometheus.NewGauge(prometheus.GaugeOpts{Name: "market_tracked_assets", Help: "Assets in the latest market snapshot"})
)

func init() {
	prometheus.MustRegister(metricRefreshTotal, metricRefreshFailed, metricTrackedAssets)
}

const defaultPerPage = 100

// Provider fetches and caches market snapshots. The cached snapshot is
// replaced wholesale on refresh and handed out read-only, so consumers in the
// same tick share one consistent view.
type Provider struct {
	baseURL    string
	vsCurrency string
	httpClient *http.Client
	log        zerolog.Logger

	mu     sync.RWMutex
	latest *domain.MarketSnapshot
}

// NewProvider creates a provider against the given CoinGecko-compatible base
// URL (e.g. "https://api.coingecko.com").
func NewProvider(baseURL string, log zerolog.Logger) *Provider {
	return &Provider{
		baseURL:    baseURL,
		vsCurrency: "usd",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log.With().Str("component", "marketdata").Logger(),
	}
}

// marketRow mirrors one row of CoinGecko's /coins/markets response. Only the
// fields we consume are declared; everything else is ignored.
type marketRow struct {
	ID               string   `json:"id"`
	Symbol           string   `json:"symbol"`
	Name             string   `json:"name"`
	CurrentPrice     *float64 `json:"current_price"`
	ChangePercent24h *float64 `json:"price_change_percentage_24h"`
	MarketCap        float64  `json:"market_cap"`
	TotalVolume      float64  `json:"total_volume"`
	High24h          float64  `json:"high_24h"`
	Low24h           float64  `json:"low_24h"`
}

// Refresh fetches a fresh snapshot and swaps it into the cache. The previous
// snapshot stays available to readers if the fetch fails.
func (p *Provider) Refresh(ctx context.Context) error {
	metricRefreshTotal.Inc()

	snapshot, err := p.fetch(ctx)
	if err != nil {
		metricRefreshFailed.Inc()
		p.log.Error().Err(err).Msg("Market refresh failed, keeping previous snapshot")
		return err
	}

	p.mu.Lock()
	p.latest = snapshot
	p.mu.Unlock()

	metricTrackedAssets.Set(float64(len(snapshot.Quotes)))
	p.log.Debug().Int("assets", len(snapshot.Quotes)).Msg("Market snapshot refreshed")
	return nil
}

// Latest returns the most recent snapshot, or ok=false before the first
// successful refresh.
func (p *Provider) Latest() (*domain.MarketSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return nil, false
	}
	return p.latest, true
}

func (p *Provider) fetch(ctx context.Context) (*domain.MarketSnapshot, error) {
	endpoint, err := url.Parse(p.baseURL + "/api/v3/coins/markets")
	if err != nil {
		return nil, fmt.Errorf("invalid market data URL: %w", err)
	}
	query := endpoint.Query()
	query.Set("vs_currency", p.vsCurrency)
	query.Set("order", "market_cap_desc")
	query.Set("per_page", fmt.Sprintf("%d", defaultPerPage))
	query.Set("page", "1")
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build market request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("market request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("market request returned %d: %s", resp.StatusCode, body)
	}

	var rows []marketRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode market response: %w", err)
	}

	snapshot := &domain.MarketSnapshot{
		Quotes: make([]domain.AssetQuote, 0, len(rows)),
		At:     time.Now().UTC(),
	}
	for _, row := range rows {
		if row.ID == "" || row.CurrentPrice == nil {
			continue // listings without a price are useless to us
		}
		change := 0.0
		if row.ChangePercent24h != nil {
			change = *row.ChangePercent24h
		}
		snapshot.Quotes = append(snapshot.Quotes, domain.AssetQuote{
			AssetID:          domain.NormalizeAssetID(row.ID),
			Symbol:           row.Symbol,
			Name:             row.Name,
			Price:            decimal.NewFromFloat(*row.CurrentPrice),
			ChangePercent24h: change,
			MarketCap:        row.MarketCap,
			Volume24h:        row.TotalVolume,
			High24h:          row.High24h,
			Low24h:           row.Low24h,
		})
	}
	return snapshot, nil
}
