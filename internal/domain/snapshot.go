package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetQuote is one asset's slice of a market snapshot.
type AssetQuote struct {
	AssetID          string          `json:"assetId"`
	Symbol           string          `json:"symbol"`
	Name             string          `json:"name"`
	Price            decimal.Decimal `json:"price"`
	ChangePercent24h float64         `json:"changePercent24h"`
	MarketCap        float64         `json:"marketCap"`
	Volume24h        float64         `json:"volume24h"`
	High24h          float64         `json:"high24h"`
	Low24h           float64         `json:"low24h"`
}

// MarketSnapshot is a consistent point-in-time view of the market as delivered
// by the market-data collaborator. It is read-only once built and may be shared
// between valuation and alert evaluation in the same tick without coordination.
type MarketSnapshot struct {
	Quotes []AssetQuote `json:"quotes"`
	At     time.Time    `json:"at"`
}

// PriceSnapshot is the lookup form of a market snapshot: current price and 24h
// percent change keyed by canonical asset ID. An asset may appear in either
// map independently; consumers must tolerate gaps in both.
type PriceSnapshot struct {
	Prices  map[string]decimal.Decimal `json:"prices"`
	Changes map[string]float64         `json:"changes"`
	At      time.Time                  `json:"at"`
}

// PriceSnapshot derives the lookup form from the quote list.
func (m *MarketSnapshot) PriceSnapshot() *PriceSnapshot {
	snap := &PriceSnapshot{
		Prices:  make(map[string]decimal.Decimal, len(m.Quotes)),
		Changes: make(map[string]float64, len(m.Quotes)),
		At:      m.At,
	}
	for _, q := range m.Quotes {
		id := NormalizeAssetID(q.AssetID)
		snap.Prices[id] = q.Price
		snap.Changes[id] = q.ChangePercent24h
	}
	return snap
}

// PositionValuation is the point-in-time view of one open position.
type PositionValuation struct {
	AssetID              string          `json:"assetId"`
	Quantity             decimal.Decimal `json:"quantity"`
	AverageCost          decimal.Decimal `json:"averageCost"`
	Invested             decimal.Decimal `json:"invested"`
	CurrentPrice         decimal.Decimal `json:"currentPrice"`
	CurrentValue         decimal.Decimal `json:"currentValue"`
	UnrealizedPnL        decimal.Decimal `json:"unrealizedPnL"`
	UnrealizedPnLPercent decimal.Decimal `json:"unrealizedPnLPercent"`
	PriceKnown           bool            `json:"priceKnown"`
}

// ValuationSnapshot is the ephemeral result of valuating the ledger against a
// price snapshot. It is recomputed on demand and never persisted.
type ValuationSnapshot struct {
	Positions       []PositionValuation `json:"positions"`
	TotalValue      decimal.Decimal     `json:"totalValue"`
	TotalInvested   decimal.Decimal     `json:"totalInvested"`
	TotalPnL        decimal.Decimal     `json:"totalPnL"`
	TotalPnLPercent decimal.Decimal     `json:"totalPnLPercent"`

	// WinRate is the fraction of closed SELL transactions with positive
	// realized P&L, 0 when no sells exist.
	WinRate     float64   `json:"winRate"`
	ClosedSells int       `json:"closedSells"`
	At          time.Time `json:"at"`
}
