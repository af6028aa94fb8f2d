package reporting

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alimda/cryptofolio/internal/domain"
	"github.com/alimda/cryptofolio/internal/usecase/analytics"
)

// Valuator is the slice of the ledger the reporting service needs.
type Valuator interface {
	Valuate(snapshot *domain.PriceSnapshot) *domain.ValuationSnapshot
}

// Service assembles reports as plain structured data. Rendering and export
// (PDF/Excel/HTML) are downstream collaborators' responsibility.
type Service struct {
	Ledger      Valuator
	FearGreed   analytics.FearGreedConfig
	ReportIndex analytics.WeightedIndexConfig
}

// NewService creates a new reporting Service instance
func NewService(ledger Valuator) *Service {
	return &Service{
		Ledger:      ledger,
		FearGreed:   analytics.DefaultFearGreedConfig(),
		ReportIndex: analytics.DefaultWeightedIndexConfig(),
	}
}

// MarketOverview summarizes the whole market in one block.
type MarketOverview struct {
	TotalMarketCap string  `json:"totalMarketCap"`
	TotalVolume    string  `json:"totalVolume"`
	AverageChange  float64 `json:"averageChange"`
	FearGreedIndex int     `json:"fearGreedIndex"`
	FearGreedLabel string  `json:"fearGreedLabel"`
}

// TopPerformerEntry is one row of the daily report's leaderboard.
type TopPerformerEntry struct {
	Name          string          `json:"name"`
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	ChangePercent float64         `json:"changePercent"`
	Volume24h     float64         `json:"volume24h"`
}

// MarketTrend describes the direction call derived from the two majors.
type MarketTrend string

const (
	TrendStrongBullish MarketTrend = "strong bullish"
	TrendStrongBearish MarketTrend = "strong bearish"
	TrendTurbulent     MarketTrend = "turbulent"
	TrendUnknown       MarketTrend = "unknown"
)

// DailyReport is the daily market report as plain data.
type DailyReport struct {
	Title            string                     `json:"title"`
	Date             time.Time                  `json:"date"`
	ExecutiveSummary string                     `json:"executiveSummary"`
	Overview         MarketOverview             `json:"overview"`
	TopPerformers    []TopPerformerEntry        `json:"topPerformers"`
	Trend            MarketTrend                `json:"trend"`
	Recommendations  []analytics.Recommendation `json:"recommendations"`
}

// DailyMarketReport builds the daily report from one market snapshot.
func (s *Service) DailyMarketReport(snapshot *domain.MarketSnapshot) *DailyReport {
	report := &DailyReport{
		Title: "Daily cryptocurrency market report",
		Date:  snapshot.At,
	}

	avgChange := analytics.AveragePercentChange(snapshot.Quotes)
	volatility := analytics.Volatility(snapshot.Quotes)
	index := analytics.WeightedFearGreedIndex(snapshot.Quotes, s.ReportIndex)

	var totalMarketCap, totalVolume float64
	for _, q := range snapshot.Quotes {
		totalMarketCap += q.MarketCap
		totalVolume += q.Volume24h
	}

	report.Overview = MarketOverview{
		TotalMarketCap: formatCurrency(totalMarketCap),
		TotalVolume:    formatCurrency(totalVolume),
		AverageChange:  avgChange,
		FearGreedIndex: index,
		FearGreedLabel: analytics.FearGreedLabel(index),
	}

	report.TopPerformers = topPerformers(snapshot.Quotes, 5)
	report.Trend = majorsTrend(snapshot.Quotes)
	report.ExecutiveSummary = executiveSummary(avgChange, index, report.TopPerformers)
	report.Recommendations = analytics.Recommendations(avgChange, volatility, index)

	return report
}

// PortfolioReport is the user's holdings report as plain data.
type PortfolioReport struct {
	Date      time.Time                  `json:"date"`
	Valuation *domain.ValuationSnapshot  `json:"valuation"`
	Advice    []analytics.Recommendation `json:"advice,omitempty"`
}

// PortfolioReportFor valuates the ledger against the snapshot's prices and
// wraps it with market-context advice.
func (s *Service) PortfolioReportFor(snapshot *domain.MarketSnapshot) *PortfolioReport {
	prices := snapshot.PriceSnapshot()
	valuation := s.Ledger.Valuate(prices)

	avgChange := analytics.AveragePercentChange(snapshot.Quotes)
	volatility := analytics.Volatility(snapshot.Quotes)
	index := analytics.FearGreedIndex(snapshot.Quotes, s.FearGreed)

	return &PortfolioReport{
		Date:      snapshot.At,
		Valuation: valuation,
		Advice:    analytics.Recommendations(avgChange, volatility, index),
	}
}

func topPerformers(quotes []domain.AssetQuote, n int) []TopPerformerEntry {
	sorted := make([]domain.AssetQuote, len(quotes))
	copy(sorted, quotes)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ChangePercent24h != sorted[j].ChangePercent24h {
			return sorted[i].ChangePercent24h > sorted[j].ChangePercent24h
		}
		return sorted[i].AssetID < sorted[j].AssetID
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	entries := make([]TopPerformerEntry, len(sorted))
	for i, q := range sorted {
		entries[i] = TopPerformerEntry{
			Name:          q.Name,
			Symbol:        q.Symbol,
			Price:         q.Price,
			ChangePercent: q.ChangePercent24h,
			Volume24h:     q.Volume24h,
		}
	}
	return entries
}

// majorsTrend calls a direction from bitcoin and ethereum only.
func majorsTrend(quotes []domain.AssetQuote) MarketTrend {
	var btc, eth *domain.AssetQuote
	for i := range quotes {
		switch quotes[i].AssetID {
		case "bitcoin":
			btc = &quotes[i]
		case "ethereum":
			eth = &quotes[i]
		}
	}
	if btc == nil || eth == nil {
		return TrendUnknown
	}

	bullish := func(change float64) bool { return change > 2 }
	bearish := func(change float64) bool { return change < -2 }

	switch {
	case bullish(btc.ChangePercent24h) && bullish(eth.ChangePercent24h):
		return TrendStrongBullish
	case bearish(btc.ChangePercent24h) && bearish(eth.ChangePercent24h):
		return TrendStrongBearish
	default:
		return TrendTurbulent
	}
}

func executiveSummary(avgChange float64, fearGreed int, top []TopPerformerEntry) string {
	direction := "gained"
	if avgChange < 0 {
		direction = "lost"
	}
	summary := fmt.Sprintf(
		"The cryptocurrency market %s %.2f%% over the last 24 hours. The fear/greed index sits at %d (%s).",
		direction, abs(avgChange), fearGreed, analytics.FearGreedLabel(fearGreed))
	if len(top) > 0 {
		summary += fmt.Sprintf(" Best performer: %s at %.2f%%.", top[0].Name, top[0].ChangePercent)
	}
	return summary
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// formatCurrency renders a dollar amount with a magnitude suffix.
func formatCurrency(value float64) string {
	switch {
	case value >= 1e12:
		return fmt.Sprintf("$%.2fT", value/1e12)
	case value >= 1e9:
		return fmt.Sprintf("$%.2fB", value/1e9)
	case value >= 1e6:
		return fmt.Sprintf("$%.2fM", value/1e6)
	default:
		return fmt.Sprintf("$%.2f", value)
	}
}
