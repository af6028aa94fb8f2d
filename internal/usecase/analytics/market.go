package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alimda/cryptofolio/internal/domain"
)

// Outlook describes the overall market direction from gainer breadth.
type Outlook string

const (
	OutlookStronglyBullish Outlook = "strongly bullish"
	OutlookBullish         Outlook = "bullish"
	OutlookNeutral         Outlook = "neutral"
	OutlookBearish         Outlook = "bearish"
	OutlookStronglyBearish Outlook = "strongly bearish"
)

// MarketOutlook buckets the gainer ratio into a direction call.
func MarketOutlook(quotes []domain.AssetQuote) Outlook {
	ratio := positiveRatio(quotes)
	switch {
	case ratio > 0.7:
		return OutlookStronglyBullish
	case ratio > 0.55:
		return OutlookBullish
	case ratio > 0.45:
		return OutlookNeutral
	case ratio > 0.3:
		return OutlookBearish
	default:
		return OutlookStronglyBearish
	}
}

// TopPerformer returns the asset with the highest 24h change. Ties break on
// the lower asset ID so the result does not depend on input order.
func TopPerformer(quotes []domain.AssetQuote) (domain.AssetQuote, bool) {
	return extreme(quotes, func(a, b domain.AssetQuote) bool {
		if a.ChangePercent24h != b.ChangePercent24h {
			return a.ChangePercent24h > b.ChangePercent24h
		}
		return a.AssetID < b.AssetID
	})
}

// WorstPerformer returns the asset with the lowest 24h change.
func WorstPerformer(quotes []domain.AssetQuote) (domain.AssetQuote, bool) {
	return extreme(quotes, func(a, b domain.AssetQuote) bool {
		if a.ChangePercent24h != b.ChangePercent24h {
			return a.ChangePercent24h < b.ChangePercent24h
		}
		return a.AssetID < b.AssetID
	})
}

func extreme(quotes []domain.AssetQuote, better func(a, b domain.AssetQuote) bool) (domain.AssetQuote, bool) {
	if len(quotes) == 0 {
		return domain.AssetQuote{}, false
	}
	best := quotes[0]
	for _, q := range quotes[1:] {
		if better(q, best) {
			best = q
		}
	}
	return best, true
}

// SimpleRSI maps a 24h percent change onto coarse RSI-style buckets.
func SimpleRSI(changePercent float64) int {
	switch {
	case changePercent > 10:
		return 70 // overbought
	case changePercent > 5:
		return 60
	case changePercent > 0:
		return 55
	case changePercent > -5:
		return 45
	case changePercent > -10:
		return 40
	default:
		return 30 // oversold
	}
}

// PriceLevels holds naive support and resistance bands around a price.
type PriceLevels struct {
	Support1    decimal.Decimal `json:"support1"`    // -5%
	Support2    decimal.Decimal `json:"support2"`    // -10%
	Resistance1 decimal.Decimal `json:"resistance1"` // +5%
	Resistance2 decimal.Decimal `json:"resistance2"` // +10%
}

// SupportResistance derives percentage bands around the current price.
func SupportResistance(price decimal.Decimal) PriceLevels {
	return PriceLevels{
		Support1:    price.Mul(decimal.RequireFromString("0.95")),
		Support2:    price.Mul(decimal.RequireFromString("0.90")),
		Resistance1: price.Mul(decimal.RequireFromString("1.05")),
		Resistance2: price.Mul(decimal.RequireFromString("1.10")),
	}
}

// BTCDominance returns bitcoin's market-cap share of the bitcoin+ethereum
// pair, the original's proxy for dominance shifts. ok is false when either
// asset is missing from the snapshot.
func BTCDominance(quotes []domain.AssetQuote) (float64, bool) {
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
		return 0, false
	}
	total := btc.MarketCap + eth.MarketCap
	if total == 0 {
		return 0, false
	}
	return btc.MarketCap / total * 100, true
}

// EmergingTrend is a sharply rising asset worth flagging.
type EmergingTrend struct {
	AssetID     string  `json:"assetId"`
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	GainPercent float64 `json:"gainPercent"`
}

// emergingTrendMinGain is the 24h gain that qualifies as an emerging trend.
const emergingTrendMinGain = 15.0

// EmergingTrends returns up to five of the sharpest gainers above the
// qualifying threshold, strongest first.
func EmergingTrends(quotes []domain.AssetQuote) []EmergingTrend {
	gainers := make([]domain.AssetQuote, 0, len(quotes))
	for _, q := range quotes {
		if q.ChangePercent24h > emergingTrendMinGain {
			gainers = append(gainers, q)
		}
	}
	sort.Slice(gainers, func(i, j int) bool {
		if gainers[i].ChangePercent24h != gainers[j].ChangePercent24h {
			return gainers[i].ChangePercent24h > gainers[j].ChangePercent24h
		}
		return gainers[i].AssetID < gainers[j].AssetID
	})
	if len(gainers) > 5 {
		gainers = gainers[:5]
	}

	trends := make([]EmergingTrend, len(gainers))
	for i, q := range gainers {
		trends[i] = EmergingTrend{
			AssetID:     q.AssetID,
			Symbol:      q.Symbol,
			Name:        q.Name,
			GainPercent: q.ChangePercent24h,
		}
	}
	return trends
}

// Recommendation advice thresholds. Policy constants, kept out of the scoring
// logic so they can be tuned independently.
const (
	hotMarketAvgChange   = 3.0
	coldMarketAvgChange  = -3.0
	highVolatility       = 15.0
	greedAlertScore      = 70
	fearOpportunityScore = 30
)

// Recommendation is one piece of derived trading advice.
type Recommendation struct {
	Type    string `json:"type"` // "opportunity", "warning" or "danger"
	Message string `json:"message"`
	Action  string `json:"action"`
}

// Recommendations derives advice from aggregate metrics.
func Recommendations(avgChange, volatility float64, fearGreed int) []Recommendation {
	recs := make([]Recommendation, 0, 3)

	if avgChange > hotMarketAvgChange {
		recs = append(recs, Recommendation{
			Type:    "warning",
			Message: "Market is running hot, watch for a correction",
			Action:  "consider_taking_profits",
		})
	} else if avgChange < coldMarketAvgChange {
		recs = append(recs, Recommendation{
			Type:    "opportunity",
			Message: "Market is correcting, potential buying opportunity",
			Action:  "research_buying_opportunities",
		})
	}

	if volatility > highVolatility {
		recs = append(recs, Recommendation{
			Type:    "warning",
			Message: "High volatility, trading risk is elevated",
			Action:  "reduce_position_size",
		})
	}

	if fearGreed > greedAlertScore {
		recs = append(recs, Recommendation{
			Type:    "danger",
			Message: "Greed index is high, a market correction is likely",
			Action:  "be_cautious",
		})
	} else if fearGreed < fearOpportunityScore {
		recs = append(recs, Recommendation{
			Type:    "opportunity",
			Message: "Fear index is high, buying opportunities may appear",
			Action:  "accumulate_quality_assets",
		})
	}

	return recs
}

// MarketAnalysis is the aggregate result of analyzing one market snapshot.
type MarketAnalysis struct {
	At               time.Time          `json:"at"`
	TotalAssets      int                `json:"totalAssets"`
	TotalMarketCap   float64            `json:"totalMarketCap"`
	TotalVolume      float64            `json:"totalVolume"`
	AverageChange24h float64            `json:"averageChange24h"`
	Volatility       float64            `json:"volatility"`
	FearGreedIndex   int                `json:"fearGreedIndex"`
	FearGreedLabel   string             `json:"fearGreedLabel"`
	Outlook          Outlook            `json:"outlook"`
	TopPerformer     *domain.AssetQuote `json:"topPerformer,omitempty"`
	WorstPerformer   *domain.AssetQuote `json:"worstPerformer,omitempty"`
	BTCDominance     float64            `json:"btcDominance,omitempty"`
	EmergingTrends   []EmergingTrend    `json:"emergingTrends"`
	Recommendations  []Recommendation   `json:"recommendations"`
}

// Analyze runs the full reducer set over one snapshot.
func Analyze(snapshot *domain.MarketSnapshot, cfg FearGreedConfig) *MarketAnalysis {
	analysis := &MarketAnalysis{
		At:          snapshot.At,
		TotalAssets: len(snapshot.Quotes),
	}

	for _, q := range snapshot.Quotes {
		analysis.TotalMarketCap += q.MarketCap
		analysis.TotalVolume += q.Volume24h
	}

	analysis.AverageChange24h = AveragePercentChange(snapshot.Quotes)
	analysis.Volatility = Volatility(snapshot.Quotes)
	analysis.FearGreedIndex = FearGreedIndex(snapshot.Quotes, cfg)
	analysis.FearGreedLabel = FearGreedLabel(analysis.FearGreedIndex)
	analysis.Outlook = MarketOutlook(snapshot.Quotes)

	if top, ok := TopPerformer(snapshot.Quotes); ok {
		analysis.TopPerformer = &top
	}
	if worst, ok := WorstPerformer(snapshot.Quotes); ok {
		analysis.WorstPerformer = &worst
	}
	if dominance, ok := BTCDominance(snapshot.Quotes); ok {
		analysis.BTCDominance = dominance
	}

	analysis.EmergingTrends = EmergingTrends(snapshot.Quotes)
	analysis.Recommendations = Recommendations(
		analysis.AverageChange24h, analysis.Volatility, analysis.FearGreedIndex)

	return analysis
}
