package analytics

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/alimda/cryptofolio/internal/domain"
)

func quotesWithChanges(changes ...float64) []domain.AssetQuote {
	quotes := make([]domain.AssetQuote, len(changes))
	for i, c := range changes {
		quotes[i] = domain.AssetQuote{
			AssetID:          string(rune('a' + i)),
			ChangePercent24h: c,
		}
	}
	return quotes
}

func TestAveragePercentChange(t *testing.T) {
	assert.Equal(t, 0.0, AveragePercentChange(nil))
	assert.InDelta(t, 2.0, AveragePercentChange(quotesWithChanges(1, 2, 3)), 1e-9)
	assert.InDelta(t, -1.5, AveragePercentChange(quotesWithChanges(-3, 0)), 1e-9)
}

func TestVolatility_PopulationStdDev(t *testing.T) {
	assert.Equal(t, 0.0, Volatility(nil))

	// |changes| = {2, 4, 6}: mean 4, population variance (4+0+4)/3, stddev sqrt(8/3)
	got := Volatility(quotesWithChanges(2, -4, 6))
	assert.InDelta(t, math.Sqrt(8.0/3.0), got, 1e-9)

	// All identical moves: zero volatility
	assert.InDelta(t, 0.0, Volatility(quotesWithChanges(5, -5, 5)), 1e-9)
}

func TestFearGreedIndex_Buckets(t *testing.T) {
	cfg := DefaultFearGreedConfig()

	// Empty snapshot stays neutral
	assert.Equal(t, 50, FearGreedIndex(nil, cfg))

	// Strong rally, all assets positive: 50 + 25 + 20 = 95
	assert.Equal(t, 95, FearGreedIndex(quotesWithChanges(6, 7, 8), cfg))

	// Mild rally, all positive: 50 + 15 + 20 = 85
	assert.Equal(t, 85, FearGreedIndex(quotesWithChanges(3, 3, 3), cfg))

	// Strong selloff, all negative: 50 - 25 - 20 = 5
	assert.Equal(t, 5, FearGreedIndex(quotesWithChanges(-6, -7, -8), cfg))

	// Flat market, mixed breadth: stays at base
	assert.Equal(t, 50, FearGreedIndex(quotesWithChanges(1, -1), cfg))
}

func TestFearGreedIndex_Clamped(t *testing.T) {
	cfg := DefaultFearGreedConfig()
	cfg.StrongMoveAdjust = 80
	cfg.BreadthAdjust = 80

	assert.Equal(t, 100, FearGreedIndex(quotesWithChanges(20, 20), cfg))
	assert.Equal(t, 0, FearGreedIndex(quotesWithChanges(-20, -20), cfg))
}

func TestWeightedFearGreedIndex(t *testing.T) {
	cfg := DefaultWeightedIndexConfig()

	assert.Equal(t, 50, WeightedFearGreedIndex(nil, cfg))

	// Single asset +2%: 50 + 2*2 + 40*(1-0.5) - 0.5*0 = 74
	// (population stddev of a single absolute change is zero)
	assert.Equal(t, 74, WeightedFearGreedIndex(quotesWithChanges(2), cfg))
}

func TestMarketOutlook(t *testing.T) {
	assert.Equal(t, OutlookStronglyBullish, MarketOutlook(quotesWithChanges(1, 2, 3, 4)))
	assert.Equal(t, OutlookBullish, MarketOutlook(quotesWithChanges(1, 2, -1)))
	assert.Equal(t, OutlookNeutral, MarketOutlook(quotesWithChanges(1, -1)))
	assert.Equal(t, OutlookBearish, MarketOutlook(quotesWithChanges(1, -1, -2)))
	assert.Equal(t, OutlookStronglyBearish, MarketOutlook(quotesWithChanges(-1, -2, -3, -4)))
}

func TestTopAndWorstPerformer(t *testing.T) {
	_, ok := TopPerformer(nil)
	assert.False(t, ok)

	quotes := []domain.AssetQuote{
		{AssetID: "bitcoin", ChangePercent24h: 2},
		{AssetID: "ethereum", ChangePercent24h: 9},
		{AssetID: "cardano", ChangePercent24h: -5},
	}

	top, ok := TopPerformer(quotes)
	assert.True(t, ok)
	assert.Equal(t, "ethereum", top.AssetID)

	worst, ok := WorstPerformer(quotes)
	assert.True(t, ok)
	assert.Equal(t, "cardano", worst.AssetID)
}

func TestOrderIndependence(t *testing.T) {
	quotes := []domain.AssetQuote{
		{AssetID: "bitcoin", ChangePercent24h: 2.3, MarketCap: 1e12},
		{AssetID: "ethereum", ChangePercent24h: -4.1, MarketCap: 4e11},
		{AssetID: "cardano", ChangePercent24h: 17.9},
		{AssetID: "solana", ChangePercent24h: 17.9},
		{AssetID: "ripple", ChangePercent24h: 0.4},
	}

	shuffled := make([]domain.AssetQuote, len(quotes))
	copy(shuffled, quotes)
	rand.New(rand.NewSource(1)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	cfg := DefaultFearGreedConfig()
	assert.InDelta(t, AveragePercentChange(quotes), AveragePercentChange(shuffled), 1e-9)
	assert.InDelta(t, Volatility(quotes), Volatility(shuffled), 1e-9)
	assert.Equal(t, FearGreedIndex(quotes, cfg), FearGreedIndex(shuffled, cfg))
	assert.Equal(t, MarketOutlook(quotes), MarketOutlook(shuffled))

	// Ties (cardano/solana at 17.9) break deterministically
	topA, _ := TopPerformer(quotes)
	topB, _ := TopPerformer(shuffled)
	assert.Equal(t, topA.AssetID, topB.AssetID)
	assert.Equal(t, EmergingTrends(quotes), EmergingTrends(shuffled))
}

func TestSimpleRSI(t *testing.T) {
	assert.Equal(t, 70, SimpleRSI(12))
	assert.Equal(t, 60, SimpleRSI(7))
	assert.Equal(t, 55, SimpleRSI(0.5))
	assert.Equal(t, 45, SimpleRSI(-2))
	assert.Equal(t, 40, SimpleRSI(-7))
	assert.Equal(t, 30, SimpleRSI(-20))
}

func TestSupportResistance(t *testing.T) {
	levels := SupportResistance(decimal.NewFromInt(100))
	assert.True(t, levels.Support1.Equal(decimal.NewFromInt(95)))
	assert.True(t, levels.Support2.Equal(decimal.NewFromInt(90)))
	assert.True(t, levels.Resistance1.Equal(decimal.NewFromInt(105)))
	assert.True(t, levels.Resistance2.Equal(decimal.NewFromInt(110)))
}

func TestBTCDominance(t *testing.T) {
	_, ok := BTCDominance(quotesWithChanges(1, 2))
	assert.False(t, ok)

	quotes := []domain.AssetQuote{
		{AssetID: "bitcoin", MarketCap: 3e12},
		{AssetID: "ethereum", MarketCap: 1e12},
	}
	dominance, ok := BTCDominance(quotes)
	assert.True(t, ok)
	assert.InDelta(t, 75.0, dominance, 1e-9)
}

func TestEmergingTrends(t *testing.T) {
	quotes := []domain.AssetQuote{
		{AssetID: "a", Symbol: "AAA", ChangePercent24h: 40},
		{AssetID: "b", Symbol: "BBB", ChangePercent24h: 16},
		{AssetID: "c", Symbol: "CCC", ChangePercent24h: 14.9}, // below threshold
		{AssetID: "d", Symbol: "DDD", ChangePercent24h: 20},
		{AssetID: "e", Symbol: "EEE", ChangePercent24h: 25},
		{AssetID: "f", Symbol: "FFF", ChangePercent24h: 18},
		{AssetID: "g", Symbol: "GGG", ChangePercent24h: 30},
	}

	trends := EmergingTrends(quotes)
	assert.Len(t, trends, 5, "capped at five")
	assert.Equal(t, "a", trends[0].AssetID)
	assert.Equal(t, 40.0, trends[0].GainPercent)
	assert.Equal(t, "g", trends[1].AssetID)
}

func TestRecommendations(t *testing.T) {
	// Calm market: nothing to say
	assert.Empty(t, Recommendations(1, 5, 50))

	hot := Recommendations(4, 20, 80)
	types := make([]string, len(hot))
	for i, r := range hot {
		types[i] = r.Type
	}
	assert.Equal(t, []string{"warning", "warning", "danger"}, types)

	cold := Recommendations(-5, 2, 20)
	assert.Len(t, cold, 2)
	assert.Equal(t, "opportunity", cold[0].Type)
	assert.Equal(t, "opportunity", cold[1].Type)
}

func TestAnalyze(t *testing.T) {
	snapshot := &domain.MarketSnapshot{
		At: time.Now(),
		Quotes: []domain.AssetQuote{
			{AssetID: "bitcoin", ChangePercent24h: 6, MarketCap: 3e12, Volume24h: 5e10},
			{AssetID: "ethereum", ChangePercent24h: 8, MarketCap: 1e12, Volume24h: 2e10},
		},
	}

	analysis := Analyze(snapshot, DefaultFearGreedConfig())

	assert.Equal(t, 2, analysis.TotalAssets)
	assert.InDelta(t, 4e12, analysis.TotalMarketCap, 1)
	assert.InDelta(t, 7.0, analysis.AverageChange24h, 1e-9)
	assert.Equal(t, 95, analysis.FearGreedIndex)
	assert.Equal(t, "extreme greed", analysis.FearGreedLabel)
	assert.Equal(t, OutlookStronglyBullish, analysis.Outlook)
	assert.NotNil(t, analysis.TopPerformer)
	assert.Equal(t, "ethereum", analysis.TopPerformer.AssetID)
	assert.InDelta(t, 75.0, analysis.BTCDominance, 1e-9)
	assert.NotEmpty(t, analysis.Recommendations)
}
