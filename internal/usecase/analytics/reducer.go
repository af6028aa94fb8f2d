// Package analytics derives scalar market metrics from a price snapshot.
// Every function is pure and order-independent over its input: sorting the
// quotes must not change any result beyond float rounding.
package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/alimda/cryptofolio/internal/domain"
)

// AveragePercentChange returns the arithmetic mean of per-asset 24h percent
// changes, 0 for an empty snapshot.
func AveragePercentChange(quotes []domain.AssetQuote) float64 {
	if len(quotes) == 0 {
		return 0
	}
	changes := make([]float64, len(quotes))
	for i, q := range quotes {
		changes[i] = q.ChangePercent24h
	}
	return stat.Mean(changes, nil)
}

// Volatility returns the population standard deviation of absolute per-asset
// percent changes, 0 for an empty snapshot.
func Volatility(quotes []domain.AssetQuote) float64 {
	if len(quotes) == 0 {
		return 0
	}
	abs := make([]float64, len(quotes))
	for i, q := range quotes {
		abs[i] = math.Abs(q.ChangePercent24h)
	}
	mean := stat.Mean(abs, nil)
	// Population variance, not the sample estimator
	variance := stat.MomentAbout(2, abs, mean, nil)
	return math.Sqrt(variance)
}

// positiveRatio returns the fraction of assets with a positive 24h change.
func positiveRatio(quotes []domain.AssetQuote) float64 {
	if len(quotes) == 0 {
		return 0
	}
	positive := 0
	for _, q := range quotes {
		if q.ChangePercent24h > 0 {
			positive++
		}
	}
	return float64(positive) / float64(len(quotes))
}

// FearGreedConfig holds the policy thresholds of the bucketed fear/greed
// score. They are tuning knobs, not structural invariants, and live here so
// they can be adjusted and tested independently of the scoring logic.
type FearGreedConfig struct {
	StrongMoveThreshold float64 // mean change beyond which the market is "hot"
	MildMoveThreshold   float64
	StrongMoveAdjust    float64
	MildMoveAdjust      float64
	BreadthHighRatio    float64 // gainer ratio considered broad greed
	BreadthLowRatio     float64 // gainer ratio considered broad fear
	BreadthAdjust       float64
}

// DefaultFearGreedConfig returns the default scoring policy.
func DefaultFearGreedConfig() FearGreedConfig {
	return FearGreedConfig{
		StrongMoveThreshold: 5,
		MildMoveThreshold:   2,
		StrongMoveAdjust:    25,
		MildMoveAdjust:      15,
		BreadthHighRatio:    0.7,
		BreadthLowRatio:     0.3,
		BreadthAdjust:       20,
	}
}

// FearGreedIndex computes the bucketed sentiment score: base 50, additive
// adjustments from the mean-change bucket and the gainer-ratio bucket,
// clamped to [0, 100].
func FearGreedIndex(quotes []domain.AssetQuote, cfg FearGreedConfig) int {
	if len(quotes) == 0 {
		return 50
	}

	index := 50.0
	avgChange := AveragePercentChange(quotes)
	ratio := positiveRatio(quotes)

	switch {
	case avgChange > cfg.StrongMoveThreshold:
		index += cfg.StrongMoveAdjust
	case avgChange > cfg.MildMoveThreshold:
		index += cfg.MildMoveAdjust
	case avgChange < -cfg.StrongMoveThreshold:
		index -= cfg.StrongMoveAdjust
	case avgChange < -cfg.MildMoveThreshold:
		index -= cfg.MildMoveAdjust
	}

	if ratio > cfg.BreadthHighRatio {
		index += cfg.BreadthAdjust
	} else if ratio < cfg.BreadthLowRatio {
		index -= cfg.BreadthAdjust
	}

	return clampScore(index)
}

// WeightedIndexConfig holds the weights of the continuous fear/greed variant
// used by reports.
type WeightedIndexConfig struct {
	ChangeWeight     float64
	BreadthWeight    float64
	VolatilityWeight float64
}

// DefaultWeightedIndexConfig returns the default report-scoring weights.
func DefaultWeightedIndexConfig() WeightedIndexConfig {
	return WeightedIndexConfig{
		ChangeWeight:     2,
		BreadthWeight:    40,
		VolatilityWeight: 0.5,
	}
}

// WeightedFearGreedIndex is the continuous variant of the sentiment score:
// 50 + w1*avgChange + w2*(gainerRatio-0.5) - w3*volatility, rounded and
// clamped to [0, 100].
func WeightedFearGreedIndex(quotes []domain.AssetQuote, cfg WeightedIndexConfig) int {
	if len(quotes) == 0 {
		return 50
	}
	score := 50.0
	score += AveragePercentChange(quotes) * cfg.ChangeWeight
	score += (positiveRatio(quotes) - 0.5) * cfg.BreadthWeight
	score -= Volatility(quotes) * cfg.VolatilityWeight
	return clampScore(math.Round(score))
}

func clampScore(score float64) int {
	return int(math.Max(0, math.Min(100, score)))
}

// FearGreedLabel maps a score to its sentiment bucket.
func FearGreedLabel(score int) string {
	switch {
	case score >= 75:
		return "extreme greed"
	case score >= 55:
		return "greed"
	case score >= 45:
		return "neutral"
	case score >= 25:
		return "fear"
	default:
		return "extreme fear"
	}
}
