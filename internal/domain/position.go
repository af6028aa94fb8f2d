package domain

import (
	"github.com/shopspring/decimal"
)

// Position is the mutable per-asset aggregate derived from the transaction log.
//
// Invariants:
//   - TotalQuantity >= 0 at all times; a position that reaches exactly zero is
//     removed from the active holdings map (its history stays in the log).
//   - AverageCost is defined only while TotalQuantity > 0, is recomputed on
//     every BUY as the quantity-weighted blend of prior holdings and the new
//     purchase, and is unchanged by SELL.
//   - AverageCost * TotalQuantity ≈ TotalInvested (within rounding) whenever
//     TotalQuantity > 0.
type Position struct {
	AssetID       string          `json:"assetId"`
	TotalQuantity decimal.Decimal `json:"totalQuantity"`
	AverageCost   decimal.Decimal `json:"averageCost"`
	TotalInvested decimal.Decimal `json:"totalInvested"`
}

// NewPosition creates an empty position for an asset.
func NewPosition(assetID string) *Position {
	return &Position{
		AssetID:       assetID,
		TotalQuantity: decimal.Zero,
		AverageCost:   decimal.Zero,
		TotalInvested: decimal.Zero,
	}
}

// ApplyBuy folds a purchase into the position using the weighted-average rule:
//
//	newTotalValue  = totalQuantity*averageCost + quantity*price
//	totalQuantity += quantity
//	averageCost    = newTotalValue / totalQuantity
//	totalInvested += quantity * price
func (p *Position) ApplyBuy(quantity, price decimal.Decimal) {
	cost := quantity.Mul(price)
	newTotalValue := p.TotalQuantity.Mul(p.AverageCost).Add(cost)
	p.TotalQuantity = p.TotalQuantity.Add(quantity)
	p.AverageCost = newTotalValue.Div(p.TotalQuantity)
	p.TotalInvested = p.TotalInvested.Add(cost)
}

// ApplySell removes quantity from the position. The average cost of the
// remaining shares does not move on a partial sale; TotalInvested is reduced
// proportionally so the cost basis of the remainder stays consistent.
// Returns the realized P&L of the sale at the given execution price.
// The caller must have verified quantity <= TotalQuantity.
func (p *Position) ApplySell(quantity, price decimal.Decimal) decimal.Decimal {
	realized := price.Sub(p.AverageCost).Mul(quantity)
	released := p.TotalInvested.Mul(quantity).Div(p.TotalQuantity)
	p.TotalQuantity = p.TotalQuantity.Sub(quantity)
	p.TotalInvested = p.TotalInvested.Sub(released)
	return realized
}

// IsClosed reports whether the position has been fully liquidated.
func (p *Position) IsClosed() bool {
	return p.TotalQuantity.IsZero()
}

// Validate ensures the position adheres to domain rules
// Returns an error if validation fails
func (p *Position) Validate() error {
	if p.AssetID == "" {
		return ErrInvalidArgument
	}
	if p.TotalQuantity.IsNegative() {
		return ErrInvalidArgument
	}
	if p.TotalInvested.IsNegative() || p.AverageCost.IsNegative() {
		return ErrInvalidArgument
	}
	return nil
}
