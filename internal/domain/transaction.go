package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind represents the side of a trade
type TransactionKind string

const (
	TransactionBuy  TransactionKind = "BUY"
	TransactionSell TransactionKind = "SELL"
)

// Transaction is an immutable record of one trade. It is created once by the
// ledger, appended to the transaction log and never mutated or deleted.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	Kind      TransactionKind `json:"kind"`
	AssetID   string          `json:"assetId"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"` // execution price, not market price
	Total     decimal.Decimal `json:"total"`
	Timestamp time.Time       `json:"timestamp"`

	// RealizedPnL is present only on SELL, computed at creation time against
	// the position's average cost at sale time.
	RealizedPnL *decimal.Decimal `json:"realizedPnL,omitempty"`
}

// NormalizeAssetID returns the canonical lowercase form of an asset identifier.
func NormalizeAssetID(assetID string) string {
	return strings.ToLower(strings.TrimSpace(assetID))
}

// Validate ensures the transaction adheres to domain rules
// Returns an error if validation fails
func (t *Transaction) Validate() error {
	if t.Kind != TransactionBuy && t.Kind != TransactionSell {
		return ErrInvalidArgument
	}
	if t.AssetID == "" {
		return ErrInvalidArgument
	}
	if t.Quantity.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidArgument
	}
	if t.Price.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidArgument
	}
	if t.Kind == TransactionSell && t.RealizedPnL == nil {
		return ErrInvalidArgument
	}
	return nil
}

// IsProfitableSell reports whether this is a closed sell with positive realized
// P&L. Used for win-rate computation over the transaction log.
func (t *Transaction) IsProfitableSell() bool {
	return t.Kind == TransactionSell && t.RealizedPnL != nil && t.RealizedPnL.IsPositive()
}
