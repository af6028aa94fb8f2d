package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/alimda/cryptofolio/internal/domain"
)

// hundred is used for percentage arithmetic.
var hundred = decimal.NewFromInt(100)

// Service owns the holdings map and the append-only transaction log.
// All mutations are serialized through one lock, so concurrent buys and sells
// on the same asset cannot interleave their read-modify-write of the
// weighted-average state. In-memory updates always complete before the
// persistence save is issued: a crash mid-save can lose a write, never leave
// memory inconsistent with the log order.
type Service struct {
	gateway domain.PersistenceGateway
	log     zerolog.Logger

	mu           sync.RWMutex
	positions    map[string]*domain.Position
	transactions []domain.Transaction
}

// NewService creates the ledger and loads persisted state.
// Load failures and malformed state degrade to empty structures so startup
// never fails on a broken store; both cases are logged so data loss is visible.
func NewService(ctx context.Context, gateway domain.PersistenceGateway, log zerolog.Logger) *Service {
	s := &Service{
		gateway:      gateway,
		log:          log.With().Str("component", "ledger").Logger(),
		positions:    make(map[string]*domain.Position),
		transactions: make([]domain.Transaction, 0),
	}
	s.loadState(ctx)
	return s
}

func (s *Service) loadState(ctx context.Context) {
	var positions map[string]*domain.Position
	if found, err := s.gateway.Load(ctx, domain.KeyHoldings, &positions); err != nil {
		s.log.Error().Err(err).Str("key", domain.KeyHoldings).
			Msg("Failed to load holdings, starting from an empty portfolio")
	} else if found {
		for id, p := range positions {
			if p == nil || p.Validate() != nil {
				s.log.Error().Str("key", domain.KeyHoldings).Str("asset", id).
					Msg("Discarding malformed persisted position")
				continue
			}
			s.positions[domain.NormalizeAssetID(id)] = p
		}
	}

	var transactions []domain.Transaction
	if found, err := s.gateway.Load(ctx, domain.KeyTransactions, &transactions); err != nil {
		s.log.Error().Err(err).Str("key", domain.KeyTransactions).
			Msg("Failed to load transaction log, starting from an empty log")
	} else if found {
		s.transactions = transactions
	}
}

// persistState saves holdings and transaction log under their independent keys.
// Must be called with the write lock held.
func (s *Service) persistState(ctx context.Context) error {
	if err := s.gateway.Save(ctx, domain.KeyHoldings, s.positions); err != nil {
		return fmt.Errorf("failed to save holdings: %w", err)
	}
	if err := s.gateway.Save(ctx, domain.KeyTransactions, s.transactions); err != nil {
		return fmt.Errorf("failed to save transaction log: %w", err)
	}
	return nil
}

func validateTradeInput(assetID string, quantity, price decimal.Decimal) (string, error) {
	id := domain.NormalizeAssetID(assetID)
	if id == "" {
		return "", fmt.Errorf("asset id is required: %w", domain.ErrInvalidArgument)
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return "", fmt.Errorf("quantity must be positive: %w", domain.ErrInvalidArgument)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return "", fmt.Errorf("price must be positive: %w", domain.ErrInvalidArgument)
	}
	return id, nil
}

// RecordBuy appends a BUY transaction and folds it into the asset's position
// using the weighted-average cost rule. A position is created on the first buy
// of an asset.
//
// If persistence fails the in-memory mutation is kept and the transaction is
// returned together with the error, so the caller does not lose the trade it
// just performed; retrying the save is the caller's responsibility.
func (s *Service) RecordBuy(ctx context.Context, assetID string, quantity, price decimal.Decimal) (*domain.Transaction, error) {
	id, err := validateTradeInput(assetID, quantity, price)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	position, ok := s.positions[id]
	if !ok {
		position = domain.NewPosition(id)
		s.positions[id] = position
	}
	position.ApplyBuy(quantity, price)

	tx := domain.Transaction{
		ID:        uuid.New(),
		Kind:      domain.TransactionBuy,
		AssetID:   id,
		Quantity:  quantity,
		Price:     price,
		Total:     quantity.Mul(price),
		Timestamp: time.Now().UTC(),
	}
	s.transactions = append(s.transactions, tx)

	if err := s.persistState(ctx); err != nil {
		s.log.Error().Err(err).Str("asset", id).Msg("Buy recorded in memory but not persisted")
		return &tx, err
	}
	return &tx, nil
}

// RecordSell appends a SELL transaction. Realized P&L is computed against the
// position's current average cost, which the sale does not move; the invested
// amount is reduced proportionally so the remaining cost basis stays
// consistent. A fully liquidated position is removed from the holdings map
// while its history remains in the log.
func (s *Service) RecordSell(ctx context.Context, assetID string, quantity, price decimal.Decimal) (*domain.Transaction, error) {
	id, err := validateTradeInput(assetID, quantity, price)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	position, ok := s.positions[id]
	if !ok || position.TotalQuantity.LessThan(quantity) {
		return nil, fmt.Errorf("cannot sell %s of %s: %w", quantity, id, domain.ErrInsufficientHoldings)
	}

	realized := position.ApplySell(quantity, price)
	if position.IsClosed() {
		delete(s.positions, id)
	}

	tx := domain.Transaction{
		ID:          uuid.New(),
		Kind:        domain.TransactionSell,
		AssetID:     id,
		Quantity:    quantity,
		Price:       price,
		Total:       quantity.Mul(price),
		Timestamp:   time.Now().UTC(),
		RealizedPnL: &realized,
	}
	s.transactions = append(s.transactions, tx)

	if err := s.persistState(ctx); err != nil {
		s.log.Error().Err(err).Str("asset", id).Msg("Sell recorded in memory but not persisted")
		return &tx, err
	}
	return &tx, nil
}

// Valuate computes the point-in-time valuation of all open positions against
// the supplied snapshot. Assets missing from the snapshot are valued at $0
// rather than omitted; that is a degraded-but-defined state, not an error.
// The method is read-only and safe to call concurrently with itself.
func (s *Service) Valuate(snapshot *domain.PriceSnapshot) *domain.ValuationSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.positions))
	for id := range s.positions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := &domain.ValuationSnapshot{
		Positions:     make([]domain.PositionValuation, 0, len(ids)),
		TotalValue:    decimal.Zero,
		TotalInvested: decimal.Zero,
		At:            time.Now().UTC(),
	}

	for _, id := range ids {
		position := s.positions[id]

		price := decimal.Zero
		priceKnown := false
		if snapshot != nil {
			if p, ok := snapshot.Prices[id]; ok {
				price = p
				priceKnown = true
			}
		}

		value := position.TotalQuantity.Mul(price)
		pnl := value.Sub(position.TotalInvested)
		pnlPercent := decimal.Zero
		if position.TotalInvested.IsPositive() {
			pnlPercent = pnl.Div(position.TotalInvested).Mul(hundred)
		}

		result.Positions = append(result.Positions, domain.PositionValuation{
			AssetID:              id,
			Quantity:             position.TotalQuantity,
			AverageCost:          position.AverageCost,
			Invested:             position.TotalInvested,
			CurrentPrice:         price,
			CurrentValue:         value,
			UnrealizedPnL:        pnl,
			UnrealizedPnLPercent: pnlPercent,
			PriceKnown:           priceKnown,
		})

		result.TotalValue = result.TotalValue.Add(value)
		result.TotalInvested = result.TotalInvested.Add(position.TotalInvested)
	}

	result.TotalPnL = result.TotalValue.Sub(result.TotalInvested)
	if result.TotalInvested.IsPositive() {
		result.TotalPnLPercent = result.TotalPnL.Div(result.TotalInvested).Mul(hundred)
	}

	result.WinRate, result.ClosedSells = s.winRate()
	return result
}

// winRate returns the fraction of closed sells with positive realized P&L over
// the full transaction log, 0 when no sells exist. Caller must hold the lock.
func (s *Service) winRate() (float64, int) {
	sells := 0
	profitable := 0
	for i := range s.transactions {
		if s.transactions[i].Kind != domain.TransactionSell {
			continue
		}
		sells++
		if s.transactions[i].IsProfitableSell() {
			profitable++
		}
	}
	if sells == 0 {
		return 0, 0
	}
	return float64(profitable) / float64(sells), sells
}

// Transactions returns a copy of the transaction log in causal call order.
func (s *Service) Transactions() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

// Positions returns copies of the open positions sorted by asset ID.
func (s *Service) Positions() []domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}
