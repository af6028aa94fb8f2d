package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/alimda/cryptofolio/internal/domain"
)

// ExportDocument is the portable JSON form of the full ledger state: holdings
// plus the complete transaction log.
type ExportDocument struct {
	Holdings     map[string]domain.Position `json:"portfolio"`
	Transactions []domain.Transaction       `json:"transactions"`
	ExportedAt   time.Time                  `json:"exportDate"`
}

// Export produces a snapshot of the full ledger state for backup or transfer.
func (s *Service) Export() *ExportDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := &ExportDocument{
		Holdings:     make(map[string]domain.Position, len(s.positions)),
		Transactions: make([]domain.Transaction, len(s.transactions)),
		ExportedAt:   time.Now().UTC(),
	}
	for id, p := range s.positions {
		doc.Holdings[id] = *p
	}
	copy(doc.Transactions, s.transactions)
	return doc
}

// Import replaces the full ledger state with the contents of doc and persists
// it. The document is validated before any state is touched, so a rejected
// import leaves the ledger unchanged.
func (s *Service) Import(ctx context.Context, doc *ExportDocument) error {
	if doc == nil {
		return fmt.Errorf("import document is required: %w", domain.ErrInvalidArgument)
	}

	positions := make(map[string]*domain.Position, len(doc.Holdings))
	for id, p := range doc.Holdings {
		position := p
		position.AssetID = domain.NormalizeAssetID(position.AssetID)
		if position.AssetID == "" {
			position.AssetID = domain.NormalizeAssetID(id)
		}
		if err := position.Validate(); err != nil {
			return fmt.Errorf("invalid position %q in import: %w", id, err)
		}
		positions[position.AssetID] = &position
	}

	transactions := make([]domain.Transaction, 0, len(doc.Transactions))
	for i := range doc.Transactions {
		tx := doc.Transactions[i]
		tx.AssetID = domain.NormalizeAssetID(tx.AssetID)
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("invalid transaction %s in import: %w", tx.ID, err)
		}
		transactions = append(transactions, tx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions = positions
	s.transactions = transactions

	if err := s.persistState(ctx); err != nil {
		s.log.Error().Err(err).Msg("Imported ledger state not persisted")
		return err
	}
	s.log.Info().Int("positions", len(positions)).Int("transactions", len(transactions)).
		Msg("Ledger state imported")
	return nil
}
