package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/alimda/cryptofolio/internal/domain"
)

// Store owns the set of alert rules. Rules are kept in creation order, which
// is also the order they are persisted and evaluated in.
//
// Firing is at-most-once: a triggered rule is excluded from every later
// evaluation regardless of subsequent snapshot values. Re-arming requires
// creating a new rule; Reactivate only flips Active and never clears
// Triggered.
type Store struct {
	gateway domain.PersistenceGateway
	log     zerolog.Logger

	mu    sync.Mutex
	rules []*domain.AlertRule
}

// NewStore creates the alert store and loads persisted rules. A missing or
// unreadable key degrades to an empty rule set; unreadable state is logged so
// data loss stays visible.
func NewStore(ctx context.Context, gateway domain.PersistenceGateway, log zerolog.Logger) *Store {
	s := &Store{
		gateway: gateway,
		log:     log.With().Str("component", "alerts").Logger(),
		rules:   make([]*domain.AlertRule, 0),
	}

	var rules []*domain.AlertRule
	if found, err := s.gateway.Load(ctx, domain.KeyAlerts, &rules); err != nil {
		s.log.Error().Err(err).Str("key", domain.KeyAlerts).
			Msg("Failed to load alert rules, starting from an empty set")
	} else if found {
		for _, rule := range rules {
			if rule == nil || rule.Validate() != nil {
				s.log.Error().Str("key", domain.KeyAlerts).
					Msg("Discarding malformed persisted alert rule")
				continue
			}
			s.rules = append(s.rules, rule)
		}
	}
	return s
}

// Create registers a new rule for an asset. The rule starts active and
// untriggered. The condition must belong to the closed condition set;
// anything else fails here, at construction time.
func (s *Store) Create(ctx context.Context, assetID, condition string, threshold decimal.Decimal) (*domain.AlertRule, error) {
	id := domain.NormalizeAssetID(assetID)
	if id == "" {
		return nil, fmt.Errorf("asset id is required: %w", domain.ErrInvalidArgument)
	}
	cond, err := domain.ParseAlertCondition(condition)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", condition, err)
	}

	rule := &domain.AlertRule{
		ID:        uuid.New(),
		AssetID:   id,
		Condition: cond,
		Threshold: threshold,
		Active:    true,
		Triggered: false,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules = append(s.rules, rule)
	if err := s.persistRules(ctx); err != nil {
		s.log.Error().Err(err).Str("asset", id).Msg("Alert rule created in memory but not persisted")
		out := *rule
		return &out, err
	}
	out := *rule
	return &out, nil
}

// Evaluate runs all armed rules (active and not yet triggered) against the
// snapshot and returns the rules that fired during this call only, in rule
// order. Rules whose asset is missing the needed datum are skipped without
// side effects; feed gaps are expected and transient.
//
// State is persisted only when at least one rule fired, so steady-state
// evaluation ticks cost no writes.
func (s *Store) Evaluate(ctx context.Context, snapshot *domain.PriceSnapshot) ([]domain.AlertRule, error) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	triggered := make([]domain.AlertRule, 0)
	for _, rule := range s.rules {
		if !rule.Active || rule.Triggered {
			continue
		}
		fire, evaluable := rule.ShouldFire(snapshot)
		if !evaluable || !fire {
			continue
		}
		at := now
		rule.Triggered = true
		rule.TriggeredAt = &at
		triggered = append(triggered, *rule)
	}

	if len(triggered) == 0 {
		return triggered, nil
	}

	if err := s.persistRules(ctx); err != nil {
		s.log.Error().Err(err).Int("count", len(triggered)).
			Msg("Triggered alerts recorded in memory but not persisted")
		return triggered, err
	}
	return triggered, nil
}

// Deactivate pauses a rule. It does not clear Triggered; a fired rule stays
// fired.
func (s *Store) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.setActive(ctx, id, false)
}

// Reactivate resumes a paused rule. A rule that already fired remains
// excluded from evaluation; create a new rule to re-arm.
func (s *Store) Reactivate(ctx context.Context, id uuid.UUID) error {
	return s.setActive(ctx, id, true)
}

func (s *Store) setActive(ctx context.Context, id uuid.UUID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rule := range s.rules {
		if rule.ID != id {
			continue
		}
		if rule.Active == active {
			return nil // no change, no write
		}
		rule.Active = active
		if err := s.persistRules(ctx); err != nil {
			s.log.Error().Err(err).Str("rule", id.String()).Msg("Alert toggle not persisted")
			return err
		}
		return nil
	}
	return fmt.Errorf("rule %s: %w", id, domain.ErrAlertNotFound)
}

// Delete removes a rule entirely.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rule := range s.rules {
		if rule.ID != id {
			continue
		}
		s.rules = append(s.rules[:i], s.rules[i+1:]...)
		if err := s.persistRules(ctx); err != nil {
			s.log.Error().Err(err).Str("rule", id.String()).Msg("Alert deletion not persisted")
			return err
		}
		return nil
	}
	return fmt.Errorf("rule %s: %w", id, domain.ErrAlertNotFound)
}

// Rules returns a copy of all rules in creation order.
func (s *Store) Rules() []domain.AlertRule {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.AlertRule, 0, len(s.rules))
	for _, rule := range s.rules {
		out = append(out, *rule)
	}
	return out
}

// persistRules saves the rule set. Caller must hold the lock.
func (s *Store) persistRules(ctx context.Context) error {
	if err := s.gateway.Save(ctx, domain.KeyAlerts, s.rules); err != nil {
		return fmt.Errorf("failed to save alert rules: %w", err)
	}
	return nil
}
