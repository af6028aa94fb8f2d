package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertCondition is the closed set of trigger conditions. Condition values
// match the persisted representation used by the frontend store.
type AlertCondition string

const (
	// ConditionAbove fires when the current price >= threshold (price in USD).
	ConditionAbove AlertCondition = "above"
	// ConditionBelow fires when the current price <= threshold (price in USD).
	ConditionBelow AlertCondition = "below"
	// ConditionChangeUp fires when the 24h percent change >= threshold.
	ConditionChangeUp AlertCondition = "change_up"
	// ConditionChangeDown fires when the 24h percent change <= threshold
	// (threshold is typically negative).
	ConditionChangeDown AlertCondition = "change_down"
)

// conditionPredicates maps each condition to its firing predicate over the
// observed value (price or percent change) and the rule threshold.
var conditionPredicates = map[AlertCondition]func(observed, threshold decimal.Decimal) bool{
	ConditionAbove:      func(o, t decimal.Decimal) bool { return o.GreaterThanOrEqual(t) },
	ConditionBelow:      func(o, t decimal.Decimal) bool { return o.LessThanOrEqual(t) },
	ConditionChangeUp:   func(o, t decimal.Decimal) bool { return o.GreaterThanOrEqual(t) },
	ConditionChangeDown: func(o, t decimal.Decimal) bool { return o.LessThanOrEqual(t) },
}

// ParseAlertCondition validates a condition string against the closed set.
// Unknown conditions are a construction-time error, never a silent no-op at
// evaluation time.
func ParseAlertCondition(s string) (AlertCondition, error) {
	c := AlertCondition(s)
	if _, ok := conditionPredicates[c]; !ok {
		return "", ErrUnknownCondition
	}
	return c, nil
}

// UsesChange reports whether the condition compares against the 24h percent
// change rather than the current price.
func (c AlertCondition) UsesChange() bool {
	return c == ConditionChangeUp || c == ConditionChangeDown
}

// AlertRule is a user-defined trigger evaluated against the price feed.
// Once triggered it is excluded from all future evaluation; re-arming requires
// creating a new rule (at-most-once firing).
type AlertRule struct {
	ID        uuid.UUID       `json:"id"`
	AssetID   string          `json:"assetId"`
	Condition AlertCondition  `json:"condition"`
	Threshold decimal.Decimal `json:"threshold"` // price for above/below, percent for change_*
	Active    bool            `json:"active"`
	Triggered bool            `json:"triggered"`
	CreatedAt time.Time       `json:"createdAt"`

	// TriggeredAt is set atomically with Triggered and never cleared by the
	// store; deactivation does not reset it.
	TriggeredAt *time.Time `json:"triggeredAt,omitempty"`
}

// ShouldFire evaluates the rule's predicate against a snapshot.
//
// The returned evaluable flag is false when the snapshot lacks the datum the
// condition needs (price for above/below, percent change for change_*). Feed
// gaps are expected and transient, so an unevaluable rule is skipped without
// side effects rather than treated as an error. In particular a missing price
// must not be read as zero, which would spuriously fire every below rule.
func (r *AlertRule) ShouldFire(snap *PriceSnapshot) (fire, evaluable bool) {
	if snap == nil {
		return false, false
	}
	var observed decimal.Decimal
	if r.Condition.UsesChange() {
		change, ok := snap.Changes[r.AssetID]
		if !ok {
			return false, false
		}
		observed = decimal.NewFromFloat(change)
	} else {
		price, ok := snap.Prices[r.AssetID]
		if !ok {
			return false, false
		}
		observed = price
	}
	return conditionPredicates[r.Condition](observed, r.Threshold), true
}

// Validate ensures the alert rule adheres to domain rules
// Returns an error if validation fails
func (r *AlertRule) Validate() error {
	if r.AssetID == "" {
		return ErrInvalidArgument
	}
	if _, ok := conditionPredicates[r.Condition]; !ok {
		return ErrUnknownCondition
	}
	return nil
}
