package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func snapshotWith(prices map[string]float64, changes map[string]float64) *PriceSnapshot {
	snap := &PriceSnapshot{
		Prices:  make(map[string]decimal.Decimal),
		Changes: changes,
		At:      time.Now(),
	}
	for id, p := range prices {
		snap.Prices[id] = decimal.NewFromFloat(p)
	}
	if snap.Changes == nil {
		snap.Changes = make(map[string]float64)
	}
	return snap
}

func TestParseAlertCondition(t *testing.T) {
	for _, valid := range []string{"above", "below", "change_up", "change_down"} {
		c, err := ParseAlertCondition(valid)
		assert.NoError(t, err)
		assert.Equal(t, AlertCondition(valid), c)
	}

	_, err := ParseAlertCondition("crosses")
	assert.ErrorIs(t, err, ErrUnknownCondition)

	_, err = ParseAlertCondition("")
	assert.ErrorIs(t, err, ErrUnknownCondition)
}

func TestShouldFire_PriceConditions(t *testing.T) {
	snap := snapshotWith(map[string]float64{"bitcoin": 65000}, nil)

	above := &AlertRule{AssetID: "bitcoin", Condition: ConditionAbove, Threshold: decimal.NewFromInt(60000)}
	fire, evaluable := above.ShouldFire(snap)
	assert.True(t, evaluable)
	assert.True(t, fire)

	// Boundary: >= threshold fires
	exact := &AlertRule{AssetID: "bitcoin", Condition: ConditionAbove, Threshold: decimal.NewFromInt(65000)}
	fire, _ = exact.ShouldFire(snap)
	assert.True(t, fire)

	below := &AlertRule{AssetID: "bitcoin", Condition: ConditionBelow, Threshold: decimal.NewFromInt(60000)}
	fire, evaluable = below.ShouldFire(snap)
	assert.True(t, evaluable)
	assert.False(t, fire)
}

func TestShouldFire_ChangeConditions(t *testing.T) {
	snap := snapshotWith(nil, map[string]float64{"ethereum": -7.5})

	down := &AlertRule{AssetID: "ethereum", Condition: ConditionChangeDown, Threshold: decimal.NewFromInt(-5)}
	fire, evaluable := down.ShouldFire(snap)
	assert.True(t, evaluable)
	assert.True(t, fire)

	up := &AlertRule{AssetID: "ethereum", Condition: ConditionChangeUp, Threshold: decimal.NewFromInt(5)}
	fire, evaluable = up.ShouldFire(snap)
	assert.True(t, evaluable)
	assert.False(t, fire)
}

func TestShouldFire_MissingDatumIsNotEvaluable(t *testing.T) {
	// Price present but change missing: change conditions must be skipped,
	// price conditions still evaluate.
	snap := snapshotWith(map[string]float64{"bitcoin": 65000}, nil)

	changeRule := &AlertRule{AssetID: "bitcoin", Condition: ConditionChangeUp, Threshold: decimal.NewFromInt(1)}
	_, evaluable := changeRule.ShouldFire(snap)
	assert.False(t, evaluable)

	// Asset absent entirely: a below rule must NOT fire on an implied $0 price
	missing := &AlertRule{AssetID: "ripple", Condition: ConditionBelow, Threshold: decimal.NewFromInt(1)}
	fire, evaluable := missing.ShouldFire(snap)
	assert.False(t, evaluable)
	assert.False(t, fire)
}

func TestAlertRuleValidate(t *testing.T) {
	valid := &AlertRule{AssetID: "bitcoin", Condition: ConditionAbove, Threshold: decimal.NewFromInt(1)}
	assert.NoError(t, valid.Validate())

	unknown := &AlertRule{AssetID: "bitcoin", Condition: "crosses"}
	assert.ErrorIs(t, unknown.Validate(), ErrUnknownCondition)

	noAsset := &AlertRule{Condition: ConditionAbove}
	assert.ErrorIs(t, noAsset.Validate(), ErrInvalidArgument)
}
