package agents

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAgent() *Agent {
	return &Agent{
		ID:                  uuid.New(),
		Profession:          Developer,
		FinancialCapability: 3,
		TrendReceptivity:    4,
		SocialStatus:        2,
		EnergyLevel:         5,
		TimeBudget:          3,
		Interests:           map[Interest]float64{},
		ExposureHistory:     map[uuid.UUID]float64{},
	}
}

func TestApplyClampsToRange(t *testing.T) {
	a := newTestAgent()
	a.EnergyLevel = 4

	ch, ok := a.Apply(AttrEnergyLevel, +10, 100, "test", nil)
	require.True(t, ok)
	assert.Equal(t, 5.0, a.EnergyLevel)
	assert.Equal(t, 5.0, ch.NewValue)
	assert.Equal(t, 1.0, ch.Delta, "recorded delta reflects the clamped move")

	ch, ok = a.Apply(AttrSocialStatus, -10, 100, "test", nil)
	require.True(t, ok)
	assert.Equal(t, 0.0, a.SocialStatus)
	assert.Equal(t, -2.0, ch.Delta)
}

func TestApplyNoOpEmitsNoRecord(t *testing.T) {
	a := newTestAgent()
	a.EnergyLevel = 5

	_, ok := a.Apply(AttrEnergyLevel, +1, 100, "test", nil)
	assert.False(t, ok, "clamped-to-same value must not emit a history record")

	_, ok = a.Apply(AttrEnergyLevel, 0, 100, "test", nil)
	assert.False(t, ok)
}

func TestApplyRecordsLosslessDelta(t *testing.T) {
	a := newTestAgent()
	start := a.TimeBudget

	total := 0.0
	for _, d := range []float64{-0.2, -1.0, 0.7, -0.5} {
		ch, ok := a.Apply(AttrTimeBudget, d, 50, "test", nil)
		require.True(t, ok)
		total += ch.Delta
	}
	assert.InDelta(t, a.TimeBudget-start, total, 1e-12)
}

func TestQuantizeHalf(t *testing.T) {
	assert.Equal(t, 2.5, QuantizeHalf(2.6))
	assert.Equal(t, 3.0, QuantizeHalf(2.8))
	assert.Equal(t, 0.0, QuantizeHalf(0.2))
	assert.Equal(t, 5.0, QuantizeHalf(4.9))
}

func TestIsWorkHours(t *testing.T) {
	assert.False(t, IsWorkHours(0))
	assert.False(t, IsWorkHours(479))
	assert.True(t, IsWorkHours(480))
	assert.True(t, IsWorkHours(1439))
	assert.False(t, IsWorkHours(1440)) // next day 00:00
	assert.True(t, IsWorkHours(1440+480))
}

func TestApplySameMinuteChangesGetDistinctSeq(t *testing.T) {
	a := newTestAgent()
	a.TrendReceptivity = 3

	first, ok := a.Apply(AttrTrendReceptivity, 0.01, 100, "test", nil)
	require.True(t, ok)
	second, ok := a.Apply(AttrTrendReceptivity, 0.01, 100, "test", nil)
	require.True(t, ok)

	assert.Greater(t, second.Seq, first.Seq,
		"same attribute, same minute: records stay distinct")
}

func testGates() GateParams {
	return GateParams{
		PostCooldownMin:    60,
		SelfDevCooldownMin: 30,
		MaxPurchasesDay:    5,
		PostEnergyCost:     0.5,
		PostTimeCost:       0.2,
		SelfDevTimeCost:    1.0,
		PurchaseThresholds: [PurchaseLevels]float64{0.05, 0.50, 2.00},
	}
}

func TestCanPostCooldown(t *testing.T) {
	a := newTestAgent()
	g := testGates()

	assert.True(t, a.CanPost(500, g))

	last := 490.0
	a.LastPostTS = &last
	assert.False(t, a.CanPost(500, g), "10 minutes since last post, cooldown 60")
	assert.True(t, a.CanPost(550, g))
}

func TestCanPostResources(t *testing.T) {
	a := newTestAgent()
	g := testGates()

	a.EnergyLevel = 0.4
	assert.False(t, a.CanPost(500, g))

	a.EnergyLevel = 5
	a.TimeBudget = 0.1
	assert.False(t, a.CanPost(500, g))

	a.TimeBudget = 3
	assert.False(t, a.CanPost(100, g), "off-hours")
}

func TestCanSelfDev(t *testing.T) {
	a := newTestAgent()
	g := testGates()

	assert.True(t, a.CanSelfDev(100, g))

	last := 90.0
	a.LastSelfDevTS = &last
	assert.False(t, a.CanSelfDev(100, g))
	assert.True(t, a.CanSelfDev(120, g))

	a.LastSelfDevTS = nil
	a.TimeBudget = 0.5
	assert.False(t, a.CanSelfDev(100, g))
}

func TestCanPurchase(t *testing.T) {
	a := newTestAgent()
	g := testGates()

	assert.True(t, a.CanPurchase(100, 1, g))
	assert.True(t, a.CanPurchase(100, 3, g), "financial 3.0 over L3 threshold 2.0")

	a.FinancialCapability = 1.0
	assert.False(t, a.CanPurchase(100, 3, g))
	assert.True(t, a.CanPurchase(100, 2, g))

	a.PurchasesToday = 5
	assert.False(t, a.CanPurchase(100, 1, g), "daily limit reached")

	a.PurchasesToday = 0
	assert.False(t, a.CanPurchase(100, 0, g))
	assert.False(t, a.CanPurchase(100, 4, g))
}

func TestCanPurchasePerLevelCooldown(t *testing.T) {
	a := newTestAgent()
	g := testGates()
	cd := 120.0
	g.PurchaseCooldowns[0] = &cd

	last := 100.0
	a.LastPurchaseTS[0] = &last
	assert.False(t, a.CanPurchase(150, 1, g))
	assert.True(t, a.CanPurchase(220, 1, g))
	assert.True(t, a.CanPurchase(150, 2, g), "cooldown is per level")
}
