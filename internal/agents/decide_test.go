package agents

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capsim/internal/entropy"
	"capsim/internal/trends"
)

func decideParams() DecideParams {
	return DecideParams{
		Gates:          testGates(),
		ScoreThreshold: 0.25,
		ShopWeight:     1.0,
		PostBaseline:   0.3,
	}
}

func viralTrend(topic trends.Topic) *trends.Trend {
	return &trends.Trend{
		ID:           uuid.New(),
		Topic:        topic,
		BaseVirality: 4.0,
		Sentiment:    trends.SentimentPositive,
	}
}

func TestCandidatesThresholdFilter(t *testing.T) {
	a := newTestAgent()
	p := decideParams()
	p.ScoreThreshold = 10 // nothing can reach this

	cands := a.Candidates(500, viralTrend(trends.TopicScience), p)
	assert.Empty(t, cands)
}

func TestCandidatesScores(t *testing.T) {
	a := newTestAgent()
	a.EnergyLevel = 5 // self-dev score 0, dropped by threshold
	p := decideParams()

	cands := a.Candidates(500, viralTrend(trends.TopicScience), p)
	names := make(map[string]float64)
	for _, c := range cands {
		names[c.Name] = c.Score
	}

	// post score = virality * receptivity / 25 * (1 + ss/10)
	require.Contains(t, names, ActionPost)
	assert.InDelta(t, 4.0*4.0/25*(1+2.0/10), names[ActionPost], 1e-9)

	require.Contains(t, names, ActionPurchaseL1)
	assert.InDelta(t, 0.3, names[ActionPurchaseL1], 1e-9)

	assert.NotContains(t, names, ActionSelfDev)
}

func TestCandidatesEconomicTopicBoostsPurchases(t *testing.T) {
	a := newTestAgent()
	p := decideParams()

	cands := a.Candidates(500, viralTrend(trends.TopicEconomic), p)
	for _, c := range cands {
		if c.Name == ActionPurchaseL1 {
			assert.InDelta(t, 0.3*1.2, c.Score, 1e-9)
			return
		}
	}
	t.Fatal("no purchase candidate")
}

func TestDecideActionDeterministic(t *testing.T) {
	a := newTestAgent()
	b := newTestAgent()
	b.ID = a.ID
	p := decideParams()
	trend := viralTrend(trends.TopicScience)

	first, ok1 := a.DecideAction(500, trend, p, entropy.NewSource(7))
	second, ok2 := b.DecideAction(500, trend, p, entropy.NewSource(7))
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, first, second)
}

func TestDecideActionNoCandidates(t *testing.T) {
	a := newTestAgent()
	a.EnergyLevel = 0.1
	a.TimeBudget = 0
	a.FinancialCapability = 0
	p := decideParams()

	_, ok := a.DecideAction(500, nil, p, entropy.NewSource(1))
	assert.False(t, ok)
}

func TestDecideActionOffHoursStillAllowsNonPost(t *testing.T) {
	a := newTestAgent()
	a.EnergyLevel = 0.5 // self-dev score 0.9
	p := decideParams()

	// t=100 is off-hours: posting gated out, self-dev and purchases remain.
	cands := a.Candidates(100, nil, p)
	for _, c := range cands {
		assert.NotEqual(t, ActionPost, c.Name)
	}
	assert.NotEmpty(t, cands)
}
