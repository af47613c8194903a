package trends

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrentViralityGrowsLogarithmically(t *testing.T) {
	tr := &Trend{BaseVirality: 2.0}
	assert.Equal(t, 2.0, tr.CurrentVirality())

	tr.TotalInteractions = 10
	expected := 2.0 + 0.05*math.Log(11)
	assert.InDelta(t, expected, tr.CurrentVirality(), 1e-9)

	tr.TotalInteractions = 100
	assert.Greater(t, tr.CurrentVirality(), expected)
}

func TestCurrentViralityCapped(t *testing.T) {
	tr := &Trend{BaseVirality: 4.99, TotalInteractions: 1_000_000}
	assert.Equal(t, 5.0, tr.CurrentVirality())
}

func TestAddInteraction(t *testing.T) {
	tr := &Trend{}
	tr.AddInteraction(120)
	tr.AddInteraction(300)
	assert.Equal(t, 2, tr.TotalInteractions)
	assert.Equal(t, 300.0, tr.LastInteractionTS)
}

func TestActiveWindow(t *testing.T) {
	tr := &Trend{LastInteractionTS: 1000}
	assert.True(t, tr.Active(1000, 3))
	assert.True(t, tr.Active(1000+3*1440-1, 3))
	assert.False(t, tr.Active(1000+3*1440, 3))
}

func TestCoverageFactors(t *testing.T) {
	cases := []struct {
		level  CoverageLevel
		factor float64
		share  float64
	}{
		{CoverageLow, 0.2, 0.3},
		{CoverageMiddle, 0.4, 0.6},
		{CoverageHigh, 0.6, 1.0},
	}
	for _, c := range cases {
		tr := &Trend{Coverage: c.level}
		assert.Equal(t, c.factor, tr.CoverageFactor(), string(c.level))
		assert.Equal(t, c.share, tr.AudienceShare(), string(c.level))
	}
}

func TestCoverageFromStatus(t *testing.T) {
	assert.Equal(t, CoverageLow, CoverageFromStatus(0))
	assert.Equal(t, CoverageLow, CoverageFromStatus(0.32))
	assert.Equal(t, CoverageMiddle, CoverageFromStatus(0.33))
	assert.Equal(t, CoverageMiddle, CoverageFromStatus(0.65))
	assert.Equal(t, CoverageHigh, CoverageFromStatus(0.66))
	assert.Equal(t, CoverageHigh, CoverageFromStatus(1))
}

func TestSentimentSigned(t *testing.T) {
	assert.Equal(t, 1.0, SentimentPositive.Signed())
	assert.Equal(t, -1.0, SentimentNegative.Signed())
}
