// Package statics holds the read-only lookup tables loaded at bootstrap:
// profession/topic affinities, attribute and interest ranges, the
// topic-to-interest mapping, and shop weights.
package statics

import (
	"fmt"

	"capsim/internal/agents"
	"capsim/internal/trends"
)

// Range is an inclusive [Lo, Hi] draw interval.
type Range struct {
	Lo float64
	Hi float64
}

// Midpoint returns (Lo+Hi)/2.
func (r Range) Midpoint() float64 { return (r.Lo + r.Hi) / 2 }

// AttributeRanges are the per-profession draw intervals for the scalar
// attributes.
type AttributeRanges struct {
	FinancialCapability Range
	TrendReceptivity    Range
	SocialStatus        Range
	EnergyLevel         Range
	TimeBudget          Range
}

// Tables bundles every static lookup the simulation consumes. Treated as a
// read-only snapshot after bootstrap.
type Tables struct {
	Affinity        map[agents.Profession]map[trends.Topic]float64
	AttributeRanges map[agents.Profession]AttributeRanges
	InterestRanges  map[agents.Profession]map[agents.Interest]Range
	TopicInterest   map[trends.Topic]agents.Interest
	ShopWeights     map[agents.Profession]float64
}

// AffinityFor returns the profession's affinity (1..5) for a topic, or 0
// when the profession has none.
func (t *Tables) AffinityFor(p agents.Profession, topic trends.Topic) float64 {
	return t.Affinity[p][topic]
}

// Validate checks the tables are complete: every profession has a full
// affinity row, attribute ranges, all six interest ranges, and a shop
// weight; every topic maps to an interest.
func (t *Tables) Validate() error {
	for _, p := range agents.Professions() {
		row, ok := t.Affinity[p]
		if !ok {
			return fmt.Errorf("affinity map: missing profession %s", p)
		}
		for _, topic := range trends.Topics() {
			if _, ok := row[topic]; !ok {
				return fmt.Errorf("affinity map: %s missing topic %s", p, topic)
			}
		}
		if _, ok := t.AttributeRanges[p]; !ok {
			return fmt.Errorf("attribute ranges: missing profession %s", p)
		}
		ir, ok := t.InterestRanges[p]
		if !ok {
			return fmt.Errorf("interest ranges: missing profession %s", p)
		}
		for _, i := range agents.Interests() {
			if _, ok := ir[i]; !ok {
				return fmt.Errorf("interest ranges: %s missing interest %s", p, i)
			}
		}
		if w, ok := t.ShopWeights[p]; !ok || w <= 0 {
			return fmt.Errorf("shop weights: missing or non-positive for %s", p)
		}
	}
	for _, topic := range trends.Topics() {
		if _, ok := t.TopicInterest[topic]; !ok {
			return fmt.Errorf("topic mapping: missing topic %s", topic)
		}
	}
	return nil
}

// ProfessionShare is one slice of the bootstrap population mix.
type ProfessionShare struct {
	Profession agents.Profession
	Share      float64
}

// Distribution is the bootstrap profession mix. Rounding leftovers are
// assigned to the first entry.
func Distribution() []ProfessionShare {
	return []ProfessionShare{
		{agents.Teacher, 0.20},
		{agents.ShopClerk, 0.18},
		{agents.Developer, 0.12},
		{agents.Unemployed, 0.09},
		{agents.Businessman, 0.08},
		{agents.Artist, 0.08},
		{agents.Worker, 0.07},
		{agents.Blogger, 0.05},
		{agents.SpiritualMentor, 0.03},
		{agents.Philosopher, 0.02},
		{agents.Politician, 0.01},
		{agents.Doctor, 0.01},
	}
}
