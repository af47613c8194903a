// Package agents provides the agent data model: scalar attributes, daily
// cooldown state, gate predicates, and the action selector.
package agents

import (
	"math"

	"github.com/google/uuid"
)

// Profession is one of the twelve agent professions.
type Profession string

const (
	ShopClerk       Profession = "ShopClerk"
	Worker          Profession = "Worker"
	Developer       Profession = "Developer"
	Politician      Profession = "Politician"
	Blogger         Profession = "Blogger"
	Businessman     Profession = "Businessman"
	SpiritualMentor Profession = "SpiritualMentor"
	Philosopher     Profession = "Philosopher"
	Unemployed      Profession = "Unemployed"
	Teacher         Profession = "Teacher"
	Artist          Profession = "Artist"
	Doctor          Profession = "Doctor"
)

// Professions returns all professions in a stable order.
func Professions() []Profession {
	return []Profession{
		ShopClerk, Worker, Developer, Politician, Blogger, Businessman,
		SpiritualMentor, Philosopher, Unemployed, Teacher, Artist, Doctor,
	}
}

// Interest is one of the six interest categories.
type Interest string

const (
	InterestEconomics    Interest = "Economics"
	InterestWellbeing    Interest = "Wellbeing"
	InterestSpirituality Interest = "Spirituality"
	InterestKnowledge    Interest = "Knowledge"
	InterestCreativity   Interest = "Creativity"
	InterestSociety      Interest = "Society"
)

// Interests returns all interest categories in a stable order.
func Interests() []Interest {
	return []Interest{
		InterestEconomics, InterestWellbeing, InterestSpirituality,
		InterestKnowledge, InterestCreativity, InterestSociety,
	}
}

// Attribute names a mutable scalar on an agent.
type Attribute string

const (
	AttrFinancialCapability Attribute = "financial_capability"
	AttrTrendReceptivity    Attribute = "trend_receptivity"
	AttrSocialStatus        Attribute = "social_status"
	AttrEnergyLevel         Attribute = "energy_level"
	AttrTimeBudget          Attribute = "time_budget"
)

// PurchaseLevels is the number of purchase tiers (L1..L3).
const PurchaseLevels = 3

// Agent is a simulated person. All scalar attributes live in [0, 5].
type Agent struct {
	ID           uuid.UUID
	SimulationID uuid.UUID
	Profession   Profession

	FinancialCapability float64
	TrendReceptivity    float64
	SocialStatus        float64
	EnergyLevel         float64
	TimeBudget          float64

	Interests       map[Interest]float64
	ExposureHistory map[uuid.UUID]float64 // trend id -> sim-minute of last exposure

	PurchasesToday int
	LastPostTS     *float64
	LastSelfDevTS  *float64
	LastPurchaseTS [PurchaseLevels]*float64

	changeSeq uint64
}

// Change is the append-only history record emitted by every attribute
// mutation. Seq is a per-agent counter, so two mutations of one attribute in
// the same sim-minute stay distinct records.
type Change struct {
	AgentID       uuid.UUID
	Attribute     Attribute
	OldValue      float64
	NewValue      float64
	Delta         float64
	Timestamp     float64
	Seq           uint64
	Reason        string
	SourceTrendID *uuid.UUID
}

// Attr reads a scalar attribute by name.
func (a *Agent) Attr(attr Attribute) float64 {
	switch attr {
	case AttrFinancialCapability:
		return a.FinancialCapability
	case AttrTrendReceptivity:
		return a.TrendReceptivity
	case AttrSocialStatus:
		return a.SocialStatus
	case AttrEnergyLevel:
		return a.EnergyLevel
	case AttrTimeBudget:
		return a.TimeBudget
	}
	return 0
}

func (a *Agent) setAttr(attr Attribute, v float64) {
	switch attr {
	case AttrFinancialCapability:
		a.FinancialCapability = v
	case AttrTrendReceptivity:
		a.TrendReceptivity = v
	case AttrSocialStatus:
		a.SocialStatus = v
	case AttrEnergyLevel:
		a.EnergyLevel = v
	case AttrTimeBudget:
		a.TimeBudget = v
	}
}

// Apply mutates one attribute through the single clamped update path and
// returns the history record. A delta that leaves the value unchanged (after
// clamping) produces no record and returns ok=false.
func (a *Agent) Apply(attr Attribute, delta, now float64, reason string, source *uuid.UUID) (Change, bool) {
	old := a.Attr(attr)
	next := clamp(old+delta, 0, 5)
	if next == old {
		return Change{}, false
	}
	a.setAttr(attr, next)
	a.changeSeq++
	return Change{
		AgentID:       a.ID,
		Attribute:     attr,
		OldValue:      old,
		NewValue:      next,
		Delta:         next - old,
		Timestamp:     now,
		Seq:           a.changeSeq,
		Reason:        reason,
		SourceTrendID: source,
	}, true
}

// QuantizeHalf rounds a value to the nearest 0.5 step. Applied when the
// time budget is drawn at bootstrap and restored at the daily reset.
func QuantizeHalf(v float64) float64 {
	return math.Round(v*2) / 2
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IsWorkHours reports whether agents are active at sim-minute t. The first
// 480 minutes of each day (00:00-08:00) are off-hours.
func IsWorkHours(t float64) bool {
	return math.Mod(t, 1440) >= 480
}

// GateParams carries the cooldowns, costs, and limits the gate predicates
// check. Populated from configuration by the engine.
type GateParams struct {
	PostCooldownMin    float64
	SelfDevCooldownMin float64
	MaxPurchasesDay    int
	PostEnergyCost     float64
	PostTimeCost       float64
	SelfDevTimeCost    float64
	PurchaseThresholds [PurchaseLevels]float64
	PurchaseCooldowns  [PurchaseLevels]*float64 // nil = no per-level cooldown
}

// CanPost checks the post cooldown, energy, time budget, and work hours.
func (a *Agent) CanPost(t float64, p GateParams) bool {
	if a.LastPostTS != nil && t-*a.LastPostTS < p.PostCooldownMin {
		return false
	}
	if a.EnergyLevel < p.PostEnergyCost || a.TimeBudget < p.PostTimeCost {
		return false
	}
	return IsWorkHours(t)
}

// CanSelfDev checks the self-development cooldown and time budget.
func (a *Agent) CanSelfDev(t float64, p GateParams) bool {
	if a.LastSelfDevTS != nil && t-*a.LastSelfDevTS < p.SelfDevCooldownMin {
		return false
	}
	return a.TimeBudget >= p.SelfDevTimeCost
}

// CanPurchase checks the daily purchase limit, the level's financial
// threshold, and the optional per-level cooldown. level is 1-based.
func (a *Agent) CanPurchase(t float64, level int, p GateParams) bool {
	if level < 1 || level > PurchaseLevels {
		return false
	}
	if a.PurchasesToday >= p.MaxPurchasesDay {
		return false
	}
	if a.FinancialCapability < p.PurchaseThresholds[level-1] {
		return false
	}
	if cd := p.PurchaseCooldowns[level-1]; cd != nil {
		if last := a.LastPurchaseTS[level-1]; last != nil && t-*last < *cd {
			return false
		}
	}
	return true
}
