package agents

import (
	"sort"

	"capsim/internal/entropy"
	"capsim/internal/trends"
)

// Action names returned by the selector.
const (
	ActionPost       = "POST"
	ActionPurchaseL1 = "PURCHASE_L1"
	ActionPurchaseL2 = "PURCHASE_L2"
	ActionPurchaseL3 = "PURCHASE_L3"
	ActionSelfDev    = "SELF_DEV"
)

// PurchaseAction returns the action name for a 1-based purchase level.
func PurchaseAction(level int) string {
	switch level {
	case 1:
		return ActionPurchaseL1
	case 2:
		return ActionPurchaseL2
	case 3:
		return ActionPurchaseL3
	}
	return ""
}

// DecideParams carries the selector's tunables alongside the gate params.
type DecideParams struct {
	Gates          GateParams
	ScoreThreshold float64
	ShopWeight     float64 // profession multiplier for purchase scores
	PostBaseline   float64 // post score when no trend context is supplied
}

// Candidate is a scored action option.
type Candidate struct {
	Name  string
	Score float64
}

// Candidates builds the scored list of actions whose gates pass at t. The
// optional trend supplies context for post and purchase scoring.
func (a *Agent) Candidates(t float64, trend *trends.Trend, p DecideParams) []Candidate {
	var out []Candidate

	if a.CanPost(t, p.Gates) {
		score := p.PostBaseline
		if trend != nil {
			score = trend.CurrentVirality() * a.TrendReceptivity / 25 * (1 + a.SocialStatus/10)
		}
		out = append(out, Candidate{Name: ActionPost, Score: score})
	}

	for level := 1; level <= PurchaseLevels; level++ {
		if !a.CanPurchase(t, level, p.Gates) {
			continue
		}
		score := 0.3 * p.ShopWeight
		if trend != nil && trend.Topic == trends.TopicEconomic {
			score *= 1.2
		}
		out = append(out, Candidate{Name: PurchaseAction(level), Score: score})
	}

	if a.CanSelfDev(t, p.Gates) {
		score := 1 - a.EnergyLevel/5
		if score < 0 {
			score = 0
		}
		out = append(out, Candidate{Name: ActionSelfDev, Score: score})
	}

	// Drop sub-threshold candidates.
	kept := out[:0]
	for _, c := range out {
		if c.Score >= p.ScoreThreshold {
			kept = append(kept, c)
		}
	}
	return kept
}

// DecideAction selects one action by score-weighted sampling over the
// candidates that pass their gates. Candidates are sorted by name first so
// equal scores resolve deterministically. Returns ok=false when nothing is
// eligible.
func (a *Agent) DecideAction(t float64, trend *trends.Trend, p DecideParams, rng *entropy.Source) (string, bool) {
	cands := a.Candidates(t, trend, p)
	if len(cands) == 0 {
		return "", false
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].Name < cands[j].Name })

	weights := make([]float64, len(cands))
	for i, c := range cands {
		weights[i] = c.Score
	}
	idx := rng.WeightedIndex(weights)
	if idx < 0 {
		return "", false
	}
	return cands[idx].Name, true
}
