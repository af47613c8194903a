package engine

import (
	"github.com/google/uuid"

	"capsim/internal/agents"
	"capsim/internal/events"
	"capsim/internal/metrics"
	"capsim/internal/trends"
)

// decisionPass runs the selector over the population and schedules the
// chosen actions with a small dispatch delay. Work hours gate the whole
// pass; the per-agent gates run inside the selector.
func (e *Engine) decisionPass() {
	if !agents.IsWorkHours(e.now) {
		return
	}
	trend := e.hottestTrend()
	for _, a := range e.agentList {
		params := agents.DecideParams{
			Gates:          e.gates,
			ScoreThreshold: e.cfg.DecideScoreThreshold,
			ShopWeight:     e.tables.ShopWeights[a.Profession],
			PostBaseline:   0.3,
		}
		action, ok := a.DecideAction(e.now, trend, params, e.rng)
		if !ok {
			continue
		}
		ts := e.now + e.rng.Uniform(1, 30)
		payload := events.Payload{AgentID: a.ID}
		var kind events.Kind
		switch action {
		case agents.ActionPost:
			kind = events.KindPublishPost
			payload.Topic = e.pickTopic(a, trend)
			if trend != nil && trend.Topic == payload.Topic {
				payload.ParentTrendID = trend.ID
			}
		case agents.ActionSelfDev:
			kind = events.KindSelfDev
		case agents.ActionPurchaseL1:
			kind = events.KindPurchaseL1
		case agents.ActionPurchaseL2:
			kind = events.KindPurchaseL2
		case agents.ActionPurchaseL3:
			kind = events.KindPurchaseL3
		default:
			continue
		}
		e.schedule(events.New(kind, ts, payload))
	}
}

// hottestTrend returns the active trend with the highest current virality,
// scanning in insertion order so equal scores resolve deterministically.
func (e *Engine) hottestTrend() *trends.Trend {
	var best *trends.Trend
	for _, id := range e.trendIDs {
		t, ok := e.trendByID[id]
		if !ok || !t.Active(e.now, e.cfg.TrendArchiveThresholdDays) {
			continue
		}
		if best == nil || t.CurrentVirality() > best.CurrentVirality() {
			best = t
		}
	}
	return best
}

// pickTopic chooses a post topic: follow the contextual trend when the
// author's profession has affinity for it, otherwise sample by affinity.
func (e *Engine) pickTopic(a *agents.Agent, trend *trends.Trend) trends.Topic {
	if trend != nil && e.tables.AffinityFor(a.Profession, trend.Topic) > 0 {
		return trend.Topic
	}
	topics := trends.Topics()
	weights := make([]float64, len(topics))
	for i, topic := range topics {
		weights[i] = e.tables.AffinityFor(a.Profession, topic)
	}
	if idx := e.rng.WeightedIndex(weights); idx >= 0 {
		return topics[idx]
	}
	return topics[e.rng.Intn(len(topics))]
}

// executeAction applies one agent action event. Gates are re-checked at
// execution time (attributes may have moved since the decision); a failed
// re-check cancels silently. Work hours are a decision-time concern only.
func (e *Engine) executeAction(ev *events.Event) error {
	a, ok := e.agentByID[ev.Payload.AgentID]
	if !ok {
		e.log.Error("action for unknown agent",
			"sim_id", e.runID, "event_id", ev.ID, "agent_id", ev.Payload.AgentID)
		return nil
	}

	switch ev.Kind {
	case events.KindPublishPost:
		e.executePost(a, ev)
	case events.KindSelfDev:
		e.executeSelfDev(a, ev)
	case events.KindPurchaseL1, events.KindPurchaseL2, events.KindPurchaseL3:
		e.executePurchase(a, ev)
	}
	return nil
}

func (e *Engine) executePost(a *agents.Agent, ev *events.Event) {
	if a.LastPostTS != nil && e.now-*a.LastPostTS < e.gates.PostCooldownMin {
		e.gateFailed(a, ev)
		return
	}
	if a.EnergyLevel < e.gates.PostEnergyCost || a.TimeBudget < e.gates.PostTimeCost {
		e.gateFailed(a, ev)
		return
	}

	e.applyEffect(a, e.effects.Post, "Post", nil)
	ts := e.now
	a.LastPostTS = &ts

	t := e.createTrend(a, ev.Payload.Topic, ev.Payload.ParentTrendID)
	e.schedule(events.New(events.KindTrendInfluence, e.now+5, events.Payload{
		TrendID: t.ID,
	}))

	e.repo.PersistAgents([]*agents.Agent{a})
	e.repo.PersistTrends([]*trends.Trend{t})
	metrics.ActionsTotal.WithLabelValues("POST", "", string(a.Profession)).Inc()
}

func (e *Engine) executeSelfDev(a *agents.Agent, ev *events.Event) {
	if a.LastSelfDevTS != nil && e.now-*a.LastSelfDevTS < e.gates.SelfDevCooldownMin {
		e.gateFailed(a, ev)
		return
	}
	if a.TimeBudget < e.gates.SelfDevTimeCost {
		e.gateFailed(a, ev)
		return
	}

	e.applyEffect(a, e.effects.SelfDev, "SelfDev", nil)
	ts := e.now
	a.LastSelfDevTS = &ts

	e.repo.PersistAgents([]*agents.Agent{a})
	metrics.ActionsTotal.WithLabelValues("SELF_DEV", "", string(a.Profession)).Inc()
}

func (e *Engine) executePurchase(a *agents.Agent, ev *events.Event) {
	level := ev.Kind.PurchaseLevel()
	if !a.CanPurchase(e.now, level, e.gates) {
		e.gateFailed(a, ev)
		return
	}

	e.applyEffect(a, e.effects.PurchaseLevel(level), "Purchase", nil)
	a.PurchasesToday++
	ts := e.now
	a.LastPurchaseTS[level-1] = &ts

	e.repo.PersistAgents([]*agents.Agent{a})
	metrics.ActionsTotal.WithLabelValues("PURCHASE", levelLabel(level), string(a.Profession)).Inc()
}

func (e *Engine) gateFailed(a *agents.Agent, ev *events.Event) {
	e.log.Debug("gate re-check failed, action cancelled",
		"sim_id", e.runID, "event_id", ev.ID, "kind", ev.Kind, "agent_id", a.ID)
}

// createTrend builds a trend from a publish: base virality blends the
// author's social status, the profession/topic affinity, and the author's
// energy, jittered by a uniform factor.
func (e *Engine) createTrend(author *agents.Agent, topic trends.Topic, parent uuid.UUID) *trends.Trend {
	affinity := e.tables.AffinityFor(author.Profession, topic)
	raw := 0.5*(author.SocialStatus/5) + 0.3*(affinity/5) + 0.2*(author.EnergyLevel/5)
	base := clampf(raw*e.rng.Uniform(0.8, 1.2), 0, 5)

	sentiment := trends.SentimentPositive
	if e.rng.Float64() < 0.5 {
		sentiment = trends.SentimentNegative
	}

	t := &trends.Trend{
		ID:                e.rng.UUID(),
		SimulationID:      e.runID,
		Topic:             topic,
		OriginatorID:      author.ID,
		CreatedTS:         e.now,
		BaseVirality:      base,
		Coverage:          e.coverageFor(topic),
		Sentiment:         sentiment,
		LastInteractionTS: e.now,
	}
	if parent != uuid.Nil {
		p := parent
		t.ParentID = &p
	}
	e.trendByID[t.ID] = t
	e.trendIDs = append(e.trendIDs, t.ID)
	return t
}

// coverageFor classifies the audience size from the mean social status of
// the professions with affinity for the topic.
func (e *Engine) coverageFor(topic trends.Topic) trends.CoverageLevel {
	sum, n := 0.0, 0
	for _, a := range e.agentList {
		if e.tables.AffinityFor(a.Profession, topic) > 0 {
			sum += a.SocialStatus
			n++
		}
	}
	if n == 0 {
		return trends.CoverageLow
	}
	return trends.CoverageFromStatus(sum / float64(n) / 5)
}

func levelLabel(level int) string {
	switch level {
	case 1:
		return "L1"
	case 2:
		return "L2"
	case 3:
		return "L3"
	}
	return ""
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
