package engine

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"

	"capsim/internal/agents"
	"capsim/internal/entropy"
	"capsim/internal/events"
	"capsim/internal/trends"
)

// applyInfluence processes one TREND_INFLUENCE event: select the audience,
// roll per-reader reactions, apply the delta table, then credit the author
// with the aggregate PostEffect.
func (e *Engine) applyInfluence(ev *events.Event) error {
	t, ok := e.trendByID[ev.Payload.TrendID]
	if !ok || !t.Active(e.now, e.cfg.TrendArchiveThresholdDays) {
		return nil
	}

	virality := t.CurrentVirality()
	day := int64(e.now / 1440)
	audience := e.selectAudience(t, day)

	readers := 0
	sumEnergy := 0.0
	for _, reader := range audience {
		reader.ExposureHistory[t.ID] = e.now

		affinity := e.tables.AffinityFor(reader.Profession, t.Topic)
		p := (virality / 5) * (reader.TrendReceptivity / 5) * (affinity / 5) * e.rng.Uniform(0.8, 1.2)
		if e.rng.Float64() >= p {
			continue
		}
		readers++
		sumEnergy += e.reactReader(reader, t, affinity, virality)
		e.scheduleFollowUp(reader, t)
		e.repo.PersistAgents([]*agents.Agent{reader})
	}

	// Counter bump happens once per influence event, not per reader.
	t.AddInteraction(e.now)
	e.applyPostEffect(t, readers, sumEnergy)
	e.repo.PersistTrends([]*trends.Trend{t})
	return nil
}

// selectAudience filters eligible readers and caps them by coverage level.
// Sampling is seeded by (trend, day) so re-runs pick the same readers.
func (e *Engine) selectAudience(t *trends.Trend, day int64) []*agents.Agent {
	var eligible []*agents.Agent
	for _, a := range e.agentList {
		if a.ID == t.OriginatorID {
			continue
		}
		if e.tables.AffinityFor(a.Profession, t.Topic) <= 0 {
			continue
		}
		if last, seen := a.ExposureHistory[t.ID]; seen && e.now-last < e.cfg.ExposureResetMin {
			continue
		}
		eligible = append(eligible, a)
	}

	n := int(math.Ceil(float64(len(eligible)) * t.AudienceShare()))
	if n >= len(eligible) {
		return eligible
	}
	src := entropy.Derive(e.cfg.Seed, trendSeed(t.ID), day)
	for i := len(eligible) - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		eligible[i], eligible[j] = eligible[j], eligible[i]
	}
	return eligible[:n]
}

// reactReader applies the sentiment/interest-match delta table plus the
// social and time-budget shifts. Returns the energy delta for the author's
// PostEffect aggregate.
func (e *Engine) reactReader(reader *agents.Agent, t *trends.Trend, affinity, virality float64) float64 {
	match := affinity > 3

	var dReceptivity, dEnergy float64
	switch {
	case t.Sentiment == trends.SentimentPositive && match:
		dReceptivity, dEnergy = 0.01, 0.02
	case t.Sentiment == trends.SentimentPositive:
		dReceptivity, dEnergy = 0, 0.015
	case match:
		dReceptivity, dEnergy = 0.01, -0.015
	default:
		dReceptivity, dEnergy = 0.01, -0.010
	}

	src := t.ID
	e.apply(reader, agents.AttrTrendReceptivity, dReceptivity, "TrendInfluence", &src)
	e.apply(reader, agents.AttrEnergyLevel, dEnergy, "TrendInfluence", &src)
	e.apply(reader, agents.AttrSocialStatus, (virality-1)*0.02, "TrendInfluence", &src)
	e.apply(reader, agents.AttrTimeBudget, -(0.5 * t.CoverageFactor()), "TrendInfluence", &src)
	return dEnergy
}

// applyPostEffect credits the author once per influence pass with a social
// status delta aggregated over the reacting readers.
func (e *Engine) applyPostEffect(t *trends.Trend, readers int, sumEnergy float64) {
	author, ok := e.agentByID[t.OriginatorID]
	if !ok {
		return
	}
	delta := sumEnergy * math.Log(float64(readers)+1) / math.Ln10 * t.Sentiment.Signed() / 50
	delta = clampf(delta, -1, 1)

	src := t.ID
	e.apply(author, agents.AttrSocialStatus, delta, "PostEffect", &src)
	e.repo.PersistAgents([]*agents.Agent{author})
}

// scheduleFollowUp enqueues at most one response post per reader per trend,
// delayed by a clamped exponential draw.
func (e *Engine) scheduleFollowUp(reader *agents.Agent, t *trends.Trend) {
	seen := e.responded[t.ID]
	if seen == nil {
		seen = make(map[uuid.UUID]bool)
		e.responded[t.ID] = seen
	}
	if seen[reader.ID] {
		return
	}
	seen[reader.ID] = true

	delay := e.rng.ExpMinutes(1.0/15.0, 1, 60)
	e.schedule(events.New(events.KindPublishPost, e.now+delay, events.Payload{
		AgentID:       reader.ID,
		Topic:         t.Topic,
		ParentTrendID: t.ID,
	}))
}

// trendSeed folds a trend id into the derivation tuple.
func trendSeed(id uuid.UUID) int64 {
	return int64(binary.BigEndian.Uint64(id[:8]))
}
