package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"capsim/internal/agents"
	"capsim/internal/events"
	"capsim/internal/persistence"
	"capsim/internal/trends"
)

// handleDailyReset zeroes purchase counters and restores time budgets to the
// profession midpoint, then reschedules itself.
func (e *Engine) handleDailyReset(ev *events.Event) error {
	for _, a := range e.agentList {
		if a.PurchasesToday < 0 {
			return fmt.Errorf("%w: agent %s purchases_today=%d before reset",
				ErrInvariant, a.ID, a.PurchasesToday)
		}
		a.PurchasesToday = 0

		target := agents.QuantizeHalf(e.tables.AttributeRanges[a.Profession].TimeBudget.Midpoint())
		e.apply(a, agents.AttrTimeBudget, target-a.TimeBudget, "DailyReset", nil)
	}
	e.repo.PersistAgents(e.agentList)
	e.schedule(events.New(events.KindDailyReset, ev.Timestamp+1440, events.Payload{}))

	if err := e.checkAgentInvariants(); err != nil {
		return err
	}
	stats := e.Stats()
	e.log.Info("daily reset",
		"sim_id", e.runID, "day", int(ev.Timestamp/1440),
		"events", stats.EventsProcessed, "trends", stats.ActiveTrends,
		"queue", stats.QueueLength)
	return nil
}

// handleEnergyRecovery tops agents up: below 3.0 jumps to full, otherwise
// +2.0 capped at 5.0.
func (e *Engine) handleEnergyRecovery(ev *events.Event) error {
	for _, a := range e.agentList {
		var delta float64
		if a.EnergyLevel < 3.0 {
			delta = 5.0 - a.EnergyLevel
		} else {
			delta = min(5.0, a.EnergyLevel+2.0) - a.EnergyLevel
		}
		e.apply(a, agents.AttrEnergyLevel, delta, "EnergyRecovery", nil)
	}
	e.repo.PersistAgents(e.agentList)
	e.schedule(events.New(events.KindEnergyRecovery, ev.Timestamp+e.cfg.EnergyRecoveryIntervalMin, events.Payload{}))
	return nil
}

// handleSaveDailyTrend persists the per-(topic, day) aggregates, runs the
// archival pass, and reschedules.
func (e *Engine) handleSaveDailyTrend(ev *events.Event) error {
	day := int(ev.Timestamp/1440) - 1 // the day that just ended
	stats := e.aggregateDay(day)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.repo.SaveDailyTrendStats(ctx, stats); err != nil {
		e.log.Error("daily trend stats not saved",
			"sim_id", e.runID, "day", day, "error", err)
	}

	e.archivePass()
	e.schedule(events.New(events.KindSaveDailyTrend, ev.Timestamp+1440, events.Payload{}))
	return nil
}

// aggregateDay folds the active trends into per-topic rows and advances the
// day baselines.
func (e *Engine) aggregateDay(day int) []persistence.DailyTrendStat {
	type agg struct {
		interactions int
		viralitySum  float64
		count        int
		authors      map[uuid.UUID]bool
		top          *trends.Trend
	}
	byTopic := make(map[trends.Topic]*agg)

	for _, id := range e.trendIDs {
		t, ok := e.trendByID[id]
		if !ok {
			continue
		}
		a := byTopic[t.Topic]
		if a == nil {
			a = &agg{authors: make(map[uuid.UUID]bool)}
			byTopic[t.Topic] = a
		}
		a.interactions += t.TotalInteractions - e.dayBaseline[t.ID]
		a.viralitySum += t.CurrentVirality()
		a.count++
		a.authors[t.OriginatorID] = true
		if a.top == nil || t.CurrentVirality() > a.top.CurrentVirality() {
			a.top = t
		}
		e.dayBaseline[t.ID] = t.TotalInteractions
	}

	var out []persistence.DailyTrendStat
	for _, topic := range trends.Topics() {
		a, ok := byTopic[topic]
		if !ok {
			continue
		}
		avg := a.viralitySum / float64(a.count)
		pct := 0.0
		if prev := e.prevDayAvg[topic]; prev > 0 {
			pct = (avg - prev) / prev * 100
		}
		e.prevDayAvg[topic] = avg

		stat := persistence.DailyTrendStat{
			SimulationID:      e.runID,
			Day:               day,
			Topic:             string(topic),
			TotalInteractions: a.interactions,
			AvgVirality:       avg,
			UniqueAuthors:     len(a.authors),
			PctChangeVirality: pct,
		}
		if a.top != nil {
			id := a.top.ID
			stat.TopTrendID = &id
		}
		out = append(out, stat)
	}
	return out
}

// archivePass retires trends past the interaction window. Final state
// persists; the trend leaves the active set.
func (e *Engine) archivePass() {
	kept := e.trendIDs[:0]
	for _, id := range e.trendIDs {
		t, ok := e.trendByID[id]
		if !ok {
			continue
		}
		if t.Active(e.now, e.cfg.TrendArchiveThresholdDays) {
			kept = append(kept, id)
			continue
		}
		e.repo.PersistTrends([]*trends.Trend{t})
		e.repo.ArchiveTrend(id)
		delete(e.trendByID, id)
		delete(e.responded, id)
		delete(e.dayBaseline, id)
		e.log.Debug("trend archived",
			"sim_id", e.runID, "trend_id", id, "interactions", t.TotalInteractions)
	}
	e.trendIDs = kept
}

// handleLaw applies the day's announcement, if any, population-wide.
func (e *Engine) handleLaw(ev *events.Event) error {
	day := int(ev.Timestamp / 1440)
	law, ok := e.env.LawForDay(day)
	if ok {
		reason := "Law:" + string(law.Kind)
		for _, a := range e.agentList {
			if law.FinancialDelta != 0 {
				e.apply(a, agents.AttrFinancialCapability, law.FinancialDelta, reason, nil)
			}
			if law.Receptivity != 0 {
				e.apply(a, agents.AttrTrendReceptivity, law.Receptivity, reason, nil)
			}
		}
		e.repo.PersistAgents(e.agentList)
		e.log.Info("law enacted", "sim_id", e.runID, "day", day, "law", law.Kind)
	}
	e.schedule(events.New(events.KindLaw, ev.Timestamp+1440, events.Payload{}))
	return nil
}

// handleWeather applies the day's condition to every agent's energy.
func (e *Engine) handleWeather(ev *events.Event) error {
	day := int(ev.Timestamp / 1440)
	w := e.env.WeatherForDay(day)
	reason := "Weather:" + string(w.Kind)
	for _, a := range e.agentList {
		e.apply(a, agents.AttrEnergyLevel, w.EnergyDelta(), reason, nil)
	}
	e.repo.PersistAgents(e.agentList)
	e.schedule(events.New(events.KindWeather, ev.Timestamp+1440, events.Payload{}))
	e.log.Debug("weather applied",
		"sim_id", e.runID, "day", day, "kind", w.Kind, "severity", w.Severity)
	return nil
}
