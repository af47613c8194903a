package persistence

import (
	"encoding/json"

	"github.com/google/uuid"

	"capsim/internal/agents"
	"capsim/internal/trends"
)

// Row types mirror the storage schema. Converters snapshot the mutable
// domain objects at submit time, so later mutations never leak into a
// pending batch.

type agentRow struct {
	ID                  string   `db:"id"`
	SimulationID        string   `db:"simulation_id"`
	Profession          string   `db:"profession"`
	FinancialCapability float64  `db:"financial_capability"`
	TrendReceptivity    float64  `db:"trend_receptivity"`
	SocialStatus        float64  `db:"social_status"`
	EnergyLevel         float64  `db:"energy_level"`
	TimeBudget          float64  `db:"time_budget"`
	PurchasesToday      int      `db:"purchases_today"`
	LastPostTS          *float64 `db:"last_post_ts"`
	LastSelfDevTS       *float64 `db:"last_self_dev_ts"`
	LastPurchaseL1TS    *float64 `db:"last_purchase_l1_ts"`
	LastPurchaseL2TS    *float64 `db:"last_purchase_l2_ts"`
	LastPurchaseL3TS    *float64 `db:"last_purchase_l3_ts"`
	Interests           string   `db:"interests"`
	Exposures           string   `db:"exposures"`
}

func newAgentRow(a *agents.Agent) agentRow {
	interests, _ := json.Marshal(a.Interests)
	exposures := make(map[string]float64, len(a.ExposureHistory))
	for id, ts := range a.ExposureHistory {
		exposures[id.String()] = ts
	}
	expJSON, _ := json.Marshal(exposures)
	return agentRow{
		ID:                  a.ID.String(),
		SimulationID:        a.SimulationID.String(),
		Profession:          string(a.Profession),
		FinancialCapability: a.FinancialCapability,
		TrendReceptivity:    a.TrendReceptivity,
		SocialStatus:        a.SocialStatus,
		EnergyLevel:         a.EnergyLevel,
		TimeBudget:          a.TimeBudget,
		PurchasesToday:      a.PurchasesToday,
		LastPostTS:          copyTS(a.LastPostTS),
		LastSelfDevTS:       copyTS(a.LastSelfDevTS),
		LastPurchaseL1TS:    copyTS(a.LastPurchaseTS[0]),
		LastPurchaseL2TS:    copyTS(a.LastPurchaseTS[1]),
		LastPurchaseL3TS:    copyTS(a.LastPurchaseTS[2]),
		Interests:           string(interests),
		Exposures:           string(expJSON),
	}
}

type trendRow struct {
	ID                string  `db:"id"`
	SimulationID      string  `db:"simulation_id"`
	Topic             string  `db:"topic"`
	OriginatorID      string  `db:"originator_id"`
	ParentID          *string `db:"parent_id"`
	CreatedTS         float64 `db:"created_ts"`
	BaseVirality      float64 `db:"base_virality"`
	Coverage          string  `db:"coverage"`
	TotalInteractions int     `db:"total_interactions"`
	Sentiment         string  `db:"sentiment"`
	LastInteractionTS float64 `db:"last_interaction_ts"`
}

func newTrendRow(t *trends.Trend) trendRow {
	return trendRow{
		ID:                t.ID.String(),
		SimulationID:      t.SimulationID.String(),
		Topic:             string(t.Topic),
		OriginatorID:      t.OriginatorID.String(),
		ParentID:          uuidString(t.ParentID),
		CreatedTS:         t.CreatedTS,
		BaseVirality:      t.BaseVirality,
		Coverage:          string(t.Coverage),
		TotalInteractions: t.TotalInteractions,
		Sentiment:         string(t.Sentiment),
		LastInteractionTS: t.LastInteractionTS,
	}
}

type eventRow struct {
	EventID      string  `db:"event_id"`
	SimulationID string  `db:"simulation_id"`
	Kind         string  `db:"kind"`
	Priority     int     `db:"priority"`
	Timestamp    float64 `db:"ts"`
	AgentID      *string `db:"agent_id"`
	TrendID      *string `db:"trend_id"`
	DurationMS   float64 `db:"duration_ms"`
}

func newEventRow(e EventAudit) eventRow {
	return eventRow{
		EventID:      e.EventID.String(),
		SimulationID: e.SimulationID.String(),
		Kind:         e.Kind,
		Priority:     e.Priority,
		Timestamp:    e.Timestamp,
		AgentID:      uuidString(e.AgentID),
		TrendID:      uuidString(e.TrendID),
		DurationMS:   e.DurationMS,
	}
}

type historyRow struct {
	AgentID       string  `db:"person_id"`
	Attribute     string  `db:"attribute"`
	ChangeTS      float64 `db:"change_ts"`
	Seq           uint64  `db:"seq"`
	OldValue      float64 `db:"old_value"`
	NewValue      float64 `db:"new_value"`
	Delta         float64 `db:"delta"`
	Reason        string  `db:"reason"`
	SourceTrendID *string `db:"source_trend_id"`
}

func newHistoryRow(c agents.Change) historyRow {
	return historyRow{
		AgentID:       c.AgentID.String(),
		Attribute:     string(c.Attribute),
		ChangeTS:      c.Timestamp,
		Seq:           c.Seq,
		OldValue:      c.OldValue,
		NewValue:      c.NewValue,
		Delta:         c.Delta,
		Reason:        c.Reason,
		SourceTrendID: uuidString(c.SourceTrendID),
	}
}

type statRow struct {
	SimulationID      string  `db:"simulation_id"`
	Day               int     `db:"day"`
	Topic             string  `db:"topic"`
	TotalInteractions int     `db:"total_interactions"`
	AvgVirality       float64 `db:"avg_virality"`
	UniqueAuthors     int     `db:"unique_authors"`
	TopTrendID        *string `db:"top_trend_id"`
	PctChangeVirality float64 `db:"pct_change_virality"`
}

func newStatRow(s DailyTrendStat) statRow {
	return statRow{
		SimulationID:      s.SimulationID.String(),
		Day:               s.Day,
		Topic:             s.Topic,
		TotalInteractions: s.TotalInteractions,
		AvgVirality:       s.AvgVirality,
		UniqueAuthors:     s.UniqueAuthors,
		TopTrendID:        uuidString(s.TopTrendID),
		PctChangeVirality: s.PctChangeVirality,
	}
}

func copyTS(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
