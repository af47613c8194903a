// Package events defines the simulation event types and the bounded
// priority queue that orders them.
package events

import (
	"github.com/google/uuid"

	"capsim/internal/trends"
)

// Kind enumerates the event kinds the engine dispatches on.
type Kind string

const (
	KindPublishPost    Kind = "PUBLISH_POST"
	KindPurchaseL1     Kind = "PURCHASE_L1"
	KindPurchaseL2     Kind = "PURCHASE_L2"
	KindPurchaseL3     Kind = "PURCHASE_L3"
	KindSelfDev        Kind = "SELF_DEV"
	KindTrendInfluence Kind = "TREND_INFLUENCE"
	KindEnergyRecovery Kind = "ENERGY_RECOVERY"
	KindDailyReset     Kind = "DAILY_RESET"
	KindSaveDailyTrend Kind = "SAVE_DAILY_TREND"
	KindLaw            Kind = "LAW"
	KindWeather        Kind = "WEATHER"
)

// Priority classes. System events always outrank agent actions at the same
// timestamp and are never evicted under queue pressure.
type Priority int

const (
	PrioritySystem      Priority = 100
	PriorityAgentAction Priority = 50
	PriorityLow         Priority = 0
)

// Priority returns the priority class for the kind.
func (k Kind) Priority() Priority {
	switch k {
	case KindEnergyRecovery, KindDailyReset, KindSaveDailyTrend, KindLaw, KindWeather:
		return PrioritySystem
	case KindPublishPost, KindPurchaseL1, KindPurchaseL2, KindPurchaseL3,
		KindSelfDev, KindTrendInfluence:
		return PriorityAgentAction
	}
	return PriorityLow
}

// System reports whether the kind belongs to the system priority class.
func (k Kind) System() bool { return k.Priority() == PrioritySystem }

// PurchaseKind returns the event kind for a 1-based purchase level.
func PurchaseKind(level int) Kind {
	switch level {
	case 1:
		return KindPurchaseL1
	case 2:
		return KindPurchaseL2
	case 3:
		return KindPurchaseL3
	}
	return ""
}

// PurchaseLevel returns the 1-based level for a purchase kind, or 0.
func (k Kind) PurchaseLevel() int {
	switch k {
	case KindPurchaseL1:
		return 1
	case KindPurchaseL2:
		return 2
	case KindPurchaseL3:
		return 3
	}
	return 0
}

// Payload carries the kind-specific event data. Unused fields stay zero;
// payloads are immutable once enqueued.
type Payload struct {
	AgentID       uuid.UUID
	TrendID       uuid.UUID
	ParentTrendID uuid.UUID
	Topic         trends.Topic
	LawType       string
	WeatherType   string
	Impact        float64
}

// Event is one scheduled occurrence in the simulation.
type Event struct {
	ID        uuid.UUID
	Priority  Priority
	Timestamp float64 // sim-minute
	Kind      Kind
	Payload   Payload

	seq uint64 // insertion order, stamped by the queue
}

// New creates an event of the given kind at the given sim-minute.
func New(kind Kind, ts float64, payload Payload) *Event {
	return &Event{
		ID:        uuid.New(),
		Priority:  kind.Priority(),
		Timestamp: ts,
		Kind:      kind,
		Payload:   payload,
	}
}
