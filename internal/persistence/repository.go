// Package persistence provides the Repository contract and its SQLite
// implementation: batched, retrying writes plus static lookups.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"capsim/internal/agents"
	"capsim/internal/statics"
	"capsim/internal/trends"
)

// ErrActiveSimulationExists is returned when bootstrap finds a run in a
// non-terminal status.
var ErrActiveSimulationExists = errors.New("an active simulation already exists")

// RunStatus is the lifecycle state of a simulation run.
type RunStatus string

const (
	StatusInitializing RunStatus = "INITIALIZING"
	StatusRunning      RunStatus = "RUNNING"
	StatusStopping     RunStatus = "STOPPING"
	StatusCompleted    RunStatus = "COMPLETED"
	StatusFailed       RunStatus = "FAILED"
	StatusForceStopped RunStatus = "FORCE_STOPPED"
)

// Terminal reports whether the status ends the run's lifecycle.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusForceStopped:
		return true
	}
	return false
}

// Run is one simulation run row.
type Run struct {
	ID             uuid.UUID
	Status         RunStatus
	StartedAt      time.Time
	HorizonMinutes float64
	NumAgents      int
	Seed           int64
	ConfigJSON     string // configuration snapshot
}

// EventAudit is the durable record of one processed event.
type EventAudit struct {
	EventID      uuid.UUID
	SimulationID uuid.UUID
	Kind         string
	Priority     int
	Timestamp    float64
	AgentID      *uuid.UUID
	TrendID      *uuid.UUID
	DurationMS   float64
}

// DailyTrendStat is the per-(topic, day) aggregate persisted by
// SAVE_DAILY_TREND.
type DailyTrendStat struct {
	SimulationID      uuid.UUID
	Day               int
	Topic             string
	TotalInteractions int
	AvgVirality       float64
	UniqueAuthors     int
	TopTrendID        *uuid.UUID
	PctChangeVirality float64
}

// Repository fronts the durable store. The Persist* methods buffer writes
// and return immediately; batches commit by size, by elapsed wall time, or
// on Flush. All mutations are idempotent on their natural keys, so a
// re-delivered batch after a partial failure produces no duplicates.
type Repository interface {
	GetActiveRuns(ctx context.Context) ([]Run, error)
	CreateRun(ctx context.Context, run *Run) error
	UpdateRunStatus(ctx context.Context, id uuid.UUID, status RunStatus) error

	LoadStaticTables(ctx context.Context) (*statics.Tables, error)

	PersistAgents(batch []*agents.Agent)
	PersistTrends(batch []*trends.Trend)
	PersistEvents(batch []EventAudit)
	PersistHistory(batch []agents.Change)
	SaveDailyTrendStats(ctx context.Context, stats []DailyTrendStat) error
	ArchiveTrend(id uuid.UUID)

	// Flush blocks until the buffer is drained or the context expires.
	Flush(ctx context.Context) error
	Close() error
}
