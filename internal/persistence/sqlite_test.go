package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capsim/internal/agents"
	"capsim/internal/trends"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "capsim.db"), Options{
		BatchSize:     10,
		BatchTimeout:  10 * time.Millisecond,
		RetryBackoffs: []time.Duration{time.Millisecond},
		CacheTTL:      time.Minute,
		CacheMaxSize:  100,
	}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun() *Run {
	return &Run{
		ID:             uuid.New(),
		Status:         StatusInitializing,
		StartedAt:      time.Now(),
		HorizonMinutes: 1440,
		NumAgents:      10,
		Seed:           42,
		ConfigJSON:     "{}",
	}
}

func TestLoadStaticTablesSeeded(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tables, err := s.LoadStaticTables(ctx)
	require.NoError(t, err)
	require.NoError(t, tables.Validate())
	assert.Equal(t, 5.0, tables.AffinityFor(agents.Politician, trends.TopicEconomic))
	assert.Equal(t, 1.5, tables.ShopWeights[agents.Businessman])

	// Second load serves the cached snapshot.
	again, err := s.LoadStaticTables(ctx)
	require.NoError(t, err)
	assert.Same(t, tables, again)
}

func TestCreateRunRejectsSecondActive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := testRun()
	require.NoError(t, s.CreateRun(ctx, first))

	err := s.CreateRun(ctx, testRun())
	assert.ErrorIs(t, err, ErrActiveSimulationExists)

	active, err := s.GetActiveRuns(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, first.ID, active[0].ID)

	// A terminal status releases the slot.
	require.NoError(t, s.UpdateRunStatus(ctx, first.ID, StatusCompleted))
	require.NoError(t, s.CreateRun(ctx, testRun()))
}

func TestUpdateRunStatusUnknownRun(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.UpdateRunStatus(context.Background(), uuid.New(), StatusFailed))
}

func TestRunStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusForceStopped.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.False(t, StatusStopping.Terminal())
	assert.False(t, StatusInitializing.Terminal())
}

func TestPersistAgentsUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := &agents.Agent{
		ID:              uuid.New(),
		SimulationID:    uuid.New(),
		Profession:      agents.Blogger,
		EnergyLevel:     4.2,
		Interests:       map[agents.Interest]float64{agents.InterestCreativity: 3.3},
		ExposureHistory: map[uuid.UUID]float64{},
	}
	s.PersistAgents([]*agents.Agent{a})
	require.NoError(t, s.Flush(ctx))

	a.EnergyLevel = 1.1
	s.PersistAgents([]*agents.Agent{a})
	require.NoError(t, s.Flush(ctx))

	var count int
	require.NoError(t, s.conn.Get(&count, "SELECT COUNT(*) FROM persons"))
	assert.Equal(t, 1, count)

	var energy float64
	require.NoError(t, s.conn.Get(&energy,
		"SELECT energy_level FROM persons WHERE id = ?", a.ID.String()))
	assert.Equal(t, 1.1, energy)
}

func TestPersistEventsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	audit := EventAudit{
		EventID:      uuid.New(),
		SimulationID: uuid.New(),
		Kind:         "PUBLISH_POST",
		Priority:     50,
		Timestamp:    10,
	}
	s.PersistEvents([]EventAudit{audit, audit})
	require.NoError(t, s.Flush(ctx))

	var count int
	require.NoError(t, s.conn.Get(&count, "SELECT COUNT(*) FROM events"))
	assert.Equal(t, 1, count)
}

func TestPersistHistoryIdempotentOnCompositeKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ch := agents.Change{
		AgentID:   uuid.New(),
		Attribute: agents.AttrEnergyLevel,
		OldValue:  3,
		NewValue:  3.5,
		Delta:     0.5,
		Timestamp: 77,
		Seq:       1,
		Reason:    "test",
	}
	s.PersistHistory([]agents.Change{ch, ch})
	require.NoError(t, s.Flush(ctx))

	var count int
	require.NoError(t, s.conn.Get(&count, "SELECT COUNT(*) FROM attribute_history"))
	assert.Equal(t, 1, count)
}

func TestPersistHistoryKeepsSameMinuteChanges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ch := agents.Change{
		AgentID:   uuid.New(),
		Attribute: agents.AttrTrendReceptivity,
		OldValue:  3,
		NewValue:  3.01,
		Delta:     0.01,
		Timestamp: 77,
		Seq:       1,
		Reason:    "test",
	}
	next := ch
	next.OldValue, next.NewValue = 3.01, 3.02
	next.Seq = 2

	s.PersistHistory([]agents.Change{ch, next})
	require.NoError(t, s.Flush(ctx))

	var count int
	require.NoError(t, s.conn.Get(&count, "SELECT COUNT(*) FROM attribute_history"))
	assert.Equal(t, 2, count, "two mutations in one minute both persist")
}

func TestArchiveTrend(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tr := &trends.Trend{
		ID:           uuid.New(),
		SimulationID: uuid.New(),
		Topic:        trends.TopicScience,
		OriginatorID: uuid.New(),
		BaseVirality: 2.0,
		Coverage:     trends.CoverageLow,
		Sentiment:    trends.SentimentPositive,
	}
	s.PersistTrends([]*trends.Trend{tr})
	s.ArchiveTrend(tr.ID)
	require.NoError(t, s.Flush(ctx))

	var archived int
	require.NoError(t, s.conn.Get(&archived,
		"SELECT archived FROM trends WHERE id = ?", tr.ID.String()))
	assert.Equal(t, 1, archived)
}

func TestSaveDailyTrendStatsUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	simID := uuid.New()

	stat := DailyTrendStat{
		SimulationID:      simID,
		Day:               0,
		Topic:             "Science",
		TotalInteractions: 5,
		AvgVirality:       2.2,
		UniqueAuthors:     3,
	}
	require.NoError(t, s.SaveDailyTrendStats(ctx, []DailyTrendStat{stat}))

	stat.TotalInteractions = 9
	require.NoError(t, s.SaveDailyTrendStats(ctx, []DailyTrendStat{stat}))

	var count, total int
	require.NoError(t, s.conn.Get(&count, "SELECT COUNT(*) FROM daily_trend_stats"))
	require.NoError(t, s.conn.Get(&total,
		"SELECT total_interactions FROM daily_trend_stats WHERE simulation_id = ?",
		simID.String()))
	assert.Equal(t, 1, count)
	assert.Equal(t, 9, total)
}
