package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"capsim/internal/agents"
	"capsim/internal/statics"
	"capsim/internal/trends"
)

// Options tune the store's batching and caching behavior.
type Options struct {
	BatchSize     int
	BatchTimeout  time.Duration
	RetryBackoffs []time.Duration
	CacheTTL      time.Duration
	CacheMaxSize  int
}

// Store is the SQLite-backed Repository.
type Store struct {
	conn  *sqlx.DB
	buf   *buffer
	cache *ttlCache
	log   *slog.Logger
}

var _ Repository = (*Store)(nil)

// Open opens or creates a SQLite database at the given path, migrates the
// schema, seeds the static lookup tables, and starts the batch flusher.
func Open(path string, opts Options, log *slog.Logger) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{
		conn:  conn,
		cache: newTTLCache(opts.CacheTTL, opts.CacheMaxSize),
		log:   log,
	}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.seedStatics(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("seed statics: %w", err)
	}

	s.buf = newBuffer(s, log, opts.BatchSize, opts.BatchTimeout, opts.RetryBackoffs)
	return s, nil
}

// Close drains the buffer and closes the connection.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.buf.close(ctx); err != nil {
		s.log.Error("buffer close timed out", "error", err)
	}
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS simulation_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		horizon_minutes REAL NOT NULL,
		num_agents INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		config_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS persons (
		id TEXT PRIMARY KEY,
		simulation_id TEXT NOT NULL,
		profession TEXT NOT NULL,
		financial_capability REAL NOT NULL,
		trend_receptivity REAL NOT NULL,
		social_status REAL NOT NULL,
		energy_level REAL NOT NULL,
		time_budget REAL NOT NULL,
		purchases_today INTEGER NOT NULL,
		last_post_ts REAL,
		last_self_dev_ts REAL,
		last_purchase_l1_ts REAL,
		last_purchase_l2_ts REAL,
		last_purchase_l3_ts REAL,
		interests TEXT NOT NULL,
		exposures TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trends (
		id TEXT PRIMARY KEY,
		simulation_id TEXT NOT NULL,
		topic TEXT NOT NULL,
		originator_id TEXT NOT NULL,
		parent_id TEXT,
		created_ts REAL NOT NULL,
		base_virality REAL NOT NULL,
		coverage TEXT NOT NULL,
		total_interactions INTEGER NOT NULL,
		sentiment TEXT NOT NULL,
		last_interaction_ts REAL NOT NULL,
		archived INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS events (
		event_id TEXT PRIMARY KEY,
		simulation_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		priority INTEGER NOT NULL,
		ts REAL NOT NULL,
		agent_id TEXT,
		trend_id TEXT,
		duration_ms REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attribute_history (
		person_id TEXT NOT NULL,
		attribute TEXT NOT NULL,
		change_ts REAL NOT NULL,
		seq INTEGER NOT NULL,
		old_value REAL NOT NULL,
		new_value REAL NOT NULL,
		delta REAL NOT NULL,
		reason TEXT NOT NULL,
		source_trend_id TEXT,
		PRIMARY KEY (person_id, attribute, change_ts, seq)
	);

	CREATE TABLE IF NOT EXISTS daily_trend_stats (
		simulation_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		topic TEXT NOT NULL,
		total_interactions INTEGER NOT NULL,
		avg_virality REAL NOT NULL,
		unique_authors INTEGER NOT NULL,
		top_trend_id TEXT,
		pct_change_virality REAL NOT NULL,
		PRIMARY KEY (simulation_id, day, topic)
	);

	CREATE TABLE IF NOT EXISTS affinity_map (
		profession TEXT NOT NULL,
		topic TEXT NOT NULL,
		score REAL NOT NULL,
		PRIMARY KEY (profession, topic)
	);

	CREATE TABLE IF NOT EXISTS attribute_ranges (
		profession TEXT NOT NULL,
		attribute TEXT NOT NULL,
		lo REAL NOT NULL,
		hi REAL NOT NULL,
		PRIMARY KEY (profession, attribute)
	);

	CREATE TABLE IF NOT EXISTS interest_ranges (
		profession TEXT NOT NULL,
		interest TEXT NOT NULL,
		lo REAL NOT NULL,
		hi REAL NOT NULL,
		PRIMARY KEY (profession, interest)
	);

	CREATE TABLE IF NOT EXISTS topic_interests (
		topic TEXT PRIMARY KEY,
		interest TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS shop_weights (
		profession TEXT PRIMARY KEY,
		weight REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status ON simulation_runs(status);
	CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
	CREATE INDEX IF NOT EXISTS idx_history_person ON attribute_history(person_id);
	CREATE INDEX IF NOT EXISTS idx_trends_sim ON trends(simulation_id);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// seedStatics writes the built-in lookup tables. INSERT OR IGNORE keeps
// operator-edited rows across reopens.
func (s *Store) seedStatics() error {
	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	defaults := statics.Defaults()
	for prof, row := range defaults.Affinity {
		for topic, score := range row {
			if _, err := tx.Exec(
				"INSERT OR IGNORE INTO affinity_map (profession, topic, score) VALUES (?, ?, ?)",
				string(prof), string(topic), score,
			); err != nil {
				return err
			}
		}
	}
	for prof, ar := range defaults.AttributeRanges {
		rows := map[agents.Attribute]statics.Range{
			agents.AttrFinancialCapability: ar.FinancialCapability,
			agents.AttrTrendReceptivity:    ar.TrendReceptivity,
			agents.AttrSocialStatus:        ar.SocialStatus,
			agents.AttrEnergyLevel:         ar.EnergyLevel,
			agents.AttrTimeBudget:          ar.TimeBudget,
		}
		for attr, r := range rows {
			if _, err := tx.Exec(
				"INSERT OR IGNORE INTO attribute_ranges (profession, attribute, lo, hi) VALUES (?, ?, ?, ?)",
				string(prof), string(attr), r.Lo, r.Hi,
			); err != nil {
				return err
			}
		}
	}
	for prof, row := range defaults.InterestRanges {
		for interest, r := range row {
			if _, err := tx.Exec(
				"INSERT OR IGNORE INTO interest_ranges (profession, interest, lo, hi) VALUES (?, ?, ?, ?)",
				string(prof), string(interest), r.Lo, r.Hi,
			); err != nil {
				return err
			}
		}
	}
	for topic, interest := range defaults.TopicInterest {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO topic_interests (topic, interest) VALUES (?, ?)",
			string(topic), string(interest),
		); err != nil {
			return err
		}
	}
	for prof, w := range defaults.ShopWeights {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO shop_weights (profession, weight) VALUES (?, ?)",
			string(prof), w,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type runRow struct {
	ID             string  `db:"id"`
	Status         string  `db:"status"`
	StartedAt      string  `db:"started_at"`
	HorizonMinutes float64 `db:"horizon_minutes"`
	NumAgents      int     `db:"num_agents"`
	Seed           int64   `db:"seed"`
	ConfigJSON     string  `db:"config_json"`
}

// GetActiveRuns returns runs in a non-terminal status.
func (s *Store) GetActiveRuns(ctx context.Context) ([]Run, error) {
	var rows []runRow
	err := s.conn.SelectContext(ctx, &rows,
		"SELECT * FROM simulation_runs WHERE status NOT IN (?, ?, ?)",
		string(StatusCompleted), string(StatusFailed), string(StatusForceStopped),
	)
	if err != nil {
		return nil, fmt.Errorf("select active runs: %w", err)
	}
	out := make([]Run, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("run id %q: %w", r.ID, err)
		}
		started, err := time.Parse(time.RFC3339Nano, r.StartedAt)
		if err != nil {
			return nil, fmt.Errorf("run %s started_at: %w", r.ID, err)
		}
		out = append(out, Run{
			ID:             id,
			Status:         RunStatus(r.Status),
			StartedAt:      started,
			HorizonMinutes: r.HorizonMinutes,
			NumAgents:      r.NumAgents,
			Seed:           r.Seed,
			ConfigJSON:     r.ConfigJSON,
		})
	}
	return out, nil
}

// CreateRun inserts a run after checking, inside one transaction, that no
// non-terminal run exists. Returns ErrActiveSimulationExists otherwise.
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var active int
	err = tx.GetContext(ctx, &active,
		"SELECT COUNT(*) FROM simulation_runs WHERE status NOT IN (?, ?, ?)",
		string(StatusCompleted), string(StatusFailed), string(StatusForceStopped),
	)
	if err != nil {
		return fmt.Errorf("count active runs: %w", err)
	}
	if active > 0 {
		return ErrActiveSimulationExists
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO simulation_runs
		 (id, status, started_at, horizon_minutes, num_agents, seed, config_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), string(run.Status), run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.HorizonMinutes, run.NumAgents, run.Seed, run.ConfigJSON,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return tx.Commit()
}

// UpdateRunStatus transitions a run's lifecycle status.
func (s *Store) UpdateRunStatus(ctx context.Context, id uuid.UUID, status RunStatus) error {
	res, err := s.conn.ExecContext(ctx,
		"UPDATE simulation_runs SET status = ? WHERE id = ?",
		string(status), id.String(),
	)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update run status: run %s not found", id)
	}
	return nil
}

const staticsCacheKey = "static_tables"

// LoadStaticTables reads the five lookup tables, validates completeness, and
// caches the snapshot for the configured TTL.
func (s *Store) LoadStaticTables(ctx context.Context) (*statics.Tables, error) {
	if v, ok := s.cache.get(staticsCacheKey); ok {
		return v.(*statics.Tables), nil
	}

	t := &statics.Tables{
		Affinity:        make(map[agents.Profession]map[trends.Topic]float64),
		AttributeRanges: make(map[agents.Profession]statics.AttributeRanges),
		InterestRanges:  make(map[agents.Profession]map[agents.Interest]statics.Range),
		TopicInterest:   make(map[trends.Topic]agents.Interest),
		ShopWeights:     make(map[agents.Profession]float64),
	}

	var affinities []struct {
		Profession string  `db:"profession"`
		Topic      string  `db:"topic"`
		Score      float64 `db:"score"`
	}
	if err := s.conn.SelectContext(ctx, &affinities, "SELECT * FROM affinity_map"); err != nil {
		return nil, fmt.Errorf("load affinity map: %w", err)
	}
	for _, row := range affinities {
		p := agents.Profession(row.Profession)
		if t.Affinity[p] == nil {
			t.Affinity[p] = make(map[trends.Topic]float64)
		}
		t.Affinity[p][trends.Topic(row.Topic)] = row.Score
	}

	var attrRanges []struct {
		Profession string  `db:"profession"`
		Attribute  string  `db:"attribute"`
		Lo         float64 `db:"lo"`
		Hi         float64 `db:"hi"`
	}
	if err := s.conn.SelectContext(ctx, &attrRanges, "SELECT * FROM attribute_ranges"); err != nil {
		return nil, fmt.Errorf("load attribute ranges: %w", err)
	}
	for _, row := range attrRanges {
		p := agents.Profession(row.Profession)
		ar := t.AttributeRanges[p]
		r := statics.Range{Lo: row.Lo, Hi: row.Hi}
		switch agents.Attribute(row.Attribute) {
		case agents.AttrFinancialCapability:
			ar.FinancialCapability = r
		case agents.AttrTrendReceptivity:
			ar.TrendReceptivity = r
		case agents.AttrSocialStatus:
			ar.SocialStatus = r
		case agents.AttrEnergyLevel:
			ar.EnergyLevel = r
		case agents.AttrTimeBudget:
			ar.TimeBudget = r
		}
		t.AttributeRanges[p] = ar
	}

	var interestRanges []struct {
		Profession string  `db:"profession"`
		Interest   string  `db:"interest"`
		Lo         float64 `db:"lo"`
		Hi         float64 `db:"hi"`
	}
	if err := s.conn.SelectContext(ctx, &interestRanges, "SELECT * FROM interest_ranges"); err != nil {
		return nil, fmt.Errorf("load interest ranges: %w", err)
	}
	for _, row := range interestRanges {
		p := agents.Profession(row.Profession)
		if t.InterestRanges[p] == nil {
			t.InterestRanges[p] = make(map[agents.Interest]statics.Range)
		}
		t.InterestRanges[p][agents.Interest(row.Interest)] = statics.Range{Lo: row.Lo, Hi: row.Hi}
	}

	var topicRows []struct {
		Topic    string `db:"topic"`
		Interest string `db:"interest"`
	}
	if err := s.conn.SelectContext(ctx, &topicRows, "SELECT * FROM topic_interests"); err != nil {
		return nil, fmt.Errorf("load topic interests: %w", err)
	}
	for _, row := range topicRows {
		t.TopicInterest[trends.Topic(row.Topic)] = agents.Interest(row.Interest)
	}

	var weightRows []struct {
		Profession string  `db:"profession"`
		Weight     float64 `db:"weight"`
	}
	if err := s.conn.SelectContext(ctx, &weightRows, "SELECT * FROM shop_weights"); err != nil {
		return nil, fmt.Errorf("load shop weights: %w", err)
	}
	for _, row := range weightRows {
		t.ShopWeights[agents.Profession(row.Profession)] = row.Weight
	}

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("static tables: %w", err)
	}
	s.cache.put(staticsCacheKey, t)
	return t, nil
}

// PersistAgents buffers state snapshots of the given agents.
func (s *Store) PersistAgents(batch []*agents.Agent) {
	for _, a := range batch {
		s.buf.submit(record{kind: recAgent, agent: newAgentRow(a)})
	}
}

// PersistTrends buffers state snapshots of the given trends.
func (s *Store) PersistTrends(batch []*trends.Trend) {
	for _, t := range batch {
		s.buf.submit(record{kind: recTrend, trend: newTrendRow(t)})
	}
}

// PersistEvents buffers processed-event audit records.
func (s *Store) PersistEvents(batch []EventAudit) {
	for _, e := range batch {
		s.buf.submit(record{kind: recEvent, event: newEventRow(e)})
	}
}

// PersistHistory buffers attribute change records.
func (s *Store) PersistHistory(batch []agents.Change) {
	for _, c := range batch {
		s.buf.submit(record{kind: recHistory, change: newHistoryRow(c)})
	}
}

// ArchiveTrend buffers an archival marker for the trend.
func (s *Store) ArchiveTrend(id uuid.UUID) {
	s.buf.submit(record{kind: recArchive, archiveID: id.String()})
}

// SaveDailyTrendStats upserts the per-(day, topic) aggregates directly.
func (s *Store) SaveDailyTrendStats(ctx context.Context, stats []DailyTrendStat) error {
	if len(stats) == 0 {
		return nil
	}
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stat := range stats {
		row := newStatRow(stat)
		_, err := tx.NamedExecContext(ctx,
			`INSERT OR REPLACE INTO daily_trend_stats
			 (simulation_id, day, topic, total_interactions, avg_virality,
			  unique_authors, top_trend_id, pct_change_virality)
			 VALUES (:simulation_id, :day, :topic, :total_interactions,
			  :avg_virality, :unique_authors, :top_trend_id, :pct_change_virality)`,
			row,
		)
		if err != nil {
			return fmt.Errorf("upsert daily stat %s/%d: %w", stat.Topic, stat.Day, err)
		}
	}
	return tx.Commit()
}

// Flush blocks until the buffer is drained or the context expires.
func (s *Store) Flush(ctx context.Context) error {
	return s.buf.flush(ctx)
}

// commitBatch writes one buffered batch in a single transaction. Upserts and
// INSERT OR IGNORE keep a re-delivered batch idempotent after a partial
// failure.
func (s *Store) commitBatch(batch []record) error {
	tx, err := s.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range batch {
		switch r.kind {
		case recAgent:
			_, err = tx.NamedExec(
				`INSERT INTO persons
				 (id, simulation_id, profession, financial_capability, trend_receptivity,
				  social_status, energy_level, time_budget, purchases_today,
				  last_post_ts, last_self_dev_ts,
				  last_purchase_l1_ts, last_purchase_l2_ts, last_purchase_l3_ts,
				  interests, exposures)
				 VALUES (:id, :simulation_id, :profession, :financial_capability,
				  :trend_receptivity, :social_status, :energy_level, :time_budget,
				  :purchases_today, :last_post_ts, :last_self_dev_ts,
				  :last_purchase_l1_ts, :last_purchase_l2_ts, :last_purchase_l3_ts,
				  :interests, :exposures)
				 ON CONFLICT(id) DO UPDATE SET
				  financial_capability = excluded.financial_capability,
				  trend_receptivity = excluded.trend_receptivity,
				  social_status = excluded.social_status,
				  energy_level = excluded.energy_level,
				  time_budget = excluded.time_budget,
				  purchases_today = excluded.purchases_today,
				  last_post_ts = excluded.last_post_ts,
				  last_self_dev_ts = excluded.last_self_dev_ts,
				  last_purchase_l1_ts = excluded.last_purchase_l1_ts,
				  last_purchase_l2_ts = excluded.last_purchase_l2_ts,
				  last_purchase_l3_ts = excluded.last_purchase_l3_ts,
				  interests = excluded.interests,
				  exposures = excluded.exposures`,
				r.agent,
			)
		case recTrend:
			_, err = tx.NamedExec(
				`INSERT INTO trends
				 (id, simulation_id, topic, originator_id, parent_id, created_ts,
				  base_virality, coverage, total_interactions, sentiment,
				  last_interaction_ts)
				 VALUES (:id, :simulation_id, :topic, :originator_id, :parent_id,
				  :created_ts, :base_virality, :coverage, :total_interactions,
				  :sentiment, :last_interaction_ts)
				 ON CONFLICT(id) DO UPDATE SET
				  coverage = excluded.coverage,
				  total_interactions = excluded.total_interactions,
				  last_interaction_ts = excluded.last_interaction_ts`,
				r.trend,
			)
		case recEvent:
			_, err = tx.NamedExec(
				`INSERT OR IGNORE INTO events
				 (event_id, simulation_id, kind, priority, ts, agent_id, trend_id, duration_ms)
				 VALUES (:event_id, :simulation_id, :kind, :priority, :ts,
				  :agent_id, :trend_id, :duration_ms)`,
				r.event,
			)
		case recHistory:
			_, err = tx.NamedExec(
				`INSERT OR IGNORE INTO attribute_history
				 (person_id, attribute, change_ts, seq, old_value, new_value,
				  delta, reason, source_trend_id)
				 VALUES (:person_id, :attribute, :change_ts, :seq, :old_value,
				  :new_value, :delta, :reason, :source_trend_id)`,
				r.change,
			)
		case recArchive:
			_, err = tx.Exec("UPDATE trends SET archived = 1 WHERE id = ?", r.archiveID)
		}
		if err != nil {
			return fmt.Errorf("commit record kind %d: %w", r.kind, err)
		}
	}
	return tx.Commit()
}
