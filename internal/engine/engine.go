// Package engine boots a simulation run, owns the event loop, and enforces
// the single-active-run invariant and the shutdown protocol.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"capsim/internal/agents"
	"capsim/internal/clock"
	"capsim/internal/config"
	"capsim/internal/entropy"
	"capsim/internal/environment"
	"capsim/internal/events"
	"capsim/internal/metrics"
	"capsim/internal/persistence"
	"capsim/internal/statics"
	"capsim/internal/trends"
)

var (
	// ErrInvariant marks a defensive-check failure. Fatal: the run is marked
	// FAILED and aborted.
	ErrInvariant = errors.New("invariant violation")
	// ErrShutdownTimeout is returned when the drain exceeds the configured
	// shutdown budget.
	ErrShutdownTimeout = errors.New("shutdown timed out")
)

// Sim-minutes between decision passes over the population.
const decideIntervalMin = 15

// activeRun guards the process-wide single-run invariant; the store-level
// check in CreateRun guards it across processes.
var activeRun atomic.Bool

// Engine owns the queue, the agent and trend maps, and the loop's RNG.
// Everything here is mutated by the loop goroutine only.
type Engine struct {
	cfg     *config.Settings
	effects *config.EffectsDoc
	repo    persistence.Repository
	clk     clock.Clock
	log     *slog.Logger

	rng    *entropy.Source
	tables *statics.Tables
	env    *environment.Model

	runID uuid.UUID
	queue *events.Queue

	agentList []*agents.Agent
	agentByID map[uuid.UUID]*agents.Agent
	trendByID map[uuid.UUID]*trends.Trend
	trendIDs  []uuid.UUID

	now        float64
	nextDecide float64
	gates      agents.GateParams

	// One follow-up post per reader per trend.
	responded map[uuid.UUID]map[uuid.UUID]bool

	// Interaction counts at the last daily save, for per-day aggregates.
	dayBaseline map[uuid.UUID]int
	prevDayAvg  map[trends.Topic]float64

	eventsProcessed uint64
}

// New wires an engine from its collaborators. Run does the rest.
func New(cfg *config.Settings, effects *config.EffectsDoc, repo persistence.Repository, clk clock.Clock, log *slog.Logger) *Engine {
	return &Engine{
		cfg:         cfg,
		effects:     effects,
		repo:        repo,
		clk:         clk,
		log:         log,
		queue:       events.NewQueue(cfg.MaxQueueSize),
		agentByID:   make(map[uuid.UUID]*agents.Agent),
		trendByID:   make(map[uuid.UUID]*trends.Trend),
		responded:   make(map[uuid.UUID]map[uuid.UUID]bool),
		dayBaseline: make(map[uuid.UUID]int),
		prevDayAvg:  make(map[trends.Topic]float64),
	}
}

// Stats is a point-in-time snapshot of the run, logged daily and at exit.
type Stats struct {
	SimTime         float64
	EventsProcessed uint64
	ActiveAgents    int
	ActiveTrends    int
	QueueLength     int
}

// Stats returns the current run snapshot.
func (e *Engine) Stats() Stats {
	return Stats{
		SimTime:         e.now,
		EventsProcessed: e.eventsProcessed,
		ActiveAgents:    len(e.agentList),
		ActiveTrends:    len(e.trendByID),
		QueueLength:     e.queue.Len(),
	}
}

// RunID returns the identifier of the bootstrapped run.
func (e *Engine) RunID() uuid.UUID { return e.runID }

// Run bootstraps and executes the simulation until the horizon, a fatal
// error, or context cancellation. It returns ErrActiveSimulationExists when
// another run holds the lock.
func (e *Engine) Run(ctx context.Context) error {
	if !activeRun.CompareAndSwap(false, true) {
		return persistence.ErrActiveSimulationExists
	}
	defer activeRun.Store(false)

	if err := e.bootstrap(ctx); err != nil {
		// Once the run row exists, a bootstrap failure must release the
		// slot: leave it in a non-terminal status and every later run is
		// refused.
		if e.runID != uuid.Nil {
			e.abort(err)
		}
		return err
	}
	metrics.SimulationsActive.Inc()
	defer metrics.SimulationsActive.Dec()

	err := e.loop(ctx)
	switch {
	case err == nil:
		return e.finish(persistence.StatusCompleted)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return e.shutdown()
	default:
		e.abort(err)
		return err
	}
}

// bootstrap follows the fixed order: lock check, run row, static tables,
// population spawn, initial system events, RUNNING.
func (e *Engine) bootstrap(ctx context.Context) error {
	active, err := e.repo.GetActiveRuns(ctx)
	if err != nil {
		return fmt.Errorf("check active runs: %w", err)
	}
	if len(active) > 0 {
		return persistence.ErrActiveSimulationExists
	}

	cfgJSON, _ := json.Marshal(e.cfg)
	run := &persistence.Run{
		ID:             uuid.New(),
		Status:         persistence.StatusInitializing,
		StartedAt:      time.Now(),
		HorizonMinutes: e.cfg.HorizonMinutes(),
		NumAgents:      e.cfg.NumAgents,
		Seed:           e.cfg.Seed,
		ConfigJSON:     string(cfgJSON),
	}
	if err := e.repo.CreateRun(ctx, run); err != nil {
		return err
	}
	// runID doubles as the "run row exists" marker for the abort path.
	e.runID = run.ID

	e.tables, err = e.repo.LoadStaticTables(ctx)
	if err != nil {
		return fmt.Errorf("load static tables: %w", err)
	}
	e.tables = overlayShopWeights(e.tables, e.effects.ShopWeights)
	e.rng = entropy.NewSource(e.cfg.Seed)
	e.env = environment.NewModel(e.cfg.Seed)
	e.gates = e.buildGates()

	e.spawnAgents()
	e.repo.PersistAgents(e.agentList)

	e.schedule(events.New(events.KindWeather, 0, events.Payload{}))
	e.schedule(events.New(events.KindLaw, 720, events.Payload{}))
	e.schedule(events.New(events.KindSaveDailyTrend, 1440, events.Payload{}))
	e.schedule(events.New(events.KindDailyReset, 1440, events.Payload{}))
	e.schedule(events.New(events.KindEnergyRecovery, e.cfg.EnergyRecoveryIntervalMin, events.Payload{}))
	e.seedInitialPosts()

	if err := e.repo.UpdateRunStatus(ctx, e.runID, persistence.StatusRunning); err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}
	e.log.Info("simulation bootstrapped",
		"sim_id", e.runID, "agents", len(e.agentList),
		"horizon_min", e.cfg.HorizonMinutes(), "seed", e.cfg.Seed)
	return nil
}

// buildGates derives the gate parameters from the settings and the effect
// table. Costs are the negated effect deltas.
func (e *Engine) buildGates() agents.GateParams {
	return agents.GateParams{
		PostCooldownMin:    e.cfg.PostCooldownMin,
		SelfDevCooldownMin: e.cfg.SelfDevCooldownMin,
		MaxPurchasesDay:    e.cfg.MaxPurchasesDay,
		PostEnergyCost:     -e.effects.Post.EnergyLevel,
		PostTimeCost:       -e.effects.Post.TimeBudget,
		SelfDevTimeCost:    -e.effects.SelfDev.TimeBudget,
		PurchaseThresholds: [agents.PurchaseLevels]float64{
			e.effects.PurchaseThreshold(1),
			e.effects.PurchaseThreshold(2),
			e.effects.PurchaseThreshold(3),
		},
	}
}

// overlayShopWeights merges operator overrides from the effects document
// over the stored shop weights. Works on a copy so the repository's cached
// snapshot stays untouched.
func overlayShopWeights(t *statics.Tables, overrides map[string]float64) *statics.Tables {
	if len(overrides) == 0 {
		return t
	}
	merged := make(map[agents.Profession]float64, len(t.ShopWeights))
	for p, w := range t.ShopWeights {
		merged[p] = w
	}
	for p, w := range overrides {
		merged[agents.Profession(p)] = w
	}
	out := *t
	out.ShopWeights = merged
	return &out
}

// spawnAgents instantiates the population per the profession distribution,
// drawing attributes and interests from the static ranges.
func (e *Engine) spawnAgents() {
	counts := make([]int, 0, len(statics.Distribution()))
	total := 0
	dist := statics.Distribution()
	for _, share := range dist {
		n := int(share.Share * float64(e.cfg.NumAgents))
		counts = append(counts, n)
		total += n
	}
	counts[0] += e.cfg.NumAgents - total // rounding leftover

	for i, share := range dist {
		for n := 0; n < counts[i]; n++ {
			e.addAgent(share.Profession)
		}
	}
}

func (e *Engine) addAgent(prof agents.Profession) {
	ranges := e.tables.AttributeRanges[prof]
	a := &agents.Agent{
		ID:                  e.rng.UUID(),
		SimulationID:        e.runID,
		Profession:          prof,
		FinancialCapability: e.rng.Uniform(ranges.FinancialCapability.Lo, ranges.FinancialCapability.Hi),
		TrendReceptivity:    e.rng.Uniform(ranges.TrendReceptivity.Lo, ranges.TrendReceptivity.Hi),
		SocialStatus:        e.rng.Uniform(ranges.SocialStatus.Lo, ranges.SocialStatus.Hi),
		EnergyLevel:         e.rng.Uniform(ranges.EnergyLevel.Lo, ranges.EnergyLevel.Hi),
		TimeBudget:          agents.QuantizeHalf(e.rng.Uniform(ranges.TimeBudget.Lo, ranges.TimeBudget.Hi)),
		Interests:           make(map[agents.Interest]float64),
		ExposureHistory:     make(map[uuid.UUID]float64),
	}
	for _, interest := range agents.Interests() {
		r := e.tables.InterestRanges[prof][interest]
		a.Interests[interest] = e.rng.Uniform(r.Lo, r.Hi)
	}
	e.agentList = append(e.agentList, a)
	e.agentByID[a.ID] = a
}

// seedInitialPosts spreads a handful of opening posts over the first hour so
// the trend machinery has material before the first decision passes land.
func (e *Engine) seedInitialPosts() {
	topics := trends.Topics()
	for i, a := range e.agentList {
		if i%10 != 0 {
			continue
		}
		ts := float64(i)/float64(len(e.agentList))*60 + e.rng.Uniform(0, 1)
		topic := topics[e.rng.Intn(len(topics))]
		e.schedule(events.New(events.KindPublishPost, ts, events.Payload{
			AgentID: a.ID,
			Topic:   topic,
		}))
	}
}

// loop is the single-threaded scheduler: wait for the earlier of the next
// event and the next decision pass, then process it. current sim time is
// monotonically non-decreasing.
func (e *Engine) loop(ctx context.Context) error {
	horizon := e.cfg.HorizonMinutes()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		target := e.nextDecide
		evTS, hasEvent := e.queue.PeekTS()
		if hasEvent && evTS <= target {
			target = evTS
		}
		if target > horizon {
			return nil
		}

		if err := e.clk.WaitUntil(ctx, target); err != nil {
			return err
		}
		if target > e.now {
			e.now = target
		}

		if hasEvent && evTS <= e.nextDecide {
			if err := e.dispatch(e.queue.Pop()); err != nil {
				return err
			}
		} else {
			e.decisionPass()
			e.nextDecide += decideIntervalMin
		}
		metrics.QueueLength.Set(float64(e.queue.Len()))
	}
}

// dispatch routes one popped event to its handler and records the audit row.
func (e *Engine) dispatch(ev *events.Event) error {
	if ev.Timestamp > e.now {
		e.now = ev.Timestamp
	}
	start := time.Now()

	var err error
	switch ev.Kind {
	case events.KindPublishPost, events.KindPurchaseL1, events.KindPurchaseL2,
		events.KindPurchaseL3, events.KindSelfDev:
		err = e.executeAction(ev)
	case events.KindTrendInfluence:
		err = e.applyInfluence(ev)
	case events.KindDailyReset:
		err = e.handleDailyReset(ev)
	case events.KindEnergyRecovery:
		err = e.handleEnergyRecovery(ev)
	case events.KindSaveDailyTrend:
		err = e.handleSaveDailyTrend(ev)
	case events.KindLaw:
		err = e.handleLaw(ev)
	case events.KindWeather:
		err = e.handleWeather(ev)
	default:
		e.log.Error("unknown event kind, skipping",
			"sim_id", e.runID, "event_id", ev.ID, "kind", ev.Kind)
	}
	if err != nil {
		return err
	}

	durMS := float64(time.Since(start)) / float64(time.Millisecond)
	metrics.EventLatency.Observe(durMS)
	metrics.EventsProcessed.WithLabelValues(string(ev.Kind)).Inc()
	e.eventsProcessed++

	audit := persistence.EventAudit{
		EventID:      ev.ID,
		SimulationID: e.runID,
		Kind:         string(ev.Kind),
		Priority:     int(ev.Priority),
		Timestamp:    ev.Timestamp,
		DurationMS:   durMS,
	}
	if ev.Payload.AgentID != uuid.Nil {
		id := ev.Payload.AgentID
		audit.AgentID = &id
	}
	if ev.Payload.TrendID != uuid.Nil {
		id := ev.Payload.TrendID
		audit.TrendID = &id
	}
	e.repo.PersistEvents([]persistence.EventAudit{audit})

	e.log.Debug("event processed",
		"sim_id", e.runID, "event_id", ev.ID, "kind", ev.Kind,
		"ts", ev.Timestamp, "duration_ms", durMS)
	return nil
}

// schedule pushes an event, absorbing admission refusals into a counter.
func (e *Engine) schedule(ev *events.Event) {
	if err := e.queue.Push(ev); err != nil {
		metrics.QueueFullTotal.Inc()
		e.log.Warn("event refused admission",
			"sim_id", e.runID, "kind", ev.Kind, "ts", ev.Timestamp)
	}
}

// apply routes every attribute mutation through the agent's clamped update
// path and buffers the history record.
func (e *Engine) apply(a *agents.Agent, attr agents.Attribute, delta float64, reason string, source *uuid.UUID) {
	change, ok := a.Apply(attr, delta, e.now, reason, source)
	if !ok {
		return
	}
	e.repo.PersistHistory([]agents.Change{change})
}

// applyEffect applies one action effect row to an agent.
func (e *Engine) applyEffect(a *agents.Agent, eff config.Effect, reason string, source *uuid.UUID) {
	if eff.FinancialCapability != 0 {
		e.apply(a, agents.AttrFinancialCapability, eff.FinancialCapability, reason, source)
	}
	if eff.TrendReceptivity != 0 {
		e.apply(a, agents.AttrTrendReceptivity, eff.TrendReceptivity, reason, source)
	}
	if eff.SocialStatus != 0 {
		e.apply(a, agents.AttrSocialStatus, eff.SocialStatus, reason, source)
	}
	if eff.EnergyLevel != 0 {
		e.apply(a, agents.AttrEnergyLevel, eff.EnergyLevel, reason, source)
	}
	if eff.TimeBudget != 0 {
		e.apply(a, agents.AttrTimeBudget, eff.TimeBudget, reason, source)
	}
}

// finish flushes and records the terminal status.
func (e *Engine) finish(status persistence.RunStatus) error {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
	defer cancel()
	if err := e.repo.Flush(ctx); err != nil {
		e.log.Error("final flush incomplete", "sim_id", e.runID, "error", err, "critical", true)
	}
	if err := e.repo.UpdateRunStatus(ctx, e.runID, status); err != nil {
		return fmt.Errorf("mark run %s: %w", status, err)
	}
	e.log.Info("simulation finished",
		"sim_id", e.runID, "status", status, "sim_time", e.now,
		"events", e.eventsProcessed)
	return nil
}

// shutdown drains due agent actions and flushes within the shutdown budget.
// On overrun the run is FORCE_STOPPED.
func (e *Engine) shutdown() error {
	deadline := time.Now().Add(e.cfg.ShutdownTimeout)
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	if err := e.repo.UpdateRunStatus(ctx, e.runID, persistence.StatusStopping); err != nil {
		e.log.Error("mark run stopping", "sim_id", e.runID, "error", err)
	}

	timedOut := false
	for {
		if time.Now().After(deadline) {
			timedOut = true
			break
		}
		next := e.queue.Peek()
		if next == nil || next.Timestamp > e.now || next.Priority != events.PriorityAgentAction {
			break
		}
		if err := e.dispatch(e.queue.Pop()); err != nil {
			e.abort(err)
			return err
		}
	}

	if !timedOut {
		if err := e.repo.Flush(ctx); err != nil {
			timedOut = true
		}
	}

	if timedOut {
		e.log.Error("shutdown drain exceeded budget",
			"sim_id", e.runID, "timeout", e.cfg.ShutdownTimeout, "critical", true)
		statusCtx, statusCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer statusCancel()
		if err := e.repo.UpdateRunStatus(statusCtx, e.runID, persistence.StatusForceStopped); err != nil {
			e.log.Error("mark run force-stopped", "sim_id", e.runID, "error", err)
		}
		return ErrShutdownTimeout
	}
	return e.finish(persistence.StatusCompleted)
}

// abort is the single fatal path: mark FAILED, flush, surface the cause.
func (e *Engine) abort(cause error) {
	e.log.Error("simulation aborted", "sim_id", e.runID, "error", cause, "critical", true)
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
	defer cancel()
	if err := e.repo.UpdateRunStatus(ctx, e.runID, persistence.StatusFailed); err != nil {
		e.log.Error("mark run failed", "sim_id", e.runID, "error", err)
	}
	if err := e.repo.Flush(ctx); err != nil {
		e.log.Error("abort flush incomplete", "sim_id", e.runID, "error", err, "critical", true)
	}
}

// checkAgentInvariants runs the defensive checks after population-wide
// mutations. Apply clamps scalars, so a violation here means a logic bug.
func (e *Engine) checkAgentInvariants() error {
	for _, a := range e.agentList {
		if a.PurchasesToday < 0 || a.PurchasesToday > e.cfg.MaxPurchasesDay {
			return fmt.Errorf("%w: agent %s purchases_today=%d", ErrInvariant, a.ID, a.PurchasesToday)
		}
		for _, attr := range []agents.Attribute{
			agents.AttrFinancialCapability, agents.AttrTrendReceptivity,
			agents.AttrSocialStatus, agents.AttrEnergyLevel, agents.AttrTimeBudget,
		} {
			if v := a.Attr(attr); v < 0 || v > 5 || math.IsNaN(v) {
				return fmt.Errorf("%w: agent %s %s=%g", ErrInvariant, a.ID, attr, v)
			}
		}
	}
	return nil
}
