package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/grid"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/roomba"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/domain/rules"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/events"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/config"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/logger"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/metrics"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/rng"
)

// ErrInvalidParams is returned by NewModel for unusable parameters.
var ErrInvalidParams = errors.New("engine: invalid model parameters")

// MaxTrackedAgents bounds the per-step movement series kept in History.
const MaxTrackedAgents = 10

// Params are the model construction parameters.
type Params struct {
	Agents     int          `json:"agents"`
	Obstacles  int          `json:"obstacles"`
	DirtyTiles int          `json:"dirty_tiles"`
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	MaxSteps   int          `json:"max_steps"`
	Policy     rules.Policy `json:"policy"`
}

// DefaultParams returns the standard single-agent 28x28 setup.
func DefaultParams() Params {
	return Params{
		Agents:     1,
		Obstacles:  15,
		DirtyTiles: 20,
		Width:      28,
		Height:     28,
		MaxSteps:   1000,
		Policy:     rules.DefaultPolicy(),
	}
}

// ParamsFromConfig extracts the model parameters from a loaded config.
func ParamsFromConfig(c *config.Config) Params {
	s := c.Simulation
	return Params{
		Agents:     s.Agents,
		Obstacles:  s.Obstacles,
		DirtyTiles: s.DirtyTiles,
		Width:      s.Width,
		Height:     s.Height,
		MaxSteps:   s.MaxSteps,
		Policy:     c.Policy,
	}
}

func (p Params) validate() error {
	if p.MaxSteps < 1 {
		return fmt.Errorf("%w: max steps %d", ErrInvalidParams, p.MaxSteps)
	}
	if p.Obstacles < 0 || p.DirtyTiles < 0 {
		return fmt.Errorf("%w: negative obstacle or tile count", ErrInvalidParams)
	}
	if err := p.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// StepRecord is the per-step data series of a run.
type StepRecord struct {
	Step            int     `json:"step"`
	CleanPercentage float64 `json:"clean_percentage"`
	DirtyTiles      int     `json:"dirty_tiles"`
	ActiveAgents    int     `json:"active_agents"`
	Movements       []int   `json:"movements"`
}

// Model owns the grid, the agents and the random stream of one run.
// It is not safe for concurrent use; see Engine for the guarded version.
type Model struct {
	runID     string
	params    Params
	grid      *grid.Grid
	scheduler *RandomActivation[*roomba.Agent]
	src       *rng.Source
	eventLog  *events.EventLog
	logger    *logger.Logger
	metrics   *metrics.Collector

	stepsTaken int
	running    bool
	history    []StepRecord
}

// ModelOption customizes a new Model.
type ModelOption func(*Model)

// WithEventLog records events into log instead of a private one.
func WithEventLog(log *events.EventLog) ModelOption {
	return func(m *Model) { m.eventLog = log }
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) ModelOption {
	return func(m *Model) { m.logger = log }
}

// WithMetrics reports counters into c.
func WithMetrics(c *metrics.Collector) ModelOption {
	return func(m *Model) { m.metrics = c }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) ModelOption {
	return func(m *Model) { m.runID = id }
}

// NewModel builds the grid and places walls, stations, agents, dirt and
// extra obstacles, in that order, drawing every random choice from src.
func NewModel(p Params, src *rng.Source, opts ...ModelOption) (*Model, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidParams)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	m := &Model{
		params:    p,
		src:       src,
		scheduler: NewRandomActivation[*roomba.Agent](src),
		running:   true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.runID == "" {
		m.runID = uuid.NewString()
	}
	if m.eventLog == nil {
		m.eventLog = events.NewEventLog(nil)
	}
	if m.logger == nil {
		m.logger = logger.Nop()
	}
	if m.metrics == nil {
		m.metrics = metrics.New()
	}

	zones, err := PartitionZones(p.Width, p.Height, p.Agents)
	if err != nil {
		return nil, err
	}
	g, err := grid.New(p.Width, p.Height)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	m.grid = g

	if err := placeBorder(g); err != nil {
		return nil, err
	}
	agents, err := placeAgents(g, zones, src, p)
	if err != nil {
		return nil, err
	}
	for _, a := range agents {
		m.scheduler.Add(a)
	}
	tiles, err := scatterDirt(g, src, p.DirtyTiles)
	if err != nil {
		return nil, err
	}
	obstacles, err := scatterObstacles(g, src, p.Obstacles)
	if err != nil {
		return nil, err
	}

	m.metrics.RecordRun(false)
	m.emit(events.EventTypeRunStarted, 0, map[string]any{
		"params": p,
		"seed":   src.Seed(),
		"zones":  zones,
		"tiles":  tiles,
	})
	m.logger.Info("run started",
		logger.Str("run_id", m.runID),
		logger.Int("agents", len(agents)),
		logger.Int("dirty_tiles", tiles),
		logger.Int("extra_obstacles", obstacles),
	)
	return m, nil
}

// RunID returns the run identifier.
func (m *Model) RunID() string { return m.runID }

// Params returns the construction parameters.
func (m *Model) Params() Params { return m.params }

// Grid exposes the grid for read-only inspection.
func (m *Model) Grid() *grid.Grid { return m.grid }

// Agents returns the cleaning agents in index order.
func (m *Model) Agents() []*roomba.Agent { return m.scheduler.Agents() }

// EventLog returns the log the model records into.
func (m *Model) EventLog() *events.EventLog { return m.eventLog }

// Running reports whether the run is still in progress.
func (m *Model) Running() bool { return m.running }

// StepsTaken returns how many steps have completed.
func (m *Model) StepsTaken() int { return m.stepsTaken }

// History returns the per-step records collected so far.
func (m *Model) History() []StepRecord {
	out := make([]StepRecord, len(m.history))
	copy(out, m.history)
	return out
}

// Step activates every agent once in shuffled order, then records the step
// and evaluates completion. It is a no-op once the run is over.
func (m *Model) Step() []roomba.Outcome {
	if !m.running {
		return nil
	}
	start := time.Now()
	step := m.stepsTaken + 1

	outcomes := make([]roomba.Outcome, 0, m.scheduler.Len())
	m.scheduler.Step(func(a *roomba.Agent) {
		wasAlive := !a.IsDead()
		out := a.Step(m.grid, m.src)
		outcomes = append(outcomes, out)
		m.record(step, out, wasAlive && a.IsDead())
	})

	m.stepsTaken = step
	m.history = append(m.history, m.stepRecord())
	m.metrics.RecordTick(time.Since(start))

	if dirty := m.DirtyTiles(); dirty == 0 || m.stepsTaken >= m.params.MaxSteps {
		m.finish(dirty == 0)
	}
	return outcomes
}

func (m *Model) record(step int, out roomba.Outcome, depleted bool) {
	m.metrics.RecordAction(string(out.Action), out.Moved, out.Cleaned)
	m.emitAt(step, events.EventTypeAgentAction, out.AgentID, out)

	switch {
	case out.Cleaned:
		m.emitAt(step, events.EventTypeTileCleaned, out.AgentID, out.To)
	case out.Action == roomba.ActionCharge:
		m.metrics.RecordCharge()
		m.emitAt(step, events.EventTypeAgentCharged, out.AgentID, map[string]int{"battery": out.Battery})
	}
	if depleted {
		m.metrics.RecordDepleted()
		m.emitAt(step, events.EventTypeBatteryDepleted, out.AgentID, out.To)
		m.logger.Warn("battery depleted",
			logger.Str("run_id", m.runID),
			logger.Int("agent_id", out.AgentID),
			logger.Str("at", out.To.String()),
		)
	}
	m.logger.Event(string(out.Action), out.AgentID, out.To.String())
}

func (m *Model) finish(complete bool) {
	m.running = false
	m.metrics.RecordRun(true)
	m.emit(events.EventTypeRunFinished, 0, map[string]any{
		"steps":            m.stepsTaken,
		"complete":         complete,
		"clean_percentage": m.CleanPercentage(),
	})
	m.logger.Info("run finished",
		logger.Str("run_id", m.runID),
		logger.Int("steps", m.stepsTaken),
		logger.Bool("complete", complete),
	)
}

func (m *Model) emit(t events.EventType, agentID int, payload any) {
	m.emitAt(m.stepsTaken, t, agentID, payload)
}

// emitAt appends an event. Persistence failures are logged and counted;
// they never stop the run.
func (m *Model) emitAt(step int, t events.EventType, agentID int, payload any) {
	start := time.Now()
	err := m.eventLog.Append(events.NewEvent(m.runID, t, agentID, step, payload))
	m.metrics.RecordEventWrite(time.Since(start), err)
	if err != nil {
		m.logger.Error("event not persisted", logger.Str("run_id", m.runID), logger.Err(err))
	}
}

func (m *Model) stepRecord() StepRecord {
	agents := m.scheduler.agents
	n := min(len(agents), MaxTrackedAgents)
	moves := make([]int, n)
	for i := 0; i < n; i++ {
		moves[i] = agents[i].Movements()
	}
	return StepRecord{
		Step:            m.stepsTaken,
		CleanPercentage: m.CleanPercentage(),
		DirtyTiles:      m.DirtyTiles(),
		ActiveAgents:    m.ActiveAgents(),
		Movements:       moves,
	}
}

// Run steps until the run ends or ctx is cancelled.
func (m *Model) Run(ctx context.Context) error {
	for m.running {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.Step()
	}
	return nil
}

// DirtyTiles counts tiles not yet cleaned.
func (m *Model) DirtyTiles() int {
	dirty, _ := m.grid.CountTiles()
	return dirty
}

// CleanTiles counts cleaned tiles.
func (m *Model) CleanTiles() int {
	_, clean := m.grid.CountTiles()
	return clean
}

// CleanPercentage is the share of tiles cleaned, in [0, 100]. A floor with
// no tiles counts as fully clean.
func (m *Model) CleanPercentage() float64 {
	dirty, clean := m.grid.CountTiles()
	if dirty+clean == 0 {
		return 100
	}
	return float64(clean) / float64(dirty+clean) * 100
}

// ActiveAgents counts agents with battery left.
func (m *Model) ActiveAgents() int {
	n := 0
	for _, a := range m.scheduler.agents {
		if !a.IsDead() {
			n++
		}
	}
	return n
}

// Movements returns the move count of the agent at 1-based index idx, or 0
// when no such agent exists.
func (m *Model) Movements(idx int) int {
	agents := m.scheduler.agents
	if idx < 1 || idx > len(agents) {
		return 0
	}
	return agents[idx-1].Movements()
}
