package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/events"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/logger"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/metrics"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/rng"
)

// ErrNotRunning is returned by Advance when the current run is over.
var ErrNotRunning = errors.New("engine: run is not in progress")

// Engine is the server-side orchestrator. It owns one Model at a time and
// guards it with a mutex so the ticker goroutine and HTTP readers never
// race. Subscribers receive a snapshot after every step.
type Engine struct {
	mu     sync.Mutex
	params Params
	seed   int64
	model  *Model
	paused bool

	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
	ticker   *Ticker

	subMu       sync.RWMutex
	subscribers []func(Snapshot)
}

// NewEngine builds the first model. All runs share eventLog; events carry
// their run id.
func NewEngine(p Params, seed int64, tickRate time.Duration, eventLog *events.EventLog, log *logger.Logger, m *metrics.Collector) (*Engine, error) {
	if eventLog == nil {
		eventLog = events.NewEventLog(nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.Get()
	}
	e := &Engine{
		params:   p,
		seed:     seed,
		eventLog: eventLog,
		logger:   log,
		metrics:  m,
	}
	model, err := e.newModel()
	if err != nil {
		return nil, err
	}
	e.model = model
	e.ticker = NewTicker(tickRate, e.tick, log)
	return e, nil
}

func (e *Engine) newModel() (*Model, error) {
	return NewModel(e.params, rng.New(e.seed),
		WithEventLog(e.eventLog),
		WithLogger(e.logger),
		WithMetrics(e.metrics),
	)
}

// Start spawns the ticker.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info("starting simulation engine", logger.Str("run_id", e.RunID()))
	go e.ticker.Start(ctx)
}

// Stop halts the ticker.
func (e *Engine) Stop() {
	e.ticker.Stop()
}

// OnSnapshot registers fn to receive the snapshot taken after every step and
// after every reset. fn runs on the ticker goroutine and must not block.
func (e *Engine) OnSnapshot(fn func(Snapshot)) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

func (e *Engine) publish(s Snapshot) {
	e.subMu.RLock()
	defer e.subMu.RUnlock()
	for _, fn := range e.subscribers {
		fn(s)
	}
}

// tick advances one step unless paused or finished.
func (e *Engine) tick() bool {
	e.mu.Lock()
	if e.paused || !e.model.Running() {
		e.mu.Unlock()
		return false
	}
	e.model.Step()
	snap := e.model.Snapshot()
	e.mu.Unlock()

	e.publish(snap)
	return true
}

// Advance performs one step regardless of the pause flag.
func (e *Engine) Advance() (Snapshot, error) {
	e.mu.Lock()
	if !e.model.Running() {
		e.mu.Unlock()
		return Snapshot{}, ErrNotRunning
	}
	e.model.Step()
	snap := e.model.Snapshot()
	e.mu.Unlock()

	e.publish(snap)
	return snap, nil
}

// Pause stops stepping until Resume.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.paused {
		e.paused = true
		e.logger.Info("simulation paused", logger.Int("step", e.model.StepsTaken()))
	}
}

// Resume continues stepping.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		e.paused = false
		e.logger.Info("simulation resumed", logger.Int("step", e.model.StepsTaken()))
	}
}

// Paused reports the pause flag.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Reset starts a new run with the same parameters. A non-nil seed replaces
// the current one.
func (e *Engine) Reset(seed *int64) (Snapshot, error) {
	e.mu.Lock()
	if seed != nil {
		e.seed = *seed
	}
	model, err := e.newModel()
	if err != nil {
		e.mu.Unlock()
		return Snapshot{}, err
	}
	e.model = model
	snap := model.Snapshot()
	e.mu.Unlock()

	e.logger.Info("simulation reset", logger.Str("run_id", snap.RunID))
	e.publish(snap)
	return snap, nil
}

// Snapshot captures the current state under the lock.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.Snapshot()
}

// History returns the current run's per-step records.
func (e *Engine) History() []StepRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.History()
}

// RunID returns the id of the current run.
func (e *Engine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.RunID()
}

// Seed returns the seed of the current run.
func (e *Engine) Seed() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seed
}

// EventLog returns the log shared by all runs.
func (e *Engine) EventLog() *events.EventLog {
	return e.eventLog
}
