// Package network - replay.go
// Replay endpoints: JSON export of a run's event history and of agent state
// rebuilt from it.
package network

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/events"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/infra/storage"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/logger"
)

// ReplayHandler serves run history from the database when one is configured
// and from the in-memory event log otherwise.
type ReplayHandler struct {
	live    *events.EventLog
	store   storage.Repository
	current func() string
	logger  *logger.Logger
}

// NewReplayHandler creates the handler. store may be nil; current names the
// run used when a request omits run_id.
func NewReplayHandler(live *events.EventLog, store storage.Repository, current func() string, log *logger.Logger) *ReplayHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ReplayHandler{live: live, store: store, current: current, logger: log}
}

// ReplayResponse is the API response for GET /api/replay.
type ReplayResponse struct {
	RunID       string                `json:"run_id"`
	Source      string                `json:"source"`
	TotalEvents int                   `json:"total_events"`
	GeneratedAt string                `json:"generated_at"`
	Events      []storage.EventRecord `json:"events"`
}

type replayFilter struct {
	runID     string
	agentID   *int
	eventType string
	sinceStep int
}

func (vh *ReplayHandler) parseFilter(r *http.Request) (replayFilter, error) {
	q := r.URL.Query()
	f := replayFilter{runID: q.Get("run_id"), eventType: q.Get("type")}
	if f.runID == "" && vh.current != nil {
		f.runID = vh.current()
	}
	if f.runID == "" {
		return f, errors.New("missing run_id")
	}
	if s := q.Get("agent"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil {
			return f, errors.New("agent must be an integer")
		}
		f.agentID = &id
	}
	if s := q.Get("since_step"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return f, errors.New("since_step must be an integer")
		}
		f.sinceStep = n
	}
	return f, nil
}

func (f replayFilter) keep(e storage.EventRecord) bool {
	if f.agentID != nil && e.AgentID != *f.agentID {
		return false
	}
	if f.eventType != "" && e.EventType != f.eventType {
		return false
	}
	return e.Step >= f.sinceStep
}

func (vh *ReplayHandler) load(ctx context.Context, f replayFilter) ([]storage.EventRecord, string, error) {
	if vh.store != nil {
		var (
			records []storage.EventRecord
			err     error
		)
		switch {
		case f.agentID != nil:
			records, err = vh.store.GetByAgentID(ctx, f.runID, *f.agentID)
		case f.eventType != "":
			records, err = vh.store.GetByEventType(ctx, f.runID, f.eventType)
		default:
			records, err = vh.store.GetByRunID(ctx, f.runID)
		}
		return records, "storage", err
	}

	live := vh.live.GetByRun(f.runID)
	records := make([]storage.EventRecord, 0, len(live))
	for _, e := range live {
		rec, err := storage.ToRecord(e)
		if err != nil {
			return nil, "memory", err
		}
		records = append(records, rec)
	}
	return records, "memory", nil
}

// HandleReplay returns the filtered event history of a run.
// GET /api/replay?run_id=XXX&agent=N&type=AGENT_ACTION&since_step=N
func (vh *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	f, err := vh.parseFilter(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	all, source, err := vh.load(r.Context(), f)
	if err != nil {
		vh.logger.Error("replay load failed", logger.Str("run_id", f.runID), logger.Err(err))
		jsonError(w, "Failed to load events", http.StatusInternalServerError)
		return
	}
	if len(all) == 0 {
		jsonError(w, "Run not found", http.StatusNotFound)
		return
	}

	filtered := make([]storage.EventRecord, 0, len(all))
	for _, e := range all {
		if f.keep(e) {
			filtered = append(filtered, e)
		}
	}

	vh.logger.Debug("replay served",
		logger.Str("run_id", f.runID),
		logger.Str("source", source),
		logger.Int("events", len(filtered)),
	)
	jsonSuccess(w, ReplayResponse{
		RunID:       f.runID,
		Source:      source,
		TotalEvents: len(filtered),
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      filtered,
	})
}

// HandleAgents returns per-agent state rebuilt from the events of a run.
// GET /api/replay/agents?run_id=XXX
func (vh *ReplayHandler) HandleAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	f, err := vh.parseFilter(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.agentID, f.eventType = nil, ""

	records, _, err := vh.load(r.Context(), f)
	if err != nil {
		jsonError(w, "Failed to load events", http.StatusInternalServerError)
		return
	}
	if len(records) == 0 {
		jsonError(w, "Run not found", http.StatusNotFound)
		return
	}
	states, err := storage.Replay(records)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonSuccess(w, map[string]any{"run_id": f.runID, "agents": states})
}

// HandleRuns lists stored runs, newest first.
// GET /api/runs?limit=N
func (vh *ReplayHandler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if vh.store == nil {
		jsonError(w, "No persistent storage configured", http.StatusNotImplemented)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := vh.store.ListRuns(r.Context(), limit)
	if err != nil {
		jsonError(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	jsonSuccess(w, map[string]any{"runs": runs})
}

// RegisterRoutes sets up the replay API routes.
func (vh *ReplayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/replay", vh.HandleReplay)
	mux.HandleFunc("/api/replay/agents", vh.HandleAgents)
	mux.HandleFunc("/api/runs", vh.HandleRuns)
}
