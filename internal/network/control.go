// Package network - control.go
// REST control surface for a running simulation: state, history, pause,
// resume, single step and reset.
package network

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/engine"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/logger"
)

// RunController adds run bookkeeping to Controller.
type RunController interface {
	Controller
	History() []engine.StepRecord
	RunID() string
	Seed() int64
}

var _ RunController = (*engine.Engine)(nil)

// ControlAPI serves the /api control endpoints.
type ControlAPI struct {
	ctrl   RunController
	hub    *Hub
	logger *logger.Logger
}

// NewControlAPI creates the control handler. hub may be nil.
func NewControlAPI(ctrl RunController, hub *Hub, log *logger.Logger) *ControlAPI {
	if log == nil {
		log = logger.Nop()
	}
	return &ControlAPI{ctrl: ctrl, hub: hub, logger: log}
}

// StateResponse is the body of GET /api/state.
type StateResponse struct {
	Seed     int64           `json:"seed"`
	Paused   bool            `json:"paused"`
	Viewers  int             `json:"viewers"`
	Snapshot engine.Snapshot `json:"snapshot"`
}

// ResetRequest is the optional body of POST /api/reset.
type ResetRequest struct {
	Seed *int64 `json:"seed,omitempty"`
}

// HandleState returns the current snapshot.
// GET /api/state
func (api *ControlAPI) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := StateResponse{
		Seed:     api.ctrl.Seed(),
		Paused:   api.ctrl.Paused(),
		Snapshot: api.ctrl.Snapshot(),
	}
	if api.hub != nil {
		resp.Viewers = api.hub.ClientCount()
	}
	jsonSuccess(w, resp)
}

// HandleHistory returns the per-step series of the current run.
// GET /api/history
func (api *ControlAPI) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jsonSuccess(w, map[string]any{
		"run_id":  api.ctrl.RunID(),
		"history": api.ctrl.History(),
	})
}

// HandlePause stops the ticker from stepping.
// POST /api/pause
func (api *ControlAPI) HandlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	api.ctrl.Pause()
	jsonSuccess(w, map[string]any{"paused": true})
}

// HandleResume lets the ticker step again.
// POST /api/resume
func (api *ControlAPI) HandleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	api.ctrl.Resume()
	jsonSuccess(w, map[string]any{"paused": false})
}

// HandleStep advances one step, even while paused.
// POST /api/step
func (api *ControlAPI) HandleStep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s, err := api.ctrl.Advance()
	if errors.Is(err, engine.ErrNotRunning) {
		jsonError(w, "Run already finished", http.StatusConflict)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonSuccess(w, s)
}

// HandleReset starts a new run, optionally with a new seed.
// POST /api/reset
func (api *ControlAPI) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s, err := api.ctrl.Reset(req.Seed)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	api.logger.Info("run reset", logger.Str("run_id", s.RunID))
	jsonSuccess(w, map[string]any{
		"run_id":       s.RunID,
		"seed":         api.ctrl.Seed(),
		"generated_at": time.Now().Format(time.RFC3339),
	})
}

// RegisterRoutes sets up the control API routes.
func (api *ControlAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/state", api.HandleState)
	mux.HandleFunc("/api/history", api.HandleHistory)
	mux.HandleFunc("/api/pause", api.HandlePause)
	mux.HandleFunc("/api/resume", api.HandleResume)
	mux.HandleFunc("/api/step", api.HandleStep)
	mux.HandleFunc("/api/reset", api.HandleReset)
}

// jsonError sends an error response.
func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// jsonSuccess sends a success response.
func jsonSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(data)
}
