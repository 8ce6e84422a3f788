package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/engine"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/events"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/infra/storage"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/config"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/logger"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/metrics"
)

type frame struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestEngine(t *testing.T, log *events.EventLog) *engine.Engine {
	t.Helper()
	if log == nil {
		log = events.NewEventLog(nil)
	}
	p := engine.DefaultParams()
	p.Agents = 2
	eng, err := engine.NewEngine(p, 42, time.Hour, log, logger.Nop(), metrics.New())
	require.NoError(t, err)
	return eng
}

func startHub(t *testing.T, cfg config.Server) *Hub {
	t.Helper()
	hub := NewHub(cfg, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil returns the first frame accepted by match.
func readUntil(t *testing.T, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if match(f) {
			return f
		}
	}
}

func snapshotOf(t *testing.T, f frame) engine.Snapshot {
	t.Helper()
	var s engine.Snapshot
	require.NoError(t, json.Unmarshal(f.Payload, &s))
	return s
}

func TestHubDeliversBroadcastSnapshots(t *testing.T) {
	eng := newTestEngine(t, nil)
	hub := startHub(t, config.DefaultConfig().Server)
	eng.OnSnapshot(hub.BroadcastSnapshot)

	srv := httptest.NewServer(ServeWS(hub, eng))
	defer srv.Close()
	conn := dial(t, srv)

	first := readUntil(t, conn, func(f frame) bool { return f.Type == MsgTypeSnapshot })
	assert.Equal(t, 0, snapshotOf(t, first).Step)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err := eng.Advance()
	require.NoError(t, err)

	got := readUntil(t, conn, func(f frame) bool {
		return f.Type == MsgTypeSnapshot && snapshotOf(t, f).Step == 1
	})
	s := snapshotOf(t, got)
	assert.Equal(t, eng.RunID(), s.RunID)
	assert.Len(t, s.Agents, 2)
}

func TestClientCommands(t *testing.T) {
	eng := newTestEngine(t, nil)
	hub := startHub(t, config.DefaultConfig().Server)
	srv := httptest.NewServer(ServeWS(hub, eng))
	defer srv.Close()
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(Command{Type: "PAUSE"}))
	readUntil(t, conn, func(f frame) bool { return f.Type == MsgTypeAck })
	assert.True(t, eng.Paused())

	require.NoError(t, conn.WriteJSON(Command{Type: "STEP"}))
	stepped := readUntil(t, conn, func(f frame) bool {
		return f.Type == MsgTypeSnapshot && snapshotOf(t, f).Step == 1
	})
	assert.True(t, snapshotOf(t, stepped).Running)

	seed := int64(7)
	oldRun := eng.RunID()
	require.NoError(t, conn.WriteJSON(Command{Type: "RESET", Seed: &seed}))
	reset := readUntil(t, conn, func(f frame) bool {
		return f.Type == MsgTypeSnapshot && snapshotOf(t, f).RunID != oldRun
	})
	assert.Equal(t, 0, snapshotOf(t, reset).Step)
	assert.Equal(t, int64(7), eng.Seed())

	require.NoError(t, conn.WriteJSON(Command{Type: "DANCE"}))
	bad := readUntil(t, conn, func(f frame) bool { return f.Type == MsgTypeError })
	assert.Contains(t, string(bad.Payload), "unknown command")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	bad = readUntil(t, conn, func(f frame) bool { return f.Type == MsgTypeError })
	assert.Contains(t, string(bad.Payload), "malformed")
}

func TestClientRateLimit(t *testing.T) {
	cfg := config.DefaultConfig().Server
	cfg.MaxMessagesPerSecond = 1
	eng := newTestEngine(t, nil)
	hub := startHub(t, cfg)
	srv := httptest.NewServer(ServeWS(hub, eng))
	defer srv.Close()
	conn := dial(t, srv)

	for i := 0; i < 3; i++ {
		require.NoError(t, conn.WriteJSON(Command{Type: "STATE"}))
	}
	limited := readUntil(t, conn, func(f frame) bool { return f.Type == MsgTypeError })
	assert.Contains(t, string(limited.Payload), "rate limit")
}

func TestServeWSRejectsWhenFull(t *testing.T) {
	cfg := config.DefaultConfig().Server
	cfg.MaxClients = 1
	eng := newTestEngine(t, nil)
	hub := startHub(t, cfg)
	srv := httptest.NewServer(ServeWS(hub, eng))
	defer srv.Close()

	dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHubShutdownClosesClients(t *testing.T) {
	eng := newTestEngine(t, nil)
	m := metrics.New()
	hub := NewHub(config.DefaultConfig().Server, nil, m)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(ServeWS(hub, eng))
	defer srv.Close()
	conn := dial(t, srv)
	dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return m.WSConnectionsActive.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.Zero(t, hub.ClientCount())
	assert.Eventually(t, func() bool { return m.WSConnectionsActive.Load() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func serve(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestControlAPI(t *testing.T) {
	eng := newTestEngine(t, nil)
	api := NewControlAPI(eng, nil, nil)

	rec := serve(api.HandleState, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var state StateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, int64(42), state.Seed)
	assert.False(t, state.Paused)
	assert.Equal(t, 28, state.Snapshot.Width)

	assert.Equal(t, http.StatusMethodNotAllowed, serve(api.HandleState, http.MethodPost, "/api/state", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(api.HandlePause, http.MethodGet, "/api/pause", "").Code)

	require.Equal(t, http.StatusOK, serve(api.HandlePause, http.MethodPost, "/api/pause", "").Code)
	assert.True(t, eng.Paused())
	require.Equal(t, http.StatusOK, serve(api.HandleResume, http.MethodPost, "/api/resume", "").Code)
	assert.False(t, eng.Paused())

	require.Equal(t, http.StatusOK, serve(api.HandleStep, http.MethodPost, "/api/step", "").Code)
	rec = serve(api.HandleHistory, http.MethodGet, "/api/history", "")
	var hist struct {
		RunID   string              `json:"run_id"`
		History []engine.StepRecord `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Equal(t, eng.RunID(), hist.RunID)
	assert.Len(t, hist.History, 1)

	assert.Equal(t, http.StatusBadRequest, serve(api.HandleReset, http.MethodPost, "/api/reset", "{").Code)

	old := eng.RunID()
	require.Equal(t, http.StatusOK, serve(api.HandleReset, http.MethodPost, "/api/reset", "").Code)
	assert.NotEqual(t, old, eng.RunID())
	assert.Equal(t, int64(42), eng.Seed())

	require.Equal(t, http.StatusOK, serve(api.HandleReset, http.MethodPost, "/api/reset", `{"seed":9}`).Code)
	assert.Equal(t, int64(9), eng.Seed())
}

func TestControlAPIStepAfterFinish(t *testing.T) {
	p := engine.DefaultParams()
	p.MaxSteps = 1
	eng, err := engine.NewEngine(p, 1, time.Hour, events.NewEventLog(nil), logger.Nop(), metrics.New())
	require.NoError(t, err)
	api := NewControlAPI(eng, nil, nil)

	require.Equal(t, http.StatusOK, serve(api.HandleStep, http.MethodPost, "/api/step", "").Code)
	assert.Equal(t, http.StatusConflict, serve(api.HandleStep, http.MethodPost, "/api/step", "").Code)
}

func decodeReplay(t *testing.T, rec *httptest.ResponseRecorder) ReplayResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp ReplayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestReplayFromMemory(t *testing.T) {
	eng := newTestEngine(t, nil)
	for i := 0; i < 5; i++ {
		_, err := eng.Advance()
		require.NoError(t, err)
	}
	h := NewReplayHandler(eng.EventLog(), nil, eng.RunID, nil)

	all := decodeReplay(t, serve(h.HandleReplay, http.MethodGet, "/api/replay", ""))
	assert.Equal(t, "memory", all.Source)
	assert.Equal(t, eng.RunID(), all.RunID)
	assert.Equal(t, string(events.EventTypeRunStarted), all.Events[0].EventType)

	mine := decodeReplay(t, serve(h.HandleReplay, http.MethodGet, "/api/replay?agent=1&type=AGENT_ACTION", ""))
	assert.Equal(t, 5, mine.TotalEvents)

	late := decodeReplay(t, serve(h.HandleReplay, http.MethodGet, "/api/replay?type=AGENT_ACTION&since_step=4", ""))
	assert.Equal(t, 4, late.TotalEvents, "two agents over steps 4 and 5")

	assert.Equal(t, http.StatusBadRequest, serve(h.HandleReplay, http.MethodGet, "/api/replay?agent=x", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(h.HandleReplay, http.MethodGet, "/api/replay?run_id=nope", "").Code)
	assert.Equal(t, http.StatusNotImplemented, serve(h.HandleRuns, http.MethodGet, "/api/runs", "").Code)

	rec := serve(h.HandleAgents, http.MethodGet, "/api/replay/agents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Agents []storage.RebuiltState `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	snap := eng.Snapshot()
	require.Len(t, body.Agents, 2)
	for i, a := range snap.Agents {
		assert.Equal(t, a.Position, body.Agents[i].Position)
		assert.Equal(t, a.Battery, body.Agents[i].Battery)
	}
}

func TestReplayFromStorage(t *testing.T) {
	db, err := storage.InitSQLite(filepath.Join(t.TempDir(), "replay.db"))
	require.NoError(t, err)
	defer db.Close()
	repo := storage.NewSQLiteRepository(db)

	eng := newTestEngine(t, events.NewEventLog(storage.NewEventPersister(repo, time.Second)))
	for i := 0; i < 3; i++ {
		_, err := eng.Advance()
		require.NoError(t, err)
	}
	h := NewReplayHandler(eng.EventLog(), repo, nil, nil)

	assert.Equal(t, http.StatusBadRequest, serve(h.HandleReplay, http.MethodGet, "/api/replay", "").Code)

	resp := decodeReplay(t, serve(h.HandleReplay, http.MethodGet, "/api/replay?run_id="+eng.RunID()+"&agent=2", ""))
	assert.Equal(t, "storage", resp.Source)
	for _, e := range resp.Events {
		assert.Equal(t, 2, e.AgentID)
	}
	assert.GreaterOrEqual(t, resp.TotalEvents, 3)

	rec := serve(h.HandleRuns, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs struct {
		Runs []storage.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, eng.RunID(), runs.Runs[0].ID)
}
