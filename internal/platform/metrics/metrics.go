// Package metrics provides observability for the simulation server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers simulation and transport counters.
type Collector struct {
	// Step metrics
	TickCount      atomic.Int64
	TickLatencySum atomic.Int64 // nanoseconds
	TickLatencyMax atomic.Int64
	lastTick       atomic.Int64 // unix nanoseconds

	// Agent metrics
	Moves          atomic.Int64
	TilesCleaned   atomic.Int64
	Charges        atomic.Int64
	AgentsDepleted atomic.Int64

	// Run metrics
	RunsStarted  atomic.Int64
	RunsFinished atomic.Int64

	// Event metrics
	EventsWritten    atomic.Int64
	EventWriteLatSum atomic.Int64
	EventWriteLatMax atomic.Int64
	EventWriteErrors atomic.Int64

	// WebSocket metrics
	WSConnectionsActive atomic.Int64
	WSMessagesIn        atomic.Int64
	WSMessagesOut       atomic.Int64
	WSDropped           atomic.Int64
	WSErrors            atomic.Int64

	StartTime time.Time

	mu      sync.RWMutex
	actions map[string]*atomic.Int64
}

// New creates an empty collector.
func New() *Collector {
	return &Collector{
		StartTime: time.Now(),
		actions:   make(map[string]*atomic.Int64),
	}
}

var collector = New()

// Get returns the process-wide collector.
func Get() *Collector {
	return collector
}

func storeMax(v *atomic.Int64, n int64) {
	for {
		cur := v.Load()
		if n <= cur || v.CompareAndSwap(cur, n) {
			return
		}
	}
}

// RecordTick records one model step.
func (c *Collector) RecordTick(latency time.Duration) {
	c.TickCount.Add(1)
	c.TickLatencySum.Add(int64(latency))
	storeMax(&c.TickLatencyMax, int64(latency))
	c.lastTick.Store(time.Now().UnixNano())
}

// RecordAction counts one executed agent action by name.
func (c *Collector) RecordAction(action string, moved, cleaned bool) {
	c.mu.RLock()
	counter, ok := c.actions[action]
	c.mu.RUnlock()
	if !ok {
		c.mu.Lock()
		if counter, ok = c.actions[action]; !ok {
			counter = &atomic.Int64{}
			c.actions[action] = counter
		}
		c.mu.Unlock()
	}
	counter.Add(1)

	if moved {
		c.Moves.Add(1)
	}
	if cleaned {
		c.TilesCleaned.Add(1)
	}
}

// RecordCharge counts one charging tick.
func (c *Collector) RecordCharge() { c.Charges.Add(1) }

// RecordDepleted counts an agent whose battery reached zero.
func (c *Collector) RecordDepleted() { c.AgentsDepleted.Add(1) }

// RecordRun counts a run start or finish.
func (c *Collector) RecordRun(finished bool) {
	if finished {
		c.RunsFinished.Add(1)
	} else {
		c.RunsStarted.Add(1)
	}
}

// RecordEventWrite records an event write to storage.
func (c *Collector) RecordEventWrite(latency time.Duration, err error) {
	c.EventsWritten.Add(1)
	c.EventWriteLatSum.Add(int64(latency))
	storeMax(&c.EventWriteLatMax, int64(latency))
	if err != nil {
		c.EventWriteErrors.Add(1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	c.WSConnectionsActive.Add(delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		c.WSMessagesIn.Add(1)
	} else {
		c.WSMessagesOut.Add(1)
	}
}

// RecordWSDrop records a message dropped for a slow client.
func (c *Collector) RecordWSDrop() { c.WSDropped.Add(1) }

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() { c.WSErrors.Add(1) }

// ActionCounts returns a copy of the per-action counters.
func (c *Collector) ActionCounts() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int64, len(c.actions))
	for k, v := range c.actions {
		out[k] = v.Load()
	}
	return out
}

// MaxTickLatency returns the slowest step seen.
func (c *Collector) MaxTickLatency() time.Duration {
	return time.Duration(c.TickLatencyMax.Load())
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]any {
	tickCount := c.TickCount.Load()
	eventsWritten := c.EventsWritten.Load()

	var tickAvg, eventAvg float64
	if tickCount > 0 {
		tickAvg = float64(c.TickLatencySum.Load()) / float64(tickCount) / 1e6 // ms
	}
	if eventsWritten > 0 {
		eventAvg = float64(c.EventWriteLatSum.Load()) / float64(eventsWritten) / 1e6
	}
	lastTick := ""
	if ns := c.lastTick.Load(); ns > 0 {
		lastTick = time.Unix(0, ns).UTC().Format(time.RFC3339)
	}

	return map[string]any{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]any{
			"count":          tickCount,
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(c.TickLatencyMax.Load()) / 1e6,
			"last_tick":      lastTick,
		},

		"agents": map[string]any{
			"moves":         c.Moves.Load(),
			"tiles_cleaned": c.TilesCleaned.Load(),
			"charges":       c.Charges.Load(),
			"depleted":      c.AgentsDepleted.Load(),
			"actions":       c.ActionCounts(),
		},

		"runs": map[string]any{
			"started":  c.RunsStarted.Load(),
			"finished": c.RunsFinished.Load(),
		},

		"events": map[string]any{
			"written":          eventsWritten,
			"avg_write_lat_ms": eventAvg,
			"max_write_lat_ms": float64(c.EventWriteLatMax.Load()) / 1e6,
			"errors":           c.EventWriteErrors.Load(),
		},

		"websocket": map[string]any{
			"active_connections": c.WSConnectionsActive.Load(),
			"messages_in":        c.WSMessagesIn.Load(),
			"messages_out":       c.WSMessagesOut.Load(),
			"dropped":            c.WSDropped.Load(),
			"errors":             c.WSErrors.Load(),
		},
	}
}

// Handler serves Snapshot as JSON.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		_ = json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler serves the counters in Prometheus text format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		counter := func(name, help string, v int64) {
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
		}
		gauge := func(name, help string, v float64) {
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %.2f\n\n", name, help, name, name, v)
		}

		counter("roomba_tick_count", "Total model steps", c.TickCount.Load())
		gauge("roomba_tick_latency_max_ms", "Maximum step latency", float64(c.TickLatencyMax.Load())/1e6)
		counter("roomba_moves_total", "Successful agent moves", c.Moves.Load())
		counter("roomba_tiles_cleaned_total", "Tiles cleaned", c.TilesCleaned.Load())
		counter("roomba_charges_total", "Charging ticks", c.Charges.Load())
		counter("roomba_agents_depleted_total", "Agents whose battery reached zero", c.AgentsDepleted.Load())
		counter("roomba_events_written", "Total events written", c.EventsWritten.Load())
		counter("roomba_event_write_errors", "Total event write errors", c.EventWriteErrors.Load())
		gauge("roomba_ws_connections", "Active WebSocket connections", float64(c.WSConnectionsActive.Load()))

		fmt.Fprintf(w, "# HELP roomba_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE roomba_ws_messages_total counter\n")
		fmt.Fprintf(w, "roomba_ws_messages_total{direction=\"in\"} %d\n", c.WSMessagesIn.Load())
		fmt.Fprintf(w, "roomba_ws_messages_total{direction=\"out\"} %d\n\n", c.WSMessagesOut.Load())

		actions := c.ActionCounts()
		names := make([]string, 0, len(actions))
		for name := range actions {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(w, "# HELP roomba_actions_total Agent actions by rule\n")
		fmt.Fprintf(w, "# TYPE roomba_actions_total counter\n")
		for _, name := range names {
			fmt.Fprintf(w, "roomba_actions_total{action=%q} %d\n", name, actions[name])
		}
	}
}

// Handler serves the process-wide collector as JSON.
func Handler() http.HandlerFunc { return collector.Handler() }

// PrometheusHandler serves the process-wide collector in Prometheus format.
func PrometheusHandler() http.HandlerFunc { return collector.PrometheusHandler() }
