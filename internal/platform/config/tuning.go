package config

import "time"

// Observations are the load figures Analyze looks at.
type Observations struct {
	MaxTickLatency   time.Duration
	EventWriteErrors int64
	DroppedMessages  int64
}

// Recommendations suggests buffer and pool changes.
type Recommendations struct {
	IncreaseBroadcastBuffer bool
	IncreaseDBConnections   bool
	SlowDownTicks           bool
	Notes                   []string
}

// Analyze examines observed load and returns tuning recommendations.
func Analyze(c *Config, obs Observations) *Recommendations {
	rec := &Recommendations{Notes: make([]string, 0)}

	if c.Simulation.TickRate > 0 && obs.MaxTickLatency > c.Simulation.TickRate {
		rec.SlowDownTicks = true
		rec.Notes = append(rec.Notes, "step latency exceeds the tick rate, raise tick_rate")
	}
	if obs.EventWriteErrors > 0 {
		rec.IncreaseDBConnections = true
		rec.Notes = append(rec.Notes, "event write errors detected, check the storage pool")
	}
	if obs.DroppedMessages > 0 {
		rec.IncreaseBroadcastBuffer = true
		rec.Notes = append(rec.Notes, "websocket messages dropped, increase client send buffer")
	}
	return rec
}

// ApplyRecommendations modifies c in place and returns it.
func ApplyRecommendations(c *Config, rec *Recommendations) *Config {
	if rec.IncreaseBroadcastBuffer {
		c.Server.BroadcastBuffer *= 2
		c.Server.ClientSendBuffer *= 2
	}
	if rec.IncreaseDBConnections {
		c.Storage.MaxOpenConns = int(float64(c.Storage.MaxOpenConns) * 1.5)
		c.Storage.MaxIdleConns = int(float64(c.Storage.MaxIdleConns) * 1.5)
	}
	if rec.SlowDownTicks {
		c.Simulation.TickRate *= 2
	}
	return c
}
