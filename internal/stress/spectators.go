package stress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/network"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/logger"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/rng"
)

// SpectatorConfig drives a websocket load test against a running server.
type SpectatorConfig struct {
	URL      string
	Clients  int
	Interval time.Duration
	Duration time.Duration
	// Commands are picked at random for every send. Defaults to STATE only.
	Commands []string
	Seed     int64
}

// SpectatorStats counts traffic across all spectators.
type SpectatorStats struct {
	Connected atomic.Int64
	Sent      atomic.Int64
	Received  atomic.Int64
	Snapshots atomic.Int64
	Errors    atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (s *SpectatorStats) addLatency(d time.Duration) {
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.mu.Unlock()
}

// Latency returns min, mean and max write latency.
func (s *SpectatorStats) Latency() (lo, mean, hi time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.latencies) == 0 {
		return 0, 0, 0
	}
	lo, hi = s.latencies[0], s.latencies[0]
	var total time.Duration
	for _, l := range s.latencies {
		total += l
		lo = min(lo, l)
		hi = max(hi, l)
	}
	return lo, total / time.Duration(len(s.latencies)), hi
}

// Spectate connects cfg.Clients viewers and sends commands until
// cfg.Duration elapses or ctx is cancelled.
func Spectate(ctx context.Context, cfg SpectatorConfig, log *logger.Logger) (*SpectatorStats, error) {
	if cfg.Clients < 1 {
		return nil, fmt.Errorf("spectators: need at least one client")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("spectators: interval must be positive")
	}
	if len(cfg.Commands) == 0 {
		cfg.Commands = []string{"STATE"}
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	stats := &SpectatorStats{}
	var wg sync.WaitGroup
	for i := range cfg.Clients {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			spectate(ctx, id, cfg, stats, log)
		}(i)
	}
	wg.Wait()
	return stats, nil
}

func spectate(ctx context.Context, id int, cfg SpectatorConfig, stats *SpectatorStats, log *logger.Logger) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		stats.Errors.Add(1)
		log.Debug("spectator dial failed", logger.Int("client", id), logger.Err(err))
		return
	}
	defer conn.Close()
	stats.Connected.Add(1)

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			stats.Received.Add(1)
			var msg network.Message
			if json.Unmarshal(data, &msg) == nil && msg.Type == network.MsgTypeSnapshot {
				stats.Snapshots.Add(1)
			}
		}
	}()

	src := rng.New(cfg.Seed + int64(id))
	t := time.NewTicker(cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case <-t.C:
			cmd, _ := rng.Choice(src, cfg.Commands)
			start := time.Now()
			if err := conn.WriteJSON(network.Command{Type: cmd}); err != nil {
				stats.Errors.Add(1)
				return
			}
			stats.addLatency(time.Since(start))
			stats.Sent.Add(1)
		}
	}
}

// WriteSpectatorReport prints stats for a run of length elapsed.
func WriteSpectatorReport(w io.Writer, cfg SpectatorConfig, stats *SpectatorStats, elapsed time.Duration) {
	sent := stats.Sent.Load()
	errs := stats.Errors.Load()
	lo, mean, hi := stats.Latency()

	fmt.Fprintf(w, "spectators: %d of %d connected\n", stats.Connected.Load(), cfg.Clients)
	fmt.Fprintf(w, "sent:       %s\n", humanize.Comma(sent))
	fmt.Fprintf(w, "received:   %s (%s snapshots)\n", humanize.Comma(stats.Received.Load()), humanize.Comma(stats.Snapshots.Load()))
	fmt.Fprintf(w, "errors:     %s\n", humanize.Comma(errs))
	if elapsed > 0 {
		fmt.Fprintf(w, "throughput: %s msg/s\n", humanize.FormatFloat("#,###.##", float64(sent)/elapsed.Seconds()))
	}
	fmt.Fprintf(w, "latency:    min %s, avg %s, max %s\n", lo, mean, hi)
}
