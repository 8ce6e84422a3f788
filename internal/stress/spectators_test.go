package stress

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/engine"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/network"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/config"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/metrics"
)

func startServer(t *testing.T) string {
	t.Helper()
	eng, err := engine.NewEngine(engine.DefaultParams(), 3, time.Hour, nil, nil, metrics.New())
	require.NoError(t, err)

	hub := network.NewHub(config.DefaultConfig().Server, nil, metrics.New())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(network.ServeWS(hub, eng))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSpectate(t *testing.T) {
	cfg := SpectatorConfig{
		URL:      startServer(t),
		Clients:  3,
		Interval: 20 * time.Millisecond,
		Duration: 300 * time.Millisecond,
		Seed:     1,
	}

	stats, err := Spectate(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Connected.Load())
	assert.Zero(t, stats.Errors.Load())
	assert.Positive(t, stats.Sent.Load())
	// Every viewer gets the initial snapshot on connect.
	assert.GreaterOrEqual(t, stats.Snapshots.Load(), int64(3))

	lo, mean, hi := stats.Latency()
	assert.LessOrEqual(t, lo, mean)
	assert.LessOrEqual(t, mean, hi)

	var buf bytes.Buffer
	WriteSpectatorReport(&buf, cfg, stats, cfg.Duration)
	assert.Contains(t, buf.String(), "spectators: 3 of 3 connected")
}

func TestSpectateCountsDialErrors(t *testing.T) {
	stats, err := Spectate(context.Background(), SpectatorConfig{
		URL:      "ws://127.0.0.1:1/ws",
		Clients:  2,
		Interval: 10 * time.Millisecond,
		Duration: 100 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Errors.Load())
	assert.Zero(t, stats.Connected.Load())
}

func TestSpectateRejectsBadConfig(t *testing.T) {
	_, err := Spectate(context.Background(), SpectatorConfig{Clients: 0, Interval: time.Second}, nil)
	assert.Error(t, err)
	_, err = Spectate(context.Background(), SpectatorConfig{Clients: 1}, nil)
	assert.Error(t, err)
}
