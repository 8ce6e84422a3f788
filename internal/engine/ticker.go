package engine

import (
	"context"
	"sync"
	"time"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/logger"
)

// MinTickRate is used when no positive tick rate is configured.
const MinTickRate = time.Millisecond

// Ticker drives a step function in real time. It does NOT know about agents
// or grids, only time progression.
type Ticker struct {
	rate     time.Duration
	step     func() bool
	logger   *logger.Logger
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewTicker creates a ticker calling step every rate. step returns false
// when there is nothing left to do; the ticker keeps running regardless so a
// reset run can resume.
func NewTicker(rate time.Duration, step func() bool, log *logger.Logger) *Ticker {
	if rate <= 0 {
		rate = MinTickRate
	}
	return &Ticker{
		rate:     rate,
		step:     step,
		logger:   log,
		stopChan: make(chan struct{}),
	}
}

// Rate returns the tick interval.
func (t *Ticker) Rate() time.Duration { return t.rate }

// Start runs the loop until ctx is cancelled or Stop is called. Call in a
// goroutine.
func (t *Ticker) Start(ctx context.Context) {
	t.logger.Info("ticker started", logger.Str("rate", t.rate.String()))

	ticker := time.NewTicker(t.rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("ticker stopped by context")
			return
		case <-t.stopChan:
			t.logger.Info("ticker stopped manually")
			return
		case <-ticker.C:
			t.step()
		}
	}
}

// Stop ends the loop. Safe to call more than once.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
}
