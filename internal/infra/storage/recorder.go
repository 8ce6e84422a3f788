package storage

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/engine"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/logger"
)

// SnapshotRecorder persists agent snapshots in the background. It is fed by
// Engine.OnSnapshot and writes every Nth step plus the final step of a run.
type SnapshotRecorder struct {
	repo    SnapshotRepository
	every   int
	queue   chan engine.Snapshot
	logger  *logger.Logger
	dropped atomic.Int64
	written atomic.Int64
	failed  atomic.Int64
}

// NewSnapshotRecorder creates a recorder. every < 1 records every step.
func NewSnapshotRecorder(repo SnapshotRepository, every, buffer int, log *logger.Logger) *SnapshotRecorder {
	if every < 1 {
		every = 1
	}
	if buffer < 1 {
		buffer = 64
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SnapshotRecorder{
		repo:   repo,
		every:  every,
		queue:  make(chan engine.Snapshot, buffer),
		logger: log,
	}
}

// Observe queues s when it is due. It never blocks; a full queue drops s.
func (r *SnapshotRecorder) Observe(s engine.Snapshot) {
	if s.Running && s.Step%r.every != 0 {
		return
	}
	select {
	case r.queue <- s:
	default:
		r.dropped.Add(1)
	}
}

// Start drains the queue until ctx is done, then flushes what is left.
// Writes outlive ctx so a shutdown never loses a queued snapshot.
func (r *SnapshotRecorder) Start(ctx context.Context) {
	r.logger.Info("snapshot recorder started")
	base := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			r.flush(base)
			r.logger.Info("snapshot recorder stopped")
			return
		case s := <-r.queue:
			r.write(base, s)
		}
	}
}

func (r *SnapshotRecorder) flush(ctx context.Context) {
	for {
		select {
		case s := <-r.queue:
			r.write(ctx, s)
		default:
			return
		}
	}
}

func (r *SnapshotRecorder) write(ctx context.Context, s engine.Snapshot) {
	ctx, cancel := context.WithTimeout(ctx, DefaultWriteTimeout)
	defer cancel()

	now := time.Now()
	rows := make([]AgentSnapshot, 0, len(s.Agents))
	for _, a := range s.Agents {
		rows = append(rows, AgentSnapshot{
			RunID:      s.RunID,
			AgentID:    a.ID,
			Step:       s.Step,
			X:          a.Position.X,
			Y:          a.Position.Y,
			Battery:    a.Battery,
			Movements:  a.Movements,
			Dead:       a.Dead,
			RecordedAt: now,
		})
	}
	if err := r.repo.Upsert(ctx, rows...); err != nil {
		r.logger.Error("snapshot not recorded",
			logger.Str("run_id", s.RunID),
			logger.Int("step", s.Step),
			logger.Err(err),
		)
		r.failed.Add(1)
		return
	}
	r.written.Add(1)
}

// Written counts snapshots stored.
func (r *SnapshotRecorder) Written() int64 { return r.written.Load() }

// Dropped counts snapshots discarded on a full queue.
func (r *SnapshotRecorder) Dropped() int64 { return r.dropped.Load() }

// Failed counts snapshots the repository rejected.
func (r *SnapshotRecorder) Failed() int64 { return r.failed.Load() }
