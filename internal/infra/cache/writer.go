package cache

import (
	"context"
	"sync/atomic"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/engine"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/logger"
)

// Writer pushes the newest snapshot to the cache off the ticker goroutine.
// Only the latest pending snapshot is kept; older ones are replaced.
type Writer struct {
	cache   *SnapshotCache
	pending chan engine.Snapshot
	logger  *logger.Logger
	written atomic.Int64
	failed  atomic.Int64
}

// NewWriter creates a writer for c.
func NewWriter(c *SnapshotCache, log *logger.Logger) *Writer {
	if log == nil {
		log = logger.Nop()
	}
	return &Writer{cache: c, pending: make(chan engine.Snapshot, 1), logger: log}
}

// Observe offers s to the writer without blocking.
func (w *Writer) Observe(s engine.Snapshot) {
	for {
		select {
		case w.pending <- s:
			return
		default:
		}
		select {
		case <-w.pending:
		default:
		}
	}
}

// Start writes snapshots until ctx is done.
func (w *Writer) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-w.pending:
			if err := w.cache.SetSnapshot(ctx, s); err != nil {
				w.failed.Add(1)
				w.logger.Warn("snapshot not cached", logger.Str("run_id", s.RunID), logger.Err(err))
				continue
			}
			w.written.Add(1)
		}
	}
}

// Written counts cached snapshots.
func (w *Writer) Written() int64 { return w.written.Load() }

// Failed counts cache write errors.
func (w *Writer) Failed() int64 { return w.failed.Load() }
