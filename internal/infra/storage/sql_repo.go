package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLRepository implements Repository over database/sql for both SQLite
// and PostgreSQL.
type SQLRepository struct {
	db      *sql.DB
	dialect dialect
	seq     atomic.Int64
}

var _ Repository = (*SQLRepository)(nil)

// newSQLRepository starts the event sequence at the current time so rows
// written by a later process sort after earlier ones.
func newSQLRepository(db *sql.DB, d dialect) *SQLRepository {
	r := &SQLRepository{db: db, dialect: d}
	r.seq.Store(time.Now().UnixNano())
	return r
}

func (r *SQLRepository) exec(ctx context.Context, query string, args ...any) error {
	_, err := r.db.ExecContext(ctx, r.dialect.rebind(query), args...)
	return err
}

// ---------------------------------------------------------
// Runs
// ---------------------------------------------------------

func (r *SQLRepository) CreateRun(ctx context.Context, run Run) error {
	params := string(run.Params)
	if params == "" {
		params = "{}"
	}
	err := r.exec(ctx,
		`INSERT INTO runs (id, seed, params, started_at, steps, complete, clean_percentage) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Seed, params, run.StartedAt.UnixNano(), run.Steps, run.Complete, run.CleanPercentage,
	)
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	return nil
}

func (r *SQLRepository) FinishRun(ctx context.Context, runID string, steps int, complete bool, cleanPct float64) error {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(
		`UPDATE runs SET finished_at = ?, steps = ?, complete = ?, clean_percentage = ? WHERE id = ?`),
		time.Now().UnixNano(), steps, complete, cleanPct, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const runColumns = `id, seed, params, started_at, finished_at, steps, complete, clean_percentage`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var (
		run      Run
		params   string
		started  int64
		finished sql.NullInt64
	)
	if err := row.Scan(&run.ID, &run.Seed, &params, &started, &finished, &run.Steps, &run.Complete, &run.CleanPercentage); err != nil {
		return Run{}, err
	}
	run.Params = json.RawMessage(params)
	run.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		t := time.Unix(0, finished.Int64).UTC()
		run.FinishedAt = &t
	}
	return run, nil
}

func (r *SQLRepository) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(`SELECT `+runColumns+` FROM runs WHERE id = ?`), runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return &run, nil
}

func (r *SQLRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ---------------------------------------------------------
// Events
// ---------------------------------------------------------

func (r *SQLRepository) Append(ctx context.Context, event EventRecord) error {
	payload := string(event.Payload)
	if payload == "" {
		payload = "null"
	}
	seq := r.seq.Add(1)

	err := r.exec(ctx,
		`INSERT INTO events (id, run_id, seq, ts, event_type, agent_id, step, payload) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.RunID, seq, event.Timestamp.UnixNano(), event.EventType, event.AgentID, event.Step, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

const eventColumns = `id, run_id, ts, event_type, agent_id, step, payload`

func (r *SQLRepository) queryEvents(ctx context.Context, where string, args ...any) ([]EventRecord, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE ` + where + ` ORDER BY seq ASC`
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var (
			e       EventRecord
			ts      int64
			payload string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &ts, &e.EventType, &e.AgentID, &e.Step, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		e.Payload = json.RawMessage(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *SQLRepository) GetByRunID(ctx context.Context, runID string) ([]EventRecord, error) {
	return r.queryEvents(ctx, `run_id = ?`, runID)
}

func (r *SQLRepository) GetByAgentID(ctx context.Context, runID string, agentID int) ([]EventRecord, error) {
	return r.queryEvents(ctx, `run_id = ? AND agent_id = ?`, runID, agentID)
}

func (r *SQLRepository) GetByStep(ctx context.Context, runID string, step int) ([]EventRecord, error) {
	return r.queryEvents(ctx, `run_id = ? AND step = ?`, runID, step)
}

func (r *SQLRepository) GetByEventType(ctx context.Context, runID, eventType string) ([]EventRecord, error) {
	return r.queryEvents(ctx, `run_id = ? AND event_type = ?`, runID, eventType)
}

// ---------------------------------------------------------
// Snapshots
// ---------------------------------------------------------

func (r *SQLRepository) Upsert(ctx context.Context, snapshots ...AgentSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, r.dialect.rebind(`
		INSERT INTO agent_snapshots (run_id, agent_id, step, x, y, battery, movements, dead, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, agent_id, step) DO UPDATE SET
			x = excluded.x,
			y = excluded.y,
			battery = excluded.battery,
			movements = excluded.movements,
			dead = excluded.dead,
			recorded_at = excluded.recorded_at`))
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, s := range snapshots {
		at := s.RecordedAt
		if at.IsZero() {
			at = now
		}
		if _, err := stmt.ExecContext(ctx, s.RunID, s.AgentID, s.Step, s.X, s.Y, s.Battery, s.Movements, s.Dead, at.UnixNano()); err != nil {
			return fmt.Errorf("failed to upsert snapshot of agent %d: %w", s.AgentID, err)
		}
	}
	return tx.Commit()
}

func (r *SQLRepository) GetLatest(ctx context.Context, runID string) ([]AgentSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
		SELECT s.run_id, s.agent_id, s.step, s.x, s.y, s.battery, s.movements, s.dead, s.recorded_at
		FROM agent_snapshots s
		JOIN (
			SELECT agent_id, MAX(step) AS step FROM agent_snapshots WHERE run_id = ? GROUP BY agent_id
		) latest ON latest.agent_id = s.agent_id AND latest.step = s.step
		WHERE s.run_id = ?
		ORDER BY s.agent_id ASC`), runID, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []AgentSnapshot
	for rows.Next() {
		var (
			s  AgentSnapshot
			at int64
		)
		if err := rows.Scan(&s.RunID, &s.AgentID, &s.Step, &s.X, &s.Y, &s.Battery, &s.Movements, &s.Dead, &at); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		s.RecordedAt = time.Unix(0, at).UTC()
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// RebuildFromEvents replays events and stores the final state of every agent.
func (r *SQLRepository) RebuildFromEvents(ctx context.Context, runID string, events []EventRecord) error {
	states, err := Replay(events)
	if err != nil {
		return err
	}
	snaps := make([]AgentSnapshot, 0, len(states))
	for _, st := range states {
		snaps = append(snaps, st.Snapshot(runID))
	}
	return r.Upsert(ctx, snaps...)
}
