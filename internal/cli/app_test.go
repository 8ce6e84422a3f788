package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/infra/storage"
	"github.com/PaoloZesatiTec/Tareas-multiagentes/internal/platform/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := New().WithOutput(&stdout, &stderr).ExecuteWithArgs(context.Background(), args)
	return stdout.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roomba.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestApp_Version(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "roomba version dev")
}

func TestApp_Help(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"run", "serve", "stress", "spectate"} {
		assert.Contains(t, out, sub)
	}
}

func TestApp_RunHelpStopConditions(t *testing.T) {
	out, err := execute(t, "run", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "every tile is clean or the step limit is reached")
	assert.NotContains(t, out, "every agent is out of battery")
}

func TestApp_RunJSON(t *testing.T) {
	out, err := execute(t, "-p", "low", "run", "--seed", "7", "--agents", "2", "--max-steps", "150", "--json")
	require.NoError(t, err)

	var r runReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, int64(7), r.Seed)
	assert.NotEmpty(t, r.RunID)
	assert.LessOrEqual(t, r.Steps, 150)
	assert.Len(t, r.Agents, 2)
	assert.Positive(t, r.Events)
	assert.GreaterOrEqual(t, r.CleanPercentage, 0.0)
	assert.LessOrEqual(t, r.CleanPercentage, 100.0)
}

func TestApp_RunIsReproducible(t *testing.T) {
	args := []string{"-p", "low", "run", "--seed", "11", "--agents", "3", "--json"}

	var first, second runReport
	out, err := execute(t, args...)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	out, err = execute(t, args...)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &second))

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Steps, second.Steps)
	assert.Equal(t, first.CleanPercentage, second.CleanPercentage)
	assert.Equal(t, first.Agents, second.Agents)
}

func TestApp_RunText(t *testing.T) {
	out, err := execute(t, "-p", "low", "run", "--max-steps", "50")
	require.NoError(t, err)
	assert.Contains(t, out, "Steps:")
	assert.Contains(t, out, "Agent 1:")
}

func TestApp_RunPersistsAndRebuilds(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	cfgPath := writeConfig(t, `
simulation:
  agents: 2
  max_steps: 120
storage:
  driver: sqlite
  dsn: `+dbPath+`
log:
  level: error
`)

	out, err := execute(t, "-c", cfgPath, "-p", "low", "run", "--rebuild", "--json")
	require.NoError(t, err)
	var r runReport
	require.NoError(t, json.Unmarshal([]byte(out), &r))

	db, err := storage.InitSQLite(dbPath)
	require.NoError(t, err)
	defer db.Close()
	repo := storage.NewSQLiteRepository(db)

	run, err := repo.GetRun(context.Background(), r.RunID)
	require.NoError(t, err)
	assert.Equal(t, r.Steps, run.Steps)
	assert.NotNil(t, run.FinishedAt)

	snaps, err := repo.GetLatest(context.Background(), r.RunID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	for i, s := range snaps {
		assert.Equal(t, r.Agents[i].ID, s.AgentID)
		assert.Equal(t, r.Agents[i].Battery, s.Battery)
	}
}

func TestApp_RunRebuildNeedsStorage(t *testing.T) {
	_, err := execute(t, "-p", "low", "run", "--max-steps", "10", "--rebuild")
	assert.ErrorContains(t, err, "persistent storage")
}

func TestApp_UnknownProfile(t *testing.T) {
	_, err := execute(t, "-p", "gigantic", "run")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestApp_BadConfigFile(t *testing.T) {
	_, err := execute(t, "-c", writeConfig(t, "simulation: [broken"), "run")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestApp_Stress(t *testing.T) {
	out, err := execute(t, "-p", "low", "stress", "--seeds", "1", "--scenario", "low-resource", "--max-steps", "200")
	require.NoError(t, err)
	assert.Contains(t, out, "runs:      1 (1 passed, 0 failed)")
}

func TestApp_StressUnknownScenario(t *testing.T) {
	_, err := execute(t, "stress", "--scenario", "nope")
	assert.ErrorContains(t, err, `unknown scenario "nope"`)
}
