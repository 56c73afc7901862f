package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ratioSolver/PlExA/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "plexa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_DefaultsWhenFieldsOmitted(t *testing.T) {
	path := writeTemp(t, "name: demo\n")
	f, err := Load(path)
	require.NoError(t, err)

	cfg, err := f.ExecutorConfig()
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, 0, cfg.UnitsPerTick.Cmp(plan.RationalFromInt(1)))

	cadence, err := f.TickCadenceDuration()
	require.NoError(t, err)
	assert.Equal(t, time.Second, cadence)
}

func TestLoad_ParsesFractionalUnitsPerTick(t *testing.T) {
	path := writeTemp(t, "name: demo\nunits_per_tick: \"1/2\"\nmax_resolve_attempts: 10\ntick_cadence: 250ms\n")
	f, err := Load(path)
	require.NoError(t, err)

	cfg, err := f.ExecutorConfig()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxReSolveAttempts)
	assert.Equal(t, 0, cfg.UnitsPerTick.Cmp(plan.NewRational(1, 2)))

	cadence, err := f.TickCadenceDuration()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cadence)
}

func TestLoad_RejectsMalformedRational(t *testing.T) {
	path := writeTemp(t, "units_per_tick: \"not-a-number\"\n")
	f, err := Load(path)
	require.NoError(t, err)

	_, err = f.ExecutorConfig()
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
