// Package config loads executor configuration from YAML, the teacher's
// serialization library of choice for config and IR alike.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ratioSolver/PlExA/internal/executor"
	"github.com/ratioSolver/PlExA/internal/plan"
	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of an executor configuration file.
type File struct {
	Name               string `yaml:"name"`
	UnitsPerTick       string `yaml:"units_per_tick"`
	MaxReSolveAttempts int    `yaml:"max_resolve_attempts"`
	TickCadence        string `yaml:"tick_cadence"`
}

// Load reads and parses a YAML configuration file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return f, nil
}

// ExecutorConfig converts the on-disk representation into an
// executor.Config, defaulting units_per_tick to 1 when unset.
func (f File) ExecutorConfig() (executor.Config, error) {
	unitsPerTick := plan.RationalFromInt(1)
	if f.UnitsPerTick != "" {
		r, err := parseRational(f.UnitsPerTick)
		if err != nil {
			return executor.Config{}, fmt.Errorf("config: units_per_tick: %w", err)
		}
		unitsPerTick = r
	}
	return executor.Config{
		Name:               f.Name,
		UnitsPerTick:       unitsPerTick,
		MaxReSolveAttempts: f.MaxReSolveAttempts,
	}, nil
}

// TickCadenceDuration parses the tick_cadence field, defaulting to one
// second when unset.
func (f File) TickCadenceDuration() (time.Duration, error) {
	if f.TickCadence == "" {
		return time.Second, nil
	}
	d, err := time.ParseDuration(f.TickCadence)
	if err != nil {
		return 0, fmt.Errorf("config: tick_cadence: %w", err)
	}
	return d, nil
}

// parseRational parses a "num/den" or plain integer string into a
// plan.Rational.
func parseRational(s string) (plan.Rational, error) {
	var num, den int64
	den = 1
	n, err := fmt.Sscanf(s, "%d/%d", &num, &den)
	if err != nil && n == 0 {
		return plan.Rational{}, fmt.Errorf("invalid rational %q", s)
	}
	if n == 1 {
		den = 1
	}
	if den == 0 {
		return plan.Rational{}, fmt.Errorf("invalid rational %q: zero denominator", s)
	}
	return plan.NewRational(num, den), nil
}
