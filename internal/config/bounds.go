package config

import (
	"fmt"
	"strings"
)

// Bounds for numeric knobs. Values outside these ranges are rejected at
// load time; zero means "unset" and falls through to the defaults.
const (
	MinIterations = 1
	MaxIterations = 100
	MinParallel   = 1
	MaxParallel   = 10
	MinTimeout    = 1
	MaxTimeout    = 3600
	MinPoolIdle   = 1
	MaxPoolIdle   = 64
)

// Violation describes a single invalid configuration value.
type Violation struct {
	// Path is the dotted key path of the offending setting.
	Path string
	// Value is the rejected value.
	Value any
	// Reason explains why the value was rejected.
	Reason string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s (got %v)", v.Path, v.Reason, v.Value)
}

// ConfigError reports every validation violation found in a source,
// not just the first. It is fatal at load time.
type ConfigError struct {
	Source     string
	Violations []Violation
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid configuration %s: %d violation(s)", e.Source, len(e.Violations))
	for _, v := range e.Violations {
		b.WriteString("\n  - ")
		b.WriteString(v.String())
	}
	return b.String()
}

// validateSnapshot checks structure and bounds, collecting every
// violation. Returns nil when the snapshot is valid.
func validateSnapshot(snap *Snapshot) *ConfigError {
	var violations []Violation

	add := func(path string, value any, reason string) {
		violations = append(violations, Violation{Path: path, Value: value, Reason: reason})
	}

	checkRange := func(path string, value, min, max int) {
		if value != 0 && (value < min || value > max) {
			add(path, value, fmt.Sprintf("must be in [%d,%d]", min, max))
		}
	}

	if snap.Provider == "" {
		add("provider", "", "required field is missing")
	} else if _, ok := snap.Providers[snap.Provider]; !ok {
		add("provider", snap.Provider, "no matching section under providers")
	}

	checkRange("agent.max_iterations", snap.Agent.MaxIterations, MinIterations, MaxIterations)
	checkRange("orchestrator.parallel_agents", snap.Orchestrator.ParallelAgents, MinParallel, MaxParallel)
	checkRange("orchestrator.task_timeout", snap.Orchestrator.TaskTimeout, MinTimeout, MaxTimeout)
	checkRange("pool.max_idle", snap.Pool.MaxIdle, MinPoolIdle, MaxPoolIdle)

	if p := snap.Orchestrator.Provider; p != "" {
		if _, ok := snap.Providers[p]; !ok {
			add("orchestrator.provider", p, "no matching section under providers")
		}
	}

	for id, override := range snap.Agents {
		prefix := "agents." + id
		if p := override.Provider; p != "" {
			if _, ok := snap.Providers[p]; !ok {
				add(prefix+".provider", p, "no matching section under providers")
			}
		}
		checkRange(prefix+".max_iterations", override.MaxIterations, MinIterations, MaxIterations)
		checkRange(prefix+".task_timeout", override.TaskTimeout, MinTimeout, MaxTimeout)
	}

	if len(violations) == 0 {
		return nil
	}
	return &ConfigError{Source: snap.Source, Violations: violations}
}
