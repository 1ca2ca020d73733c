// Package config loads and resolves hydra configuration.
// A single YAML source holds global defaults, per-provider sections, and
// per-agent overrides. The Resolver caches one immutable snapshot per
// source and merges the layers into per-agent views on demand.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Built-in constants, the lowest layer of the inheritance chain.
// Configurable values live in the YAML source; these are the fallbacks.
const (
	// DefaultParallelAgents is the number of subtasks a run fans out to.
	DefaultParallelAgents = 4
	// DefaultTaskTimeout is the per-slot timeout in seconds.
	DefaultTaskTimeout = 300
	// DefaultMaxIterations bounds a worker's internal reasoning loop.
	DefaultMaxIterations = 10
	// DefaultMaxTokens is the per-call token ceiling.
	DefaultMaxTokens = 8192
	// DefaultPoolMaxIdle is the agent pool's idle capacity.
	DefaultPoolMaxIdle = 8
)

// OrchestratorAgentID is the reserved agent id whose resolved view
// configures the planner and synthesizer workers.
const OrchestratorAgentID = "orchestrator"

// AgentDefaults holds global agent settings.
type AgentDefaults struct {
	// MaxIterations is the default reasoning-loop bound for all agents.
	MaxIterations int `mapstructure:"max_iterations"`
}

// OrchestratorSettings holds orchestrator-specific configuration,
// including optional model overrides for planning and synthesis.
type OrchestratorSettings struct {
	// ParallelAgents is the number of subtasks per run.
	ParallelAgents int `mapstructure:"parallel_agents"`
	// TaskTimeout is the per-slot timeout in seconds.
	TaskTimeout int `mapstructure:"task_timeout"`
	// QuestionPrompt is the planning prompt template. The placeholders
	// {task} and {count} are substituted at run time.
	QuestionPrompt string `mapstructure:"question_prompt"`
	// SynthesisPrompt is the synthesis prompt template. The placeholders
	// {count} and {responses} are substituted at run time.
	SynthesisPrompt string `mapstructure:"synthesis_prompt"`
	// Provider overrides the global provider for planner/synthesizer workers.
	Provider string `mapstructure:"provider"`
	// Model overrides the provider's model for planner/synthesizer workers.
	Model string `mapstructure:"model"`
	// SystemPrompt overrides the system prompt for planner/synthesizer workers.
	SystemPrompt string `mapstructure:"system_prompt"`
}

// PoolSettings holds agent pool configuration.
type PoolSettings struct {
	// MaxIdle is the maximum number of idle workers kept for reuse.
	MaxIdle int `mapstructure:"max_idle"`
}

// ProviderSettings holds a per-provider section of the source.
type ProviderSettings struct {
	// Model is the provider's default model id.
	Model string `mapstructure:"model"`
	// APIKey is the provider credential. ${VAR} references are expanded.
	APIKey string `mapstructure:"api_key"`
	// BaseURL optionally overrides the provider endpoint.
	BaseURL string `mapstructure:"base_url"`
	// MaxTokens is the provider's default per-call token ceiling.
	MaxTokens int `mapstructure:"max_tokens"`
	// SystemPrompt is the provider's default system prompt.
	SystemPrompt string `mapstructure:"system_prompt"`
}

// AgentOverride holds a per-agent section of the source. Zero values
// mean "inherit from the layer below".
type AgentOverride struct {
	Provider      string `mapstructure:"provider"`
	Model         string `mapstructure:"model"`
	SystemPrompt  string `mapstructure:"system_prompt"`
	MaxIterations int    `mapstructure:"max_iterations"`
	TaskTimeout   int    `mapstructure:"task_timeout"`
	MaxTokens     int    `mapstructure:"max_tokens"`
}

// Snapshot is an immutable view of one parsed configuration source.
// It is identified by Source plus Generation; invalidation bumps the
// generation so stale derived values can never be confused with fresh
// ones. Callers must treat snapshots as read-only.
type Snapshot struct {
	// Source is the absolute path of the configuration file.
	Source string `mapstructure:"-"`
	// Generation counts invalidations of this source.
	Generation uint64 `mapstructure:"-"`

	// Provider is the global default provider name.
	Provider string `mapstructure:"provider"`
	// SystemPrompt is the global default system prompt.
	SystemPrompt string `mapstructure:"system_prompt"`
	// Agent holds global agent defaults.
	Agent AgentDefaults `mapstructure:"agent"`
	// Orchestrator holds run-level settings.
	Orchestrator OrchestratorSettings `mapstructure:"orchestrator"`
	// Pool holds agent pool settings.
	Pool PoolSettings `mapstructure:"pool"`
	// Providers maps provider name to its section.
	Providers map[string]ProviderSettings `mapstructure:"providers"`
	// Agents maps agent id to its override section.
	Agents map[string]AgentOverride `mapstructure:"agents"`

	// raw preserves the full parsed mapping for display and sanitization.
	raw map[string]any
}

// Settings returns a deep copy of the raw parsed mapping.
func (s *Snapshot) Settings() map[string]any {
	return deepCopyMap(s.raw)
}

// AgentConfig is the resolved per-agent view of a snapshot. It is a
// plain value: every field is a scalar, so a returned AgentConfig is
// always an independent copy and can never mutate cached state.
type AgentConfig struct {
	AgentID        string
	Provider       string
	Model          string
	SystemPrompt   string
	MaxIterations  int
	MaxTokens      int
	TimeoutSeconds int
	APIKey         string
	BaseURL        string
}

// Timeout returns the per-slot timeout as a duration.
func (c AgentConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// resolveKey identifies a memoized per-agent resolution. Including the
// generation means entries for a stale snapshot can never be returned
// for a fresh one.
type resolveKey struct {
	source     string
	generation uint64
	agentID    string
}

// Resolver owns the configuration caches. All access to the backing
// maps goes through its lock; nothing shares the backing store.
type Resolver struct {
	mu          sync.RWMutex
	snapshots   map[string]*Snapshot
	generations map[string]uint64
	resolved    map[resolveKey]AgentConfig

	// parses counts actual file parses, for tests and diagnostics.
	parses uint64
}

// NewResolver creates an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{
		snapshots:   make(map[string]*Snapshot),
		generations: make(map[string]uint64),
		resolved:    make(map[resolveKey]AgentConfig),
	}
}

// Load returns the cached snapshot for the source, parsing it at most
// once per generation. Concurrent callers racing on a cold cache
// double-check under the write lock, so the loser observes the winner's
// snapshot instead of re-parsing. Validation failures return a
// *ConfigError listing every violation.
func (r *Resolver) Load(path string) (*Snapshot, error) {
	source, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", path, err)
	}

	r.mu.RLock()
	snap, ok := r.snapshots[source]
	r.mu.RUnlock()
	if ok {
		return snap, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check: another caller may have parsed while we waited.
	if snap, ok := r.snapshots[source]; ok {
		return snap, nil
	}

	snap, err = r.parseLocked(source)
	if err != nil {
		return nil, err
	}

	r.snapshots[source] = snap
	return snap, nil
}

// parseLocked reads, validates, and normalizes the source file.
// Caller must hold the write lock.
func (r *Resolver) parseLocked(source string) (*Snapshot, error) {
	r.parses++

	v := viper.New()
	v.SetConfigFile(source)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", source, err)
	}

	snap := &Snapshot{
		Source: source,
		raw:    deepCopyMap(v.AllSettings()),
	}
	if err := v.Unmarshal(snap); err != nil {
		return nil, fmt.Errorf("unmarshaling config %s: %w", source, err)
	}

	// Expand ${VAR} references in credentials before validation so a
	// missing env var surfaces as an empty key, not a literal "${...}".
	for name, p := range snap.Providers {
		p.APIKey = os.ExpandEnv(p.APIKey)
		snap.Providers[name] = p
	}

	if cerr := validateSnapshot(snap); cerr != nil {
		return nil, cerr
	}

	normalizeSnapshot(snap)

	if r.generations[source] == 0 {
		r.generations[source] = 1
	}
	snap.Generation = r.generations[source]

	return snap, nil
}

// normalizeSnapshot fills unset values from the built-in constants so
// consumers always read concrete settings.
func normalizeSnapshot(snap *Snapshot) {
	if snap.Agent.MaxIterations == 0 {
		snap.Agent.MaxIterations = DefaultMaxIterations
	}
	if snap.Orchestrator.ParallelAgents == 0 {
		snap.Orchestrator.ParallelAgents = DefaultParallelAgents
	}
	if snap.Orchestrator.TaskTimeout == 0 {
		snap.Orchestrator.TaskTimeout = DefaultTaskTimeout
	}
	if snap.Pool.MaxIdle == 0 {
		snap.Pool.MaxIdle = DefaultPoolMaxIdle
	}
	if snap.Providers == nil {
		snap.Providers = make(map[string]ProviderSettings)
	}
	if snap.Agents == nil {
		snap.Agents = make(map[string]AgentOverride)
	}
}

// Resolve merges the snapshot's layers into the per-agent view for
// agentID. Precedence: agent-specific > provider-default >
// global-default > built-in constant. Resolutions are memoized per
// (source, generation, agent id); the returned value is always an
// independent copy.
func (r *Resolver) Resolve(snap *Snapshot, agentID string) (AgentConfig, error) {
	key := resolveKey{source: snap.Source, generation: snap.Generation, agentID: agentID}

	r.mu.RLock()
	cfg, ok := r.resolved[key]
	r.mu.RUnlock()
	if ok {
		return cfg, nil
	}

	cfg, err := mergeLayers(snap, agentID)
	if err != nil {
		return AgentConfig{}, err
	}

	r.mu.Lock()
	r.resolved[key] = cfg
	r.mu.Unlock()

	return cfg, nil
}

// mergeLayers computes the resolved view without touching any cache.
func mergeLayers(snap *Snapshot, agentID string) (AgentConfig, error) {
	// Built-in constants.
	cfg := AgentConfig{
		AgentID:        agentID,
		MaxIterations:  DefaultMaxIterations,
		MaxTokens:      DefaultMaxTokens,
		TimeoutSeconds: DefaultTaskTimeout,
	}

	// Global defaults.
	cfg.Provider = snap.Provider
	cfg.SystemPrompt = snap.SystemPrompt
	if snap.Agent.MaxIterations > 0 {
		cfg.MaxIterations = snap.Agent.MaxIterations
	}
	if snap.Orchestrator.TaskTimeout > 0 {
		cfg.TimeoutSeconds = snap.Orchestrator.TaskTimeout
	}

	override, hasOverride := snap.Agents[agentID]

	// The orchestrator id carries its own overrides in the orchestrator
	// section rather than under agents.
	if agentID == OrchestratorAgentID {
		if snap.Orchestrator.Provider != "" {
			cfg.Provider = snap.Orchestrator.Provider
		}
	} else if hasOverride && override.Provider != "" {
		cfg.Provider = override.Provider
	}

	provider, ok := snap.Providers[cfg.Provider]
	if !ok {
		return AgentConfig{}, fmt.Errorf("agent %s: provider %q has no configuration section", agentID, cfg.Provider)
	}

	// Provider defaults.
	if provider.Model != "" {
		cfg.Model = provider.Model
	}
	if provider.SystemPrompt != "" {
		cfg.SystemPrompt = provider.SystemPrompt
	}
	if provider.MaxTokens > 0 {
		cfg.MaxTokens = provider.MaxTokens
	}
	cfg.APIKey = provider.APIKey
	cfg.BaseURL = provider.BaseURL

	// Agent-specific overrides.
	if agentID == OrchestratorAgentID {
		if snap.Orchestrator.Model != "" {
			cfg.Model = snap.Orchestrator.Model
		}
		if snap.Orchestrator.SystemPrompt != "" {
			cfg.SystemPrompt = snap.Orchestrator.SystemPrompt
		}
		return cfg, nil
	}
	if hasOverride {
		if override.Model != "" {
			cfg.Model = override.Model
		}
		if override.SystemPrompt != "" {
			cfg.SystemPrompt = override.SystemPrompt
		}
		if override.MaxIterations > 0 {
			cfg.MaxIterations = override.MaxIterations
		}
		if override.TaskTimeout > 0 {
			cfg.TimeoutSeconds = override.TaskTimeout
		}
		if override.MaxTokens > 0 {
			cfg.MaxTokens = override.MaxTokens
		}
	}

	return cfg, nil
}

// Invalidate drops the cached snapshot for the source and bumps its
// generation. The raw snapshot and every derived resolution are cleared
// inside one critical section, so no reader can pair a fresh snapshot
// with stale derived state or vice versa.
func (r *Resolver) Invalidate(path string) {
	source, err := filepath.Abs(path)
	if err != nil {
		source = path
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.snapshots, source)
	r.generations[source]++
	for key := range r.resolved {
		if key.source == source {
			delete(r.resolved, key)
		}
	}
}

// Generation returns the current generation counter for the source.
func (r *Resolver) Generation(path string) uint64 {
	source, err := filepath.Abs(path)
	if err != nil {
		source = path
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generations[source]
}

// deepCopyMap copies a nested settings mapping. Values are the shapes
// yaml/viper produce: maps, slices, and scalars.
func deepCopyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return val
	}
}
