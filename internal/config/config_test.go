package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
provider: stub
system_prompt: global prompt
agent:
  max_iterations: 5
orchestrator:
  parallel_agents: 3
  task_timeout: 60
pool:
  max_idle: 4
providers:
  stub:
    model: stub-large
    api_key: sk-test
    max_tokens: 2048
  alt:
    model: alt-small
agents:
  agent_2:
    provider: alt
    system_prompt: agent two prompt
    max_iterations: 7
`

func TestLoadParsesAndNormalizes(t *testing.T) {
	path := writeConfig(t, validConfig)
	r := NewResolver()

	snap, err := r.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if snap.Provider != "stub" {
		t.Errorf("Provider = %q, want stub", snap.Provider)
	}
	if snap.Generation != 1 {
		t.Errorf("Generation = %d, want 1", snap.Generation)
	}
	if snap.Orchestrator.ParallelAgents != 3 {
		t.Errorf("ParallelAgents = %d, want 3", snap.Orchestrator.ParallelAgents)
	}
	if snap.Pool.MaxIdle != 4 {
		t.Errorf("Pool.MaxIdle = %d, want 4", snap.Pool.MaxIdle)
	}
}

func TestLoadNormalizesUnsetKnobs(t *testing.T) {
	path := writeConfig(t, `
provider: stub
providers:
  stub:
    model: m
`)
	r := NewResolver()

	snap, err := r.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if snap.Orchestrator.ParallelAgents != DefaultParallelAgents {
		t.Errorf("ParallelAgents = %d, want default %d", snap.Orchestrator.ParallelAgents, DefaultParallelAgents)
	}
	if snap.Orchestrator.TaskTimeout != DefaultTaskTimeout {
		t.Errorf("TaskTimeout = %d, want default %d", snap.Orchestrator.TaskTimeout, DefaultTaskTimeout)
	}
	if snap.Pool.MaxIdle != DefaultPoolMaxIdle {
		t.Errorf("Pool.MaxIdle = %d, want default %d", snap.Pool.MaxIdle, DefaultPoolMaxIdle)
	}
}

func TestResolvePrecedence(t *testing.T) {
	path := writeConfig(t, validConfig)
	r := NewResolver()
	snap, err := r.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// agent_1 has no override section: provider defaults over globals.
	cfg, err := r.Resolve(snap, "agent_1")
	if err != nil {
		t.Fatalf("Resolve agent_1: %v", err)
	}
	if cfg.Provider != "stub" || cfg.Model != "stub-large" {
		t.Errorf("agent_1 = %s/%s, want stub/stub-large", cfg.Provider, cfg.Model)
	}
	if cfg.SystemPrompt != "global prompt" {
		t.Errorf("agent_1 SystemPrompt = %q, want global", cfg.SystemPrompt)
	}
	if cfg.MaxIterations != 5 || cfg.MaxTokens != 2048 || cfg.TimeoutSeconds != 60 {
		t.Errorf("agent_1 knobs = %d/%d/%d, want 5/2048/60", cfg.MaxIterations, cfg.MaxTokens, cfg.TimeoutSeconds)
	}
	if cfg.APIKey != "sk-test" {
		t.Errorf("agent_1 APIKey = %q, want sk-test", cfg.APIKey)
	}

	// agent_2 overrides provider, prompt, and iterations.
	cfg2, err := r.Resolve(snap, "agent_2")
	if err != nil {
		t.Fatalf("Resolve agent_2: %v", err)
	}
	if cfg2.Provider != "alt" || cfg2.Model != "alt-small" {
		t.Errorf("agent_2 = %s/%s, want alt/alt-small", cfg2.Provider, cfg2.Model)
	}
	if cfg2.SystemPrompt != "agent two prompt" {
		t.Errorf("agent_2 SystemPrompt = %q, want override", cfg2.SystemPrompt)
	}
	if cfg2.MaxIterations != 7 {
		t.Errorf("agent_2 MaxIterations = %d, want 7", cfg2.MaxIterations)
	}
	// alt sets no max_tokens: built-in default applies.
	if cfg2.MaxTokens != DefaultMaxTokens {
		t.Errorf("agent_2 MaxTokens = %d, want default %d", cfg2.MaxTokens, DefaultMaxTokens)
	}
}

func TestResolveOrchestratorOverrides(t *testing.T) {
	path := writeConfig(t, `
provider: stub
orchestrator:
  provider: alt
  model: planner-model
  system_prompt: plan carefully
providers:
  stub:
    model: m
  alt:
    model: alt-default
`)
	r := NewResolver()
	snap, err := r.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg, err := r.Resolve(snap, OrchestratorAgentID)
	if err != nil {
		t.Fatalf("Resolve orchestrator: %v", err)
	}
	if cfg.Provider != "alt" {
		t.Errorf("Provider = %q, want alt", cfg.Provider)
	}
	if cfg.Model != "planner-model" {
		t.Errorf("Model = %q, want planner-model", cfg.Model)
	}
	if cfg.SystemPrompt != "plan carefully" {
		t.Errorf("SystemPrompt = %q, want override", cfg.SystemPrompt)
	}
}

func TestResolveReturnsIndependentCopies(t *testing.T) {
	path := writeConfig(t, validConfig)
	r := NewResolver()
	snap, _ := r.Load(path)

	a, _ := r.Resolve(snap, "agent_1")
	a.Model = "mutated"

	b, _ := r.Resolve(snap, "agent_1")
	if b.Model != "stub-large" {
		t.Errorf("cached resolution was mutated: Model = %q", b.Model)
	}
}

func TestLoadCollectsEveryViolation(t *testing.T) {
	path := writeConfig(t, `
provider: missing
orchestrator:
  parallel_agents: 99
pool:
  max_idle: 500
providers:
  stub:
    model: m
agents:
  agent_1:
    provider: also-missing
    max_iterations: 0
`)
	r := NewResolver()

	_, err := r.Load(path)
	if err == nil {
		t.Fatal("Load succeeded, want validation failure")
	}

	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("error is %T, want *ConfigError", err)
	}
	if len(cerr.Violations) != 4 {
		t.Fatalf("got %d violations, want 4: %v", len(cerr.Violations), cerr)
	}

	paths := map[string]bool{}
	for _, v := range cerr.Violations {
		paths[v.Path] = true
	}
	for _, want := range []string{"provider", "orchestrator.parallel_agents", "pool.max_idle", "agents.agent_1.provider"} {
		if !paths[want] {
			t.Errorf("missing violation for %s in %v", want, cerr)
		}
	}
}

func TestLoadExpandsEnvInAPIKey(t *testing.T) {
	t.Setenv("HYDRA_TEST_KEY", "sk-from-env")
	path := writeConfig(t, `
provider: stub
providers:
  stub:
    model: m
    api_key: ${HYDRA_TEST_KEY}
`)
	r := NewResolver()
	snap, err := r.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := snap.Providers["stub"].APIKey; got != "sk-from-env" {
		t.Errorf("APIKey = %q, want expanded env value", got)
	}
}

func TestLoadConcurrentParsesOnce(t *testing.T) {
	path := writeConfig(t, validConfig)
	r := NewResolver()

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := r.Load(path); err != nil {
				t.Errorf("Load: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	r.mu.RLock()
	parses := r.parses
	r.mu.RUnlock()
	if parses != 1 {
		t.Errorf("parsed %d times for 16 concurrent loads, want 1", parses)
	}
}

func TestInvalidateBumpsGenerationAndDropsResolutions(t *testing.T) {
	path := writeConfig(t, validConfig)
	r := NewResolver()

	snap, err := r.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := r.Resolve(snap, "agent_1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	r.Invalidate(path)

	if got := r.Generation(path); got != 2 {
		t.Errorf("Generation = %d after invalidate, want 2", got)
	}
	r.mu.RLock()
	remaining := len(r.resolved)
	r.mu.RUnlock()
	if remaining != 0 {
		t.Errorf("%d stale resolutions survived invalidation", remaining)
	}

	// A changed file is reparsed under the new generation.
	updated := `
provider: stub
providers:
  stub:
    model: stub-v2
`
	if err := os.WriteFile(path, []byte(updated), 0600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	snap2, err := r.Load(path)
	if err != nil {
		t.Fatalf("Load after invalidate: %v", err)
	}
	if snap2.Generation != 2 {
		t.Errorf("reloaded Generation = %d, want 2", snap2.Generation)
	}
	cfg, err := r.Resolve(snap2, "agent_1")
	if err != nil {
		t.Fatalf("Resolve after reload: %v", err)
	}
	if cfg.Model != "stub-v2" {
		t.Errorf("Model = %q after reload, want stub-v2", cfg.Model)
	}
}

func TestInvalidateOnlyTargetsOneSource(t *testing.T) {
	pathA := writeConfig(t, validConfig)
	pathB := writeConfig(t, validConfig)
	r := NewResolver()

	snapA, _ := r.Load(pathA)
	snapB, _ := r.Load(pathB)
	r.Resolve(snapA, "agent_1")
	r.Resolve(snapB, "agent_1")

	r.Invalidate(pathA)

	if got := r.Generation(pathB); got != 1 {
		t.Errorf("untouched source Generation = %d, want 1", got)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for key := range r.resolved {
		if key.source == snapA.Source {
			t.Errorf("stale resolution for invalidated source survived: %v", key)
		}
	}
	if len(r.resolved) != 1 {
		t.Errorf("resolved cache has %d entries, want 1 for the untouched source", len(r.resolved))
	}
}

func TestWatcherInvalidatesOnChange(t *testing.T) {
	path := writeConfig(t, validConfig)
	r := NewResolver()
	if _, err := r.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	w, err := NewWatcher(r, path)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte(validConfig+"\n# touched\n"), 0600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for r.Generation(path) < 2 {
		select {
		case <-deadline:
			t.Fatalf("generation still %d after change", r.Generation(path))
		case <-time.After(20 * time.Millisecond):
		}
	}
}
