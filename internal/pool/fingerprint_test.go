package pool

import (
	"testing"

	"github.com/ShayCichocki/hydra/internal/config"
)

func baseConfig() config.AgentConfig {
	return config.AgentConfig{
		AgentID:        "agent_1",
		Provider:       "stub",
		Model:          "stub-large",
		SystemPrompt:   "be thorough",
		MaxIterations:  10,
		MaxTokens:      4096,
		TimeoutSeconds: 300,
		APIKey:         "sk-one",
		BaseURL:        "",
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint(baseConfig())
	b := Fingerprint(baseConfig())
	if a != b {
		t.Errorf("same config produced different fingerprints: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}

func TestFingerprintSensitiveToBehavior(t *testing.T) {
	base := Fingerprint(baseConfig())

	mutate := map[string]func(*config.AgentConfig){
		"Provider":       func(c *config.AgentConfig) { c.Provider = "other" },
		"Model":          func(c *config.AgentConfig) { c.Model = "stub-small" },
		"SystemPrompt":   func(c *config.AgentConfig) { c.SystemPrompt = "be brief" },
		"BaseURL":        func(c *config.AgentConfig) { c.BaseURL = "https://proxy.local" },
		"MaxIterations":  func(c *config.AgentConfig) { c.MaxIterations = 11 },
		"MaxTokens":      func(c *config.AgentConfig) { c.MaxTokens = 8192 },
		"TimeoutSeconds": func(c *config.AgentConfig) { c.TimeoutSeconds = 60 },
	}
	for field, fn := range mutate {
		cfg := baseConfig()
		fn(&cfg)
		if Fingerprint(cfg) == base {
			t.Errorf("changing %s did not change the fingerprint", field)
		}
	}
}

func TestFingerprintIgnoresIdentityAndCredentials(t *testing.T) {
	base := Fingerprint(baseConfig())

	cfg := baseConfig()
	cfg.AgentID = "agent_7"
	cfg.APIKey = "sk-other"
	if Fingerprint(cfg) != base {
		t.Error("agent id or credentials leaked into the fingerprint")
	}
}

func TestFingerprintNoConcatenationCollision(t *testing.T) {
	a := baseConfig()
	a.Provider = "ab"
	a.Model = "c"
	b := baseConfig()
	b.Provider = "a"
	b.Model = "bc"
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("adjacent fields collided under concatenation")
	}
}
