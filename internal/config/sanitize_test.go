package config

import "testing"

func TestSensitiveKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"api_key", true},
		{"API_KEY", true},
		{"anthropic_apikey", true},
		{"auth_token", true},
		{"client_secret", true},
		{"db_password", true},
		{"aws_credentials", true},
		{"model", false},
		{"provider", false},
		{"max_tokens", false},
	}
	for _, tt := range tests {
		if got := SensitiveKey(tt.key); got != tt.want {
			t.Errorf("SensitiveKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestSanitizeRedactsCredentials(t *testing.T) {
	path := writeConfig(t, `
provider: stub
providers:
  stub:
    model: m
    api_key: sk-very-secret
  open:
    model: o
`)
	r := NewResolver()
	snap, err := r.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	clean := Sanitize(snap)

	if got := clean.Providers["stub"].APIKey; got != RedactionMarker {
		t.Errorf("sanitized APIKey = %q, want marker", got)
	}
	// An unset credential stays empty so display output can distinguish
	// "not set" from "hidden".
	if got := clean.Providers["open"].APIKey; got != "" {
		t.Errorf("unset APIKey = %q, want empty", got)
	}
	// The original snapshot is untouched.
	if got := snap.Providers["stub"].APIKey; got != "sk-very-secret" {
		t.Errorf("original APIKey was modified: %q", got)
	}
}

func TestSanitizeRedactsNestedRawSettings(t *testing.T) {
	path := writeConfig(t, `
provider: stub
providers:
  stub:
    model: m
    api_key: sk-very-secret
`)
	r := NewResolver()
	snap, err := r.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	settings := Sanitize(snap).Settings()
	providers, ok := settings["providers"].(map[string]any)
	if !ok {
		t.Fatalf("providers missing from sanitized settings: %v", settings)
	}
	stub, ok := providers["stub"].(map[string]any)
	if !ok {
		t.Fatalf("providers.stub missing: %v", providers)
	}
	if stub["api_key"] != RedactionMarker {
		t.Errorf("raw api_key = %v, want marker", stub["api_key"])
	}
	if stub["model"] != "m" {
		t.Errorf("raw model = %v, want untouched", stub["model"])
	}

	// The original raw mapping is untouched.
	orig := snap.Settings()
	got := orig["providers"].(map[string]any)["stub"].(map[string]any)["api_key"]
	if got != "sk-very-secret" {
		t.Errorf("original raw api_key was modified: %v", got)
	}
}
