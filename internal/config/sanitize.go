package config

import "strings"

// RedactionMarker replaces sensitive values in sanitized output.
const RedactionMarker = "[REDACTED]"

// sensitiveKeyParts flags a key as sensitive when its lowercased form
// contains any of these substrings.
var sensitiveKeyParts = []string{
	"api_key",
	"apikey",
	"token",
	"secret",
	"password",
	"credential",
}

// SensitiveKey reports whether a configuration key names a credential.
// Matching is case-insensitive.
func SensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}

// Sanitize returns a deep copy of the snapshot with every sensitive
// field replaced by the redaction marker. Use it before logging a
// configuration or exposing it to anything inspectable; the original
// snapshot is never modified.
func Sanitize(snap *Snapshot) *Snapshot {
	out := &Snapshot{
		Source:       snap.Source,
		Generation:   snap.Generation,
		Provider:     snap.Provider,
		SystemPrompt: snap.SystemPrompt,
		Agent:        snap.Agent,
		Orchestrator: snap.Orchestrator,
		Pool:         snap.Pool,
		Providers:    make(map[string]ProviderSettings, len(snap.Providers)),
		Agents:       make(map[string]AgentOverride, len(snap.Agents)),
		raw:          redactMap(deepCopyMap(snap.raw)),
	}

	for name, p := range snap.Providers {
		if p.APIKey != "" {
			p.APIKey = RedactionMarker
		}
		out.Providers[name] = p
	}
	for id, a := range snap.Agents {
		out.Agents[id] = a
	}

	return out
}

// redactMap walks a nested mapping in place, replacing values whose key
// is sensitive. Non-empty values only; an unset credential stays empty
// so display output distinguishes "not set" from "hidden".
func redactMap(m map[string]any) map[string]any {
	for k, v := range m {
		if SensitiveKey(k) {
			if s, ok := v.(string); !ok || s != "" {
				m[k] = RedactionMarker
			}
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			m[k] = redactMap(val)
		case []any:
			for i, item := range val {
				if nested, ok := item.(map[string]any); ok {
					val[i] = redactMap(nested)
				}
			}
		}
	}
	return m
}
