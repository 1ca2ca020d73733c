// Package pool reuses idle worker instances keyed by a behavioral
// fingerprint, bounded by capacity with strict LRU eviction.
package pool

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/ShayCichocki/hydra/internal/config"
)

// Fingerprint digests the behavior-affecting fields of a resolved agent
// configuration. Two behaviorally equivalent configs always produce the
// same fingerprint, and the digest is content-stable across process
// runs — it never depends on map iteration order or runtime hashing.
// Credentials and the agent id are deliberately excluded: they do not
// change how a worker behaves, and keys must never feed a cache key.
func Fingerprint(cfg config.AgentConfig) string {
	h := sha256.New()
	writeField(h, cfg.Provider)
	writeField(h, cfg.Model)
	writeField(h, cfg.SystemPrompt)
	writeField(h, cfg.BaseURL)
	writeInt(h, cfg.MaxIterations)
	writeInt(h, cfg.MaxTokens)
	writeInt(h, cfg.TimeoutSeconds)
	return hex.EncodeToString(h.Sum(nil))
}

// writeField writes a length-prefixed string so adjacent fields can
// never collide by concatenation.
func writeField(h interface{ Write([]byte) (int, error) }, s string) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(s)))
	h.Write(length[:])
	h.Write([]byte(s))
}

func writeInt(h interface{ Write([]byte) (int, error) }, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	h.Write(buf[:])
}
