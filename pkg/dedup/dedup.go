// Package dedup discards repeated payloads within a time window. Remote
// nodes retry their pushes on flaky links, so the node API sees the same
// telemetry more than once; only the first copy should be recorded.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Window remembers payload fingerprints for a TTL, capped in size.
type Window struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
}

// New returns a window; non-positive arguments fall back to 10 minutes and
// 10000 entries.
func New(ttl time.Duration, max int) *Window {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Window{ttl: ttl, max: max, seen: make(map[string]time.Time, max)}
}

// Fingerprint hashes a payload into a dedup key.
func Fingerprint(payload []byte) string {
	h := sha256.Sum256(payload)
	return hex.EncodeToString(h[:])
}

// FirstSeen reports whether this key has not been observed within the TTL,
// recording it as seen. Empty keys are always accepted.
func (w *Window) FirstSeen(key string) bool {
	if key == "" {
		return true
	}
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()
	if exp, ok := w.seen[key]; ok && now.Before(exp) {
		return false
	}
	w.seen[key] = now.Add(w.ttl)
	if len(w.seen) > w.max {
		for k, exp := range w.seen {
			if now.After(exp) {
				delete(w.seen, k)
			}
			if len(w.seen) <= w.max {
				break
			}
		}
	}
	return true
}
