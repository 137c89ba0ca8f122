package token

import (
	"sync"
	"time"
)

// RevocationList holds the jti of access tokens that were signed out before they
// expired. Entries are only needed until the token's own expiry.
type RevocationList interface {
	Revoke(now time.Time, jti string, until time.Time)
	IsRevoked(jti string, now time.Time) bool
}

type memoryRevocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryRevocationList keeps revocations in process; they do not survive a restart.
func NewMemoryRevocationList() RevocationList {
	return &memoryRevocations{entries: make(map[string]time.Time)}
}

// Revoke also drops every entry that has expired by now.
func (m *memoryRevocations) Revoke(now time.Time, jti string, until time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.entries {
		if now.After(u) {
			delete(m.entries, id)
		}
	}
	m.entries[jti] = until
}

func (m *memoryRevocations) IsRevoked(jti string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.entries[jti]
	if !ok {
		return false
	}
	if now.After(until) {
		delete(m.entries, jti)
		return false
	}
	return true
}
