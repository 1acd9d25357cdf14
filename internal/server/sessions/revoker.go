// Package sessions keeps track of session ids that were ended by logout
// before their token expired.
package sessions

import (
	"context"
	"sync"
	"time"
)

// Revoker records revoked session ids. Entries only need to outlive the
// token they belong to, so every revocation carries a ttl.
type Revoker interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// MemoryRevoker is a process-local Revoker. It is used when no Redis address
// is configured and in tests.
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{revoked: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryRevoker) Revoke(_ context.Context, sessionID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.revoked[sessionID] = now.Add(ttl)

	// drop entries whose tokens are expired anyway
	for id, until := range m.revoked {
		if !now.Before(until) {
			delete(m.revoked, id)
		}
	}
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.revoked[sessionID]
	if !ok {
		return false, nil
	}
	if !m.now().Before(until) {
		delete(m.revoked, sessionID)
		return false, nil
	}
	return true, nil
}
