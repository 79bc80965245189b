package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/gasaudit-go/pkg/audit"
	"github.com/Layr-Labs/gasaudit-go/pkg/persistence"
)

// MemoryPersistence is an in-memory implementation of IAuditPersistence.
// Values are held in their serialized form so callers never share state with
// the store. All data is lost when the process exits.
type MemoryPersistence struct {
	sessions map[string][]byte
	bundles  map[string][]byte
	mu       sync.RWMutex
	closed   bool
}

// NewMemoryPersistence creates a new in-memory persistence layer.
func NewMemoryPersistence() *MemoryPersistence {
	fmt.Println("WARNING: Using in-memory persistence - sessions are lost when the process exits")
	fmt.Println("Set GASAUDIT_PERSISTENCE=badger to keep sessions between commit and audit")

	return &MemoryPersistence{
		sessions: make(map[string][]byte),
		bundles:  make(map[string][]byte),
	}
}

// SaveSession stores the public record of a session
func (m *MemoryPersistence) SaveSession(session *audit.Session) error {
	data, err := persistence.MarshalSession(session)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.sessions[session.ID] = data
	return nil
}

// LoadSession retrieves a session record
func (m *MemoryPersistence) LoadSession(id string) (*audit.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	data, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return persistence.UnmarshalSession(data)
}

// ListSessions returns all session records ordered by creation time
func (m *MemoryPersistence) ListSessions() ([]*audit.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	sessions := make([]*audit.Session, 0, len(m.sessions))
	for id, data := range m.sessions {
		s, err := persistence.UnmarshalSession(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
		}
		sessions = append(sessions, s)
	}

	persistence.SortSessions(sessions)
	return sessions, nil
}

// DeleteSession removes a session record and its bundles
func (m *MemoryPersistence) DeleteSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	delete(m.sessions, id)
	delete(m.bundles, id)
	return nil
}

// SaveBundles replaces the bundles stored for a session
func (m *MemoryPersistence) SaveBundles(sessionID string, bundles []*audit.Bundle) error {
	set, err := persistence.NewBundleSet(sessionID, bundles, time.Now().Unix())
	if err != nil {
		return err
	}
	data, err := persistence.MarshalBundleSet(set)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.bundles[sessionID] = data
	return nil
}

// LoadBundles retrieves the bundles stored for a session
func (m *MemoryPersistence) LoadBundles(sessionID string) ([]*audit.Bundle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	data, ok := m.bundles[sessionID]
	if !ok {
		return []*audit.Bundle{}, nil
	}
	set, err := persistence.UnmarshalBundleSet(data)
	if err != nil {
		return nil, err
	}
	return set.Bundles, nil
}

// Close marks the persistence layer as closed
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}
	return nil
}
