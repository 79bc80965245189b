package persistence

import "github.com/Layr-Labs/gasaudit-go/pkg/audit"

// IAuditPersistence defines the interface for persisting audit sessions and
// the bundles produced for them. All implementations must be thread-safe.
//
// The interface supports:
// - Session records (save, load, list, delete)
// - Challenge bundles per session
// - Lifecycle management (close, health check)
//
// Only the public record of a session is stored. A loaded session must be
// restored through audit.Auditor.Restore before it can answer challenges.
type IAuditPersistence interface {
	// Session Management

	// SaveSession persists the public record of a session indexed by its ID.
	// Overwrites any existing record with the same ID.
	SaveSession(session *audit.Session) error

	// LoadSession retrieves a session record by ID.
	// Returns nil if the session doesn't exist, error only on storage failure.
	LoadSession(id string) (*audit.Session, error)

	// ListSessions returns all session records sorted by creation time (ascending).
	// Returns empty slice if no sessions exist, error only on storage failure.
	ListSessions() ([]*audit.Session, error)

	// DeleteSession removes a session record and its bundles.
	// Idempotent - returns nil if the session doesn't exist.
	DeleteSession(id string) error

	// Bundle Management

	// SaveBundles persists the bundles answering a challenge run for a session,
	// replacing any bundles stored earlier for the same session.
	SaveBundles(sessionID string, bundles []*audit.Bundle) error

	// LoadBundles retrieves the bundles stored for a session.
	// Returns empty slice if none exist, error only on storage failure.
	LoadBundles(sessionID string) ([]*audit.Bundle, error)

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
