package persistence

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Layr-Labs/gasaudit-go/pkg/audit"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("persistence layer is closed")

// BundleSet is the stored form of the bundles of one session.
type BundleSet struct {
	// SessionID is the session the bundles answer
	SessionID string `json:"sessionId"`

	// SavedAt is the Unix timestamp when the bundles were stored
	SavedAt int64 `json:"savedAt"`

	Bundles []*audit.Bundle `json:"bundles"`
}

// SortSessions orders sessions by creation time, breaking ties by ID.
func SortSessions(sessions []*audit.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
		}
		return sessions[i].ID < sessions[j].ID
	})
}

// NewBundleSet checks that every bundle answers sessionID and wraps them for
// storage.
func NewBundleSet(sessionID string, bundles []*audit.Bundle, savedAt int64) (*BundleSet, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("cannot save bundles without session ID")
	}
	for i, b := range bundles {
		if b == nil {
			return nil, fmt.Errorf("bundle %d is nil", i)
		}
		if b.SessionID != sessionID {
			return nil, fmt.Errorf("bundle %d belongs to session %s, not %s", i, b.SessionID, sessionID)
		}
	}
	if bundles == nil {
		bundles = []*audit.Bundle{}
	}
	return &BundleSet{SessionID: sessionID, SavedAt: savedAt, Bundles: bundles}, nil
}
