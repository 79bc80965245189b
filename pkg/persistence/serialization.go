package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/gasaudit-go/pkg/audit"
)

// MarshalSession serializes the public record of a session to JSON bytes.
func MarshalSession(s *audit.Session) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("cannot marshal nil Session")
	}
	if s.ID == "" {
		return nil, fmt.Errorf("cannot marshal Session without ID")
	}

	data, err := json.Marshal(s.Record())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Session to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalSession deserializes a session record from JSON bytes.
func UnmarshalSession(data []byte) (*audit.Session, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var s audit.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to Session: %w", err)
	}

	return &s, nil
}

// MarshalBundleSet serializes a BundleSet to JSON bytes.
func MarshalBundleSet(bs *BundleSet) ([]byte, error) {
	if bs == nil {
		return nil, fmt.Errorf("cannot marshal nil BundleSet")
	}

	return json.Marshal(bs)
}

// UnmarshalBundleSet deserializes a BundleSet from JSON bytes.
func UnmarshalBundleSet(data []byte) (*BundleSet, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var bs BundleSet
	if err := json.Unmarshal(data, &bs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to BundleSet: %w", err)
	}

	return &bs, nil
}
