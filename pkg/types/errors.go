package types

import "errors"

var (
	// ErrEmptyInput is returned when a tree is built from zero leaves outside
	// of the designated empty-sequence path.
	ErrEmptyInput = errors.New("cannot build commitment from empty leaf sequence")

	// ErrMalformedTrieNode is returned for trie proof nodes that are neither
	// two-item (extension/leaf) nor seventeen-item (branch) lists.
	ErrMalformedTrieNode = errors.New("malformed trie node")

	// ErrInconsistentHistory is returned when a proof walk over accumulator
	// history does not end at index 0 of the top row.
	ErrInconsistentHistory = errors.New("inconsistent accumulator history")

	// ErrWeightOverflow is returned when a cumulative weight leaves the uint64 range.
	ErrWeightOverflow = errors.New("cumulative weight overflow")

	// ErrUnresolvableChallenge is returned when a sample point is not below the total weight.
	ErrUnresolvableChallenge = errors.New("challenge sample exceeds total weight")

	ErrZeroTotalWeight = errors.New("total weight must be at least 1")

	// ErrKeyOrder is returned when position keys are not strictly increasing.
	ErrKeyOrder = errors.New("position keys must be strictly increasing")
)
