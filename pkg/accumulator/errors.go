package accumulator

import "errors"

var (
	ErrFinalized    = errors.New("accumulator is finalized")
	ErrNotFinalized = errors.New("accumulator is not finalized")

	// ErrProofMismatch is returned when a proof does not reproduce the committed root.
	ErrProofMismatch = errors.New("proof does not reproduce the committed root")
)
