// Package accumulator implements streaming append-only accumulators that
// produce the same roots as the balanced commitment tree while holding only
// O(log n) pending peaks, plus the history needed to extract proofs after
// finalization.
package accumulator

import (
	"fmt"

	"github.com/Layr-Labs/gasaudit-go/pkg/encoding"
	"github.com/Layr-Labs/gasaudit-go/pkg/merkle"
	"github.com/ethereum/go-ethereum/common"
)

// Peak is a pending subtree root at the given height.
type Peak struct {
	Height int         `json:"height"`
	Hash   common.Hash `json:"hash"`
}

// Accumulator folds a stream of hashes into a balanced commitment.
type Accumulator struct {
	s     stack[common.Hash]
	count uint64
	root  *common.Hash
}

func New() *Accumulator {
	return &Accumulator{
		s: stack[common.Hash]{
			merge: func(height int, resident, incoming common.Hash) common.Hash {
				return encoding.PlainNode(uint64(height), resident, incoming)
			},
		},
	}
}

// Commit appends every leaf and finalizes. An empty sequence commits to the
// sentinel hash.
func Commit(leaves []common.Hash) (*Accumulator, error) {
	a := New()
	for _, leaf := range leaves {
		if err := a.Append(leaf); err != nil {
			return nil, err
		}
	}
	if _, err := a.Finalize(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Accumulator) Append(leaf common.Hash) error {
	if a.root != nil {
		return ErrFinalized
	}
	a.s.push(leaf)
	a.count++
	return nil
}

// Finalize pads the pending peaks with the sentinel hash until a single root
// remains. Calling it again returns the same root.
func (a *Accumulator) Finalize() (common.Hash, error) {
	if a.root != nil {
		return *a.root, nil
	}
	var root common.Hash
	if a.count == 0 {
		root = encoding.SentinelHash
		a.s.history = [][]common.Hash{{root}}
	} else {
		root = a.s.pad(encoding.SentinelHash)
	}
	a.root = &root
	return root, nil
}

// Root returns the committed root once the accumulator is finalized.
func (a *Accumulator) Root() (common.Hash, bool) {
	if a.root == nil {
		return common.Hash{}, false
	}
	return *a.root, true
}

func (a *Accumulator) Len() uint64 {
	return a.count
}

// Peaks lists the occupied peaks, lowest height first.
func (a *Accumulator) Peaks() []Peak {
	heights := a.s.occupied()
	peaks := make([]Peak, 0, len(heights))
	for _, h := range heights {
		peaks = append(peaks, Peak{Height: h, Hash: a.s.peaks[h].value})
	}
	return peaks
}

// History returns the per-height commitment rows. The rows are shared with
// the accumulator and must not be modified.
func (a *Accumulator) History() [][]common.Hash {
	return a.s.history
}

// GenerateProof extracts the membership proof of a leaf from a finalized
// accumulator.
func (a *Accumulator) GenerateProof(leafIndex uint64) (*merkle.MerkleProof, error) {
	if a.root == nil {
		return nil, ErrNotFinalized
	}
	if leafIndex >= a.count {
		return nil, fmt.Errorf("leaf index %d out of range [0, %d)", leafIndex, a.count)
	}
	siblings, err := ExtractProof(a.s.history, leafIndex)
	if err != nil {
		return nil, err
	}
	return &merkle.MerkleProof{
		LeafIndex: int(leafIndex),
		Leaf:      a.s.history[0][leafIndex],
		Proof:     siblings,
	}, nil
}

// VerifyProof checks a plain membership proof against root.
func VerifyProof(root, leaf common.Hash, leafIndex uint64, proof []common.Hash) error {
	if merkle.ComputeRoot(leaf, leafIndex, proof) != root {
		return fmt.Errorf("%w: leaf %d", ErrProofMismatch, leafIndex)
	}
	return nil
}
