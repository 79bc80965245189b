package accumulator

import (
	"fmt"
	"math/bits"

	"github.com/Layr-Labs/gasaudit-go/pkg/encoding"
	"github.com/Layr-Labs/gasaudit-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

// WeightedNode is a weighted commitment together with the aggregates it
// commits to: the total weight below it and the smallest and largest
// position keys it covers.
type WeightedNode struct {
	Hash   common.Hash       `json:"hash"`
	Weight uint64            `json:"weight"`
	Min    types.PositionKey `json:"min"`
	Max    types.PositionKey `json:"max"`
}

func (n WeightedNode) Equal(other WeightedNode) bool {
	return n.Hash == other.Hash &&
		n.Weight == other.Weight &&
		n.Min.Cmp(other.Min) == 0 &&
		n.Max.Cmp(other.Max) == 0
}

// NewWeightedLeafNode commits a single weighted leaf. Its min and max are the
// leaf key itself.
func NewWeightedLeafNode(leaf types.WeightedLeaf) WeightedNode {
	return WeightedNode{
		Hash:   encoding.WeightedLeaf(leaf.Key, leaf.Weight, leaf.Key, leaf.Key),
		Weight: leaf.Weight,
		Min:    leaf.Key,
		Max:    leaf.Key,
	}
}

// PaddingNode is the weightless node used to fill a partial tree. Both of its
// bounds equal the boundary so it never falls inside the committed key range.
func PaddingNode(boundary types.PositionKey) WeightedNode {
	return WeightedNode{
		Hash: encoding.SentinelHash,
		Min:  boundary,
		Max:  boundary,
	}
}

// mergeWeighted takes its min from the left operand and its max from the
// right one. Callers guarantee the weights do not overflow.
func mergeWeighted(height int, left, right WeightedNode) WeightedNode {
	weight := left.Weight + right.Weight
	return WeightedNode{
		Hash:   encoding.WeightedNode(uint32(height), left.Hash, right.Hash, weight, left.Min, right.Max),
		Weight: weight,
		Min:    left.Min,
		Max:    right.Max,
	}
}

// WeightedAccumulator folds a stream of weighted leaves, ordered by position
// key, into a sum/min/max augmented commitment.
type WeightedAccumulator struct {
	s        stack[WeightedNode]
	boundary types.PositionKey
	total    uint64
	count    uint64
	lastKey  *types.PositionKey
	root     *WeightedNode
}

// NewWeighted creates a weighted accumulator. Every appended key must be
// strictly below boundary.
func NewWeighted(boundary types.PositionKey) *WeightedAccumulator {
	return &WeightedAccumulator{
		s:        stack[WeightedNode]{merge: mergeWeighted},
		boundary: boundary,
	}
}

// CommitWeighted appends every leaf and finalizes.
func CommitWeighted(leaves []types.WeightedLeaf, boundary types.PositionKey) (*WeightedAccumulator, error) {
	a := NewWeighted(boundary)
	for i, leaf := range leaves {
		if err := a.Append(leaf); err != nil {
			return nil, fmt.Errorf("leaf %d: %w", i, err)
		}
	}
	if _, err := a.Finalize(); err != nil {
		return nil, err
	}
	return a, nil
}

// Append adds a leaf. On error the accumulator is left unchanged.
func (a *WeightedAccumulator) Append(leaf types.WeightedLeaf) error {
	if a.root != nil {
		return ErrFinalized
	}
	if a.lastKey != nil && !a.lastKey.Lt(leaf.Key) {
		return fmt.Errorf("%w: %s does not follow %s", types.ErrKeyOrder, leaf.Key, *a.lastKey)
	}
	if !leaf.Key.Lt(a.boundary) {
		return fmt.Errorf("%w: %s is not below boundary %s", types.ErrKeyOrder, leaf.Key, a.boundary)
	}
	total, carry := bits.Add64(a.total, leaf.Weight, 0)
	if carry != 0 {
		return fmt.Errorf("%w: adding %d to %d", types.ErrWeightOverflow, leaf.Weight, a.total)
	}

	a.s.push(NewWeightedLeafNode(leaf))
	a.total = total
	a.count++
	key := leaf.Key
	a.lastKey = &key
	return nil
}

// Finalize pads with PaddingNode until a single root remains. An empty
// accumulator commits to the sentinel hash with zero weight and zero bounds.
func (a *WeightedAccumulator) Finalize() (WeightedNode, error) {
	if a.root != nil {
		return *a.root, nil
	}
	var root WeightedNode
	if a.count == 0 {
		root = WeightedNode{Hash: encoding.SentinelHash}
		a.s.history = [][]WeightedNode{{root}}
	} else {
		root = a.s.pad(PaddingNode(a.boundary))
	}
	a.root = &root
	return root, nil
}

func (a *WeightedAccumulator) Root() (WeightedNode, bool) {
	if a.root == nil {
		return WeightedNode{}, false
	}
	return *a.root, true
}

func (a *WeightedAccumulator) Len() uint64 {
	return a.count
}

func (a *WeightedAccumulator) TotalWeight() uint64 {
	return a.total
}

func (a *WeightedAccumulator) Boundary() types.PositionKey {
	return a.boundary
}

func (a *WeightedAccumulator) History() [][]WeightedNode {
	return a.s.history
}

// Peaks lists the occupied peaks, lowest height first.
func (a *WeightedAccumulator) Peaks() []WeightedNode {
	heights := a.s.occupied()
	peaks := make([]WeightedNode, 0, len(heights))
	for _, h := range heights {
		peaks = append(peaks, a.s.peaks[h].value)
	}
	return peaks
}

// GenerateProof extracts the sibling nodes of a leaf, leaf-to-root.
func (a *WeightedAccumulator) GenerateProof(leafIndex uint64) ([]WeightedNode, error) {
	if a.root == nil {
		return nil, ErrNotFinalized
	}
	if leafIndex >= a.count {
		return nil, fmt.Errorf("leaf index %d out of range [0, %d)", leafIndex, a.count)
	}
	return ExtractProof(a.s.history, leafIndex)
}

// VerifyWeightedProof recomputes the root from a leaf and its siblings. On
// success it returns the total weight of every leaf before leafIndex.
func VerifyWeightedProof(root WeightedNode, leaf types.WeightedLeaf, leafIndex uint64, proof []WeightedNode) (uint64, error) {
	current := NewWeightedLeafNode(leaf)
	index := leafIndex
	var prefix uint64
	for height, sibling := range proof {
		left, right := current, sibling
		if index%2 == 1 {
			left, right = sibling, current
			var carry uint64
			prefix, carry = bits.Add64(prefix, sibling.Weight, 0)
			if carry != 0 {
				return 0, fmt.Errorf("%w: prefix sum at height %d", types.ErrWeightOverflow, height)
			}
		}
		if right.Min.Lt(left.Max) {
			return 0, fmt.Errorf("%w: bounds overlap at height %d", ErrProofMismatch, height)
		}
		if _, carry := bits.Add64(left.Weight, right.Weight, 0); carry != 0 {
			return 0, fmt.Errorf("%w: weight at height %d", types.ErrWeightOverflow, height)
		}
		current = mergeWeighted(height, left, right)
		index >>= 1
	}
	if index != 0 || !current.Equal(root) {
		return 0, fmt.Errorf("%w: leaf %d", ErrProofMismatch, leafIndex)
	}
	return prefix, nil
}
