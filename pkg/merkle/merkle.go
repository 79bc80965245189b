package merkle

import (
	"fmt"
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Layr-Labs/gasaudit-go/pkg/encoding"
	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

const noNode = -1

// BuildMerkleTree creates a balanced binary merkle tree over leaves.
//
// Internal nodes hash H(uint64 childHeight ‖ left ‖ right). The capacity is
// the next power of two and each split puts the first half of the capacity on
// the left; subtrees without leaves are the sentinel hash.
func BuildMerkleTree(leaves []common.Hash) (*MerkleTree, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("merkle tree: %w", types.ErrEmptyInput)
	}

	mt := &MerkleTree{
		Leaves:    append([]common.Hash(nil), leaves...),
		Height:    bits.Len(uint(len(leaves) - 1)),
		nodes:     make([]node, 0, 2*len(leaves)),
		leafNodes: make([]int, len(leaves)),
	}
	root := mt.build(0, mt.Height, noNode)
	mt.Root = mt.nodes[root].hash

	return mt, nil
}

func (mt *MerkleTree) build(offset int, height int, parent int) int {
	idx := len(mt.nodes)
	mt.nodes = append(mt.nodes, node{
		height: uint32(height),
		parent: parent,
		left:   noNode,
		right:  noNode,
	})

	if offset >= len(mt.Leaves) {
		mt.nodes[idx].hash = encoding.SentinelHash
		return idx
	}
	if height == 0 {
		mt.nodes[idx].hash = mt.Leaves[offset]
		mt.leafNodes[offset] = idx
		return idx
	}

	half := 1 << (height - 1)
	left := mt.build(offset, height-1, idx)
	right := mt.build(offset+half, height-1, idx)

	mt.nodes[idx].left = left
	mt.nodes[idx].right = right
	mt.nodes[idx].hash = encoding.PlainNode(uint64(height-1), mt.nodes[left].hash, mt.nodes[right].hash)
	return idx
}

// GenerateProof walks parent links from the leaf to the root and collects the
// other child of every parent on the way.
func (mt *MerkleTree) GenerateProof(leafIndex int) (*MerkleProof, error) {
	if leafIndex < 0 || leafIndex >= len(mt.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(mt.Leaves))
	}

	proof := make([]common.Hash, 0, mt.Height)
	cur := mt.leafNodes[leafIndex]
	for mt.nodes[cur].parent != noNode {
		p := mt.nodes[mt.nodes[cur].parent]
		if p.left == cur {
			proof = append(proof, mt.nodes[p.right].hash)
		} else {
			proof = append(proof, mt.nodes[p.left].hash)
		}
		cur = mt.nodes[cur].parent
	}

	return &MerkleProof{
		LeafIndex: leafIndex,
		Leaf:      mt.Leaves[leafIndex],
		Proof:     proof,
	}, nil
}

// VerifyProof recomputes the root from a leaf-to-root proof. Bit i of the
// leaf index tells whether the node at level i is a right child.
func VerifyProof(proof *MerkleProof, root common.Hash) bool {
	if proof == nil || proof.LeafIndex < 0 {
		return false
	}
	return ComputeRoot(proof.Leaf, uint64(proof.LeafIndex), proof.Proof) == root
}

// ComputeRoot folds a leaf-to-root sibling list into a root.
func ComputeRoot(leaf common.Hash, index uint64, siblings []common.Hash) common.Hash {
	current := leaf
	for level, sibling := range siblings {
		if index%2 == 0 {
			current = encoding.PlainNode(uint64(level), current, sibling)
		} else {
			current = encoding.PlainNode(uint64(level), sibling, current)
		}
		index /= 2
	}
	return current
}

// BuildIntervalTree builds the interval-annotated tree. Leaves are split at
// floor(n/2); an internal node hashes
// H(uint32 leftHeight ‖ left ‖ H(leftHash ‖ mid ‖ rightHash) ‖ right) where
// mid is the left bound of the right child.
func BuildIntervalTree(leaves []IntervalLeaf) (*IntervalTree, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("interval tree: %w", types.ErrEmptyInput)
	}
	for i, l := range leaves {
		if l.Left == nil || l.Right == nil {
			return nil, fmt.Errorf("interval leaf %d is missing a bound", i)
		}
	}

	it := &IntervalTree{
		Leaves:    append([]IntervalLeaf(nil), leaves...),
		nodes:     make([]intervalNode, 0, 2*len(leaves)),
		leafNodes: make([]int, len(leaves)),
	}
	root := it.build(0, len(leaves), noNode)
	it.Root = it.nodes[root].hash

	return it, nil
}

func (it *IntervalTree) build(lo, hi int, parent int) int {
	idx := len(it.nodes)
	it.nodes = append(it.nodes, intervalNode{
		parent: parent,
		lChild: noNode,
		rChild: noNode,
		left:   it.Leaves[lo].Left,
		right:  it.Leaves[hi-1].Right,
	})

	if hi-lo == 1 {
		it.nodes[idx].hash = it.Leaves[lo].Hash
		it.leafNodes[lo] = idx
		return idx
	}

	mid := lo + (hi-lo)/2
	l := it.build(lo, mid, idx)
	r := it.build(mid, hi, idx)

	ln, rn := it.nodes[l], it.nodes[r]
	inner := encoding.IntervalInner(ln.hash, rn.left, rn.hash)

	it.nodes[idx].lChild = l
	it.nodes[idx].rChild = r
	it.nodes[idx].height = ln.height + 1
	it.nodes[idx].hash = encoding.IntervalNode(ln.height, ln.left, inner, rn.right)
	return idx
}

// GenerateProof collects sibling subtrees from the leaf up to the root.
func (it *IntervalTree) GenerateProof(leafIndex int) (*IntervalProof, error) {
	if leafIndex < 0 || leafIndex >= len(it.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(it.Leaves))
	}

	proof := &IntervalProof{
		LeafIndex: leafIndex,
		Leaf:      it.Leaves[leafIndex],
	}
	cur := it.leafNodes[leafIndex]
	for level := 0; it.nodes[cur].parent != noNode; level++ {
		p := it.nodes[it.nodes[cur].parent]
		sib := p.lChild
		if p.lChild == cur {
			sib = p.rChild
		} else {
			proof.Path |= 1 << uint(level)
		}
		s := it.nodes[sib]
		proof.Siblings = append(proof.Siblings, IntervalSibling{
			Hash:   s.hash,
			Height: s.height,
			Left:   s.left,
			Right:  s.right,
		})
		cur = it.nodes[cur].parent
	}

	return proof, nil
}

// Boundaries returns, for every level of the proof, the bound contributed by
// the sibling: its left bound when the sibling sits on the left, its right
// bound otherwise.
func (p *IntervalProof) Boundaries() []*uint256.Int {
	out := make([]*uint256.Int, len(p.Siblings))
	for i, s := range p.Siblings {
		if (p.Path>>uint(i))&1 == 1 {
			out[i] = s.Left
		} else {
			out[i] = s.Right
		}
	}
	return out
}

// VerifyIntervalProof recomputes the interval root from a proof. On success it
// also returns the bounds covered by the root.
func VerifyIntervalProof(proof *IntervalProof, root common.Hash) (left, right *uint256.Int, ok bool) {
	if proof == nil || proof.Leaf.Left == nil || proof.Leaf.Right == nil {
		return nil, nil, false
	}

	cur := proof.Leaf.Hash
	curLeft, curRight := proof.Leaf.Left, proof.Leaf.Right
	curHeight := uint32(0)

	for i, s := range proof.Siblings {
		if s.Left == nil || s.Right == nil {
			return nil, nil, false
		}
		if (proof.Path>>uint(i))&1 == 1 {
			inner := encoding.IntervalInner(s.Hash, curLeft, cur)
			cur = encoding.IntervalNode(s.Height, s.Left, inner, curRight)
			curLeft = s.Left
			curHeight = s.Height + 1
		} else {
			inner := encoding.IntervalInner(cur, s.Left, s.Hash)
			cur = encoding.IntervalNode(curHeight, curLeft, inner, s.Right)
			curRight = s.Right
			curHeight++
		}
	}

	if cur != root {
		return nil, nil, false
	}
	return curLeft, curRight, true
}
