package merkle

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MerkleTree is a balanced binary commitment over block hashes.
//
// Leaves are laid out over the next power-of-two capacity. A subtree that
// holds no leaves collapses to encoding.SentinelHash, so the root matches the
// one produced by the streaming accumulator over the same sequence.
type MerkleTree struct {
	// Leaves contains the leaf hashes in insertion order
	Leaves []common.Hash

	// Root is the merkle root hash
	Root common.Hash

	// Height is the number of levels above the leaves
	Height int

	nodes     []node
	leafNodes []int
}

// node is an arena entry. Parent and child links are arena indices, so the
// tree owns every node exactly once and upward links never own anything.
type node struct {
	hash   common.Hash
	height uint32
	parent int
	left   int
	right  int
}

// MerkleProof represents a proof that a leaf is included in the tree.
type MerkleProof struct {
	// LeafIndex is the position of the leaf in the sequence
	LeafIndex int

	// Leaf is the hash being proven
	Leaf common.Hash

	// Proof contains the sibling hashes from leaf to root
	// proof[0] is the sibling of the leaf, proof[len-1] is near the root
	Proof []common.Hash
}

// IntervalLeaf is a hash annotated with the [Left, Right] bounds it covers.
type IntervalLeaf struct {
	Hash  common.Hash  `json:"hash"`
	Left  *uint256.Int `json:"left"`
	Right *uint256.Int `json:"right"`
}

// IntervalTree is a balanced tree over interval leaves. Every internal node
// commits to its outer bounds and to the partition point between children.
type IntervalTree struct {
	Leaves []IntervalLeaf
	Root   common.Hash

	nodes     []intervalNode
	leafNodes []int
}

type intervalNode struct {
	hash   common.Hash
	height uint32
	left   *uint256.Int
	right  *uint256.Int
	parent int
	lChild int
	rChild int
}

// IntervalSibling is one level of an interval proof.
type IntervalSibling struct {
	Hash   common.Hash  `json:"hash"`
	Height uint32       `json:"height"`
	Left   *uint256.Int `json:"left"`
	Right  *uint256.Int `json:"right"`
}

// IntervalProof proves an interval leaf against an IntervalTree root.
type IntervalProof struct {
	LeafIndex int               `json:"leafIndex"`
	Leaf      IntervalLeaf      `json:"leaf"`
	Siblings  []IntervalSibling `json:"siblings"`

	// Path has bit i set when the node at level i is its parent's right child
	Path uint64 `json:"path"`
}
