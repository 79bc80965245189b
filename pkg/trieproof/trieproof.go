// Package trieproof recodes inclusion proofs from a hexary Merkle-Patricia
// trie into two per-level sibling lists relative to the proven path, and
// rebuilds the original node sequence from that compact form.
package trieproof

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

const (
	branchWidth = 17
	valueSlot   = 16
)

// Fragment is the part of one trie node contributed by one side of the path.
// Items keep their raw RLP encoding.
type Fragment []rlp.RawValue

// Encode returns the fragment as an RLP list.
func (f Fragment) Encode() ([]byte, error) {
	return rlp.EncodeToBytes([]rlp.RawValue(f))
}

// ProofPair holds the left and right sibling fragments of every node on a
// path, deepest node first.
type ProofPair struct {
	Left  []Fragment `json:"left"`
	Right []Fragment `json:"right"`
}

// Depth is the number of trie nodes on the proven path.
func (p *ProofPair) Depth() int {
	return len(p.Left)
}

// Compact splits a root-to-leaf proof for key into left and right sibling
// fragments. Leaf nodes keep only their encoded path, extension nodes are kept
// whole, and branch nodes drop the slot on the path. The deepest branch is
// split at the value slot.
func Compact(nodes [][]byte, key []byte) (*ProofPair, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: empty proof", types.ErrEmptyInput)
	}
	nibbles := keyNibbles(key)

	left := make([]Fragment, len(nodes))
	right := make([]Fragment, len(nodes))
	offset := 0
	for i, enc := range nodes {
		items, err := decodeNode(enc)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}

		switch len(items) {
		case 2:
			path, terminal, err := decodePath(items[0])
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", i, err)
			}
			offset += len(path)
			if terminal {
				left[i] = Fragment{items[0]}
			} else {
				left[i] = Fragment(items)
			}
			right[i] = Fragment{}
		case branchWidth:
			pos := valueSlot
			if i < len(nodes)-1 {
				if offset >= len(nibbles) {
					return nil, fmt.Errorf("%w: node %d: key exhausted at nibble %d", types.ErrMalformedTrieNode, i, offset)
				}
				pos = int(nibbles[offset])
				offset++
			} else if offset != len(nibbles) {
				return nil, fmt.Errorf("%w: node %d: leaf embedded below nibble %d of %d", types.ErrMalformedTrieNode, i, offset, len(nibbles))
			}
			left[i] = Fragment(items[:pos])
			right[i] = Fragment(items[pos+1:])
		default:
			return nil, fmt.Errorf("%w: node %d has %d items", types.ErrMalformedTrieNode, i, len(items))
		}
	}

	reverse(left)
	reverse(right)
	return &ProofPair{Left: left, Right: right}, nil
}

// Rebuild reconstructs the encoded node sequence, root first, from a compact
// proof and the value stored at the end of the path. It checks that the
// sibling layout follows the nibble path of key.
func Rebuild(pair *ProofPair, key, value []byte) ([][]byte, error) {
	if pair == nil || len(pair.Left) == 0 || len(pair.Left) != len(pair.Right) {
		return nil, fmt.Errorf("%w: mismatched sibling lists", types.ErrMalformedTrieNode)
	}
	if err := checkPath(pair, keyNibbles(key)); err != nil {
		return nil, err
	}

	encodedValue, err := rlp.EncodeToBytes(value)
	if err != nil {
		return nil, err
	}

	depth := pair.Depth()
	nodes := make([][]byte, depth)
	var child []byte
	for level := 0; level < depth; level++ {
		l, r := pair.Left[level], pair.Right[level]

		var items []rlp.RawValue
		switch len(l) + len(r) {
		case 1:
			if level != 0 {
				return nil, fmt.Errorf("%w: leaf above level 0", types.ErrMalformedTrieNode)
			}
			items = []rlp.RawValue{l[0], encodedValue}
		case 2:
			if level == 0 || len(r) != 0 {
				return nil, fmt.Errorf("%w: misplaced extension at level %d", types.ErrMalformedTrieNode, level)
			}
			if !bytes.Equal(l[1], reference(child)) {
				return nil, fmt.Errorf("%w: extension at level %d does not reference its child", types.ErrMalformedTrieNode, level)
			}
			items = l
		case branchWidth - 1:
			items = make([]rlp.RawValue, 0, branchWidth)
			items = append(items, l...)
			if level == 0 {
				if len(r) != 0 {
					return nil, fmt.Errorf("%w: deepest branch must end at the value slot", types.ErrMalformedTrieNode)
				}
				items = append(items, encodedValue)
			} else {
				items = append(items, reference(child))
			}
			items = append(items, r...)
		default:
			return nil, fmt.Errorf("%w: level %d has %d sibling items", types.ErrMalformedTrieNode, level, len(l)+len(r))
		}

		enc, err := rlp.EncodeToBytes(items)
		if err != nil {
			return nil, err
		}
		child = enc
		nodes[depth-1-level] = enc
	}
	return nodes, nil
}

// Verify rebuilds the path and checks that it hashes to root.
func Verify(root common.Hash, key, value []byte, pair *ProofPair) error {
	nodes, err := Rebuild(pair, key, value)
	if err != nil {
		return err
	}
	if got := crypto.Keccak256Hash(nodes[0]); got != root {
		return fmt.Errorf("%w: rebuilt root %s, want %s", types.ErrMalformedTrieNode, got, root)
	}
	return nil
}

// checkPath walks root-to-leaf and confirms every level consumes the next
// nibbles of the key and that the path ends exactly at the key's end.
func checkPath(pair *ProofPair, nibbles []byte) error {
	offset := 0
	for level := pair.Depth() - 1; level >= 0; level-- {
		l, r := pair.Left[level], pair.Right[level]
		switch len(l) + len(r) {
		case 1, 2:
			if len(r) != 0 {
				return fmt.Errorf("%w: level %d short node has right siblings", types.ErrMalformedTrieNode, level)
			}
			path, terminal, err := decodePath(l[0])
			if err != nil {
				return err
			}
			if terminal != (level == 0) {
				return fmt.Errorf("%w: level %d terminal flag mismatch", types.ErrMalformedTrieNode, level)
			}
			if offset+len(path) > len(nibbles) || !bytes.Equal(path, nibbles[offset:offset+len(path)]) {
				return fmt.Errorf("%w: level %d path diverges from key", types.ErrMalformedTrieNode, level)
			}
			offset += len(path)
		case branchWidth - 1:
			if level == 0 {
				continue
			}
			if offset >= len(nibbles) || int(nibbles[offset]) != len(l) {
				return fmt.Errorf("%w: level %d branch slot diverges from key", types.ErrMalformedTrieNode, level)
			}
			offset++
		}
	}
	if offset != len(nibbles) {
		return fmt.Errorf("%w: path covers %d of %d nibbles", types.ErrMalformedTrieNode, offset, len(nibbles))
	}
	return nil
}

func decodeNode(enc []byte) ([]rlp.RawValue, error) {
	var items []rlp.RawValue
	if err := rlp.DecodeBytes(enc, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedTrieNode, err)
	}
	return items, nil
}

// decodePath unpacks a hex-prefix encoded path item into nibbles. The high
// nibble of the first byte carries the flags: bit 0 marks an odd length and
// bit 1 marks a leaf.
func decodePath(item rlp.RawValue) (path []byte, terminal bool, err error) {
	content, _, err := rlp.SplitString(item)
	if err != nil {
		return nil, false, fmt.Errorf("%w: path item: %v", types.ErrMalformedTrieNode, err)
	}
	if len(content) == 0 {
		return nil, false, fmt.Errorf("%w: empty path item", types.ErrMalformedTrieNode)
	}
	flags := content[0] >> 4
	if flags > 3 {
		return nil, false, fmt.Errorf("%w: path flags %#x", types.ErrMalformedTrieNode, flags)
	}
	odd := flags&1 == 1
	terminal = flags&2 == 2

	path = make([]byte, 0, 2*len(content)-2+int(flags&1))
	if odd {
		path = append(path, content[0]&0x0f)
	}
	for _, b := range content[1:] {
		path = append(path, b>>4, b&0x0f)
	}
	return path, terminal, nil
}

// reference is how a parent refers to a child node: the node itself when its
// encoding is shorter than 32 bytes, otherwise its encoded Keccak hash.
func reference(enc []byte) rlp.RawValue {
	if len(enc) < 32 {
		return enc
	}
	ref, _ := rlp.EncodeToBytes(crypto.Keccak256(enc))
	return ref
}

func keyNibbles(key []byte) []byte {
	nibbles := make([]byte, 0, 2*len(key))
	for _, b := range key {
		nibbles = append(nibbles, b>>4, b&0x0f)
	}
	return nibbles
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
