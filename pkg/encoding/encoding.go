// Package encoding pins down the byte layout of every hash preimage used by
// the commitment engine. All fields are fixed width and big-endian with no
// delimiters, so a verifier written in any language can recompute the same
// digests:
//
//	uint32   4 bytes
//	uint64   8 bytes
//	uint256  32 bytes (weights and position keys are widened to this)
//	bytes32  32 bytes
//
// The digest is Keccak-256. Any change to a field width or order must bump
// Version.
package encoding

import (
	"encoding/binary"
	"hash"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/Layr-Labs/gasaudit-go/pkg/types"
)

// Version identifies the preimage layout defined in this package.
const Version = 1

// SentinelHash stands in for an empty sequence and for padding.
var SentinelHash = common.Hash{}

// Packer accumulates fixed-width fields into a keccak state.
type Packer struct {
	h   hash.Hash
	buf [32]byte
}

func NewPacker() *Packer {
	return &Packer{h: sha3.NewLegacyKeccak256()}
}

func (p *Packer) Uint32(v uint32) *Packer {
	binary.BigEndian.PutUint32(p.buf[:4], v)
	p.h.Write(p.buf[:4])
	return p
}

func (p *Packer) Uint64(v uint64) *Packer {
	binary.BigEndian.PutUint64(p.buf[:8], v)
	p.h.Write(p.buf[:8])
	return p
}

// Word writes v widened to a 32 byte word.
func (p *Packer) Word(v uint64) *Packer {
	clear(p.buf[:24])
	binary.BigEndian.PutUint64(p.buf[24:], v)
	p.h.Write(p.buf[:])
	return p
}

func (p *Packer) Uint256(v *uint256.Int) *Packer {
	p.buf = v.Bytes32()
	p.h.Write(p.buf[:])
	return p
}

func (p *Packer) Key(k types.PositionKey) *Packer {
	p.buf = k.Bytes32()
	p.h.Write(p.buf[:])
	return p
}

func (p *Packer) Bytes32(b common.Hash) *Packer {
	p.h.Write(b[:])
	return p
}

func (p *Packer) Sum() common.Hash {
	var out common.Hash
	p.h.Sum(out[:0])
	return out
}

// PlainNode commits two children of equal height:
// H(uint64 height ‖ left ‖ right), where height is that of the children.
func PlainNode(height uint64, left, right common.Hash) common.Hash {
	return NewPacker().Uint64(height).Bytes32(left).Bytes32(right).Sum()
}

// IntervalInner is H(leftHash ‖ uint256 mid ‖ rightHash).
func IntervalInner(leftHash common.Hash, mid *uint256.Int, rightHash common.Hash) common.Hash {
	return NewPacker().Bytes32(leftHash).Uint256(mid).Bytes32(rightHash).Sum()
}

// IntervalNode is H(uint32 heightOfLeftChild ‖ uint256 left ‖ inner ‖ uint256 right).
func IntervalNode(height uint32, left *uint256.Int, inner common.Hash, right *uint256.Int) common.Hash {
	return NewPacker().Uint32(height).Uint256(left).Bytes32(inner).Uint256(right).Sum()
}

// WeightedLeaf is H(uint256 key ‖ uint256 weight ‖ uint256 min ‖ uint256 max).
func WeightedLeaf(key types.PositionKey, weight uint64, min, max types.PositionKey) common.Hash {
	return NewPacker().Key(key).Word(weight).Key(min).Key(max).Sum()
}

// WeightedNode is H(uint32 height ‖ H(left ‖ right) ‖ uint256 weight ‖ uint256 min ‖ uint256 max).
func WeightedNode(height uint32, left, right common.Hash, weight uint64, min, max types.PositionKey) common.Hash {
	pair := NewPacker().Bytes32(left).Bytes32(right).Sum()
	return NewPacker().Uint32(height).Bytes32(pair).Word(weight).Key(min).Key(max).Sum()
}

// ChallengeSeed is H(bytes32 root ‖ uint256 nonce).
func ChallengeSeed(root common.Hash, nonce uint64) common.Hash {
	return NewPacker().Bytes32(root).Word(nonce).Sum()
}
